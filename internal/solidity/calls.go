package solidity

import "strings"

// Builtin members of address that perform a raw call.
var lowLevelMembers = map[string]bool{
	"call":         true,
	"staticcall":   true,
	"delegatecall": true,
	"send":         true,
	"transfer":     true,
}

// UnwrapCallOptions peels call-option wrappers off a callee expression and
// returns the member access that names the called function. It understands
// x.f{value: v}(...) and the pre-0.7 x.f.value(v).gas(g)(...) chain.
func UnwrapCallOptions(expr Node) (*MemberAccess, bool) {
	switch e := expr.(type) {
	case *FunctionCallOptions:
		return UnwrapCallOptions(e.Expression)
	case *FunctionCall:
		if ma, ok := e.Expression.(*MemberAccess); ok && isOptionSetter(ma) {
			return UnwrapCallOptions(ma.Expression)
		}
	case *MemberAccess:
		if isOptionSetter(e) {
			return UnwrapCallOptions(e.Expression)
		}
		return e, true
	}
	return nil, false
}

// IsOptionSetter reports whether call only applies legacy .value()/.gas()
// options to a function; the enclosing call is the real call site.
func IsOptionSetter(call *FunctionCall) bool {
	ma, ok := call.Expression.(*MemberAccess)
	return ok && isOptionSetter(ma)
}

func isOptionSetter(ma *MemberAccess) bool {
	if ma.ReferencedDeclaration != nil || (ma.MemberName != "value" && ma.MemberName != "gas") {
		return false
	}
	return ma.Expression != nil && strings.HasPrefix(ma.Expression.Types().TypeString, "function ")
}

// LowLevelMember returns the builtin low-level member invoked by call, if any.
func LowLevelMember(call *FunctionCall) (string, bool) {
	ma, ok := UnwrapCallOptions(call.Expression)
	if !ok || ma.ReferencedDeclaration != nil || !lowLevelMembers[ma.MemberName] {
		return "", false
	}
	return ma.MemberName, true
}

// Callee returns the node that names the function invoked by call: the
// member access or identifier behind any option wrappers.
func Callee(call *FunctionCall) Node {
	if ma, ok := UnwrapCallOptions(call.Expression); ok {
		return ma
	}
	switch e := call.Expression.(type) {
	case *Identifier, *IdentifierPath:
		return e
	case *FunctionCallOptions:
		return e.Expression
	}
	return nil
}
