package callgraph

import (
	"strings"

	"github.com/xab-mack/contractscope/internal/model"
	"github.com/xab-mack/contractscope/internal/solidity"
)

// Classifier assigns a risk category to call expressions. With NoStatic set,
// calls to pure/view functions are not considered high-level.
type Classifier struct {
	idx      *solidity.Index
	noStatic bool
}

func NewClassifier(idx *solidity.Index, noStatic bool) *Classifier {
	return &Classifier{idx: idx, noStatic: noStatic}
}

// Classify returns the call type of call. The result is advisory and only
// drives display and counts.
func (c *Classifier) Classify(call *solidity.FunctionCall) model.CallType {
	return c.classify(call, map[int64]bool{})
}

func (c *Classifier) classify(call *solidity.FunctionCall, visiting map[int64]bool) model.CallType {
	if member, ok := solidity.LowLevelMember(call); ok {
		t, _ := model.LowLevelCallType(member)
		return t
	}
	ma, ok := solidity.UnwrapCallOptions(call.Expression)
	if !ok || ma.ReferencedDeclaration == nil || ma.Expression == nil {
		return model.CallInternal
	}
	fn, ok := c.idx.Lookup(*ma.ReferencedDeclaration).(*solidity.FunctionDefinition)
	if !ok {
		return model.CallInternal
	}

	recv := ma.Expression.Types().TypeString
	switch {
	case strings.HasPrefix(recv, "type(library "):
		return c.forwarding(fn, visiting)
	case strings.HasPrefix(recv, "contract "), recv == "address", recv == "address payable":
		if c.noStatic && isStatic(fn.StateMutability) {
			return model.CallInternal
		}
		return model.CallHighLevel
	}
	return model.CallInternal
}

// forwarding decides whether a library call counts as external: the library
// function must make a high- or low-level call itself and return values.
func (c *Classifier) forwarding(fn *solidity.FunctionDefinition, visiting map[int64]bool) model.CallType {
	if visiting[fn.ID()] || fn.Body == nil || fn.ReturnParameters.Len() == 0 {
		return model.CallInternal
	}
	if c.noStatic && isStatic(fn.StateMutability) {
		return model.CallInternal
	}
	visiting[fn.ID()] = true
	defer delete(visiting, fn.ID())

	nested := false
	solidity.Walk(fn.Body, func(n solidity.Node) bool {
		if nested {
			return false
		}
		call, ok := n.(*solidity.FunctionCall)
		if !ok || solidity.IsOptionSetter(call) {
			return true
		}
		if c.classify(call, visiting).IsExternal() {
			nested = true
			return false
		}
		return true
	})
	if nested {
		return model.CallHighLevel
	}
	return model.CallInternal
}

func isStatic(mutability string) bool {
	switch mutability {
	case "pure", "view", "constant":
		return true
	}
	return false
}
