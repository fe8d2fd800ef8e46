package solidity

import (
	"strconv"
	"strings"
)

// Node is a decoded solc compact-JSON AST node. The set of implementations is
// closed; consumers switch on the concrete type.
type Node interface {
	ID() int64
	NodeType() string
	Src() Src
	Types() TypeDescriptions
	Children() []Node
	node()
}

// TypeDescriptions mirrors the typeDescriptions object solc attaches to
// expressions and type names.
type TypeDescriptions struct {
	TypeIdentifier string `json:"typeIdentifier"`
	TypeString     string `json:"typeString"`
}

// Src is a parsed "start:length:fileIndex" source location.
type Src struct {
	Start  int
	Length int
	File   int
}

// ParseSrc parses a solc src attribute. Malformed input yields Src{-1,0,-1}.
func ParseSrc(s string) Src {
	bad := Src{Start: -1, File: -1}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return bad
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return bad
		}
		nums[i] = n
	}
	return Src{Start: nums[0], Length: nums[1], File: nums[2]}
}

func (s Src) String() string {
	return strconv.Itoa(s.Start) + ":" + strconv.Itoa(s.Length) + ":" + strconv.Itoa(s.File)
}

type base struct {
	id       int64
	nodeType string
	src      Src
	types    TypeDescriptions
	children []Node
}

func (b *base) ID() int64               { return b.id }
func (b *base) NodeType() string        { return b.nodeType }
func (b *base) Src() Src                { return b.src }
func (b *base) Types() TypeDescriptions { return b.types }
func (b *base) Children() []Node        { return b.children }
func (b *base) node()                   {}

// SourceUnit is the root of one source file's AST.
type SourceUnit struct {
	base
	AbsolutePath string
	Nodes        []Node

	// Source is the file content when the input carried it or it could be
	// read from disk. It is empty otherwise.
	Source string
}

// Text returns the source text covered by src, or "" when unavailable.
func (u *SourceUnit) Text(src Src) string {
	if u == nil || src.Start < 0 || src.Start+src.Length > len(u.Source) {
		return ""
	}
	return u.Source[src.Start : src.Start+src.Length]
}

type ContractDefinition struct {
	base
	Name                    string
	ContractKind            string
	Abstract                bool
	LinearizedBaseContracts []int64
	Nodes                   []Node
}

type FunctionDefinition struct {
	base
	Name             string
	Kind             string
	Visibility       string
	StateMutability  string
	Implemented      bool
	Parameters       *ParameterList
	ReturnParameters *ParameterList
	Modifiers        []*ModifierInvocation
	Body             Node
	Scope            int64
}

// Signature returns name(type,...) using the parameters' type strings.
func (f *FunctionDefinition) Signature() string {
	return f.Name + "(" + strings.Join(f.Parameters.TypeStrings(), ",") + ")"
}

type ModifierDefinition struct {
	base
	Name       string
	Visibility string
	Parameters *ParameterList
	Body       Node
}

type ModifierInvocation struct {
	base
	ModifierName Node
	Arguments    []Node
}

type ParameterList struct {
	base
	Parameters []*VariableDeclaration
}

// TypeStrings returns the parameter type strings in order. A nil list has none.
func (p *ParameterList) TypeStrings() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.Parameters))
	for _, v := range p.Parameters {
		out = append(out, v.Type.TypeString)
	}
	return out
}

// Len is nil-safe.
func (p *ParameterList) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Parameters)
}

type VariableDeclaration struct {
	base
	Name          string
	Type          TypeDescriptions
	TypeName      Node
	Visibility    string
	Mutability    string
	Constant      bool
	StateVariable bool
	Value         Node
}

type StructDefinition struct {
	base
	Name          string
	CanonicalName string
	Members       []*VariableDeclaration
}

type EnumDefinition struct {
	base
	Name          string
	CanonicalName string
	Values        []string
}

type EventDefinition struct {
	base
	Name       string
	Parameters *ParameterList
}

type ErrorDefinition struct {
	base
	Name       string
	Parameters *ParameterList
}

type UserDefinedValueTypeDefinition struct {
	base
	Name           string
	CanonicalName  string
	UnderlyingType Node
}

// UserDefinedTypeName references a struct, enum, contract or value type.
type UserDefinedTypeName struct {
	base
	ReferencedDeclaration int64
}

type FunctionCall struct {
	base
	Expression Node
	Arguments  []Node
	Kind       string
}

// FunctionCallOptions is the callee shape of x.f{value: v, gas: g}(...).
type FunctionCallOptions struct {
	base
	Expression Node
	Names      []string
	Options    []Node
}

type MemberAccess struct {
	base
	MemberName            string
	Expression            Node
	ReferencedDeclaration *int64
}

type Identifier struct {
	base
	Name                  string
	ReferencedDeclaration *int64
}

type IdentifierPath struct {
	base
	Name                  string
	ReferencedDeclaration *int64
}

// Generic holds every node kind the analyses do not inspect directly.
type Generic struct {
	base
}

// Reference returns the declaration id a node refers to, if it carries one.
func Reference(n Node) (int64, bool) {
	var ref *int64
	switch x := n.(type) {
	case *Identifier:
		ref = x.ReferencedDeclaration
	case *IdentifierPath:
		ref = x.ReferencedDeclaration
	case *MemberAccess:
		ref = x.ReferencedDeclaration
	case *UserDefinedTypeName:
		return x.ReferencedDeclaration, true
	}
	if ref == nil {
		return 0, false
	}
	return *ref, true
}

// Walk visits n and its descendants in source order. Returning false from fn
// skips the node's children.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children() {
		Walk(c, fn)
	}
}
