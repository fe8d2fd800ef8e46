package solidity

import (
	"fmt"
	"sort"
)

// DecodeNode builds a typed AST from a generic JSON object as produced by
// encoding/json. The object must carry a nodeType.
func DecodeNode(raw map[string]any) (Node, error) {
	if !isNode(raw) {
		return nil, fmt.Errorf("not an AST node: missing nodeType")
	}
	return decode(raw), nil
}

func isNode(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	_, ok = m["nodeType"].(string)
	return ok
}

// fields tracks which keys of a raw node have been decoded so the remaining
// nested nodes can still be exposed as children.
type fields struct {
	raw      map[string]any
	consumed map[string]bool
	kids     []Node
}

func (f *fields) str(key string) string {
	s, _ := f.raw[key].(string)
	return s
}

func (f *fields) boolean(key string) bool {
	b, _ := f.raw[key].(bool)
	return b
}

func (f *fields) int(key string) int64 {
	n, _ := toInt(f.raw[key])
	return n
}

func (f *fields) ref(key string) *int64 {
	n, ok := toInt(f.raw[key])
	if !ok {
		return nil
	}
	return &n
}

func (f *fields) ints(key string) []int64 {
	arr, _ := f.raw[key].([]any)
	out := make([]int64, 0, len(arr))
	for _, v := range arr {
		if n, ok := toInt(v); ok {
			out = append(out, n)
		}
	}
	return out
}

func (f *fields) strs(key string) []string {
	arr, _ := f.raw[key].([]any)
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (f *fields) one(key string) Node {
	f.consumed[key] = true
	v, ok := f.raw[key]
	if !ok || !isNode(v) {
		return nil
	}
	n := decode(v.(map[string]any))
	f.kids = append(f.kids, n)
	return n
}

func (f *fields) many(key string) []Node {
	f.consumed[key] = true
	arr, _ := f.raw[key].([]any)
	var out []Node
	for _, v := range arr {
		if !isNode(v) {
			continue
		}
		n := decode(v.(map[string]any))
		f.kids = append(f.kids, n)
		out = append(out, n)
	}
	return out
}

func (f *fields) params(key string) *ParameterList {
	pl, _ := f.one(key).(*ParameterList)
	return pl
}

func (f *fields) rest() {
	keys := make([]string, 0, len(f.raw))
	for k := range f.raw {
		if !f.consumed[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := f.raw[k].(type) {
		case map[string]any:
			if isNode(v) {
				f.one(k)
			}
		case []any:
			f.many(k)
		}
	}
}

func decode(raw map[string]any) Node {
	f := &fields{raw: raw, consumed: map[string]bool{}}
	b := base{
		id:       f.int("id"),
		nodeType: f.str("nodeType"),
		src:      ParseSrc(f.str("src")),
	}
	if td, ok := raw["typeDescriptions"].(map[string]any); ok {
		b.types.TypeIdentifier, _ = td["typeIdentifier"].(string)
		b.types.TypeString, _ = td["typeString"].(string)
	}

	var n Node
	switch b.nodeType {
	case "SourceUnit":
		n = &SourceUnit{AbsolutePath: f.str("absolutePath"), Nodes: f.many("nodes")}
	case "ContractDefinition":
		n = &ContractDefinition{
			Name:                    f.str("name"),
			ContractKind:            f.str("contractKind"),
			Abstract:                f.boolean("abstract"),
			LinearizedBaseContracts: f.ints("linearizedBaseContracts"),
			Nodes:                   f.many("nodes"),
		}
	case "FunctionDefinition":
		fd := &FunctionDefinition{
			Name:             f.str("name"),
			Kind:             f.str("kind"),
			Visibility:       f.str("visibility"),
			StateMutability:  f.str("stateMutability"),
			Implemented:      f.boolean("implemented"),
			Parameters:       f.params("parameters"),
			ReturnParameters: f.params("returnParameters"),
			Body:             f.one("body"),
			Scope:            f.int("scope"),
		}
		if fd.Kind == "" {
			// solc < 0.5 marks constructors with a flag instead of kind
			fd.Kind = "function"
			if f.boolean("isConstructor") {
				fd.Kind = "constructor"
			}
		}
		for _, m := range f.many("modifiers") {
			if mi, ok := m.(*ModifierInvocation); ok {
				fd.Modifiers = append(fd.Modifiers, mi)
			}
		}
		n = fd
	case "ModifierDefinition":
		n = &ModifierDefinition{
			Name:       f.str("name"),
			Visibility: f.str("visibility"),
			Parameters: f.params("parameters"),
			Body:       f.one("body"),
		}
	case "ModifierInvocation":
		n = &ModifierInvocation{ModifierName: f.one("modifierName"), Arguments: f.many("arguments")}
	case "ParameterList":
		pl := &ParameterList{}
		for _, p := range f.many("parameters") {
			if v, ok := p.(*VariableDeclaration); ok {
				pl.Parameters = append(pl.Parameters, v)
			}
		}
		n = pl
	case "VariableDeclaration":
		v := &VariableDeclaration{
			Name:          f.str("name"),
			Type:          b.types,
			TypeName:      f.one("typeName"),
			Visibility:    f.str("visibility"),
			Mutability:    f.str("mutability"),
			Constant:      f.boolean("constant"),
			StateVariable: f.boolean("stateVariable"),
			Value:         f.one("value"),
		}
		if v.Mutability == "" {
			v.Mutability = "mutable"
			if v.Constant {
				v.Mutability = "constant"
			}
		}
		n = v
	case "StructDefinition":
		sd := &StructDefinition{Name: f.str("name"), CanonicalName: f.str("canonicalName")}
		for _, m := range f.many("members") {
			if v, ok := m.(*VariableDeclaration); ok {
				sd.Members = append(sd.Members, v)
			}
		}
		n = sd
	case "EnumDefinition":
		ed := &EnumDefinition{Name: f.str("name"), CanonicalName: f.str("canonicalName")}
		if arr, ok := raw["members"].([]any); ok {
			for _, v := range arr {
				if m, ok := v.(map[string]any); ok {
					name, _ := m["name"].(string)
					ed.Values = append(ed.Values, name)
				}
			}
		}
		n = ed
	case "EventDefinition":
		n = &EventDefinition{Name: f.str("name"), Parameters: f.params("parameters")}
	case "ErrorDefinition":
		n = &ErrorDefinition{Name: f.str("name"), Parameters: f.params("parameters")}
	case "UserDefinedValueTypeDefinition":
		n = &UserDefinedValueTypeDefinition{
			Name:           f.str("name"),
			CanonicalName:  f.str("canonicalName"),
			UnderlyingType: f.one("underlyingType"),
		}
	case "UserDefinedTypeName":
		n = &UserDefinedTypeName{ReferencedDeclaration: f.int("referencedDeclaration")}
	case "FunctionCall":
		n = &FunctionCall{Expression: f.one("expression"), Arguments: f.many("arguments"), Kind: f.str("kind")}
	case "FunctionCallOptions":
		n = &FunctionCallOptions{Expression: f.one("expression"), Names: f.strs("names"), Options: f.many("options")}
	case "MemberAccess":
		n = &MemberAccess{
			MemberName:            f.str("memberName"),
			Expression:            f.one("expression"),
			ReferencedDeclaration: f.ref("referencedDeclaration"),
		}
	case "Identifier":
		n = &Identifier{Name: f.str("name"), ReferencedDeclaration: f.ref("referencedDeclaration")}
	case "IdentifierPath":
		n = &IdentifierPath{Name: f.str("name"), ReferencedDeclaration: f.ref("referencedDeclaration")}
	default:
		n = &Generic{}
	}

	f.rest()
	sort.SliceStable(f.kids, func(i, j int) bool {
		a, c := f.kids[i].Src(), f.kids[j].Src()
		if a.Start != c.Start {
			return a.Start < c.Start
		}
		return f.kids[i].ID() < f.kids[j].ID()
	})
	b.children = f.kids
	setBase(n, b)
	return n
}

func setBase(n Node, b base) {
	switch x := n.(type) {
	case *SourceUnit:
		x.base = b
	case *ContractDefinition:
		x.base = b
	case *FunctionDefinition:
		x.base = b
	case *ModifierDefinition:
		x.base = b
	case *ModifierInvocation:
		x.base = b
	case *ParameterList:
		x.base = b
	case *VariableDeclaration:
		x.base = b
	case *StructDefinition:
		x.base = b
	case *EnumDefinition:
		x.base = b
	case *EventDefinition:
		x.base = b
	case *ErrorDefinition:
		x.base = b
	case *UserDefinedValueTypeDefinition:
		x.base = b
	case *UserDefinedTypeName:
		x.base = b
	case *FunctionCall:
		x.base = b
	case *FunctionCallOptions:
		x.base = b
	case *MemberAccess:
		x.base = b
	case *Identifier:
		x.base = b
	case *IdentifierPath:
		x.base = b
	case *Generic:
		x.base = b
	}
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}
