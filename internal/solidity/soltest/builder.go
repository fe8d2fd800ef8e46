// Package soltest builds solc compact-JSON ASTs for tests. Nodes are plain
// JSON objects so they pass through the same decoder as compiler output.
package soltest

import (
	"encoding/json"
	"sort"

	"github.com/xab-mack/contractscope/internal/solidity"
)

// N is one raw AST node.
type N = map[string]any

// Builder hands out unique node ids across every file it builds.
type Builder struct {
	next int64
}

func New() *Builder { return &Builder{next: 1} }

// ID returns the id of a raw node.
func ID(n N) int64 { return n["id"].(int64) }

func (b *Builder) node(nodeType string, kv ...any) N {
	n := N{"id": b.next, "nodeType": nodeType}
	b.next++
	for i := 0; i+1 < len(kv); i += 2 {
		n[kv[i].(string)] = kv[i+1]
	}
	return n
}

func types(typeString string) N {
	return N{"typeString": typeString, "typeIdentifier": ""}
}

func list(ns []N) []any {
	out := make([]any, 0, len(ns))
	for _, n := range ns {
		out = append(out, n)
	}
	return out
}

// File wraps top-level nodes into a SourceUnit.
func (b *Builder) File(path string, nodes ...N) N {
	return b.node("SourceUnit", "absolutePath", path, "nodes", list(nodes))
}

// Contract builds a contract whose linearization is itself followed by bases
// (most-derived first).
func (b *Builder) Contract(name string, bases []N, members ...N) N {
	return b.contract(name, "contract", bases, members)
}

func (b *Builder) Library(name string, members ...N) N {
	return b.contract(name, "library", nil, members)
}

func (b *Builder) Interface(name string, members ...N) N {
	return b.contract(name, "interface", nil, members)
}

func (b *Builder) contract(name, kind string, bases []N, members []N) N {
	c := b.node("ContractDefinition", "name", name, "contractKind", kind, "abstract", false, "nodes", list(members))
	lin := []any{c["id"]}
	for _, base := range bases {
		lin = append(lin, base["id"])
	}
	c["linearizedBaseContracts"] = lin
	return c
}

// VarOpt adjusts a variable declaration.
type VarOpt func(b *Builder, n N)

func WithConstant() VarOpt {
	return func(_ *Builder, n N) { n["constant"] = true; n["mutability"] = "constant" }
}

func WithImmutable() VarOpt {
	return func(_ *Builder, n N) { n["mutability"] = "immutable" }
}

func WithTransient() VarOpt {
	return func(_ *Builder, n N) { n["mutability"] = "transient" }
}

func WithVisibility(v string) VarOpt {
	return func(_ *Builder, n N) { n["visibility"] = v }
}

// WithTypeRef points the declaration's type name at a user-defined type.
func WithTypeRef(decl N) VarOpt {
	return func(b *Builder, n N) {
		n["typeName"] = b.node("UserDefinedTypeName", "referencedDeclaration", decl["id"], "typeDescriptions", n["typeDescriptions"])
	}
}

// WithValue attaches an initializer expression.
func WithValue(v N) VarOpt {
	return func(_ *Builder, n N) { n["value"] = v }
}

// StateVar declares a state variable of the given type string.
func (b *Builder) StateVar(name, typeString string, opts ...VarOpt) N {
	n := b.variable(name, typeString, true)
	n["visibility"] = "internal"
	for _, o := range opts {
		o(b, n)
	}
	return n
}

// Var declares a non-state variable (struct field or parameter).
func (b *Builder) Var(name, typeString string, opts ...VarOpt) N {
	n := b.variable(name, typeString, false)
	for _, o := range opts {
		o(b, n)
	}
	return n
}

func (b *Builder) variable(name, typeString string, state bool) N {
	return b.node("VariableDeclaration",
		"name", name,
		"stateVariable", state,
		"constant", false,
		"mutability", "mutable",
		"visibility", "internal",
		"typeDescriptions", types(typeString),
		"typeName", b.node("ElementaryTypeName", "name", typeString, "typeDescriptions", types(typeString)),
	)
}

func (b *Builder) Struct(name string, fields ...N) N {
	return b.node("StructDefinition", "name", name, "canonicalName", name, "members", list(fields))
}

// StructVar declares a state variable of struct type s.
func (b *Builder) StructVar(name string, s N, opts ...VarOpt) N {
	ts := "struct " + s["canonicalName"].(string) + " storage ref"
	return b.StateVar(name, ts, append([]VarOpt{WithTypeRef(s)}, opts...)...)
}

func (b *Builder) Enum(name string, values ...string) N {
	var members []any
	for _, v := range values {
		members = append(members, b.node("EnumValue", "name", v))
	}
	return b.node("EnumDefinition", "name", name, "canonicalName", name, "members", members)
}

func (b *Builder) Event(name string, paramTypes ...string) N {
	return b.node("EventDefinition", "name", name, "parameters", b.Params(paramTypes...))
}

func (b *Builder) Error(name string, paramTypes ...string) N {
	return b.node("ErrorDefinition", "name", name, "parameters", b.Params(paramTypes...))
}

func (b *Builder) ValueType(name, underlying string) N {
	return b.node("UserDefinedValueTypeDefinition", "name", name, "canonicalName", name,
		"underlyingType", b.node("ElementaryTypeName", "name", underlying, "typeDescriptions", types(underlying)))
}

// Params builds a ParameterList of unnamed parameters.
func (b *Builder) Params(typeStrings ...string) N {
	var ps []N
	for _, t := range typeStrings {
		ps = append(ps, b.Var("", t))
	}
	return b.node("ParameterList", "parameters", list(ps))
}

// FnOpt adjusts a function definition.
type FnOpt func(b *Builder, n N)

func WithParams(typeStrings ...string) FnOpt {
	return func(b *Builder, n N) { n["parameters"] = b.Params(typeStrings...) }
}

func WithReturns(typeStrings ...string) FnOpt {
	return func(b *Builder, n N) { n["returnParameters"] = b.Params(typeStrings...) }
}

func WithModifiers(invocations ...N) FnOpt {
	return func(_ *Builder, n N) { n["modifiers"] = list(invocations) }
}

func WithKind(kind string) FnOpt {
	return func(_ *Builder, n N) { n["kind"] = kind }
}

// Unimplemented drops the body, as for interface functions.
func Unimplemented() FnOpt {
	return func(_ *Builder, n N) {
		n["implemented"] = false
		delete(n, "body")
	}
}

// Function builds a function definition. A nil body yields an empty block.
func (b *Builder) Function(name, visibility, mutability string, body N, opts ...FnOpt) N {
	if body == nil {
		body = b.Block()
	}
	n := b.node("FunctionDefinition",
		"name", name,
		"kind", "function",
		"visibility", visibility,
		"stateMutability", mutability,
		"implemented", true,
		"parameters", b.Params(),
		"returnParameters", b.Params(),
		"modifiers", []any{},
		"body", body,
	)
	for _, o := range opts {
		o(b, n)
	}
	return n
}

func (b *Builder) Modifier(name string, body N) N {
	if body == nil {
		body = b.Block(b.node("PlaceholderStatement"))
	}
	return b.node("ModifierDefinition", "name", name, "visibility", "internal", "parameters", b.Params(), "body", body)
}

// Invoke builds a modifier invocation of mod.
func (b *Builder) Invoke(mod N) N {
	path := b.node("IdentifierPath", "name", mod["name"], "referencedDeclaration", mod["id"])
	return b.node("ModifierInvocation", "modifierName", path, "arguments", []any{})
}

// Block wraps expressions into expression statements.
func (b *Builder) Block(exprs ...N) N {
	var stmts []N
	for _, e := range exprs {
		if e["nodeType"] == "PlaceholderStatement" {
			stmts = append(stmts, e)
			continue
		}
		stmts = append(stmts, b.node("ExpressionStatement", "expression", e))
	}
	return b.node("Block", "statements", list(stmts))
}

// Ident references decl (a raw node) with the given type string.
func (b *Builder) Ident(name string, decl N, typeString string) N {
	n := b.node("Identifier", "name", name, "typeDescriptions", types(typeString))
	if decl != nil {
		n["referencedDeclaration"] = decl["id"]
	}
	return n
}

// IdentRef references an arbitrary declaration id, e.g. a builtin (< 0) or
// a declaration missing from the input.
func (b *Builder) IdentRef(name string, ref int64, typeString string) N {
	return b.node("Identifier", "name", name, "referencedDeclaration", ref, "typeDescriptions", types(typeString))
}

// Member builds expr.name resolving to decl; a nil decl makes it a builtin.
func (b *Builder) Member(expr N, name string, decl N, typeString string) N {
	n := b.node("MemberAccess", "memberName", name, "expression", expr, "typeDescriptions", types(typeString))
	if decl != nil {
		n["referencedDeclaration"] = decl["id"]
	}
	return n
}

// Call builds a function call of callee.
func (b *Builder) Call(callee N, args ...N) N {
	return b.node("FunctionCall", "kind", "functionCall", "expression", callee, "arguments", list(args), "typeDescriptions", types("tuple()"))
}

// Convert builds a type conversion such as IERC20(token).
func (b *Builder) Convert(typeExpr N, arg N, resultType string) N {
	return b.node("FunctionCall", "kind", "typeConversion", "expression", typeExpr, "arguments", []any{arg}, "typeDescriptions", types(resultType))
}

// Options builds expr{name: 1, ...}.
func (b *Builder) Options(expr N, names ...string) N {
	var opts []N
	var ns []any
	for _, name := range names {
		ns = append(ns, name)
		opts = append(opts, b.node("Literal", "kind", "number", "value", "1", "typeDescriptions", types("int_const 1")))
	}
	return b.node("FunctionCallOptions", "expression", expr, "names", ns, "options", list(opts), "typeDescriptions", expr["typeDescriptions"])
}

// Decode assigns source locations in pre-order, round-trips the files
// through JSON and decodes them.
func Decode(files ...N) ([]*solidity.SourceUnit, *solidity.Index, error) {
	var units []*solidity.SourceUnit
	for i, f := range files {
		pos := 0
		assignSrc(f, &pos, i)
		data, err := json.Marshal(f)
		if err != nil {
			return nil, nil, err
		}
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, nil, err
		}
		n, err := solidity.DecodeNode(raw)
		if err != nil {
			return nil, nil, err
		}
		units = append(units, n.(*solidity.SourceUnit))
	}
	return units, solidity.NewIndex(units), nil
}

// Output renders files as a standard-json compiler output document, the
// shape the loader reads from disk.
func Output(files ...N) ([]byte, error) {
	sources := N{}
	for i, f := range files {
		pos := 0
		assignSrc(f, &pos, i)
		sources[f["absolutePath"].(string)] = N{"id": i, "ast": f}
	}
	return json.Marshal(N{"sources": sources})
}

// keyOrder fixes the source order of nested nodes to mirror how Solidity
// lays them out textually.
var keyOrder = []string{
	"nodes", "typeName", "parameters", "modifiers", "modifierName", "returnParameters", "body",
	"statements", "expression", "options", "arguments", "members", "underlyingType", "value",
}

func assignSrc(v any, pos *int, file int) int {
	switch x := v.(type) {
	case N:
		if _, ok := x["nodeType"]; !ok {
			return *pos
		}
		start := *pos
		*pos++
		seen := map[string]bool{}
		for _, k := range keyOrder {
			if c, ok := x[k]; ok {
				seen[k] = true
				assignSrc(c, pos, file)
			}
		}
		var rest []string
		for k := range x {
			if !seen[k] {
				rest = append(rest, k)
			}
		}
		sort.Strings(rest)
		for _, k := range rest {
			assignSrc(x[k], pos, file)
		}
		x["src"] = srcString(start, *pos-start, file)
	case []any:
		for _, e := range x {
			assignSrc(e, pos, file)
		}
	}
	return *pos
}

func srcString(start, length, file int) string {
	return solidity.Src{Start: start, Length: length, File: file}.String()
}
