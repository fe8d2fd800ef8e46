package callgraph

import (
	"strconv"

	"github.com/xab-mack/contractscope/internal/model"
	"github.com/xab-mack/contractscope/internal/solidity"
	"github.com/xab-mack/contractscope/internal/util"
)

// DefaultMaxDepth caps how deep a call tree is expanded.
const DefaultMaxDepth = 64

// DefaultIgnorePrefixes are the dependency and test directories whose
// function bodies are not expanded unless dependencies are included.
var DefaultIgnorePrefixes = []string{"test/", "lib/", "script/", "node_modules/"}

type Options struct {
	IncludeDeps    bool
	IgnorePrefixes []string
	NoStatic       bool
	MaxDepth       int
}

// Builder expands function and modifier declarations into call trees.
type Builder struct {
	idx        *solidity.Index
	classifier *Classifier
	opts       Options
}

func NewBuilder(idx *solidity.Index, opts Options) *Builder {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.IgnorePrefixes == nil {
		opts.IgnorePrefixes = DefaultIgnorePrefixes
	}
	return &Builder{idx: idx, classifier: NewClassifier(idx, opts.NoStatic), opts: opts}
}

// Build returns the call tree rooted at decl, a function or modifier
// definition. Children of one node are deduplicated; the same target may
// still appear under different parents. A target already being expanded on
// the current path becomes a leaf marked Recursive.
func (b *Builder) Build(decl solidity.Node) *model.CallNode {
	root := &model.CallNode{Ref: b.Ref(decl), CallType: model.CallInternal, Children: []*model.CallNode{}}
	b.expand(root, decl, map[int64]bool{decl.ID(): true}, 0)
	return root
}

func (b *Builder) expand(parent *model.CallNode, decl solidity.Node, path map[int64]bool, depth int) {
	sites := callSites(decl)
	seen := map[string]bool{}

	solidity.Walk(decl, func(n solidity.Node) bool {
		if call, ok := n.(*solidity.FunctionCall); ok {
			if solidity.IsOptionSetter(call) {
				return true
			}
			if member, ok := solidity.LowLevelMember(call); ok {
				key := "site:" + strconv.FormatInt(call.ID(), 10)
				if !seen[key] {
					seen[key] = true
					t, _ := model.LowLevelCallType(member)
					parent.Children = append(parent.Children, &model.CallNode{
						Ref:      b.builtinRef(call, member),
						CallType: t,
						Children: []*model.CallNode{},
					})
				}
			}
			return true
		}

		id, ok := solidity.Reference(n)
		if !ok || id < 0 || id == decl.ID() {
			return true
		}
		key := "decl:" + strconv.FormatInt(id, 10)
		call := sites[n.ID()]
		target := b.idx.Lookup(id)
		switch target.(type) {
		case *solidity.FunctionDefinition, *solidity.ModifierDefinition:
		case nil:
			if call != nil && !seen[key] {
				seen[key] = true
				parent.Children = append(parent.Children, &model.CallNode{
					Ref:        model.DeclarationRef{ID: id, Name: nameOf(n), Kind: "unresolved"},
					CallType:   model.CallInternal,
					Children:   []*model.CallNode{},
					Unresolved: true,
				})
			}
			return true
		default:
			return true
		}
		if seen[key] {
			return true
		}
		seen[key] = true

		callType := model.CallInternal
		if call != nil {
			callType = b.classifier.Classify(call)
		}
		child := &model.CallNode{Ref: b.Ref(target), CallType: callType, Children: []*model.CallNode{}}
		parent.Children = append(parent.Children, child)

		switch {
		case path[id]:
			child.Recursive = true
		case !hasBody(target):
		case !b.opts.IncludeDeps && util.HasPathPrefix(b.idx.Path(id), b.opts.IgnorePrefixes):
			child.Pruned = true
		case depth+1 >= b.opts.MaxDepth:
			child.Truncated = true
		default:
			path[id] = true
			b.expand(child, target, path, depth+1)
			delete(path, id)
		}
		return true
	})
}

// callSites maps the id of each callee reference to its call expression.
func callSites(decl solidity.Node) map[int64]*solidity.FunctionCall {
	sites := map[int64]*solidity.FunctionCall{}
	solidity.Walk(decl, func(n solidity.Node) bool {
		call, ok := n.(*solidity.FunctionCall)
		if !ok || solidity.IsOptionSetter(call) {
			return true
		}
		if callee := solidity.Callee(call); callee != nil {
			sites[callee.ID()] = call
		}
		return true
	})
	return sites
}

func hasBody(n solidity.Node) bool {
	switch d := n.(type) {
	case *solidity.FunctionDefinition:
		return d.Body != nil
	case *solidity.ModifierDefinition:
		return d.Body != nil
	}
	return false
}

func nameOf(n solidity.Node) string {
	switch x := n.(type) {
	case *solidity.Identifier:
		return x.Name
	case *solidity.IdentifierPath:
		return x.Name
	case *solidity.MemberAccess:
		return x.MemberName
	}
	return ""
}

// Ref describes a function or modifier declaration for display.
func (b *Builder) Ref(n solidity.Node) model.DeclarationRef {
	r := model.DeclarationRef{ID: n.ID(), Src: n.Src().String(), AbsolutePath: b.idx.Path(n.ID())}
	if owner := b.idx.Owner(n.ID()); owner != nil {
		r.Contract = owner.Name
	}
	switch d := n.(type) {
	case *solidity.FunctionDefinition:
		r.Name = d.Name
		if r.Name == "" {
			r.Name = d.Kind
		}
		r.Kind = d.Kind
		r.Signature = d.Signature()
		r.Visibility = d.Visibility
		r.StateMutability = d.StateMutability
	case *solidity.ModifierDefinition:
		r.Name = d.Name
		r.Kind = "modifier"
		r.Signature = d.Name + "(" + joinTypes(d.Parameters) + ")"
		r.Visibility = d.Visibility
	}
	b.lines(&r, n)
	return r
}

func (b *Builder) builtinRef(call *solidity.FunctionCall, member string) model.DeclarationRef {
	r := model.DeclarationRef{
		ID:           call.ID(),
		Name:         member,
		Kind:         "builtin",
		Src:          call.Src().String(),
		AbsolutePath: b.idx.Path(call.ID()),
	}
	if owner := b.idx.Owner(call.ID()); owner != nil {
		r.Contract = owner.Name
	}
	b.lines(&r, call)
	return r
}

func (b *Builder) lines(r *model.DeclarationRef, n solidity.Node) {
	u := b.idx.Unit(n.ID())
	if u == nil || u.Source == "" {
		return
	}
	src := n.Src()
	r.StartLine, r.EndLine = util.LineRange(u.Source, src.Start, src.Length)
}

func joinTypes(p *solidity.ParameterList) string {
	out := ""
	for i, t := range p.TypeStrings() {
		if i > 0 {
			out += ","
		}
		out += t
	}
	return out
}
