package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/xab-mack/contractscope/internal/analysis"
	"github.com/xab-mack/contractscope/internal/callgraph"
	"github.com/xab-mack/contractscope/internal/layout"
	"github.com/xab-mack/contractscope/internal/model"
	"github.com/xab-mack/contractscope/internal/plugins"
	"github.com/xab-mack/contractscope/internal/solidity"
)

// analyzer runs the per-contract analyses over a shared, read-only project.
type analyzer struct {
	pctx      *analysis.ProjectContext
	req       model.Request
	collector *layout.Collector
	builder   *callgraph.Builder
	checks    *plugins.Registry
}

type outcome struct {
	report  *model.ContractReport
	err     error
	skipped bool
}

func newAnalyzer(pctx *analysis.ProjectContext, req model.Request, checks *plugins.Registry) *analyzer {
	return &analyzer{
		pctx:      pctx,
		req:       req,
		collector: layout.NewCollector(pctx.Index),
		builder: callgraph.NewBuilder(pctx.Index, callgraph.Options{
			IncludeDeps:    req.IncludeDeps,
			IgnorePrefixes: req.IgnorePrefixes,
			NoStatic:       req.NoStatic,
			MaxDepth:       req.MaxDepth,
		}),
		checks: checks,
	}
}

func (a *analyzer) stub(c *solidity.ContractDefinition) *model.ContractReport {
	return &model.ContractReport{
		Name:         c.Name,
		AbsolutePath: a.pctx.Index.Path(c.ID()),
		Kind:         c.ContractKind,
		CallTrees:    []*model.CallNode{},
	}
}

// analyze builds the report of one contract. A layout failure still yields
// call trees; a panic yields a bare report. Both are returned as errors.
func (a *analyzer) analyze(ctx context.Context, c *solidity.ContractDefinition) (out outcome) {
	rep := a.stub(c)
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic analyzing %s: %v\n%s", c.Name, r, debug.Stack())
			err := fmt.Errorf("panic: %v", r)
			bare := a.stub(c)
			bare.Diagnostics = []model.Diagnostic{{
				Severity: model.SeverityError,
				Code:     model.CodeAnalyzeFailed,
				Message:  err.Error(),
				Contract: c.Name,
				Path:     bare.AbsolutePath,
			}}
			out = outcome{report: bare, err: err}
		}
	}()

	lay, layoutErr := a.collector.Build(c)
	rep.Layout = lay
	if layoutErr != nil {
		rep.Diagnostics = append(rep.Diagnostics, a.layoutDiagnostic(c, layoutErr))
	}

	roots := a.roots(c)
	for _, fn := range roots {
		rep.CallTrees = append(rep.CallTrees, a.builder.Build(fn))
	}
	rep.Diagnostics = append(rep.Diagnostics, unresolvedDiagnostics(rep)...)
	rep.Elements = a.elements(c)
	rep.Stats = stats(rep.CallTrees)
	rep.Diagnostics = append(rep.Diagnostics, a.checks.Run(ctx, a.pctx, c, rep)...)

	if layoutErr != nil {
		rep.Diagnostics = calibrateDiagnostics(rep.Diagnostics)
		return outcome{report: rep, err: layoutErr}
	}
	if len(roots) == 0 {
		rep.Diagnostics = append(rep.Diagnostics, model.Diagnostic{
			Severity: model.SeverityInfo,
			Code:     model.CodeNoRoots,
			Message:  "no public or external state-changing functions",
			Contract: c.Name,
			Path:     rep.AbsolutePath,
		})
		rep.Diagnostics = calibrateDiagnostics(rep.Diagnostics)
		return outcome{report: rep, skipped: true}
	}
	rep.Diagnostics = calibrateDiagnostics(rep.Diagnostics)
	return outcome{report: rep}
}

func (a *analyzer) layoutDiagnostic(c *solidity.ContractDefinition, err error) model.Diagnostic {
	d := model.Diagnostic{
		Severity: model.SeverityError,
		Code:     model.CodeLayoutFailed,
		Message:  err.Error(),
		Contract: c.Name,
		Path:     a.pctx.Index.Path(c.ID()),
	}
	if t, ok := layout.IsUnknownType(err); ok {
		d.Code = model.CodeUnknownType
		d.Message = fmt.Sprintf("cannot size type %q: %s", t, err)
	}
	return d
}

// roots returns the entry points of c, most-derived first. A function is an
// entry point when it is implemented, public or external, and (unless
// IncludeAll) not pure or view. Overridden functions appear once.
func (a *analyzer) roots(c *solidity.ContractDefinition) []*solidity.FunctionDefinition {
	var out []*solidity.FunctionDefinition
	seen := map[string]bool{}
	for _, base := range a.pctx.Index.Bases(c) {
		for _, n := range base.Nodes {
			fn, ok := n.(*solidity.FunctionDefinition)
			if !ok || !a.isRoot(fn) {
				continue
			}
			key := strings.Join([]string{fn.Kind, fn.Signature(), fn.Visibility, fn.StateMutability}, "|")
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, fn)
		}
	}
	return out
}

func (a *analyzer) isRoot(fn *solidity.FunctionDefinition) bool {
	switch fn.Kind {
	case "function", "fallback", "receive":
	default:
		return false
	}
	if !fn.Implemented || fn.Body == nil {
		return false
	}
	if fn.Visibility != "public" && fn.Visibility != "external" {
		return false
	}
	if a.req.IncludeAll {
		return true
	}
	return fn.StateMutability != "pure" && fn.StateMutability != "view"
}

// elements lists the events, errors, structs, enums and value types
// declared across c's linearization, most-derived first.
func (a *analyzer) elements(c *solidity.ContractDefinition) []model.Element {
	out := []model.Element{}
	for _, base := range a.pctx.Index.Bases(c) {
		for _, n := range base.Nodes {
			e := model.Element{DeclaredIn: base.Name, AbsolutePath: a.pctx.Index.Path(n.ID())}
			switch d := n.(type) {
			case *solidity.EventDefinition:
				e.Kind, e.Name = "event", d.Name
				e.Signature = d.Name + "(" + strings.Join(d.Parameters.TypeStrings(), ",") + ")"
			case *solidity.ErrorDefinition:
				e.Kind, e.Name = "error", d.Name
				e.Signature = d.Name + "(" + strings.Join(d.Parameters.TypeStrings(), ",") + ")"
			case *solidity.StructDefinition:
				e.Kind, e.Name = "struct", d.Name
			case *solidity.EnumDefinition:
				e.Kind, e.Name = "enum", d.Name
				e.Signature = d.Name + "{" + strings.Join(d.Values, ",") + "}"
			case *solidity.UserDefinedValueTypeDefinition:
				e.Kind, e.Name = "type", d.Name
				if d.UnderlyingType != nil {
					e.Signature = d.UnderlyingType.Types().TypeString
				}
			default:
				continue
			}
			out = append(out, e)
		}
	}
	return out
}

func unresolvedDiagnostics(rep *model.ContractReport) []model.Diagnostic {
	var out []model.Diagnostic
	seen := map[int64]bool{}
	var visit func(root, n *model.CallNode)
	visit = func(root, n *model.CallNode) {
		for _, ch := range n.Children {
			if ch.Unresolved && !seen[ch.Ref.ID] {
				seen[ch.Ref.ID] = true
				out = append(out, model.Diagnostic{
					Severity:  model.SeverityWarning,
					Code:      model.CodeUnresolved,
					Message:   fmt.Sprintf("call to %s (declaration %d) cannot be resolved", ch.Ref.Name, ch.Ref.ID),
					Contract:  rep.Name,
					Path:      root.Ref.AbsolutePath,
					Entity:    root.Ref.Signature,
					StartLine: root.Ref.StartLine,
					EndLine:   root.Ref.EndLine,
				})
			}
			visit(root, ch)
		}
	}
	for _, root := range rep.CallTrees {
		visit(root, root)
	}
	return out
}

func stats(trees []*model.CallNode) model.Stats {
	s := model.Stats{Roots: len(trees), ByType: map[model.CallType]int{}}
	for _, t := range trees {
		s.Nodes += t.Count()
		t.Tally(s.ByType)
	}
	return s
}
