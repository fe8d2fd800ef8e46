package plugins

import (
	"context"
	"path/filepath"

	"github.com/xab-mack/contractscope/internal/analysis"
	"github.com/xab-mack/contractscope/internal/model"
	"github.com/xab-mack/contractscope/internal/solidity"
	"github.com/xab-mack/contractscope/internal/util"
)

// Check inspects one analyzed contract. It reads the layout and call trees
// already attached to the report and must not modify them.
type Check interface {
	Meta() model.RuleMeta
	Analyze(ctx context.Context, pctx *analysis.ProjectContext, c *solidity.ContractDefinition, rep *model.ContractReport) []model.Diagnostic
}

type Registry struct{ checks []Check }

func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) Register(c Check) { r.checks = append(r.checks, c) }

func (r *Registry) RegisterBuiltin() {
	r.Register(&solidityStorageGap{})
	r.Register(&solidityDelegatecallUnsafe{})
	r.Register(&solidityTransferSend{})
	r.Register(&solidityReentrancyPath{})
}

// Run applies every check to one contract in registration order.
func (r *Registry) Run(ctx context.Context, pctx *analysis.ProjectContext, c *solidity.ContractDefinition, rep *model.ContractReport) []model.Diagnostic {
	var out []model.Diagnostic
	for _, chk := range r.checks {
		if ctx.Err() != nil {
			break
		}
		for _, d := range chk.Analyze(ctx, pctx, c, rep) {
			d.Path = filepath.ToSlash(d.Path)
			if d.Fingerprint == "" {
				d.Fingerprint = util.Fingerprint(d.Code, d.Path, d.StartLine, d.EndLine, d.Contract+"."+d.Entity)
			}
			out = append(out, d)
		}
	}
	return out
}

func (r *Registry) Checks() []Check { return r.checks }

// find returns the first node below root, in source order, matching pred.
func find(root *model.CallNode, pred func(*model.CallNode) bool) *model.CallNode {
	for _, ch := range root.Children {
		if pred(ch) {
			return ch
		}
		if n := find(ch, pred); n != nil {
			return n
		}
	}
	return nil
}

func rootDiagnostic(meta model.RuleMeta, rep *model.ContractReport, root, at *model.CallNode, msg string) model.Diagnostic {
	d := model.Diagnostic{
		Severity:  meta.Severity,
		Code:      meta.ID,
		Message:   msg,
		Contract:  rep.Name,
		Path:      root.Ref.AbsolutePath,
		Entity:    root.Ref.Signature,
		StartLine: root.Ref.StartLine,
		EndLine:   root.Ref.EndLine,
	}
	if at != nil && at.Ref.AbsolutePath != "" && at.Ref.StartLine > 0 {
		d.Path = at.Ref.AbsolutePath
		d.StartLine, d.EndLine = at.Ref.StartLine, at.Ref.EndLine
	}
	return d
}
