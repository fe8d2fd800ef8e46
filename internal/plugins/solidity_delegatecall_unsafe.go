package plugins

import (
	"context"
	"fmt"

	"github.com/xab-mack/contractscope/internal/analysis"
	"github.com/xab-mack/contractscope/internal/model"
	"github.com/xab-mack/contractscope/internal/solidity"
)

// solidityDelegatecallUnsafe flags entry points that can reach a delegatecall
type solidityDelegatecallUnsafe struct{}

func (d *solidityDelegatecallUnsafe) Meta() model.RuleMeta {
	return model.RuleMeta{ID: model.CodeDelegatecall, Title: "delegatecall reachable from an entry point", Severity: model.SeverityWarning}
}

func (d *solidityDelegatecallUnsafe) Analyze(ctx context.Context, pctx *analysis.ProjectContext, c *solidity.ContractDefinition, rep *model.ContractReport) []model.Diagnostic {
	var out []model.Diagnostic
	for _, root := range rep.CallTrees {
		site := find(root, func(n *model.CallNode) bool { return n.CallType == model.CallDelegatecall })
		if site == nil {
			continue
		}
		out = append(out, rootDiagnostic(d.Meta(), rep, root, site,
			fmt.Sprintf("%s can reach delegatecall; storage of %s is exposed to the callee", root.Ref.Signature, rep.Name)))
	}
	return out
}
