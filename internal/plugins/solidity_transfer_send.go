package plugins

import (
	"context"
	"fmt"

	"github.com/xab-mack/contractscope/internal/analysis"
	"github.com/xab-mack/contractscope/internal/model"
	"github.com/xab-mack/contractscope/internal/solidity"
)

// solidityTransferSend flags usage of transfer/send which rely on 2300 gas stipend
type solidityTransferSend struct{}

func (d *solidityTransferSend) Meta() model.RuleMeta {
	return model.RuleMeta{ID: model.CodeGasStipend, Title: "Use of transfer/send (gas stipend)", Severity: model.SeverityInfo}
}

func (d *solidityTransferSend) Analyze(ctx context.Context, pctx *analysis.ProjectContext, c *solidity.ContractDefinition, rep *model.ContractReport) []model.Diagnostic {
	var out []model.Diagnostic
	for _, root := range rep.CallTrees {
		site := find(root, func(n *model.CallNode) bool {
			return n.CallType == model.CallTransfer || n.CallType == model.CallSend
		})
		if site == nil {
			continue
		}
		out = append(out, rootDiagnostic(d.Meta(), rep, root, site,
			fmt.Sprintf("%s uses %s, which forwards only 2300 gas", root.Ref.Signature, site.Ref.Name)))
	}
	return out
}
