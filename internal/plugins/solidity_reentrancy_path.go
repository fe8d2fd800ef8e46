package plugins

import (
	"context"
	"fmt"
	"strings"

	"github.com/xab-mack/contractscope/internal/analysis"
	"github.com/xab-mack/contractscope/internal/model"
	"github.com/xab-mack/contractscope/internal/solidity"
)

// solidityReentrancyPath flags state-changing entry points that reach an
// external call without passing through a reentrancy guard modifier.
type solidityReentrancyPath struct{}

func (d *solidityReentrancyPath) Meta() model.RuleMeta {
	return model.RuleMeta{ID: model.CodeUnguardedCall, Title: "External call reachable without a reentrancy guard", Severity: model.SeverityWarning}
}

func (d *solidityReentrancyPath) Analyze(ctx context.Context, pctx *analysis.ProjectContext, c *solidity.ContractDefinition, rep *model.ContractReport) []model.Diagnostic {
	var out []model.Diagnostic
	for _, root := range rep.CallTrees {
		switch root.Ref.StateMutability {
		case "view", "pure":
			continue
		}
		if guarded(root) {
			continue
		}
		site := find(root, func(n *model.CallNode) bool {
			return n.CallType.IsExternal() && n.CallType != model.CallStaticcall
		})
		if site == nil {
			continue
		}
		out = append(out, rootDiagnostic(d.Meta(), rep, root, site,
			fmt.Sprintf("%s reaches external call %s without a reentrancy guard", root.Ref.Signature, site.Ref.Name)))
	}
	return out
}

// guarded reports whether one of root's modifiers is a reentrancy guard.
func guarded(root *model.CallNode) bool {
	for _, ch := range root.Children {
		if ch.Ref.Kind == "modifier" && strings.Contains(strings.ToLower(ch.Ref.Name), "nonreentrant") {
			return true
		}
	}
	return false
}
