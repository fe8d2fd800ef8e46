package plugins

import (
	"context"
	"strings"

	"github.com/xab-mack/contractscope/internal/analysis"
	"github.com/xab-mack/contractscope/internal/model"
	"github.com/xab-mack/contractscope/internal/solidity"
	"github.com/xab-mack/contractscope/internal/util"
)

// solidityStorageGap checks for missing __gap in upgradeable contracts
type solidityStorageGap struct{}

func (d *solidityStorageGap) Meta() model.RuleMeta {
	return model.RuleMeta{ID: model.CodeStorageGap, Title: "Upgradeable contract missing storage gap", Severity: model.SeverityWarning}
}

var upgradeFunctions = map[string]bool{"upgradeTo": true, "upgradeToAndCall": true, "initialize": true}

func (d *solidityStorageGap) Analyze(ctx context.Context, pctx *analysis.ProjectContext, c *solidity.ContractDefinition, rep *model.ContractReport) []model.Diagnostic {
	if rep.Layout == nil || rep.Layout.Error != "" || !upgradeable(pctx.Index, c) {
		return nil
	}
	for _, v := range rep.Layout.Variables {
		if strings.HasPrefix(v.Name, "__gap") {
			return nil
		}
	}
	diag := model.Diagnostic{
		Severity: d.Meta().Severity,
		Code:     d.Meta().ID,
		Message:  "Upgradeable contract " + c.Name + " declares no __gap; adding state variables in a base shifts every later slot",
		Contract: c.Name,
		Path:     pctx.Index.Path(c.ID()),
	}
	if u := pctx.Index.Unit(c.ID()); u != nil && u.Source != "" {
		diag.StartLine, diag.EndLine = util.LineRange(u.Source, c.Src().Start, c.Src().Length)
	}
	return []model.Diagnostic{diag}
}

// upgradeable reports whether c inherits an *Upgradeable base or declares an
// upgrade or initializer entry point anywhere in its linearization.
func upgradeable(idx *solidity.Index, c *solidity.ContractDefinition) bool {
	for _, base := range idx.Bases(c) {
		if base != c && strings.HasSuffix(base.Name, "Upgradeable") {
			return true
		}
		for _, n := range base.Nodes {
			if fn, ok := n.(*solidity.FunctionDefinition); ok && upgradeFunctions[fn.Name] {
				return true
			}
		}
	}
	return false
}
