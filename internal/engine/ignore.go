package engine

import (
	"strings"

	"github.com/xab-mack/contractscope/internal/analysis"
	"github.com/xab-mack/contractscope/internal/solidity"
	"github.com/xab-mack/contractscope/internal/util"
)

// suppressionMarker excludes the contract declared on the following lines
// from default selection, e.g. `// contractscope:ignore test helper`.
const suppressionMarker = "contractscope:ignore"

// hasInlineSuppression looks at the lines just above the contract header
// for a suppression comment. It needs the unit's source text.
func hasInlineSuppression(pctx *analysis.ProjectContext, c *solidity.ContractDefinition) bool {
	u := pctx.Index.Unit(c.ID())
	if u == nil || u.Source == "" {
		return false
	}
	start, _ := util.LineRange(u.Source, c.Src().Start, 0)
	lines := strings.Split(u.Source, "\n")
	// window: 0-based indices
	from := start - 1 - 3
	if from < 0 {
		from = 0
	}
	to := start - 1
	if to >= len(lines) {
		to = len(lines) - 1
	}
	for i := from; i <= to; i++ {
		if strings.Contains(lines[i], suppressionMarker) {
			return true
		}
	}
	return false
}
