package engine

import (
	"fmt"
	"strings"

	"github.com/xab-mack/contractscope/internal/analysis"
	"github.com/xab-mack/contractscope/internal/model"
	"github.com/xab-mack/contractscope/internal/solidity"
)

// selectContracts returns the contracts to analyze in unit order. Without a
// name filter that is every `contract` kind definition, abstract ones
// included, outside ignored paths and not suppressed inline. Named contracts are taken from anywhere, libraries
// included, but interfaces have nothing to analyze and are never selected.
func selectContracts(pctx *analysis.ProjectContext, req model.Request) ([]*solidity.ContractDefinition, error) {
	if len(req.Contracts) > 0 {
		return filterByName(pctx, req.Contracts)
	}
	var out []*solidity.ContractDefinition
	for _, c := range pctx.Index.Contracts() {
		if c.ContractKind != "contract" {
			continue
		}
		if pctx.IsIgnored(pctx.Index.Path(c.ID())) {
			continue
		}
		if hasInlineSuppression(pctx, c) {
			log.Infof("skipping %s: suppressed inline", c.Name)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// filterByName keeps the named contracts; a name matching nothing is an
// error.
func filterByName(pctx *analysis.ProjectContext, names []string) ([]*solidity.ContractDefinition, error) {
	wanted := map[string]bool{}
	for _, n := range names {
		wanted[strings.TrimSpace(n)] = true
	}
	found := map[string]bool{}
	var out []*solidity.ContractDefinition
	for _, c := range pctx.Index.Contracts() {
		if !wanted[c.Name] || c.ContractKind == "interface" {
			continue
		}
		found[c.Name] = true
		out = append(out, c)
	}
	var missing []string
	for _, n := range names {
		if n = strings.TrimSpace(n); !found[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("contract not found: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
