package engine

import (
	"context"
	"fmt"

	"github.com/xab-mack/contractscope/internal/analysis"
	"github.com/xab-mack/contractscope/internal/model"
	"github.com/xab-mack/contractscope/internal/solidity"
	"github.com/xab-mack/contractscope/internal/tools"
)

// compileSource runs the external compiler on a .sol file within the
// request's time budget and decodes its AST output.
func compileSource(ctx context.Context, req model.Request, file string) ([]*solidity.SourceUnit, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	raw, err := tools.CompileAST(ctx, req.SolcPath, file)
	if err != nil {
		return nil, fmt.Errorf("failed to compile: %w", err)
	}
	units, err := solidity.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	analysis.AttachSources(units, file)
	return units, nil
}
