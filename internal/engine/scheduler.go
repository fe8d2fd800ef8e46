package engine

import (
	"context"
	"sync"

	"github.com/xab-mack/contractscope/internal/solidity"
)

// schedule analyzes contracts with at most e.workers running at once.
// Outcomes keep the order of contracts. Once ctx is done no further
// contracts are started; those are recorded as failed with ctx's error.
func (e *Engine) schedule(ctx context.Context, a *analyzer, contracts []*solidity.ContractDefinition) []outcome {
	out := make([]outcome, len(contracts))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.workers)
	for i, c := range contracts {
		if ctx.Err() != nil {
			out[i] = outcome{report: a.stub(c), err: ctx.Err()}
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			out[i] = outcome{report: a.stub(c), err: ctx.Err()}
			continue
		}
		wg.Add(1)
		go func(i int, c *solidity.ContractDefinition) {
			defer wg.Done()
			defer func() { <-sem }()
			out[i] = a.analyze(ctx, c)
			log.Debugf("analyzed %s", c.Name)
		}(i, c)
	}
	wg.Wait()
	return out
}
