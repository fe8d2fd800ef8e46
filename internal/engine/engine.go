package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/tliron/commonlog"

	"github.com/xab-mack/contractscope/internal/analysis"
	"github.com/xab-mack/contractscope/internal/cache"
	"github.com/xab-mack/contractscope/internal/callgraph"
	"github.com/xab-mack/contractscope/internal/model"
	"github.com/xab-mack/contractscope/internal/plugins"
	"github.com/xab-mack/contractscope/internal/solidity"
)

var log = commonlog.GetLogger("contractscope.engine")

// ErrNoArtifacts is returned when a directory holds no compiler output.
var ErrNoArtifacts = errors.New("no compiler output found")

type Engine struct {
	cache    *cache.ASTCache
	registry *plugins.Registry
	workers  int
}

type Option func(*Engine)

// WithWorkers bounds the number of contracts analyzed concurrently.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithCache shares an AST cache between engines.
func WithCache(c *cache.ASTCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithRegistry replaces the built-in contract checks.
func WithRegistry(r *plugins.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

func New(opts ...Option) *Engine {
	cpu := runtime.NumCPU()
	if cpu < 2 {
		cpu = 2
	}
	reg := plugins.NewRegistry()
	reg.RegisterBuiltin()
	e := &Engine{cache: cache.NewASTCache(), registry: reg, workers: cpu}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Cache returns the engine's AST cache.
func (e *Engine) Cache() *cache.ASTCache { return e.cache }

// Analyze loads the compiler output at req.Path and analyzes the selected
// contracts. Per-contract failures are recorded in the result summary. If
// ctx ends early the partial result is returned together with the error.
func (e *Engine) Analyze(ctx context.Context, req model.Request) (*model.Result, error) {
	start := time.Now()
	req = withDefaults(req)

	files, err := discoverFiles(req.Path)
	if err != nil {
		return nil, err
	}
	var key string
	if req.UseCache {
		if key, err = resultKey(files, req); err != nil {
			log.Warningf("result cache disabled: %s", err)
		} else if r, ok := cache.LoadResult(key); ok {
			log.Infof("using cached result for %s", req.Path)
			return r, nil
		}
	}

	units, err := e.load(ctx, req, files)
	if err != nil {
		return nil, err
	}
	pctx := analysis.NewProjectContext(req.Path, files, units, req.IgnorePrefixes)
	contracts, err := selectContracts(pctx, req)
	if err != nil {
		return nil, err
	}
	log.Infof("analyzing %d contracts from %d units", len(contracts), len(pctx.Units))

	a := newAnalyzer(pctx, req, e.registry)
	outcomes := e.schedule(ctx, a, contracts)
	result := assemble(outcomes)
	result.Elapsed = time.Since(start)

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("analysis interrupted: %w", err)
	}
	if key != "" {
		if err := cache.StoreResult(key, result); err != nil {
			log.Warningf("failed to store result: %s", err)
		}
	}
	return result, nil
}

func withDefaults(req model.Request) model.Request {
	if req.Path == "" {
		req.Path = "."
	}
	if req.MaxDepth <= 0 {
		req.MaxDepth = callgraph.DefaultMaxDepth
	}
	if req.IgnorePrefixes == nil {
		req.IgnorePrefixes = callgraph.DefaultIgnorePrefixes
	}
	return req
}

// discoverFiles returns the artifacts to load. A directory yields its newest
// build-info file if it has one, and every JSON file otherwise.
func discoverFiles(root string) ([]string, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return []string{root}, nil
	}

	var artifacts, buildInfo []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			switch d.Name() {
			case "node_modules", ".git":
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(d.Name()) != ".json" {
			return nil
		}
		if filepath.Base(filepath.Dir(path)) == "build-info" {
			buildInfo = append(buildInfo, path)
			return nil
		}
		artifacts = append(artifacts, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(buildInfo) > 0 {
		return []string{newest(buildInfo)}, nil
	}
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("%s: %w", root, ErrNoArtifacts)
	}
	sort.Strings(artifacts)
	return artifacts, nil
}

func newest(paths []string) string {
	best := paths[0]
	var bestTime time.Time
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			continue
		}
		if fi.ModTime().After(bestTime) {
			best, bestTime = p, fi.ModTime()
		}
	}
	return best
}

func (e *Engine) load(ctx context.Context, req model.Request, files []string) ([]*solidity.SourceUnit, error) {
	var units []*solidity.SourceUnit
	for _, f := range files {
		load := loadArtifact
		if strings.EqualFold(filepath.Ext(f), ".sol") {
			load = func(path string) ([]*solidity.SourceUnit, error) { return compileSource(ctx, req, path) }
		}
		us, err := e.cache.Load(f, load)
		if err != nil {
			if len(files) > 1 && errors.Is(err, solidity.ErrNoAST) {
				log.Debugf("skipping %s: %s", f, err)
				continue
			}
			if len(files) > 1 && errors.Is(err, solidity.ErrInvalidJSON) {
				log.Warningf("skipping %s: %s", f, err)
				continue
			}
			return nil, err
		}
		units = append(units, us...)
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("%s: %w", req.Path, solidity.ErrNoAST)
	}
	return units, nil
}

func loadArtifact(path string) ([]*solidity.SourceUnit, error) {
	units, err := solidity.LoadFile(path)
	if err != nil {
		return nil, err
	}
	analysis.AttachSources(units, path)
	return units, nil
}

// resultKey hashes the artifacts together with every option that changes
// the result.
func resultKey(files []string, req model.Request) (string, error) {
	parts := []string{"contractscope-result-v1"}
	for _, f := range files {
		h, err := cache.HashFile(f)
		if err != nil {
			return "", err
		}
		parts = append(parts, f, h)
	}
	parts = append(parts,
		strings.Join(req.Contracts, ","),
		strings.Join(req.IgnorePrefixes, ","),
		fmt.Sprintf("deps=%t all=%t nostatic=%t depth=%d", req.IncludeDeps, req.IncludeAll, req.NoStatic, req.MaxDepth),
	)
	return cache.Key(parts...), nil
}

func assemble(outcomes []outcome) *model.Result {
	r := &model.Result{
		Contracts: make([]*model.ContractReport, 0, len(outcomes)),
		Summary:   model.Summary{Succeeded: []string{}, Skipped: []string{}, Failed: []model.Failure{}},
	}
	for _, o := range outcomes {
		r.Contracts = append(r.Contracts, o.report)
		switch {
		case o.err != nil:
			r.Summary.Failed = append(r.Summary.Failed, model.Failure{Name: o.report.Name, Message: o.err.Error()})
		case o.skipped:
			r.Summary.Skipped = append(r.Summary.Skipped, o.report.Name)
		default:
			r.Summary.Succeeded = append(r.Summary.Succeeded, o.report.Name)
		}
	}
	return r
}
