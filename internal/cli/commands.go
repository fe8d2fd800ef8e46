package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/xab-mack/contractscope/internal/config"
	"github.com/xab-mack/contractscope/internal/engine"
	"github.com/xab-mack/contractscope/internal/model"
	"github.com/xab-mack/contractscope/internal/report"
	"github.com/xab-mack/contractscope/internal/tui"
)

var log = commonlog.GetLogger("contractscope.cli")

func AddCommands(root *cobra.Command) {
	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newLayoutCmd())
	root.AddCommand(newCallsCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newRulesCmd())
}

// analyzeFlags are shared by the commands that run an analysis. Flags the
// user set override the project config.
type analyzeFlags struct {
	format      string
	out         string
	contracts   []string
	includeDeps bool
	includeAll  bool
	noStatic    bool
	maxDepth    int
	solc        string
	timeoutMs   int
	cache       bool
}

func (f *analyzeFlags) register(cmd *cobra.Command) {
	def := config.Default()
	fl := cmd.Flags()
	fl.StringVarP(&f.format, "format", "f", def.Format, "Output format: text|json|yaml|cbor|sarif")
	fl.StringVarP(&f.out, "out", "o", "", "Write the report to a file instead of stdout")
	fl.StringArrayVar(&f.contracts, "contract", nil, "Analyze only the named contract (repeatable)")
	fl.BoolVar(&f.includeDeps, "include-deps", false, "Expand calls into dependency and test paths")
	fl.BoolVar(&f.includeAll, "include-all", false, "Also use view and pure functions as roots")
	fl.BoolVar(&f.noStatic, "no-static", false, "Treat calls to view and pure functions as internal rather than high-level")
	fl.IntVar(&f.maxDepth, "max-depth", def.MaxDepth, "Maximum call tree depth")
	fl.StringVar(&f.solc, "solc", def.Solc, "Compiler used for .sol inputs")
	fl.IntVar(&f.timeoutMs, "timeout-ms", def.TimeoutMs, "Compiler time budget in milliseconds")
	fl.BoolVar(&f.cache, "cache", false, "Reuse and store results in the on-disk cache")
}

func (f *analyzeFlags) request(cmd *cobra.Command, path string) (model.Request, report.Format, error) {
	cfg, cfgPath, err := config.Load(path)
	if err != nil {
		return model.Request{}, "", err
	}
	if cfgPath != "" {
		log.Infof("using config %s", cfgPath)
	}
	fl := cmd.Flags()
	if fl.Changed("format") {
		cfg.Format = f.format
	}
	if fl.Changed("contract") {
		cfg.Contracts = f.contracts
	}
	if fl.Changed("include-deps") {
		cfg.IncludeDeps = f.includeDeps
	}
	if fl.Changed("include-all") {
		cfg.IncludeAll = f.includeAll
	}
	if fl.Changed("no-static") {
		cfg.NoStatic = f.noStatic
	}
	if fl.Changed("max-depth") {
		cfg.MaxDepth = f.maxDepth
	}
	if fl.Changed("solc") {
		cfg.Solc = f.solc
	}
	if fl.Changed("timeout-ms") {
		cfg.TimeoutMs = f.timeoutMs
	}
	if fl.Changed("cache") {
		cfg.Cache = f.cache
	}
	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return model.Request{}, "", err
	}
	return model.Request{
		Path:           path,
		Contracts:      cfg.Contracts,
		IncludeDeps:    cfg.IncludeDeps,
		IncludeAll:     cfg.IncludeAll,
		NoStatic:       cfg.NoStatic,
		MaxDepth:       cfg.MaxDepth,
		IgnorePrefixes: cfg.IgnorePrefixes,
		SolcPath:       cfg.Solc,
		Timeout:        time.Duration(cfg.TimeoutMs) * time.Millisecond,
		UseCache:       cfg.Cache,
	}, format, nil
}

func (f *analyzeFlags) analyze(cmd *cobra.Command, args []string) (*model.Result, report.Format, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	req, format, err := f.request(cmd, path)
	if err != nil {
		return nil, "", err
	}
	result, err := engine.New().Analyze(cmd.Context(), req)
	return result, format, err
}

// run analyzes and renders the selected view. A partial result from an
// interrupted run is still rendered before its error is returned.
func (f *analyzeFlags) run(cmd *cobra.Command, args []string, view report.View) (*model.Result, error) {
	result, format, err := f.analyze(cmd, args)
	if result == nil {
		return nil, err
	}
	if werr := f.write(cmd, func(w io.Writer) error { return report.Render(w, result, format, view) }); werr != nil {
		return result, werr
	}
	return result, err
}

func (f *analyzeFlags) write(cmd *cobra.Command, render func(io.Writer) error) error {
	if f.out == "" {
		return render(cmd.OutOrStdout())
	}
	file, err := os.Create(f.out)
	if err != nil {
		return err
	}
	if err := render(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func newAnalyzeCmd() *cobra.Command {
	var (
		flags         analyzeFlags
		failOn        string
		useTUI        bool
		writeBaseline string
	)
	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Report storage layouts and call trees of the contracts in a compiler output",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var threshold model.Severity
			if failOn != "" {
				var err error
				if threshold, err = model.ParseSeverity(failOn); err != nil {
					return err
				}
			}
			if useTUI {
				result, _, err := flags.analyze(cmd, args)
				if err != nil {
					return err
				}
				return tui.Run(result)
			}

			result, err := flags.run(cmd, args, report.ViewFull)
			if err != nil {
				return err
			}
			if writeBaseline != "" {
				if err := engine.WriteBaseline(writeBaseline, result); err != nil {
					return err
				}
				log.Infof("wrote layout baseline %s", writeBaseline)
			}
			if threshold != "" {
				for _, c := range result.Contracts {
					for _, d := range c.Diagnostics {
						if d.Severity.Rank() >= threshold.Rank() {
							return fmt.Errorf("fail-on threshold met: %s %s in %s", d.Severity, d.Code, c.Name)
						}
					}
				}
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&failOn, "fail-on", "", "Fail if a diagnostic of this severity or higher is reported (info|warning|error)")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "Browse the result interactively")
	cmd.Flags().StringVar(&writeBaseline, "write-baseline", "", "Write a storage layout baseline file")
	return cmd
}

func newLayoutCmd() *cobra.Command {
	var (
		flags    analyzeFlags
		baseline string
	)
	cmd := &cobra.Command{
		Use:   "layout [path]",
		Short: "Print storage slot layouts, optionally checked against a baseline",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := flags.run(cmd, args, report.ViewLayout)
			if err != nil || baseline == "" {
				return err
			}
			changes, err := engine.CheckBaseline(baseline, result)
			if err != nil {
				return err
			}
			w := cmd.ErrOrStderr()
			if len(changes) == 0 {
				fmt.Fprintln(w, "no layout changes")
				return nil
			}
			incompatible := 0
			for _, c := range changes {
				mark := "  "
				if c.Incompatible() {
					mark = "! "
					incompatible++
				}
				fmt.Fprintln(w, mark+c.String())
			}
			if incompatible > 0 {
				return fmt.Errorf("%d incompatible layout changes against %s", incompatible, baseline)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&baseline, "baseline", "", "Compare layouts with a baseline written by analyze --write-baseline")
	return cmd
}

func newCallsCmd() *cobra.Command {
	var flags analyzeFlags
	cmd := &cobra.Command{
		Use:   "calls [path]",
		Short: "Print the call trees of each contract's entry points",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := flags.run(cmd, args, report.ViewCalls)
			return err
		},
	}
	flags.register(cmd)
	return cmd
}
