package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("contractscope.tools")

type Result struct {
	Tool     string
	Raw      []byte
	Err      error
	Duration time.Duration
}

func RunWithTimeout(ctx context.Context, tool string, args ...string) Result {
	start := time.Now()
	cmd := exec.CommandContext(ctx, tool, args...)
	out, err := cmd.Output()
	return Result{Tool: tool, Raw: out, Err: err, Duration: time.Since(start)}
}

// CompileAST runs solc on file and returns its --combined-json ast output.
func CompileAST(ctx context.Context, solc, file string) ([]byte, error) {
	if solc == "" {
		solc = "solc"
	}
	res := RunWithTimeout(ctx, solc, "--combined-json", "ast", file)
	log.Infof("compiled %s with %s in %s", file, solc, res.Duration)
	if res.Err != nil {
		return nil, compileError(ctx, solc, file, res.Err)
	}
	return res.Raw, nil
}

func compileError(ctx context.Context, solc, file string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s %s: %w", solc, file, ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if msg := strings.TrimSpace(string(exitErr.Stderr)); msg != "" {
			return fmt.Errorf("%s %s: %s: %w", solc, file, firstLine(msg), err)
		}
	}
	return fmt.Errorf("%s %s: %w", solc, file, err)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
