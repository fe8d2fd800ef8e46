package analysis

import (
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"

	"github.com/xab-mack/contractscope/internal/solidity"
	"github.com/xab-mack/contractscope/internal/util"
)

var log = commonlog.GetLogger("contractscope.analysis")

// ProjectContext contains the loaded compilation and the ignore policy. It is
// shared read-only by the per-contract analyses.
type ProjectContext struct {
	RootPath string
	// Files are the compiler artifacts the units were loaded from.
	Files []string
	Units []*solidity.SourceUnit
	Index *solidity.Index

	IgnorePrefixes []string
}

// NewProjectContext indexes units. A unit whose absolute path was already
// seen is dropped, so artifacts that repeat a shared dependency do not
// duplicate its declarations.
func NewProjectContext(root string, files []string, units []*solidity.SourceUnit, ignore []string) *ProjectContext {
	seen := map[string]bool{}
	var kept []*solidity.SourceUnit
	for _, u := range units {
		if u.AbsolutePath != "" && seen[u.AbsolutePath] {
			log.Debugf("dropping duplicate unit %s", u.AbsolutePath)
			continue
		}
		seen[u.AbsolutePath] = true
		kept = append(kept, u)
	}
	return &ProjectContext{
		RootPath:       root,
		Files:          files,
		Units:          kept,
		Index:          solidity.NewIndex(kept),
		IgnorePrefixes: ignore,
	}
}

// IsIgnored reports whether path lies under an ignored prefix.
func (p *ProjectContext) IsIgnored(path string) bool {
	return util.HasPathPrefix(path, p.IgnorePrefixes)
}

// AttachSources fills in the source text of units whose compiler output did
// not carry it. The unit's path is tried as given, then relative to the
// artifact's directory and each of its parents. Units that cannot be found
// keep an empty source.
func AttachSources(units []*solidity.SourceUnit, artifact string) {
	dir := artifact
	if fi, err := os.Stat(artifact); err == nil && !fi.IsDir() {
		dir = filepath.Dir(artifact)
	}
	for _, u := range units {
		if u.Source != "" || u.AbsolutePath == "" {
			continue
		}
		if content, ok := readSource(u.AbsolutePath, dir); ok {
			u.Source = content
		} else {
			log.Debugf("no source text for %s", u.AbsolutePath)
		}
	}
}

func readSource(path, dir string) (string, bool) {
	if b, err := os.ReadFile(path); err == nil || filepath.IsAbs(path) {
		return string(b), err == nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		if b, err := os.ReadFile(filepath.Join(abs, filepath.FromSlash(path))); err == nil {
			return string(b), true
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", false
		}
		abs = parent
	}
}
