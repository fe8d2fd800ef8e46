package engine

import "github.com/xab-mack/contractscope/internal/model"

// calibrateDiagnostics merges diagnostics repeating the same code, location
// and message, keeping the highest severity. Order of first occurrence is
// preserved.
func calibrateDiagnostics(in []model.Diagnostic) []model.Diagnostic {
	type key struct {
		code   string
		path   string
		start  int
		entity string
		msg    string
	}
	index := map[key]int{}
	var out []model.Diagnostic
	for _, d := range in {
		k := key{code: d.Code, path: d.Path, start: d.StartLine, entity: d.Entity, msg: d.Message}
		if i, ok := index[k]; ok {
			if d.Severity.Rank() > out[i].Severity.Rank() {
				out[i].Severity = d.Severity
			}
			continue
		}
		index[k] = len(out)
		out = append(out, d)
	}
	return out
}
