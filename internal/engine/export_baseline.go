package engine

import "github.com/xab-mack/contractscope/internal/model"

// Exported wrappers for CLI use without import cycles
func WriteBaseline(path string, result *model.Result) error { return writeBaseline(path, result) }

// CheckBaseline diffs result's layouts against the baseline stored at path.
func CheckBaseline(path string, result *model.Result) ([]LayoutChange, error) {
	b, err := loadBaseline(path)
	if err != nil {
		return nil, err
	}
	return diffBaseline(b, result), nil
}
