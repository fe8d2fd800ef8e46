package solidity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("contractscope.solidity")

// ErrNoAST is returned by Parse when a JSON document holds no recognizable AST.
var ErrNoAST = errors.New("no solidity AST found")

// ErrInvalidJSON is returned by Parse when the input is not JSON at all.
var ErrInvalidJSON = errors.New("invalid compiler JSON")

// LoadFile reads a compiler output file and returns its source units.
func LoadFile(path string) ([]*SourceUnit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	units, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return units, nil
}

// Parse decodes compiler output into source units. Accepted shapes are
// standard-json output, hardhat/foundry build-info (which also carries the
// sources), solc --combined-json ast, a foundry per-contract artifact and a
// bare SourceUnit.
func Parse(data []byte) ([]*SourceUnit, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrNoAST)
	}

	if doc["nodeType"] == "SourceUnit" {
		u, err := unit(doc, "")
		if err != nil {
			return nil, err
		}
		return []*SourceUnit{u}, nil
	}
	if ast, ok := doc["ast"].(map[string]any); ok {
		u, err := unit(ast, "")
		if err != nil {
			return nil, err
		}
		return []*SourceUnit{u}, nil
	}

	contents := map[string]string{}
	sources, _ := doc["sources"].(map[string]any)
	if out, ok := doc["output"].(map[string]any); ok {
		sources, _ = out["sources"].(map[string]any)
		if in, ok := doc["input"].(map[string]any); ok {
			insrc, _ := in["sources"].(map[string]any)
			for path, v := range insrc {
				if m, ok := v.(map[string]any); ok {
					contents[path], _ = m["content"].(string)
				}
			}
		}
	}
	if len(sources) == 0 {
		return nil, ErrNoAST
	}

	paths := make([]string, 0, len(sources))
	for p := range sources {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var units []*SourceUnit
	for _, path := range paths {
		entry, _ := sources[path].(map[string]any)
		ast, ok := entry["ast"].(map[string]any)
		if !ok {
			ast, ok = entry["AST"].(map[string]any)
		}
		if !ok {
			log.Debugf("source %s carries no AST", path)
			continue
		}
		u, err := unit(ast, contents[path])
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", path, err)
		}
		if u.AbsolutePath == "" {
			u.AbsolutePath = path
		}
		units = append(units, u)
	}
	if len(units) == 0 {
		return nil, ErrNoAST
	}
	return units, nil
}

func unit(raw map[string]any, content string) (*SourceUnit, error) {
	n, err := DecodeNode(raw)
	if err != nil {
		return nil, err
	}
	u, ok := n.(*SourceUnit)
	if !ok {
		return nil, fmt.Errorf("expected SourceUnit, got %s", n.NodeType())
	}
	u.Source = content
	return u, nil
}
