package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/xab-mack/contractscope/internal/callgraph"
)

// File names searched for, in order of preference.
const (
	TOMLFile = ".contractscope.toml"
	JSONFile = ".contractscope.json"
)

type Config struct {
	// Contracts limits analysis to the named contracts.
	Contracts      []string `toml:"contracts" json:"contracts"`
	IgnorePrefixes []string `toml:"ignorePrefixes" json:"ignorePrefixes"`
	IncludeDeps    bool     `toml:"includeDeps" json:"includeDeps"`
	IncludeAll     bool     `toml:"includeAll" json:"includeAll"`
	NoStatic       bool     `toml:"noStatic" json:"noStatic"`
	MaxDepth       int      `toml:"maxDepth" json:"maxDepth"`
	Solc           string   `toml:"solc" json:"solc"`
	TimeoutMs      int      `toml:"timeoutMs" json:"timeoutMs"`
	Format         string   `toml:"format" json:"format"`
	Cache          bool     `toml:"cache" json:"cache"`
}

func Default() Config {
	return Config{
		IgnorePrefixes: append([]string(nil), callgraph.DefaultIgnorePrefixes...),
		MaxDepth:       callgraph.DefaultMaxDepth,
		Solc:           "solc",
		TimeoutMs:      30000,
		Format:         "text",
	}
}

// Load searches upwards from start for a config file and merges it over the
// defaults. It returns the path of the file used, or "" when none exists.
func Load(start string) (Config, string, error) {
	cfg := Default()
	dir, err := filepath.Abs(start)
	if err != nil {
		return cfg, "", err
	}
	if fi, err := os.Stat(dir); err == nil && !fi.IsDir() {
		dir = filepath.Dir(dir)
	}
	for {
		for _, name := range []string{TOMLFile, JSONFile} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err != nil {
				continue
			}
			if err := decode(candidate, &cfg); err != nil {
				return cfg, candidate, err
			}
			return cfg, candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached root
			break
		}
		dir = parent
	}
	return cfg, "", nil
}

func decode(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if filepath.Ext(path) == ".toml" {
		if _, err := toml.Decode(string(b), cfg); err != nil {
			return fmt.Errorf("invalid config %s: %w", path, err)
		}
		return nil
	}
	if err := json.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	return nil
}

// Write stores cfg in dir as TOML, or as JSON when asJSON is set, and
// returns the written path.
func Write(dir string, cfg Config, asJSON bool) (string, error) {
	if asJSON {
		path := filepath.Join(dir, JSONFile)
		b, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return "", err
		}
		return path, os.WriteFile(path, b, 0o644)
	}
	path := filepath.Join(dir, TOMLFile)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return path, toml.NewEncoder(f).Encode(cfg)
}
