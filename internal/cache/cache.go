package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"github.com/xab-mack/contractscope/internal/model"
)

// Dir returns the cache directory path, creating it if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".contractscope", "cache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Key computes a unique key filename from its inputs (e.g. artifact hash +
// analysis options).
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HashFile returns the sha256 of a file's content.
func HashFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func Load(key string) ([]byte, bool) {
	dir, err := Dir()
	if err != nil {
		return nil, false
	}
	b, err := os.ReadFile(filepath.Join(dir, key))
	if err != nil {
		return nil, false
	}
	return b, true
}

func Store(key string, data []byte) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, key), data, 0o644)
}

// LoadResult returns a stored analysis result. Entries that fail to decode
// count as misses.
func LoadResult(key string) (*model.Result, bool) {
	b, ok := Load(key + ".cbor")
	if !ok {
		return nil, false
	}
	var r model.Result
	if err := cbor.Unmarshal(b, &r); err != nil {
		log.Warningf("discarding unreadable cache entry %s: %s", key, err)
		return nil, false
	}
	return &r, true
}

// StoreResult writes r under key.
func StoreResult(key string, r *model.Result) error {
	b, err := cbor.Marshal(r)
	if err != nil {
		return err
	}
	return Store(key+".cbor", b)
}
