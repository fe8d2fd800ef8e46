package cache

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"github.com/xab-mack/contractscope/internal/solidity"
)

var log = commonlog.GetLogger("contractscope.cache")

// LoadFunc parses the artifact at path into source units.
type LoadFunc func(path string) ([]*solidity.SourceUnit, error)

type astEntry struct {
	modTime time.Time
	size    int64
	units   []*solidity.SourceUnit
}

// ASTCache keeps parsed units per artifact path. An entry is reused while
// the file's modification time and size are unchanged. Cached units are
// shared and must not be modified by callers.
type ASTCache struct {
	mu      sync.Mutex
	entries map[string]astEntry
	hits    int
	misses  int
}

func NewASTCache() *ASTCache {
	return &ASTCache{entries: map[string]astEntry{}}
}

// Load returns the units of path, calling load on a miss or a stale entry.
func (c *ASTCache) Load(path string, load LoadFunc) ([]*solidity.SourceUnit, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	c.mu.Lock()
	e, ok := c.entries[path]
	if ok && e.modTime.Equal(fi.ModTime()) && e.size == fi.Size() {
		c.hits++
		c.mu.Unlock()
		return e.units, nil
	}
	c.misses++
	c.mu.Unlock()

	units, err := load(path)
	if err != nil {
		return nil, err
	}
	log.Debugf("parsed %s (%d units)", path, len(units))

	c.mu.Lock()
	c.entries[path] = astEntry{modTime: fi.ModTime(), size: fi.Size(), units: units}
	c.mu.Unlock()
	return units, nil
}

// Invalidate drops the entry for key. An empty key clears the cache.
func (c *ASTCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if key == "" {
		c.entries = map[string]astEntry{}
		return
	}
	delete(c.entries, key)
}

// Stats returns the number of hits and misses so far.
func (c *ASTCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
