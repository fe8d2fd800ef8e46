package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xab-mack/contractscope/internal/model"
	"github.com/xab-mack/contractscope/internal/solidity"
)

func countingLoader(calls *int) LoadFunc {
	return func(path string) ([]*solidity.SourceUnit, error) {
		*calls++
		return []*solidity.SourceUnit{{AbsolutePath: path}}, nil
	}
}

func TestASTCacheReusesUntilModified(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	c := NewASTCache()
	calls := 0
	first, err := c.Load(path, countingLoader(&calls))
	require.NoError(t, err)
	second, err := c.Load(path, countingLoader(&calls))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Same(t, first[0], second[0])

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))
	_, err = c.Load(path, countingLoader(&calls))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	hits, misses := c.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 2, misses)
}

func TestASTCacheInvalidate(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.json")
	b := filepath.Join(dir, "b.json")
	for _, p := range []string{a, b} {
		require.NoError(t, os.WriteFile(p, []byte(`{}`), 0o644))
	}

	c := NewASTCache()
	calls := 0
	for _, p := range []string{a, b} {
		_, err := c.Load(p, countingLoader(&calls))
		require.NoError(t, err)
	}
	c.Invalidate(a)
	_, _ = c.Load(a, countingLoader(&calls))
	_, _ = c.Load(b, countingLoader(&calls))
	assert.Equal(t, 3, calls)

	c.Invalidate("")
	_, _ = c.Load(b, countingLoader(&calls))
	assert.Equal(t, 4, calls)
}

func TestASTCacheMissingFile(t *testing.T) {
	c := NewASTCache()
	calls := 0
	_, err := c.Load(filepath.Join(t.TempDir(), "missing.json"), countingLoader(&calls))
	assert.Error(t, err)
	assert.Zero(t, calls)
}

func TestResultStoreRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	key := Key("artifact-hash", "include-deps=false")
	assert.NotEqual(t, key, Key("artifact-hash", "include-deps=true"))
	_, ok := LoadResult(key)
	assert.False(t, ok)

	in := &model.Result{
		Contracts: []*model.ContractReport{{
			Name: "Vault",
			Kind: "contract",
			Layout: &model.Layout{Slots: []model.Slot{{
				Key:     "0x0000000000000000000000000000000000000000000000000000000000000000",
				Members: []model.Member{{Name: "owner", Type: "address", Size: 20}},
			}}},
			Stats: model.Stats{Roots: 1, Nodes: 2, ByType: map[model.CallType]int{model.CallHighLevel: 1}},
		}},
		Summary: model.Summary{Succeeded: []string{"Vault"}},
		Elapsed: 3 * time.Millisecond,
	}
	require.NoError(t, StoreResult(key, in))

	out, ok := LoadResult(key)
	require.True(t, ok)
	require.Len(t, out.Contracts, 1)
	assert.Equal(t, "Vault", out.Contracts[0].Name)
	assert.Equal(t, in.Contracts[0].Layout.Slots, out.Contracts[0].Layout.Slots)
	assert.Equal(t, 1, out.Contracts[0].Stats.ByType[model.CallHighLevel])
	assert.Equal(t, []string{"Vault"}, out.Summary.Succeeded)
	assert.Equal(t, in.Elapsed, out.Elapsed)
}

func TestLoadResultIgnoresCorruptEntries(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	key := Key("corrupt")
	require.NoError(t, Store(key+".cbor", []byte{0xff, 0x00, 0x13}))
	_, ok := LoadResult(key)
	assert.False(t, ok)
}
