package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xab-mack/contractscope/internal/layout"
	"github.com/xab-mack/contractscope/internal/model"
)

func packed(t *testing.T, members ...model.Member) *model.Layout {
	t.Helper()
	slots, err := layout.Pack(members)
	require.NoError(t, err)
	return &model.Layout{Variables: members, Slots: slots}
}

func v(name, typ string, size int) model.Member {
	return model.Member{Name: name, Type: typ, Size: size}
}

func result(layouts map[string]*model.Layout) *model.Result {
	r := &model.Result{}
	for name, l := range layouts {
		r.Contracts = append(r.Contracts, &model.ContractReport{Name: name, Layout: l})
	}
	return r
}

func kinds(changes []LayoutChange) []ChangeKind {
	var out []ChangeKind
	for _, c := range changes {
		out = append(out, c.Kind)
	}
	return out
}

func TestBaselineRoundTripHasNoChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.json")
	r := result(map[string]*model.Layout{"Vault": packed(t, v("owner", "address", 20), v("paused", "bool", 1), v("total", "uint256", 32))})
	require.NoError(t, WriteBaseline(path, r))

	changes, err := CheckBaseline(path, r)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestBaselineDetectsChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.json")
	before := result(map[string]*model.Layout{
		"Vault": packed(t, v("owner", "address", 20), v("paused", "bool", 1), v("total", "uint256", 32)),
		"Gone":  packed(t, v("x", "uint256", 32)),
	})
	require.NoError(t, WriteBaseline(path, before))

	appended, err := CheckBaseline(path, result(map[string]*model.Layout{
		"Vault": packed(t, v("owner", "address", 20), v("isPaused", "bool", 1), v("total", "uint256", 32), v("fee", "uint16", 2)),
		"Gone":  packed(t, v("x", "uint256", 32)),
	}))
	require.NoError(t, err)
	assert.Equal(t, []ChangeKind{ChangeRenamed, ChangeAdded}, kinds(appended))
	for _, c := range appended {
		assert.False(t, c.Incompatible(), c.String())
	}

	inserted, err := CheckBaseline(path, result(map[string]*model.Layout{
		"Vault": packed(t, v("owner", "address", 20), v("paused", "bool", 1), v("fee", "address", 20), v("total", "uint256", 32)),
	}))
	require.NoError(t, err)
	assert.Equal(t, []ChangeKind{ChangeContractRemoved, ChangeRetyped, ChangeAdded}, kinds(inserted))
	assert.True(t, inserted[1].Incompatible())
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000001", inserted[1].Slot)

	removed, err := CheckBaseline(path, result(map[string]*model.Layout{
		"Vault": packed(t, v("owner", "address", 20), v("total", "uint256", 32)),
		"Gone":  {Error: "layout of Gone: unknown type"},
	}))
	require.NoError(t, err)
	assert.Equal(t, []ChangeKind{ChangeLayoutFailed, ChangeRemoved}, kinds(removed))
	for _, c := range removed {
		assert.True(t, c.Incompatible(), c.String())
	}
}

func TestBaselineOverlap(t *testing.T) {
	old := entries(packed(t, v("a", "uint128", 16), v("b", "uint128", 16)))
	cur := entries(packed(t, v("a", "uint64", 8), v("c", "uint64", 8), v("b", "uint128", 16)))
	changes := diffEntries("Pool", old, cur)
	assert.Equal(t, []ChangeKind{ChangeRetyped, ChangeOverlapping}, kinds(changes))
	assert.Equal(t, "uint128 a", changes[1].Old)

	old = entries(packed(t, v("a", "bool", 1), v("b", "uint256", 32)))
	cur = entries(packed(t, v("a", "bool", 1), v("c", "bool", 1), v("b", "uint256", 32)))
	changes = diffEntries("Pool", old, cur)
	require.Equal(t, []ChangeKind{ChangeAdded}, kinds(changes))
	assert.False(t, changes[0].Incompatible())
	assert.Equal(t, 1, changes[0].Offset)
}

func TestBaselineStructFieldNames(t *testing.T) {
	p := &model.Parent{Type: "struct Vault.Pos", Name: "pos"}
	m := model.Member{Name: "amount", Type: "uint128", Size: 16, Parent: p}
	assert.Equal(t, "pos.amount", qualifiedName(m))
}

func TestCheckBaselineMissingFile(t *testing.T) {
	_, err := CheckBaseline(filepath.Join(t.TempDir(), "nope.json"), &model.Result{})
	assert.Error(t, err)
}
