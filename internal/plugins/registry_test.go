package plugins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xab-mack/contractscope/internal/analysis"
	"github.com/xab-mack/contractscope/internal/model"
	"github.com/xab-mack/contractscope/internal/solidity"
	"github.com/xab-mack/contractscope/internal/solidity/soltest"
)

func node(name, kind string, t model.CallType, children ...*model.CallNode) *model.CallNode {
	return &model.CallNode{
		Ref:      model.DeclarationRef{Name: name, Kind: kind, Signature: name + "()", AbsolutePath: "src/Vault.sol", StartLine: 10, EndLine: 12},
		CallType: t,
		Children: children,
	}
}

func codes(ds []model.Diagnostic) []string {
	var out []string
	for _, d := range ds {
		out = append(out, d.Code)
	}
	return out
}

func emptyContext(t *testing.T) (*analysis.ProjectContext, *solidity.ContractDefinition) {
	t.Helper()
	b := soltest.New()
	c := b.Contract("Vault", nil)
	units, _, err := soltest.Decode(b.File("src/Vault.sol", c))
	require.NoError(t, err)
	pctx := analysis.NewProjectContext(".", nil, units, nil)
	return pctx, pctx.Index.Lookup(soltest.ID(c)).(*solidity.ContractDefinition)
}

func TestCallTreeChecks(t *testing.T) {
	pctx, c := emptyContext(t)
	delegate := node("delegatecall", "builtin", model.CallDelegatecall)
	delegate.Ref.StartLine = 40
	rep := &model.ContractReport{
		Name:   "Vault",
		Layout: &model.Layout{},
		CallTrees: []*model.CallNode{
			node("execute", "function", model.CallInternal, node("_forward", "function", model.CallInternal, delegate)),
			node("withdraw", "function", model.CallInternal,
				node("nonReentrant", "modifier", model.CallInternal),
				node("transfer", "builtin", model.CallTransfer)),
			node("sync", "function", model.CallInternal, node("balanceOf", "function", model.CallHighLevel)),
			node("peek", "function", model.CallInternal, node("staticcall", "builtin", model.CallStaticcall)),
		},
	}
	reg := NewRegistry()
	reg.RegisterBuiltin()
	ds := reg.Run(context.Background(), pctx, c, rep)

	// withdraw is guarded and peek only reads.
	assert.ElementsMatch(t, []string{
		model.CodeDelegatecall, model.CodeUnguardedCall,
		model.CodeGasStipend,
		model.CodeUnguardedCall,
	}, codes(ds))

	for _, d := range ds {
		assert.NotEmpty(t, d.Fingerprint)
		assert.Equal(t, "Vault", d.Contract)
		if d.Code == model.CodeDelegatecall {
			assert.Equal(t, 40, d.StartLine, "points at the delegatecall site")
			assert.Equal(t, "execute()", d.Entity)
		}
	}
}

func TestReentrancySkipsViews(t *testing.T) {
	pctx, c := emptyContext(t)
	root := node("quote", "function", model.CallInternal, node("getReserves", "function", model.CallHighLevel))
	root.Ref.StateMutability = "view"
	rep := &model.ContractReport{Name: "Vault", CallTrees: []*model.CallNode{root}}
	assert.Empty(t, (&solidityReentrancyPath{}).Analyze(context.Background(), pctx, c, rep))
}

func TestStorageGap(t *testing.T) {
	b := soltest.New()
	initializable := b.Contract("OwnableUpgradeable", nil, b.Function("__Ownable_init", "internal", "nonpayable", nil))
	plain := b.Contract("Plain", nil, b.StateVar("x", "uint256"))
	withInit := b.Contract("Proxyish", nil, b.Function("initialize", "external", "nonpayable", nil))
	upgr := b.Contract("Vault", []soltest.N{initializable})
	units, _, err := soltest.Decode(b.File("src/Vault.sol", initializable, plain, withInit, upgr))
	require.NoError(t, err)
	pctx := analysis.NewProjectContext(".", nil, units, nil)
	def := func(n soltest.N) *solidity.ContractDefinition {
		return pctx.Index.Lookup(soltest.ID(n)).(*solidity.ContractDefinition)
	}
	chk := &solidityStorageGap{}
	ctx := context.Background()

	noGap := &model.ContractReport{Name: "Vault", Layout: &model.Layout{Variables: []model.Member{{Name: "owner"}}}}
	ds := chk.Analyze(ctx, pctx, def(upgr), noGap)
	require.Len(t, ds, 1)
	assert.Equal(t, model.CodeStorageGap, ds[0].Code)
	assert.Equal(t, "src/Vault.sol", ds[0].Path)

	withGap := &model.ContractReport{Name: "Vault", Layout: &model.Layout{Variables: []model.Member{{Name: "owner"}, {Name: "__gap"}}}}
	assert.Empty(t, chk.Analyze(ctx, pctx, def(upgr), withGap))

	assert.Len(t, chk.Analyze(ctx, pctx, def(withInit), &model.ContractReport{Name: "Proxyish", Layout: &model.Layout{}}), 1)
	assert.Empty(t, chk.Analyze(ctx, pctx, def(plain), &model.ContractReport{Name: "Plain", Layout: &model.Layout{}}))

	failed := &model.ContractReport{Name: "Vault", Layout: &model.Layout{Error: "layout of Vault: unknown type"}}
	assert.Empty(t, chk.Analyze(ctx, pctx, def(upgr), failed))
}
