package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xab-mack/contractscope/internal/analysis"
	"github.com/xab-mack/contractscope/internal/model"
	"github.com/xab-mack/contractscope/internal/plugins"
	"github.com/xab-mack/contractscope/internal/solidity"
	"github.com/xab-mack/contractscope/internal/solidity/soltest"
)

const callFnType = "function (bytes memory) payable returns (bool,bytes memory)"

// fixture is a small foundry-like project: an Ownable base and a Vault in
// src/, an interface, a dependency under lib/ and a test contract.
func fixture() []soltest.N {
	b := soltest.New()

	transfer := b.Function("transfer", "external", "nonpayable", nil,
		soltest.Unimplemented(), soltest.WithParams("address", "uint256"), soltest.WithReturns("bool"))
	ierc20 := b.Interface("IERC20", transfer)

	safeMath := b.Library("SafeMath", b.Function("add", "internal", "pure", nil, soltest.WithReturns("uint256")))

	check := b.Function("_checkOwner", "internal", "view", nil)
	onlyOwner := b.Modifier("onlyOwner", b.Block(b.Call(b.Ident("_checkOwner", check, "function () view"))))
	ownable := b.Contract("Ownable", nil,
		b.StateVar("owner", "address"),
		check,
		onlyOwner,
		b.Function("transferOwnership", "public", "nonpayable", nil,
			soltest.WithParams("address"), soltest.WithModifiers(b.Invoke(onlyOwner))),
	)

	deposited := b.Event("Deposited", "address", "uint256")
	conv := b.Convert(b.Ident("IERC20", ierc20, "type(contract IERC20)"), b.IdentRef("token", 9000, "address"), "contract IERC20")
	vault := b.Contract("Vault", []soltest.N{ownable},
		b.StateVar("paused", "bool"),
		b.StateVar("total", "uint256"),
		b.StateVar("FEE", "uint256", soltest.WithConstant()),
		deposited,
		b.Function("deposit", "external", "payable", b.Block(
			b.Call(b.Member(conv, "transfer", transfer, "function (address,uint256) external returns (bool)")),
		), soltest.WithParams("uint256")),
		b.Function("withdraw", "external", "nonpayable", b.Block(
			b.Call(b.Options(b.Member(b.IdentRef("to", 9001, "address payable"), "call", nil, callFnType), "value")),
		)),
		b.Function("balanceOf", "public", "view", nil, soltest.WithParams("address"), soltest.WithReturns("uint256")),
	)
	empty := b.Contract("Empty", nil, b.Function("peek", "external", "view", nil))
	broken := b.Contract("Broken", nil,
		b.StateVar("weird", "Whatever"),
		b.Function("poke", "external", "nonpayable", nil),
	)
	helper := b.Contract("VaultTest", nil, b.Function("testDeposit", "public", "nonpayable", nil))

	return []soltest.N{
		b.File("src/Vault.sol", ownable, vault, empty, broken),
		b.File("src/IERC20.sol", ierc20),
		b.File("lib/math/SafeMath.sol", safeMath),
		b.File("test/Vault.t.sol", helper),
	}
}

func writeFixture(t *testing.T) string {
	t.Helper()
	data, err := soltest.Output(fixture()...)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func reportOf(t *testing.T, r *model.Result, name string) *model.ContractReport {
	t.Helper()
	for _, c := range r.Contracts {
		if c.Name == name {
			return c
		}
	}
	require.Failf(t, "missing report", "no report for %s", name)
	return nil
}

func rootNames(rep *model.ContractReport) []string {
	var out []string
	for _, tree := range rep.CallTrees {
		out = append(out, tree.Ref.Name)
	}
	return out
}

func diagCodes(rep *model.ContractReport) []string {
	var out []string
	for _, d := range rep.Diagnostics {
		out = append(out, d.Code)
	}
	return out
}

func TestAnalyzeProject(t *testing.T) {
	path := writeFixture(t)
	res, err := New(WithWorkers(2)).Analyze(context.Background(), model.Request{Path: path})
	require.NoError(t, err)

	var names []string
	for _, c := range res.Contracts {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Ownable", "Vault", "Empty", "Broken"}, names)
	assert.Equal(t, []string{"Ownable", "Vault"}, res.Summary.Succeeded)
	assert.Equal(t, []string{"Empty"}, res.Summary.Skipped)
	require.Len(t, res.Summary.Failed, 1)
	assert.Equal(t, "Broken", res.Summary.Failed[0].Name)
	assert.Contains(t, res.Summary.Failed[0].Message, "Whatever")

	vault := reportOf(t, res, "Vault")
	assert.Equal(t, "src/Vault.sol", vault.AbsolutePath)
	require.Len(t, vault.Layout.Slots, 2, spew.Sdump(vault.Layout))
	slot0 := vault.Layout.Slots[0].Members
	require.Len(t, slot0, 2)
	assert.Equal(t, "owner", slot0[0].Name)
	assert.Equal(t, "paused", slot0[1].Name)
	assert.Equal(t, 20, slot0[1].Offset)
	assert.Equal(t, "total", vault.Layout.Slots[1].Members[0].Name)
	require.Len(t, vault.Layout.Constants, 1)
	assert.Equal(t, "FEE", vault.Layout.Constants[0].Name)

	assert.Equal(t, []string{"deposit", "withdraw", "transferOwnership"}, rootNames(vault))
	deposit := vault.CallTrees[0]
	require.Len(t, deposit.Children, 1)
	assert.Equal(t, model.CallHighLevel, deposit.Children[0].CallType)
	withdraw := vault.CallTrees[1]
	require.Len(t, withdraw.Children, 1)
	assert.Equal(t, model.CallLowLevel, withdraw.Children[0].CallType)
	owner := vault.CallTrees[2]
	assert.Equal(t, []string{"onlyOwner"}, rootNames(&model.ContractReport{CallTrees: owner.Children}))

	assert.Equal(t, 3, vault.Stats.Roots)
	assert.Equal(t, 7, vault.Stats.Nodes)
	assert.Equal(t, map[model.CallType]int{model.CallHighLevel: 1, model.CallLowLevel: 1, model.CallInternal: 2}, vault.Stats.ByType)

	require.Len(t, vault.Elements, 1)
	assert.Equal(t, model.Element{Kind: "event", Name: "Deposited", Signature: "Deposited(address,uint256)", DeclaredIn: "Vault", AbsolutePath: "src/Vault.sol"}, vault.Elements[0])
	assert.Contains(t, diagCodes(vault), model.CodeUnguardedCall)

	empty := reportOf(t, res, "Empty")
	assert.Empty(t, empty.CallTrees)
	assert.Equal(t, []string{model.CodeNoRoots}, diagCodes(empty))

	broken := reportOf(t, res, "Broken")
	assert.Equal(t, []string{"poke"}, rootNames(broken), "call trees survive a layout failure")
	assert.Empty(t, broken.Layout.Slots)
	require.Len(t, broken.Layout.Variables, 1)
	assert.True(t, broken.Layout.Variables[0].Unsized)
	assert.Contains(t, diagCodes(broken), model.CodeUnknownType)
}

func TestAnalyzeIncludeAllAndNoStatic(t *testing.T) {
	path := writeFixture(t)
	res, err := New().Analyze(context.Background(), model.Request{Path: path, IncludeAll: true, Contracts: []string{"Vault", "Empty"}})
	require.NoError(t, err)
	require.Len(t, res.Contracts, 2)
	assert.Equal(t, []string{"deposit", "withdraw", "balanceOf", "transferOwnership"}, rootNames(res.Contracts[0]))
	assert.Equal(t, []string{"peek"}, rootNames(res.Contracts[1]))
	assert.Empty(t, res.Summary.Skipped)
}

func TestAnalyzeUnknownContract(t *testing.T) {
	path := writeFixture(t)
	_, err := New().Analyze(context.Background(), model.Request{Path: path, Contracts: []string{"Vault", "Nope"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nope")
}

func TestAnalyzeIncludesLibrariesByName(t *testing.T) {
	path := writeFixture(t)
	res, err := New().Analyze(context.Background(), model.Request{Path: path, Contracts: []string{"SafeMath"}})
	require.NoError(t, err)
	require.Len(t, res.Contracts, 1)
	assert.Equal(t, "library", res.Contracts[0].Kind)
	assert.Equal(t, []string{"SafeMath"}, res.Summary.Skipped)
}

func TestAnalyzeCanceled(t *testing.T) {
	path := writeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := New().Analyze(ctx, model.Request{Path: path})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Len(t, res.Summary.Failed, len(res.Contracts))
	assert.Empty(t, res.Summary.Succeeded)
}

type panickingCheck struct{}

func (panickingCheck) Meta() model.RuleMeta { return model.RuleMeta{ID: "PANIC"} }

func (panickingCheck) Analyze(context.Context, *analysis.ProjectContext, *solidity.ContractDefinition, *model.ContractReport) []model.Diagnostic {
	panic("boom")
}

func TestAnalyzeRecoversPanics(t *testing.T) {
	path := writeFixture(t)
	reg := plugins.NewRegistry()
	reg.Register(panickingCheck{})
	res, err := New(WithRegistry(reg)).Analyze(context.Background(), model.Request{Path: path, Contracts: []string{"Vault"}})
	require.NoError(t, err)
	require.Len(t, res.Summary.Failed, 1)
	assert.Equal(t, "panic: boom", res.Summary.Failed[0].Message)
	assert.Equal(t, []string{model.CodeAnalyzeFailed}, diagCodes(res.Contracts[0]))
}

func TestAnalyzeUsesASTCache(t *testing.T) {
	path := writeFixture(t)
	e := New()
	_, err := e.Analyze(context.Background(), model.Request{Path: path})
	require.NoError(t, err)
	_, err = e.Analyze(context.Background(), model.Request{Path: path})
	require.NoError(t, err)
	hits, misses := e.Cache().Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestAnalyzeResultStore(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeFixture(t)
	req := model.Request{Path: path, UseCache: true}

	first, err := New().Analyze(context.Background(), req)
	require.NoError(t, err)
	e := New()
	second, err := e.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.Summary, second.Summary)
	_, misses := e.Cache().Stats()
	assert.Zero(t, misses, "a stored result skips loading")
}

func TestDiscoverFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := discoverFiles(dir)
	assert.ErrorIs(t, err, ErrNoArtifacts)

	for _, p := range []string{"out/A.sol/A.json", "out/B.sol/B.json", "node_modules/x/package.json", "src/A.sol"} {
		full := filepath.Join(dir, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(`{}`), 0o644))
	}
	files, err := discoverFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "out/A.sol/A.json"), filepath.Join(dir, "out/B.sol/B.json")}, files)

	infoDir := filepath.Join(dir, "out", "build-info")
	require.NoError(t, os.MkdirAll(infoDir, 0o755))
	old, recent := filepath.Join(infoDir, "old.json"), filepath.Join(infoDir, "new.json")
	require.NoError(t, os.WriteFile(old, []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(recent, []byte(`{}`), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	files, err = discoverFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{recent}, files)

	files, err = discoverFiles(old)
	require.NoError(t, err)
	assert.Equal(t, []string{old}, files)
}

func TestAnalyzeDirectorySkipsNonAST(t *testing.T) {
	dir := t.TempDir()
	data, err := soltest.Output(fixture()...)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "out.json"), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"name":"x"}`), 0o644))

	res, err := New().Analyze(context.Background(), model.Request{Path: dir, Contracts: []string{"Vault"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Vault"}, res.Summary.Succeeded)
}

func TestAnalyzeDirectorySkipsABIAndCommentedJSON(t *testing.T) {
	dir := t.TempDir()
	data, err := soltest.Output(fixture()...)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "out.json"), data, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "abis"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abis", "IERC20.json"), []byte(`[{"type":"function"}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tsconfig.json"), []byte("// editor settings\n{\"strict\": true}"), 0o644))

	res, err := New().Analyze(context.Background(), model.Request{Path: dir, Contracts: []string{"Vault"}})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []string{"Vault"}, res.Summary.Succeeded)
}

func TestAnalyzeSingleInvalidFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abi.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"type":"function"}]`), 0o644))
	_, err := New().Analyze(context.Background(), model.Request{Path: path})
	require.Error(t, err)
	assert.True(t, errors.Is(err, solidity.ErrNoAST))
}

func TestAnalyzeOverriddenRootsCollapse(t *testing.T) {
	b := soltest.New()
	baseF := b.Function("f", "external", "nonpayable", b.Block(), soltest.WithParams("uint256"))
	baseG := b.Function("g", "external", "nonpayable", b.Block())
	base := b.Contract("Base", nil, baseF, baseG)
	derivedF := b.Function("f", "external", "nonpayable", b.Block(), soltest.WithParams("uint256"))
	derived := b.Contract("Derived", []soltest.N{base}, derivedF)

	data, err := soltest.Output(b.File("src/Derived.sol", base, derived))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	res, err := New().Analyze(context.Background(), model.Request{Path: path, Contracts: []string{"Derived"}})
	require.NoError(t, err)
	rep := reportOf(t, res, "Derived")
	require.Equal(t, []string{"f", "g"}, rootNames(rep), spew.Sdump(rep.CallTrees))
	assert.Equal(t, soltest.ID(derivedF), rep.CallTrees[0].Ref.ID)
	assert.Equal(t, "Derived", rep.CallTrees[0].Ref.Contract)
	assert.Equal(t, soltest.ID(baseG), rep.CallTrees[1].Ref.ID)
	assert.Equal(t, "Base", rep.CallTrees[1].Ref.Contract)
}

func TestSelectContractsIncludesAbstract(t *testing.T) {
	b := soltest.New()
	base := b.Contract("Base", nil, b.Function("f", "external", "nonpayable", nil))
	base["abstract"] = true
	iface := b.Interface("IBase", b.Function("f", "external", "nonpayable", nil, soltest.Unimplemented()))

	data, err := soltest.Output(b.File("src/Base.sol", iface, base))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	res, err := New().Analyze(context.Background(), model.Request{Path: path})
	require.NoError(t, err)
	require.Len(t, res.Contracts, 1)
	assert.Equal(t, "Base", res.Contracts[0].Name)
}

func TestInlineSuppression(t *testing.T) {
	b := soltest.New()
	c := b.Contract("Mock", nil, b.Function("f", "external", "nonpayable", nil))
	units, _, err := soltest.Decode(b.File("src/Mock.sol", c))
	require.NoError(t, err)

	units[0].Source = "// contractscope:ignore mock\ncontract Mock {}\n"
	pctx := analysis.NewProjectContext(".", nil, units, nil)
	def := pctx.Index.Lookup(soltest.ID(c)).(*solidity.ContractDefinition)
	assert.True(t, hasInlineSuppression(pctx, def))
	got, err := selectContracts(pctx, model.Request{})
	require.NoError(t, err)
	assert.Empty(t, got)

	units[0].Source = "contract Mock {}\n"
	assert.False(t, hasInlineSuppression(pctx, def))
}

func TestCalibrateDiagnostics(t *testing.T) {
	in := []model.Diagnostic{
		{Code: "A", Path: "x", StartLine: 1, Message: "m", Severity: model.SeverityInfo},
		{Code: "B", Path: "x", StartLine: 1, Message: "m", Severity: model.SeverityInfo},
		{Code: "A", Path: "x", StartLine: 1, Message: "m", Severity: model.SeverityError},
	}
	out := calibrateDiagnostics(in)
	require.Len(t, out, 2)
	assert.Equal(t, "A", out[0].Code)
	assert.Equal(t, model.SeverityError, out[0].Severity)
}
