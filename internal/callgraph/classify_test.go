package callgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xab-mack/contractscope/internal/model"
	"github.com/xab-mack/contractscope/internal/solidity"
	"github.com/xab-mack/contractscope/internal/solidity/soltest"
)

const callFnType = "function (bytes memory) payable returns (bool,bytes memory)"

// harness places call expressions into one function body so the decoded
// index contains them, then looks them up by id.
type harness struct {
	b     *soltest.Builder
	extra []soltest.N
	calls []soltest.N
	idx   *solidity.Index
}

func newHarness() *harness {
	return &harness{b: soltest.New()}
}

func (h *harness) add(call soltest.N) soltest.N {
	h.calls = append(h.calls, call)
	return call
}

func (h *harness) decode(t *testing.T) {
	t.Helper()
	fn := h.b.Function("run", "external", "nonpayable", h.b.Block(h.calls...))
	c := h.b.Contract("Caller", nil, fn)
	_, idx, err := soltest.Decode(h.b.File("src/Caller.sol", append(h.extra, c)...))
	require.NoError(t, err)
	h.idx = idx
}

func (h *harness) call(t *testing.T, n soltest.N) *solidity.FunctionCall {
	t.Helper()
	call, ok := h.idx.Lookup(soltest.ID(n)).(*solidity.FunctionCall)
	require.True(t, ok, "node %d is not a FunctionCall", soltest.ID(n))
	return call
}

func TestClassifyLowLevel(t *testing.T) {
	h := newHarness()
	b := h.b
	withOptions := h.add(b.Call(b.Options(b.Member(b.IdentRef("x", 500, "address payable"), "call", nil, callFnType), "value")))
	plain := h.add(b.Call(b.Member(b.IdentRef("x", 500, "address"), "delegatecall", nil, callFnType)))
	static := h.add(b.Call(b.Member(b.IdentRef("x", 500, "address"), "staticcall", nil, "function (bytes memory) view returns (bool,bytes memory)")))
	send := h.add(b.Call(b.Member(b.IdentRef("x", 500, "address payable"), "send", nil, "function (uint256) returns (bool)")))
	transfer := h.add(b.Call(b.Member(b.IdentRef("x", 500, "address payable"), "transfer", nil, "function (uint256)")))
	h.decode(t)

	for _, noStatic := range []bool{false, true} {
		c := NewClassifier(h.idx, noStatic)
		assert.Equal(t, model.CallLowLevel, c.Classify(h.call(t, withOptions)))
		assert.Equal(t, model.CallDelegatecall, c.Classify(h.call(t, plain)))
		assert.Equal(t, model.CallStaticcall, c.Classify(h.call(t, static)))
		assert.Equal(t, model.CallSend, c.Classify(h.call(t, send)))
		assert.Equal(t, model.CallTransfer, c.Classify(h.call(t, transfer)))
	}
}

func TestClassifyLegacyValueChain(t *testing.T) {
	h := newHarness()
	b := h.b
	callMember := b.Member(b.IdentRef("x", 500, "address"), "call", nil, callFnType)
	setter := b.Call(b.Member(callMember, "value", nil, "function (uint256) pure returns (function (bytes memory) payable returns (bool,bytes memory))"))
	outer := h.add(b.Call(setter))
	h.decode(t)

	c := NewClassifier(h.idx, false)
	assert.Equal(t, model.CallLowLevel, c.Classify(h.call(t, outer)))
	assert.True(t, solidity.IsOptionSetter(h.call(t, setter)))
	assert.False(t, solidity.IsOptionSetter(h.call(t, outer)))
}

func TestClassifyInterfaceTransferIsHighLevel(t *testing.T) {
	h := newHarness()
	b := h.b
	transfer := b.Function("transfer", "external", "nonpayable", nil,
		soltest.Unimplemented(), soltest.WithParams("address", "uint256"), soltest.WithReturns("bool"))
	balanceOf := b.Function("balanceOf", "external", "view", nil,
		soltest.Unimplemented(), soltest.WithParams("address"), soltest.WithReturns("uint256"))
	ierc20 := b.Interface("IERC20", transfer, balanceOf)
	h.extra = append(h.extra, ierc20)

	conv := func() soltest.N {
		return b.Convert(b.Ident("IERC20", ierc20, "type(contract IERC20)"), b.IdentRef("token", 700, "address"), "contract IERC20")
	}
	tr := h.add(b.Call(b.Member(conv(), "transfer", transfer, "function (address,uint256) external returns (bool)")))
	bal := h.add(b.Call(b.Member(conv(), "balanceOf", balanceOf, "function (address) view external returns (uint256)")))
	withValue := h.add(b.Call(b.Options(b.Member(conv(), "transfer", transfer, "function (address,uint256) external returns (bool)"), "gas")))
	h.decode(t)

	c := NewClassifier(h.idx, false)
	assert.Equal(t, model.CallHighLevel, c.Classify(h.call(t, tr)))
	assert.Equal(t, model.CallHighLevel, c.Classify(h.call(t, bal)))
	assert.Equal(t, model.CallHighLevel, c.Classify(h.call(t, withValue)))

	noStatic := NewClassifier(h.idx, true)
	assert.Equal(t, model.CallHighLevel, noStatic.Classify(h.call(t, tr)))
	assert.Equal(t, model.CallInternal, noStatic.Classify(h.call(t, bal)))
}

func TestClassifyLibraryCalls(t *testing.T) {
	h := newHarness()
	b := h.b

	transfer := b.Function("transfer", "external", "nonpayable", nil,
		soltest.Unimplemented(), soltest.WithParams("address", "uint256"), soltest.WithReturns("bool"))
	ierc20 := b.Interface("IERC20", transfer)

	external := func() soltest.N {
		conv := b.Convert(b.Ident("IERC20", ierc20, "type(contract IERC20)"), b.IdentRef("token", 700, "address"), "contract IERC20")
		return b.Call(b.Member(conv, "transfer", transfer, "function (address,uint256) external returns (bool)"))
	}
	pureHelper := b.Function("pureHelper", "internal", "pure", nil, soltest.WithReturns("uint256"))
	forwarder := b.Function("safeTransfer", "internal", "nonpayable", b.Block(external()),
		soltest.WithParams("address", "address", "uint256"), soltest.WithReturns("bool"))
	silent := b.Function("fireAndForget", "internal", "nonpayable", b.Block(external()),
		soltest.WithParams("address", "address", "uint256"))
	lib := b.Library("SafeLib", pureHelper, forwarder, silent)
	h.extra = append(h.extra, ierc20, lib)

	libRef := func() soltest.N { return b.Ident("SafeLib", lib, "type(library SafeLib)") }
	pure := h.add(b.Call(b.Member(libRef(), "pureHelper", pureHelper, "function () pure returns (uint256)")))
	fwd := h.add(b.Call(b.Member(libRef(), "safeTransfer", forwarder, "function (address,address,uint256) returns (bool)")))
	noReturn := h.add(b.Call(b.Member(libRef(), "fireAndForget", silent, "function (address,address,uint256)")))
	h.decode(t)

	for _, noStatic := range []bool{false, true} {
		c := NewClassifier(h.idx, noStatic)
		assert.Equal(t, model.CallInternal, c.Classify(h.call(t, pure)))
		assert.Equal(t, model.CallHighLevel, c.Classify(h.call(t, fwd)))
		assert.Equal(t, model.CallInternal, c.Classify(h.call(t, noReturn)))
	}
}

func TestClassifyMutuallyRecursiveLibrary(t *testing.T) {
	h := newHarness()
	b := h.b
	// ping and pong call each other; the classifier must terminate.
	ping := b.Function("ping", "internal", "nonpayable", nil, soltest.WithReturns("uint256"))
	pong := b.Function("pong", "internal", "nonpayable", nil, soltest.WithReturns("uint256"))
	lib := b.Library("Loop", ping, pong)
	ping["body"] = b.Block(b.Call(b.Member(b.Ident("Loop", lib, "type(library Loop)"), "pong", pong, "function () returns (uint256)")))
	pong["body"] = b.Block(b.Call(b.Member(b.Ident("Loop", lib, "type(library Loop)"), "ping", ping, "function () returns (uint256)")))
	h.extra = append(h.extra, lib)
	site := h.add(b.Call(b.Member(b.Ident("Loop", lib, "type(library Loop)"), "ping", ping, "function () returns (uint256)")))
	h.decode(t)

	assert.Equal(t, model.CallInternal, NewClassifier(h.idx, false).Classify(h.call(t, site)))
}

func TestClassifyInternalCall(t *testing.T) {
	h := newHarness()
	b := h.b
	helper := b.Function("_helper", "internal", "nonpayable", nil)
	h.extra = append(h.extra, b.Contract("Other", nil, helper))
	site := h.add(b.Call(b.Ident("_helper", helper, "function ()")))
	h.decode(t)

	assert.Equal(t, model.CallInternal, NewClassifier(h.idx, false).Classify(h.call(t, site)))
}
