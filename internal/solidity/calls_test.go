package solidity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// legacyCall is `to.call.value(1)("")`: the inner call only sets an option.
const legacyCall = `{"nodeType":"FunctionCall","id":20,"src":"0:30:0","kind":"functionCall","arguments":[],
 "expression":{"nodeType":"FunctionCall","id":21,"src":"0:22:0","kind":"functionCall","arguments":[],
  "expression":{"nodeType":"MemberAccess","id":22,"src":"0:19:0","memberName":"value",
   "expression":{"nodeType":"MemberAccess","id":23,"src":"0:7:0","memberName":"call",` + callType + `,
    "expression":{"nodeType":"Identifier","id":24,"src":"0:2:0","name":"to","referencedDeclaration":5,
     "typeDescriptions":{"typeString":"address payable"}}}}}}`

func TestUnwrapCallOptions(t *testing.T) {
	units, err := Parse([]byte(payUnit))
	require.NoError(t, err)
	call, ok := NewIndex(units).Lookup(10).(*FunctionCall)
	require.True(t, ok)

	ma, ok := UnwrapCallOptions(call.Expression)
	require.True(t, ok)
	assert.Equal(t, int64(13), ma.ID())
	member, ok := LowLevelMember(call)
	assert.True(t, ok)
	assert.Equal(t, "call", member)
	assert.Equal(t, int64(13), Callee(call).ID())
	assert.False(t, IsOptionSetter(call))
}

func TestLegacyValueChain(t *testing.T) {
	outer, ok := decodeJSON(t, legacyCall).(*FunctionCall)
	require.True(t, ok)
	inner, ok := outer.Expression.(*FunctionCall)
	require.True(t, ok)

	assert.True(t, IsOptionSetter(inner))
	assert.False(t, IsOptionSetter(outer))
	member, ok := LowLevelMember(outer)
	assert.True(t, ok)
	assert.Equal(t, "call", member)
	assert.Equal(t, int64(23), Callee(outer).ID())
}

func TestUserMemberNamedValue(t *testing.T) {
	n := decodeJSON(t, `{"nodeType":"FunctionCall","id":1,"src":"0:9:0","arguments":[],
	 "expression":{"nodeType":"MemberAccess","id":2,"src":"0:7:0","memberName":"value","referencedDeclaration":40,
	  "expression":{"nodeType":"Identifier","id":3,"src":"0:3:0","name":"oracle","referencedDeclaration":41,
	   "typeDescriptions":{"typeString":"contract Oracle"}}}}`)
	call := n.(*FunctionCall)
	assert.False(t, IsOptionSetter(call))
	_, ok := LowLevelMember(call)
	assert.False(t, ok)
	ma, ok := UnwrapCallOptions(call.Expression)
	require.True(t, ok)
	assert.Equal(t, "value", ma.MemberName)
}

func TestCalleeIdentifier(t *testing.T) {
	n := decodeJSON(t, `{"nodeType":"FunctionCall","id":1,"src":"0:5:0","arguments":[],
	 "expression":{"nodeType":"Identifier","id":2,"src":"0:3:0","name":"foo","referencedDeclaration":7}}`)
	call := n.(*FunctionCall)
	assert.Equal(t, int64(2), Callee(call).ID())
	_, ok := LowLevelMember(call)
	assert.False(t, ok)
}
