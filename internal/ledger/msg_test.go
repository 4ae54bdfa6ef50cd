package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/agentoven/ledger/internal/ledger"
)

func TestDecodeMsg(t *testing.T) {
	m, err := ledger.DecodeMsg([]byte(`{"update_listing":{"agent_id":3,"price":"250"}}`))
	require.NoError(t, err)

	up, ok := m.(ledger.UpdateListing)
	require.True(t, ok, "decoded %T", m)
	assert.Equal(t, uint64(3), up.AgentID)
	require.NotNil(t, up.Price)
	assert.Equal(t, "250", up.Price.String())
	assert.Nil(t, up.Name)
	assert.Equal(t, ledger.TargetMarketplace, up.Target())
}

func TestDecodeMsgRejects(t *testing.T) {
	for _, raw := range []string{
		`{"mint_tokens":{}}`,
		`{"register_agent":{},"list_agent":{}}`,
		`{}`,
		`[1]`,
		`{"purchase_listing":{"agent_id":"x"}}`,
	} {
		_, err := ledger.DecodeMsg([]byte(raw))
		assert.Error(t, err, raw)
	}

	_, err := ledger.DecodeMsg([]byte(`{"mint_tokens":{}}`))
	assert.ErrorIs(t, err, ledger.ErrUnknownMessage)
}

func TestEncodeMsgUsesMethodTag(t *testing.T) {
	raw, err := ledger.EncodeMsg(ledger.PurchaseListing{AgentID: 9})
	require.NoError(t, err)
	assert.JSONEq(t, `{"purchase_listing":{"agent_id":9}}`, string(raw))

	back, err := ledger.DecodeMsg(raw)
	require.NoError(t, err)
	assert.Equal(t, ledger.PurchaseListing{AgentID: 9}, back)
}
