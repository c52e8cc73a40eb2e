package rename2pc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessageKindIsStringsInverse(t *testing.T) {
	for _, k := range []MessageKind{LockReq, LockResp, RenameReq, RenameResp, UnlockReq, UnlockResp} {
		parsed, err := ParseMessageKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
}

func TestParseMessageKindRejectsUnknownString(t *testing.T) {
	_, err := ParseMessageKind("NotAKind")
	assert.Error(t, err)
}

func TestMessageJSONRoundTrip(t *testing.T) {
	m := Message{Kind: LockResp, Store: 3, TxnId: 7, Success: true}

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"LockResp"`)

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, m, decoded)
}
