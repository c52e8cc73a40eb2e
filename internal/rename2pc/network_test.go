package rename2pc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkSendReceiveRoundTrip(t *testing.T) {
	net := NewNetwork()
	msg := lockReqMsg(1, 7)

	assert.False(t, net.Contains(msg))
	net.Send(msg)
	assert.True(t, net.Contains(msg))
	assert.Equal(t, 1, net.Count(msg))

	require.True(t, net.Receive(msg))
	assert.False(t, net.Contains(msg))
}

func TestNetworkReceiveOnAbsentMessageReportsFalse(t *testing.T) {
	net := NewNetwork()
	assert.False(t, net.Receive(lockReqMsg(1, 7)))
}

func TestNetworkIsMultisetNotSet(t *testing.T) {
	net := NewNetwork()
	msg := unlockReqMsg(0, 1)

	net.Send(msg)
	net.Send(msg)
	assert.Equal(t, 2, net.Count(msg))

	require.True(t, net.Receive(msg))
	assert.Equal(t, 1, net.Count(msg))
	assert.True(t, net.Contains(msg))
}

func TestNetworkDuplicateRequiresExistingMessage(t *testing.T) {
	net := NewNetwork()
	msg := renameReqMsg(2, 3)

	assert.False(t, net.Duplicate(msg))

	net.Send(msg)
	assert.True(t, net.Duplicate(msg))
	assert.Equal(t, 2, net.Count(msg))
}

func TestNetworkLoseIsInterchangeableWithReceive(t *testing.T) {
	net := NewNetwork()
	msg := lockReqMsg(4, 5)
	net.Send(msg)

	require.True(t, net.Lose(msg))
	assert.False(t, net.Contains(msg))
}

func TestNetworkLenCountsEachMessageIndependently(t *testing.T) {
	net := NewNetwork()
	net.Send(lockReqMsg(0, 1))
	net.Send(lockReqMsg(1, 1))
	net.Send(lockReqMsg(0, 1))

	assert.Equal(t, 3, net.Len())
	assert.True(t, !net.IsEmpty())

	snap := net.Snapshot()
	assert.Equal(t, 2, snap[lockReqMsg(0, 1)])
	assert.Equal(t, 1, snap[lockReqMsg(1, 1)])
}

func TestMessageKindStringPanicsOnInvalidValue(t *testing.T) {
	assert.Panics(t, func() {
		_ = MessageKind(255).String()
	})
}
