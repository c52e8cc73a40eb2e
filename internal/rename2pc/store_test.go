package rename2pc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePutAndDeleteRefuseWhenLocked(t *testing.T) {
	s := NewStore()
	require.True(t, s.Put("A", 1))

	s.Lock("A")
	assert.False(t, s.Put("A", 2))
	assert.False(t, s.Delete("A"))

	v, ok := s.Get("A")
	require.True(t, ok)
	assert.Equal(t, uint64(1), v)
}

func TestStoreLockAndUnlockAreIdempotent(t *testing.T) {
	s := NewStore()
	s.Lock("A")
	s.Lock("A")
	assert.True(t, s.IsLocked("A"))

	s.Unlock("A")
	s.Unlock("A")
	assert.False(t, s.IsLocked("A"))
}

func TestStoreRenameMovesValueAtomically(t *testing.T) {
	s := NewStore()
	require.True(t, s.Put("A", 42))

	v, ok := s.Rename("A", "A'")
	require.True(t, ok)
	assert.Equal(t, uint64(42), v)
	assert.False(t, s.ContainsKey("A"))
	assert.True(t, s.ContainsKey("A'"))
}

func TestStoreRenameOnAbsentKeyFails(t *testing.T) {
	s := NewStore()
	_, ok := s.Rename("A", "A'")
	assert.False(t, ok)
}

func TestStoreUpdateTxnIdIsMonotonic(t *testing.T) {
	s := NewStore()
	s.UpdateTxnId(5)
	s.UpdateTxnId(3)
	assert.Equal(t, TxnId(5), s.LastSeenTxnId())
}

func TestStoreIsStaleTxnIdUsesStrictLessThan(t *testing.T) {
	s := NewStore()
	s.UpdateTxnId(5)

	assert.True(t, s.IsStaleTxnId(4))
	assert.False(t, s.IsStaleTxnId(5))
	assert.False(t, s.IsStaleTxnId(6))
}

func TestHandleLockReqGrantsWhenAPrimeAbsent(t *testing.T) {
	net := NewNetwork()
	s := NewStore()
	require.True(t, s.Put("A", 1))
	net.Send(lockReqMsg(0, 1))

	require.True(t, s.HandleLockReq(net, 0, 1, "A", "A'"))

	assert.True(t, s.IsLocked("A"))
	assert.True(t, s.IsLocked("A'"))
	assert.True(t, net.Contains(lockRespMsg(0, true, 1)))
}

func TestHandleLockReqRefusesWhenAlreadyRenamed(t *testing.T) {
	net := NewNetwork()
	s := NewStore()
	require.True(t, s.Put("A'", 1))
	net.Send(lockReqMsg(0, 1))

	require.True(t, s.HandleLockReq(net, 0, 1, "A", "A'"))

	assert.False(t, s.IsLocked("A"))
	assert.True(t, net.Contains(lockRespMsg(0, false, 1)))
}

func TestHandleLockReqDropsStaleRequest(t *testing.T) {
	net := NewNetwork()
	s := NewStore()
	s.UpdateTxnId(10)
	net.Send(lockReqMsg(0, 3))

	require.True(t, s.HandleLockReq(net, 0, 3, "A", "A'"))

	assert.False(t, s.IsLocked("A"))
	assert.False(t, net.Contains(lockRespMsg(0, true, 3)))
	assert.False(t, net.Contains(lockRespMsg(0, false, 3)))
}

func TestHandleRenameReqIsIdempotentOnRedelivery(t *testing.T) {
	net := NewNetwork()
	s := NewStore()
	require.True(t, s.Put("A'", 1))
	s.Lock("A")
	s.Lock("A'")
	net.Send(renameReqMsg(0, 1))

	require.True(t, s.HandleRenameReq(net, 0, 1, "A", "A'"))

	assert.True(t, net.Contains(renameRespMsg(0, 1)))
	v, ok := s.Get("A'")
	require.True(t, ok)
	assert.Equal(t, uint64(1), v)
}

func TestHandleRenameReqDropsWhenPreconditionsUnmet(t *testing.T) {
	net := NewNetwork()
	s := NewStore()
	require.True(t, s.Put("A", 1))
	net.Send(renameReqMsg(0, 1)) // locks were never acquired

	require.True(t, s.HandleRenameReq(net, 0, 1, "A", "A'"))

	assert.True(t, s.ContainsKey("A"))
	assert.False(t, s.ContainsKey("A'"))
	assert.False(t, net.Contains(renameRespMsg(0, 1)))
}

func TestHandleUnlockReqIsIdempotent(t *testing.T) {
	net := NewNetwork()
	s := NewStore()
	s.Lock("A")
	s.Lock("A'")
	net.Send(unlockReqMsg(0, 1))

	require.True(t, s.HandleUnlockReq(net, 0, 1, "A", "A'"))

	assert.False(t, s.IsLocked("A"))
	assert.False(t, s.IsLocked("A'"))
	assert.True(t, net.Contains(unlockRespMsg(0, 1)))

	net.Send(unlockReqMsg(0, 1))
	require.True(t, s.HandleUnlockReq(net, 0, 1, "A", "A'"))

	assert.False(t, s.IsLocked("A"))
	assert.False(t, s.IsLocked("A'"))
	assert.Equal(t, 2, net.Count(unlockRespMsg(0, 1)))
}
