package rename2pc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCoordinatorStartsIdleAtTxnOne(t *testing.T) {
	c := NewCoordinator(nil)
	assert.Equal(t, Idle, c.GetPhase())
	assert.Equal(t, TxnId(1), c.GetTxnId())
	assert.False(t, c.IsCommitted())
}

func TestStartPreparingRejectedOutsideIdleOrPreparing(t *testing.T) {
	c := NewCoordinator(nil)
	require.NoError(t, c.StartPreparing())
	require.NoError(t, c.RecordLockSuccess(0))
	require.NoError(t, c.DecideCommit())

	assert.ErrorIs(t, c.StartPreparing(), ErrWrongPhase)
}

func TestRecordLockSuccessRejectsDuplicateStore(t *testing.T) {
	c := NewCoordinator(nil)
	require.NoError(t, c.StartPreparing())
	require.NoError(t, c.RecordLockSuccess(1))
	assert.ErrorIs(t, c.RecordLockSuccess(1), ErrWrongPhase)
}

func TestHandleLockFailureClearsVolatileStateAndMovesToCleanup(t *testing.T) {
	c := NewCoordinator(nil)
	require.NoError(t, c.StartPreparing())
	require.NoError(t, c.RecordLockSuccess(0))

	require.NoError(t, c.HandleLockFailure())

	assert.Equal(t, Cleanup, c.GetPhase())
	assert.False(t, c.HasLockAcquired(0))
}

func TestDecideCommitPersistsBeforeFlippingPhase(t *testing.T) {
	log := &recordingLog{}
	c := NewCoordinator(log)
	require.NoError(t, c.StartPreparing())
	require.NoError(t, c.RecordLockSuccess(0))

	require.NoError(t, c.DecideCommit())

	require.Len(t, log.records, 1)
	assert.True(t, log.records[0].walCommitted)
	assert.True(t, c.IsCommitted())
	assert.Equal(t, Committed, c.GetPhase())
}

func TestRecordRenameDoneReachesCleanupOnlyWhenAllStoresDone(t *testing.T) {
	c := NewCoordinator(nil)
	require.NoError(t, c.StartPreparing())
	require.NoError(t, c.RecordLockSuccess(0))
	require.NoError(t, c.RecordLockSuccess(1))
	require.NoError(t, c.DecideCommit())

	all := []StoreId{0, 1}
	reached, err := c.RecordRenameDone(0, all)
	require.NoError(t, err)
	assert.False(t, reached)
	assert.Equal(t, Committed, c.GetPhase())

	reached, err = c.RecordRenameDone(1, all)
	require.NoError(t, err)
	assert.True(t, reached)
	assert.Equal(t, Cleanup, c.GetPhase())
}

func TestRecordRenameDoneDuplicateIsHarmlessNoOp(t *testing.T) {
	c := NewCoordinator(nil)
	require.NoError(t, c.StartPreparing())
	require.NoError(t, c.RecordLockSuccess(0))
	require.NoError(t, c.DecideCommit())

	all := []StoreId{0}
	_, err := c.RecordRenameDone(0, all)
	require.NoError(t, err)
	_, err = c.RecordRenameDone(0, all)
	require.NoError(t, err)
}

func TestCrashClearsVolatileButKeepsDurableState(t *testing.T) {
	c := NewCoordinator(nil)
	require.NoError(t, c.StartPreparing())
	require.NoError(t, c.RecordLockSuccess(0))
	require.NoError(t, c.DecideCommit())

	require.NoError(t, c.Crash())

	assert.Equal(t, Crashed, c.GetPhase())
	assert.True(t, c.IsCommitted())
	assert.False(t, c.HasLockAcquired(0))
}

func TestRecoverBumpsTxnIdAndRoutesOnWalCommitted(t *testing.T) {
	committed := NewCoordinator(nil)
	require.NoError(t, committed.StartPreparing())
	require.NoError(t, committed.RecordLockSuccess(0))
	require.NoError(t, committed.DecideCommit())
	require.NoError(t, committed.Crash())

	txnId := committed.GetTxnId()
	require.NoError(t, committed.Recover())
	assert.Equal(t, txnId+1, committed.GetTxnId())
	assert.Equal(t, Committed, committed.GetPhase())

	notCommitted := NewCoordinator(nil)
	require.NoError(t, notCommitted.StartPreparing())
	require.NoError(t, notCommitted.Crash())
	require.NoError(t, notCommitted.Recover())
	assert.Equal(t, Cleanup, notCommitted.GetPhase())
}

func TestRecoverRejectedOutsideCrashed(t *testing.T) {
	c := NewCoordinator(nil)
	assert.ErrorIs(t, c.Recover(), ErrWrongPhase)
}

type recordingLog struct {
	records []loggedRecord
}

type loggedRecord struct {
	txnId        TxnId
	walCommitted bool
}

func (l *recordingLog) Append(txnId TxnId, walCommitted bool) error {
	l.records = append(l.records, loggedRecord{txnId: txnId, walCommitted: walCommitted})
	return nil
}
