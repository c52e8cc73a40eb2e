package coordlog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rename2pc/internal/rename2pc"
)

func TestAppendThenLatestReturnsLastRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coord.log")
	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Append(1, false))
	require.NoError(t, l.Append(1, true))
	require.NoError(t, l.Append(2, false))

	txnId, walCommitted, found := l.Latest()
	require.True(t, found)
	assert.Equal(t, rename2pc.TxnId(2), txnId)
	assert.False(t, walCommitted)
}

func TestLatestOnEmptyLogReportsNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coord.log")
	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	_, _, found := l.Latest()
	assert.False(t, found)
}

func TestResumeReopensCoordinatorInCrashedPhase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coord.log")
	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(3, true))
	require.NoError(t, l.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	c := reopened.Resume()
	assert.Equal(t, rename2pc.Crashed, c.GetPhase())
	assert.Equal(t, rename2pc.TxnId(3), c.GetTxnId())
	assert.True(t, c.IsCommitted())

	require.NoError(t, c.Recover())
	assert.Equal(t, rename2pc.Committed, c.GetPhase())
}

func TestResumeOnEmptyLogStartsFreshAtIdle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coord.log")
	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	c := l.Resume()
	assert.Equal(t, rename2pc.Idle, c.GetPhase())
	assert.Equal(t, rename2pc.TxnId(1), c.GetTxnId())
}
