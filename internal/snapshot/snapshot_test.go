package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rename2pc/internal/rename2pc"
)

func newTestSystem(t *testing.T) *rename2pc.System {
	t.Helper()
	sys := rename2pc.NewSystem([]rename2pc.StoreId{0, 1}, "A", "A'")
	return sys
}

func TestOfCapturesCoordinatorAndStoreState(t *testing.T) {
	sys := newTestSystem(t)
	for _, id := range sys.AllStores {
		require.True(t, sys.SendLockReq(id))
	}

	snap := Of(sys)

	assert.Equal(t, "Preparing", snap.Coordinator.Phase)
	assert.Equal(t, rename2pc.TxnId(1), snap.Coordinator.TxnId)
	assert.Len(t, snap.Stores, 2)
	assert.Equal(t, 2, snap.NetworkLen) // one LockReq per store
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	sys := newTestSystem(t)
	snap := Of(sys)

	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, Save(path, snap))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, snap.Coordinator.Phase, loaded.Coordinator.Phase)
	assert.Len(t, loaded.Stores, 2)
}

func TestLoadOnMissingFileReturnsZeroValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Snapshot{}, loaded)
}
