// Package snapshot provides a compact, point-in-time diagnostic dump of
// an entire rename2pc.System: the coordinator's durable and volatile
// state, whether each store holds and has locked each of the two keys,
// and how many messages are in flight (the individual in-flight messages
// are not recorded). It exists for operators and tests inspecting a running
// system from the outside (see the GET /state route in ../api), not for
// crash recovery — the coordinator's own durable pair is ../coordlog's
// job, and a Store's data is not itself persisted anywhere in this
// protocol, whose non-goals explicitly exclude per-store durability.
package snapshot

import (
	"encoding/json"
	"os"

	"rename2pc/internal/rename2pc"
)

// StoreState is one store's externally observable state.
type StoreState struct {
	Id            rename2pc.StoreId `json:"id"`
	HasKeyA       bool              `json:"has_key_a"`
	HasKeyAPrime  bool              `json:"has_key_a_prime"`
	LockedKeyA    bool              `json:"locked_key_a"`
	LockedAPrime  bool              `json:"locked_key_a_prime"`
	LastSeenTxnId rename2pc.TxnId   `json:"last_seen_txn_id"`
}

// CoordinatorState is the coordinator's externally observable state.
type CoordinatorState struct {
	TxnId         rename2pc.TxnId     `json:"txn_id"`
	WalCommitted  bool                `json:"wal_committed"`
	Phase         string              `json:"phase"`
	LocksAcquired []rename2pc.StoreId `json:"locks_acquired"`
	RenamesDone   []rename2pc.StoreId `json:"renames_done"`
	UnlocksAcked  []rename2pc.StoreId `json:"unlocks_acked"`
}

// Snapshot is the full system diagnostic dump.
type Snapshot struct {
	Coordinator CoordinatorState `json:"coordinator"`
	Stores      []StoreState     `json:"stores"`
	NetworkLen  int              `json:"network_len"`
}

// Of builds a Snapshot from a live System. It acquires no lock of its
// own on sys; each field read goes through the component's own
// already-synchronized accessor, so the result is not a single atomic
// point in time across the whole system, only per-component — adequate
// for diagnostics, not for anything that needs a consistent cut.
func Of(sys *rename2pc.System) Snapshot {
	snap := Snapshot{
		Coordinator: CoordinatorState{
			TxnId:         sys.Coordinator.GetTxnId(),
			WalCommitted:  sys.Coordinator.IsCommitted(),
			Phase:         sys.Coordinator.GetPhase().String(),
			LocksAcquired: sys.Coordinator.LocksAcquired(),
			RenamesDone:   sys.Coordinator.RenamesDone(),
			UnlocksAcked:  sys.Coordinator.UnlocksAcked(),
		},
		NetworkLen: sys.Net.Len(),
	}
	for _, id := range sys.AllStores {
		snap.Stores = append(snap.Stores, StoreState{
			Id:            id,
			HasKeyA:       sys.StoreHasKeyA(id),
			HasKeyAPrime:  sys.StoreHasKeyAPrime(id),
			LockedKeyA:    sys.StoreKeyALocked(id),
			LockedAPrime:  sys.StoreKeyAPrimeLocked(id),
			LastSeenTxnId: sys.StoreLastSeenTxnId(id),
		})
	}
	return snap
}

// Save writes snap as JSON to path via the write-temp-then-rename
// pattern, so a reader never observes a half-written file: the rename
// only happens once the new content is completely flushed.
func Save(path string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

// Load reads a Snapshot previously written by Save. A missing file is
// not an error — it reports the zero Snapshot, mirroring the teacher's
// own SnapshotManager.Load behavior on a fresh data directory.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil
		}
		return Snapshot{}, err
	}
	var snap Snapshot
	err = json.Unmarshal(data, &snap)
	return snap, err
}
