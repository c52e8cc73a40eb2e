package rename2pc

import (
	"errors"
	"fmt"
	"sync"
)

// CoordPhase is the coordinator's observable protocol position.
type CoordPhase uint8

const (
	Idle CoordPhase = iota
	Preparing
	Committed
	Cleanup
	Done
	Crashed
)

func (p CoordPhase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case Preparing:
		return "Preparing"
	case Committed:
		return "Committed"
	case Cleanup:
		return "Cleanup"
	case Done:
		return "Done"
	case Crashed:
		return "Crashed"
	default:
		panic(fmt.Sprintf("rename2pc: invalid coordinator phase %d", uint8(p)))
	}
}

// ErrWrongPhase is returned by a coordinator transition invoked outside
// the phase it requires. It is a precondition violation in the sense of
// spec §7 — a caller bug — not a network-level "message not found"; the
// System driver (driver.go) is responsible for never producing one as
// long as it only calls these methods on messages it has actually taken
// off the network.
var ErrWrongPhase = errors.New("rename2pc: coordinator transition invalid in current phase")

// DurableLog persists the coordinator's durable pair (current_txn_id,
// wal_committed). A real binding (see ../coordlog) appends to an fsynced
// file; tests pass nil, in which case the coordinator keeps the pair
// purely in memory.
type DurableLog interface {
	Append(txnId TxnId, walCommitted bool) error
}

// Coordinator is the two-phase-commit phase machine described in spec §4.3.
// Durable fields (CurrentTxnId, WalCommitted) survive Crash; volatile
// fields (Phase and the three acknowledgement sets) do not.
//
// This type assumes a single active transaction at a time, per the
// protocol's explicit non-goal of multiplexing concurrent renames: there
// is exactly one Coordinator per System, never a table of them.
type Coordinator struct {
	mu sync.Mutex

	// durable
	currentTxnId TxnId
	walCommitted bool
	log          DurableLog

	// volatile
	phase         CoordPhase
	locksAcquired map[StoreId]struct{}
	renamesDone   map[StoreId]struct{}
	unlocksAcked  map[StoreId]struct{}
}

// NewCoordinator returns a coordinator in the Idle phase with txn id 1
// and wal_committed false, matching spec §3's lifecycle exactly. log may
// be nil for a purely in-memory coordinator (used throughout the test
// suite); a non-nil log is appended to on every durable-state change so a
// real process can recover it across an OS restart (see
// NewCoordinatorResuming and ../coordlog's Log.Resume, used by
// cmd/rename2pc-serverd).
func NewCoordinator(log DurableLog) *Coordinator {
	return &Coordinator{
		currentTxnId:  1,
		walCommitted:  false,
		log:           log,
		phase:         Idle,
		locksAcquired: make(map[StoreId]struct{}),
		renamesDone:   make(map[StoreId]struct{}),
		unlocksAcked:  make(map[StoreId]struct{}),
	}
}

// NewCoordinatorResuming builds a coordinator from a durable record found
// at process startup: txnId and walCommitted are whatever was last
// fsynced, and the phase starts at Crashed regardless of what phase the
// process was in before it stopped, since volatile state never survives
// an OS restart. The caller must invoke Recover before driving any other
// step, exactly as after an in-process Crash. This is a deliberate
// extension beyond the in-memory protocol's literal lifecycle: a real
// process restart is indistinguishable from a crash to anything that
// didn't durably record its phase, so this constructor treats it as one.
func NewCoordinatorResuming(log DurableLog, txnId TxnId, walCommitted bool) *Coordinator {
	return &Coordinator{
		currentTxnId:  txnId,
		walCommitted:  walCommitted,
		log:           log,
		phase:         Crashed,
		locksAcquired: make(map[StoreId]struct{}),
		renamesDone:   make(map[StoreId]struct{}),
		unlocksAcked:  make(map[StoreId]struct{}),
	}
}

// GetTxnId returns the current transaction id.
func (c *Coordinator) GetTxnId() TxnId {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentTxnId
}

// IsCommitted reports the durable wal_committed flag.
func (c *Coordinator) IsCommitted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.walCommitted
}

// GetPhase returns the current volatile phase.
func (c *Coordinator) GetPhase() CoordPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// LocksAcquired, RenamesDone, and UnlocksAcked return snapshots of the
// three volatile acknowledgement sets, for driver-level iteration and for
// diagnostics (internal/snapshot).
func (c *Coordinator) LocksAcquired() []StoreId { return c.snapshotSet(c.locksAcquired) }
func (c *Coordinator) RenamesDone() []StoreId   { return c.snapshotSet(c.renamesDone) }
func (c *Coordinator) UnlocksAcked() []StoreId  { return c.snapshotSet(c.unlocksAcked) }

func (c *Coordinator) snapshotSet(set map[StoreId]struct{}) []StoreId {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]StoreId, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// HasLockAcquired reports whether s is already recorded as lock-acquired
// for the current transaction — used by the driver to treat a duplicate
// LockResp{success=true} as a benign no-op rather than a precondition
// violation (see driver.go's CoordRecvLockRespSuccess).
func (c *Coordinator) HasLockAcquired(s StoreId) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.locksAcquired[s]
	return ok
}

// HasRenameDone reports whether s is already recorded as renamed.
func (c *Coordinator) HasRenameDone(s StoreId) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.renamesDone[s]
	return ok
}

// HasUnlockAcked reports whether s is already recorded as unlocked.
func (c *Coordinator) HasUnlockAcked(s StoreId) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.unlocksAcked[s]
	return ok
}

// StartPreparing drives the coordinator from Idle (or a no-op from
// Preparing) into Preparing. This is what send_lock_req does to local
// state in spec §4.3; the driver emits the LockReq message separately.
func (c *Coordinator) StartPreparing() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != Idle && c.phase != Preparing {
		return ErrWrongPhase
	}
	c.phase = Preparing
	return nil
}

// RecordLockSuccess records that store s granted its lock. Requires phase
// Preparing and s not already recorded.
func (c *Coordinator) RecordLockSuccess(s StoreId) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != Preparing {
		return ErrWrongPhase
	}
	if _, ok := c.locksAcquired[s]; ok {
		return ErrWrongPhase
	}
	c.locksAcquired[s] = struct{}{}
	return nil
}

// HandleLockFailure aborts the prepare phase: it requires phase Preparing,
// clears all three volatile sets, and transitions to Cleanup. This is
// terminal for the transaction's commit path — the only way forward from
// Cleanup is unlocking every store and reaching Done.
func (c *Coordinator) HandleLockFailure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != Preparing {
		return ErrWrongPhase
	}
	c.clearVolatileSetsLocked()
	c.phase = Cleanup
	return nil
}

// DecideCommit is the commit point: it requires phase Preparing, durably
// persists wal_committed=true (flushing to c.log, if any, before the
// phase change below becomes observable — the ordering constraint spec §6
// calls out explicitly), and only then sets phase to Committed.
func (c *Coordinator) DecideCommit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != Preparing {
		return ErrWrongPhase
	}
	if c.log != nil {
		if err := c.log.Append(c.currentTxnId, true); err != nil {
			return fmt.Errorf("rename2pc: persist commit decision: %w", err)
		}
	}
	c.walCommitted = true
	c.phase = Committed
	return nil
}

// RecordRenameDone records that store s confirmed its rename. It requires
// phase Committed; recording an already-recorded store is a harmless
// no-op reporting (false, nil), even after the phase has moved on to
// Cleanup (a duplicated RenameResp is expected under network duplication —
// see spec §8 S5). Otherwise it reports whether renamesDone now covers
// every store in allStores, in which case phase has transitioned to Cleanup.
func (c *Coordinator) RecordRenameDone(s StoreId, allStores []StoreId) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.renamesDone[s]; ok {
		return false, nil
	}
	if c.phase != Committed {
		return false, ErrWrongPhase
	}
	c.renamesDone[s] = struct{}{}
	if c.allStoresInLocked(c.renamesDone, allStores) {
		c.phase = Cleanup
		return true, nil
	}
	return false, nil
}

// RecordUnlockAcked records that store s confirmed its unlock. It
// requires phase Cleanup; recording an already-recorded store is a
// harmless no-op reporting (false, nil), even after the phase has moved
// on to Done. Otherwise it reports whether unlocksAcked now covers every
// store in allStores, in which case phase has transitioned to Done.
func (c *Coordinator) RecordUnlockAcked(s StoreId, allStores []StoreId) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.unlocksAcked[s]; ok {
		return false, nil
	}
	if c.phase != Cleanup {
		return false, ErrWrongPhase
	}
	c.unlocksAcked[s] = struct{}{}
	if c.allStoresInLocked(c.unlocksAcked, allStores) {
		c.phase = Done
		return true, nil
	}
	return false, nil
}

// Crash clears all volatile state and moves to Crashed. Durable state
// (currentTxnId, walCommitted) is untouched — that is the entire point of
// separating the two in the first place. Requires phase Preparing,
// Committed, or Cleanup.
func (c *Coordinator) Crash() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.phase {
	case Preparing, Committed, Cleanup:
	default:
		return ErrWrongPhase
	}
	c.clearVolatileSetsLocked()
	c.phase = Crashed
	return nil
}

// Recover increments currentTxnId by exactly one (invalidating any
// message still in flight tagged with the old id), clears the volatile
// sets, and moves to Committed if the durable record says the prior
// transaction had committed, or Cleanup otherwise. Requires phase
// Crashed.
func (c *Coordinator) Recover() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != Crashed {
		return ErrWrongPhase
	}
	c.currentTxnId++
	if c.log != nil {
		if err := c.log.Append(c.currentTxnId, c.walCommitted); err != nil {
			// The durable txn id bump failed to persist; roll back the
			// in-memory increment so a retry is consistent with what's on
			// disk.
			c.currentTxnId--
			return fmt.Errorf("rename2pc: persist recovery txn id: %w", err)
		}
	}
	c.clearVolatileSetsLocked()
	if c.walCommitted {
		c.phase = Committed
	} else {
		c.phase = Cleanup
	}
	return nil
}

func (c *Coordinator) clearVolatileSetsLocked() {
	c.locksAcquired = make(map[StoreId]struct{})
	c.renamesDone = make(map[StoreId]struct{})
	c.unlocksAcked = make(map[StoreId]struct{})
}

func (c *Coordinator) allStoresInLocked(set map[StoreId]struct{}, allStores []StoreId) bool {
	if len(allStores) == 0 {
		return false
	}
	for _, s := range allStores {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
