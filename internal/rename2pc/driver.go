package rename2pc

import "fmt"

// System composes one Coordinator, a fixed roster of Stores, and a
// Network into the transaction A -> A' described by the package doc
// comment. It exposes exactly one method per protocol-level step named
// in spec §4.4; every method returns a bool reporting whether the step
// actually applied, so a caller (a table-driven test, a model checker, or
// the HTTP control API in ../api) can drive arbitrary step sequences,
// including ones that are no-ops. A step is never refused by panicking;
// the one panic is a store id that is not in Stores, which the store-side
// steps and the observer helpers treat as a programmer error.
//
// System itself holds no lock: every step delegates to Coordinator,
// Store, or Network, each of which is independently safe for concurrent
// use. There is still no goroutine anywhere in this package — steps are
// meant to be invoked one at a time, synchronously, by whatever drives
// the system (see cmd/rename2pc-ctl for the real one).
type System struct {
	Coordinator *Coordinator
	Stores      map[StoreId]*Store
	AllStores   []StoreId
	Net         *Network
	KeyA        string
	KeyAPrime   string
}

// NewSystem builds a System over the given store ids, each backed by a
// fresh empty Store, an empty Network, and a fresh in-memory Coordinator.
// keyA is expected to already be present with some value in every store
// before the transaction begins; callers needing a pre-seeded dataset
// should Put it into each Store directly before driving any steps.
func NewSystem(storeIds []StoreId, keyA, keyAPrime string) *System {
	stores := make(map[StoreId]*Store, len(storeIds))
	for _, id := range storeIds {
		stores[id] = NewStore()
	}
	return &System{
		Coordinator: NewCoordinator(nil),
		Stores:      stores,
		AllStores:   append([]StoreId(nil), storeIds...),
		Net:         NewNetwork(),
		KeyA:        keyA,
		KeyAPrime:   keyAPrime,
	}
}

func (sys *System) store(id StoreId) *Store {
	s, ok := sys.Stores[id]
	if !ok {
		panic(fmt.Sprintf("rename2pc: unknown store id %d", id))
	}
	return s
}

// ─── Coordinator-side send/decide steps ────────────────────────────────

// SendLockReq moves the coordinator into Preparing (if it isn't already)
// and emits one LockReq to store id. It reports false if the coordinator
// isn't in Idle or Preparing. Driving a full prepare phase means calling
// this once per store in AllStores; the coordinator does not assume any
// particular order or timing between those calls.
func (sys *System) SendLockReq(id StoreId) bool {
	if err := sys.Coordinator.StartPreparing(); err != nil {
		return false
	}
	sys.Net.Send(lockReqMsg(id, sys.Coordinator.GetTxnId()))
	return true
}

// CoordRecvLockRespSuccess consumes one LockResp{store, success=true} and
// records it. A duplicate success response for an already-recorded store
// is consumed and treated as a no-op success, matching the idempotence
// theme elsewhere in the protocol rather than surfacing a precondition
// violation over what is, from the network's perspective, an entirely
// ordinary retransmission.
//
// The precondition (phase Preparing, or the store already recorded) is
// checked before the message is taken off the network: a stale response
// arriving after the transaction has moved on must do nothing at all,
// leaving the message in flight, rather than silently discarding it and
// reporting false as if it still applied.
func (sys *System) CoordRecvLockRespSuccess(id StoreId) bool {
	alreadyRecorded := sys.Coordinator.HasLockAcquired(id)
	if !alreadyRecorded && sys.Coordinator.GetPhase() != Preparing {
		return false
	}
	msg := lockRespMsg(id, true, sys.Coordinator.GetTxnId())
	if !sys.Net.Receive(msg) {
		return false
	}
	if alreadyRecorded {
		return true
	}
	return sys.Coordinator.RecordLockSuccess(id) == nil
}

// CoordRecvLockRespFailure consumes one LockResp{store, success=false}
// and aborts the transaction by driving the coordinator into Cleanup. The
// phase precondition is checked before the message is removed from the
// network, for the same reason as CoordRecvLockRespSuccess.
func (sys *System) CoordRecvLockRespFailure(id StoreId) bool {
	if sys.Coordinator.GetPhase() != Preparing {
		return false
	}
	msg := lockRespMsg(id, false, sys.Coordinator.GetTxnId())
	if !sys.Net.Receive(msg) {
		return false
	}
	return sys.Coordinator.HandleLockFailure() == nil
}

// DecideCommit requires every store in AllStores to have a recorded lock
// success; if so it durably commits. It does not by itself send
// anything — SendRenameReq is a separate, explicit step per store, the
// same way send_lock_req and send_rename_req are distinct operations in
// spec §4.3/§4.4.
func (sys *System) DecideCommit() bool {
	for _, id := range sys.AllStores {
		if !sys.Coordinator.HasLockAcquired(id) {
			return false
		}
	}
	return sys.Coordinator.DecideCommit() == nil
}

// SendRenameReq emits one RenameReq to store id. It reports false if the
// coordinator isn't in Committed.
func (sys *System) SendRenameReq(id StoreId) bool {
	if sys.Coordinator.GetPhase() != Committed {
		return false
	}
	sys.Net.Send(renameReqMsg(id, sys.Coordinator.GetTxnId()))
	return true
}

// CoordRecvRenameResp consumes one RenameResp{store} and records it. Once
// every store has confirmed, the coordinator moves to Cleanup. The
// precondition (phase Committed, or the store already recorded) is
// checked before the message is taken off the network, same as
// CoordRecvLockRespSuccess.
func (sys *System) CoordRecvRenameResp(id StoreId) bool {
	alreadyRecorded := sys.Coordinator.HasRenameDone(id)
	if !alreadyRecorded && sys.Coordinator.GetPhase() != Committed {
		return false
	}
	msg := renameRespMsg(id, sys.Coordinator.GetTxnId())
	if !sys.Net.Receive(msg) {
		return false
	}
	if alreadyRecorded {
		return true
	}
	_, err := sys.Coordinator.RecordRenameDone(id, sys.AllStores)
	return err == nil
}

// SendUnlockReq emits one UnlockReq to store id. It reports false if the
// coordinator isn't in Cleanup.
func (sys *System) SendUnlockReq(id StoreId) bool {
	if sys.Coordinator.GetPhase() != Cleanup {
		return false
	}
	sys.Net.Send(unlockReqMsg(id, sys.Coordinator.GetTxnId()))
	return true
}

// CoordRecvUnlockResp consumes one UnlockResp{store} and records it. Once
// every store has confirmed, the coordinator reaches Done — the
// transaction's terminal, successful state. The precondition (phase
// Cleanup, or the store already recorded) is checked before the message
// is taken off the network, same as CoordRecvLockRespSuccess.
func (sys *System) CoordRecvUnlockResp(id StoreId) bool {
	alreadyRecorded := sys.Coordinator.HasUnlockAcked(id)
	if !alreadyRecorded && sys.Coordinator.GetPhase() != Cleanup {
		return false
	}
	msg := unlockRespMsg(id, sys.Coordinator.GetTxnId())
	if !sys.Net.Receive(msg) {
		return false
	}
	if alreadyRecorded {
		return true
	}
	_, err := sys.Coordinator.RecordUnlockAcked(id, sys.AllStores)
	return err == nil
}

// ─── Store-side handler steps ──────────────────────────────────────────

// StoreHandleLockReq drives store id's handling of one in-flight LockReq.
func (sys *System) StoreHandleLockReq(id StoreId) bool {
	return sys.store(id).HandleLockReq(sys.Net, id, sys.Coordinator.GetTxnId(), sys.KeyA, sys.KeyAPrime)
}

// StoreHandleRenameReq drives store id's handling of one in-flight
// RenameReq.
func (sys *System) StoreHandleRenameReq(id StoreId) bool {
	return sys.store(id).HandleRenameReq(sys.Net, id, sys.Coordinator.GetTxnId(), sys.KeyA, sys.KeyAPrime)
}

// StoreHandleUnlockReq drives store id's handling of one in-flight
// UnlockReq.
func (sys *System) StoreHandleUnlockReq(id StoreId) bool {
	return sys.store(id).HandleUnlockReq(sys.Net, id, sys.Coordinator.GetTxnId(), sys.KeyA, sys.KeyAPrime)
}

// ─── Crash / recover / adversarial network steps ───────────────────────

// Crash drives the coordinator into Crashed, discarding its volatile
// state. Durable state (txn id, wal_committed) survives.
func (sys *System) Crash() bool {
	return sys.Coordinator.Crash() == nil
}

// Recover drives the coordinator out of Crashed: bumps the txn id,
// clears volatile state, and lands on Committed or Cleanup depending on
// the durable wal_committed flag. Any message still in flight tagged
// with the prior txn id becomes permanently stale from this point on.
func (sys *System) Recover() bool {
	return sys.Coordinator.Recover() == nil
}

// NetLose drops one in-flight LockReq/LockResp/RenameReq/RenameResp/
// UnlockReq/UnlockResp message matching m from the network, modeling
// adversarial packet loss.
func (sys *System) NetLose(m Message) bool {
	return sys.Net.Lose(m)
}

// NetDuplicate adds one extra in-flight copy of an already in-flight
// message, modeling adversarial retransmission.
func (sys *System) NetDuplicate(m Message) bool {
	return sys.Net.Duplicate(m)
}

// ─── Observer helpers (for tests and diagnostics) ──────────────────────

// StoreHasKeyA reports whether store id currently holds KeyA.
func (sys *System) StoreHasKeyA(id StoreId) bool {
	return sys.store(id).ContainsKey(sys.KeyA)
}

// StoreHasKeyAPrime reports whether store id currently holds KeyAPrime.
func (sys *System) StoreHasKeyAPrime(id StoreId) bool {
	return sys.store(id).ContainsKey(sys.KeyAPrime)
}

// StoreKeyALocked reports whether store id currently has KeyA locked.
func (sys *System) StoreKeyALocked(id StoreId) bool {
	return sys.store(id).IsLocked(sys.KeyA)
}

// StoreKeyAPrimeLocked reports whether store id currently has KeyAPrime
// locked.
func (sys *System) StoreKeyAPrimeLocked(id StoreId) bool {
	return sys.store(id).IsLocked(sys.KeyAPrime)
}

// StoreLastSeenTxnId returns store id's last-seen transaction id.
func (sys *System) StoreLastSeenTxnId(id StoreId) TxnId {
	return sys.store(id).LastSeenTxnId()
}

// AllDone reports whether the coordinator has reached the Done phase.
func (sys *System) AllDone() bool {
	return sys.Coordinator.GetPhase() == Done
}

// CheckInvariants asserts the system's basic well-formedness: AllStores
// matches the Stores map exactly, and the current transaction id is at
// least 1. It mirrors the reference implementation's type_ok() — a free
// check worth running after every step in a test, not a runtime
// condition any production code path depends on.
func (sys *System) CheckInvariants() error {
	if sys.Coordinator.GetTxnId() < 1 {
		return fmt.Errorf("rename2pc: invariant violated: txn id %d < 1", sys.Coordinator.GetTxnId())
	}
	if len(sys.AllStores) != len(sys.Stores) {
		return fmt.Errorf("rename2pc: invariant violated: AllStores has %d entries, Stores has %d", len(sys.AllStores), len(sys.Stores))
	}
	for _, id := range sys.AllStores {
		if _, ok := sys.Stores[id]; !ok {
			return fmt.Errorf("rename2pc: invariant violated: store %d in AllStores but not in Stores", id)
		}
	}
	return nil
}
