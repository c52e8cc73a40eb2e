package rename2pc

import "sync"

// Store is one replica's key/value map plus the protocol-level lock set
// and the last transaction id it has observed. Every store in a system is
// independent — there is no cross-store coordination here, only what the
// coordinator drives through messages.
//
// Unlike internal/store's Value in the teacher repo, values here carry no
// vector clock: the protocol serializes all writes through a single
// active transaction at a time (see rename2pc.System's doc comment), so
// the monotonic TxnId plus last-seen-txn-id staleness check is the only
// freshness mechanism this domain needs.
type Store struct {
	mu            sync.Mutex
	data          map[string]uint64
	lockedKeys    map[string]struct{}
	lastSeenTxnId TxnId
}

// NewStore returns an empty store: no keys, no locks, last-seen txn id 0.
func NewStore() *Store {
	return &Store{
		data:       make(map[string]uint64),
		lockedKeys: make(map[string]struct{}),
	}
}

// Get returns the value at key, if any.
func (s *Store) Get(key string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// ContainsKey reports whether key is present.
func (s *Store) ContainsKey(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

// IsLocked reports whether key is currently locked.
func (s *Store) IsLocked(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lockedKeys[key]
	return ok
}

// Put stores key=v, unless key is locked, in which case it is a no-op
// that reports false.
func (s *Store) Put(key string, v uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, locked := s.lockedKeys[key]; locked {
		return false
	}
	s.data[key] = v
	return true
}

// Delete removes key, unless key is locked, in which case it is a no-op
// that reports false.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, locked := s.lockedKeys[key]; locked {
		return false
	}
	delete(s.data, key)
	return true
}

// Lock marks key as locked. Idempotent: locking an already-locked key is
// a no-op.
func (s *Store) Lock(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockedKeys[key] = struct{}{}
}

// Unlock clears key's lock. Idempotent: unlocking an already-unlocked key
// is a no-op.
func (s *Store) Unlock(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lockedKeys, key)
}

// Rename atomically moves the value at old to new and reports the moved
// value, or reports false (no-op) if old is absent. The move is a single
// map mutation under the store's mutex — no intermediate state in which
// both or neither key holds the value is ever observable by a concurrent
// reader of this Store.
func (s *Store) Rename(oldKey, newKey string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[oldKey]
	if !ok {
		return 0, false
	}
	delete(s.data, oldKey)
	s.data[newKey] = v
	return v, true
}

// UpdateTxnId advances last-seen-txn-id to max(current, t). It never
// touches data or locked keys.
func (s *Store) UpdateTxnId(t TxnId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t > s.lastSeenTxnId {
		s.lastSeenTxnId = t
	}
}

// IsStaleTxnId reports whether t is strictly older than this store's
// last-seen txn id. Strictly-older (not less-or-equal) is load-bearing:
// it lets a transaction's own retransmitted messages be processed
// idempotently while still rejecting any message left over from a prior
// transaction.
func (s *Store) IsStaleTxnId(t TxnId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t < s.lastSeenTxnId
}

// LastSeenTxnId returns the store's current last-seen txn id.
func (s *Store) LastSeenTxnId() TxnId {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeenTxnId
}

// ─── Request handlers ───────────────────────────────────────────────────
//
// Each handler consumes exactly one copy of its matching request from net
// and reports whether a copy was present. All three are total (they never
// panic on adversarial input) and idempotent under duplicate delivery of
// the same (store, txn_id) request, which is what makes retransmission —
// the driver's responsibility, never this package's — safe.

// HandleLockReq processes one LockReq{id, txnId}. A stale request is
// consumed and silently dropped. Otherwise last-seen-txn-id is refreshed;
// if keyAPrime already exists (a prior transaction already renamed),
// the lock is refused; otherwise both keys are locked (idempotently) and
// the lock is granted.
func (s *Store) HandleLockReq(net *Network, id StoreId, txnId TxnId, keyA, keyAPrime string) bool {
	req := lockReqMsg(id, txnId)
	if !net.Receive(req) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if txnId < s.lastSeenTxnId {
		return true // consumed, stale, no response
	}
	if txnId > s.lastSeenTxnId {
		s.lastSeenTxnId = txnId
	}

	if _, renamed := s.data[keyAPrime]; renamed {
		net.Send(lockRespMsg(id, false, txnId))
		return true
	}

	s.lockedKeys[keyA] = struct{}{}
	s.lockedKeys[keyAPrime] = struct{}{}
	net.Send(lockRespMsg(id, true, txnId))
	return true
}

// HandleRenameReq processes one RenameReq{id, txnId}. A stale request is
// consumed and dropped. If keyAPrime already holds the value (a previous
// delivery of this same request already renamed it), the handler responds
// success without mutating anything — idempotent redelivery. If both keys
// are locked and keyA is present, the rename is performed and a response
// is sent. Otherwise the preconditions are not yet met (e.g. the lock
// phase hasn't completed on this store) and the request is dropped
// silently; the coordinator will retransmit.
func (s *Store) HandleRenameReq(net *Network, id StoreId, txnId TxnId, keyA, keyAPrime string) bool {
	req := renameReqMsg(id, txnId)
	if !net.Receive(req) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if txnId < s.lastSeenTxnId {
		return true
	}
	if txnId > s.lastSeenTxnId {
		s.lastSeenTxnId = txnId
	}

	if _, renamed := s.data[keyAPrime]; renamed {
		net.Send(renameRespMsg(id, txnId))
		return true
	}

	_, aLocked := s.lockedKeys[keyA]
	_, aPrimeLocked := s.lockedKeys[keyAPrime]
	v, aPresent := s.data[keyA]
	if aLocked && aPrimeLocked && aPresent {
		delete(s.data, keyA)
		s.data[keyAPrime] = v
		net.Send(renameRespMsg(id, txnId))
		return true
	}

	return true // consumed, preconditions unmet, silently dropped
}

// HandleUnlockReq processes one UnlockReq{id, txnId}. A stale request is
// consumed and dropped; otherwise last-seen-txn-id is refreshed, both
// keys are unlocked (idempotently), and a response is sent.
func (s *Store) HandleUnlockReq(net *Network, id StoreId, txnId TxnId, keyA, keyAPrime string) bool {
	req := unlockReqMsg(id, txnId)
	if !net.Receive(req) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if txnId < s.lastSeenTxnId {
		return true
	}
	if txnId > s.lastSeenTxnId {
		s.lastSeenTxnId = txnId
	}

	delete(s.lockedKeys, keyA)
	delete(s.lockedKeys, keyAPrime)
	net.Send(unlockRespMsg(id, txnId))
	return true
}
