// Package rename2pc is the core of a two-phase-commit protocol that
// atomically renames a logical key A -> A' across a fixed set of
// replicated key-value stores, under an adversarial network (loss,
// duplication, reordering) and coordinator crashes with a durable
// write-ahead log but otherwise volatile state.
//
// Everything in this package is synchronous and step-based: there is no
// goroutine, no channel, no timer. Concurrency is modeled externally as
// non-deterministic interleaving of the step operations exposed by
// System (see driver.go) — the same way a model checker or a table-driven
// test would drive it. A real deployment binds Network to a transport
// (see ../transport) and the coordinator's durable fields to a real log
// (see ../coordlog); neither binding changes the semantics here.
package rename2pc

import (
	"encoding/json"
	"fmt"
)

// StoreId identifies one replica. It is a key into the fixed set of
// stores decided at system construction (System.Stores) — never minted
// or retired at runtime.
type StoreId uint32

// TxnId is the coordinator's transaction identifier. It starts at 1 and
// is incremented by exactly one on every crash/recover cycle; stores use
// it to tell a stale, resurrected message from a current one.
type TxnId uint64

// MessageKind tags the six message variants the protocol exchanges.
// Requests flow coordinator -> store; responses flow store -> coordinator.
type MessageKind uint8

const (
	LockReq MessageKind = iota
	LockResp
	RenameReq
	RenameResp
	UnlockReq
	UnlockResp
)

// ParseMessageKind is String's inverse, for decoding messages off the
// wire (see ../api and ../transport). It returns an error rather than
// panicking, since a malformed request body is caller input, not a
// programmer error.
func ParseMessageKind(s string) (MessageKind, error) {
	switch s {
	case "LockReq":
		return LockReq, nil
	case "LockResp":
		return LockResp, nil
	case "RenameReq":
		return RenameReq, nil
	case "RenameResp":
		return RenameResp, nil
	case "UnlockReq":
		return UnlockReq, nil
	case "UnlockResp":
		return UnlockResp, nil
	default:
		return 0, fmt.Errorf("rename2pc: invalid message kind %q", s)
	}
}

func (k MessageKind) String() string {
	switch k {
	case LockReq:
		return "LockReq"
	case LockResp:
		return "LockResp"
	case RenameReq:
		return "RenameReq"
	case RenameResp:
		return "RenameResp"
	case UnlockReq:
		return "UnlockReq"
	case UnlockResp:
		return "UnlockResp"
	default:
		panic(fmt.Sprintf("rename2pc: invalid message kind %d", uint8(k)))
	}
}

// MarshalJSON renders a MessageKind as its name, so wire messages read
// as {"kind":"LockReq",...} rather than a bare integer.
func (k MessageKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON is MarshalJSON's inverse.
func (k *MessageKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMessageKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Message is a plain, comparable value — two messages are equal iff every
// field matches. That comparability is what lets Network use Message
// directly as a multiset key (see network.go): the network holds
// independent copies, never pointers to a single shared value.
//
// Success is only meaningful on LockResp; it is the zero value (false)
// on every other kind.
type Message struct {
	Kind    MessageKind `json:"kind"`
	Store   StoreId     `json:"store"`
	TxnId   TxnId       `json:"txn_id"`
	Success bool        `json:"success"`
}

func lockReqMsg(s StoreId, t TxnId) Message    { return Message{Kind: LockReq, Store: s, TxnId: t} }
func renameReqMsg(s StoreId, t TxnId) Message  { return Message{Kind: RenameReq, Store: s, TxnId: t} }
func unlockReqMsg(s StoreId, t TxnId) Message  { return Message{Kind: UnlockReq, Store: s, TxnId: t} }
func renameRespMsg(s StoreId, t TxnId) Message { return Message{Kind: RenameResp, Store: s, TxnId: t} }
func unlockRespMsg(s StoreId, t TxnId) Message { return Message{Kind: UnlockResp, Store: s, TxnId: t} }

func lockRespMsg(s StoreId, success bool, t TxnId) Message {
	return Message{Kind: LockResp, Store: s, TxnId: t, Success: success}
}
