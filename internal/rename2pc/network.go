package rename2pc

import "sync"

// Network is a finite multiset of in-flight Message values — not a queue.
// There is no FIFO ordering and no per-connection semantics; a recipient
// that "receives" picks up an arbitrary copy of whatever it asked for.
// That absence of ordering is deliberate: it is what forces idempotence
// into every handler in this package, and what makes the protocol
// testable against adversarial interleavings (see the S1-S6 scenarios in
// driver_test.go).
//
// Network is safe for concurrent use, guarded by a single mutex, the same
// way internal/store's WAL guards its single file with one mutex — there
// is exactly one multiset, and every operation on it is a small, fast,
// in-memory map mutation.
type Network struct {
	mu     sync.Mutex
	counts map[Message]int
}

// NewNetwork returns an empty multiset.
func NewNetwork() *Network {
	return &Network{counts: make(map[Message]int)}
}

// Send enqueues one copy of m.
func (n *Network) Send(m Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counts[m]++
}

// Contains reports whether at least one copy of m is in flight.
func (n *Network) Contains(m Message) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.counts[m] > 0
}

// Count returns how many copies of m are currently in flight.
func (n *Network) Count(m Message) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.counts[m]
}

// Receive removes one copy of m, the primitive a recipient (a store
// handler or the coordinator) uses to consume a message it is processing.
// It reports whether a copy was available.
func (n *Network) Receive(m Message) bool {
	return n.takeOne(m)
}

// Lose removes one copy of m, modeling environment-driven packet loss
// rather than a recipient consuming it. Mechanically identical to
// Receive; kept as a distinct name because the two represent different
// actors in the step vocabulary (see driver.go's NetLose).
func (n *Network) Lose(m Message) bool {
	return n.takeOne(m)
}

func (n *Network) takeOne(m Message) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.counts[m] <= 0 {
		return false
	}
	n.counts[m]--
	if n.counts[m] == 0 {
		delete(n.counts, m)
	}
	return true
}

// Duplicate adds one extra copy of an already in-flight message, modeling
// network-driven retransmission. A no-op returning false if m is not
// currently in flight.
func (n *Network) Duplicate(m Message) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.counts[m] <= 0 {
		return false
	}
	n.counts[m]++
	return true
}

// IsEmpty reports whether the network holds no messages at all.
func (n *Network) IsEmpty() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.counts) == 0
}

// Len returns the total number of in-flight messages, counting
// duplicates individually.
func (n *Network) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, c := range n.counts {
		total += c
	}
	return total
}

// Snapshot returns a copy of the multiset's contents for diagnostics; the
// returned map is safe to mutate without affecting the network.
func (n *Network) Snapshot() map[Message]int {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[Message]int, len(n.counts))
	for m, c := range n.counts {
		out[m] = c
	}
	return out
}
