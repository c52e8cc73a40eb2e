// Package roster is the static binding from a rename2pc.StoreId to the
// network address the real HTTP transport (../transport) dials to reach
// it. It is deliberately immutable: spec's AllStores is a fixed set
// decided at system construction, with no Join or Leave operation
// anywhere in the protocol, unlike the teacher's own Membership, which
// exists to support a dynamically growing cluster.
package roster

import (
	"fmt"

	"rename2pc/internal/rename2pc"
)

// Member is one store's address.
type Member struct {
	Id      rename2pc.StoreId `json:"id"`
	Address string            `json:"address"`
}

// Roster is an immutable StoreId -> address table.
type Roster struct {
	members map[rename2pc.StoreId]string
	order   []rename2pc.StoreId
}

// New builds a Roster from members. It panics on a duplicate StoreId,
// since a malformed roster is a startup-time configuration error, not a
// runtime condition any caller should recover from.
func New(members []Member) *Roster {
	r := &Roster{members: make(map[rename2pc.StoreId]string, len(members))}
	for _, m := range members {
		if _, ok := r.members[m.Id]; ok {
			panic(fmt.Sprintf("roster: duplicate store id %d", m.Id))
		}
		r.members[m.Id] = m.Address
		r.order = append(r.order, m.Id)
	}
	return r
}

// Address returns the address registered for id.
func (r *Roster) Address(id rename2pc.StoreId) (string, bool) {
	addr, ok := r.members[id]
	return addr, ok
}

// StoreIds returns every store id in the roster, in the order New was
// given them.
func (r *Roster) StoreIds() []rename2pc.StoreId {
	return append([]rename2pc.StoreId(nil), r.order...)
}

// Len returns the number of stores in the roster.
func (r *Roster) Len() int {
	return len(r.order)
}
