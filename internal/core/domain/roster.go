package domain

// Roster is an insertion-ordered set of remote peers. Values are immutable:
// With and Without return a new Roster and never touch the receiver, so
// snapshots handed to observers can be shared freely.
type Roster struct {
	ids   []PeerID
	index map[PeerID]struct{}
}

func (r Roster) Contains(id PeerID) bool {
	_, ok := r.index[id]
	return ok
}

func (r Roster) Len() int {
	return len(r.ids)
}

// IDs returns the members in the order they joined.
func (r Roster) IDs() []PeerID {
	out := make([]PeerID, len(r.ids))
	copy(out, r.ids)
	return out
}

// With returns r plus id. Adding a known peer returns r unchanged.
func (r Roster) With(id PeerID) Roster {
	if r.Contains(id) {
		return r
	}
	next := Roster{
		ids:   make([]PeerID, 0, len(r.ids)+1),
		index: make(map[PeerID]struct{}, len(r.ids)+1),
	}
	for _, existing := range r.ids {
		next.ids = append(next.ids, existing)
		next.index[existing] = struct{}{}
	}
	next.ids = append(next.ids, id)
	next.index[id] = struct{}{}
	return next
}

// Without returns r minus id. Removing an unknown peer returns r unchanged.
func (r Roster) Without(id PeerID) Roster {
	if !r.Contains(id) {
		return r
	}
	if len(r.ids) == 1 {
		return Roster{}
	}
	next := Roster{
		ids:   make([]PeerID, 0, len(r.ids)-1),
		index: make(map[PeerID]struct{}, len(r.ids)-1),
	}
	for _, existing := range r.ids {
		if existing == id {
			continue
		}
		next.ids = append(next.ids, existing)
		next.index[existing] = struct{}{}
	}
	return next
}

func NewRoster(ids ...PeerID) Roster {
	var r Roster
	for _, id := range ids {
		r = r.With(id)
	}
	return r
}

// Equal compares membership and order.
func (r Roster) Equal(o Roster) bool {
	if len(r.ids) != len(o.ids) {
		return false
	}
	for i := range r.ids {
		if r.ids[i] != o.ids[i] {
			return false
		}
	}
	return true
}
