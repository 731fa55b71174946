package room

// roster is an insertion-ordered userId -> Profile table. Overwriting an
// existing user keeps its position; removing and re-adding appends it.
type roster struct {
	order    []string
	profiles map[string]*Profile
}

func newRoster() *roster {
	return &roster{profiles: make(map[string]*Profile)}
}

func (r *roster) put(p Profile) {
	if existing, ok := r.profiles[p.UserID]; ok {
		*existing = p
		return
	}
	stored := p
	r.profiles[p.UserID] = &stored
	r.order = append(r.order, p.UserID)
}

func (r *roster) get(userID string) (*Profile, bool) {
	p, ok := r.profiles[userID]
	return p, ok
}

func (r *roster) remove(userID string) bool {
	if _, ok := r.profiles[userID]; !ok {
		return false
	}
	delete(r.profiles, userID)
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *roster) len() int {
	return len(r.order)
}

// list returns copies of every profile in insertion order.
func (r *roster) list() []Profile {
	out := make([]Profile, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.profiles[id])
	}
	return out
}
