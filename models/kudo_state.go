package models

// KudoState is what a client shows for one check-in: whether the viewer has
// kudoed it and how many kudos it has. It is never persisted.
type KudoState struct {
	Kudoed bool  `json:"kudoed"`
	Count  int64 `json:"kudo_count"`
}

// Tentative returns the optimistic state after a local toggle, before the
// server has answered.
func (s KudoState) Tentative() KudoState {
	if s.Kudoed {
		n := s.Count - 1
		if n < 0 {
			n = 0
		}
		return KudoState{Kudoed: false, Count: n}
	}
	return KudoState{Kudoed: true, Count: s.Count + 1}
}

// Reconcile discards local state in favour of the authoritative server answer.
func (s KudoState) Reconcile(server KudoState) KudoState {
	return server
}
