package rips

import "github.com/google/uuid"

// PatientSet is an insertion-ordered set of patient IDs scoped to one export
// run. The zero value is not usable; call NewPatientSet.
type PatientSet struct {
	seen  map[uuid.UUID]struct{}
	order []uuid.UUID
}

func NewPatientSet() *PatientSet {
	return &PatientSet{seen: make(map[uuid.UUID]struct{})}
}

// Observe returns true the first time id is seen and false afterwards.
func (s *PatientSet) Observe(id uuid.UUID) bool {
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// Order returns the observed IDs in first-seen order.
func (s *PatientSet) Order() []uuid.UUID {
	out := make([]uuid.UUID, len(s.order))
	copy(out, s.order)
	return out
}
