package match

import "slices"

// State is the set of answer indices resolved so far. It only grows.
type State struct {
	found map[int]struct{}
}

// NewState returns an empty state.
func NewState() *State {
	return &State{found: make(map[int]struct{})}
}

// Has reports whether index i has been resolved.
func (s *State) Has(i int) bool {
	_, ok := s.found[i]
	return ok
}

// Len returns the number of resolved indices.
func (s *State) Len() int {
	return len(s.found)
}

// Indices returns the resolved indices in ascending order.
func (s *State) Indices() []int {
	out := make([]int, 0, len(s.found))
	for i := range s.found {
		out = append(out, i)
	}
	slices.Sort(out)
	return out
}

func (s *State) add(i int) {
	if s.found == nil {
		s.found = make(map[int]struct{})
	}
	s.found[i] = struct{}{}
}
