package filedb

// stack holds node offsets still to be visited by a lookup.
type stack struct {
	list []uint64
}

func (s *stack) push(links ...uint64) {
	s.list = append(s.list, links...)
}

// pushReversed pushes links so that links[0] is popped first.
func (s *stack) pushReversed(links []uint64) {
	for i := len(links) - 1; i >= 0; i-- {
		s.list = append(s.list, links[i])
	}
}

func (s *stack) pop() (uint64, bool) {
	if len(s.list) == 0 {
		return 0, false
	}
	v := s.list[len(s.list)-1]
	s.list = s.list[:len(s.list)-1]
	return v, true
}

func (s *stack) len() int {
	return len(s.list)
}
