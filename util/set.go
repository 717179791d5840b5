package util

type Set[T comparable] struct {
	set map[T]bool
}

func NewSet[T comparable](vals ...T) *Set[T] {
	s := &Set[T]{make(map[T]bool, len(vals))}
	for _, v := range vals {
		s.Add(v)
	}
	return s
}

func (m *Set[T]) Has(val T) bool {
	_, ok := m.set[val]
	return ok
}

func (m *Set[T]) Add(val T) {
	m.set[val] = true
}
