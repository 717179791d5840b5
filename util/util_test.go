package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTern(t *testing.T) {
	require.Equal(t, 1, Tern(true, 1, 2))
	require.Equal(t, "b", Tern(false, "a", "b"))
}

func TestSortedKeys(t *testing.T) {
	rq := require.New(t)
	rq.Equal([]string{"A", "B", "C"}, SortedKeys(map[string]int{"C": 1, "A": 2, "B": 3}))
	rq.Empty(SortedKeys(map[int]bool{}))
}

func TestDefaultMap(t *testing.T) {
	rq := require.New(t)

	calls := 0
	m := NewDefaultMap(func(k string) *int {
		calls++
		v := len(k)
		return &v
	})
	rq.Equal(3, *m.Get("FOO"))
	*m.Get("FOO") += 1
	rq.Equal(4, *m.Get("FOO"))
	rq.Equal(1, calls)

	m.Set("BA", nil)
	rq.Nil(m.Get("BA"))
	rq.Equal(1, calls)

	seen := map[string]bool{}
	m.ForEach(func(k string, v *int) bool {
		seen[k] = true
		return true
	})
	rq.Equal(map[string]bool{"FOO": true, "BA": true}, seen)
}

func TestSet(t *testing.T) {
	rq := require.New(t)
	s := NewSet("a", "b")
	rq.True(s.Has("a"))
	rq.False(s.Has("c"))
	s.Add("c")
	rq.True(s.Has("c"))
}

func TestAssertPanics(t *testing.T) {
	AssertsPanic = true
	defer func() { AssertsPanic = false }()

	require.PanicsWithValue(t, "bad 3", func() { Assertf(false, "bad %d", 3) })
	require.NotPanics(t, func() { Assert(true, "fine") })
}
