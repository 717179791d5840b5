package util

// Tern returns a if cond, otherwise b. Both are always evaluated.
func Tern[T any](cond bool, a T, b T) T {
	if cond {
		return a
	}
	return b
}
