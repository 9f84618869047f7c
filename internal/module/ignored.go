package module

// Ignored holds a field that the protocol carries but never visits or maps,
// such as a padding policy. It contributes no parameters and no devices.
type Ignored[T any] struct {
	value T
}

// Ignore wraps v.
func Ignore[T any](v T) Ignored[T] {
	return Ignored[T]{value: v}
}

// Get returns the wrapped value.
func (i Ignored[T]) Get() T {
	return i.value
}
