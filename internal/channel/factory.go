//go:build !debug

package channel

// New returns the channel used in production builds: buffered with the
// given capacity, so event sinks absorb bursts without blocking Publish.
func New[T any](size int) Channel[T] {
	return NewBuffered[T](size)
}
