//go:build debug

package channel

// New returns the channel used in debug builds: unbuffered (size is
// ignored), so handler backpressure surfaces immediately under test.
func New[T any](size int) Channel[T] {
	return NewUnbuffered[T]()
}
