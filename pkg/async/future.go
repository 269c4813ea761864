package async

import "context"

// Future carries the eventual result of an operation running in its own
// goroutine. Callers that lose interest simply stop waiting; nothing
// cancels the underlying work.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go runs fn in a new goroutine and returns immediately.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn()
	}()
	return f
}

// Resolved returns an already-completed future. Used to report validation
// failures synchronously, before any I/O has been issued.
func Resolved[T any](val T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), val: val, err: err}
	close(f.done)
	return f
}

// Await blocks until the future completes or ctx is done. An abandoned
// future keeps running; ctx only releases the waiter.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }
