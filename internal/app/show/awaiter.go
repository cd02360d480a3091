package show

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrAwaitTimeout = errors.New("await timed out")
	ErrReplaced     = errors.New("awaiter replaced")
)

// awaiter is a one-shot result slot. The first resolve wins; later calls
// are dropped.
type awaiter[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

func newAwaiter[T any]() *awaiter[T] {
	return &awaiter[T]{done: make(chan struct{})}
}

func (a *awaiter[T]) resolve(v T, err error) bool {
	resolved := false
	a.once.Do(func() {
		a.val, a.err = v, err
		close(a.done)
		resolved = true
	})
	return resolved
}

func (a *awaiter[T]) fail(err error) bool {
	var zero T
	return a.resolve(zero, err)
}

// wait blocks until resolved, ctx ends, or timeout elapses (0 waits forever).
func (a *awaiter[T]) wait(ctx context.Context, timeout time.Duration) (T, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case <-a.done:
		return a.val, a.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-expired:
		var zero T
		return zero, ErrAwaitTimeout
	}
}

// replace installs a fresh awaiter in slot, failing whatever was there.
// Callers hold the machine lock.
func replace[T any](slot **awaiter[T]) *awaiter[T] {
	if old := *slot; old != nil {
		old.fail(ErrReplaced)
	}
	a := newAwaiter[T]()
	*slot = a
	return a
}

// take empties slot and returns what was there. Callers hold the machine lock.
func take[T any](slot **awaiter[T]) *awaiter[T] {
	a := *slot
	*slot = nil
	return a
}
