package mvc

import (
	"context"
	"sync/atomic"
)

// oneshot is a single-assignment cell: the first settle wins, later ones are refused.
type oneshot[T any] struct {
	settled atomic.Bool
	ch      chan T
}

func newOneshot[T any]() *oneshot[T] {
	return &oneshot[T]{ch: make(chan T, 1)}
}

func (o *oneshot[T]) settle(v T) bool {
	if !o.settled.CompareAndSwap(false, true) {
		return false
	}
	o.ch <- v
	return true
}

func (o *oneshot[T]) wait(ctx context.Context) (T, error) {
	select {
	case v := <-o.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
