package refresh

import (
	"context"
	"fmt"
	"sync"
)

type waiter[T any] struct {
	resolve func(T)
	reject  func(error)
}

// Flight runs at most one operation at a time. Callers arriving while it runs are queued
// and settled with its outcome in the order they arrived.
type Flight[T any] struct {
	mu       sync.Mutex
	inFlight bool
	waiters  []waiter[T]
}

// InFlight reports whether an operation is running.
func (f *Flight[T]) InFlight() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

// Waiters returns the number of callers queued on the running operation.
func (f *Flight[T]) Waiters() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waiters)
}

// Join queues a continuation on the running operation. It returns false, queuing nothing,
// when no operation is running.
func (f *Flight[T]) Join(resolve func(T), reject func(error)) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.inFlight {
		return false
	}
	f.waiters = append(f.waiters, waiter[T]{resolve: resolve, reject: reject})
	return true
}

type outcome[T any] struct {
	value T
	err   error
}

// Do runs fn, or waits for the operation already running. joined reports whether the caller
// waited on another caller's operation. A waiter whose ctx ends stops waiting; the running
// operation is not cancelled.
func (f *Flight[T]) Do(ctx context.Context, fn func(context.Context) (T, error)) (value T, joined bool, err error) {
	f.mu.Lock()
	if f.inFlight {
		ch := make(chan outcome[T], 1)
		f.waiters = append(f.waiters, waiter[T]{
			resolve: func(v T) { ch <- outcome[T]{value: v} },
			reject:  func(e error) { ch <- outcome[T]{err: e} },
		})
		f.mu.Unlock()

		select {
		case o := <-ch:
			return o.value, true, o.err
		case <-ctx.Done():
			var zero T
			return zero, true, ctx.Err()
		}
	}
	f.inFlight = true
	f.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			var zero T
			f.settle(zero, fmt.Errorf("refresh panicked: %v", r))
			panic(r)
		}
	}()

	value, err = fn(ctx)
	f.settle(value, err)
	return value, false, err
}

// settle ends the running operation and settles its waiters in FIFO order.
func (f *Flight[T]) settle(value T, err error) {
	f.mu.Lock()
	waiters := f.waiters
	f.waiters = nil
	f.inFlight = false
	f.mu.Unlock()

	for _, w := range waiters {
		if err != nil {
			w.reject(err)
		} else {
			w.resolve(value)
		}
	}
}
