package workerpool

import (
	"context"
	"fmt"
	"sync"
)

// Future is the pending result of a submitted task.
type Future struct {
	id   uint64
	task any
	done chan struct{}
	once sync.Once

	result any
	err    error
}

func newFuture(id uint64, task any) *Future {
	return &Future{id: id, task: task, done: make(chan struct{})}
}

// ID returns the pool-assigned task id.
func (f *Future) ID() uint64 { return f.id }

// Done is closed once the task has settled.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the task settles or ctx ends. Returning on ctx does not
// abandon the task; it may still complete later.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome without blocking; ok is false while pending.
func (f *Future) Result() (result any, err error, ok bool) {
	select {
	case <-f.done:
		return f.result, f.err, true
	default:
		return nil, nil, false
	}
}

// settle records the outcome once; later calls are ignored.
func (f *Future) settle(result any, err error) bool {
	settled := false
	f.once.Do(func() {
		f.result, f.err = result, err
		close(f.done)
		settled = true
	})
	return settled
}

// Await waits for f and asserts its result to T.
func Await[T any](ctx context.Context, f *Future) (T, error) {
	var zero T
	v, err := f.Wait(ctx)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("workerpool: task %d returned %T, want %T", f.id, v, zero)
	}
	return t, nil
}
