package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
)

// Worker is one execution context of a Pool. Handlers receive their worker
// to report status changes.
type Worker struct {
	id      int
	pool    *Pool
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc

	// guarded by pool.mu
	blocked  bool
	dead     bool
	inflight map[uint64]*Future
}

// ID returns the worker id. Replacement workers get fresh ids.
func (w *Worker) ID() int { return w.id }

// Context is cancelled when the worker dies or the pool closes.
func (w *Worker) Context() context.Context { return w.ctx }

// Block stops dispatch to w until Free is called. Running tasks are not
// affected.
func (w *Worker) Block() {
	w.pool.mu.Lock()
	w.blocked = true
	w.pool.mu.Unlock()
}

// Free makes w eligible for dispatch again.
func (w *Worker) Free() {
	w.pool.mu.Lock()
	w.blocked = false
	w.pool.mu.Unlock()
	w.pool.signal()
}

// Fail reports an asynchronous fault. The worker is replaced and every
// task it is running fails with a *WorkerFault wrapping err.
func (w *Worker) Fail(err error) {
	w.pool.fault(w, &WorkerFault{WorkerID: w.id, Err: err})
}

func (w *Worker) freeLocked() bool {
	return !w.dead && !w.blocked && len(w.inflight) < w.pool.cfg.TasksPerWorker
}

func (w *Worker) run(f *Future) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("panic: %v", r)
			}
			w.pool.fault(w, &WorkerFault{WorkerID: w.id, Err: err, Stack: debug.Stack()})
		}
	}()

	result, err := w.handler.Handle(w.ctx, w, f.task)
	w.pool.finish(w, f, result, err)
}
