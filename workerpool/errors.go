package workerpool

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned for tasks submitted to, or still pending in, a
	// closed pool.
	ErrClosed = errors.New("workerpool: closed")

	// ErrWorkerFault is matched by every WorkerFault.
	ErrWorkerFault = errors.New("workerpool: worker fault")

	// ErrNoHandler is returned by New when no handler source is configured.
	ErrNoHandler = errors.New("workerpool: no handler configured")
)

// WorkerFault reports that a worker died. Every task the worker was running
// fails with it.
type WorkerFault struct {
	WorkerID int
	Err      error
	Stack    []byte // set when the fault was a panic
}

func (e *WorkerFault) Error() string {
	return fmt.Sprintf("workerpool: worker %d failed: %v", e.WorkerID, e.Err)
}

func (e *WorkerFault) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrWorkerFault) hold for every WorkerFault.
func (e *WorkerFault) Is(target error) bool { return target == ErrWorkerFault }

// SpawnError reports a failed attempt to start a worker.
type SpawnError struct {
	Attempt int
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("workerpool: spawn attempt %d: %v", e.Attempt, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }
