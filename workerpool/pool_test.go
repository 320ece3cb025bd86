package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square() Handler {
	return HandlerFunc(func(ctx context.Context, w *Worker, task any) (any, error) {
		n := task.(int)
		return n * n, nil
	})
}

func newPool(t *testing.T, cfg Config) *Pool {
	t.Helper()
	p, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPool_RunManyTasks(t *testing.T) {
	p := newPool(t, Config{Workers: 3, Handler: square()})

	futures := make([]*Future, 64)
	for i := range futures {
		futures[i] = p.Run(i)
	}
	for i, f := range futures {
		got, err := Await[int](t.Context(), f)
		require.NoError(t, err)
		assert.Equal(t, i*i, got)
	}

	st := p.Stats()
	assert.Equal(t, int64(64), st.Completed)
	assert.Equal(t, 3, st.Workers)
	assert.Zero(t, st.Queued)
}

func TestPool_TaskIDsArePerPool(t *testing.T) {
	a := newPool(t, Config{Workers: 1, Handler: square()})
	b := newPool(t, Config{Workers: 1, Handler: square()})

	assert.Equal(t, uint64(1), a.Run(1).ID())
	assert.Equal(t, uint64(2), a.Run(1).ID())
	assert.Equal(t, uint64(1), b.Run(1).ID())
}

func TestPool_HandlerError(t *testing.T) {
	boom := errors.New("boom")
	p := newPool(t, Config{Workers: 2, Handler: HandlerFunc(func(context.Context, *Worker, any) (any, error) {
		return nil, boom
	})})

	_, err := p.Run(nil).Wait(t.Context())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrWorkerFault)
	assert.Equal(t, int64(1), p.Stats().Failed)
}

func TestPool_FaultRejectsOnlyItsTask(t *testing.T) {
	var spawned atomic.Int32
	p := newPool(t, Config{
		Workers: 2,
		NewHandler: func() (Handler, error) {
			spawned.Add(1)
			return HandlerFunc(func(ctx context.Context, w *Worker, task any) (any, error) {
				if task == "crash" {
					panic("worker crashed")
				}
				time.Sleep(time.Millisecond)
				return task, nil
			}), nil
		},
	})

	var ok []*Future
	for i := range 10 {
		ok = append(ok, p.Run(i))
	}
	bad := p.Run("crash")
	for i := range 10 {
		ok = append(ok, p.Run(10+i))
	}

	_, err := bad.Wait(t.Context())
	var fault *WorkerFault
	require.ErrorAs(t, err, &fault)
	assert.ErrorIs(t, err, ErrWorkerFault)
	assert.NotEmpty(t, fault.Stack)

	for i, f := range ok {
		got, err := Await[int](t.Context(), f)
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}

	// The pool heals and stays usable.
	require.Eventually(t, func() bool { return p.Stats().Workers == 2 }, time.Second, time.Millisecond)
	got, err := Await[int](t.Context(), p.Run(42))
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	st := p.Stats()
	assert.Equal(t, int64(1), st.Faults)
	assert.Equal(t, int64(1), st.Respawns)
	assert.Equal(t, int32(3), spawned.Load())
}

func TestPool_IdleFaultIsPoolError(t *testing.T) {
	errs := make(chan error, 1)
	workers := make(chan *Worker, 1)
	p := newPool(t, Config{
		Workers: 1,
		OnError: func(err error) { errs <- err },
		Handler: HandlerFunc(func(ctx context.Context, w *Worker, task any) (any, error) {
			workers <- w
			return nil, nil
		}),
	})

	_, err := p.Run(nil).Wait(t.Context())
	require.NoError(t, err)
	w := <-workers

	w.Fail(errors.New("lost connection"))

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrWorkerFault)
		assert.ErrorContains(t, err, "lost connection")
	case <-time.After(time.Second):
		t.Fatal("no pool error")
	}

	require.Eventually(t, func() bool { return p.Stats().Workers == 1 && p.Stats().Respawns == 1 }, time.Second, time.Millisecond)
	_, err = p.Run(nil).Wait(t.Context())
	require.NoError(t, err)
	assert.NotEqual(t, w.ID(), (<-workers).ID())
}

func TestPool_BlockAndFree(t *testing.T) {
	release := make(chan struct{})
	blocked := make(chan *Worker, 1)
	var order []int
	var mu sync.Mutex

	p := newPool(t, Config{
		Workers:        1,
		TasksPerWorker: 4,
		Handler: HandlerFunc(func(ctx context.Context, w *Worker, task any) (any, error) {
			n := task.(int)
			if n == 0 {
				w.Block()
				blocked <- w
				<-release
				return n, nil
			}
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			return n, nil
		}),
	})

	first := p.Run(0)
	w := <-blocked

	rest := []*Future{p.Run(1), p.Run(2), p.Run(3)}

	// The only worker is blocked, so nothing else is dispatched even though
	// it has spare task capacity.
	time.Sleep(20 * time.Millisecond)
	st := p.Stats()
	assert.Equal(t, 1, st.Blocked)
	assert.Equal(t, 3, st.Queued)
	assert.Equal(t, 1, st.InFlight)

	// Completing the blocking task does not free the worker.
	close(release)
	_, err := first.Wait(t.Context())
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 3, p.Stats().Queued)

	w.Free()
	for _, f := range rest {
		_, err := f.Wait(t.Context())
		require.NoError(t, err)
	}
	assert.ElementsMatch(t, []int{1, 2, 3}, order)
}

func TestPool_FIFOQueue(t *testing.T) {
	var order []int
	var mu sync.Mutex
	gate := make(chan struct{})

	p := newPool(t, Config{Workers: 1, Handler: HandlerFunc(func(ctx context.Context, w *Worker, task any) (any, error) {
		if task == -1 {
			<-gate
			return nil, nil
		}
		mu.Lock()
		order = append(order, task.(int))
		mu.Unlock()
		return nil, nil
	})})

	head := p.Run(-1)
	var fs []*Future
	for i := range 20 {
		fs = append(fs, p.Run(i))
	}
	close(gate)
	_, _ = head.Wait(t.Context())
	for _, f := range fs {
		_, _ = f.Wait(t.Context())
	}

	want := make([]int, 20)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, order)
}

func TestPool_RoundRobin(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[int]int)
	p := newPool(t, Config{Workers: 4, TasksPerWorker: 8, Handler: HandlerFunc(func(ctx context.Context, w *Worker, task any) (any, error) {
		mu.Lock()
		seen[w.ID()]++
		mu.Unlock()
		return nil, nil
	})})

	var fs []*Future
	for range 40 {
		fs = append(fs, p.Run(nil))
	}
	for _, f := range fs {
		_, err := f.Wait(t.Context())
		require.NoError(t, err)
	}
	assert.Len(t, seen, 4, "every worker received work")
}

func TestPool_Close(t *testing.T) {
	started := make(chan struct{})
	p, err := New(Config{Workers: 1, Handler: HandlerFunc(func(ctx context.Context, w *Worker, task any) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})})
	require.NoError(t, err)

	running := p.Run(nil)
	<-started
	queued := p.Run(nil)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err = running.Wait(t.Context())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = queued.Wait(t.Context())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = p.Run(nil).Wait(t.Context())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPool_SpawnFailures(t *testing.T) {
	_, err := New(Config{Workers: 2, NewHandler: func() (Handler, error) {
		return nil, errors.New("no runtime")
	}})
	require.Error(t, err)
	assert.ErrorContains(t, err, "no runtime")

	_, err = New(Config{Workers: 1})
	assert.ErrorIs(t, err, ErrNoHandler)

	_, err = New(Config{Workers: -1, Handler: square()})
	assert.Error(t, err)
}

func TestPool_RespawnRetries(t *testing.T) {
	var calls atomic.Int32
	var poolErrs atomic.Int32

	p := newPool(t, Config{
		Workers:        1,
		RespawnBackoff: time.Millisecond,
		OnError:        func(error) { poolErrs.Add(1) },
		NewHandler: func() (Handler, error) {
			// First spawn works, the next two fail, then it recovers.
			switch calls.Add(1) {
			case 2, 3:
				return nil, errors.New("transient")
			}
			return HandlerFunc(func(ctx context.Context, w *Worker, task any) (any, error) {
				if task == "crash" {
					panic("crash")
				}
				return "ok", nil
			}), nil
		},
	})

	_, err := p.Run("crash").Wait(t.Context())
	require.ErrorIs(t, err, ErrWorkerFault)

	got, err := Await[string](t.Context(), p.Run("again"))
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, int32(2), poolErrs.Load())
}

func TestRegistry(t *testing.T) {
	Register("test-square", func() (Handler, error) { return square(), nil })
	assert.Contains(t, Handlers(), "test-square")
	assert.Panics(t, func() { Register("test-square", func() (Handler, error) { return nil, nil }) })

	p := newPool(t, Config{Workers: 2, HandlerName: "test-square"})
	got, err := Await[int](t.Context(), p.Run(7))
	require.NoError(t, err)
	assert.Equal(t, 49, got)

	_, err = New(Config{HandlerName: "missing"})
	assert.Error(t, err)
}

func TestAwait_TypeMismatch(t *testing.T) {
	p := newPool(t, Config{Workers: 1, Handler: square()})
	_, err := Await[string](t.Context(), p.Run(3))
	assert.Error(t, err)
}

func TestFuture_WaitContext(t *testing.T) {
	hold := make(chan struct{})
	p := newPool(t, Config{Workers: 1, Handler: HandlerFunc(func(ctx context.Context, w *Worker, task any) (any, error) {
		<-hold
		return 1, nil
	})})

	f := p.Run(nil)
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, _, done := f.Result()
	assert.False(t, done)

	close(hold)
	v, err := f.Wait(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}
