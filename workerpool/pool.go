package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Config configures a Pool. Exactly one handler source is used, checked in
// the order NewHandler, HandlerName, Handler.
type Config struct {
	// Workers is the fixed worker count. If 0, runtime.GOMAXPROCS(0).
	Workers int

	// NewHandler creates a private handler for every spawned worker.
	NewHandler Factory
	// HandlerName selects a factory added with Register.
	HandlerName string
	// Handler is shared by every worker.
	Handler Handler

	// TasksPerWorker is how many tasks a free worker runs at once.
	// If 0, defaults to 1.
	TasksPerWorker int

	// OnError receives pool-level errors: faults of idle workers and
	// failed respawn attempts. It must not block.
	OnError func(error)

	// Logger defaults to a discarding logger.
	Logger *slog.Logger

	// RespawnBackoff is the first delay between failed spawn attempts,
	// doubling up to MaxRespawnBackoff. Defaults 10ms and 1s.
	RespawnBackoff    time.Duration
	MaxRespawnBackoff time.Duration
}

// Stats is a snapshot of pool state.
type Stats struct {
	Workers   int
	Free      int
	Blocked   int
	Queued    int
	InFlight  int
	Completed int64
	Failed    int64 // tasks whose handler returned an error
	Faults    int64
	Respawns  int64
	Errors    int64 // pool-level errors
}

// Pool runs tasks on a fixed set of workers. Dispatch is round-robin over
// free workers; when none is free tasks wait in FIFO order. A worker that
// faults is replaced, so the worker count recovers on its own.
type Pool struct {
	cfg     Config
	factory Factory
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	roster       []*Worker
	next         int // round-robin cursor into roster
	queue        []*Future
	nextWorkerID int

	wake       chan struct{}
	stop       chan struct{}
	dispatched chan struct{}
	closed     atomic.Bool
	respawning sync.WaitGroup

	taskIDs   atomic.Uint64
	completed atomic.Int64
	failed    atomic.Int64
	faults    atomic.Int64
	respawns  atomic.Int64
	errs      atomic.Int64
}

// New starts a pool. It fails if the configuration is invalid or no
// initial worker can be spawned; workers that fail to spawn while others
// succeed are retried in the background.
func New(cfg Config) (*Pool, error) {
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workerpool: invalid worker count %d", cfg.Workers)
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.TasksPerWorker <= 0 {
		cfg.TasksPerWorker = 1
	}
	if cfg.RespawnBackoff <= 0 {
		cfg.RespawnBackoff = 10 * time.Millisecond
	}
	if cfg.MaxRespawnBackoff < cfg.RespawnBackoff {
		cfg.MaxRespawnBackoff = max(time.Second, cfg.RespawnBackoff)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	factory, err := cfg.factory()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:        cfg,
		factory:    factory,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		wake:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
		dispatched: make(chan struct{}),
	}

	var spawnErrs []error
	for range cfg.Workers {
		if err := p.spawn(); err != nil {
			spawnErrs = append(spawnErrs, err)
		}
	}
	if len(spawnErrs) == cfg.Workers {
		cancel()
		return nil, fmt.Errorf("workerpool: no worker could be spawned: %w", errors.Join(spawnErrs...))
	}
	for _, err := range spawnErrs {
		p.report(&SpawnError{Attempt: 1, Err: err})
		p.respawning.Add(1)
		go p.respawn()
	}

	go p.dispatch()
	return p, nil
}

// Run submits task and returns its future. It never blocks.
func (p *Pool) Run(task any) *Future {
	f := newFuture(p.taskIDs.Add(1), task)

	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		f.settle(nil, ErrClosed)
		return f
	}
	p.queue = append(p.queue, f)
	p.mu.Unlock()

	p.signal()
	return f
}

// RunWait submits task and waits for its result.
func (p *Pool) RunWait(ctx context.Context, task any) (any, error) {
	return p.Run(task).Wait(ctx)
}

func (p *Pool) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// dispatch is the only goroutine that moves tasks from the queue onto
// workers. Every state change that may free capacity signals it.
func (p *Pool) dispatch() {
	defer close(p.dispatched)
	for {
		select {
		case <-p.stop:
			return
		case <-p.wake:
		}

		type assignment struct {
			w *Worker
			f *Future
		}
		var starts []assignment

		p.mu.Lock()
		for len(p.queue) > 0 {
			w := p.pickLocked()
			if w == nil {
				break
			}
			f := p.queue[0]
			p.queue[0] = nil
			p.queue = p.queue[1:]
			w.inflight[f.id] = f
			starts = append(starts, assignment{w, f})
		}
		p.mu.Unlock()

		for _, a := range starts {
			go a.w.run(a.f)
		}
	}
}

// pickLocked returns the next free worker after the cursor, or nil.
func (p *Pool) pickLocked() *Worker {
	n := len(p.roster)
	for i := range n {
		idx := (p.next + i) % n
		w := p.roster[idx]
		if w.freeLocked() {
			p.next = (idx + 1) % n
			return w
		}
	}
	return nil
}

func (p *Pool) spawn() error {
	h, err := p.factory()
	if err != nil {
		return err
	}
	if h == nil {
		return ErrNoHandler
	}

	ctx, cancel := context.WithCancel(p.ctx)
	w := &Worker{
		pool:     p,
		handler:  h,
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[uint64]*Future),
	}

	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		cancel()
		return ErrClosed
	}
	w.id = p.nextWorkerID
	p.nextWorkerID++
	p.roster = append(p.roster, w)
	p.mu.Unlock()

	p.logger.Debug("worker spawned", "worker_id", w.id)
	p.signal()
	return nil
}

func (p *Pool) respawn() {
	defer p.respawning.Done()

	backoff := p.cfg.RespawnBackoff
	for attempt := 1; ; attempt++ {
		err := p.spawn()
		if err == nil {
			p.respawns.Add(1)
			return
		}
		if errors.Is(err, ErrClosed) {
			return
		}
		p.report(&SpawnError{Attempt: attempt, Err: err})

		select {
		case <-p.ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, p.cfg.MaxRespawnBackoff)
	}
}

// finish settles f unless its worker already failed it.
func (p *Pool) finish(w *Worker, f *Future, result any, err error) {
	p.mu.Lock()
	_, live := w.inflight[f.id]
	delete(w.inflight, f.id)
	p.mu.Unlock()
	if !live {
		return
	}

	if err != nil {
		p.failed.Add(1)
	}
	p.completed.Add(1)
	f.settle(result, err)
	p.signal()
}

// fault removes w, fails its tasks and schedules a replacement.
func (p *Pool) fault(w *Worker, fault *WorkerFault) {
	p.mu.Lock()
	if w.dead {
		p.mu.Unlock()
		return
	}
	w.dead = true
	for i, rw := range p.roster {
		if rw == w {
			p.roster = append(p.roster[:i], p.roster[i+1:]...)
			break
		}
	}
	if p.next >= len(p.roster) {
		p.next = 0
	}
	tasks := make([]*Future, 0, len(w.inflight))
	for _, f := range w.inflight {
		tasks = append(tasks, f)
	}
	clear(w.inflight)
	closing := p.closed.Load()
	if !closing {
		p.respawning.Add(1)
	}
	p.mu.Unlock()

	w.cancel()
	p.faults.Add(1)
	p.logger.Warn("worker fault", "worker_id", w.id, "tasks", len(tasks), "error", fault.Err)

	if len(tasks) == 0 {
		p.report(fault)
	}
	for _, f := range tasks {
		f.settle(nil, fault)
	}

	if !closing {
		go p.respawn()
	}
}

func (p *Pool) report(err error) {
	p.errs.Add(1)
	if p.cfg.OnError != nil {
		p.cfg.OnError(err)
		return
	}
	p.logger.Error("worker pool error", "error", err)
}

// Stats returns a snapshot of pool state.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	s := Stats{Workers: len(p.roster), Queued: len(p.queue)}
	for _, w := range p.roster {
		s.InFlight += len(w.inflight)
		switch {
		case w.blocked:
			s.Blocked++
		case w.freeLocked():
			s.Free++
		}
	}
	p.mu.Unlock()

	s.Completed = p.completed.Load()
	s.Failed = p.failed.Load()
	s.Faults = p.faults.Load()
	s.Respawns = p.respawns.Load()
	s.Errors = p.errs.Load()
	return s
}

// Usage returns the number of running tasks per worker.
func (p *Pool) Usage() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, len(p.roster))
	for i, w := range p.roster {
		out[i] = len(w.inflight)
	}
	return out
}

// Size returns the configured worker count.
func (p *Pool) Size() int { return p.cfg.Workers }

// Close terminates every worker. Queued and running tasks fail with
// ErrClosed; tasks that already settled keep their results. Handlers see
// their context cancelled. Close is idempotent.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	p.mu.Lock()
	pending := p.queue
	p.queue = nil
	for _, w := range p.roster {
		w.dead = true
		for _, f := range w.inflight {
			pending = append(pending, f)
		}
		clear(w.inflight)
	}
	p.roster = nil
	p.mu.Unlock()

	p.cancel()
	close(p.stop)
	<-p.dispatched
	p.respawning.Wait()

	for _, f := range pending {
		f.settle(nil, ErrClosed)
	}
	return nil
}
