package worker

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/xraph/headless"
	"github.com/xraph/headless/id"
)

// RunFunc executes one run. Its ctx is cancelled when the run is
// cancelled or the pool is stopped past its deadline.
type RunFunc func(ctx context.Context) error

// Handle tracks a run submitted to a Pool.
type Handle struct {
	runID  id.RunID
	cancel context.CancelCauseFunc
	done   chan struct{}
	err    error
}

// RunID returns the ID of the tracked run.
func (h *Handle) RunID() id.RunID { return h.runID }

// Done is closed when the run has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the run's result. It is only meaningful after Done is closed.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Cancel cancels the run's context with cause.
func (h *Handle) Cancel(cause error) { h.cancel(cause) }

// Wait blocks until the run finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pool bounds the number of runs executing at once. Submitted runs that
// exceed the bound wait for a slot; they are tracked (and cancellable)
// while they wait.
type Pool struct {
	sem         *semaphore.Weighted
	concurrency int
	logger      *slog.Logger

	base       context.Context
	cancelBase context.CancelCauseFunc

	mu      sync.Mutex
	active  map[string]*Handle
	stopped bool
	wg      sync.WaitGroup
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets how many runs execute at once. Values below 1
// are clamped to 1.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithPoolLogger sets the pool's logger.
func WithPoolLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

// NewPool creates a pool.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		concurrency: 10,
		logger:      slog.Default(),
		active:      make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	p.sem = semaphore.NewWeighted(int64(p.concurrency))
	p.base, p.cancelBase = context.WithCancelCause(context.Background())
	return p
}

// Concurrency returns the maximum number of runs executing at once.
func (p *Pool) Concurrency() int { return p.concurrency }

// Submit schedules fn for runID. It returns headless.ErrEngineStopped
// once Stop has been called.
//
// fn always runs, even when the run is cancelled before a slot frees up,
// so it can record the cancellation; it then sees a cancelled ctx.
func (p *Pool) Submit(runID id.RunID, fn RunFunc) (*Handle, error) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil, headless.ErrEngineStopped
	}
	ctx, cancel := context.WithCancelCause(p.base)
	h := &Handle{runID: runID, cancel: cancel, done: make(chan struct{})}
	p.active[runID.String()] = h
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer cancel(nil)

		acquired := p.sem.Acquire(ctx, 1) == nil
		h.err = fn(ctx)
		if acquired {
			p.sem.Release(1)
		}

		p.untrack(runID)
		close(h.done)
	}()

	return h, nil
}

// Get returns the handle of an active run.
func (p *Pool) Get(runID id.RunID) (*Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.active[runID.String()]
	return h, ok
}

// IsRunning reports whether runID is submitted and not yet finished.
func (p *Pool) IsRunning(runID id.RunID) bool {
	_, ok := p.Get(runID)
	return ok
}

// Cancel cancels an active run with headless.ErrRunCancelled. It reports
// whether the run was active.
func (p *Pool) Cancel(runID id.RunID) bool {
	h, ok := p.Get(runID)
	if !ok {
		return false
	}
	h.Cancel(headless.ErrRunCancelled)
	return true
}

// Active returns the number of tracked runs, waiting or executing.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// Stop refuses new runs and waits for active ones to finish. If ctx is
// done first, the remaining runs are cancelled with
// headless.ErrEngineStopped and Stop waits for them to return.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	active := len(p.active)
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.Int("active", active))

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active runs")
		p.cancelActive()
		<-done
	}

	p.cancelBase(headless.ErrEngineStopped)
	return nil
}

func (p *Pool) untrack(runID id.RunID) {
	p.mu.Lock()
	delete(p.active, runID.String())
	p.mu.Unlock()
}

func (p *Pool) cancelActive() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for runID, h := range p.active {
		p.logger.Warn("cancelling active run", slog.String("run_id", runID))
		h.Cancel(headless.ErrEngineStopped)
	}
}
