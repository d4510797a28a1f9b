package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// Dispatcher errors.
var (
	ErrQueueFull        = errors.New("submission queue is full")
	ErrDispatcherClosed = errors.New("dispatcher is shut down")
)

// Processor is what a Dispatcher runs for each submission.
type Processor interface {
	Process(ctx context.Context, sub Submission) Outcome
}

// OutcomeHook is called after each processed submission.
type OutcomeHook func(Outcome)

// DispatcherConfig sizes the worker pool.
type DispatcherConfig struct {
	Workers    int           // number of workers (0 = runtime.NumCPU())
	QueueSize  int           // buffered submissions before ErrQueueFull (0 = 4 * workers)
	JobTimeout time.Duration // per-submission deadline (0 = none)
}

// Dispatcher runs submissions on a fixed pool of workers fed by a bounded
// queue. Enqueue never blocks.
type Dispatcher struct {
	proc    Processor
	cfg     DispatcherConfig
	jobs    chan Submission
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	hooks   []OutcomeHook
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewDispatcher starts workers goroutines reading from a queue of
// queueSize submissions.
func NewDispatcher(proc Processor, workers, queueSize int) *Dispatcher {
	return NewDispatcherWithConfig(proc, DispatcherConfig{Workers: workers, QueueSize: queueSize})
}

// NewDispatcherWithConfig is NewDispatcher with a per-job timeout.
func NewDispatcherWithConfig(proc Processor, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 4 * cfg.Workers
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		proc:    proc,
		cfg:     cfg,
		jobs:    make(chan Submission, cfg.QueueSize),
		baseCtx: ctx,
		cancel:  cancel,
	}
	for range cfg.Workers {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// OnOutcome registers a hook. Hooks run on the worker goroutine in
// registration order and must not block for long.
func (d *Dispatcher) OnOutcome(h OutcomeHook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, h)
}

// Enqueue queues sub for processing. The caller's ctx only bounds the
// enqueue itself; processing runs under the dispatcher's own context.
func (d *Dispatcher) Enqueue(ctx context.Context, sub Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.jobs <- sub:
		queueDepth.Set(float64(len(d.jobs)))
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueDepth returns the number of submissions waiting for a worker.
func (d *Dispatcher) QueueDepth() int { return len(d.jobs) }

// Workers returns the pool size.
func (d *Dispatcher) Workers() int { return d.cfg.Workers }

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for sub := range d.jobs {
		queueDepth.Set(float64(len(d.jobs)))
		d.handle(sub)
	}
}

func (d *Dispatcher) handle(sub Submission) {
	ctx := d.baseCtx
	if d.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.JobTimeout)
		defer cancel()
	}
	out := d.proc.Process(ctx, sub)

	d.mu.RLock()
	hooks := d.hooks
	d.mu.RUnlock()
	for _, h := range hooks {
		h(out)
	}
}

// Shutdown stops intake and waits for queued and in-flight submissions.
// When ctx expires first, in-flight work is cancelled and ctx's error is
// returned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		slog.Warn("Dispatcher shutdown timed out, cancelling in-flight submissions", "queued", len(d.jobs))
		return ctx.Err()
	}
}
