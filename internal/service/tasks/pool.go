package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/pkg/log"
	"github.com/sandevgo/tuskrelay/pkg/retry"
)

type Func = func(ctx context.Context) error

type task struct {
	name string
	fn   Func
}

type Config struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
	// DrainGrace is added to the drain budget computed from the queue depth.
	DrainGrace time.Duration
	Retry      *retry.Config
}

func DefaultConfig() Config {
	return Config{
		Workers:     4,
		QueueSize:   64,
		TaskTimeout: 10 * time.Second,
		DrainGrace:  time.Second,
		Retry:       retry.NewDefaultConfig(),
	}
}

// Pool runs fire-and-forget side work on a fixed set of workers.
// Submit never blocks; a full queue is reported to the caller.
type Pool struct {
	cfg     Config
	queue   chan task
	retrier *retry.Retrier

	mu      sync.RWMutex
	closed  bool
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewPool(cfg Config) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.DrainGrace <= 0 {
		cfg.DrainGrace = time.Second
	}
	if cfg.Retry == nil {
		cfg.Retry = retry.NewDefaultConfig()
	}
	return &Pool{
		cfg:     cfg,
		queue:   make(chan task, cfg.QueueSize),
		retrier: retry.NewRetrier(cfg.Retry),
	}
}

func (p *Pool) Submit(name string, fn Func) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return fmt.Errorf("submit %s: pool is closed", name)
	}

	select {
	case p.queue <- task{name: name, fn: fn}:
		return nil
	default:
		return fmt.Errorf("submit %s: %w", name, core.ErrQueueFull)
	}
}

// Start launches the workers and returns immediately.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	p.started = true

	log.FromCtx(ctx).Info().
		Int("workers", p.cfg.Workers).
		Int("queue", p.cfg.QueueSize).
		Msg("starting task pool")

	// workers outlive the start context so queued tasks drain on shutdown
	base, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(base, i)
	}
	return nil
}

// Shutdown stops accepting tasks and drains the queue. The drain budget
// grows with the number of pending tasks; once it is spent the remaining
// tasks are cancelled. Shutdown never returns while a worker is still running.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	pending := len(p.queue)
	close(p.queue)
	started, cancel := p.started, p.cancel
	p.mu.Unlock()

	if !started {
		return nil
	}
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	budget := p.drainBudget(pending)
	log.FromCtx(ctx).Info().
		Int("pending", pending).
		Dur("budget", budget).
		Msg("draining task pool")

	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
	}

	cancel()
	<-done
	return fmt.Errorf("task pool: drain budget %s exceeded, pending tasks cancelled", budget)
}

// drainBudget covers pending queued tasks plus one in-flight task per worker,
// each bounded by TaskTimeout.
func (p *Pool) drainBudget(pending int) time.Duration {
	rounds := (pending+p.cfg.Workers)/p.cfg.Workers + 1
	return time.Duration(rounds)*p.cfg.TaskTimeout + p.cfg.DrainGrace
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for t := range p.queue {
		p.run(ctx, id, t)
	}
}

func (p *Pool) run(ctx context.Context, id int, t task) {
	logger := log.FromCtx(ctx).With().Str("task", t.name).Int("worker", id).Logger()

	if ctx.Err() != nil {
		logger.Warn().Msg("task dropped, pool is shutting down")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.TaskTimeout)
	defer cancel()

	start := time.Now()
	err := p.retrier.Do(ctx, func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = retry.Permanent(fmt.Errorf("panic: %v", r))
			}
		}()
		return t.fn(ctx)
	})
	if err != nil {
		logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("task failed")
		return
	}
	logger.Debug().Dur("elapsed", time.Since(start)).Msg("task done")
}
