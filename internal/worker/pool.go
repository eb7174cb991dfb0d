// Package worker runs scoring and memory-write jobs on a bounded pool with
// rate limiting, per-subject debouncing, and retry with exponential backoff.
package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Job is one unit of asynchronous work keyed to a subject.
type Job struct {
	SubjectID string
	Kind      string
	Run       func(ctx context.Context) error
}

// DeadLetterer receives jobs that exhausted their retries. *store.DB
// satisfies this.
type DeadLetterer interface {
	InsertDeadLetter(subjectID, kind, errMsg string) error
}

// Config tunes the pool. Zero values fall back to the defaults in brackets.
type Config struct {
	Concurrency    int           // worker goroutines [5]
	RatePerSec     float64       // total job throughput [10]
	QueueSize      int           // buffered queue depth [256]
	DebounceWindow time.Duration // per-subject coalescing window [5m]
	MaxAttempts    int           // attempts before dead-lettering [3]
	BackoffBase    time.Duration // first retry delay, doubled per attempt [1s]
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 10
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = 5 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	return c
}

// Pool is the bounded job queue.
type Pool struct {
	cfg         Config
	jobs        chan Job
	limiter     *rate.Limiter
	deadLetters DeadLetterer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[string]bool // per-subject debounce markers, keyed subject+kind
}

// NewPool returns an unstarted Pool.
func NewPool(cfg Config, deadLetters DeadLetterer) *Pool {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:         cfg,
		jobs:        make(chan Job, cfg.QueueSize),
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		deadLetters: deadLetters,
		ctx:         ctx,
		cancel:      cancel,
		pending:     make(map[string]bool),
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop drains in-flight work and shuts the pool down. Queued jobs that have
// not started are dropped.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}

// Submit enqueues a job immediately, bypassing any debounce.
func (p *Pool) Submit(job Job) error {
	select {
	case p.jobs <- job:
		return nil
	default:
		return fmt.Errorf("job queue full, dropping %s for %s", job.Kind, job.SubjectID)
	}
}

// Debounce coalesces bursts of per-subject triggers: the first call within a
// window marks the subject pending and schedules exactly one job at window
// close; later calls within the window are no-ops. Returns true when this
// call scheduled the job.
func (p *Pool) Debounce(job Job) bool {
	key := job.SubjectID + "/" + job.Kind

	p.mu.Lock()
	if p.pending[key] {
		p.mu.Unlock()
		return false
	}
	p.pending[key] = true
	p.mu.Unlock()

	time.AfterFunc(p.cfg.DebounceWindow, func() {
		p.mu.Lock()
		delete(p.pending, key)
		p.mu.Unlock()

		if p.ctx.Err() != nil {
			return
		}
		if err := p.Submit(job); err != nil {
			log.Printf("debounce submit: %v", err)
		}
	})
	return true
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case job := <-p.jobs:
			if err := p.limiter.Wait(p.ctx); err != nil {
				return
			}
			p.runWithRetry(job)
		}
	}
}

// runWithRetry executes a job with exponential backoff. After the attempt
// limit the job moves to the dead-letter path and is logged, not dropped.
func (p *Pool) runWithRetry(job Job) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		lastErr = job.Run(p.ctx)
		if lastErr == nil {
			return
		}
		if attempt == p.cfg.MaxAttempts {
			break
		}

		delay := p.cfg.BackoffBase << (attempt - 1)
		log.Printf("job %s for %s failed (attempt %d/%d), retrying in %s: %v",
			job.Kind, job.SubjectID, attempt, p.cfg.MaxAttempts, delay, lastErr)
		select {
		case <-p.ctx.Done():
			return
		case <-time.After(delay):
		}
	}

	log.Printf("job %s for %s dead-lettered after %d attempts: %v",
		job.Kind, job.SubjectID, p.cfg.MaxAttempts, lastErr)
	if p.deadLetters != nil {
		if err := p.deadLetters.InsertDeadLetter(job.SubjectID, job.Kind, lastErr.Error()); err != nil {
			log.Printf("dead letter write failed: %v", err)
		}
	}
}
