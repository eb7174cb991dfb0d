// Package scheduler runs named recurring background tasks with independent
// intervals, overlap prevention, and manual trigger hooks. It is injected as
// a dependency rather than wired into process startup.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// TaskFunc is one scheduled unit of work.
type TaskFunc func(ctx context.Context) error

type task struct {
	name     string
	interval time.Duration
	fn       TaskFunc
	inFlight atomic.Bool
	lastRun  atomic.Int64 // unix millis
	lastErr  atomic.Value // string
}

// Scheduler owns a set of named recurring tasks.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[string]*task
	stopCh chan struct{}
	wg     sync.WaitGroup
	runOnStart bool
}

// New returns a Scheduler. When runOnStart is true each task also runs once
// immediately after Start.
func New(runOnStart bool) *Scheduler {
	return &Scheduler{
		tasks:      make(map[string]*task),
		stopCh:     make(chan struct{}),
		runOnStart: runOnStart,
	}
}

// Register adds a named task. Registering after Start has no effect on
// already-running tickers, so register everything first.
func (s *Scheduler) Register(name string, interval time.Duration, fn TaskFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("task %q already registered", name)
	}
	if interval <= 0 {
		return fmt.Errorf("task %q: interval must be positive", name)
	}
	s.tasks[name] = &task{name: name, interval: interval, fn: fn}
	return nil
}

// Start launches one ticker goroutine per registered task.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tasks {
		t := t
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()

			if s.runOnStart {
				s.runTask(t)
			}

			ticker := time.NewTicker(t.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.runTask(t)
				case <-s.stopCh:
					return
				}
			}
		}()
	}
}

// Stop shuts down all task goroutines and waits for in-flight runs.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// Trigger runs a task immediately (the manual-trigger hook). It honors the
// overlap guard: a trigger while the task is in flight is rejected.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown task %q", name)
	}
	if !s.runTask(t) {
		return fmt.Errorf("task %q already running", name)
	}
	return nil
}

// runTask executes a task unless a prior run is still in flight. A failed
// run is logged and retried on the next cycle; it never blocks later cycles.
func (s *Scheduler) runTask(t *task) bool {
	if !t.inFlight.CompareAndSwap(false, true) {
		log.Printf("scheduler: skipping %s, previous run still in flight", t.name)
		return false
	}
	defer t.inFlight.Store(false)

	start := time.Now()
	err := t.fn(context.Background())
	t.lastRun.Store(start.UnixMilli())
	if err != nil {
		t.lastErr.Store(err.Error())
		log.Printf("scheduler: task %s failed after %s: %v", t.name, time.Since(start).Round(time.Millisecond), err)
	} else {
		t.lastErr.Store("")
	}
	return true
}

// Status describes one task for operational visibility.
type Status struct {
	Name     string `json:"name"`
	Interval string `json:"interval"`
	Running  bool   `json:"running"`
	LastRun  int64  `json:"last_run,omitempty"` // unix millis, 0 = never
	LastErr  string `json:"last_error,omitempty"`
}

// Statuses reports all registered tasks.
func (s *Scheduler) Statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]Status, 0, len(s.tasks))
	for _, t := range s.tasks {
		st := Status{
			Name:     t.name,
			Interval: t.interval.String(),
			Running:  t.inFlight.Load(),
			LastRun:  t.lastRun.Load(),
		}
		if v, ok := t.lastErr.Load().(string); ok {
			st.LastErr = v
		}
		statuses = append(statuses, st)
	}
	return statuses
}
