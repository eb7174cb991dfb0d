package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegisterValidation(t *testing.T) {
	s := New(false)

	noop := func(context.Context) error { return nil }
	if err := s.Register("cleanup", time.Hour, noop); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register("cleanup", time.Hour, noop); err == nil {
		t.Error("duplicate registration allowed")
	}
	if err := s.Register("bad", 0, noop); err == nil {
		t.Error("non-positive interval allowed")
	}
}

func TestTriggerRunsTask(t *testing.T) {
	s := New(false)

	var runs atomic.Int32
	err := s.Register("followups", time.Hour, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := s.Trigger("followups"); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if runs.Load() != 1 {
		t.Errorf("runs = %d, want 1", runs.Load())
	}

	if err := s.Trigger("missing"); err == nil {
		t.Error("trigger of unknown task allowed")
	}
}

func TestOverlapPrevention(t *testing.T) {
	s := New(false)

	entered := make(chan struct{})
	release := make(chan struct{})
	var enteredOnce sync.Once
	err := s.Register("slow", time.Hour, func(context.Context) error {
		enteredOnce.Do(func() { close(entered) })
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Trigger("slow") }()
	<-entered

	// A second trigger while the first run is in flight is rejected, not queued.
	if err := s.Trigger("slow"); err == nil {
		t.Error("overlapping trigger allowed")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first trigger: %v", err)
	}

	// After the run finishes the task is triggerable again.
	if err := s.Trigger("slow"); err != nil {
		t.Errorf("re-trigger after completion: %v", err)
	}
}

func TestTickerRunsTask(t *testing.T) {
	s := New(false)

	var runs atomic.Int32
	err := s.Register("fast", 10*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	s.Start()
	time.Sleep(60 * time.Millisecond)
	s.Stop()

	if runs.Load() == 0 {
		t.Error("task never ran on its ticker")
	}
}

func TestRunOnStart(t *testing.T) {
	s := New(true)

	ran := make(chan struct{}, 1)
	err := s.Register("immediate", time.Hour, func(context.Context) error {
		ran <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("run-on-start task never ran")
	}
}

func TestStatusesReportFailure(t *testing.T) {
	s := New(false)

	err := s.Register("flaky", time.Hour, func(context.Context) error {
		return fmt.Errorf("boom")
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	// A failed run is recorded and does not poison later runs.
	if err := s.Trigger("flaky"); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	statuses := s.Statuses()
	if len(statuses) != 1 {
		t.Fatalf("got %d statuses, want 1", len(statuses))
	}
	st := statuses[0]
	if st.Name != "flaky" || st.LastErr != "boom" {
		t.Errorf("status = %+v", st)
	}
	if st.LastRun == 0 {
		t.Error("last run not recorded")
	}

	if err := s.Trigger("flaky"); err != nil {
		t.Errorf("second trigger after failure: %v", err)
	}
}
