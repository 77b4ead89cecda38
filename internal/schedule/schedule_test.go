package schedule

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New("not a cron spec", func(context.Context) error { return nil }, discardLogger())
	if err == nil {
		t.Error("New() should reject an invalid cron expression")
	}
}

func TestNew_NilJob(t *testing.T) {
	if _, err := New("@hourly", nil, discardLogger()); err == nil {
		t.Error("New() should reject a nil job")
	}
}

func TestNew_AcceptsCommonSpecs(t *testing.T) {
	for _, spec := range []string{"@hourly", "@daily", "*/5 * * * *", "0 3 * * 1"} {
		if _, err := New(spec, func(context.Context) error { return nil }, discardLogger()); err != nil {
			t.Errorf("New(%q) error = %v", spec, err)
		}
	}
}

func TestRunner_SkipsOverlappingTicks(t *testing.T) {
	var runs atomic.Int32
	blocker := make(chan struct{})

	r, err := New("@hourly", func(context.Context) error {
		runs.Add(1)
		<-blocker
		return nil
	}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	job := func() {
		r.tick("@hourly", func(context.Context) error {
			runs.Add(1)
			<-blocker
			return nil
		})
	}

	go job()

	// Wait for the first tick to be in progress.
	deadline := time.After(time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("first tick never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	// A second tick while the first is running must be dropped.
	job2done := make(chan struct{})
	go func() {
		defer close(job2done)
		r.tick("@hourly", func(context.Context) error {
			runs.Add(1)
			return nil
		})
	}()

	select {
	case <-job2done:
	case <-time.After(time.Second):
		t.Fatal("overlapping tick should return immediately")
	}
	if got := runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1 (overlap must be skipped)", got)
	}

	close(blocker)
}

func TestRunner_JobSeesStartContext(t *testing.T) {
	r, err := New("@hourly", func(context.Context) error { return nil }, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	go func() {
		defer close(started)
		r.Start(ctx)
	}()

	// Wait until Start has published its context to ticks.
	deadline := time.After(time.Second)
	for {
		r.mu.Lock()
		published := r.ctx != nil
		r.mu.Unlock()
		if published {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Start never published its context")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	// A tick fired after Start must hand the job a context that is
	// cancelled when Start's context is cancelled.
	observed := make(chan error, 1)
	tickDone := make(chan struct{})
	go func() {
		defer close(tickDone)
		r.tick("@hourly", func(jobCtx context.Context) error {
			<-jobCtx.Done()
			observed <- jobCtx.Err()
			return jobCtx.Err()
		})
	}()

	cancel()

	select {
	case err := <-observed:
		if err != context.Canceled {
			t.Errorf("job context error = %v, want Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("in-flight job never observed cancellation")
	}

	<-tickDone
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after the job finished")
	}
}

func TestRunner_StartStopsOnCancel(t *testing.T) {
	r, err := New("@hourly", func(context.Context) error { return nil }, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Start(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}
