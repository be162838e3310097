package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type observerFake struct {
	mu       sync.Mutex
	started  []string
	finished map[string]error
}

func (o *observerFake) StartTask(kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, kind)
}

func (o *observerFake) FinishTask(kind string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.finished == nil {
		o.finished = make(map[string]error)
	}
	o.finished[kind] = err
}

func TestRunnerReportsOutcomes(t *testing.T) {
	obs := &observerFake{}
	runner := NewRunner(context.Background(), obs)

	errBoom := errors.New("boom")
	runner.Go("upload", func(context.Context) error { return nil })
	runner.Go("chat", func(context.Context) error { return errBoom })
	runner.Go("tool", func(context.Context) error { panic("bad payload") })
	runner.Wait()

	if len(obs.started) != 3 {
		t.Fatalf("expected 3 starts, got %v", obs.started)
	}
	if obs.finished["upload"] != nil {
		t.Fatalf("expected upload success, got %v", obs.finished["upload"])
	}
	if !errors.Is(obs.finished["chat"], errBoom) {
		t.Fatalf("expected chat error, got %v", obs.finished["chat"])
	}
	if obs.finished["tool"] == nil {
		t.Fatalf("expected panic to be converted into an error")
	}
	if runner.Count() != 0 {
		t.Fatalf("expected no running tasks, got %d", runner.Count())
	}
}

func TestRunnerTracksRunningTasks(t *testing.T) {
	runner := NewRunner(context.Background(), nil)
	release := make(chan struct{})
	started := make(chan struct{})

	id := runner.Go("tool", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	running := runner.Running()
	if len(running) != 1 || running[0].ID != id || running[0].Kind != "tool" {
		t.Fatalf("unexpected running tasks: %+v", running)
	}
	close(release)
	runner.Wait()
}

func TestShutdownCancelsTasks(t *testing.T) {
	runner := NewRunner(context.Background(), nil)
	runner.Go("upload", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := runner.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestGoAfterShutdownRunsInline(t *testing.T) {
	obs := &observerFake{}
	runner := NewRunner(context.Background(), obs)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := runner.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	var sawCancel bool
	runner.Go("chat", func(ctx context.Context) error {
		sawCancel = ctx.Err() != nil
		return ctx.Err()
	})

	if !sawCancel {
		t.Fatalf("expected task to run inline with a cancelled context")
	}
	if runner.Count() != 0 {
		t.Fatalf("expected no tracked tasks, got %d", runner.Count())
	}
	if !errors.Is(obs.finished["chat"], context.Canceled) {
		t.Fatalf("expected observer to see context.Canceled, got %v", obs.finished["chat"])
	}
}

func TestProtectConvertsPanic(t *testing.T) {
	err := Protect(func() error { panic("nil map") })
	if err == nil || err.Error() != "task panic: nil map" {
		t.Fatalf("Protect() error = %v", err)
	}
	if err := Protect(func() error { return nil }); err != nil {
		t.Fatalf("Protect() error = %v, want nil", err)
	}
}
