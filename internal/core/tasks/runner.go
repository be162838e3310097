// Package tasks runs the asynchronous continuations started by the orchestrators.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/studydesk/internal/core/ports"
)

type Info struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	StartedAt time.Time `json:"started_at"`
}

// Runner owns every in-flight task. Tasks share the runner's root context, which is
// cancelled by Shutdown.
type Runner struct {
	ctx      context.Context
	cancel   context.CancelFunc
	observer ports.TaskObserver

	wg sync.WaitGroup

	mu      sync.Mutex
	counter uint64
	running map[string]Info
	closed  bool
}

func NewRunner(parent context.Context, observer ports.TaskObserver) *Runner {
	ctx, cancel := context.WithCancel(parent)
	return &Runner{
		ctx:      ctx,
		cancel:   cancel,
		observer: observer,
		running:  make(map[string]Info),
	}
}

// Go starts fn in its own goroutine and returns the task id. The returned error of fn is
// only reported; orchestrators record failures in state themselves.
//
// After Shutdown, fn runs synchronously with the cancelled root context so its failure
// path still executes.
func (r *Runner) Go(kind string, fn func(ctx context.Context) error) string {
	r.mu.Lock()
	r.counter++
	info := Info{
		ID:        fmt.Sprintf("%s_%d_%d", kind, time.Now().Unix(), r.counter),
		Kind:      kind,
		StartedAt: time.Now(),
	}
	closed := r.closed
	if !closed {
		r.running[info.ID] = info
		r.wg.Add(1)
	}
	r.mu.Unlock()

	if r.observer != nil {
		r.observer.StartTask(kind)
	}

	if closed {
		r.finish(info, Protect(func() error { return fn(r.ctx) }), false)
		return info.ID
	}

	go func() {
		defer r.wg.Done()
		r.finish(info, Protect(func() error { return fn(r.ctx) }), true)
	}()
	return info.ID
}

func (r *Runner) finish(info Info, err error, tracked bool) {
	if tracked {
		r.mu.Lock()
		delete(r.running, info.ID)
		r.mu.Unlock()
	}

	if r.observer != nil {
		r.observer.FinishTask(info.Kind, time.Since(info.StartedAt), err)
	}
	if err != nil {
		slog.Warn("task_failed", "task_id", info.ID, "kind", info.Kind, "error", err)
	}
}

// Protect calls fn and turns a panic into an error.
func Protect(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("task_panic", "panic", rec, "stack", string(debug.Stack()))
			err = fmt.Errorf("task panic: %v", rec)
		}
	}()
	return fn()
}

// Running lists in-flight tasks, oldest first.
func (r *Runner) Running() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Info, 0, len(r.running))
	for _, info := range r.running {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (r *Runner) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}

// Wait blocks until every started task has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown cancels the root context and waits for tasks until ctx expires.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for %d tasks: %w", r.Count(), ctx.Err())
	}
}
