package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/studydesk/internal/core/domain"
	"github.com/kirillkom/studydesk/internal/core/store"
	"github.com/kirillkom/studydesk/internal/core/tasks"
	"github.com/kirillkom/studydesk/internal/infrastructure/clock"
)

type harness struct {
	store  *store.Store
	clock  *clock.Fake
	runner *tasks.Runner
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	catalog := []domain.AITool{
		{ID: domain.ToolSummarize, Title: "Summarize Document"},
		{ID: domain.ToolQuestions, Title: "Generate Questions"},
		{ID: domain.ToolMCQs, Title: "Create MCQs"},
		{ID: domain.ToolFlashcards, Title: "Generate Flashcards"},
	}
	h := &harness{
		store:  store.New(store.NewState(catalog)),
		clock:  clock.NewFake(time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)),
		runner: tasks.NewRunner(context.Background(), nil),
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.runner.Shutdown(ctx)
	})
	return h
}

// drain keeps advancing the clock by step until every task has returned.
func (h *harness) drain(t *testing.T, step time.Duration) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for h.runner.Count() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("tasks still running: %+v", h.runner.Running())
		}
		if h.clock.Waiters() > 0 {
			h.clock.Advance(step)
			continue
		}
		time.Sleep(time.Millisecond)
	}
	h.runner.Wait()
}

// tick waits for a task to park on the clock and then advances past its timer.
func (h *harness) tick(t *testing.T, d time.Duration) {
	t.Helper()
	if !h.clock.BlockUntil(1) {
		t.Fatalf("no task is waiting on the clock")
	}
	h.clock.Advance(d)
}

type storageFake struct {
	mu    sync.Mutex
	saved map[string]string
	err   error
	panic any
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.panic != nil {
		panic(f.panic)
	}
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = make(map[string]string)
	}
	f.saved[key] = string(raw)
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.saved[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewBufferString(body)), nil
}

type responderFake struct {
	mu         sync.Mutex
	reply      string
	err        error
	panic      any
	transcript []domain.ChatMessage
	message    domain.ChatMessage
}

func (f *responderFake) Respond(_ context.Context, transcript []domain.ChatMessage, message domain.ChatMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcript = transcript
	f.message = message
	if f.panic != nil {
		rec := f.panic
		f.panic = nil
		panic(rec)
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type executorFake struct {
	mu        sync.Mutex
	results   domain.ToolResult
	err       error
	panic     any
	documents []domain.UploadedFile
	calls     int
}

func (f *executorFake) Execute(_ context.Context, _ string, documents []domain.UploadedFile) (domain.ToolResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.documents = documents
	if f.panic != nil {
		rec := f.panic
		f.panic = nil
		panic(rec)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type historyRepoFake struct {
	entries []domain.ChatHistoryEntry
	saved   []domain.ChatHistoryEntry
	err     error
}

func (f *historyRepoFake) List(context.Context, int) ([]domain.ChatHistoryEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

func (f *historyRepoFake) Save(_ context.Context, entry domain.ChatHistoryEntry) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, entry)
	return nil
}
