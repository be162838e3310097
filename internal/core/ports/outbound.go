package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/studydesk/internal/core/domain"
)

// Clock is the time source for task delays. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// ObjectStorage stores raw uploaded file bodies.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TextExtractor extracts plain text from a stored upload.
type TextExtractor interface {
	Extract(ctx context.Context, file domain.UploadedFile) (string, error)
}

// Chunker splits text into bounded pieces.
type Chunker interface {
	Split(text string) []string
}

// ChatResponder produces the assistant reply for a new user message.
type ChatResponder interface {
	Respond(ctx context.Context, transcript []domain.ChatMessage, message domain.ChatMessage) (string, error)
}

// ToolExecutor runs an AI tool over the current document set.
type ToolExecutor interface {
	Execute(ctx context.Context, toolID string, documents []domain.UploadedFile) (domain.ToolResult, error)
}

// HistoryRepository persists archived conversation references.
type HistoryRepository interface {
	List(ctx context.Context, limit int) ([]domain.ChatHistoryEntry, error)
	Save(ctx context.Context, entry domain.ChatHistoryEntry) error
}

// TaskObserver is notified about asynchronous task lifecycles.
type TaskObserver interface {
	StartTask(kind string)
	FinishTask(kind string, duration time.Duration, err error)
}
