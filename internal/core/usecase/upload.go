package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/studydesk/internal/core/domain"
	"github.com/kirillkom/studydesk/internal/core/ports"
	"github.com/kirillkom/studydesk/internal/core/store"
	"github.com/kirillkom/studydesk/internal/core/tasks"
)

const TaskUpload = "upload"

type UploadOptions struct {
	TickInterval time.Duration
	TickStep     int
}

func (o UploadOptions) normalize() UploadOptions {
	if o.TickInterval <= 0 {
		o.TickInterval = 200 * time.Millisecond
	}
	if o.TickStep <= 0 || o.TickStep > 100 {
		o.TickStep = 10
	}
	return o
}

// UploadOrchestrator owns the uploaded file set. Each AcceptFiles call starts one batch
// task; a newer batch makes the reducer ignore every action of the older one.
type UploadOrchestrator struct {
	store   ports.Dispatcher
	storage ports.ObjectStorage
	clock   ports.Clock
	runner  *tasks.Runner
	opts    UploadOptions
}

func NewUploadOrchestrator(
	st ports.Dispatcher,
	storage ports.ObjectStorage,
	clock ports.Clock,
	runner *tasks.Runner,
	opts UploadOptions,
) *UploadOrchestrator {
	return &UploadOrchestrator{
		store:   st,
		storage: storage,
		clock:   clock,
		runner:  runner,
		opts:    opts.normalize(),
	}
}

// AcceptFiles replaces the current file set with files and starts the upload task.
// It returns the batch id. Invalid input leaves the state untouched.
func (uc *UploadOrchestrator) AcceptFiles(ctx context.Context, files []domain.RawFile) (string, error) {
	if len(files) == 0 {
		return "", domain.Reject(domain.ErrInvalidInput, "accept files", "no files provided")
	}

	batch := make([]domain.UploadedFile, 0, len(files))
	bodies := make([][]byte, 0, len(files))
	for i, raw := range files {
		name := strings.TrimSpace(raw.Name)
		if name == "" || raw.Size < 0 {
			return "", domain.Reject(domain.ErrInvalidInput, "accept files", fmt.Sprintf("file %d is malformed", i))
		}
		body, err := readBody(ctx, raw.Body)
		if err != nil {
			return "", domain.WrapError(domain.ErrInvalidInput, "accept files", fmt.Errorf("read %s: %w", name, err))
		}

		id := newID()
		mimeType := strings.TrimSpace(raw.MimeType)
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		file := domain.UploadedFile{
			ID:       id,
			Name:     name,
			Size:     raw.Size,
			MimeType: mimeType,
			Status:   domain.FileUploading,
		}
		if uc.storage != nil {
			file.StorageKey = fmt.Sprintf("%s_%s", id, sanitizeFilename(name))
		}
		batch = append(batch, file)
		bodies = append(bodies, body)
	}

	batchID := newID()
	uc.store.Dispatch(store.StartBatch{BatchID: batchID, Files: batch})
	uc.runner.Go(TaskUpload, func(taskCtx context.Context) error {
		return uc.runBatch(taskCtx, batchID, batch, bodies)
	})
	return batchID, nil
}

func readBody(ctx context.Context, body io.Reader) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.ReadAll(body)
}

func (uc *UploadOrchestrator) runBatch(ctx context.Context, batchID string, files []domain.UploadedFile, bodies [][]byte) error {
	err := tasks.Protect(func() error { return uc.transfer(ctx, batchID, files, bodies) })
	if err != nil {
		uc.store.Dispatch(store.FailBatch{BatchID: batchID, Reason: "Upload failed: " + err.Error()})
		slog.Warn("upload_batch_failed", "batch_id", batchID, "files", len(files), "error", err)
		return err
	}
	uc.store.Dispatch(store.CompleteBatch{BatchID: batchID})
	slog.Info("upload_batch_completed", "batch_id", batchID, "files", len(files))
	return nil
}

// transfer stores the bodies and then advances the shared batch progress to 100 one
// tick at a time.
func (uc *UploadOrchestrator) transfer(ctx context.Context, batchID string, files []domain.UploadedFile, bodies [][]byte) error {
	if uc.storage != nil {
		for i, f := range files {
			if err := uc.storage.Save(ctx, f.StorageKey, bytes.NewReader(bodies[i])); err != nil {
				return fmt.Errorf("save %s: %w", f.Name, err)
			}
		}
	}

	progress := 0
	for progress < 100 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-uc.clock.After(uc.opts.TickInterval):
		}
		progress = min(progress+uc.opts.TickStep, 100)
		uc.store.Dispatch(store.UpdateBatchProgress{BatchID: batchID, Progress: progress})
	}
	return nil
}

// RemoveFile drops a file regardless of its status. Pending ticks of its batch keep
// running and simply no longer find it.
func (uc *UploadOrchestrator) RemoveFile(id string) error {
	if _, ok := uc.store.GetState().Upload.File(id); !ok {
		return domain.WrapError(domain.ErrNotFound, "remove file", fmt.Errorf("file %s", id))
	}
	uc.store.Dispatch(store.RemoveFile{FileID: id})
	return nil
}

func (uc *UploadOrchestrator) SetURL(url string) {
	uc.store.Dispatch(store.SetURL{URL: strings.TrimSpace(url)})
}

func (uc *UploadOrchestrator) SetDragActive(active bool) {
	uc.store.Dispatch(store.SetDragActive{Active: active})
}

func (uc *UploadOrchestrator) ClearError() {
	uc.store.Dispatch(store.ClearUploadError{})
}
