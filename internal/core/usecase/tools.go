package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kirillkom/studydesk/internal/core/domain"
	"github.com/kirillkom/studydesk/internal/core/ports"
	"github.com/kirillkom/studydesk/internal/core/store"
	"github.com/kirillkom/studydesk/internal/core/tasks"
)

const TaskTool = "tool"

type ToolOptions struct {
	RunDelay   time.Duration
	RunTimeout time.Duration
	// RequireDocuments rejects runs while no upload has completed. Off by default: the
	// dashboard disables the run button itself.
	RequireDocuments bool
}

func (o ToolOptions) normalize() ToolOptions {
	if o.RunDelay < 0 {
		o.RunDelay = 0
	}
	if o.RunTimeout <= 0 {
		o.RunTimeout = 5 * time.Minute
	}
	return o
}

// ToolOrchestrator runs catalog tools. Every run gets a process-wide generation number;
// reset drops the generation so a late result of the old run is discarded.
type ToolOrchestrator struct {
	store    ports.Dispatcher
	executor ports.ToolExecutor
	clock    ports.Clock
	runner   *tasks.Runner
	opts     ToolOptions

	generation atomic.Uint64
}

func NewToolOrchestrator(
	st ports.Dispatcher,
	executor ports.ToolExecutor,
	clock ports.Clock,
	runner *tasks.Runner,
	opts ToolOptions,
) *ToolOrchestrator {
	return &ToolOrchestrator{
		store:    st,
		executor: executor,
		clock:    clock,
		runner:   runner,
		opts:     opts.normalize(),
	}
}

func (uc *ToolOrchestrator) RunTool(_ context.Context, toolID string) error {
	state := uc.store.GetState()
	tool, ok := state.Tools.Tool(toolID)
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "run tool", fmt.Errorf("tool %q", toolID))
	}
	if tool.Status == domain.ToolProcessing {
		return domain.Reject(domain.ErrConflict, "run tool", fmt.Sprintf("tool %s is already processing", toolID))
	}
	documents := state.Upload.CompletedFiles()
	if uc.opts.RequireDocuments && len(documents) == 0 {
		return domain.Reject(domain.ErrInvalidInput, "run tool", "upload a document first")
	}

	generation := uc.generation.Add(1)
	uc.store.Dispatch(store.StartToolRun{ToolID: toolID, Generation: generation})
	if !uc.owns(toolID, generation) {
		return domain.Reject(domain.ErrConflict, "run tool", fmt.Sprintf("tool %s is already processing", toolID))
	}

	uc.runner.Go(TaskTool, func(ctx context.Context) error {
		return uc.execute(ctx, toolID, generation, documents)
	})
	return nil
}

func (uc *ToolOrchestrator) execute(ctx context.Context, toolID string, generation uint64, documents []domain.UploadedFile) error {
	var results domain.ToolResult
	err := tasks.Protect(func() (err error) {
		results, err = uc.produce(ctx, toolID, documents)
		return err
	})
	if err != nil {
		uc.store.Dispatch(store.FailToolRun{ToolID: toolID, Generation: generation, Reason: "Tool execution failed: " + err.Error()})
		slog.Warn("tool_run_failed", "tool_id", toolID, "generation", generation, "error", err)
		return err
	}

	uc.store.Dispatch(store.UpdateToolResults{ToolID: toolID, Generation: generation, Results: results})
	uc.store.Dispatch(store.UpdateToolStatus{ToolID: toolID, Generation: generation, Status: domain.ToolCompleted})

	if tool, _ := uc.store.GetState().Tools.Tool(toolID); tool.Generation != generation {
		slog.Debug("tool_run_discarded", "tool_id", toolID, "generation", generation)
	}
	return nil
}

func (uc *ToolOrchestrator) produce(ctx context.Context, toolID string, documents []domain.UploadedFile) (domain.ToolResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-uc.clock.After(uc.opts.RunDelay):
	}

	execCtx, cancel := context.WithTimeout(ctx, uc.opts.RunTimeout)
	defer cancel()

	results, err := uc.executor.Execute(execCtx, toolID, documents)
	if err != nil {
		return nil, fmt.Errorf("executor: %w", err)
	}
	if err := domain.CheckToolResult(toolID, results); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", toolID, err)
	}
	return results, nil
}

// owns reports whether the tool's tracked run is still generation.
func (uc *ToolOrchestrator) owns(toolID string, generation uint64) bool {
	tool, ok := uc.store.GetState().Tools.Tool(toolID)
	return ok && tool.Status == domain.ToolProcessing && tool.Generation == generation
}

// ResetTool makes the tool available again and clears its results, whatever its status.
func (uc *ToolOrchestrator) ResetTool(toolID string) error {
	if _, ok := uc.store.GetState().Tools.Tool(toolID); !ok {
		return domain.WrapError(domain.ErrNotFound, "reset tool", fmt.Errorf("tool %q", toolID))
	}
	uc.store.Dispatch(store.ResetTool{ToolID: toolID})
	return nil
}

func (uc *ToolOrchestrator) ResetAllTools() {
	uc.store.Dispatch(store.ResetAllTools{})
}

func (uc *ToolOrchestrator) ClearError() {
	uc.store.Dispatch(store.ClearToolsError{})
}
