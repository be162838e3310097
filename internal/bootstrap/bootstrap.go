package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	httpadapter "github.com/kirillkom/studydesk/internal/adapters/http"
	"github.com/kirillkom/studydesk/internal/catalog"
	"github.com/kirillkom/studydesk/internal/config"
	"github.com/kirillkom/studydesk/internal/core/ports"
	"github.com/kirillkom/studydesk/internal/core/store"
	"github.com/kirillkom/studydesk/internal/core/tasks"
	"github.com/kirillkom/studydesk/internal/core/usecase"
	"github.com/kirillkom/studydesk/internal/infrastructure/chunking"
	"github.com/kirillkom/studydesk/internal/infrastructure/clock"
	"github.com/kirillkom/studydesk/internal/infrastructure/events/nats"
	"github.com/kirillkom/studydesk/internal/infrastructure/extractor"
	"github.com/kirillkom/studydesk/internal/infrastructure/llm/mock"
	"github.com/kirillkom/studydesk/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/studydesk/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/studydesk/internal/infrastructure/resilience"
	"github.com/kirillkom/studydesk/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/studydesk/internal/observability/metrics"
)

const defaultShutdownTimeout = 10 * time.Second

type App struct {
	Config config.Config

	Store       *store.Store
	Runner      *tasks.Runner
	Resilience  *resilience.Executor
	HTTPMetrics *metrics.HTTPServerMetrics

	Session    *usecase.SessionService
	Navigation *usecase.NavigationService
	Uploads    *usecase.UploadOrchestrator
	Chat       *usecase.ChatOrchestrator
	Tools      *usecase.ToolOrchestrator

	closers []func(context.Context) error
}

// New wires the store, the orchestrators and the configured adapters. Postgres and NATS
// are optional: an empty DSN or URL leaves them out.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg}
	if err := app.init(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	tools, err := catalog.Load(cfg.ToolCatalogPath)
	if err != nil {
		return fmt.Errorf("load tool catalog: %w", err)
	}

	clk := clock.System{}
	initial := store.NewState(tools)
	if cfg.SeedDemoData {
		initial = store.SeedDemo(initial, clk.Now())
	}
	a.Store = store.New(initial)

	a.HTTPMetrics = metrics.NewHTTPServerMetrics("api")
	storeMetrics := metrics.NewStoreMetrics("studydesk", a.HTTPMetrics.Registry())
	a.Store.Subscribe(storeMetrics.Listen)

	a.Runner = tasks.NewRunner(context.Background(), storeMetrics)
	a.closers = append(a.closers, a.Runner.Shutdown)

	a.Resilience = resilience.NewExecutor(resilience.DefaultPolicy())

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}

	responder, executor, err := a.newBackend(storage)
	if err != nil {
		return err
	}

	var history ports.HistoryRepository
	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, closeDB(db))
		repo := postgres.NewHistoryRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		history = repo
	}

	if cfg.NATSURL != "" {
		publisher, err := nats.Connect(cfg.NATSURL, cfg.NATSSubjectPrefix, nats.Options{
			BufferSize:         cfg.NATSEventBuffer,
			ResilienceExecutor: a.Resilience,
		})
		if err != nil {
			return fmt.Errorf("init event publisher: %w", err)
		}
		unsubscribe := a.Store.Subscribe(publisher.Listen)
		a.closers = append(a.closers, func(ctx context.Context) error {
			unsubscribe()
			return publisher.Close(ctx)
		})
	}

	a.Session = usecase.NewSessionService(a.Store)
	a.Navigation = usecase.NewNavigationService(a.Store)
	a.Uploads = usecase.NewUploadOrchestrator(a.Store, storage, clk, a.Runner, usecase.UploadOptions{
		TickInterval: cfg.UploadTickInterval,
		TickStep:     cfg.UploadTickStep,
	})
	a.Chat = usecase.NewChatOrchestrator(a.Store, responder, history, clk, a.Runner, usecase.ChatOptions{
		ResponseDelay:   cfg.ChatResponseDelay,
		ResponseTimeout: cfg.ChatResponseTimeout,
		HistoryLimit:    cfg.ChatHistoryLimit,
	})
	a.Tools = usecase.NewToolOrchestrator(a.Store, executor, clk, a.Runner, usecase.ToolOptions{
		RunDelay:         cfg.ToolRunDelay,
		RunTimeout:       cfg.ToolRunTimeout,
		RequireDocuments: cfg.ToolsRequireDocuments,
	})

	if err := a.Chat.LoadHistory(ctx); err != nil {
		return fmt.Errorf("load chat history: %w", err)
	}

	slog.Info("app_initialized",
		"ai_backend", cfg.AIBackend,
		"tools", len(tools),
		"history_persisted", history != nil,
		"events_published", cfg.NATSURL != "",
	)
	return nil
}

func (a *App) newBackend(storage ports.ObjectStorage) (ports.ChatResponder, ports.ToolExecutor, error) {
	switch a.Config.AIBackend {
	case config.BackendMock, "":
		return mock.NewResponder(), mock.NewToolExecutor(), nil
	case config.BackendOllama:
		client := ollama.New(a.Config.OllamaURL, a.Config.OllamaGenModel, a.Resilience)
		textExtractor := extractor.New(storage, a.Config.MaxExtractBytes)
		splitter := chunking.NewSplitter(a.Config.ChunkSize, a.Config.ChunkOverlap)
		return ollama.NewResponder(client),
			ollama.NewToolExecutor(client, textExtractor, splitter, a.Config.ToolContextRunes),
			nil
	default:
		return nil, nil, fmt.Errorf("unknown AI_BACKEND %q", a.Config.AIBackend)
	}
}

// Services exposes the orchestrators as the inbound ports the HTTP router drives.
func (a *App) Services() httpadapter.Services {
	return httpadapter.Services{
		State:      a.Store,
		Session:    a.Session,
		Navigation: a.Navigation,
		Uploads:    a.Uploads,
		Chat:       a.Chat,
		Tools:      a.Tools,
	}
}

// Close stops running tasks first so no late action reaches a closed adapter, then
// releases adapters in reverse order of creation.
func (a *App) Close() {
	if len(a.closers) == 0 {
		return
	}
	timeout := a.Config.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := a.closers[0](ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tasks: %w", err))
	}
	for i := len(a.closers) - 1; i > 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		slog.Warn("app_close_failed", "error", err)
	}
}

func closeDB(db *sql.DB) func(context.Context) error {
	return func(context.Context) error { return db.Close() }
}
