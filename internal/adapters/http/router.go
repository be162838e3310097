package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kirillkom/studydesk/internal/core/domain"
	"github.com/kirillkom/studydesk/internal/core/ports"
	"github.com/kirillkom/studydesk/internal/observability/metrics"
)

const (
	serviceName           = "api"
	defaultMaxUploadBytes = 50 << 20
	multipartMemory       = 8 << 20
	maxJSONBodyBytes      = 1 << 20
)

// Services groups the inbound ports the router drives.
type Services struct {
	State      ports.StateReader
	Session    ports.SessionService
	Navigation ports.NavigationService
	Uploads    ports.UploadService
	Chat       ports.ChatService
	Tools      ports.ToolService
}

type Options struct {
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
	MaxUploadBytes   int64
	Metrics          *metrics.HTTPServerMetrics
	// Health reports circuit breaker states by operation; nil reports none.
	Health func() map[string]string
}

type Router struct {
	services Services
	opts     Options
}

func NewRouter(services Services, opts Options) *Router {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.BackpressureWait <= 0 {
		opts.BackpressureWait = 250 * time.Millisecond
	}
	return &Router{services: services, opts: opts}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, echoRequestID, middleware.Recoverer, accessLogMiddleware)
	if rt.opts.Metrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.opts.Metrics.Middleware(serviceName, next)
		})
		r.Method(http.MethodGet, "/metrics", rt.opts.Metrics.Handler())
	}

	r.Get("/healthz", rt.healthz)

	r.Group(func(r chi.Router) {
		r.Use(rt.rateLimit, rt.backpressure)

		r.Get("/v1/state", rt.getState)

		r.Route("/v1/session", func(r chi.Router) {
			r.Put("/user", rt.signIn)
			r.Delete("/user", rt.signOut)
			r.Put("/theme", rt.setTheme)
		})

		r.Route("/v1/ui", func(r chi.Router) {
			r.Post("/sidebar/toggle", rt.toggleSidebar)
			r.Put("/sidebar", rt.setSidebar)
			r.Put("/tab", rt.setTab)
			r.Put("/loading", rt.setLoading)
			r.Put("/error", rt.setError)
			r.Delete("/error", rt.clearError)
		})

		r.Route("/v1/uploads", func(r chi.Router) {
			r.Post("/", rt.acceptFiles)
			r.Put("/url", rt.setUploadURL)
			r.Put("/drag", rt.setDragActive)
			r.Delete("/error", rt.clearUploadError)
			r.Delete("/{fileID}", rt.removeFile)
		})

		r.Route("/v1/chat", func(r chi.Router) {
			r.Post("/messages", rt.sendMessage)
			r.Put("/current", rt.setCurrentChat)
			r.Post("/history", rt.archiveConversation)
			r.Delete("/error", rt.clearChatError)
		})

		r.Route("/v1/tools", func(r chi.Router) {
			r.Post("/reset", rt.resetAllTools)
			r.Delete("/error", rt.clearToolsError)
			r.Post("/{toolID}/run", rt.runTool)
			r.Post("/{toolID}/reset", rt.resetTool)
		})
	})

	return r
}

func (rt *Router) rateLimit(next http.Handler) http.Handler {
	var onLimited func()
	if rt.opts.Metrics != nil {
		onLimited = func() { rt.opts.Metrics.RecordRateLimited(serviceName) }
	}
	return rateLimitMiddleware(next, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst, onLimited)
}

func (rt *Router) backpressure(next http.Handler) http.Handler {
	return backpressureMiddleware(next, rt.opts.MaxInFlight, rt.opts.BackpressureWait)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	breakers := map[string]string{}
	if rt.opts.Health != nil {
		breakers = rt.opts.Health()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "breakers": breakers})
}

func (rt *Router) getState(w http.ResponseWriter, _ *http.Request) {
	rt.writeState(w, http.StatusOK)
}

func (rt *Router) signIn(w http.ResponseWriter, r *http.Request) {
	var user domain.User
	if err := decodeJSON(w, r, &user); err != nil {
		writeError(w, err)
		return
	}
	if err := rt.services.Session.SignIn(user); err != nil {
		writeError(w, err)
		return
	}
	rt.writeState(w, http.StatusOK)
}

func (rt *Router) signOut(w http.ResponseWriter, _ *http.Request) {
	rt.services.Session.SignOut()
	rt.writeState(w, http.StatusOK)
}

func (rt *Router) setTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme domain.Theme `json:"theme"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := rt.services.Session.SetTheme(req.Theme); err != nil {
		writeError(w, err)
		return
	}
	rt.writeState(w, http.StatusOK)
}

func (rt *Router) toggleSidebar(w http.ResponseWriter, _ *http.Request) {
	rt.services.Navigation.ToggleSidebar()
	rt.writeState(w, http.StatusOK)
}

func (rt *Router) setSidebar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Collapsed bool `json:"collapsed"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	rt.services.Navigation.SetSidebarCollapsed(req.Collapsed)
	rt.writeState(w, http.StatusOK)
}

func (rt *Router) setTab(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tab domain.Tab `json:"tab"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := rt.services.Navigation.SetActiveTab(req.Tab); err != nil {
		writeError(w, err)
		return
	}
	rt.writeState(w, http.StatusOK)
}

func (rt *Router) setLoading(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Loading bool `json:"loading"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	rt.services.Navigation.SetLoading(req.Loading)
	rt.writeState(w, http.StatusOK)
}

func (rt *Router) setError(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	rt.services.Navigation.SetError(req.Message)
	rt.writeState(w, http.StatusOK)
}

func (rt *Router) clearError(w http.ResponseWriter, _ *http.Request) {
	rt.services.Navigation.ClearError()
	rt.writeState(w, http.StatusOK)
}

func (rt *Router) acceptFiles(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, err)
			return
		}
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "parse multipart form", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, domain.Reject(domain.ErrInvalidInput, "accept files", "multipart field 'files' is required"))
		return
	}

	files := make([]domain.RawFile, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			writeError(w, fmt.Errorf("open multipart file %q: %w", header.Filename, err))
			return
		}
		opened = append(opened, f)
		files = append(files, domain.RawFile{
			Name:     header.Filename,
			Size:     header.Size,
			MimeType: header.Header.Get("Content-Type"),
			Body:     f,
		})
	}

	batchID, err := rt.services.Uploads.AcceptFiles(r.Context(), files)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"batch_id": batchID,
		"upload":   rt.services.State.GetState().Upload,
	})
}

func (rt *Router) removeFile(w http.ResponseWriter, r *http.Request) {
	if err := rt.services.Uploads.RemoveFile(chi.URLParam(r, "fileID")); err != nil {
		writeError(w, err)
		return
	}
	rt.writeState(w, http.StatusOK)
}

func (rt *Router) setUploadURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	rt.services.Uploads.SetURL(req.URL)
	rt.writeState(w, http.StatusOK)
}

func (rt *Router) setDragActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	rt.services.Uploads.SetDragActive(req.Active)
	rt.writeState(w, http.StatusOK)
}

func (rt *Router) clearUploadError(w http.ResponseWriter, _ *http.Request) {
	rt.services.Uploads.ClearError()
	rt.writeState(w, http.StatusOK)
}

func (rt *Router) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := rt.services.Chat.SendMessage(r.Context(), req.Content); err != nil {
		writeError(w, err)
		return
	}
	rt.writeState(w, http.StatusAccepted)
}

func (rt *Router) setCurrentChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	rt.services.Chat.SetCurrentChatID(req.ID)
	rt.writeState(w, http.StatusOK)
}

func (rt *Router) archiveConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string             `json:"title"`
		Type  domain.HistoryType `json:"type"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	entry, err := rt.services.Chat.ArchiveConversation(r.Context(), req.Title, req.Type)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (rt *Router) clearChatError(w http.ResponseWriter, _ *http.Request) {
	rt.services.Chat.ClearError()
	rt.writeState(w, http.StatusOK)
}

func (rt *Router) runTool(w http.ResponseWriter, r *http.Request) {
	if err := rt.services.Tools.RunTool(r.Context(), chi.URLParam(r, "toolID")); err != nil {
		writeError(w, err)
		return
	}
	rt.writeState(w, http.StatusAccepted)
}

func (rt *Router) resetTool(w http.ResponseWriter, r *http.Request) {
	if err := rt.services.Tools.ResetTool(chi.URLParam(r, "toolID")); err != nil {
		writeError(w, err)
		return
	}
	rt.writeState(w, http.StatusOK)
}

func (rt *Router) resetAllTools(w http.ResponseWriter, _ *http.Request) {
	rt.services.Tools.ResetAllTools()
	rt.writeState(w, http.StatusOK)
}

func (rt *Router) clearToolsError(w http.ResponseWriter, _ *http.Request) {
	rt.services.Tools.ClearError()
	rt.writeState(w, http.StatusOK)
}

func (rt *Router) writeState(w http.ResponseWriter, status int) {
	writeJSON(w, status, rt.services.State.GetState())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Reject(domain.ErrInvalidInput, "decode request", "request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return domain.WrapError(domain.ErrInvalidInput, "decode request", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
