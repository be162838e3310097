package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/studydesk/internal/core/domain"
	"github.com/kirillkom/studydesk/internal/core/store"
	"github.com/kirillkom/studydesk/internal/core/usecase"
	"github.com/kirillkom/studydesk/internal/observability/metrics"
)

type uploadsFake struct {
	received []domain.RawFile
	bodies   []string
	removed  []string
	err      error
	url      string
	drag     bool
	cleared  bool
}

func (f *uploadsFake) AcceptFiles(_ context.Context, files []domain.RawFile) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	for _, file := range files {
		raw, _ := io.ReadAll(file.Body)
		f.bodies = append(f.bodies, string(raw))
	}
	f.received = files
	return "batch-1", nil
}

func (f *uploadsFake) RemoveFile(id string) error {
	if id == "missing" {
		return domain.Reject(domain.ErrNotFound, "remove file", "file missing")
	}
	f.removed = append(f.removed, id)
	return nil
}

func (f *uploadsFake) SetURL(url string)         { f.url = url }
func (f *uploadsFake) SetDragActive(active bool) { f.drag = active }
func (f *uploadsFake) ClearError()               { f.cleared = true }

type chatFake struct {
	sent     []string
	err      error
	archived domain.ChatHistoryEntry
	current  string
}

func (f *chatFake) SendMessage(_ context.Context, content string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, content)
	return nil
}

func (f *chatFake) SetCurrentChatID(id string)                     { f.current = id }
func (f *chatFake) SetChatHistory([]domain.ChatHistoryEntry) error { return nil }
func (f *chatFake) AddToChatHistory(domain.ChatHistoryEntry) error { return nil }
func (f *chatFake) ClearError()                                    {}

func (f *chatFake) ArchiveConversation(_ context.Context, title string, kind domain.HistoryType) (*domain.ChatHistoryEntry, error) {
	f.archived = domain.ChatHistoryEntry{ID: "h-1", Title: title, Timestamp: "Just now", Type: kind}
	return &f.archived, nil
}

type toolsFake struct {
	runs   []string
	resets []string
	all    bool
}

func (f *toolsFake) RunTool(_ context.Context, toolID string) error {
	switch toolID {
	case "unknown":
		return domain.Reject(domain.ErrNotFound, "run tool", "tool unknown")
	case "busy":
		return domain.Reject(domain.ErrConflict, "run tool", "tool is already processing")
	}
	f.runs = append(f.runs, toolID)
	return nil
}

func (f *toolsFake) ResetTool(toolID string) error {
	f.resets = append(f.resets, toolID)
	return nil
}

func (f *toolsFake) ResetAllTools() { f.all = true }
func (f *toolsFake) ClearError()    {}

type routerFixture struct {
	store   *store.Store
	uploads *uploadsFake
	chat    *chatFake
	tools   *toolsFake
	handler http.Handler
}

func newFixture(opts Options) *routerFixture {
	st := store.New(store.NewState([]domain.AITool{{ID: domain.ToolSummarize, Title: "Summarize"}}))
	f := &routerFixture{
		store:   st,
		uploads: &uploadsFake{},
		chat:    &chatFake{},
		tools:   &toolsFake{},
	}
	f.handler = NewRouter(Services{
		State:      st,
		Session:    usecase.NewSessionService(st),
		Navigation: usecase.NewNavigationService(st),
		Uploads:    f.uploads,
		Chat:       f.chat,
		Tools:      f.tools,
	}, opts).Handler()
	return f
}

func (f *routerFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)
	return res
}

func decodeState(t *testing.T, res *httptest.ResponseRecorder) store.State {
	t.Helper()
	var state store.State
	if err := json.NewDecoder(res.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return state
}

func TestHealthzReportsBreakers(t *testing.T) {
	f := newFixture(Options{Health: func() map[string]string {
		return map[string]string{"ollama_generate": "closed"}
	}})

	res := f.do(t, http.MethodGet, "/healthz", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body struct {
		Status   string            `json:"status"`
		Breakers map[string]string `json:"breakers"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	if body.Status != "ok" || body.Breakers["ollama_generate"] != "closed" {
		t.Fatalf("unexpected healthz body: %+v", body)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestRouterEchoesCallerRequestID(t *testing.T) {
	f := newFixture(Options{})

	req := httptest.NewRequest(http.MethodGet, "/v1/state", nil)
	req.Header.Set(requestIDHeader, "trace-42")
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get(requestIDHeader); got != "trace-42" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
}

func TestSliceOf(t *testing.T) {
	cases := map[string]string{
		"/v1/state":          "state",
		"/v1/tools/mcqs/run": "tools",
		"/v1/uploads/":       "uploads",
		"/v1/":               "system",
		"/healthz":           "system",
		"/metrics":           "system",
	}
	for path, want := range cases {
		if got := sliceOf(path); got != want {
			t.Fatalf("sliceOf(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestSessionRoutes(t *testing.T) {
	f := newFixture(Options{})

	res := f.do(t, http.MethodPut, "/v1/session/user", domain.User{ID: "u1", Name: "Ada", Email: "ada@example.com"})
	if res.Code != http.StatusOK {
		t.Fatalf("sign in expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if state := decodeState(t, res); !state.App.IsAuthenticated || state.App.User.Name != "Ada" {
		t.Fatalf("expected signed-in user, got %+v", state.App)
	}

	res = f.do(t, http.MethodPut, "/v1/session/theme", map[string]string{"theme": "neon"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("invalid theme expected 400, got %d", res.Code)
	}
	if f.store.GetState().App.Theme != domain.ThemeSystem {
		t.Fatalf("invalid theme must not change state")
	}

	res = f.do(t, http.MethodDelete, "/v1/session/user", nil)
	if state := decodeState(t, res); state.App.IsAuthenticated || state.App.User != nil {
		t.Fatalf("expected signed-out state, got %+v", state.App)
	}
}

func TestUIRoutes(t *testing.T) {
	f := newFixture(Options{})

	f.do(t, http.MethodPost, "/v1/ui/sidebar/toggle", nil)
	if !f.store.GetState().UI.SidebarCollapsed {
		t.Fatalf("expected sidebar collapsed after toggle")
	}
	f.do(t, http.MethodPut, "/v1/ui/sidebar", map[string]bool{"collapsed": false})
	if f.store.GetState().UI.SidebarCollapsed {
		t.Fatalf("expected sidebar expanded")
	}

	res := f.do(t, http.MethodPut, "/v1/ui/tab", map[string]string{"tab": "ai-tools"})
	if state := decodeState(t, res); state.UI.ActiveTab != domain.TabAITools {
		t.Fatalf("expected ai-tools tab, got %q", state.UI.ActiveTab)
	}

	f.do(t, http.MethodPut, "/v1/ui/error", map[string]string{"message": "boom"})
	if f.store.GetState().UI.Error != "boom" {
		t.Fatalf("expected ui error to be set")
	}
	f.do(t, http.MethodDelete, "/v1/ui/error", nil)
	if f.store.GetState().UI.Error != "" {
		t.Fatalf("expected ui error to be cleared")
	}
}

func TestUnknownJSONFieldsAreRejected(t *testing.T) {
	f := newFixture(Options{})

	res := f.do(t, http.MethodPut, "/v1/ui/tab", map[string]string{"tab": "chat", "extra": "x"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", res.Code)
	}
}

func multipartRequest(t *testing.T, field string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAcceptFilesForwardsMultipartBodies(t *testing.T) {
	f := newFixture(Options{})

	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, multipartRequest(t, "files", map[string]string{"notes.txt": "derivatives"}))
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	var body struct {
		BatchID string `json:"batch_id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.BatchID != "batch-1" {
		t.Fatalf("expected batch id, got %q", body.BatchID)
	}
	if len(f.uploads.received) != 1 || f.uploads.received[0].Name != "notes.txt" || f.uploads.bodies[0] != "derivatives" {
		t.Fatalf("unexpected forwarded files: %+v / %v", f.uploads.received, f.uploads.bodies)
	}
}

func TestAcceptFilesRequiresFilesField(t *testing.T) {
	f := newFixture(Options{})

	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, multipartRequest(t, "file", map[string]string{"notes.txt": "x"}))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestAcceptFilesRejectsOversizedBody(t *testing.T) {
	f := newFixture(Options{MaxUploadBytes: 64})

	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, multipartRequest(t, "files", map[string]string{"big.txt": strings.Repeat("x", 4096)}))
	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
	if len(f.uploads.received) != 0 {
		t.Fatalf("oversized upload must not reach the orchestrator")
	}
}

func TestRemoveFileMapsNotFound(t *testing.T) {
	f := newFixture(Options{})

	if res := f.do(t, http.MethodDelete, "/v1/uploads/f-1", nil); res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res := f.do(t, http.MethodDelete, "/v1/uploads/missing", nil); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if len(f.uploads.removed) != 1 || f.uploads.removed[0] != "f-1" {
		t.Fatalf("unexpected removals: %v", f.uploads.removed)
	}
}

func TestUploadFieldRoutes(t *testing.T) {
	f := newFixture(Options{})

	f.do(t, http.MethodPut, "/v1/uploads/url", map[string]string{"url": "https://example.com/a.pdf"})
	f.do(t, http.MethodPut, "/v1/uploads/drag", map[string]bool{"active": true})
	f.do(t, http.MethodDelete, "/v1/uploads/error", nil)
	if f.uploads.url != "https://example.com/a.pdf" || !f.uploads.drag || !f.uploads.cleared {
		t.Fatalf("unexpected upload fake state: %+v", f.uploads)
	}
}

func TestChatRoutes(t *testing.T) {
	f := newFixture(Options{})

	if res := f.do(t, http.MethodPost, "/v1/chat/messages", map[string]string{"content": "What is a limit?"}); res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	if len(f.chat.sent) != 1 || f.chat.sent[0] != "What is a limit?" {
		t.Fatalf("unexpected sent messages: %v", f.chat.sent)
	}

	f.chat.err = domain.Reject(domain.ErrConflict, "send message", "assistant is still typing")
	if res := f.do(t, http.MethodPost, "/v1/chat/messages", map[string]string{"content": "again"}); res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}

	f.do(t, http.MethodPut, "/v1/chat/current", map[string]string{"id": "h-9"})
	if f.chat.current != "h-9" {
		t.Fatalf("expected current chat id to be forwarded")
	}

	res := f.do(t, http.MethodPost, "/v1/chat/history", map[string]string{"title": "Limits", "type": "chat"})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	if f.chat.archived.Title != "Limits" || f.chat.archived.Type != domain.HistoryChat {
		t.Fatalf("unexpected archive call: %+v", f.chat.archived)
	}
}

func TestToolRoutes(t *testing.T) {
	f := newFixture(Options{})

	if res := f.do(t, http.MethodPost, "/v1/tools/summarize/run", nil); res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	if res := f.do(t, http.MethodPost, "/v1/tools/unknown/run", nil); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if res := f.do(t, http.MethodPost, "/v1/tools/busy/run", nil); res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
	f.do(t, http.MethodPost, "/v1/tools/summarize/reset", nil)
	f.do(t, http.MethodPost, "/v1/tools/reset", nil)

	if len(f.tools.runs) != 1 || len(f.tools.resets) != 1 || !f.tools.all {
		t.Fatalf("unexpected tool calls: %+v", f.tools)
	}
}

func TestUnexpectedErrorsMapTo500(t *testing.T) {
	f := newFixture(Options{})
	f.uploads.err = errors.New("boom")

	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, multipartRequest(t, "files", map[string]string{"a.txt": "a"}))
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
}

func TestMetricsEndpointIsServed(t *testing.T) {
	f := newFixture(Options{Metrics: metrics.NewHTTPServerMetrics("api")})

	f.do(t, http.MethodGet, "/v1/state", nil)
	res := f.do(t, http.MethodGet, "/metrics", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `path="/v1/state"`) {
		t.Fatalf("expected route-labelled request metric, got:\n%s", res.Body.String())
	}
}
