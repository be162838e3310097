package ports

import (
	"context"

	"github.com/kirillkom/studydesk/internal/core/domain"
	"github.com/kirillkom/studydesk/internal/core/store"
)

// StateReader exposes the current dispatcher snapshot.
type StateReader interface {
	GetState() store.State
}

// UploadService is the inbound contract for upload orchestration.
type UploadService interface {
	AcceptFiles(ctx context.Context, files []domain.RawFile) (string, error)
	RemoveFile(id string) error
	SetURL(url string)
	SetDragActive(active bool)
	ClearError()
}

// ChatService is the inbound contract for chat turn orchestration.
type ChatService interface {
	SendMessage(ctx context.Context, content string) error
	SetCurrentChatID(id string)
	SetChatHistory(entries []domain.ChatHistoryEntry) error
	AddToChatHistory(entry domain.ChatHistoryEntry) error
	ArchiveConversation(ctx context.Context, title string, kind domain.HistoryType) (*domain.ChatHistoryEntry, error)
	ClearError()
}

// ToolService is the inbound contract for AI tool orchestration.
type ToolService interface {
	RunTool(ctx context.Context, toolID string) error
	ResetTool(toolID string) error
	ResetAllTools()
	ClearError()
}

// SessionService mutates identity and theme preference.
type SessionService interface {
	SignIn(user domain.User) error
	SignOut()
	SetTheme(theme domain.Theme) error
}

// NavigationService mutates cross-cutting UI flags.
type NavigationService interface {
	ToggleSidebar()
	SetSidebarCollapsed(collapsed bool)
	SetActiveTab(tab domain.Tab) error
	SetLoading(loading bool)
	SetError(message string)
	ClearError()
}

// Dispatcher is the single mutation gateway shared by the orchestrators.
type Dispatcher interface {
	StateReader
	Dispatch(action store.Action)
}
