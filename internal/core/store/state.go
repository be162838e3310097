package store

import (
	"slices"
	"time"

	"github.com/kirillkom/studydesk/internal/core/domain"
)

// State is a read-only snapshot of every slice. Reducers never write into the backing
// arrays of a published snapshot, so a State can be shared freely between readers.
type State struct {
	App    AppState    `json:"app"`
	UI     UIState     `json:"ui"`
	Chat   ChatState   `json:"chat"`
	Upload UploadState `json:"upload"`
	Tools  ToolsState  `json:"tools"`
}

type AppState struct {
	User            *domain.User `json:"user"`
	IsAuthenticated bool         `json:"is_authenticated"`
	Theme           domain.Theme `json:"theme"`
}

type UIState struct {
	SidebarCollapsed bool       `json:"sidebar_collapsed"`
	ActiveTab        domain.Tab `json:"active_tab"`
	Loading          bool       `json:"loading"`
	Error            string     `json:"error,omitempty"`
}

type UploadState struct {
	Files      []domain.UploadedFile `json:"files"`
	URL        string                `json:"url"`
	DragActive bool                  `json:"drag_active"`
	Uploading  bool                  `json:"uploading"`
	Progress   int                   `json:"upload_progress"`
	BatchID    string                `json:"batch_id,omitempty"`
	Error      string                `json:"error,omitempty"`
}

func (s UploadState) File(id string) (domain.UploadedFile, bool) {
	idx := slices.IndexFunc(s.Files, func(f domain.UploadedFile) bool { return f.ID == id })
	if idx < 0 {
		return domain.UploadedFile{}, false
	}
	return s.Files[idx], true
}

// CompletedFiles returns the files whose upload finished successfully.
func (s UploadState) CompletedFiles() []domain.UploadedFile {
	out := make([]domain.UploadedFile, 0, len(s.Files))
	for _, f := range s.Files {
		if f.Status == domain.FileCompleted {
			out = append(out, f)
		}
	}
	return out
}

type ChatState struct {
	Messages      []domain.ChatMessage      `json:"messages"`
	History       []domain.ChatHistoryEntry `json:"chat_history"`
	CurrentChatID string                    `json:"current_chat_id,omitempty"`
	IsTyping      bool                      `json:"is_typing"`
	Loading       bool                      `json:"loading"`
	ActiveTurn    string                    `json:"active_turn,omitempty"`
	Error         string                    `json:"error,omitempty"`
}

type ToolsState struct {
	Tools   []domain.AITool `json:"tools"`
	Loading bool            `json:"loading"`
	Error   string          `json:"error,omitempty"`

	// results delivered by a run but not yet published by its completed transition
	staged map[string]domain.ToolResult
}

func (s ToolsState) Tool(id string) (domain.AITool, bool) {
	idx := s.index(id)
	if idx < 0 {
		return domain.AITool{}, false
	}
	return s.Tools[idx], true
}

func (s ToolsState) index(id string) int {
	return slices.IndexFunc(s.Tools, func(t domain.AITool) bool { return t.ID == id })
}

// NewState builds the process-start state around a tool catalog.
func NewState(catalog []domain.AITool) State {
	tools := make([]domain.AITool, 0, len(catalog))
	for _, t := range catalog {
		t.Status = domain.ToolAvailable
		t.Results = nil
		t.Generation = 0
		tools = append(tools, t)
	}
	return State{
		App: AppState{Theme: domain.ThemeSystem},
		UI:  UIState{ActiveTab: domain.TabUpload},
		Chat: ChatState{
			Messages: []domain.ChatMessage{},
			History:  []domain.ChatHistoryEntry{},
		},
		Upload: UploadState{Files: []domain.UploadedFile{}},
		Tools:  ToolsState{Tools: tools},
	}
}

const greeting = "Hello! I'm your AI study assistant. I can help you understand your uploaded documents, " +
	"answer questions, and create study materials. What would you like to learn about today?"

// SeedDemo adds the assistant greeting and a sample history list.
func SeedDemo(s State, now time.Time) State {
	s.Chat.Messages = append(slices.Clip(s.Chat.Messages), domain.ChatMessage{
		ID:        "greeting",
		Content:   greeting,
		Sender:    domain.SenderAI,
		Timestamp: now,
	})
	s.Chat.History = []domain.ChatHistoryEntry{
		{ID: "1", Title: "Linear Algebra Notes", Timestamp: "2 hours ago", Type: domain.HistoryDocument},
		{ID: "2", Title: "Physics Chapter 5 Quiz", Timestamp: "1 day ago", Type: domain.HistoryQuiz},
		{ID: "3", Title: "Machine Learning Concepts", Timestamp: "2 days ago", Type: domain.HistoryChat},
		{ID: "4", Title: "Calculus Problem Set", Timestamp: "3 days ago", Type: domain.HistoryDocument},
		{ID: "5", Title: "Chemistry Equations", Timestamp: "1 week ago", Type: domain.HistoryChat},
	}
	return s
}
