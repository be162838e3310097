package store

import "github.com/kirillkom/studydesk/internal/core/domain"

// Action is a closed set: only types declared in this package satisfy it, and each one
// belongs to exactly one slice reducer.
type Action interface {
	Kind() string
	Slice() string
	isAction()
}

const (
	SliceApp    = "app"
	SliceUI     = "ui"
	SliceChat   = "chat"
	SliceUpload = "upload"
	SliceTools  = "tools"
)

type appAction struct{}

func (appAction) Slice() string { return SliceApp }
func (appAction) isAction()     {}
func (appAction) isAppAction()  {}

type uiAction struct{}

func (uiAction) Slice() string { return SliceUI }
func (uiAction) isAction()     {}
func (uiAction) isUIAction()   {}

type chatAction struct{}

func (chatAction) Slice() string { return SliceChat }
func (chatAction) isAction()     {}
func (chatAction) isChatAction() {}

type uploadAction struct{}

func (uploadAction) Slice() string   { return SliceUpload }
func (uploadAction) isAction()       {}
func (uploadAction) isUploadAction() {}

type toolsAction struct{}

func (toolsAction) Slice() string  { return SliceTools }
func (toolsAction) isAction()      {}
func (toolsAction) isToolsAction() {}

type AppAction interface {
	Action
	isAppAction()
}

type UIAction interface {
	Action
	isUIAction()
}

type ChatAction interface {
	Action
	isChatAction()
}

type UploadAction interface {
	Action
	isUploadAction()
}

type ToolsAction interface {
	Action
	isToolsAction()
}

// app

type SetUser struct {
	appAction
	User domain.User
}

type ClearUser struct{ appAction }

type SetTheme struct {
	appAction
	Theme domain.Theme
}

func (SetUser) Kind() string   { return "set_user" }
func (ClearUser) Kind() string { return "clear_user" }
func (SetTheme) Kind() string  { return "set_theme" }

// ui

type ToggleSidebar struct{ uiAction }

type SetSidebarCollapsed struct {
	uiAction
	Collapsed bool
}

type SetActiveTab struct {
	uiAction
	Tab domain.Tab
}

type SetLoading struct {
	uiAction
	Loading bool
}

type SetError struct {
	uiAction
	Message string
}

type ClearError struct{ uiAction }

func (ToggleSidebar) Kind() string       { return "toggle_sidebar" }
func (SetSidebarCollapsed) Kind() string { return "set_sidebar_collapsed" }
func (SetActiveTab) Kind() string        { return "set_active_tab" }
func (SetLoading) Kind() string          { return "set_loading" }
func (SetError) Kind() string            { return "set_error" }
func (ClearError) Kind() string          { return "clear_error" }

// upload

// StartBatch replaces the file set and makes BatchID the only batch whose task
// actions are applied.
type StartBatch struct {
	uploadAction
	BatchID string
	Files   []domain.UploadedFile
}

type UpdateBatchProgress struct {
	uploadAction
	BatchID  string
	Progress int
}

type SetFileStatus struct {
	uploadAction
	BatchID string
	FileID  string
	Status  domain.FileStatus
}

type CompleteBatch struct {
	uploadAction
	BatchID string
}

type FailBatch struct {
	uploadAction
	BatchID string
	Reason  string
}

type RemoveFile struct {
	uploadAction
	FileID string
}

type SetURL struct {
	uploadAction
	URL string
}

type SetDragActive struct {
	uploadAction
	Active bool
}

type ClearUploadError struct{ uploadAction }

func (StartBatch) Kind() string          { return "start_batch" }
func (UpdateBatchProgress) Kind() string { return "update_batch_progress" }
func (SetFileStatus) Kind() string       { return "set_file_status" }
func (CompleteBatch) Kind() string       { return "complete_batch" }
func (FailBatch) Kind() string           { return "fail_batch" }
func (RemoveFile) Kind() string          { return "remove_file" }
func (SetURL) Kind() string              { return "set_url" }
func (SetDragActive) Kind() string       { return "set_drag_active" }
func (ClearUploadError) Kind() string    { return "clear_upload_error" }

// chat

// SubmitMessage appends the user message and opens turn TurnID. It is dropped while
// another turn is still typing.
type SubmitMessage struct {
	chatAction
	TurnID  string
	Message domain.ChatMessage
}

type CompleteTurn struct {
	chatAction
	TurnID  string
	Message domain.ChatMessage
}

type FailTurn struct {
	chatAction
	TurnID string
	Reason string
}

type SetCurrentChatID struct {
	chatAction
	ID string
}

type SetChatHistory struct {
	chatAction
	Entries []domain.ChatHistoryEntry
}

type AddToChatHistory struct {
	chatAction
	Entry domain.ChatHistoryEntry
}

type ClearChatError struct{ chatAction }

func (SubmitMessage) Kind() string    { return "submit_message" }
func (CompleteTurn) Kind() string     { return "complete_turn" }
func (FailTurn) Kind() string         { return "fail_turn" }
func (SetCurrentChatID) Kind() string { return "set_current_chat_id" }
func (SetChatHistory) Kind() string   { return "set_chat_history" }
func (AddToChatHistory) Kind() string { return "add_to_chat_history" }
func (ClearChatError) Kind() string   { return "clear_chat_error" }

// tools

type StartToolRun struct {
	toolsAction
	ToolID     string
	Generation uint64
}

// UpdateToolResults stages a run's payload. It becomes visible only when the same run
// dispatches UpdateToolStatus with ToolCompleted.
type UpdateToolResults struct {
	toolsAction
	ToolID     string
	Generation uint64
	Results    domain.ToolResult
}

type UpdateToolStatus struct {
	toolsAction
	ToolID     string
	Generation uint64
	Status     domain.ToolStatus
}

type FailToolRun struct {
	toolsAction
	ToolID     string
	Generation uint64
	Reason     string
}

type ResetTool struct {
	toolsAction
	ToolID string
}

type ResetAllTools struct{ toolsAction }

type ClearToolsError struct{ toolsAction }

func (StartToolRun) Kind() string      { return "start_tool_run" }
func (UpdateToolResults) Kind() string { return "update_tool_results" }
func (UpdateToolStatus) Kind() string  { return "update_tool_status" }
func (FailToolRun) Kind() string       { return "fail_tool_run" }
func (ResetTool) Kind() string         { return "reset_tool" }
func (ResetAllTools) Kind() string     { return "reset_all_tools" }
func (ClearToolsError) Kind() string   { return "clear_tools_error" }
