package store

import (
	"maps"
	"slices"
	"strings"

	"github.com/kirillkom/studydesk/internal/core/domain"
)

func reduce(s State, action Action) State {
	switch a := action.(type) {
	case AppAction:
		s.App = reduceApp(s.App, a)
	case UIAction:
		s.UI = reduceUI(s.UI, a)
	case ChatAction:
		s.Chat = reduceChat(s.Chat, a)
	case UploadAction:
		s.Upload = reduceUpload(s.Upload, a)
	case ToolsAction:
		s.Tools = reduceTools(s.Tools, a)
	}
	return s
}

func reduceApp(s AppState, action AppAction) AppState {
	switch a := action.(type) {
	case SetUser:
		user := a.User
		s.User = &user
		s.IsAuthenticated = true
	case ClearUser:
		s.User = nil
		s.IsAuthenticated = false
	case SetTheme:
		if a.Theme.Valid() {
			s.Theme = a.Theme
		}
	}
	return s
}

func reduceUI(s UIState, action UIAction) UIState {
	switch a := action.(type) {
	case ToggleSidebar:
		s.SidebarCollapsed = !s.SidebarCollapsed
	case SetSidebarCollapsed:
		s.SidebarCollapsed = a.Collapsed
	case SetActiveTab:
		if a.Tab.Valid() {
			s.ActiveTab = a.Tab
		}
	case SetLoading:
		s.Loading = a.Loading
	case SetError:
		s.Error = a.Message
	case ClearError:
		s.Error = ""
	}
	return s
}

func reduceUpload(s UploadState, action UploadAction) UploadState {
	switch a := action.(type) {
	case StartBatch:
		if a.BatchID == "" {
			return s
		}
		files := make([]domain.UploadedFile, 0, len(a.Files))
		for _, f := range a.Files {
			f.Status = domain.FileUploading
			f.Progress = 0
			files = append(files, f)
		}
		s.Files = files
		s.BatchID = a.BatchID
		s.Uploading = true
		s.Progress = 0
		s.Error = ""
	case UpdateBatchProgress:
		if !s.tracks(a.BatchID) {
			return s
		}
		progress := min(max(a.Progress, 0), 100)
		if progress < s.Progress {
			return s
		}
		s.Progress = progress
		s.Files = mapFiles(s.Files, func(f domain.UploadedFile) domain.UploadedFile {
			if f.Status == domain.FileUploading && f.Progress < progress {
				f.Progress = progress
			}
			return f
		})
	case SetFileStatus:
		if !s.tracks(a.BatchID) || !a.Status.Valid() {
			return s
		}
		s.Files = mapFiles(s.Files, func(f domain.UploadedFile) domain.UploadedFile {
			if f.ID == a.FileID && inFlight(f.Status) {
				f.Status = a.Status
			}
			return f
		})
	case CompleteBatch:
		if !s.tracks(a.BatchID) {
			return s
		}
		s.Files = mapFiles(s.Files, func(f domain.UploadedFile) domain.UploadedFile {
			if inFlight(f.Status) {
				f.Status = domain.FileCompleted
				f.Progress = 100
			}
			return f
		})
		s.Uploading = false
		s.Progress = 100
	case FailBatch:
		if !s.tracks(a.BatchID) {
			return s
		}
		s.Files = mapFiles(s.Files, func(f domain.UploadedFile) domain.UploadedFile {
			if inFlight(f.Status) {
				f.Status = domain.FileError
			}
			return f
		})
		s.Uploading = false
		s.Error = orDefault(a.Reason, "Upload failed")
	case RemoveFile:
		if _, ok := s.File(a.FileID); !ok {
			return s
		}
		s.Files = slices.DeleteFunc(slices.Clone(s.Files), func(f domain.UploadedFile) bool {
			return f.ID == a.FileID
		})
	case SetURL:
		s.URL = a.URL
	case SetDragActive:
		s.DragActive = a.Active
	case ClearUploadError:
		s.Error = ""
	}
	return s
}

// tracks reports whether task actions tagged with batchID still apply.
func (s UploadState) tracks(batchID string) bool {
	return batchID != "" && batchID == s.BatchID && s.Uploading
}

func inFlight(status domain.FileStatus) bool {
	return status == domain.FileUploading || status == domain.FileProcessing
}

func mapFiles(files []domain.UploadedFile, fn func(domain.UploadedFile) domain.UploadedFile) []domain.UploadedFile {
	out := make([]domain.UploadedFile, len(files))
	for i, f := range files {
		out[i] = fn(f)
	}
	return out
}

func reduceChat(s ChatState, action ChatAction) ChatState {
	switch a := action.(type) {
	case SubmitMessage:
		if s.IsTyping || a.TurnID == "" || strings.TrimSpace(a.Message.Content) == "" {
			return s
		}
		s.Messages = appendMessage(s.Messages, a.Message)
		s.IsTyping = true
		s.Loading = true
		s.ActiveTurn = a.TurnID
		s.Error = ""
	case CompleteTurn:
		if !s.IsTyping || a.TurnID != s.ActiveTurn {
			return s
		}
		s.Messages = appendMessage(s.Messages, a.Message)
		s.IsTyping = false
		s.Loading = false
		s.ActiveTurn = ""
	case FailTurn:
		if !s.IsTyping || a.TurnID != s.ActiveTurn {
			return s
		}
		s.IsTyping = false
		s.Loading = false
		s.ActiveTurn = ""
		s.Error = orDefault(a.Reason, "Failed to send message")
	case SetCurrentChatID:
		s.CurrentChatID = a.ID
	case SetChatHistory:
		s.History = slices.Clone(a.Entries)
		if s.History == nil {
			s.History = []domain.ChatHistoryEntry{}
		}
	case AddToChatHistory:
		if a.Entry.ID == "" {
			return s
		}
		rest := slices.DeleteFunc(slices.Clone(s.History), func(e domain.ChatHistoryEntry) bool {
			return e.ID == a.Entry.ID
		})
		s.History = append([]domain.ChatHistoryEntry{a.Entry}, rest...)
	case ClearChatError:
		s.Error = ""
	}
	return s
}

// appendMessage copies on append and keeps timestamps non-decreasing.
func appendMessage(messages []domain.ChatMessage, msg domain.ChatMessage) []domain.ChatMessage {
	if n := len(messages); n > 0 && msg.Timestamp.Before(messages[n-1].Timestamp) {
		msg.Timestamp = messages[n-1].Timestamp
	}
	return append(slices.Clip(messages), msg)
}

func reduceTools(s ToolsState, action ToolsAction) ToolsState {
	switch a := action.(type) {
	case StartToolRun:
		idx := s.index(a.ToolID)
		if idx < 0 || a.Generation == 0 || s.Tools[idx].Status == domain.ToolProcessing {
			return s
		}
		s = s.withTool(idx, func(t *domain.AITool) {
			t.Status = domain.ToolProcessing
			t.Results = nil
			t.Generation = a.Generation
		})
		s.staged = unstage(s.staged, a.ToolID)
		s.Error = ""
	case UpdateToolResults:
		idx := s.runIndex(a.ToolID, a.Generation)
		if idx < 0 || a.Results == nil || a.Results.ToolID() != a.ToolID {
			return s
		}
		staged := maps.Clone(s.staged)
		if staged == nil {
			staged = make(map[string]domain.ToolResult, 1)
		}
		staged[a.ToolID] = a.Results
		s.staged = staged
	case UpdateToolStatus:
		idx := s.runIndex(a.ToolID, a.Generation)
		if idx < 0 {
			return s
		}
		switch a.Status {
		case domain.ToolCompleted:
			results, ok := s.staged[a.ToolID]
			if !ok {
				return s
			}
			s = s.withTool(idx, func(t *domain.AITool) {
				t.Status = domain.ToolCompleted
				t.Results = results
			})
		case domain.ToolAvailable:
			s = s.withTool(idx, func(t *domain.AITool) {
				t.Status = domain.ToolAvailable
				t.Results = nil
				t.Generation = 0
			})
		default:
			return s
		}
		s.staged = unstage(s.staged, a.ToolID)
	case FailToolRun:
		idx := s.runIndex(a.ToolID, a.Generation)
		if idx < 0 {
			return s
		}
		s = s.withTool(idx, func(t *domain.AITool) {
			t.Status = domain.ToolAvailable
			t.Results = nil
			t.Generation = 0
		})
		s.staged = unstage(s.staged, a.ToolID)
		s.Error = orDefault(a.Reason, "Tool execution failed")
	case ResetTool:
		idx := s.index(a.ToolID)
		if idx < 0 {
			return s
		}
		s = s.withTool(idx, resetTool)
		s.staged = unstage(s.staged, a.ToolID)
	case ResetAllTools:
		tools := slices.Clone(s.Tools)
		for i := range tools {
			resetTool(&tools[i])
		}
		s.Tools = tools
		s.staged = nil
	case ClearToolsError:
		s.Error = ""
	}
	s.Loading = slices.ContainsFunc(s.Tools, func(t domain.AITool) bool {
		return t.Status == domain.ToolProcessing
	})
	return s
}

// runIndex finds a tool whose in-flight run matches generation.
func (s ToolsState) runIndex(toolID string, generation uint64) int {
	idx := s.index(toolID)
	if idx < 0 || generation == 0 {
		return -1
	}
	t := s.Tools[idx]
	if t.Status != domain.ToolProcessing || t.Generation != generation {
		return -1
	}
	return idx
}

func (s ToolsState) withTool(idx int, fn func(*domain.AITool)) ToolsState {
	tools := slices.Clone(s.Tools)
	fn(&tools[idx])
	s.Tools = tools
	return s
}

func resetTool(t *domain.AITool) {
	t.Status = domain.ToolAvailable
	t.Results = nil
	t.Generation = 0
}

func unstage(staged map[string]domain.ToolResult, toolID string) map[string]domain.ToolResult {
	if _, ok := staged[toolID]; !ok {
		return staged
	}
	out := maps.Clone(staged)
	delete(out, toolID)
	return out
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
