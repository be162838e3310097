package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/kirillkom/studydesk/internal/core/domain"
	"github.com/kirillkom/studydesk/internal/core/ports"
	"github.com/kirillkom/studydesk/internal/core/store"
	"github.com/kirillkom/studydesk/internal/core/tasks"
)

const TaskChat = "chat"

type ChatOptions struct {
	ResponseDelay   time.Duration
	ResponseTimeout time.Duration
	HistoryLimit    int
}

func (o ChatOptions) normalize() ChatOptions {
	if o.ResponseDelay < 0 {
		o.ResponseDelay = 0
	}
	if o.ResponseTimeout <= 0 {
		o.ResponseTimeout = 60 * time.Second
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 50
	}
	return o
}

// ChatOrchestrator runs one conversation turn at a time: the user message is appended
// immediately, the assistant reply arrives from a responder task.
type ChatOrchestrator struct {
	store     ports.Dispatcher
	responder ports.ChatResponder
	history   ports.HistoryRepository
	clock     ports.Clock
	runner    *tasks.Runner
	opts      ChatOptions
}

func NewChatOrchestrator(
	st ports.Dispatcher,
	responder ports.ChatResponder,
	history ports.HistoryRepository,
	clock ports.Clock,
	runner *tasks.Runner,
	opts ChatOptions,
) *ChatOrchestrator {
	return &ChatOrchestrator{
		store:     st,
		responder: responder,
		history:   history,
		clock:     clock,
		runner:    runner,
		opts:      opts.normalize(),
	}
}

func (uc *ChatOrchestrator) SendMessage(_ context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return domain.Reject(domain.ErrInvalidInput, "send message", "message is empty")
	}
	if uc.store.GetState().Chat.IsTyping {
		return domain.Reject(domain.ErrConflict, "send message", "a reply is still being generated")
	}

	turnID := newID()
	message := domain.ChatMessage{
		ID:        newID(),
		Content:   content,
		Sender:    domain.SenderUser,
		Timestamp: uc.clock.Now(),
	}
	uc.store.Dispatch(store.SubmitMessage{TurnID: turnID, Message: message})

	chat := uc.store.GetState().Chat
	if chat.ActiveTurn != turnID {
		return domain.Reject(domain.ErrConflict, "send message", "a reply is still being generated")
	}
	idx := slices.IndexFunc(chat.Messages, func(m domain.ChatMessage) bool { return m.ID == message.ID })
	transcript := slices.Clone(chat.Messages[:max(idx, 0)])

	uc.runner.Go(TaskChat, func(ctx context.Context) error {
		return uc.respond(ctx, turnID, transcript, message)
	})
	return nil
}

func (uc *ChatOrchestrator) respond(ctx context.Context, turnID string, transcript []domain.ChatMessage, message domain.ChatMessage) error {
	var text string
	err := tasks.Protect(func() (err error) {
		text, err = uc.reply(ctx, transcript, message)
		return err
	})
	if err != nil {
		uc.store.Dispatch(store.FailTurn{TurnID: turnID, Reason: "Failed to send message: " + err.Error()})
		slog.Warn("chat_turn_failed", "turn_id", turnID, "error", err)
		return err
	}

	uc.store.Dispatch(store.CompleteTurn{TurnID: turnID, Message: domain.ChatMessage{
		ID:        newID(),
		Content:   text,
		Sender:    domain.SenderAI,
		Timestamp: uc.clock.Now(),
	}})
	return nil
}

func (uc *ChatOrchestrator) reply(ctx context.Context, transcript []domain.ChatMessage, message domain.ChatMessage) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-uc.clock.After(uc.opts.ResponseDelay):
	}

	respondCtx, cancel := context.WithTimeout(ctx, uc.opts.ResponseTimeout)
	defer cancel()

	text, err := uc.responder.Respond(respondCtx, transcript, message)
	if err != nil {
		return "", fmt.Errorf("responder: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("responder returned an empty reply")
	}
	return text, nil
}

// SetCurrentChatID selects the active history entry; an empty id clears the selection.
func (uc *ChatOrchestrator) SetCurrentChatID(id string) {
	uc.store.Dispatch(store.SetCurrentChatID{ID: strings.TrimSpace(id)})
}

func (uc *ChatOrchestrator) SetChatHistory(entries []domain.ChatHistoryEntry) error {
	for _, entry := range entries {
		if err := validateHistoryEntry(entry); err != nil {
			return domain.WrapError(domain.ErrInvalidInput, "set chat history", err)
		}
	}
	uc.store.Dispatch(store.SetChatHistory{Entries: entries})
	return nil
}

func (uc *ChatOrchestrator) AddToChatHistory(entry domain.ChatHistoryEntry) error {
	if err := validateHistoryEntry(entry); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "add to chat history", err)
	}
	uc.store.Dispatch(store.AddToChatHistory{Entry: entry})
	return nil
}

// ArchiveConversation records the live transcript as a history entry and selects it.
// The transcript itself is kept. When title is blank the first user message is used.
func (uc *ChatOrchestrator) ArchiveConversation(ctx context.Context, title string, kind domain.HistoryType) (*domain.ChatHistoryEntry, error) {
	if kind == "" {
		kind = domain.HistoryChat
	}
	if !kind.Valid() {
		return nil, domain.Reject(domain.ErrInvalidInput, "archive conversation", fmt.Sprintf("unknown history type %q", kind))
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = titleFromTranscript(uc.store.GetState().Chat.Messages)
	}
	if title == "" {
		return nil, domain.Reject(domain.ErrInvalidInput, "archive conversation", "nothing to archive")
	}

	entry := domain.ChatHistoryEntry{
		ID:        newID(),
		Title:     title,
		Timestamp: "Just now",
		Type:      kind,
	}
	if uc.history != nil {
		if err := uc.history.Save(ctx, entry); err != nil {
			return nil, fmt.Errorf("save history entry: %w", err)
		}
	}

	uc.store.Dispatch(store.AddToChatHistory{Entry: entry})
	uc.store.Dispatch(store.SetCurrentChatID{ID: entry.ID})
	return &entry, nil
}

// LoadHistory replaces the history list with the persisted entries, if a repository is
// configured.
func (uc *ChatOrchestrator) LoadHistory(ctx context.Context) error {
	if uc.history == nil {
		return nil
	}
	entries, err := uc.history.List(ctx, uc.opts.HistoryLimit)
	if err != nil {
		return fmt.Errorf("list history entries: %w", err)
	}
	return uc.SetChatHistory(entries)
}

func (uc *ChatOrchestrator) ClearError() {
	uc.store.Dispatch(store.ClearChatError{})
}

func validateHistoryEntry(entry domain.ChatHistoryEntry) error {
	if strings.TrimSpace(entry.ID) == "" {
		return errors.New("history entry id is required")
	}
	if strings.TrimSpace(entry.Title) == "" {
		return fmt.Errorf("history entry %s has no title", entry.ID)
	}
	if !entry.Type.Valid() {
		return fmt.Errorf("history entry %s has unknown type %q", entry.ID, entry.Type)
	}
	return nil
}

func titleFromTranscript(messages []domain.ChatMessage) string {
	const maxTitle = 60
	for _, m := range messages {
		if m.Sender != domain.SenderUser {
			continue
		}
		title := strings.Join(strings.Fields(m.Content), " ")
		if runes := []rune(title); len(runes) > maxTitle {
			title = strings.TrimSpace(string(runes[:maxTitle])) + "..."
		}
		return title
	}
	return ""
}
