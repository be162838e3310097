package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/studydesk/internal/core/domain"
	"github.com/kirillkom/studydesk/internal/core/ports"
	"github.com/kirillkom/studydesk/internal/core/store"
)

const responseDelay = 1500 * time.Millisecond

func newChat(h *harness, responder *responderFake, history *historyRepoFake) *ChatOrchestrator {
	var repo ports.HistoryRepository
	if history != nil {
		repo = history
	}
	return NewChatOrchestrator(h.store, responder, repo, h.clock, h.runner, ChatOptions{ResponseDelay: responseDelay})
}

func TestSendMessageAppendsReplyAfterDelay(t *testing.T) {
	h := newHarness(t)
	responder := &responderFake{reply: "Photosynthesis turns light into chemical energy."}
	uc := newChat(h, responder, nil)

	if err := uc.SendMessage(context.Background(), "Explain photosynthesis"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	chat := h.store.GetState().Chat
	if !chat.IsTyping || len(chat.Messages) != 1 {
		t.Fatalf("expected typing with one message, got %+v", chat)
	}
	if m := chat.Messages[0]; m.Sender != domain.SenderUser || m.Content != "Explain photosynthesis" {
		t.Fatalf("unexpected user message: %+v", m)
	}

	h.tick(t, responseDelay)
	h.runner.Wait()

	chat = h.store.GetState().Chat
	if chat.IsTyping || chat.Loading || chat.ActiveTurn != "" {
		t.Fatalf("turn was not closed: %+v", chat)
	}
	if len(chat.Messages) != 2 {
		t.Fatalf("expected two messages, got %d", len(chat.Messages))
	}
	reply := chat.Messages[1]
	if reply.Sender != domain.SenderAI || reply.Content != responder.reply {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if reply.Timestamp.Before(chat.Messages[0].Timestamp) {
		t.Fatalf("reply timestamp precedes user message")
	}
	if responder.message.Content != "Explain photosynthesis" || len(responder.transcript) != 0 {
		t.Fatalf("responder got message %+v with transcript %+v", responder.message, responder.transcript)
	}
}

func TestSendMessageWhileTypingIsRejected(t *testing.T) {
	h := newHarness(t)
	uc := newChat(h, &responderFake{reply: "ok"}, nil)

	if err := uc.SendMessage(context.Background(), "first"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if err := uc.SendMessage(context.Background(), "second"); !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if n := len(h.store.GetState().Chat.Messages); n != 1 {
		t.Fatalf("rejected message was appended, have %d messages", n)
	}

	h.tick(t, responseDelay)
	h.runner.Wait()

	if err := uc.SendMessage(context.Background(), "second"); err != nil {
		t.Fatalf("SendMessage() after reply error = %v", err)
	}
}

func TestSendMessageRejectsBlankContent(t *testing.T) {
	h := newHarness(t)
	uc := newChat(h, &responderFake{reply: "ok"}, nil)

	if err := uc.SendMessage(context.Background(), "  \n "); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if chat := h.store.GetState().Chat; chat.IsTyping || len(chat.Messages) != 0 {
		t.Fatalf("blank message changed state: %+v", chat)
	}
}

func TestSendMessagePassesPriorTranscript(t *testing.T) {
	h := newHarness(t)
	h.store = store.New(store.SeedDemo(h.store.GetState(), h.clock.Now()))
	responder := &responderFake{reply: "ok"}
	uc := newChat(h, responder, nil)

	if err := uc.SendMessage(context.Background(), "What is a derivative?"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	h.tick(t, responseDelay)
	h.runner.Wait()

	if len(responder.transcript) != 1 || responder.transcript[0].ID != "greeting" {
		t.Fatalf("expected greeting as transcript, got %+v", responder.transcript)
	}
}

func TestResponderFailureEndsTurnWithError(t *testing.T) {
	h := newHarness(t)
	uc := newChat(h, &responderFake{err: errors.New("model offline")}, nil)

	if err := uc.SendMessage(context.Background(), "hello"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	h.tick(t, responseDelay)
	h.runner.Wait()

	chat := h.store.GetState().Chat
	if chat.IsTyping || len(chat.Messages) != 1 {
		t.Fatalf("unexpected chat state: %+v", chat)
	}
	if !strings.HasPrefix(chat.Error, "Failed to send message") || !strings.Contains(chat.Error, "model offline") {
		t.Fatalf("unexpected error: %q", chat.Error)
	}

	uc.ClearError()
	if h.store.GetState().Chat.Error != "" {
		t.Fatalf("error was not cleared")
	}
}

func TestResponderPanicEndsTurnWithError(t *testing.T) {
	h := newHarness(t)
	responder := &responderFake{reply: "Try again later.", panic: "nil transcript"}
	uc := newChat(h, responder, nil)

	if err := uc.SendMessage(context.Background(), "hello"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	h.drain(t, responseDelay)

	chat := h.store.GetState().Chat
	if chat.IsTyping || chat.Loading || chat.ActiveTurn != "" {
		t.Fatalf("turn was not closed: %+v", chat)
	}
	if !strings.HasPrefix(chat.Error, "Failed to send message") || !strings.Contains(chat.Error, "nil transcript") {
		t.Fatalf("unexpected error: %q", chat.Error)
	}

	if err := uc.SendMessage(context.Background(), "hello again"); err != nil {
		t.Fatalf("SendMessage() after panic error = %v", err)
	}
	h.drain(t, responseDelay)

	chat = h.store.GetState().Chat
	if chat.IsTyping || len(chat.Messages) != 3 || chat.Messages[2].Sender != domain.SenderAI {
		t.Fatalf("unexpected chat after retry: %+v", chat)
	}
}

func TestEmptyReplyIsAFailure(t *testing.T) {
	h := newHarness(t)
	uc := newChat(h, &responderFake{reply: "   "}, nil)

	if err := uc.SendMessage(context.Background(), "hello"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	h.tick(t, responseDelay)
	h.runner.Wait()

	if chat := h.store.GetState().Chat; chat.Error == "" || len(chat.Messages) != 1 {
		t.Fatalf("expected failed turn, got %+v", chat)
	}
}

func TestArchiveConversationUsesFirstUserMessage(t *testing.T) {
	h := newHarness(t)
	repo := &historyRepoFake{}
	uc := newChat(h, &responderFake{reply: "ok"}, repo)

	if _, err := uc.ArchiveConversation(context.Background(), "", ""); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input on empty transcript, got %v", err)
	}

	if err := uc.SendMessage(context.Background(), "Explain   the chain rule"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	h.tick(t, responseDelay)
	h.runner.Wait()

	entry, err := uc.ArchiveConversation(context.Background(), "", "")
	if err != nil {
		t.Fatalf("ArchiveConversation() error = %v", err)
	}
	if entry.Title != "Explain the chain rule" || entry.Type != domain.HistoryChat {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if len(repo.saved) != 1 || repo.saved[0].ID != entry.ID {
		t.Fatalf("entry was not persisted: %+v", repo.saved)
	}

	chat := h.store.GetState().Chat
	if chat.CurrentChatID != entry.ID || len(chat.History) == 0 || chat.History[0].ID != entry.ID {
		t.Fatalf("entry was not selected: %+v", chat)
	}
	if len(chat.Messages) != 2 {
		t.Fatalf("archive must keep the transcript, got %d messages", len(chat.Messages))
	}
}

func TestArchiveConversationRepositoryFailure(t *testing.T) {
	h := newHarness(t)
	uc := newChat(h, &responderFake{}, &historyRepoFake{err: errors.New("db down")})

	if _, err := uc.ArchiveConversation(context.Background(), "Notes", domain.HistoryDocument); err == nil {
		t.Fatalf("expected error")
	}
	if n := len(h.store.GetState().Chat.History); n != 0 {
		t.Fatalf("failed archive changed history: %d entries", n)
	}
}

func TestChatHistorySetters(t *testing.T) {
	h := newHarness(t)
	uc := newChat(h, &responderFake{}, nil)

	entries := []domain.ChatHistoryEntry{
		{ID: "a", Title: "Algebra", Timestamp: "1 day ago", Type: domain.HistoryDocument},
		{ID: "b", Title: "Biology quiz", Timestamp: "2 days ago", Type: domain.HistoryQuiz},
	}
	if err := uc.SetChatHistory(entries); err != nil {
		t.Fatalf("SetChatHistory() error = %v", err)
	}
	if err := uc.AddToChatHistory(domain.ChatHistoryEntry{ID: "b", Title: "Biology quiz v2", Type: domain.HistoryQuiz}); err != nil {
		t.Fatalf("AddToChatHistory() error = %v", err)
	}
	if err := uc.AddToChatHistory(domain.ChatHistoryEntry{ID: "c", Title: "x", Type: "podcast"}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown type, got %v", err)
	}

	history := h.store.GetState().Chat.History
	if len(history) != 2 || history[0].Title != "Biology quiz v2" || history[1].ID != "a" {
		t.Fatalf("unexpected history: %+v", history)
	}

	uc.SetCurrentChatID("a")
	if h.store.GetState().Chat.CurrentChatID != "a" {
		t.Fatalf("current chat id not set")
	}
	uc.SetCurrentChatID("")
	if h.store.GetState().Chat.CurrentChatID != "" {
		t.Fatalf("current chat id not cleared")
	}
}

func TestLoadHistoryFromRepository(t *testing.T) {
	h := newHarness(t)
	repo := &historyRepoFake{entries: []domain.ChatHistoryEntry{
		{ID: "p1", Title: "Persisted", Timestamp: "Just now", Type: domain.HistoryChat},
	}}
	uc := newChat(h, &responderFake{}, repo)

	if err := uc.LoadHistory(context.Background()); err != nil {
		t.Fatalf("LoadHistory() error = %v", err)
	}
	if history := h.store.GetState().Chat.History; len(history) != 1 || history[0].ID != "p1" {
		t.Fatalf("unexpected history: %+v", history)
	}
}
