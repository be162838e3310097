package domain

import "time"

type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

type ChatMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

type HistoryType string

const (
	HistoryChat     HistoryType = "chat"
	HistoryDocument HistoryType = "document"
	HistoryQuiz     HistoryType = "quiz"
)

func (t HistoryType) Valid() bool {
	switch t {
	case HistoryChat, HistoryDocument, HistoryQuiz:
		return true
	default:
		return false
	}
}

// ChatHistoryEntry references an archived conversation or generated artifact.
// Timestamp is display text ("2 hours ago"), not a parsed time.
type ChatHistoryEntry struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Timestamp string      `json:"timestamp"`
	Type      HistoryType `json:"type"`
}
