package domain

import (
	"fmt"
	"strings"
)

const (
	ToolSummarize  = "summarize"
	ToolQuestions  = "questions"
	ToolMCQs       = "mcqs"
	ToolFlashcards = "flashcards"
)

type ToolStatus string

const (
	ToolAvailable  ToolStatus = "available"
	ToolProcessing ToolStatus = "processing"
	ToolCompleted  ToolStatus = "completed"
)

// AITool is a catalog entry. Results is non-nil exactly when Status is ToolCompleted.
// Generation identifies the current run; zero means no run is tracked.
type AITool struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      ToolStatus `json:"status"`
	Badge       string     `json:"badge,omitempty"`
	Results     ToolResult `json:"results,omitempty"`
	Generation  uint64     `json:"generation"`
}

// ToolResult is the payload produced by a tool run. The concrete type is fixed by the
// tool id: SummaryResult, QuestionsResult, MCQResult or FlashcardsResult.
type ToolResult interface {
	ToolID() string
	Validate() error
}

type SummaryResult string

func (SummaryResult) ToolID() string { return ToolSummarize }

func (r SummaryResult) Validate() error {
	if strings.TrimSpace(string(r)) == "" {
		return fmt.Errorf("summary is empty")
	}
	return nil
}

type QuestionsResult []string

func (QuestionsResult) ToolID() string { return ToolQuestions }

func (r QuestionsResult) Validate() error {
	if len(r) == 0 {
		return fmt.Errorf("no questions generated")
	}
	for i, q := range r {
		if strings.TrimSpace(q) == "" {
			return fmt.Errorf("question %d is empty", i)
		}
	}
	return nil
}

type MCQ struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
}

type MCQResult []MCQ

func (MCQResult) ToolID() string { return ToolMCQs }

func (r MCQResult) Validate() error {
	if len(r) == 0 {
		return fmt.Errorf("no mcqs generated")
	}
	for i, q := range r {
		if strings.TrimSpace(q.Question) == "" {
			return fmt.Errorf("mcq %d has no question", i)
		}
		if len(q.Options) != 4 {
			return fmt.Errorf("mcq %d has %d options, want 4", i, len(q.Options))
		}
		if q.CorrectIndex < 0 || q.CorrectIndex > 3 {
			return fmt.Errorf("mcq %d correct index %d out of range", i, q.CorrectIndex)
		}
	}
	return nil
}

type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

type FlashcardsResult []Flashcard

func (FlashcardsResult) ToolID() string { return ToolFlashcards }

func (r FlashcardsResult) Validate() error {
	if len(r) == 0 {
		return fmt.Errorf("no flashcards generated")
	}
	for i, c := range r {
		if strings.TrimSpace(c.Front) == "" || strings.TrimSpace(c.Back) == "" {
			return fmt.Errorf("flashcard %d is incomplete", i)
		}
	}
	return nil
}

// CheckToolResult verifies that a payload matches the shape expected for toolID.
func CheckToolResult(toolID string, result ToolResult) error {
	if result == nil {
		return fmt.Errorf("tool %s returned no result", toolID)
	}
	if result.ToolID() != toolID {
		return fmt.Errorf("tool %s returned %s payload", toolID, result.ToolID())
	}
	return result.Validate()
}
