// Package mock is the offline AI backend: canned replies and canned tool payloads.
package mock

import (
	"context"
	"fmt"

	"github.com/kirillkom/studydesk/internal/core/domain"
)

const Reply = "That's a great question! Based on your uploaded documents, I can help you " +
	"understand this concept better. Let me break it down for you..."

type Responder struct{}

func NewResponder() *Responder {
	return &Responder{}
}

func (r *Responder) Respond(ctx context.Context, _ []domain.ChatMessage, _ domain.ChatMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return Reply, nil
}

type ToolExecutor struct{}

func NewToolExecutor() *ToolExecutor {
	return &ToolExecutor{}
}

func (e *ToolExecutor) Execute(ctx context.Context, toolID string, _ []domain.UploadedFile) (domain.ToolResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch toolID {
	case domain.ToolSummarize:
		return domain.SummaryResult("Generated summary of the document..."), nil
	case domain.ToolQuestions:
		return domain.QuestionsResult{"Question 1?", "Question 2?", "Question 3?"}, nil
	case domain.ToolMCQs:
		return domain.MCQResult{
			{Question: "MCQ 1?", Options: []string{"A", "B", "C", "D"}, CorrectIndex: 0},
			{Question: "MCQ 2?", Options: []string{"A", "B", "C", "D"}, CorrectIndex: 1},
		}, nil
	case domain.ToolFlashcards:
		return domain.FlashcardsResult{
			{Front: "Term 1", Back: "Definition 1"},
			{Front: "Term 2", Back: "Definition 2"},
		}, nil
	default:
		return nil, fmt.Errorf("no mock payload for tool %q", toolID)
	}
}
