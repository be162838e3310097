package ollama

import (
	"context"
	"fmt"

	"github.com/kirillkom/studydesk/internal/core/domain"
)

type Responder struct {
	client *Client
}

func NewResponder(client *Client) *Responder {
	return &Responder{client: client}
}

func (r *Responder) Respond(ctx context.Context, transcript []domain.ChatMessage, message domain.ChatMessage) (string, error) {
	text, err := r.client.generateText(ctx, buildChatPrompt(transcript, message))
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	return text, nil
}
