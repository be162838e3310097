package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/studydesk/internal/core/domain"
)

const maxTranscriptMessages = 20

func buildChatPrompt(transcript []domain.ChatMessage, message domain.ChatMessage) string {
	if len(transcript) > maxTranscriptMessages {
		transcript = transcript[len(transcript)-maxTranscriptMessages:]
	}

	var b strings.Builder
	b.WriteString("You are a friendly study assistant. Answer the student's last message clearly and concisely.\n")
	b.WriteString("\nConversation:\n")
	for _, m := range transcript {
		fmt.Fprintf(&b, "%s: %s\n", speaker(m.Sender), m.Content)
	}
	fmt.Fprintf(&b, "%s: %s\n%s:", speaker(message.Sender), message.Content, speaker(domain.SenderAI))
	return b.String()
}

func speaker(s domain.Sender) string {
	if s == domain.SenderAI {
		return "Assistant"
	}
	return "Student"
}

var toolInstructions = map[string]string{
	domain.ToolSummarize: `Summarize the material with its key points and main concepts.
Return strict JSON: {"summary": string}.`,
	domain.ToolQuestions: `Write 5 open study questions that test understanding of the material.
Return strict JSON: {"questions": [string]}.`,
	domain.ToolMCQs: `Write 5 multiple-choice questions about the material. Each has exactly 4 options
and the zero-based index of the correct option.
Return strict JSON: {"mcqs": [{"question": string, "options": [string, string, string, string], "correct_index": number}]}.`,
	domain.ToolFlashcards: `Write 8 flashcards: a term or question on the front, a short answer on the back.
Return strict JSON: {"flashcards": [{"front": string, "back": string}]}.`,
}

func buildToolPrompt(toolID, documents string) (string, error) {
	instruction, ok := toolInstructions[toolID]
	if !ok {
		return "", fmt.Errorf("no prompt for tool %q", toolID)
	}
	if documents == "" {
		documents = "(no documents uploaded; use general knowledge of a typical introductory course)"
	}
	return instruction + "\nNo markdown, no extra keys.\n\nMaterial:\n" + documents, nil
}
