package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/studydesk/internal/core/domain"
	"github.com/kirillkom/studydesk/internal/core/ports"
)

// ToolExecutor prompts the model with the extracted text of the completed uploads.
type ToolExecutor struct {
	client    *Client
	extractor ports.TextExtractor
	chunker   ports.Chunker
	budget    int
}

// NewToolExecutor limits the material passed to the model to budget runes.
func NewToolExecutor(client *Client, extractor ports.TextExtractor, chunker ports.Chunker, budget int) *ToolExecutor {
	if budget <= 0 {
		budget = 12000
	}
	return &ToolExecutor{client: client, extractor: extractor, chunker: chunker, budget: budget}
}

func (e *ToolExecutor) Execute(ctx context.Context, toolID string, documents []domain.UploadedFile) (domain.ToolResult, error) {
	material := e.material(ctx, documents)
	prompt, err := buildToolPrompt(toolID, material)
	if err != nil {
		return nil, err
	}
	raw, err := e.client.generateJSON(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", toolID, err)
	}
	return parseToolResult(toolID, extractJSONObject(raw))
}

// material concatenates document text until the budget is spent. Documents that
// cannot be read are skipped.
func (e *ToolExecutor) material(ctx context.Context, documents []domain.UploadedFile) string {
	if e.extractor == nil {
		return ""
	}
	var b strings.Builder
	remaining := e.budget
	for _, doc := range documents {
		if remaining <= 0 {
			break
		}
		text, err := e.extractor.Extract(ctx, doc)
		if err != nil {
			slog.Warn("tool_document_skipped", "file_id", doc.ID, "name", doc.Name, "error", err)
			continue
		}
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "## %s\n", doc.Name)
		for _, chunk := range e.take(text, remaining) {
			b.WriteString(chunk)
			b.WriteString("\n")
			remaining -= len([]rune(chunk))
		}
	}
	return strings.TrimSpace(b.String())
}

func (e *ToolExecutor) take(text string, budget int) []string {
	chunks := e.chunker.Split(text)
	used := 0
	for i, c := range chunks {
		used += len([]rune(c))
		if used > budget {
			if i == 0 {
				return []string{string([]rune(c)[:budget])}
			}
			return chunks[:i]
		}
	}
	return chunks
}

func parseToolResult(toolID, raw string) (domain.ToolResult, error) {
	var result domain.ToolResult
	switch toolID {
	case domain.ToolSummarize:
		var payload struct {
			Summary string `json:"summary"`
		}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, fmt.Errorf("parse summary json: %w", err)
		}
		result = domain.SummaryResult(strings.TrimSpace(payload.Summary))
	case domain.ToolQuestions:
		var payload struct {
			Questions []string `json:"questions"`
		}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, fmt.Errorf("parse questions json: %w", err)
		}
		result = domain.QuestionsResult(payload.Questions)
	case domain.ToolMCQs:
		var payload struct {
			MCQs []domain.MCQ `json:"mcqs"`
		}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, fmt.Errorf("parse mcqs json: %w", err)
		}
		result = domain.MCQResult(payload.MCQs)
	case domain.ToolFlashcards:
		var payload struct {
			Flashcards []domain.Flashcard `json:"flashcards"`
		}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, fmt.Errorf("parse flashcards json: %w", err)
		}
		result = domain.FlashcardsResult(payload.Flashcards)
	default:
		return nil, fmt.Errorf("unknown tool %q", toolID)
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("model output for %s: %w", toolID, err)
	}
	return result, nil
}
