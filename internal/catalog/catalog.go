// Package catalog loads the list of AI tools offered on the dashboard.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/studydesk/internal/core/domain"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type file struct {
	Tools []entry `yaml:"tools"`
}

type entry struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Badge       string `yaml:"badge"`
}

var knownTools = map[string]bool{
	domain.ToolSummarize:  true,
	domain.ToolQuestions:  true,
	domain.ToolMCQs:       true,
	domain.ToolFlashcards: true,
}

// Default returns the built-in catalog.
func Default() ([]domain.AITool, error) {
	return Parse(defaultCatalog)
}

// Load reads the catalog at path, or the built-in one when path is empty.
func Load(path string) ([]domain.AITool, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	tools, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return tools, nil
}

// Parse decodes a YAML catalog. Tool ids must be unique and have a result shape.
func Parse(raw []byte) ([]domain.AITool, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(f.Tools) == 0 {
		return nil, fmt.Errorf("catalog has no tools")
	}

	seen := make(map[string]struct{}, len(f.Tools))
	tools := make([]domain.AITool, 0, len(f.Tools))
	for i, e := range f.Tools {
		id := strings.TrimSpace(e.ID)
		if !knownTools[id] {
			return nil, fmt.Errorf("tool %d: unknown id %q", i, e.ID)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("tool %d: duplicate id %q", i, id)
		}
		seen[id] = struct{}{}
		if strings.TrimSpace(e.Title) == "" {
			return nil, fmt.Errorf("tool %s: title is required", id)
		}
		tools = append(tools, domain.AITool{
			ID:          id,
			Title:       strings.TrimSpace(e.Title),
			Description: strings.TrimSpace(e.Description),
			Badge:       strings.TrimSpace(e.Badge),
			Status:      domain.ToolAvailable,
		})
	}
	return tools, nil
}
