package prompt

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed *.md
var promptFS embed.FS

// Template is one loaded prompt template.
type Template struct {
	Name    string
	Content string
}

// Loader holds the embedded prompt templates and renders them with simple
// {{variable}} substitution.
type Loader struct {
	templates map[string]*Template
}

// NewLoader loads all embedded markdown templates.
func NewLoader() (*Loader, error) {
	loader := &Loader{
		templates: make(map[string]*Template),
	}
	if err := loader.loadTemplates(); err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	return loader, nil
}

func (l *Loader) loadTemplates() error {
	entries, err := promptFS.ReadDir(".")
	if err != nil {
		return fmt.Errorf("failed to read prompts directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		content, err := promptFS.ReadFile(entry.Name())
		if err != nil {
			return fmt.Errorf("failed to read prompt file %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".md")
		l.templates[name] = &Template{
			Name:    name,
			Content: string(content),
		}
	}
	return nil
}

// GetPrompt returns a template by name.
func (l *Loader) GetPrompt(name string) (*Template, error) {
	template, exists := l.templates[name]
	if !exists {
		return nil, fmt.Errorf("prompt template '%s' not found", name)
	}
	return template, nil
}

// RenderPrompt renders a template, replacing each {{key}} with its value.
func (l *Loader) RenderPrompt(name string, variables map[string]string) (string, error) {
	template, err := l.GetPrompt(name)
	if err != nil {
		return "", err
	}

	content := template.Content
	for key, value := range variables {
		placeholder := fmt.Sprintf("{{%s}}", key)
		content = strings.ReplaceAll(content, placeholder, value)
	}
	return content, nil
}

// ListPrompts returns the available template names.
func (l *Loader) ListPrompts() []string {
	names := make([]string, 0, len(l.templates))
	for name := range l.templates {
		names = append(names, name)
	}
	return names
}
