package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// MarkdownRenderer renders markdown content in the terminal.
type MarkdownRenderer struct {
	renderer *glamour.TermRenderer
}

// NewMarkdownRenderer creates a renderer sized to the current terminal.
func NewMarkdownRenderer() (*MarkdownRenderer, error) {
	termWidth := 80
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		termWidth = width - 4
		if termWidth > 120 {
			termWidth = 120
		}
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(termWidth),
		glamour.WithEmoji(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	return &MarkdownRenderer{renderer: renderer}, nil
}

// Render renders markdown content to styled terminal output.
func (mr *MarkdownRenderer) Render(content string) (string, error) {
	if content == "" {
		return "", nil
	}
	rendered, err := mr.renderer.Render(content)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return rendered, nil
}

// RenderIfMarkdown renders content as markdown when it looks like markdown,
// otherwise returns it unchanged.
func (mr *MarkdownRenderer) RenderIfMarkdown(content string) string {
	if !shouldRenderAsMarkdown(content) {
		return content
	}
	rendered, err := mr.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// shouldRenderAsMarkdown is a conservative markdown sniff: short or plain
// content stays untouched.
func shouldRenderAsMarkdown(content string) bool {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < 10 {
		return false
	}
	if !strings.Contains(content, "\n") && len(strings.Fields(content)) < 3 {
		return false
	}

	indicators := []string{"# ", "## ", "### ", "```", "- ", "* ", "1. ", "!["}
	for _, indicator := range indicators {
		if strings.Contains(trimmed, indicator) {
			return true
		}
	}
	if strings.Contains(trimmed, "[") && strings.Contains(trimmed, "](") {
		return true
	}
	if strings.Count(trimmed, "**") >= 2 {
		return true
	}
	if strings.Count(trimmed, "`") >= 2 {
		return true
	}
	for _, line := range strings.Split(trimmed, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "> ") {
			return true
		}
	}
	return false
}
