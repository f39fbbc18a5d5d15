// Package prompt renders the system prompt sections that teach a model the
// call envelope format, from declarative function schemas. Templates are
// embedded markdown with {{variable}} substitution.
package prompt

import (
	"encoding/json"
	"fmt"

	"mfcs/pkg/types"
)

// Generator renders function-calling and memory prompt sections.
type Generator struct {
	loader *Loader
}

// NewGenerator creates a generator with all templates loaded.
func NewGenerator() (*Generator, error) {
	loader, err := NewLoader()
	if err != nil {
		return nil, err
	}
	return &Generator{loader: loader}, nil
}

// FunctionCallingPrompt renders the tool-call prompt section for the given
// function schemas.
func (g *Generator) FunctionCallingPrompt(schemas []types.FunctionSchema) (string, error) {
	rendered, err := renderSchemas(schemas)
	if err != nil {
		return "", err
	}
	return g.loader.RenderPrompt("function_calling", map[string]string{
		"schemas": rendered,
	})
}

// MemoryPrompt renders the memory-call prompt section for the given memory
// API schemas.
func (g *Generator) MemoryPrompt(schemas []types.FunctionSchema) (string, error) {
	rendered, err := renderSchemas(schemas)
	if err != nil {
		return "", err
	}
	return g.loader.RenderPrompt("memory", map[string]string{
		"schemas": rendered,
	})
}

func renderSchemas(schemas []types.FunctionSchema) (string, error) {
	if len(schemas) == 0 {
		return "", fmt.Errorf("no function schemas provided")
	}
	for _, schema := range schemas {
		if err := schema.Validate(); err != nil {
			return "", fmt.Errorf("invalid function schema: %w", err)
		}
	}
	data, err := json.MarshalIndent(schemas, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render function schemas: %w", err)
	}
	return string(data), nil
}
