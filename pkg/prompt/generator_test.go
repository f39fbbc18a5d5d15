package prompt

import (
	"testing"

	"mfcs/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSchemas() []types.FunctionSchema {
	return []types.FunctionSchema{
		{
			Name:        "get_weather",
			Description: "Look up the current weather for a city.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"city": map[string]any{"type": "string"},
				},
			},
			Required: []string{"city"},
		},
		{
			Name:        "search_docs",
			Description: "Full text search over the documentation.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
					"limit": map[string]any{"type": "integer"},
				},
			},
			Required: []string{"query"},
		},
	}
}

func TestFunctionCallingPromptRendersSchemas(t *testing.T) {
	generator, err := NewGenerator()
	require.NoError(t, err)

	out, err := generator.FunctionCallingPrompt(sampleSchemas())
	require.NoError(t, err)

	assert.Contains(t, out, "<mfcs_call>")
	assert.Contains(t, out, "</mfcs_call>")
	assert.Contains(t, out, "<call_id>")
	assert.Contains(t, out, `"get_weather"`)
	assert.Contains(t, out, `"search_docs"`)
	assert.NotContains(t, out, "{{schemas}}")
}

func TestMemoryPromptRendersSchemas(t *testing.T) {
	generator, err := NewGenerator()
	require.NoError(t, err)

	out, err := generator.MemoryPrompt([]types.FunctionSchema{
		{Name: "store_preference", Description: "Persist a user preference."},
	})
	require.NoError(t, err)

	assert.Contains(t, out, "<mfcs_memory>")
	assert.Contains(t, out, "<memory_id>")
	assert.Contains(t, out, `"store_preference"`)
	assert.NotContains(t, out, "{{schemas}}")
}

func TestGeneratorRejectsBadSchemas(t *testing.T) {
	generator, err := NewGenerator()
	require.NoError(t, err)

	_, err = generator.FunctionCallingPrompt(nil)
	assert.Error(t, err)

	_, err = generator.FunctionCallingPrompt([]types.FunctionSchema{{Description: "nameless"}})
	assert.Error(t, err)
}

func TestLoaderKnowsAllTemplates(t *testing.T) {
	loader, err := NewLoader()
	require.NoError(t, err)

	names := loader.ListPrompts()
	assert.Contains(t, names, "function_calling")
	assert.Contains(t, names, "memory")

	_, err = loader.GetPrompt("nope")
	assert.Error(t, err)
}

func TestRenderPromptSubstitutesVariables(t *testing.T) {
	loader, err := NewLoader()
	require.NoError(t, err)

	out, err := loader.RenderPrompt("function_calling", map[string]string{
		"schemas": "SCHEMA_BLOCK",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "SCHEMA_BLOCK")
}
