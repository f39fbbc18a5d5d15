package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 0, CountTokens(""))
	assert.Greater(t, CountTokens("hello world"), 0)

	long := strings.Repeat("the quick brown fox ", 50)
	assert.Greater(t, CountTokens(long), CountTokens("the quick brown fox"))
}

func TestEstimateFast(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "whitespace only", text: "   ", want: 0},
		{name: "single short word", text: "hi", want: 1},
		{name: "word count dominates", text: "a b c d e f", want: 6},
		{name: "rune count dominates", text: strings.Repeat("x", 40), want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateFast(tt.text))
		})
	}
}

func TestTruncateToTokens(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet ", 100)

	assert.Equal(t, text, TruncateToTokens(text, 0))
	assert.Equal(t, "short", TruncateToTokens("short", 100))

	truncated := TruncateToTokens(text, 10)
	assert.Less(t, len(truncated), len(text))
	assert.True(t, strings.HasSuffix(truncated, "..."))
}
