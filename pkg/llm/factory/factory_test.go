package factory

import (
	"testing"

	"narrative-engine-be/pkg/llm/ollama"
	"narrative-engine-be/pkg/llm/openaicompat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLLMProvider(t *testing.T) {
	p, err := NewLLMProvider("ollama", "llama3", "", "")
	require.NoError(t, err)
	o, ok := p.(*ollama.OllamaProvider)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:11434", o.BaseURL)

	p, err = NewLLMProvider("huggingface", "qwen", "", "key")
	require.NoError(t, err)
	assert.IsType(t, &openaicompat.Provider{}, p)

	_, err = NewLLMProvider("gemini", "x", "", "")
	assert.Error(t, err)
}
