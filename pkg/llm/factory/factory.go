package factory

import (
	"fmt"

	"narrative-engine-be/pkg/llm"
	"narrative-engine-be/pkg/llm/ollama"
	"narrative-engine-be/pkg/llm/openaicompat"
)

const (
	ProviderOllama      = "ollama"
	ProviderOpenAI      = "openai"
	ProviderHuggingFace = "huggingface"

	defaultOllamaURL = "http://localhost:11434"
)

// NewLLMProvider picks the backend that serves every narrative collaborator
func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case ProviderOllama:
		if baseURL == "" {
			baseURL = defaultOllamaURL
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case ProviderOpenAI, ProviderHuggingFace:
		return openaicompat.NewProvider(apiKey, baseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
