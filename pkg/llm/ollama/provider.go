package ollama

import (
	"context"
	"errors"
	"net/http"

	"narrative-engine-be/pkg/llm"
)

const backend = "ollama"

type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

var _ llm.LLMProvider = &OllamaProvider{}

func NewOllamaProvider(baseURL, modelName string) *OllamaProvider {
	return &OllamaProvider{
		BaseURL:   baseURL,
		ModelName: modelName,
		Client:    &http.Client{Timeout: llm.DefaultTimeout},
	}
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []llm.Message  `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  *requestParams `json:"options,omitempty"`
}

type requestParams struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Message llm.Message `json:"message"`
	Error   string      `json:"error,omitempty"`
}

func (o *OllamaProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := llm.Resolve(llm.Options{Model: o.ModelName, Temperature: 0.7}, opts...)

	payload := chatRequest{
		Model:    options.Model,
		Messages: history,
		Options: &requestParams{
			Temperature: options.Temperature,
			NumPredict:  options.MaxTokens,
		},
	}
	if options.JSONMode {
		payload.Format = "json"
	}

	var parsed chatResponse
	if err := llm.PostJSON(ctx, o.Client, backend, o.BaseURL+"/api/chat", nil, payload, &parsed); err != nil {
		return "", err
	}
	if parsed.Error != "" {
		return "", errors.New("ollama: " + parsed.Error)
	}
	return parsed.Message.Content, nil
}

func (o *OllamaProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return o.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}
