package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"narrative-engine-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat_BearerAndResponseFormat(t *testing.T) {
	var got chatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "The door creaks."}}]}`))
	}))
	defer srv.Close()

	p := NewProvider("secret", srv.URL, "qwen")
	out, err := p.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "narrate"},
		{Role: llm.RoleUser, Content: "open the door"},
	}, llm.WithJSONMode(), llm.WithMaxTokens(64))

	require.NoError(t, err)
	assert.Equal(t, "The door creaks.", out)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "qwen", got.Model)
	assert.Equal(t, 64, got.MaxTokens)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	assert.Len(t, got.Messages, 2)
}

func TestChat_NoKeyNoAuthHeader(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	}))
	defer srv.Close()

	_, err := NewProvider("", srv.URL, "qwen").Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Empty(t, auth)
}

func TestChat_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	_, err := NewProvider("", srv.URL, "qwen").Generate(context.Background(), "hi")
	assert.EqualError(t, err, "chat completions: empty choices")
}

func TestChat_ErrorObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	}))
	defer srv.Close()

	_, err := NewProvider("", srv.URL, "qwen").Generate(context.Background(), "hi")
	assert.EqualError(t, err, "chat completions: rate limited")
}

func TestNewProvider_DefaultBaseURL(t *testing.T) {
	assert.Equal(t, defaultBaseURL, NewProvider("", "", "m").baseURL)
}
