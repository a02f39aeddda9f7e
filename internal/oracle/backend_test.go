package oracle

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sightclick/internal/config"
)

func TestOpenAIBackend_Generate(t *testing.T) {
	pngBytes := []byte{0x89, 'P', 'N', 'G'}

	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"x: 0.10000\ny: 0.20000"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":4}}`)
	}))
	defer srv.Close()

	cfg := config.OracleConfig{
		Provider:    config.ProviderOpenAI,
		Model:       "meta-llama/llama-4-scout-17b-16e-instruct",
		APIKey:      "secret",
		Endpoint:    srv.URL,
		Temperature: 0.2,
		MaxTokens:   64,
	}
	b := NewOpenAIBackend(cfg, srv.Client(), zap.NewNop())
	require.NoError(t, b.Init(context.Background()))

	reply, err := b.Generate(context.Background(), Request{Prompt: "find it", Image: pngBytes, MIMEType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "x: 0.10000\ny: 0.20000", reply)

	assert.Equal(t, cfg.Model, got.Model)
	assert.Equal(t, 64, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	parts := got.Messages[0].Content
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].Type)
	assert.Equal(t, "find it", parts[0].Text)
	assert.Equal(t, "image_url", parts[1].Type)
	require.NotNil(t, parts[1].ImageURL)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngBytes), parts[1].ImageURL.URL)
}

func TestOpenAIBackend_Errors(t *testing.T) {
	t.Run("init requires key", func(t *testing.T) {
		b := NewOpenAIBackend(config.OracleConfig{Model: "m"}, nil, zap.NewNop())
		assert.Error(t, b.Init(context.Background()))
	})

	t.Run("default endpoint", func(t *testing.T) {
		b := NewOpenAIBackend(config.OracleConfig{Model: "m", APIKey: "k"}, nil, zap.NewNop())
		assert.Equal(t, DefaultOpenAIEndpoint, b.endpoint)
	})

	t.Run("non-200 status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
		}))
		defer srv.Close()

		b := NewOpenAIBackend(config.OracleConfig{Model: "m", APIKey: "k", Endpoint: srv.URL}, srv.Client(), zap.NewNop())
		_, err := b.Generate(context.Background(), Request{Prompt: "p", MIMEType: "image/png"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
		assert.Contains(t, err.Error(), "invalid api key")
	})

	t.Run("no choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"choices":[]}`)
		}))
		defer srv.Close()

		b := NewOpenAIBackend(config.OracleConfig{Model: "m", APIKey: "k", Endpoint: srv.URL}, srv.Client(), zap.NewNop())
		_, err := b.Generate(context.Background(), Request{Prompt: "p", MIMEType: "image/png"})
		assert.ErrorContains(t, err, "no choices")
	})
}

func TestGeminiBackend_Generate(t *testing.T) {
	var path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"x: 0.5"},{"text":"\ny: 0.5"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":3}}`)
	}))
	defer srv.Close()

	cfg := config.OracleConfig{
		Provider: config.ProviderGemini,
		Model:    "gemini-2.5-flash",
		APIKey:   "k",
		Endpoint: srv.URL,
	}
	b := NewGeminiBackend(cfg, srv.Client(), zap.NewNop())

	_, err := b.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, b.Init(context.Background()))
	reply, err := b.Generate(context.Background(), Request{Prompt: "find it", Image: []byte("img"), MIMEType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "x: 0.5\ny: 0.5", reply)

	assert.True(t, strings.HasSuffix(path, "gemini-2.5-flash:generateContent"), path)
	assert.Contains(t, body, "find it")
	assert.Contains(t, body, base64.StdEncoding.EncodeToString([]byte("img")))
	assert.Contains(t, body, "image/png")
}

func TestGeminiBackend_InitRequiresKey(t *testing.T) {
	b := NewGeminiBackend(config.OracleConfig{Model: "m"}, nil, zap.NewNop())
	assert.Error(t, b.Init(context.Background()))
}
