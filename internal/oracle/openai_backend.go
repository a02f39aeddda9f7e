package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sightclick/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultOpenAIEndpoint is Groq's OpenAI-compatible chat completions URL.
const DefaultOpenAIEndpoint = "https://api.groq.com/openai/v1/chat/completions"

// OpenAIBackend talks to any OpenAI-compatible chat completions endpoint that
// accepts image_url content parts.
type OpenAIBackend struct {
	cfg        config.OracleConfig
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOpenAIBackend creates the backend. httpClient may be nil.
func NewOpenAIBackend(cfg config.OracleConfig, httpClient *http.Client, logger *zap.Logger) *OpenAIBackend {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultOpenAIEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &OpenAIBackend{
		cfg:        cfg,
		endpoint:   endpoint,
		httpClient: httpClient,
		logger:     logger.Named("openai"),
	}
}

func (b *OpenAIBackend) Name() string { return "openai:" + b.cfg.Model }

func (b *OpenAIBackend) Init(_ context.Context) error {
	if b.cfg.APIKey == "" {
		return fmt.Errorf("API key is required for %s", b.endpoint)
	}
	if b.cfg.Model == "" {
		return fmt.Errorf("model is required")
	}
	return nil
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatMessage struct {
	Role    string            `json:"role"`
	Content []chatContentPart `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (b *OpenAIBackend) Generate(ctx context.Context, req Request) (string, error) {
	dataURL := "data:" + req.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(req.Image)
	body, err := json.Marshal(chatRequest{
		Model: b.cfg.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatContentPart{
				{Type: "text", Text: req.Prompt},
				{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL}},
			},
		}},
		MaxTokens:   b.cfg.MaxTokens,
		Temperature: b.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completion returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("failed to decode response payload: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	b.logger.Debug("Chat completion done.",
		zap.Int("prompt_tokens", out.Usage.PromptTokens),
		zap.Int("completion_tokens", out.Usage.CompletionTokens),
		zap.String("finish_reason", out.Choices[0].FinishReason))
	return out.Choices[0].Message.Content, nil
}
