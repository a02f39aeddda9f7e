package oracle

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/sightclick/internal/config"
)

// GeminiBackend calls the Gemini API through the official genai SDK.
type GeminiBackend struct {
	cfg        config.OracleConfig
	httpClient *http.Client
	client     *genai.Client
	logger     *zap.Logger
}

// NewGeminiBackend creates the backend. The SDK client is built in Init.
// cfg.Endpoint, when set, overrides the API base URL.
func NewGeminiBackend(cfg config.OracleConfig, httpClient *http.Client, logger *zap.Logger) *GeminiBackend {
	return &GeminiBackend{cfg: cfg, httpClient: httpClient, logger: logger.Named("gemini")}
}

func (b *GeminiBackend) Name() string { return "gemini:" + b.cfg.Model }

func (b *GeminiBackend) Init(ctx context.Context) error {
	if b.cfg.APIKey == "" {
		return fmt.Errorf("Gemini API key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:     b.cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: b.httpClient,
	}
	if b.cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: b.cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return fmt.Errorf("creating genai client: %w", err)
	}
	b.client = client
	return nil
}

func (b *GeminiBackend) Generate(ctx context.Context, req Request) (string, error) {
	if b.client == nil {
		return "", ErrNotInitialized
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(req.Prompt),
			genai.NewPartFromBytes(req.Image, req.MIMEType),
		}, genai.RoleUser),
	}
	temp := b.cfg.Temperature
	gc := &genai.GenerateContentConfig{Temperature: &temp}
	if b.cfg.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(b.cfg.MaxTokens)
	}

	resp, err := b.client.Models.GenerateContent(ctx, b.cfg.Model, contents, gc)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini API returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if resp.UsageMetadata != nil {
		b.logger.Debug("Gemini generation complete.",
			zap.Int32("prompt_tokens", resp.UsageMetadata.PromptTokenCount),
			zap.Int32("completion_tokens", resp.UsageMetadata.CandidatesTokenCount),
			zap.String("finish_reason", string(resp.Candidates[0].FinishReason)))
	}
	return sb.String(), nil
}
