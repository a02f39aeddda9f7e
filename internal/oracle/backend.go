package oracle

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sightclick/internal/config"
)

// NewBackend picks the backend for the configured provider.
func NewBackend(cfg config.OracleConfig, httpClient *http.Client, logger *zap.Logger) (Backend, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiBackend(cfg, httpClient, logger), nil
	case config.ProviderOpenAI:
		return NewOpenAIBackend(cfg, httpClient, logger), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}
}
