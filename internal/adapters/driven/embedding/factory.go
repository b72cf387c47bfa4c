// Package embedding creates embedding backends from settings.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/sentinel/internal/adapters/driven/embedding/gemini"
	"github.com/custodia-labs/sentinel/internal/adapters/driven/embedding/local"
	"github.com/custodia-labs/sentinel/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/sentinel/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// CreateEmbeddingService creates the backend selected by settings.
func CreateEmbeddingService(ctx context.Context, settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if !settings.Provider.IsValid() {
		return nil, fmt.Errorf("%w: embedding provider %q", domain.ErrUnsupportedType, settings.Provider)
	}
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: %s requires an API key", domain.ErrEmbeddingUnavailable, settings.Provider)
	}

	model := settings.Model
	if model == "" {
		model = domain.DefaultEmbeddingModels()[settings.Provider]
	}
	dimensions := settings.Dimensions
	if dimensions == 0 {
		dimensions = domain.EmbeddingDimensions()[model]
	}

	switch settings.Provider {
	case domain.EmbeddingLocal:
		return local.NewEmbeddingService(local.Config{Model: model, Dimensions: dimensions}), nil

	case domain.EmbeddingOllama:
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    settings.BaseURL,
			Model:      model,
			Dimensions: dimensions,
		}), nil

	case domain.EmbeddingOpenAI:
		return openai.NewEmbeddingService(openai.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      model,
			Dimensions: settings.Dimensions,
		})

	case domain.EmbeddingGemini:
		return gemini.NewEmbeddingService(ctx, gemini.Config{
			APIKey:     settings.APIKey,
			Model:      model,
			Dimensions: dimensions,
		})

	default:
		return nil, fmt.Errorf("%w: embedding provider %q", domain.ErrUnsupportedType, settings.Provider)
	}
}

// CreateAndValidateEmbeddingService creates a backend and checks it is reachable.
func CreateAndValidateEmbeddingService(ctx context.Context, settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(ctx, settings)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: %s unreachable (%w). Run 'sentinel config set embedding.provider local' to use the built-in model",
			domain.ErrEmbeddingUnavailable, settings.Provider, err)
	}
	return svc, nil
}
