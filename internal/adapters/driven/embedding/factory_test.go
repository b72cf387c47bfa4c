package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sentinel/internal/core/domain"
)

// TestCreateEmbeddingService tests backend selection.
func TestCreateEmbeddingService(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		settings domain.EmbeddingSettings
		model    string
		dims     int
		wantErr  error
	}{
		{
			name:     "local default",
			settings: domain.EmbeddingSettings{Provider: domain.EmbeddingLocal},
			model:    "hashed-ngram-384",
			dims:     384,
		},
		{
			name:     "ollama",
			settings: domain.EmbeddingSettings{Provider: domain.EmbeddingOllama, Model: "nomic-embed-text"},
			model:    "nomic-embed-text",
			dims:     768,
		},
		{
			name:     "openai",
			settings: domain.EmbeddingSettings{Provider: domain.EmbeddingOpenAI, APIKey: "sk"},
			model:    "text-embedding-3-small",
			dims:     1536,
		},
		{
			name:     "openai without key",
			settings: domain.EmbeddingSettings{Provider: domain.EmbeddingOpenAI},
			wantErr:  domain.ErrEmbeddingUnavailable,
		},
		{
			name:     "unknown provider",
			settings: domain.EmbeddingSettings{Provider: "cohere"},
			wantErr:  domain.ErrUnsupportedType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(ctx, tt.settings)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer svc.Close()
			assert.Equal(t, tt.model, svc.ModelName())
			assert.Equal(t, tt.dims, svc.Dimensions())
		})
	}
}

// TestCreateAndValidateEmbeddingService tests the ping step.
func TestCreateAndValidateEmbeddingService(t *testing.T) {
	svc, err := CreateAndValidateEmbeddingService(context.Background(), domain.EmbeddingSettings{Provider: domain.EmbeddingLocal})
	require.NoError(t, err)
	assert.NotNil(t, svc)

	_, err = CreateAndValidateEmbeddingService(context.Background(), domain.EmbeddingSettings{
		Provider: domain.EmbeddingOllama,
		BaseURL:  "http://127.0.0.1:1",
	})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}
