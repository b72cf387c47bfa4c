package local

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sentinel/internal/core/domain"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// TestNewEmbeddingService_Defaults tests default configuration.
func TestNewEmbeddingService_Defaults(t *testing.T) {
	s := NewEmbeddingService(Config{})
	assert.Equal(t, "hashed-ngram-384", s.ModelName())
	assert.Equal(t, DefaultDimensions, s.Dimensions())
	assert.Equal(t, domain.DefaultEmbeddingModels()[domain.EmbeddingLocal], s.ModelName())
	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, s.Close())
}

// TestEmbed_NormalisedAndDeterministic tests vector shape.
func TestEmbed_NormalisedAndDeterministic(t *testing.T) {
	s := NewEmbeddingService(Config{Dimensions: 64})

	a, err := s.Embed(context.Background(), "The model refuses harmful requests.")
	require.NoError(t, err)
	b, err := s.Embed(context.Background(), "the MODEL refuses harmful requests")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.InDelta(t, 1.0, norm(a), 1e-5)
	assert.Equal(t, a, b)
}

// TestEmbed_RelatedTextIsCloser tests that overlap raises similarity.
func TestEmbed_RelatedTextIsCloser(t *testing.T) {
	s := NewEmbeddingService(Config{})
	ctx := context.Background()

	q, _ := s.Embed(ctx, "red teaming evaluation of biological risk")
	near, _ := s.Embed(ctx, "the red teaming evaluation covered biological risk scenarios")
	far, _ := s.Embed(ctx, "pricing tiers for enterprise customers")

	assert.Greater(t, dot(q, near), dot(q, far))
}

// TestEmbed_Empty tests that token-free text is rejected.
func TestEmbed_Empty(t *testing.T) {
	s := NewEmbeddingService(Config{})
	_, err := s.Embed(context.Background(), " ... ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.EmbedBatch(context.Background(), []string{"ok", "!!"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// TestEmbed_Cancelled tests context handling.
func TestEmbed_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEmbeddingService(Config{}).Embed(ctx, "text")
	assert.ErrorIs(t, err, context.Canceled)
}

// TestTokenize tests token splitting.
func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"gpt", "4o", "system", "card"}, Tokenize("GPT-4o System-Card!"))
	assert.Empty(t, Tokenize("  -- "))
}
