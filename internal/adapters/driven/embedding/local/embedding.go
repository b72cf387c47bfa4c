// Package local provides an in-process embedding model.
//
// The model hashes word unigrams and bigrams into a fixed number of signed
// buckets, mean-pools the token vectors and L2-normalises the result. It
// needs no network or model download, so it is the default backend and the
// one used by tests.
package local

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel      = "hashed-ngram-384"
	DefaultDimensions = 384

	// bigramWeight scales bigram features relative to unigrams.
	bigramWeight = 0.5
)

// Config holds configuration for the local model.
type Config struct {
	Model      string
	Dimensions int
}

// EmbeddingService embeds text with feature hashing.
type EmbeddingService struct {
	model      string
	dimensions int
}

// NewEmbeddingService creates a local embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &EmbeddingService{model: cfg.Model, dimensions: cfg.Dimensions}
}

// Embed returns the normalised mean of the token vectors of text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: no tokens to embed", domain.ErrInvalidInput)
	}

	sum := make([]float64, s.dimensions)
	features := 0.0
	for i, tok := range tokens {
		s.accumulate(sum, tok, 1)
		features++
		if i > 0 {
			s.accumulate(sum, tokens[i-1]+" "+tok, bigramWeight)
			features += bigramWeight
		}
	}

	var norm float64
	for i := range sum {
		sum[i] /= features
		norm += sum[i] * sum[i]
	}
	norm = math.Sqrt(norm)

	out := make([]float32, s.dimensions)
	if norm == 0 {
		return out, nil
	}
	for i, v := range sum {
		out[i] = float32(v / norm)
	}
	return out, nil
}

// accumulate adds the signed one-hot vector of feature to sum.
func (s *EmbeddingService) accumulate(sum []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	v := h.Sum64()
	idx := int(v % uint64(s.dimensions))
	if v&(1<<63) != 0 {
		weight = -weight
	}
	sum[idx] += weight
}

// EmbedBatch embeds each text. Texts without tokens fail the batch.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := s.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the configured model name.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping always succeeds.
func (s *EmbeddingService) Ping(context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}

// Tokenize lowercases text and splits it into letter/digit runs.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
