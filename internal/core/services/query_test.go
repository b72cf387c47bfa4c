package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sentinel/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
)

// plainStore hides any VectorSearcher implementation of the wrapped store.
type plainStore struct {
	driven.ChunkStore
}

// pingingEmbedder adds a health check to mockEmbedder.
type pingingEmbedder struct {
	mockEmbedder
	err error
}

func (p *pingingEmbedder) Ping(context.Context) error { return p.err }

func seedStore(t *testing.T) *memory.ChunkStore {
	t.Helper()
	store := memory.NewChunkStore()
	base := domain.ChunkMetadata{
		SourceID:         "s1",
		SourceURL:        "https://openai.com/gpt-4-system-card.pdf",
		DocumentType:     domain.DocTypeSystemCard,
		Company:          "OpenAI",
		Model:            "GPT-4",
		Format:           domain.FormatPDF,
		PolicyCategories: []string{"safety"},
		ParsingStatus:    domain.ParsingOK,
	}
	texts := []string{"red teaming results", "privacy protections", "Red team exercise log"}
	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}, {0.9, 0.1, 0}}
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.NewChunk(text, base, i)
		chunks[i].Embedding = vectors[i]
		chunks[i].Metadata.EmbeddingGenerated = true
	}
	chunks[1].Metadata.PolicyCategories = []string{"privacy"}
	domain.FinalizeChunks(chunks)
	_, err := store.StoreChunks(context.Background(), "OpenAI", "GPT-4", chunks)
	require.NoError(t, err)
	return store
}

// vectorEmbedder returns a fixed query vector.
type vectorEmbedder struct {
	mockEmbedder
	vec []float32
}

func (v *vectorEmbedder) Embed(context.Context, string) ([]float32, error) { return v.vec, nil }

// TestQuery_Validation tests argument checks.
func TestQuery_Validation(t *testing.T) {
	svc := NewQueryService(memory.NewChunkStore(), nil, nil)
	ctx := context.Background()

	_, err := svc.GetChunks(ctx, "", "GPT-4", domain.ChunkFilter{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.GetChunksByCategories(ctx, "OpenAI", "GPT-4", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.SearchChunksByText(ctx, "OpenAI", "GPT-4", "   ", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.DeleteModelData(ctx, "OpenAI", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.SemanticSearch(ctx, "OpenAI", "GPT-4", "jailbreak", 5)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

// TestQuery_CategoriesAndText tests the filtered read paths.
func TestQuery_CategoriesAndText(t *testing.T) {
	svc := NewQueryService(seedStore(t), nil, nil)
	ctx := context.Background()

	recs, err := svc.GetChunksByCategories(ctx, "openai", "gpt-4", []string{"PRIVACY"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "privacy protections", recs[0].Text)

	recs, err = svc.SearchChunksByText(ctx, "OpenAI", "GPT-4", "red team", 0)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = svc.SearchChunksByText(ctx, "OpenAI", "GPT-4", "red team", 1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

// TestQuery_SemanticSearch tests both the native and in-process paths.
func TestQuery_SemanticSearch(t *testing.T) {
	embedder := &vectorEmbedder{vec: []float32{1, 0, 0}}
	ctx := context.Background()

	tests := []struct {
		name  string
		store driven.ChunkStore
	}{
		{"vector searcher", seedStore(t)},
		{"in-process fallback", plainStore{seedStore(t)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewQueryService(tt.store, nil, embedder)
			hits, err := svc.SemanticSearch(ctx, "OpenAI", "GPT-4", "red teaming", 2)
			require.NoError(t, err)
			require.Len(t, hits, 2)
			assert.Equal(t, "red teaming results", hits[0].Record.Text)
			assert.Equal(t, "Red team exercise log", hits[1].Record.Text)
			assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
		})
	}
}

// TestQuery_SemanticSearch_SkipsMismatchedDimensions tests that
// vectors from another embedding model are ignored.
func TestQuery_SemanticSearch_SkipsMismatchedDimensions(t *testing.T) {
	svc := NewQueryService(plainStore{seedStore(t)}, nil, &vectorEmbedder{vec: []float32{1, 0}})
	hits, err := svc.SemanticSearch(context.Background(), "OpenAI", "GPT-4", "anything", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

// TestQuery_Failures tests the failure log pass-through.
func TestQuery_Failures(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, must(NewQueryService(memory.NewChunkStore(), nil, nil).Failures(ctx, domain.FailureQuery{})))

	log := memory.NewFailureLog()
	require.NoError(t, log.AppendFailure(ctx, domain.FailureRecord{ID: "f1", URL: "https://x", Company: "OpenAI", Model: "GPT-4"}))
	recs, err := NewQueryService(memory.NewChunkStore(), log, nil).Failures(ctx, domain.FailureQuery{Company: "openai"})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

// TestQuery_Health tests dependency checks and per-model counts.
func TestQuery_Health(t *testing.T) {
	ctx := context.Background()
	models := []domain.ModelKey{
		{Company: "OpenAI", Model: "GPT-4"},
		{Company: "Anthropic", Model: "Claude 3"},
	}

	t.Run("healthy", func(t *testing.T) {
		svc := NewQueryService(seedStore(t), nil, &pingingEmbedder{})
		report, err := svc.Health(ctx, models)
		require.NoError(t, err)
		assert.True(t, report.Healthy())
		assert.Equal(t, 3, report.TotalChunks)
		require.Len(t, report.Models, 2)
		assert.Equal(t, 3, report.Models[0].Chunks)
		assert.Zero(t, report.Models[1].Chunks)
	})

	t.Run("embedder down", func(t *testing.T) {
		svc := NewQueryService(seedStore(t), nil, &pingingEmbedder{err: errors.New("connection refused")})
		report, err := svc.Health(ctx, models)
		require.NoError(t, err)
		assert.False(t, report.Healthy())
		assert.NoError(t, report.StoreErr)
		assert.EqualError(t, report.EmbeddingErr, "connection refused")
	})

	t.Run("store closed", func(t *testing.T) {
		store := seedStore(t)
		require.NoError(t, store.Close())
		report, err := NewQueryService(store, nil, nil).Health(ctx, models)
		require.NoError(t, err)
		assert.ErrorIs(t, report.StoreErr, domain.ErrStoreUnavailable)
		assert.ErrorIs(t, report.EmbeddingErr, domain.ErrEmbeddingUnavailable)
		assert.Empty(t, report.Models)
	})
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
