// Package storetest holds behaviour tests shared by every chunk store.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) driven.ChunkStore

// MakeChunks builds n finalised chunks for one source.
func MakeChunks(company, model, sourceID string, n int, categories ...string) []domain.Chunk {
	base := domain.ChunkMetadata{
		SourceID:         sourceID,
		SourceURL:        "https://example.com/" + sourceID,
		DocumentType:     domain.DocTypeSystemCard,
		Company:          company,
		Model:            model,
		Format:           domain.FormatPDF,
		PolicyCategories: categories,
		Priority:         1,
		ParsingStatus:    domain.ParsingOK,
	}
	chunks := make([]domain.Chunk, n)
	for i := range chunks {
		chunks[i] = domain.NewChunk(fmt.Sprintf("Chunk %d of %s discusses jailbreak resistance.", i, sourceID), base, i)
		chunks[i].Embedding = []float32{float32(i + 1), 1, 0}
		chunks[i].Metadata.EmbeddingGenerated = true
	}
	domain.FinalizeChunks(chunks)
	return chunks
}

// RunChunkStore exercises the ChunkStore contract.
func RunChunkStore(t *testing.T, newStore Factory) {
	t.Run("round trip preserves identity", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		chunks := MakeChunks("OpenAI", "GPT-4", "openai_gpt4_card", 50, "safety")
		n, err := s.StoreChunks(ctx, "OpenAI", "GPT-4", chunks)
		require.NoError(t, err)
		assert.Equal(t, 50, n)

		got, err := s.GetChunks(ctx, "OpenAI", "GPT-4", domain.ChunkFilter{})
		require.NoError(t, err)
		require.Len(t, got, 50)
		for i, rec := range got {
			assert.Equal(t, chunks[i].ID, rec.ID)
			assert.Equal(t, chunks[i].Text, rec.Text)
			assert.Equal(t, "OpenAI", rec.Metadata.Company)
			assert.Equal(t, "GPT-4", rec.Metadata.Model)
			assert.Equal(t, 50, rec.Metadata.TotalChunks)
			assert.Equal(t, "openai", rec.Namespace)
			assert.Equal(t, "gpt_4_chunks", rec.Collection)
			assert.Equal(t, domain.SchemaVersion, rec.Version)
			assert.False(t, rec.StoredAt.IsZero())
			assert.InDeltaSlice(t, chunks[i].Embedding, rec.Embedding, 1e-6)
		}
	})

	t.Run("names are normalised", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.StoreChunks(ctx, "Anthropic", "Claude 3.5 Sonnet", MakeChunks("Anthropic", "Claude 3.5 Sonnet", "a", 2))
		require.NoError(t, err)

		got, err := s.GetChunks(ctx, "anthropic", "claude-3-5-sonnet", domain.ChunkFilter{})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("models are isolated", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.StoreChunks(ctx, "OpenAI", "GPT-4", MakeChunks("OpenAI", "GPT-4", "a", 3))
		require.NoError(t, err)
		_, err = s.StoreChunks(ctx, "OpenAI", "o1", MakeChunks("OpenAI", "o1", "b", 2))
		require.NoError(t, err)

		got, err := s.GetChunks(ctx, "OpenAI", "o1", domain.ChunkFilter{})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		none, err := s.GetChunks(ctx, "Meta", "Llama 3", domain.ChunkFilter{})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("reingestion appends", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		chunks := MakeChunks("Google", "Gemini", "g", 4)

		_, err := s.StoreChunks(ctx, "Google", "Gemini", chunks)
		require.NoError(t, err)
		_, err = s.StoreChunks(ctx, "Google", "Gemini", chunks)
		require.NoError(t, err)

		got, err := s.GetChunks(ctx, "Google", "Gemini", domain.ChunkFilter{})
		require.NoError(t, err)
		assert.Len(t, got, 8)
	})

	t.Run("filters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.StoreChunks(ctx, "OpenAI", "GPT-4", MakeChunks("OpenAI", "GPT-4", "safety_doc", 3, "Safety", "evaluation"))
		require.NoError(t, err)
		_, err = s.StoreChunks(ctx, "OpenAI", "GPT-4", MakeChunks("OpenAI", "GPT-4", "privacy_doc", 2, "privacy"))
		require.NoError(t, err)

		bySafety, err := s.GetChunks(ctx, "OpenAI", "GPT-4", domain.ChunkFilter{Categories: []string{"safety"}})
		require.NoError(t, err)
		assert.Len(t, bySafety, 3)

		byEither, err := s.GetChunks(ctx, "OpenAI", "GPT-4", domain.ChunkFilter{Categories: []string{"privacy", "evaluation"}})
		require.NoError(t, err)
		assert.Len(t, byEither, 5)

		byText, err := s.GetChunks(ctx, "OpenAI", "GPT-4", domain.ChunkFilter{Text: "PRIVACY_DOC"})
		require.NoError(t, err)
		assert.Len(t, byText, 2)

		byPattern, err := s.GetChunks(ctx, "OpenAI", "GPT-4", domain.ChunkFilter{Pattern: `^Chunk [02] of safety`})
		require.NoError(t, err)
		assert.Len(t, byPattern, 2)

		limited, err := s.GetChunks(ctx, "OpenAI", "GPT-4", domain.ChunkFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		_, err = s.GetChunks(ctx, "OpenAI", "GPT-4", domain.ChunkFilter{Pattern: "("})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("compliance summary", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.GetComplianceSummary(ctx, "OpenAI", "GPT-4")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		chunks := MakeChunks("OpenAI", "GPT-4", "card", 3, "safety", "bias")
		chunks[2].Embedding = nil
		_, err = s.StoreChunks(ctx, "OpenAI", "GPT-4", chunks)
		require.NoError(t, err)

		sum, err := s.GetComplianceSummary(ctx, "OpenAI", "GPT-4")
		require.NoError(t, err)
		assert.Equal(t, 3, sum.TotalChunks)
		assert.Equal(t, 3, sum.ByCategory["safety"])
		assert.Equal(t, 3, sum.ByDocumentType[domain.DocTypeSystemCard])
		assert.Equal(t, 3, sum.ByFormat["pdf"])
		assert.Equal(t, 1, sum.Sources)
		assert.Equal(t, 2, sum.WithEmbeddings)
		assert.WithinDuration(t, time.Now(), sum.LastUpdated, time.Minute)
	})

	t.Run("delete and stats", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.StoreChunks(ctx, "OpenAI", "GPT-4", MakeChunks("OpenAI", "GPT-4", "a", 3))
		require.NoError(t, err)
		_, err = s.StoreChunks(ctx, "OpenAI", "o1", MakeChunks("OpenAI", "o1", "b", 2))
		require.NoError(t, err)
		_, err = s.StoreChunks(ctx, "Anthropic", "Claude", MakeChunks("Anthropic", "Claude", "c", 1))
		require.NoError(t, err)

		stats, err := s.GetStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 6, stats.Total)
		require.Len(t, stats.Namespaces, 2)
		assert.Equal(t, "anthropic", stats.Namespaces[0].Namespace)
		assert.Equal(t, "openai", stats.Namespaces[1].Namespace)
		assert.Equal(t, 5, stats.Namespaces[1].Total)

		n, err := s.DeleteModelData(ctx, "OpenAI", "GPT-4")
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		got, err := s.GetChunks(ctx, "OpenAI", "GPT-4", domain.ChunkFilter{})
		require.NoError(t, err)
		assert.Empty(t, got)

		n, err = s.DeleteModelData(ctx, "OpenAI", "GPT-4")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("invalid key", func(t *testing.T) {
		s := newStore(t)
		_, err := s.StoreChunks(context.Background(), "", "GPT-4", MakeChunks("", "GPT-4", "a", 1))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("closed store fails loudly", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Close())

		_, err := s.GetChunks(context.Background(), "OpenAI", "GPT-4", domain.ChunkFilter{})
		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
		_, err = s.StoreChunks(context.Background(), "OpenAI", "GPT-4", MakeChunks("OpenAI", "GPT-4", "a", 1))
		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
		assert.ErrorIs(t, s.Ping(context.Background()), domain.ErrStoreUnavailable)
	})
}

// RunFailureLog exercises the FailureLog contract.
func RunFailureLog(t *testing.T, log driven.FailureLog) {
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	records := []domain.FailureRecord{
		{ID: "f1", URL: "https://a/1.pdf", Company: "OpenAI", Model: "GPT-4", DocumentType: domain.DocTypeSystemCard, Error: "timeout", ErrorCode: domain.CodeFetchTimeout, Retryable: true, Timestamp: base},
		{ID: "f2", URL: "https://a/2", Company: "Anthropic", Model: "Claude 3", DocumentType: domain.DocTypeModelCard, Error: "parse", ErrorCode: domain.CodeParse, Timestamp: base.Add(time.Minute)},
		{ID: "f3", URL: "https://a/1.pdf", Company: "OpenAI", Model: "GPT-4", DocumentType: domain.DocTypeSystemCard, Error: "503", ErrorCode: domain.CodeHTTP5xx, Retryable: true, Timestamp: base.Add(2 * time.Minute), RunID: "run-2"},
	}
	for _, r := range records {
		require.NoError(t, log.AppendFailure(ctx, r))
	}

	all, err := log.QueryFailures(ctx, domain.FailureQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"f3", "f2", "f1"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, "run-2", all[0].RunID)
	assert.True(t, all[0].Retryable)
	assert.True(t, base.Add(2*time.Minute).Equal(all[0].Timestamp))

	byURL, err := log.QueryFailures(ctx, domain.FailureQuery{URL: "https://a/1.pdf"})
	require.NoError(t, err)
	assert.Len(t, byURL, 2)

	byCompany, err := log.QueryFailures(ctx, domain.FailureQuery{Company: "anthropic"})
	require.NoError(t, err)
	require.Len(t, byCompany, 1)
	assert.Equal(t, "f2", byCompany[0].ID)

	byModel, err := log.QueryFailures(ctx, domain.FailureQuery{Model: "gpt-4"})
	require.NoError(t, err)
	assert.Len(t, byModel, 2)

	limited, err := log.QueryFailures(ctx, domain.FailureQuery{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "f3", limited[0].ID)
}
