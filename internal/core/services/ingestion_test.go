package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sentinel/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driving"
	"github.com/custodia-labs/sentinel/internal/extractors"
	"github.com/custodia-labs/sentinel/internal/segmenter"
)

// --- Test doubles ---

// stubExtractor answers Extract through a function.
type stubExtractor struct {
	format domain.Format
	fn     func(ctx context.Context, location string, base domain.ChunkMetadata) (domain.ExtractResult, error)

	active    atomic.Int32
	maxActive atomic.Int32
	calls     atomic.Int32
}

func (e *stubExtractor) Format() domain.Format { return e.format }

func (e *stubExtractor) Extract(ctx context.Context, location string, base domain.ChunkMetadata) (domain.ExtractResult, error) {
	e.calls.Add(1)
	n := e.active.Add(1)
	defer e.active.Add(-1)
	for {
		m := e.maxActive.Load()
		if n <= m || e.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	return e.fn(ctx, location, base)
}

// segmentingExtractor returns n sentences segmented with the default segmenter.
func segmentingExtractor(format domain.Format, sentences int) *stubExtractor {
	seg := segmenter.New(segmenter.WithMaxChunkSize(200), segmenter.WithOverlapSize(40))
	return &stubExtractor{
		format: format,
		fn: func(_ context.Context, location string, base domain.ChunkMetadata) (domain.ExtractResult, error) {
			var b strings.Builder
			for i := range sentences {
				fmt.Fprintf(&b, "Sentence %d from %s covers model safety evaluations. ", i, location)
			}
			return domain.ChunksResult(seg.Segment(b.String(), base)), nil
		},
	}
}

// mockEmbedder fails for texts containing "FAIL".
type mockEmbedder struct {
	calls atomic.Int32
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if strings.Contains(text, "FAIL") {
		return nil, errors.New("embedding failed")
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	m.calls.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = m.Embed(ctx, t)
	}
	return out
}

func (m *mockEmbedder) Similarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, domain.ErrDimensionMismatch
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot, nil
}

func (m *mockEmbedder) ModelName() string { return "mock" }

// failingStore wraps a memory store and fails StoreChunks for one model.
type failingStore struct {
	*memory.ChunkStore
	failModel string
	pingErr   error
	deletes   atomic.Int32
}

func (s *failingStore) StoreChunks(ctx context.Context, company, model string, chunks []domain.Chunk) (int, error) {
	if model == s.failModel {
		return 0, fmt.Errorf("%w: disk full", domain.ErrStoreUnavailable)
	}
	return s.ChunkStore.StoreChunks(ctx, company, model, chunks)
}

func (s *failingStore) DeleteModelData(ctx context.Context, company, model string) (int, error) {
	s.deletes.Add(1)
	return s.ChunkStore.DeleteModelData(ctx, company, model)
}

func (s *failingStore) Ping(ctx context.Context) error {
	if s.pingErr != nil {
		return s.pingErr
	}
	return s.ChunkStore.Ping(ctx)
}

func testSettings() domain.IngestionSettings {
	return domain.IngestionSettings{
		BatchSize:        2,
		SourceTimeout:    5 * time.Second,
		MaxChunkSize:     200,
		OverlapSize:      40,
		EnableEmbeddings: true,
		EnableStorage:    true,
	}
}

func source(company, model, url string, format domain.Format) domain.SourceDescriptor {
	return domain.SourceDescriptor{
		ID:               domain.NormalizeName(company + "_" + model + "_" + url),
		Company:          company,
		Model:            model,
		DocumentType:     domain.DocTypeSystemCard,
		Format:           format,
		URL:              url,
		PolicyCategories: []string{"safety"},
		Priority:         1,
	}
}

// --- Tests ---

// TestIngest_BatchIsolation tests that one failing source does not affect the others.
func TestIngest_BatchIsolation(t *testing.T) {
	web := segmentingExtractor(domain.FormatWeb, 12)
	pdf := &stubExtractor{
		format: domain.FormatPDF,
		fn: func(_ context.Context, location string, _ domain.ChunkMetadata) (domain.ExtractResult, error) {
			return domain.ExtractResult{}, &domain.FetchError{Kind: domain.FetchStatus, URL: location, StatusCode: http.StatusServiceUnavailable}
		},
	}
	store := memory.NewChunkStore()
	failures := memory.NewFailureLog()
	svc := NewIngestionService(extractors.NewRegistry(web, pdf), &mockEmbedder{}, store, failures, testSettings())

	sources := []domain.SourceDescriptor{
		source("OpenAI", "GPT-4", "https://a/1", domain.FormatWeb),
		source("OpenAI", "GPT-4", "https://a/2", domain.FormatWeb),
		source("Anthropic", "Claude 3", "https://b/broken.pdf", domain.FormatPDF),
		source("Meta", "Llama 3", "https://c/1", domain.FormatWeb),
		source("Google", "Gemini", "https://d/1", domain.FormatWeb),
	}

	var mu sync.Mutex
	seen := make(map[int]domain.SourceState)
	result, err := svc.Ingest(context.Background(), sources, driving.IngestOptions{
		OnResult: func(i int, r domain.SourceResult) {
			mu.Lock()
			seen[i] = r.State
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 4, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Sources, 5)
	for i, r := range result.Sources {
		assert.Equal(t, sources[i].URL, r.Source.URL, "results are in input order")
		assert.True(t, r.State.IsTerminal())
		assert.Equal(t, r.State, seen[i])
	}

	failed := result.Sources[2]
	assert.Equal(t, domain.StateFailed, failed.State)
	assert.Equal(t, domain.CodeHTTP5xx, failed.ErrorCode)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, sources[2].URL, result.Errors[0].Source.URL)
	assert.Equal(t, sources[2:3], result.FailedSources())

	gpt, err := store.GetChunks(context.Background(), "OpenAI", "GPT-4", domain.ChunkFilter{})
	require.NoError(t, err)
	assert.Equal(t, result.Sources[0].Chunks+result.Sources[1].Chunks, len(gpt))
	for _, rec := range gpt {
		assert.True(t, rec.Metadata.EmbeddingGenerated)
		assert.NotNil(t, rec.Embedding)
	}

	recs, err := failures.QueryFailures(context.Background(), domain.FailureQuery{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, sources[2].URL, recs[0].URL)
	assert.Equal(t, "Claude 3", recs[0].Model)
	assert.Equal(t, domain.CodeHTTP5xx, recs[0].ErrorCode)
	assert.True(t, recs[0].Retryable)
	assert.Equal(t, result.RunID, recs[0].RunID)
}

// TestIngest_PlaceholderSucceeds tests that a placeholder is a success, not a failure.
func TestIngest_PlaceholderSucceeds(t *testing.T) {
	pdf := &stubExtractor{
		format: domain.FormatPDF,
		fn: func(_ context.Context, location string, base domain.ChunkMetadata) (domain.ExtractResult, error) {
			return domain.PlaceholderResult(base, domain.ParsingNotFound, "404", "Document not found at "+location), nil
		},
	}
	store := memory.NewChunkStore()
	embedder := &mockEmbedder{}
	svc := NewIngestionService(extractors.NewRegistry(pdf), embedder, store, memory.NewFailureLog(), testSettings())

	result, err := svc.Ingest(context.Background(), []domain.SourceDescriptor{
		source("OpenAI", "o1-preview", "https://cdn/o1.pdf", domain.FormatPDF),
	}, driving.IngestOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1, result.Placeholders)
	assert.Equal(t, 1, result.TotalChunks)
	assert.True(t, result.Sources[0].Placeholder)
	assert.Zero(t, embedder.calls.Load(), "placeholders are not embedded")

	recs, err := store.GetChunks(context.Background(), "OpenAI", "o1-preview", domain.ChunkFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.ParsingNotFound, recs[0].Metadata.ParsingStatus)
	assert.False(t, recs[0].Metadata.EmbeddingGenerated)
}

// TestIngest_UnknownFormatUsesWeb tests the web fallback in dispatch.
func TestIngest_UnknownFormatUsesWeb(t *testing.T) {
	web := segmentingExtractor(domain.FormatWeb, 3)
	svc := NewIngestionService(extractors.NewRegistry(web), nil, memory.NewChunkStore(), nil, testSettings())

	result, err := svc.Ingest(context.Background(), []domain.SourceDescriptor{
		source("OpenAI", "GPT-4", "https://a/1", domain.FormatRepository),
	}, driving.IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, int32(1), web.calls.Load())
}

// TestIngest_DryRunAndNoEmbed tests that disabled stages are skipped.
func TestIngest_DryRunAndNoEmbed(t *testing.T) {
	web := segmentingExtractor(domain.FormatWeb, 6)
	embedder := &mockEmbedder{}
	svc := NewIngestionService(extractors.NewRegistry(web), embedder, nil, nil, testSettings())

	result, err := svc.Ingest(context.Background(), []domain.SourceDescriptor{
		source("OpenAI", "GPT-4", "https://a/1", domain.FormatWeb),
	}, driving.IngestOptions{DryRun: true, NoEmbed: true})
	require.NoError(t, err)

	r := result.Sources[0]
	assert.Equal(t, domain.StateSucceeded, r.State)
	assert.Positive(t, r.Chunks)
	assert.Zero(t, r.Stored)
	assert.Zero(t, r.Embedded)
	assert.Zero(t, embedder.calls.Load())
}

// TestIngest_NoStoreConfigured tests that a persisting run needs a store.
func TestIngest_NoStoreConfigured(t *testing.T) {
	svc := NewIngestionService(extractors.NewRegistry(), nil, nil, nil, testSettings())
	_, err := svc.Ingest(context.Background(), nil, driving.IngestOptions{})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

// TestIngest_StoreUnavailableAtStartup tests that only a startup store failure aborts the run.
func TestIngest_StoreUnavailableAtStartup(t *testing.T) {
	store := &failingStore{ChunkStore: memory.NewChunkStore(), pingErr: fmt.Errorf("%w: refused", domain.ErrStoreUnavailable)}
	web := segmentingExtractor(domain.FormatWeb, 3)
	svc := NewIngestionService(extractors.NewRegistry(web), nil, store, nil, testSettings())

	_, err := svc.Ingest(context.Background(), []domain.SourceDescriptor{
		source("OpenAI", "GPT-4", "https://a/1", domain.FormatWeb),
	}, driving.IngestOptions{})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Zero(t, web.calls.Load())
}

// TestIngest_StoreErrorFailsSource tests that a storage error fails only its source.
func TestIngest_StoreErrorFailsSource(t *testing.T) {
	store := &failingStore{ChunkStore: memory.NewChunkStore(), failModel: "Claude 3"}
	failures := memory.NewFailureLog()
	svc := NewIngestionService(extractors.NewRegistry(segmentingExtractor(domain.FormatWeb, 3)), nil, store, failures, testSettings())

	result, err := svc.Ingest(context.Background(), []domain.SourceDescriptor{
		source("OpenAI", "GPT-4", "https://a/1", domain.FormatWeb),
		source("Anthropic", "Claude 3", "https://b/1", domain.FormatWeb),
	}, driving.IngestOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, domain.CodeStorage, result.Sources[1].ErrorCode)

	recs, err := failures.QueryFailures(context.Background(), domain.FailureQuery{Company: "anthropic"})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

// TestIngest_EmbeddingFailuresArePerChunk tests that failed embeddings never fail a source.
func TestIngest_EmbeddingFailuresArePerChunk(t *testing.T) {
	ext := &stubExtractor{
		format: domain.FormatWeb,
		fn: func(_ context.Context, _ string, base domain.ChunkMetadata) (domain.ExtractResult, error) {
			chunks := []domain.Chunk{
				domain.NewChunk("The first passage is fine.", base, 0),
				domain.NewChunk("This passage should FAIL to embed.", base, 1),
				domain.NewChunk("The third passage is also fine.", base, 2),
			}
			domain.FinalizeChunks(chunks)
			return domain.ChunksResult(chunks), nil
		},
	}
	store := memory.NewChunkStore()
	svc := NewIngestionService(extractors.NewRegistry(ext), &mockEmbedder{}, store, nil, testSettings())

	result, err := svc.Ingest(context.Background(), []domain.SourceDescriptor{
		source("OpenAI", "GPT-4", "https://a/1", domain.FormatWeb),
	}, driving.IngestOptions{})
	require.NoError(t, err)

	r := result.Sources[0]
	assert.Equal(t, domain.StateSucceeded, r.State)
	assert.Equal(t, 3, r.Chunks)
	assert.Equal(t, 2, r.Embedded)
	assert.Equal(t, 1, r.EmbedFailures)

	recs, err := store.GetChunks(context.Background(), "OpenAI", "GPT-4", domain.ChunkFilter{Text: "FAIL"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Metadata.EmbeddingGenerated)
	assert.Nil(t, recs[0].Embedding)
}

// TestIngest_ReplacePurgesOncePerModel tests that replace mode is idempotent.
func TestIngest_ReplacePurgesOncePerModel(t *testing.T) {
	store := &failingStore{ChunkStore: memory.NewChunkStore()}
	svc := NewIngestionService(extractors.NewRegistry(segmentingExtractor(domain.FormatWeb, 8)), nil, store, nil, testSettings())
	sources := []domain.SourceDescriptor{
		source("OpenAI", "GPT-4", "https://a/1", domain.FormatWeb),
		source("OpenAI", "GPT-4", "https://a/2", domain.FormatWeb),
		source("OpenAI", "GPT-4", "https://a/3", domain.FormatWeb),
	}

	first, err := svc.Ingest(context.Background(), sources, driving.IngestOptions{Replace: true})
	require.NoError(t, err)
	second, err := svc.Ingest(context.Background(), sources, driving.IngestOptions{Replace: true})
	require.NoError(t, err)

	assert.Equal(t, first.TotalChunks, second.TotalChunks)
	assert.Equal(t, int32(2), store.deletes.Load(), "one purge per model per run")

	recs, err := store.GetChunks(context.Background(), "OpenAI", "GPT-4", domain.ChunkFilter{})
	require.NoError(t, err)
	assert.Len(t, recs, second.TotalChunks)
}

// TestIngest_ConcurrencyBoundedByBatchSize tests the per-batch fan-out bound.
func TestIngest_ConcurrencyBoundedByBatchSize(t *testing.T) {
	ext := &stubExtractor{format: domain.FormatWeb}
	ext.fn = func(_ context.Context, location string, base domain.ChunkMetadata) (domain.ExtractResult, error) {
		time.Sleep(20 * time.Millisecond)
		return domain.PlaceholderResult(base, domain.ParsingPending, "stub", "pending "+location), nil
	}
	cfg := testSettings()
	cfg.BatchSize = 3
	cfg.BatchDelay = time.Millisecond
	svc := NewIngestionService(extractors.NewRegistry(ext), nil, memory.NewChunkStore(), nil, cfg)

	var sources []domain.SourceDescriptor
	for i := range 7 {
		sources = append(sources, source("OpenAI", "GPT-4", fmt.Sprintf("https://a/%d", i), domain.FormatWeb))
	}
	result, err := svc.Ingest(context.Background(), sources, driving.IngestOptions{})
	require.NoError(t, err)

	assert.Equal(t, 7, result.Successful)
	assert.LessOrEqual(t, ext.maxActive.Load(), int32(3))
	assert.GreaterOrEqual(t, ext.maxActive.Load(), int32(2))
}

// TestIngest_SourceTimeout tests that a slow source fails with a timeout code.
func TestIngest_SourceTimeout(t *testing.T) {
	ext := &stubExtractor{
		format: domain.FormatWeb,
		fn: func(ctx context.Context, _ string, _ domain.ChunkMetadata) (domain.ExtractResult, error) {
			<-ctx.Done()
			return domain.ExtractResult{}, ctx.Err()
		},
	}
	cfg := testSettings()
	cfg.SourceTimeout = 30 * time.Millisecond
	svc := NewIngestionService(extractors.NewRegistry(ext), nil, memory.NewChunkStore(), nil, cfg)

	result, err := svc.Ingest(context.Background(), []domain.SourceDescriptor{
		source("OpenAI", "GPT-4", "https://slow", domain.FormatWeb),
	}, driving.IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeFetchTimeout, result.Sources[0].ErrorCode)
}

// TestIngest_Cancelled tests that a cancelled run settles every source.
func TestIngest_Cancelled(t *testing.T) {
	ext := segmentingExtractor(domain.FormatWeb, 3)
	svc := NewIngestionService(extractors.NewRegistry(ext), nil, memory.NewChunkStore(), nil, testSettings())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := svc.Ingest(ctx, []domain.SourceDescriptor{
		source("OpenAI", "GPT-4", "https://a/1", domain.FormatWeb),
		source("OpenAI", "GPT-4", "https://a/2", domain.FormatWeb),
		source("OpenAI", "GPT-4", "https://a/3", domain.FormatWeb),
	}, driving.IngestOptions{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Failed)
	for _, r := range result.Sources {
		assert.Equal(t, domain.CodeCancelled, r.ErrorCode)
	}
	assert.Zero(t, ext.calls.Load())
}

// TestIngest_InvalidSource tests descriptor validation.
func TestIngest_InvalidSource(t *testing.T) {
	svc := NewIngestionService(extractors.NewRegistry(segmentingExtractor(domain.FormatWeb, 1)), nil, nil, nil, testSettings())
	bad := source("OpenAI", "", "https://a", domain.FormatWeb)

	result, err := svc.Ingest(context.Background(), []domain.SourceDescriptor{bad}, driving.IngestOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, domain.CodeInvalid, result.Sources[0].ErrorCode)
}

// TestIngest_PanicIsContained tests that a panicking extractor fails only its source.
func TestIngest_PanicIsContained(t *testing.T) {
	ext := &stubExtractor{
		format: domain.FormatWeb,
		fn: func(context.Context, string, domain.ChunkMetadata) (domain.ExtractResult, error) {
			panic("boom")
		},
	}
	svc := NewIngestionService(extractors.NewRegistry(ext), nil, nil, nil, testSettings())

	result, err := svc.Ingest(context.Background(), []domain.SourceDescriptor{
		source("OpenAI", "GPT-4", "https://a", domain.FormatWeb),
	}, driving.IngestOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, result.Sources[0].Error, "panic: boom")
}
