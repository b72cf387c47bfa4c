package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
	"github.com/custodia-labs/sentinel/internal/core/ports/driving"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// pinger is implemented by embedders that can check their backend.
type pinger interface {
	Ping(ctx context.Context) error
}

// QueryService is the read surface over stored chunks.
type QueryService struct {
	store    driven.ChunkStore
	failures driven.FailureLog
	embedder driven.Embedder
}

// NewQueryService creates a query service. failures and embedder are
// optional; without an embedder SemanticSearch is unavailable.
func NewQueryService(store driven.ChunkStore, failures driven.FailureLog, embedder driven.Embedder) *QueryService {
	return &QueryService{
		store:    store,
		failures: failures,
		embedder: embedder,
	}
}

// GetChunks returns every record matching filter.
func (s *QueryService) GetChunks(ctx context.Context, company, model string, filter domain.ChunkFilter) ([]domain.StoredRecord, error) {
	if err := (domain.ModelKey{Company: company, Model: model}).Validate(); err != nil {
		return nil, fmt.Errorf("%w: company and model are required", err)
	}
	return s.store.GetChunks(ctx, company, model, filter)
}

// GetChunksByCategories returns records tagged with any of the categories.
func (s *QueryService) GetChunksByCategories(ctx context.Context, company, model string, categories []string) ([]domain.StoredRecord, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("%w: at least one category is required", domain.ErrInvalidInput)
	}
	return s.GetChunks(ctx, company, model, domain.ChunkFilter{Categories: categories})
}

// SearchChunksByText returns records whose text contains query, case-insensitively.
func (s *QueryService) SearchChunksByText(ctx context.Context, company, model, query string, limit int) ([]domain.StoredRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	return s.GetChunks(ctx, company, model, domain.ChunkFilter{Text: query, Limit: limit})
}

// SemanticSearch embeds query and returns the k most similar records.
// Stores with native vector search are queried directly; otherwise the
// model's records are scored in process.
func (s *QueryService) SemanticSearch(ctx context.Context, company, model, query string, k int) ([]domain.ScoredChunk, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if k <= 0 {
		k = 10
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	if vs, ok := s.store.(driven.VectorSearcher); ok {
		return vs.SearchSimilar(ctx, company, model, vec, k)
	}

	records, err := s.GetChunks(ctx, company, model, domain.ChunkFilter{})
	if err != nil {
		return nil, err
	}
	hits := make([]domain.ScoredChunk, 0, len(records))
	for i := range records {
		if !records[i].HasEmbedding() {
			continue
		}
		score, err := s.embedder.Similarity(vec, records[i].Embedding)
		if errors.Is(err, domain.ErrDimensionMismatch) {
			continue
		}
		if err != nil {
			return nil, err
		}
		hits = append(hits, domain.ScoredChunk{Record: records[i], Score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// GetComplianceSummary aggregates a model's records.
func (s *QueryService) GetComplianceSummary(ctx context.Context, company, model string) (*domain.ComplianceSummary, error) {
	return s.store.GetComplianceSummary(ctx, company, model)
}

// GetStats enumerates all collections.
func (s *QueryService) GetStats(ctx context.Context) (*domain.StoreStats, error) {
	return s.store.GetStats(ctx)
}

// DeleteModelData purges a model.
func (s *QueryService) DeleteModelData(ctx context.Context, company, model string) (int, error) {
	if err := (domain.ModelKey{Company: company, Model: model}).Validate(); err != nil {
		return 0, fmt.Errorf("%w: company and model are required", err)
	}
	return s.store.DeleteModelData(ctx, company, model)
}

// Failures queries the failure log.
func (s *QueryService) Failures(ctx context.Context, q domain.FailureQuery) ([]domain.FailureRecord, error) {
	if s.failures == nil {
		return nil, nil
	}
	return s.failures.QueryFailures(ctx, q)
}

// Health pings the store and embedder and counts chunks for each model.
// Dependency failures are reported in the result, not returned.
func (s *QueryService) Health(ctx context.Context, models []domain.ModelKey) (*driving.HealthReport, error) {
	report := &driving.HealthReport{}

	switch {
	case s.embedder == nil:
		report.EmbeddingErr = domain.ErrEmbeddingUnavailable
	default:
		if p, ok := s.embedder.(pinger); ok {
			report.EmbeddingErr = p.Ping(ctx)
		}
	}

	if err := s.store.Ping(ctx); err != nil {
		report.StoreErr = err
		return report, nil
	}
	stats, err := s.store.GetStats(ctx)
	if err != nil {
		report.StoreErr = err
		return report, nil
	}

	counts := make(map[string]int)
	for _, ns := range stats.Namespaces {
		for _, c := range ns.Collections {
			counts[ns.Namespace+"/"+c.Collection] = c.Count
		}
	}
	for _, k := range models {
		n := counts[k.String()]
		report.Models = append(report.Models, driving.ModelHealth{Key: k, Chunks: n})
		report.TotalChunks += n
	}
	return report, nil
}
