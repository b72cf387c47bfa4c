package mcp

import (
	"context"

	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driving"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	records  []domain.StoredRecord
	hits     []domain.ScoredChunk
	summary  *domain.ComplianceSummary
	stats    *domain.StoreStats
	failures []domain.FailureRecord
	err      error

	// Last arguments seen.
	company, model string
	filter         domain.ChunkFilter
	categories     []string
	query          string
	limit          int
	failureQuery   domain.FailureQuery
}

func (m *mockQueryService) GetChunks(_ context.Context, company, model string, filter domain.ChunkFilter) ([]domain.StoredRecord, error) {
	m.company, m.model, m.filter = company, model, filter
	return m.records, m.err
}

func (m *mockQueryService) GetChunksByCategories(_ context.Context, company, model string, categories []string) ([]domain.StoredRecord, error) {
	m.company, m.model, m.categories = company, model, categories
	return m.records, m.err
}

func (m *mockQueryService) SearchChunksByText(_ context.Context, company, model, query string, limit int) ([]domain.StoredRecord, error) {
	m.company, m.model, m.query, m.limit = company, model, query, limit
	return m.records, m.err
}

func (m *mockQueryService) SemanticSearch(_ context.Context, company, model, query string, k int) ([]domain.ScoredChunk, error) {
	m.company, m.model, m.query, m.limit = company, model, query, k
	return m.hits, m.err
}

func (m *mockQueryService) GetComplianceSummary(_ context.Context, company, model string) (*domain.ComplianceSummary, error) {
	m.company, m.model = company, model
	return m.summary, m.err
}

func (m *mockQueryService) GetStats(context.Context) (*domain.StoreStats, error) {
	return m.stats, m.err
}

func (m *mockQueryService) DeleteModelData(context.Context, string, string) (int, error) {
	return 0, m.err
}

func (m *mockQueryService) Failures(_ context.Context, q domain.FailureQuery) ([]domain.FailureRecord, error) {
	m.failureQuery = q
	return m.failures, m.err
}

func (m *mockQueryService) Health(context.Context, []domain.ModelKey) (*driving.HealthReport, error) {
	return &driving.HealthReport{}, m.err
}

// mockCatalogService is a mock implementation of driving.CatalogService.
type mockCatalogService struct {
	sources []domain.SourceDescriptor
	err     error
}

func (m *mockCatalogService) Catalog(context.Context) (*domain.Catalog, error) {
	return &domain.Catalog{Sources: m.sources}, m.err
}

func (m *mockCatalogService) Select(_ context.Context, sel domain.SourceSelection) ([]domain.SourceDescriptor, error) {
	if m.err != nil {
		return nil, m.err
	}
	return sel.Select(m.sources), nil
}

func (m *mockCatalogService) Reload(ctx context.Context) (*domain.Catalog, error) {
	return m.Catalog(ctx)
}

func testRecord(id, text string) domain.StoredRecord {
	return domain.StoredRecord{
		Chunk: domain.Chunk{
			ID:        id,
			Text:      text,
			Embedding: []float32{1, 0},
			Metadata: domain.ChunkMetadata{
				SourceURL:        "https://openai.com/gpt-4-system-card.pdf",
				DocumentType:     domain.DocTypeSystemCard,
				Format:           domain.FormatPDF,
				PolicyCategories: []string{"safety"},
				ChunkIndex:       0,
				TotalChunks:      3,
				PageNumber:       2,
				EstimatedPage:    true,
				ParsingStatus:    domain.ParsingOK,
			},
		},
		Namespace:  "openai",
		Collection: "gpt_4_chunks",
	}
}
