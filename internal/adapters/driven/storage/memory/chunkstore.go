// Package memory provides in-process implementations of the storage ports.
// Nothing survives the process; they back tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
	"github.com/custodia-labs/sentinel/internal/embedding"
)

// Ensure ChunkStore implements the interfaces.
var (
	_ driven.ChunkStore     = (*ChunkStore)(nil)
	_ driven.VectorSearcher = (*ChunkStore)(nil)
)

// ChunkStore keeps records per collection in insertion order.
type ChunkStore struct {
	mu          sync.RWMutex
	collections map[string][]domain.StoredRecord
	closed      bool
	now         func() time.Time
}

// NewChunkStore creates an empty store.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{
		collections: make(map[string][]domain.StoredRecord),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// StoreChunks appends copies of chunks to the model's collection.
func (s *ChunkStore) StoreChunks(_ context.Context, company, model string, chunks []domain.Chunk) (int, error) {
	key := domain.ModelKey{Company: company, Model: model}
	if err := key.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errClosed
	}

	storedAt := s.now()
	for i := range chunks {
		rec := domain.StoredRecord{
			Chunk:      cloneChunk(chunks[i]),
			Namespace:  key.Namespace(),
			Collection: key.Collection(),
			StoredAt:   storedAt,
			Version:    domain.SchemaVersion,
		}
		s.collections[key.String()] = append(s.collections[key.String()], rec)
	}
	return len(chunks), nil
}

// GetChunks returns the model's records matching filter.
func (s *ChunkStore) GetChunks(_ context.Context, company, model string, filter domain.ChunkFilter) ([]domain.StoredRecord, error) {
	if err := filter.Compile(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	records := filter.Apply(s.collections[domain.ModelKey{Company: company, Model: model}.String()])
	for i := range records {
		records[i].Chunk = cloneChunk(records[i].Chunk)
	}
	return records, nil
}

// SearchSimilar scans the collection and ranks records by cosine similarity.
// Records whose dimensions differ from query are skipped.
func (s *ChunkStore) SearchSimilar(ctx context.Context, company, model string, query []float32, k int) ([]domain.ScoredChunk, error) {
	if len(query) == 0 || k <= 0 {
		return nil, fmt.Errorf("%w: empty query vector or k", domain.ErrInvalidInput)
	}
	records, err := s.GetChunks(ctx, company, model, domain.ChunkFilter{})
	if err != nil {
		return nil, err
	}
	return RankBySimilarity(records, query, k), nil
}

// RankBySimilarity scores embedded records against query, best first.
func RankBySimilarity(records []domain.StoredRecord, query []float32, k int) []domain.ScoredChunk {
	hits := make([]domain.ScoredChunk, 0, len(records))
	for i := range records {
		score, err := embedding.Cosine(query, records[i].Embedding)
		if err != nil || !records[i].HasEmbedding() {
			continue
		}
		hits = append(hits, domain.ScoredChunk{Record: records[i], Score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// GetComplianceSummary aggregates the model's records.
func (s *ChunkStore) GetComplianceSummary(ctx context.Context, company, model string) (*domain.ComplianceSummary, error) {
	records, err := s.GetChunks(ctx, company, model, domain.ChunkFilter{})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no chunks for %s", domain.ErrNotFound, domain.ModelKey{Company: company, Model: model})
	}
	summary := domain.Summarize(company, model, records)
	return &summary, nil
}

// DeleteModelData drops the model's collection.
func (s *ChunkStore) DeleteModelData(_ context.Context, company, model string) (int, error) {
	key := domain.ModelKey{Company: company, Model: model}.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errClosed
	}
	n := len(s.collections[key])
	delete(s.collections, key)
	return n, nil
}

// GetStats counts records per namespace and collection.
func (s *ChunkStore) GetStats(_ context.Context) (*domain.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	counts := make(map[string]map[string]int)
	for key, records := range s.collections {
		ns, coll, _ := strings.Cut(key, "/")
		if counts[ns] == nil {
			counts[ns] = make(map[string]int)
		}
		counts[ns][coll] = len(records)
	}
	stats := domain.BuildStats(counts)
	return &stats, nil
}

// Ping fails once the store is closed.
func (s *ChunkStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

// Close marks the store unusable.
func (s *ChunkStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var errClosed = fmt.Errorf("%w: memory store closed", domain.ErrStoreUnavailable)

func cloneChunk(c domain.Chunk) domain.Chunk {
	c.Embedding = append([]float32(nil), c.Embedding...)
	c.Metadata.PolicyCategories = append([]string(nil), c.Metadata.PolicyCategories...)
	c.Metadata.Authors = append([]string(nil), c.Metadata.Authors...)
	return c
}
