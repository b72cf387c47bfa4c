package services

import (
	"context"
	"sync"

	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
	"github.com/custodia-labs/sentinel/internal/core/ports/driving"
)

// Ensure CatalogService implements the interface.
var _ driving.CatalogService = (*CatalogService)(nil)

// CatalogService loads the catalog once and serves selections from it.
type CatalogService struct {
	store driven.CatalogStore

	mu     sync.Mutex
	loaded *domain.Catalog
}

// NewCatalogService creates a catalog service.
func NewCatalogService(store driven.CatalogStore) *CatalogService {
	return &CatalogService{store: store}
}

// Catalog returns the cached catalog, loading it on first use.
func (s *CatalogService) Catalog(ctx context.Context) (*domain.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded != nil {
		return s.loaded, nil
	}
	cat, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.loaded = cat
	return cat, nil
}

// Reload discards the cached catalog and loads it again.
// The previous catalog stays in place if loading fails.
func (s *CatalogService) Reload(ctx context.Context) (*domain.Catalog, error) {
	cat, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.loaded = cat
	s.mu.Unlock()
	return cat, nil
}

// Select filters the catalog in declaration order.
func (s *CatalogService) Select(ctx context.Context, sel domain.SourceSelection) ([]domain.SourceDescriptor, error) {
	cat, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	if sel.Model != "" {
		sel.Model = cat.CanonicalModel(sel.Model)
	}
	return sel.Select(cat.Sources), nil
}
