// Package file loads the source catalog from TOML or YAML files.
//
// A catalog has three sections: sources (an ordered list of documents),
// aliases (variant model name to canonical name) and categories (policy
// tag to display label). Without a path the embedded default catalog is
// used.
package file

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
	"github.com/custodia-labs/sentinel/internal/logger"
)

//go:embed default.toml
var defaultCatalog []byte

// sourceNamespace seeds deterministic source IDs.
var sourceNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://sentinel.custodia-labs.dev/sources"))

var _ driven.CatalogStore = (*Store)(nil)

type document struct {
	Aliases    map[string]string `toml:"aliases" yaml:"aliases"`
	Categories map[string]string `toml:"categories" yaml:"categories"`
	Sources    []entry           `toml:"sources" yaml:"sources"`
}

type entry struct {
	ID               string   `toml:"id" yaml:"id"`
	Company          string   `toml:"company" yaml:"company"`
	Model            string   `toml:"model" yaml:"model"`
	DocumentType     string   `toml:"document_type" yaml:"document_type"`
	Format           string   `toml:"format" yaml:"format"`
	URL              string   `toml:"url" yaml:"url"`
	PolicyCategories []string `toml:"policy_categories" yaml:"policy_categories"`
	Priority         int      `toml:"priority" yaml:"priority"`
	Description      string   `toml:"description" yaml:"description"`
}

// Store reads a catalog file on every Load.
type Store struct {
	path string
}

// NewStore creates a catalog store. An empty path selects the built-in catalog.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the catalog file, or "" for the built-in catalog.
func (s *Store) Path() string {
	return s.path
}

// Load reads, decodes and normalises the catalog.
func (s *Store) Load(_ context.Context) (*domain.Catalog, error) {
	if s.path == "" {
		return Parse(defaultCatalog, ".toml")
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(data, filepath.Ext(s.path))
}

// Parse decodes catalog data. ext selects YAML for ".yaml"/".yml" and TOML otherwise.
func Parse(data []byte, ext string) (*domain.Catalog, error) {
	var doc document
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: catalog yaml: %w", domain.ErrInvalidInput, err)
		}
	default:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: catalog toml: %w", domain.ErrInvalidInput, err)
		}
	}
	return normalise(doc)
}

func normalise(doc document) (*domain.Catalog, error) {
	cat := &domain.Catalog{
		Aliases:    doc.Aliases,
		Categories: make(map[string]string, len(doc.Categories)),
	}
	for tag, label := range doc.Categories {
		cat.Categories[strings.ToLower(tag)] = label
	}

	seen := make(map[string]int, len(doc.Sources))
	for i, e := range doc.Sources {
		format, ok := domain.ParseFormat(e.Format)
		if !ok && e.Format != "" {
			logger.Warn("catalog: source %d has unknown format %q, using web", i, e.Format)
		}

		src := domain.SourceDescriptor{
			ID:               strings.TrimSpace(e.ID),
			Company:          strings.TrimSpace(e.Company),
			Model:            cat.CanonicalModel(strings.TrimSpace(e.Model)),
			DocumentType:     strings.TrimSpace(e.DocumentType),
			Format:           format,
			URL:              strings.TrimSpace(e.URL),
			PolicyCategories: lowerAll(e.PolicyCategories),
			Priority:         e.Priority,
			Description:      e.Description,
		}
		if src.Priority <= 0 {
			src.Priority = domain.DefaultPriority(src.DocumentType)
		}
		if err := src.Validate(); err != nil {
			return nil, fmt.Errorf("catalog source %d: %w", i, err)
		}
		if src.ID == "" {
			src.ID = SourceID(src.Company, src.Model, src.URL)
		}
		if prev, dup := seen[src.ID]; dup {
			return nil, fmt.Errorf("%w: catalog sources %d and %d share id %s", domain.ErrInvalidInput, prev, i, src.ID)
		}
		seen[src.ID] = i
		cat.Sources = append(cat.Sources, src)
	}
	return cat, nil
}

// SourceID derives a stable identifier from company, model and URL.
func SourceID(company, model, url string) string {
	key := domain.NormalizeName(company) + "|" + domain.NormalizeName(model) + "|" + url
	return uuid.NewSHA1(sourceNamespace, []byte(key)).String()
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
