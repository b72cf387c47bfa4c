package domain

import (
	"fmt"
	"strings"
)

// Format identifies which extractor handles a source.
type Format string

// Supported source formats.
const (
	// FormatPDF is a PDF document fetched over HTTP or read from disk.
	FormatPDF Format = "pdf"

	// FormatWeb is an HTML page.
	FormatWeb Format = "web"

	// FormatRepository is a code repository whose README is ingested.
	FormatRepository Format = "github"
)

// Formats returns all supported formats in dispatch order.
func Formats() []Format {
	return []Format{FormatPDF, FormatWeb, FormatRepository}
}

// IsValid returns true if the format is recognised.
func (f Format) IsValid() bool {
	switch f {
	case FormatPDF, FormatWeb, FormatRepository:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (f Format) String() string {
	return string(f)
}

// ParseFormat converts a catalog value into a Format.
// Empty and unrecognised values resolve to FormatWeb; ok reports whether
// the input named a known format. "repository" is accepted as an alias
// for FormatRepository.
func ParseFormat(s string) (f Format, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pdf":
		return FormatPDF, true
	case "web", "html":
		return FormatWeb, true
	case "github", "repository", "repo":
		return FormatRepository, true
	default:
		return FormatWeb, false
	}
}

// Common document types found in the catalog.
const (
	DocTypeSystemCard    = "System Card"
	DocTypeResearchPaper = "Research Paper"
	DocTypeModelCard     = "Model Card"
	DocTypeAPIDocs       = "API Docs"
	DocTypeRepository    = "GitHub Repository"
	DocTypeUsagePolicy   = "Usage Policy"
)

// documentTypeWeights ranks document types by audit relevance (higher = more important).
var documentTypeWeights = map[string]int{
	DocTypeSystemCard:    10,
	DocTypeResearchPaper: 8,
	DocTypeModelCard:     7,
	DocTypeUsagePolicy:   6,
	DocTypeAPIDocs:       5,
	DocTypeRepository:    3,
}

// DefaultPriority derives a priority tier for a document type.
// Lower values are processed first; unknown types land in the last tier.
func DefaultPriority(documentType string) int {
	switch w := documentTypeWeights[documentType]; {
	case w >= 8:
		return 1
	case w >= 5:
		return 2
	default:
		return 3
	}
}

// SourceDescriptor is one catalogued documentation source.
// It is created when the catalog is loaded and never mutated afterwards.
type SourceDescriptor struct {
	// ID is a stable identifier derived from company, model and URL.
	ID string

	// Company is the publisher of the model (e.g. "OpenAI").
	Company string

	// Model is the canonical model name (e.g. "GPT-4").
	Model string

	// DocumentType classifies the document (e.g. "System Card").
	DocumentType string

	// Format selects the extractor.
	Format Format

	// URL is the remote location or a local file path.
	URL string

	// PolicyCategories are compliance tags the document is relevant to.
	PolicyCategories []string

	// Priority orders sources; lower is more important.
	Priority int

	// Description is free text shown in listings.
	Description string
}

// Label returns a short human-readable description for logs and summaries.
func (s *SourceDescriptor) Label() string {
	return fmt.Sprintf("%s/%s %s (%s)", s.Company, s.Model, s.DocumentType, s.URL)
}

// Validate checks the descriptor carries everything extraction needs.
func (s *SourceDescriptor) Validate() error {
	switch {
	case strings.TrimSpace(s.Company) == "":
		return fmt.Errorf("%w: company is required", ErrInvalidInput)
	case strings.TrimSpace(s.Model) == "":
		return fmt.Errorf("%w: model is required", ErrInvalidInput)
	case strings.TrimSpace(s.URL) == "":
		return fmt.Errorf("%w: url is required", ErrInvalidInput)
	case !s.Format.IsValid():
		return fmt.Errorf("%w: format %q", ErrUnsupportedType, s.Format)
	}
	return nil
}

// BaseMetadata builds the metadata every chunk of this source inherits.
func (s *SourceDescriptor) BaseMetadata() ChunkMetadata {
	categories := make([]string, len(s.PolicyCategories))
	copy(categories, s.PolicyCategories)
	return ChunkMetadata{
		SourceID:         s.ID,
		SourceURL:        s.URL,
		DocumentType:     s.DocumentType,
		Company:          s.Company,
		Model:            s.Model,
		Format:           s.Format,
		PolicyCategories: categories,
		Priority:         s.Priority,
	}
}

// SourceSelection filters a catalog. Zero values match everything.
type SourceSelection struct {
	// Company matches case-insensitively.
	Company string

	// Model matches case-insensitively against the canonical name.
	Model string

	// MaxPriority keeps sources with Priority <= MaxPriority when > 0.
	MaxPriority int
}

// Matches reports whether a source passes the selection.
func (sel SourceSelection) Matches(s *SourceDescriptor) bool {
	if sel.Company != "" && !strings.EqualFold(sel.Company, s.Company) {
		return false
	}
	if sel.Model != "" && NormalizeName(sel.Model) != NormalizeName(s.Model) {
		return false
	}
	if sel.MaxPriority > 0 && s.Priority > sel.MaxPriority {
		return false
	}
	return true
}

// Select returns the sources that match, preserving catalog order.
func (sel SourceSelection) Select(sources []SourceDescriptor) []SourceDescriptor {
	out := make([]SourceDescriptor, 0, len(sources))
	for i := range sources {
		if sel.Matches(&sources[i]) {
			out = append(out, sources[i])
		}
	}
	return out
}
