package extractors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/sentinel/internal/core/domain"
)

type stubExtractor struct {
	format domain.Format
}

func (s *stubExtractor) Format() domain.Format { return s.format }

func (s *stubExtractor) Extract(_ context.Context, _ string, base domain.ChunkMetadata) (domain.ExtractResult, error) {
	return domain.ChunksResult([]domain.Chunk{domain.NewChunk("x", base, 0)}), nil
}

func TestRegistry_Dispatch(t *testing.T) {
	pdf := &stubExtractor{format: domain.FormatPDF}
	web := &stubExtractor{format: domain.FormatWeb}
	repo := &stubExtractor{format: domain.FormatRepository}

	r := NewRegistry(pdf, web, repo)

	assert.Same(t, pdf, r.For(domain.FormatPDF))
	assert.Same(t, web, r.For(domain.FormatWeb))
	assert.Same(t, repo, r.For(domain.FormatRepository))
	assert.Equal(t, []domain.Format{domain.FormatRepository, domain.FormatPDF, domain.FormatWeb}, r.Formats())
}

func TestRegistry_FallsBackToWeb(t *testing.T) {
	web := &stubExtractor{format: domain.FormatWeb}
	r := NewRegistry(web)

	assert.Same(t, web, r.For(domain.Format("docx")))
	assert.Same(t, web, r.For(domain.FormatPDF))
	assert.False(t, r.Has(domain.FormatPDF))
}

func TestRegistry_NoWeb(t *testing.T) {
	r := NewRegistry(&stubExtractor{format: domain.FormatPDF})
	assert.Nil(t, r.For(domain.Format("unknown")))
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	first := &stubExtractor{format: domain.FormatWeb}
	second := &stubExtractor{format: domain.FormatWeb}
	r := NewRegistry(first)

	r.Register(second)

	assert.Same(t, second, r.For(domain.FormatWeb))
}
