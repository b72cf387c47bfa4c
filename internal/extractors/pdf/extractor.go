// Package pdf extracts chunks from PDF documents.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
	"github.com/custodia-labs/sentinel/internal/extractors"
	"github.com/custodia-labs/sentinel/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

var pdfMagic = []byte("%PDF-")

var authorSeparators = regexp.MustCompile(`\s*(?:;|,|\band\b|&)\s*`)

// Extractor reads a PDF from a URL or local path and segments its text.
type Extractor struct {
	fetcher   driven.Fetcher
	converter Converter
	segmenter driven.Segmenter
}

// New creates a PDF extractor.
func New(fetcher driven.Fetcher, converter Converter, segmenter driven.Segmenter) *Extractor {
	if converter == nil {
		converter = NewDocconvConverter()
	}
	return &Extractor{fetcher: fetcher, converter: converter, segmenter: segmenter}
}

// Format returns domain.FormatPDF.
func (e *Extractor) Format() domain.Format {
	return domain.FormatPDF
}

// Extract returns chunks for the PDF at location.
// A missing document or missing parser yields a placeholder; corrupt
// content is an error.
func (e *Extractor) Extract(ctx context.Context, location string, base domain.ChunkMetadata) (domain.ExtractResult, error) {
	if err := e.converter.Available(); err != nil {
		logger.Warn("pdf parser unavailable for %s: %v", location, err)
		return domain.PlaceholderResult(base, domain.ParsingPending, err.Error(),
			fmt.Sprintf("PDF content from %s is pending: the PDF parser is not available on this system.", location)), nil
	}

	data, err := e.read(ctx, location)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.PlaceholderResult(base, domain.ParsingNotFound, err.Error(),
				fmt.Sprintf("Document not found at %s. The %s for %s %s could not be retrieved.",
					location, orDefault(base.DocumentType, "document"), base.Company, base.Model)), nil
		}
		return domain.ExtractResult{}, err
	}

	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), pdfMagic) {
		return domain.ExtractResult{}, fmt.Errorf("%w: %s is not a PDF", domain.ErrParse, location)
	}

	doc, err := e.converter.Convert(ctx, bytes.NewReader(data))
	if err != nil {
		return domain.ExtractResult{}, err
	}

	pages := splitPages(doc.Text)
	if len(pages) == 0 {
		return domain.PlaceholderResult(base, domain.ParsingPending, "no extractable text",
			fmt.Sprintf("PDF at %s contains no extractable text (it may be scanned and require OCR).", location)), nil
	}

	base.Title = doc.Title
	if base.Title == "" {
		base.Title = extractors.TitleFromPath(location)
	}
	base.Authors = splitAuthors(doc.Author)
	base.ParsingStatus = domain.ParsingOK
	base.TotalPages = doc.Pages
	if last := pages[len(pages)-1].number; base.TotalPages < last {
		base.TotalPages = last
	}

	chunks := e.segmenter.Segment(joinPages(pages), base)
	if strings.Contains(doc.Text, "\f") {
		assignPages(chunks, pages)
	} else {
		estimatePages(chunks, base.TotalPages)
	}

	logger.Debug("pdf %s: %d pages, %d chunks", location, base.TotalPages, len(chunks))
	return domain.ChunksResult(chunks), nil
}

func (e *Extractor) read(ctx context.Context, location string) ([]byte, error) {
	if path, ok := localPath(location); ok {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return data, err
	}
	resp, err := e.fetcher.Fetch(ctx, location, driven.FetchOptions{})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func localPath(location string) (string, bool) {
	if strings.HasPrefix(location, "file://") {
		return strings.TrimPrefix(location, "file://"), true
	}
	if strings.Contains(location, "://") {
		return "", false
	}
	return location, true
}

type page struct {
	number int
	text   string
}

// splitPages cleans each form-feed separated page and drops blank ones,
// keeping the original page numbers.
func splitPages(text string) []page {
	raw := strings.Split(text, "\f")
	var pages []page
	for i, p := range raw {
		if p = extractors.CleanPDFText(p); p != "" {
			pages = append(pages, page{number: i + 1, text: p})
		}
	}
	return pages
}

func joinPages(pages []page) string {
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.text
	}
	return strings.Join(texts, " ")
}

// assignPages sets the page on which each chunk's new content begins.
// The segmented text must be joinPages(pages).
func assignPages(chunks []domain.Chunk, pages []page) {
	starts := make([]int, len(pages))
	offset := 0
	for i, p := range pages {
		starts[i] = offset
		offset += utf8.RuneCountInString(p.text) + 1
	}

	pos := 0
	for i := range chunks {
		number := pages[0].number
		for p := len(starts) - 1; p >= 0; p-- {
			if pos >= starts[p] {
				number = pages[p].number
				break
			}
		}
		chunks[i].Metadata.PageNumber = number
		chunks[i].Metadata.EstimatedPage = false
		pos += chunks[i].Metadata.CharCount - chunks[i].Metadata.OverlapChars + 1
	}
}

// estimatePages distributes chunk indices proportionally across pages.
func estimatePages(chunks []domain.Chunk, totalPages int) {
	if totalPages < 1 || len(chunks) == 0 {
		return
	}
	perPage := (len(chunks) + totalPages - 1) / totalPages
	for i := range chunks {
		page := i/perPage + 1
		if page > totalPages {
			page = totalPages
		}
		chunks[i].Metadata.PageNumber = page
		chunks[i].Metadata.EstimatedPage = true
	}
}

func splitAuthors(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	for _, a := range authorSeparators.Split(s, -1) {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
