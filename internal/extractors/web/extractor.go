// Package web extracts chunks from HTML pages.
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
	"github.com/custodia-labs/sentinel/internal/extractors"
	"github.com/custodia-labs/sentinel/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor fetches a page, falling back to rendering for client-side
// pages, and segments its main content.
type Extractor struct {
	fetcher   driven.Fetcher
	segmenter driven.Segmenter
	render    bool
}

// Option configures the extractor.
type Option func(*Extractor)

// WithRenderFallback toggles the JS-rendering fallback. Enabled by default.
func WithRenderFallback(enabled bool) Option {
	return func(e *Extractor) {
		e.render = enabled
	}
}

// New creates a web extractor.
func New(fetcher driven.Fetcher, segmenter driven.Segmenter, opts ...Option) *Extractor {
	e := &Extractor{fetcher: fetcher, segmenter: segmenter, render: true}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Format returns domain.FormatWeb.
func (e *Extractor) Format() domain.Format {
	return domain.FormatWeb
}

// Extract fetches location and returns its chunks.
func (e *Extractor) Extract(ctx context.Context, location string, base domain.ChunkMetadata) (domain.ExtractResult, error) {
	body, err := e.fetch(ctx, location)
	if err != nil {
		return domain.ExtractResult{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return domain.ExtractResult{}, fmt.Errorf("%w: %w", domain.ErrParse, err)
	}

	var text string
	if IsAcademic(location, doc) {
		a := ParseAcademic(doc)
		text = a.Text()
		base.Title = a.Title
		base.Authors = a.Authors
		logger.Debug("web %s: academic page, %d authors", location, len(a.Authors))
	} else {
		base.Title = clean(doc.Find("title").First().Text())
		var container string
		text, container = MainContent(doc)
		logger.Debug("web %s: content from %s", location, container)
	}

	text = extractors.NormalizeWhitespace(extractors.ToPrintableASCII(text))
	if text == "" {
		return domain.ExtractResult{}, fmt.Errorf("%w: no readable content at %s", domain.ErrParse, location)
	}
	base.Title = extractors.ToPrintableASCII(base.Title)
	base.ParsingStatus = domain.ParsingOK

	return domain.ChunksResult(e.segmenter.Segment(text, base)), nil
}

// fetch returns the page body, re-fetching with rendering when the fast
// path looks like a client-rendered shell. Rendering failures keep the
// fast-path content.
func (e *Extractor) fetch(ctx context.Context, location string) ([]byte, error) {
	resp, err := e.fetcher.Fetch(ctx, location, driven.FetchOptions{})
	if err != nil {
		return nil, err
	}

	reason := RenderReason(resp.Body)
	if reason == "" || !e.render {
		return resp.Body, nil
	}

	logger.Debug("web %s: rendering (%s)", location, reason)
	rendered, err := e.fetcher.Fetch(ctx, location, driven.FetchOptions{
		Render:        true,
		WaitFor:       driven.WaitNetworkIdle,
		WaitForImages: true,
	})
	switch {
	case err == nil:
		return rendered.Body, nil
	case errors.Is(err, domain.ErrRenderUnavailable):
		logger.Debug("web %s: renderer unavailable, using fast-path content", location)
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		logger.Warn("web %s: render failed, using fast-path content: %v", location, err)
	}
	return resp.Body, nil
}
