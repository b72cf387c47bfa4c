// Package repository extracts chunks from a source repository's README.
package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
	"github.com/custodia-labs/sentinel/internal/extractors"
	"github.com/custodia-labs/sentinel/internal/extractors/web"
	"github.com/custodia-labs/sentinel/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// readmeSelectors locate the rendered README on a repository page.
var readmeSelectors = []string{
	"article.markdown-body",
	".markdown-body",
	"#readme",
	"article",
}

// Extractor reads the primary README through the API, falling back to the
// rendered repository page.
type Extractor struct {
	client    *Client
	fetcher   driven.Fetcher
	segmenter driven.Segmenter
}

// New creates a repository extractor. client may be nil, in which case
// only the page fallback is used.
func New(client *Client, fetcher driven.Fetcher, segmenter driven.Segmenter) *Extractor {
	return &Extractor{client: client, fetcher: fetcher, segmenter: segmenter}
}

// Format returns domain.FormatRepository.
func (e *Extractor) Format() domain.Format {
	return domain.FormatRepository
}

// Extract returns README chunks, or a fetch_failed placeholder when the
// README cannot be read by either path.
func (e *Extractor) Extract(ctx context.Context, location string, base domain.ChunkMetadata) (domain.ExtractResult, error) {
	owner, repo, parseErr := ParseRepoURL(location)

	var apiErr error
	if parseErr == nil && e.client != nil {
		readme, err := e.client.GetReadme(ctx, owner, repo)
		if err == nil {
			base.Title = extractors.MarkdownTitle(readme.Content)
			if base.Title == "" {
				base.Title = owner + "/" + repo
			}
			base.Section = readme.Path
			return e.segment(extractors.StripMarkdown(readme.Content), base)
		}
		if ctx.Err() != nil {
			return domain.ExtractResult{}, ctx.Err()
		}
		apiErr = err
		logger.Debug("repository %s/%s: api readme failed: %v", owner, repo, err)
	}

	text, title, err := e.fromPage(ctx, location)
	if err == nil {
		base.Title = title
		if base.Title == "" && parseErr == nil {
			base.Title = owner + "/" + repo
		}
		base.Section = "README"
		return e.segment(text, base)
	}
	if ctx.Err() != nil {
		return domain.ExtractResult{}, ctx.Err()
	}

	cause := errors.Join(apiErr, err)
	logger.Warn("repository %s: README unavailable: %v", location, cause)
	label := location
	if parseErr == nil {
		label = owner + "/" + repo
	}
	return domain.PlaceholderResult(base, domain.ParsingFailed, cause.Error(),
		fmt.Sprintf("Repository README for %s (%s %s) could not be retrieved from %s.",
			label, base.Company, base.Model, location)), nil
}

func (e *Extractor) segment(text string, base domain.ChunkMetadata) (domain.ExtractResult, error) {
	text = extractors.NormalizeWhitespace(extractors.ToPrintableASCII(text))
	if text == "" {
		return domain.ExtractResult{}, fmt.Errorf("%w: empty README", domain.ErrParse)
	}
	base.Title = extractors.ToPrintableASCII(base.Title)
	base.ParsingStatus = domain.ParsingOK
	return domain.ChunksResult(e.segmenter.Segment(text, base)), nil
}

// fromPage renders the repository page and reads the README container.
func (e *Extractor) fromPage(ctx context.Context, location string) (text, title string, err error) {
	if e.fetcher == nil {
		return "", "", fmt.Errorf("%w: no fetcher", domain.ErrRenderUnavailable)
	}

	resp, err := e.fetcher.Fetch(ctx, location, driven.FetchOptions{Render: true, WaitFor: driven.WaitLoad})
	if errors.Is(err, domain.ErrRenderUnavailable) {
		resp, err = e.fetcher.Fetch(ctx, location, driven.FetchOptions{})
	}
	if err != nil {
		return "", "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", domain.ErrParse, err)
	}
	for _, sel := range readmeSelectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if text = web.Text(s); text != "" {
			return text, web.Text(s.Find("h1").First()), nil
		}
	}
	return "", "", fmt.Errorf("%w: no README on page", domain.ErrParse)
}
