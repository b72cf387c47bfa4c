package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"code.sajari.com/docconv"

	"github.com/custodia-labs/sentinel/internal/core/domain"
)

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = fmt.Errorf("%w: pdftotext not found in PATH", domain.ErrParserUnavailable)

// Document is the raw result of converting a PDF.
type Document struct {
	// Text is the extracted text. Pages are separated by '\f' when the
	// converter preserves page breaks.
	Text string

	// Pages is the page count, or 0 if unknown.
	Pages int

	Title  string
	Author string
}

// Converter turns PDF bytes into text.
type Converter interface {
	// Available returns an error wrapping domain.ErrParserUnavailable when
	// the conversion tooling is missing.
	Available() error

	// Convert extracts text and metadata.
	Convert(ctx context.Context, r io.Reader) (*Document, error)
}

// DocconvConverter converts PDFs with docconv, which shells out to the
// poppler utilities pdftotext and pdfinfo. docconv strips page breaks, so
// the body is re-read with pdftotext to keep them.
type DocconvConverter struct {
	pagedText func(ctx context.Context, path string) ([]byte, error)
}

// NewDocconvConverter creates a docconv-backed converter.
func NewDocconvConverter() *DocconvConverter {
	return &DocconvConverter{pagedText: runPDFToText}
}

// Available checks that pdftotext is on PATH.
func (c *DocconvConverter) Available() error {
	return CheckAvailable()
}

// Convert runs docconv.ConvertPDF for metadata and text, preferring the
// page-broken pdftotext output when it succeeds. Failures are reported as
// domain.ErrParse.
func (c *DocconvConverter) Convert(ctx context.Context, r io.Reader) (*Document, error) {
	f, err := docconv.NewLocalFile(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrParse, err)
	}
	defer f.Done()
	path := f.Name()

	type result struct {
		body string
		meta map[string]string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, meta, err := docconv.ConvertPDF(f.File)
		done <- result{body, meta, err}
	}()

	var paged []byte
	var pagedErr error
	if c.pagedText != nil {
		paged, pagedErr = c.pagedText(ctx, path)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrParse, res.err)
		}
		return &Document{
			Text:   preferPaged(res.body, paged, pagedErr),
			Pages:  parsePages(res.meta["Pages"]),
			Title:  strings.TrimSpace(res.meta["Title"]),
			Author: strings.TrimSpace(res.meta["Author"]),
		}, nil
	}
}

// runPDFToText runs pdftotext with page breaks kept as '\f'.
func runPDFToText(ctx context.Context, path string) ([]byte, error) {
	return exec.CommandContext(ctx, "pdftotext", "-q", "-enc", "UTF-8", "-eol", "unix", path, "-").Output()
}

// preferPaged returns the page-broken text unless it failed or is blank.
func preferPaged(flat string, paged []byte, err error) string {
	if err != nil || strings.TrimSpace(strings.ReplaceAll(string(paged), "\f", "")) == "" {
		return flat
	}
	return string(paged)
}

func parsePages(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// CheckAvailable returns ErrPDFToolNotFound if pdftotext is missing.
func CheckAvailable() error {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return ErrPDFToolNotFound
		}
		return fmt.Errorf("%w: %w", domain.ErrParserUnavailable, err)
	}
	return nil
}

// InstallInstructions returns platform-specific install instructions.
func InstallInstructions() string {
	return `PDF support requires pdftotext (part of poppler-utils).

Install it with:
  macOS:   brew install poppler
  Ubuntu:  sudo apt install poppler-utils
  Fedora:  sudo dnf install poppler-utils
  Arch:    sudo pacman -S poppler

PDF sources are stored as "pending" placeholders until it is installed.`
}
