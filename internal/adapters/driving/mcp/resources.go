package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sentinel/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for Sentinel resources.
	uriScheme = "sentinel://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "sources",
		Name:        "sources",
		Description: "Documentation sources in the catalog",
		MIMEType:    "application/json",
	}, s.handleSourcesResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "stats",
		Name:        "stats",
		Description: "Stored companies and models with chunk counts",
		MIMEType:    "application/json",
	}, s.handleStatsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "models/{company}/{model}/summary",
		Name:        "model-summary",
		Description: "Compliance summary for one model",
		MIMEType:    "application/json",
	}, s.handleSummaryResource)
}

// handleSourcesResource returns the catalog sources.
func (s *Server) handleSourcesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Catalog == nil {
		return jsonResource(req.Params.URI, []any{})
	}

	sources, err := s.ports.Catalog.Select(ctx, domain.SourceSelection{})
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}

	type sourceInfo struct {
		ID           string   `json:"id"`
		Company      string   `json:"company"`
		Model        string   `json:"model"`
		DocumentType string   `json:"document_type"`
		Format       string   `json:"format"`
		URL          string   `json:"url"`
		Categories   []string `json:"categories,omitempty"`
		Priority     int      `json:"priority"`
	}

	infos := make([]sourceInfo, len(sources))
	for i := range sources {
		src := &sources[i]
		infos[i] = sourceInfo{
			ID:           src.ID,
			Company:      src.Company,
			Model:        src.Model,
			DocumentType: src.DocumentType,
			Format:       string(src.Format),
			URL:          src.URL,
			Categories:   src.PolicyCategories,
			Priority:     src.Priority,
		}
	}
	return jsonResource(req.Params.URI, infos)
}

// handleStatsResource returns store statistics.
func (s *Server) handleStatsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	stats, err := s.ports.Query.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting stats: %w", err)
	}
	return jsonResource(req.Params.URI, stats)
}

// handleSummaryResource returns the compliance summary for one model.
func (s *Server) handleSummaryResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	company, model := extractModelKey(req.Params.URI)
	if company == "" || model == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	summary, err := s.ports.Query.GetComplianceSummary(ctx, company, model)
	if err != nil {
		return nil, fmt.Errorf("getting summary: %w", err)
	}
	return jsonResource(req.Params.URI, summary)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractModelKey extracts company and model from a URI like
// sentinel://models/{company}/{model}/summary.
func extractModelKey(uri string) (company, model string) {
	const prefix = uriScheme + "models/"
	const suffix = "/summary"

	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return "", ""
	}
	rest := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	company, model, ok := strings.Cut(rest, "/")
	if !ok || strings.Contains(model, "/") {
		return "", ""
	}
	return unescape(company), unescape(model)
}

// unescape decodes percent-encoded path segments such as "Claude%203".
func unescape(segment string) string {
	if v, err := url.PathUnescape(segment); err == nil {
		return v
	}
	return segment
}
