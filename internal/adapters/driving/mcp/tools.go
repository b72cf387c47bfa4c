package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sentinel/internal/core/domain"
)

// defaultLimit caps results when the caller gives no limit.
const defaultLimit = 10

// ModelInput identifies one (company, model) partition.
type ModelInput struct {
	Company string `json:"company" jsonschema:"company name, e.g. OpenAI"`
	Model   string `json:"model" jsonschema:"model name, e.g. GPT-4"`
}

// GetChunksInput is the input schema for the get_chunks tool.
type GetChunksInput struct {
	Company    string   `json:"company" jsonschema:"company name, e.g. OpenAI"`
	Model      string   `json:"model" jsonschema:"model name, e.g. GPT-4"`
	Categories []string `json:"categories,omitempty" jsonschema:"keep chunks tagged with any of these policy categories"`
	Text       string   `json:"text,omitempty" jsonschema:"keep chunks containing this substring (case-insensitive)"`
	Pattern    string   `json:"pattern,omitempty" jsonschema:"keep chunks matching this regular expression"`
	Limit      int      `json:"limit,omitempty" jsonschema:"maximum number of chunks (0 for all)"`
}

// CategoriesInput is the input schema for the get_chunks_by_categories tool.
type CategoriesInput struct {
	Company    string   `json:"company" jsonschema:"company name"`
	Model      string   `json:"model" jsonschema:"model name"`
	Categories []string `json:"categories" jsonschema:"policy categories, e.g. safety, privacy"`
}

// TextSearchInput is the input schema for the search_chunks_by_text tool.
type TextSearchInput struct {
	Company string `json:"company" jsonschema:"company name"`
	Model   string `json:"model" jsonschema:"model name"`
	Query   string `json:"query" jsonschema:"substring to search for (case-insensitive)"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of results (default 10)"`
}

// SemanticSearchInput is the input schema for the semantic_search tool.
type SemanticSearchInput struct {
	Company string `json:"company" jsonschema:"company name"`
	Model   string `json:"model" jsonschema:"model name"`
	Query   string `json:"query" jsonschema:"natural language query"`
	K       int    `json:"k,omitempty" jsonschema:"number of results (default 10)"`
}

// FailuresInput is the input schema for the get_failures tool.
type FailuresInput struct {
	Company string `json:"company,omitempty" jsonschema:"only failures for this company"`
	Model   string `json:"model,omitempty" jsonschema:"only failures for this model"`
	URL     string `json:"url,omitempty" jsonschema:"only failures for this source URL"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of entries (default 10)"`
}

// StatsInput is the input schema for the get_stats tool.
type StatsInput struct{}

// ChunkOutput is one stored chunk.
type ChunkOutput struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	SourceURL     string   `json:"source_url"`
	DocumentType  string   `json:"document_type"`
	Format        string   `json:"format"`
	Categories    []string `json:"categories,omitempty"`
	ChunkIndex    int      `json:"chunk_index"`
	TotalChunks   int      `json:"total_chunks"`
	PageNumber    int      `json:"page_number,omitempty"`
	EstimatedPage bool     `json:"estimated_page,omitempty"`
	Title         string   `json:"title,omitempty"`
	ParsingStatus string   `json:"parsing_status,omitempty"`
	HasEmbedding  bool     `json:"has_embedding"`
	Score         float64  `json:"score,omitempty"`
}

// ChunksOutput is the output schema for chunk tools.
type ChunksOutput struct {
	Chunks []ChunkOutput `json:"chunks"`
	Count  int           `json:"count"`
}

// FailuresOutput is the output schema for the get_failures tool.
type FailuresOutput struct {
	Failures []domain.FailureRecord `json:"failures"`
	Count    int                    `json:"count"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_chunks",
		Description: "Get the stored documentation chunks for a model, optionally filtered",
	}, s.handleGetChunks)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_chunks_by_categories",
		Description: "Get a model's chunks tagged with any of the given policy categories",
	}, s.handleGetChunksByCategories)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_chunks_by_text",
		Description: "Find a model's chunks containing a substring",
	}, s.handleSearchChunksByText)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "semantic_search",
		Description: "Rank a model's chunks by embedding similarity to a query",
	}, s.handleSemanticSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_compliance_summary",
		Description: "Summarise a model's chunks by policy category, document type and format",
	}, s.handleComplianceSummary)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_stats",
		Description: "List every stored company and model with chunk counts",
	}, s.handleStats)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_failures",
		Description: "List recorded ingestion failures, newest first",
	}, s.handleFailures)
}

func (s *Server) handleGetChunks(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetChunksInput,
) (*mcp.CallToolResult, ChunksOutput, error) {
	records, err := s.ports.Query.GetChunks(ctx, input.Company, input.Model, domain.ChunkFilter{
		Categories: input.Categories,
		Text:       input.Text,
		Pattern:    input.Pattern,
		Limit:      input.Limit,
	})
	if err != nil {
		return nil, ChunksOutput{}, err
	}
	return nil, chunksOutput(records), nil
}

func (s *Server) handleGetChunksByCategories(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CategoriesInput,
) (*mcp.CallToolResult, ChunksOutput, error) {
	records, err := s.ports.Query.GetChunksByCategories(ctx, input.Company, input.Model, input.Categories)
	if err != nil {
		return nil, ChunksOutput{}, err
	}
	return nil, chunksOutput(records), nil
}

func (s *Server) handleSearchChunksByText(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input TextSearchInput,
) (*mcp.CallToolResult, ChunksOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	records, err := s.ports.Query.SearchChunksByText(ctx, input.Company, input.Model, input.Query, limit)
	if err != nil {
		return nil, ChunksOutput{}, err
	}
	return nil, chunksOutput(records), nil
}

func (s *Server) handleSemanticSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SemanticSearchInput,
) (*mcp.CallToolResult, ChunksOutput, error) {
	k := input.K
	if k <= 0 {
		k = defaultLimit
	}
	hits, err := s.ports.Query.SemanticSearch(ctx, input.Company, input.Model, input.Query, k)
	if err != nil {
		return nil, ChunksOutput{}, err
	}
	out := ChunksOutput{Chunks: make([]ChunkOutput, len(hits)), Count: len(hits)}
	for i := range hits {
		out.Chunks[i] = chunkOutput(&hits[i].Record)
		out.Chunks[i].Score = hits[i].Score
	}
	return nil, out, nil
}

func (s *Server) handleComplianceSummary(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ModelInput,
) (*mcp.CallToolResult, domain.ComplianceSummary, error) {
	summary, err := s.ports.Query.GetComplianceSummary(ctx, input.Company, input.Model)
	if err != nil {
		return nil, domain.ComplianceSummary{}, fmt.Errorf("summary for %s/%s: %w", input.Company, input.Model, err)
	}
	return nil, *summary, nil
}

func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatsInput,
) (*mcp.CallToolResult, domain.StoreStats, error) {
	stats, err := s.ports.Query.GetStats(ctx)
	if err != nil {
		return nil, domain.StoreStats{}, err
	}
	out := *stats
	if out.Namespaces == nil {
		out.Namespaces = []domain.NamespaceStats{}
	}
	return nil, out, nil
}

func (s *Server) handleFailures(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FailuresInput,
) (*mcp.CallToolResult, FailuresOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	recs, err := s.ports.Query.Failures(ctx, domain.FailureQuery{
		URL:     input.URL,
		Company: input.Company,
		Model:   input.Model,
		Limit:   limit,
	})
	if err != nil {
		return nil, FailuresOutput{}, err
	}
	if recs == nil {
		recs = []domain.FailureRecord{}
	}
	return nil, FailuresOutput{Failures: recs, Count: len(recs)}, nil
}

func chunksOutput(records []domain.StoredRecord) ChunksOutput {
	out := ChunksOutput{Chunks: make([]ChunkOutput, len(records)), Count: len(records)}
	for i := range records {
		out.Chunks[i] = chunkOutput(&records[i])
	}
	return out
}

func chunkOutput(r *domain.StoredRecord) ChunkOutput {
	m := &r.Metadata
	return ChunkOutput{
		ID:            r.ID,
		Text:          r.Text,
		SourceURL:     m.SourceURL,
		DocumentType:  m.DocumentType,
		Format:        string(m.Format),
		Categories:    m.PolicyCategories,
		ChunkIndex:    m.ChunkIndex,
		TotalChunks:   m.TotalChunks,
		PageNumber:    m.PageNumber,
		EstimatedPage: m.EstimatedPage,
		Title:         m.Title,
		ParsingStatus: string(m.ParsingStatus),
		HasEmbedding:  r.HasEmbedding(),
	}
}
