package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sentinel/internal/core/domain"
)

func TestExtractModelKey(t *testing.T) {
	tests := []struct {
		name        string
		uri         string
		wantCompany string
		wantModel   string
	}{
		{
			name:        "valid summary URI",
			uri:         "sentinel://models/OpenAI/GPT-4/summary",
			wantCompany: "OpenAI",
			wantModel:   "GPT-4",
		},
		{
			name:        "escaped segments",
			uri:         "sentinel://models/Anthropic/Claude%203/summary",
			wantCompany: "Anthropic",
			wantModel:   "Claude 3",
		},
		{
			name: "invalid prefix",
			uri:  "file://models/OpenAI/GPT-4/summary",
		},
		{
			name: "missing summary suffix",
			uri:  "sentinel://models/OpenAI/GPT-4",
		},
		{
			name: "missing model",
			uri:  "sentinel://models/OpenAI/summary",
		},
		{
			name: "extra segment",
			uri:  "sentinel://models/OpenAI/GPT-4/extra/summary",
		},
		{
			name: "empty URI",
			uri:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			company, model := extractModelKey(tt.uri)
			assert.Equal(t, tt.wantCompany, company)
			assert.Equal(t, tt.wantModel, model)
		})
	}
}

func newReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleSourcesResource(t *testing.T) {
	ctx := context.Background()

	t.Run("no catalog returns empty array", func(t *testing.T) {
		server := newTestServer(t, &mockQueryService{})
		result, err := server.handleSourcesResource(ctx, newReadResourceRequest("sentinel://sources"))
		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})

	t.Run("lists catalog sources", func(t *testing.T) {
		catalog := &mockCatalogService{sources: []domain.SourceDescriptor{
			{ID: "a", Company: "OpenAI", Model: "GPT-4", DocumentType: domain.DocTypeSystemCard, Format: domain.FormatPDF, URL: "https://openai.com/gpt-4.pdf", Priority: 1},
			{ID: "b", Company: "Meta", Model: "Llama 3", DocumentType: domain.DocTypeModelCard, Format: domain.FormatRepository, URL: "https://github.com/meta-llama/llama3", Priority: 2},
		}}
		server, err := NewServer(&Ports{Query: &mockQueryService{}, Catalog: catalog})
		require.NoError(t, err)

		result, err := server.handleSourcesResource(ctx, newReadResourceRequest("sentinel://sources"))
		require.NoError(t, err)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)

		var got []map[string]any
		require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "OpenAI", got[0]["company"])
		assert.Equal(t, "github", got[1]["format"])
	})

	t.Run("catalog error", func(t *testing.T) {
		server, err := NewServer(&Ports{Query: &mockQueryService{}, Catalog: &mockCatalogService{err: errors.New("bad catalog")}})
		require.NoError(t, err)
		_, err = server.handleSourcesResource(ctx, newReadResourceRequest("sentinel://sources"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad catalog")
	})
}

func TestServer_handleSummaryResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns summary JSON", func(t *testing.T) {
		q := &mockQueryService{summary: &domain.ComplianceSummary{Company: "Anthropic", Model: "Claude 3", TotalChunks: 4}}
		server := newTestServer(t, q)

		result, err := server.handleSummaryResource(ctx, newReadResourceRequest("sentinel://models/Anthropic/Claude%203/summary"))
		require.NoError(t, err)
		assert.Equal(t, "Claude 3", q.model)
		assert.Contains(t, result.Contents[0].Text, `"totalChunks": 4`)
	})

	t.Run("malformed URI is not found", func(t *testing.T) {
		server := newTestServer(t, &mockQueryService{})
		_, err := server.handleSummaryResource(ctx, newReadResourceRequest("sentinel://models/OpenAI/summary"))
		require.Error(t, err)
	})

	t.Run("missing model propagates not found", func(t *testing.T) {
		server := newTestServer(t, &mockQueryService{err: domain.ErrNotFound})
		_, err := server.handleSummaryResource(ctx, newReadResourceRequest("sentinel://models/xAI/Grok/summary"))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestServer_handleStatsResource(t *testing.T) {
	q := &mockQueryService{stats: &domain.StoreStats{
		Namespaces: []domain.NamespaceStats{{
			Namespace:   "openai",
			Collections: []domain.CollectionStats{{Collection: "gpt_4_chunks", Count: 50}},
			Total:       50,
		}},
		Total: 50,
	}}
	server := newTestServer(t, q)

	result, err := server.handleStatsResource(context.Background(), newReadResourceRequest("sentinel://stats"))
	require.NoError(t, err)
	assert.Contains(t, result.Contents[0].Text, "gpt_4_chunks")
}
