package mcp

import (
	"github.com/custodia-labs/sentinel/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
type Ports struct {
	// Query reads stored chunks, summaries and failures.
	Query driving.QueryService

	// Catalog lists configured sources. Optional.
	Catalog driving.CatalogService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}
