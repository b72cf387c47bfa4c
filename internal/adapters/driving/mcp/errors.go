// Package mcp provides an MCP (Model Context Protocol) server adapter for Sentinel.
// It lets audit agents query stored documentation chunks per (company, model).
package mcp

import "errors"

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")
