// Package migrations holds the SQLite schema for chunks and the failure log.
package migrations

import "embed"

// FS holds the numbered up and down scripts, applied in name order.
//
//go:embed *.sql
var FS embed.FS
