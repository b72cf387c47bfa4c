// Package domain defines the core business entities for Sentinel.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - SourceDescriptor: One catalogued documentation URL for a (company, model)
//   - Chunk: A bounded text segment with citation metadata
//   - StoredRecord: A chunk as persisted in a per-model collection
//   - FailureRecord: A source that failed end-to-end
//   - BatchResult: The aggregate outcome of an ingestion run
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
