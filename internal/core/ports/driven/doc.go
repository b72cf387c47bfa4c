// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Fetcher: Retrieves remote documents over HTTP
//   - Extractor: Converts one source format into chunks
//   - ExtractorRegistry: Dispatches a Format to its Extractor
//   - Segmenter: Splits text into overlapping chunks
//   - ChunkStore: Per-model chunk persistence
//   - FailureLog: Append-only failure records
//   - CatalogStore: Source catalog loading
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - Renderer: JS-capable fetch path. Without it, web pages use the fast path only.
//   - Embedder: Vector embeddings. Without it, chunks are stored unembedded.
//   - VectorSearcher: Native nearest-neighbour search. Without it, search scans in process.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or extractor package
package driven
