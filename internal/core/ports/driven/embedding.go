package driven

import "context"

// EmbeddingService generates vector embeddings from text.
// Backends implement this; the embedding generator wraps one.
//
// Implementations may include:
//   - A local in-process model
//   - Ollama (all-minilm, nomic-embed-text)
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Gemini (text-embedding-004)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 1536, 3072).
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Embedder is the pipeline-facing embedding generator.
// The model behind it is loaded once on first use.
type Embedder interface {
	// Embed returns a normalised vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one entry per text in input order.
	// A nil entry means that text failed; the batch never fails as a whole.
	EmbedBatch(ctx context.Context, texts []string) [][]float32

	// Similarity is cosine similarity, erroring on dimension mismatch.
	Similarity(a, b []float32) (float64, error)

	// ModelName identifies the underlying model.
	ModelName() string
}
