package news

import (
	"context"
	"time"
)

// BlobStore abstracts the remote object store holding batch files.
type BlobStore interface {
	// List returns the object names under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Download copies the object's contents to a local file path.
	Download(ctx context.Context, object string, destPath string) error
	// Copy duplicates src to dst within the store.
	Copy(ctx context.Context, src, dst string) error
	// Delete removes the object.
	Delete(ctx context.Context, object string) error
}

// DocStore persists enriched records and answers search queries over them.
type DocStore interface {
	// InsertBatch bulk-inserts all records for one batch as a single write.
	InsertBatch(ctx context.Context, records []EnrichedRecord) error
	KeywordSearch(ctx context.Context, q KeywordQuery) (SearchPage, error)
	VectorSearch(ctx context.Context, q VectorQuery) (SearchPage, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Embedder converts text to a fixed-dimension vector. The boolean result is an
// absence marker: false on empty input or any internal failure, never an error.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, bool)
}

// Fetcher retrieves and decodes one URL. Failures are returned as data on the
// FetchResult, never as an error, so the pipeline can continue.
type Fetcher interface {
	Fetch(ctx context.Context, url string) FetchResult
}

// Parser extracts article content from fetched HTML.
type Parser interface {
	Parse(ctx context.Context, url, html string) ParseResult
}

// Publisher pushes batch completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
