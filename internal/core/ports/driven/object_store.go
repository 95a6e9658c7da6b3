package driven

import "context"

// ObjectStore fetches raw uploaded files. The ingestion collaborator owns
// writes; the pipeline only reads.
type ObjectStore interface {
	// Download returns the raw bytes stored under key.
	Download(ctx context.Context, key string) ([]byte, error)

	// Exists reports whether an object is present under key.
	Exists(ctx context.Context, key string) (bool, error)
}
