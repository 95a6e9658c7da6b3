package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/docfield-core/internal/core/domain"
)

// DocumentStore handles document and field-record persistence (PostgreSQL).
type DocumentStore interface {
	// Get retrieves a document by ID.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// Create inserts a document with status RECEIVED if it does not exist.
	// Creating an existing document is a no-op.
	Create(ctx context.Context, doc *domain.Document) error

	// TransitionProcessing moves a document into PROCESSING. Allowed from
	// RECEIVED and FAILED, and from a PROCESSING row whose updated_at is
	// older than staleAfter (a worker died mid-attempt). Returns
	// domain.ErrInvalidTransition when the document is terminal or an
	// attempt is still live.
	TransitionProcessing(ctx context.Context, id string, staleAfter time.Duration) error

	// CommitResult records a processing outcome in a single transaction:
	// the document row is updated and the document's field records are
	// replaced with the outcome's set. Partial field sets are never
	// observable by readers.
	CommitResult(ctx context.Context, id string, outcome domain.ProcessOutcome) error

	// GetFields retrieves all field records for a document.
	GetFields(ctx context.Context, documentID string) ([]domain.FieldRecord, error)

	// Ping checks if the store is reachable.
	Ping(ctx context.Context) error
}
