package driven

import (
	"context"

	"github.com/custodia-labs/docfield-core/internal/core/domain"
)

// JobQueue handles document-processing job delivery between the ingestion
// collaborator and workers.
type JobQueue interface {
	// Enqueue adds a job to the queue for processing.
	Enqueue(ctx context.Context, job *domain.Job) error

	// Dequeue retrieves the next available job, blocking until one is
	// available or the context is cancelled. Returns nil, nil when no job
	// is available (non-blocking implementations).
	Dequeue(ctx context.Context) (*domain.Job, error)

	// DequeueWithTimeout retrieves the next available job, waiting up to
	// timeout seconds. Returns nil, nil when the timeout elapses.
	DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Job, error)

	// Ack acknowledges successful completion of a job.
	Ack(ctx context.Context, jobID string) error

	// Nack indicates processing failed. The job is re-delivered after its
	// backoff delay, or marked failed when the retry budget is spent.
	Nack(ctx context.Context, jobID string, reason string) error

	// GetJob retrieves a job by ID (for status checking).
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)

	// Ping checks if the queue backend is healthy.
	Ping(ctx context.Context) error

	// Close cleans up resources.
	Close() error
}
