package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/docfield-core/internal/core/domain"
)

func setupTestQueue(t *testing.T) (*Queue, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q, err := NewQueue(client, "test-worker")
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}

	return q, func() {
		client.Close()
		mr.Close()
	}
}

func TestQueueEnqueueDequeue(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	job := domain.NewJob("doc-1", "clinic-a", "clinic-a/doc-1.pdf", "abc123")
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got == nil {
		t.Fatal("expected a job")
	}
	if got.ID != job.ID || got.DocumentID != "doc-1" || got.Tenant != "clinic-a" {
		t.Errorf("job fields lost in transit: %+v", got)
	}
	if got.SHA256 != "abc123" || got.ObjectKey != "clinic-a/doc-1.pdf" {
		t.Errorf("payload fields lost in transit: %+v", got)
	}
	if got.Status != domain.JobStatusProcessing {
		t.Errorf("status = %q, want processing", got.Status)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
}

func TestQueueDequeueEmpty(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()

	got, err := q.DequeueWithTimeout(context.Background(), 1)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got != nil {
		t.Errorf("expected no job, got %+v", got)
	}
}

func TestQueueAck(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	job := domain.NewJob("doc-1", "clinic-a", "k", "h")
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	got, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil || got == nil {
		t.Fatalf("Dequeue: %v, %v", got, err)
	}

	if err := q.Ack(ctx, got.ID); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	after, err := q.GetJob(ctx, got.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if after.Status != domain.JobStatusCompleted {
		t.Errorf("status = %q, want completed", after.Status)
	}

	// Stream is drained; nothing to deliver.
	next, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if next != nil {
		t.Errorf("expected empty queue, got %+v", next)
	}
}

func TestQueueNackReschedulesWithBackoff(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	job := domain.NewJob("doc-1", "clinic-a", "k", "h")
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	got, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil || got == nil {
		t.Fatalf("Dequeue: %v, %v", got, err)
	}

	if err := q.Nack(ctx, got.ID, "ocr timeout"); err != nil {
		t.Fatalf("Nack: %v", err)
	}

	after, err := q.GetJob(ctx, got.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if after.Status != domain.JobStatusPending {
		t.Errorf("status = %q, want pending for retry", after.Status)
	}
	if after.Error != "ocr timeout" {
		t.Errorf("error = %q", after.Error)
	}
	if !after.ScheduledFor.After(time.Now()) {
		t.Error("retry should be scheduled in the future")
	}

	// Still backing off: not deliverable yet.
	next, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if next != nil {
		t.Errorf("job delivered before its backoff elapsed: %+v", next)
	}
}

func TestQueueNackExhaustedBudget(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	job := domain.NewJob("doc-1", "clinic-a", "k", "h")
	job.MaxAttempts = 1
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	got, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil || got == nil {
		t.Fatalf("Dequeue: %v, %v", got, err)
	}

	if err := q.Nack(ctx, got.ID, "invalid pdf"); err != nil {
		t.Fatalf("Nack: %v", err)
	}

	after, err := q.GetJob(ctx, got.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if after.Status != domain.JobStatusFailed {
		t.Errorf("status = %q, want failed after budget exhausted", after.Status)
	}
}

func TestQueueDelayedJobNotDeliveredEarly(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	job := domain.NewJob("doc-1", "clinic-a", "k", "h")
	job.ScheduledFor = time.Now().Add(time.Hour)
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got != nil {
		t.Errorf("delayed job delivered early: %+v", got)
	}
}

func TestQueueGetJobMissing(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()

	_, err := q.GetJob(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestQueuePing(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()

	if err := q.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
