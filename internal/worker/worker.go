package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/docfield-core/internal/core/domain"
	"github.com/custodia-labs/docfield-core/internal/core/ports/driven"
)

// Orchestrator runs one processing attempt for a dequeued job.
// Implemented by services.PipelineOrchestrator.
type Orchestrator interface {
	ProcessDocument(ctx context.Context, job *domain.Job) (*domain.JobResult, error)
}

// Worker consumes document jobs from the job queue and runs the pipeline
// orchestrator for each one.
type Worker struct {
	jobQueue     driven.JobQueue
	orchestrator Orchestrator
	logger       *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout int // seconds

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	JobQueue       driven.JobQueue
	Orchestrator   Orchestrator
	Logger         *slog.Logger
	Concurrency    int // Number of concurrent job processors
	DequeueTimeout int // Seconds to wait for a job before checking again
}

// NewWorker creates a new document worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	return &Worker{
		jobQueue:       cfg.JobQueue,
		orchestrator:   cfg.Orchestrator,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	// Start worker goroutines
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	// Wait for all workers to finish
	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	// Wait for workers to finish
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Info("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Info("worker stop signal received")
			return
		default:
		}

		// Dequeue a job with timeout
		job, err := w.jobQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue job", "error", err)
			time.Sleep(time.Second) // Back off on error
			continue
		}

		if job == nil {
			// No job available, continue
			continue
		}

		// Process the job
		w.processJob(ctx, job, logger)
	}
}

// processJob runs one attempt of a document job. A returned error from the
// orchestrator means the attempt is retriable and the job is nacked; any
// result, including a terminal failure already committed to the store, is
// acked so the queue does not redeliver it.
func (w *Worker) processJob(ctx context.Context, job *domain.Job, logger *slog.Logger) {
	logger = logger.With("job_id", job.ID, "document_id", job.DocumentID, "tenant", job.Tenant)
	logger.Info("processing job")

	startTime := time.Now()

	result, err := w.orchestrator.ProcessDocument(ctx, job)
	duration := time.Since(startTime)

	if err != nil {
		logger.Error("job attempt failed",
			"duration", duration,
			"error", err,
		)

		// Nack the job so it can be retried
		if nackErr := w.jobQueue.Nack(ctx, job.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack job", "nack_error", nackErr)
		}
		return
	}

	switch {
	case result.Skipped:
		logger.Info("job skipped", "duration", duration)
	case result.Success:
		logger.Info("job completed",
			"duration", duration,
			"pages", result.Pages,
			"fields", result.FieldsCount,
		)
	default:
		logger.Warn("job failed terminally",
			"duration", duration,
			"error", result.Error,
		)
	}

	// Ack the job
	if ackErr := w.jobQueue.Ack(ctx, job.ID); ackErr != nil {
		logger.Error("failed to ack job", "ack_error", ackErr)
	}
}

// Health returns health status of the worker.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running: running,
	}

	// Check queue health
	if err := w.jobQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}
