// Package redis implements the job queue on Redis Streams. Streams provide
// consumer groups with acknowledgment tracking, which gives at-least-once
// delivery across worker restarts.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/docfield-core/internal/core/domain"
	"github.com/custodia-labs/docfield-core/internal/core/ports/driven"
)

const (
	// Stream names
	jobStream     = "docfield:jobs"
	jobGroup      = "docfield:workers"
	scheduledJobs = "docfield:scheduled"

	// Key prefixes
	jobKeyPrefix = "docfield:job:"

	// Default consumer name prefix
	consumerPrefix = "worker-"

	// Claim timeout - how long before a delivered job is considered
	// abandoned by a dead worker
	claimTimeout = 5 * time.Minute

	// Job state TTL. Long enough for status polling, short enough to not
	// accumulate forever.
	jobTTL = 24 * time.Hour
)

// Verify interface compliance
var _ driven.JobQueue = (*Queue)(nil)

// Queue implements JobQueue using Redis Streams.
type Queue struct {
	client       *redis.Client
	consumerName string
}

// NewQueue creates a new Redis-backed job queue.
// The consumerName should be unique per worker instance (e.g., hostname + PID).
func NewQueue(client *redis.Client, consumerName string) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerName == "" {
		consumerName = fmt.Sprintf("%s%d", consumerPrefix, time.Now().UnixNano())
	}

	q := &Queue{
		client:       client,
		consumerName: consumerName,
	}

	// Create consumer group if it doesn't exist
	ctx := context.Background()
	err := q.client.XGroupCreateMkStream(ctx, jobStream, jobGroup, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return q, nil
}

// Enqueue adds a job to the queue for processing.
func (q *Queue) Enqueue(ctx context.Context, job *domain.Job) error {
	if job == nil {
		return errors.New("job is required")
	}

	jobKey := jobKeyPrefix + job.ID
	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.Set(ctx, jobKey, jobData, jobTTL)

	if job.ScheduledFor.After(time.Now()) {
		// Delayed delivery goes through the scheduled sorted set
		pipe.ZAdd(ctx, scheduledJobs, redis.Z{
			Score:  float64(job.ScheduledFor.Unix()),
			Member: job.ID,
		})
	} else {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: jobStream,
			Values: map[string]interface{}{
				"job_id":      job.ID,
				"document_id": job.DocumentID,
				"tenant":      job.Tenant,
			},
		})
	}

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	return nil
}

// Dequeue retrieves the next available job for processing.
// This blocks until a job is available or context is cancelled.
func (q *Queue) Dequeue(ctx context.Context) (*domain.Job, error) {
	return q.DequeueWithTimeout(ctx, 0) // 0 means block forever
}

// DequeueWithTimeout retrieves the next available job, waiting up to timeout seconds.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Job, error) {
	// Promote any due scheduled jobs first (best effort)
	_ = q.promoteScheduledJobs(ctx)

	// Then try to claim jobs abandoned by dead workers
	job, err := q.claimAbandonedJob(ctx)
	if err == nil && job != nil {
		return job, nil
	}

	blockDuration := time.Duration(timeout) * time.Second

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    jobGroup,
		Consumer: q.consumerName,
		Streams:  []string{jobStream, ">"},
		Count:    1,
		Block:    blockDuration,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // No jobs available
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	msg := streams[0].Messages[0]
	jobID, ok := msg.Values["job_id"].(string)
	if !ok {
		// Invalid message, acknowledge and skip
		q.client.XAck(ctx, jobStream, jobGroup, msg.ID)
		return nil, nil
	}

	job, err = q.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Job data expired, acknowledge and skip
			q.client.XAck(ctx, jobStream, jobGroup, msg.ID)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job data: %w", err)
	}

	job.MarkProcessing()

	// Store updated job and message ID for ack/nack
	jobData, _ := json.Marshal(job)
	q.client.Set(ctx, jobKeyPrefix+job.ID, jobData, jobTTL)
	q.client.Set(ctx, jobKeyPrefix+job.ID+":msg", msg.ID, jobTTL)

	return job, nil
}

// Ack acknowledges successful completion of a job.
func (q *Queue) Ack(ctx context.Context, jobID string) error {
	msgID, err := q.client.Get(ctx, jobKeyPrefix+jobID+":msg").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to get message ID: %w", err)
	}

	pipe := q.client.Pipeline()

	if msgID != "" {
		pipe.XAck(ctx, jobStream, jobGroup, msgID)
		pipe.XDel(ctx, jobStream, msgID)
	}

	job, err := q.GetJob(ctx, jobID)
	if err == nil && job != nil {
		job.MarkCompleted()
		jobData, _ := json.Marshal(job)
		pipe.Set(ctx, jobKeyPrefix+jobID, jobData, jobTTL)
	}

	pipe.Del(ctx, jobKeyPrefix+jobID+":msg")

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}

	return nil
}

// Nack indicates job processing failed. Jobs with retry budget left are
// re-scheduled with backoff; exhausted jobs are marked failed.
func (q *Queue) Nack(ctx context.Context, jobID string, reason string) error {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	msgID, _ := q.client.Get(ctx, jobKeyPrefix+jobID+":msg").Result()

	pipe := q.client.Pipeline()

	// Acknowledge the current delivery; a retry is a fresh scheduled entry
	if msgID != "" {
		pipe.XAck(ctx, jobStream, jobGroup, msgID)
		pipe.XDel(ctx, jobStream, msgID)
	}

	if job.CanRetry() {
		job.Retry(reason)
		jobData, _ := json.Marshal(job)
		pipe.Set(ctx, jobKeyPrefix+jobID, jobData, jobTTL)
		pipe.ZAdd(ctx, scheduledJobs, redis.Z{
			Score:  float64(job.ScheduledFor.Unix()),
			Member: job.ID,
		})
	} else {
		job.MarkFailed(reason)
		jobData, _ := json.Marshal(job)
		pipe.Set(ctx, jobKeyPrefix+jobID, jobData, jobTTL)
	}

	pipe.Del(ctx, jobKeyPrefix+jobID+":msg")

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to nack job: %w", err)
	}

	return nil
}

// GetJob retrieves a job by ID.
func (q *Queue) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	data, err := q.client.Get(ctx, jobKeyPrefix+jobID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var job domain.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

// Ping checks if the queue backend is healthy.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close cleans up resources.
func (q *Queue) Close() error {
	// Redis client is shared, don't close it here
	return nil
}

// promoteScheduledJobs moves due scheduled jobs to the main stream.
func (q *Queue) promoteScheduledJobs(ctx context.Context) error {
	now := time.Now().Unix()

	due, err := q.client.ZRangeByScore(ctx, scheduledJobs, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now),
	}).Result()
	if err != nil {
		return err
	}

	if len(due) == 0 {
		return nil
	}

	pipe := q.client.Pipeline()

	for _, jobID := range due {
		job, err := q.GetJob(ctx, jobID)
		if err != nil || job == nil {
			pipe.ZRem(ctx, scheduledJobs, jobID)
			continue
		}

		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: jobStream,
			Values: map[string]interface{}{
				"job_id":      job.ID,
				"document_id": job.DocumentID,
				"tenant":      job.Tenant,
			},
		})
		pipe.ZRem(ctx, scheduledJobs, jobID)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// claimAbandonedJob tries to claim a job left pending by another worker.
func (q *Queue) claimAbandonedJob(ctx context.Context) (*domain.Job, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: jobStream,
		Group:  jobGroup,
		Start:  "-",
		End:    "+",
		Count:  10,
		Idle:   claimTimeout,
	}).Result()
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   jobStream,
			Group:    jobGroup,
			Consumer: q.consumerName,
			MinIdle:  claimTimeout,
			Messages: []string{p.ID},
		}).Result()
		if err != nil || len(claimed) == 0 {
			continue
		}

		msg := claimed[0]
		jobID, ok := msg.Values["job_id"].(string)
		if !ok {
			q.client.XAck(ctx, jobStream, jobGroup, msg.ID)
			q.client.XDel(ctx, jobStream, msg.ID)
			continue
		}

		job, err := q.GetJob(ctx, jobID)
		if err != nil || job == nil {
			q.client.XAck(ctx, jobStream, jobGroup, msg.ID)
			q.client.XDel(ctx, jobStream, msg.ID)
			continue
		}

		job.MarkProcessing()
		jobData, _ := json.Marshal(job)
		q.client.Set(ctx, jobKeyPrefix+job.ID, jobData, jobTTL)
		q.client.Set(ctx, jobKeyPrefix+job.ID+":msg", msg.ID, jobTTL)

		return job, nil
	}

	return nil, nil
}

func isGroupExistsError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}
