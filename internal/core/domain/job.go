package domain

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// JobStatus represents the current state of a queued processing job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is the queue envelope for one document processing request, as published
// by the ingestion collaborator. It carries the retry budget and backoff
// state; all durable pipeline state lives on the Document itself.
type Job struct {
	// ID is the unique identifier for this job
	ID string `json:"id"`

	// DocumentID identifies the document to process
	DocumentID string `json:"document_id"`

	// Tenant is the multi-tenancy partition key
	Tenant string `json:"tenant"`

	// ObjectKey locates the raw PDF in the object store
	ObjectKey string `json:"object_key"`

	// SHA256 is the hex content hash computed at ingestion
	SHA256 string `json:"sha256"`

	// Status is the current queue state of the job
	Status JobStatus `json:"status"`

	// Attempts is how many times this job has been attempted
	Attempts int `json:"attempts"`

	// MaxAttempts is the retry budget before the job is given up
	MaxAttempts int `json:"max_attempts"`

	// Error contains the last error message if failed
	Error string `json:"error,omitempty"`

	// CreatedAt is when the job was enqueued
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the job was last modified
	UpdatedAt time.Time `json:"updated_at"`

	// StartedAt is when processing began (nil if not started)
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when processing finished (nil if not complete)
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ScheduledFor is when the job should be processed (for delayed retries)
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewJob creates a processing job for a document with default values.
func NewJob(documentID, tenant, objectKey, sha256 string) *Job {
	now := time.Now()
	return &Job{
		ID:           GenerateID(),
		DocumentID:   documentID,
		Tenant:       tenant,
		ObjectKey:    objectKey,
		SHA256:       sha256,
		Status:       JobStatusPending,
		Attempts:     0,
		MaxAttempts:  3,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// CanRetry returns true if the job still has retry budget.
func (j *Job) CanRetry() bool {
	return j.Attempts < j.MaxAttempts
}

// IsReady returns true if the job is ready to be processed.
func (j *Job) IsReady() bool {
	return j.Status == JobStatusPending && time.Now().After(j.ScheduledFor)
}

// MarkProcessing updates the job to processing state.
func (j *Job) MarkProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.StartedAt = &now
	j.UpdatedAt = now
	j.Attempts++
}

// MarkCompleted updates the job to completed state.
func (j *Job) MarkCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.Error = ""
}

// MarkFailed updates the job to failed state.
func (j *Job) MarkFailed(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.UpdatedAt = now
	j.Error = err
}

// Retry resets the job for another attempt with exponential backoff.
func (j *Job) Retry(err string) {
	now := time.Now()
	j.Status = JobStatusPending
	j.UpdatedAt = now
	j.Error = err

	// Exponential backoff: 2s, 4s, 8s, ... capped at 5 minutes.
	backoff := time.Duration(1<<j.Attempts) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	j.ScheduledFor = now.Add(backoff)
}

// JobResult summarizes the outcome of one processing attempt.
type JobResult struct {
	JobID       string        `json:"job_id"`
	DocumentID  string        `json:"document_id"`
	Success     bool          `json:"success"`
	Skipped     bool          `json:"skipped,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	Pages       int           `json:"pages,omitempty"`
	FieldsCount int           `json:"fields_count,omitempty"`
}
