// Package jobs defines asynchronous batch recognition jobs and the queue
// and store abstractions they run on.
package jobs

import (
	"context"
	"time"

	"github.com/hzhu/voucher-scan/internal/pipeline"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeRecognizeBatch represents a batch voucher recognition job.
	JobTypeRecognizeBatch JobType = "recognize_batch"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// BatchItemRef names one stored image belonging to a batch job.
type BatchItemRef struct {
	// Filename is the name the image was uploaded under.
	Filename string `json:"filename"`

	// ImageRef is the stored-image reference returned by the image store.
	ImageRef string `json:"image_ref"`
}

// RecognizeBatchJob represents a job to recognize a batch of voucher images.
type RecognizeBatchJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Items are the stored images to process, in upload order.
	Items []BatchItemRef `json:"items"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`

	// Result holds the batch outcome once the job completes.
	Result *pipeline.BatchResult `json:"result,omitempty"`

	// ArchiveRunID is the ID of the archived run, when archiving is enabled.
	ArchiveRunID string `json:"archive_run_id,omitempty"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *RecognizeBatchJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *RecognizeBatchJob) GetType() JobType {
	return JobTypeRecognizeBatch
}

// GetStatus implements the Job interface.
func (j *RecognizeBatchJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
// This abstraction allows for different queue implementations (in-memory, Cloud Tasks, Pub/Sub).
type Publisher interface {
	// PublishRecognizeBatch publishes a batch recognition job.
	PublishRecognizeBatch(ctx context.Context, job *RecognizeBatchJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *RecognizeBatchJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*RecognizeBatchJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*RecognizeBatchJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
