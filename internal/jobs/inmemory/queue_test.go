package inmemory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hzhu/voucher-scan/internal/jobs"
	"github.com/hzhu/voucher-scan/internal/pipeline"
)

func waitForStatus(t *testing.T, store jobs.JobStore, jobID string, want jobs.JobStatus) *jobs.RecognizeBatchJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, want)
	return nil
}

func TestQueue_PublishDefaults(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	job := &jobs.RecognizeBatchJob{}
	if err := q.PublishRecognizeBatch(context.Background(), job); err != nil {
		t.Fatalf("PublishRecognizeBatch() error = %v", err)
	}

	if job.JobID == "" {
		t.Error("job ID not generated")
	}
	if job.Status != jobs.JobStatusPending {
		t.Errorf("status = %q, want pending", job.Status)
	}
	if job.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
	if job.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", job.MaxRetries)
	}

	if _, err := store.GetJob(context.Background(), job.JobID); err != nil {
		t.Errorf("published job not in store: %v", err)
	}
}

func TestQueue_ProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	handler := func(ctx context.Context, j jobs.Job) error {
		batchJob := j.(*jobs.RecognizeBatchJob)
		batchJob.Result = &pipeline.BatchResult{Total: 2, SuccessCount: 2}
		return nil
	}

	ctx := context.Background()
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	job := &jobs.RecognizeBatchJob{Items: []jobs.BatchItemRef{{Filename: "a.jpg"}, {Filename: "b.jpg"}}}
	if err := q.PublishRecognizeBatch(ctx, job); err != nil {
		t.Fatal(err)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.Result == nil || done.Result.SuccessCount != 2 {
		t.Errorf("result = %+v, want handler result persisted", done.Result)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Error("timestamps not recorded")
	}
}

func TestQueue_FailedJobExhaustsRetries(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	attempts := make(chan struct{}, 10)
	handler := func(ctx context.Context, j jobs.Job) error {
		attempts <- struct{}{}
		return fmt.Errorf("always fails")
	}

	ctx := context.Background()
	if err := q.Start(ctx, handler); err != nil {
		t.Fatal(err)
	}

	job := &jobs.RecognizeBatchJob{MaxRetries: 1}
	if err := q.PublishRecognizeBatch(ctx, job); err != nil {
		t.Fatal(err)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if done.Error != "always fails" {
		t.Errorf("error = %q", done.Error)
	}
	if done.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", done.RetryCount)
	}
	if got := len(attempts); got != 2 {
		t.Errorf("handler ran %d times, want 2 (original + one retry)", got)
	}
}

func TestQueue_ClosedRejectsPublish(t *testing.T) {
	q := NewQueue(1, 1, nil)
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}

	err := q.PublishRecognizeBatch(context.Background(), &jobs.RecognizeBatchJob{})
	if err == nil {
		t.Fatal("PublishRecognizeBatch() on closed queue expected error")
	}
}

func TestQueue_StopWaitsForWorkers(t *testing.T) {
	store := NewStore()
	q := NewQueue(1, 1, store)

	release := make(chan struct{})
	started := make(chan struct{})
	handler := func(ctx context.Context, j jobs.Job) error {
		close(started)
		<-release
		return nil
	}

	ctx := context.Background()
	if err := q.Start(ctx, handler); err != nil {
		t.Fatal(err)
	}
	if err := q.PublishRecognizeBatch(ctx, &jobs.RecognizeBatchJob{}); err != nil {
		t.Fatal(err)
	}
	<-started

	stopCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := q.Stop(stopCtx); err == nil {
		t.Error("Stop() should time out while a job is in flight")
	}

	close(release)
	if err := q.Stop(context.Background()); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
