package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/hzhu/voucher-scan/internal/jobs"
)

func TestStore_SaveAndGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	job := &jobs.RecognizeBatchJob{
		JobID:  "job-1",
		Status: jobs.JobStatusPending,
		Items:  []jobs.BatchItemRef{{Filename: "a.jpg", ImageRef: "/uploads/a.jpg"}},
	}

	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}

	got, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.JobID != "job-1" || len(got.Items) != 1 {
		t.Errorf("got = %+v", got)
	}

	// Returned job is a copy.
	got.Status = jobs.JobStatusFailed
	again, _ := store.GetJob(ctx, "job-1")
	if again.Status != jobs.JobStatusPending {
		t.Error("mutating a returned job leaked into the store")
	}
}

func TestStore_SaveRequiresID(t *testing.T) {
	store := NewStore()
	if err := store.SaveJob(context.Background(), &jobs.RecognizeBatchJob{}); err == nil {
		t.Fatal("SaveJob() without ID expected error")
	}
}

func TestStore_GetMissing(t *testing.T) {
	store := NewStore()
	if _, err := store.GetJob(context.Background(), "nope"); err == nil {
		t.Fatal("GetJob() for unknown ID expected error")
	}
}

func TestStore_ListJobs(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	base := time.Now()
	for i, status := range []jobs.JobStatus{jobs.JobStatusPending, jobs.JobStatusCompleted, jobs.JobStatusPending} {
		job := &jobs.RecognizeBatchJob{
			JobID:     string(rune('a' + i)),
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.SaveJob(ctx, job); err != nil {
			t.Fatal(err)
		}
	}

	all, err := store.ListJobs(ctx, jobs.JobFilter{})
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("jobs = %d, want 3", len(all))
	}
	// Newest first.
	if all[0].JobID != "c" || all[2].JobID != "a" {
		t.Errorf("order = %s,%s,%s, want c,b,a", all[0].JobID, all[1].JobID, all[2].JobID)
	}

	pending, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusPending})
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Errorf("pending jobs = %d, want 2", len(pending))
	}

	limited, err := store.ListJobs(ctx, jobs.JobFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 || limited[0].JobID != "b" {
		t.Errorf("limited = %+v, want just b", limited)
	}

	past, err := store.ListJobs(ctx, jobs.JobFilter{Offset: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(past) != 0 {
		t.Errorf("offset past end = %d jobs, want 0", len(past))
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	job := &jobs.RecognizeBatchJob{JobID: "job-1", Status: jobs.JobStatusRunning}
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatal(err)
	}

	if err := store.UpdateJobStatus(ctx, "job-1", jobs.JobStatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateJobStatus() error = %v", err)
	}

	got, _ := store.GetJob(ctx, "job-1")
	if got.Status != jobs.JobStatusFailed || got.Error != "boom" {
		t.Errorf("got = %+v", got)
	}

	if err := store.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, ""); err == nil {
		t.Error("UpdateJobStatus() for unknown ID expected error")
	}
}
