// Package handlers implements the HTTP API: voucher recognition, CSV
// export, chart-of-accounts lookup and job tracking.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/hzhu/voucher-scan/internal/api/middleware"
	"github.com/hzhu/voucher-scan/internal/chart"
	"github.com/hzhu/voucher-scan/internal/export"
	"github.com/hzhu/voucher-scan/internal/imagestore"
	"github.com/hzhu/voucher-scan/internal/jobs"
	"github.com/hzhu/voucher-scan/internal/pipeline"
)

// maxUploadBytes caps a single multipart request body.
const maxUploadBytes = 64 << 20

// Archiver persists finished batches. Nil disables archiving.
type Archiver interface {
	RecordBatch(ctx context.Context, startedAt time.Time, result pipeline.BatchResult) (string, error)
}

// RecognizeHandler handles synchronous recognition endpoints.
type RecognizeHandler struct {
	recognizer *pipeline.Recognizer
	store      imagestore.Store
	archiver   Archiver
	log        zerolog.Logger
}

// NewRecognizeHandler creates a new recognize handler. store and archiver
// may be nil.
func NewRecognizeHandler(recognizer *pipeline.Recognizer, store imagestore.Store, archiver Archiver, log zerolog.Logger) *RecognizeHandler {
	return &RecognizeHandler{
		recognizer: recognizer,
		store:      store,
		archiver:   archiver,
		log:        log,
	}
}

// RecognizeSingle handles POST /api/recognize/single
func (h *RecognizeHandler) RecognizeSingle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	items, err := h.readUploads(ctx, r, false)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome := h.recognizer.RecognizeOne(ctx, items[0])
	middleware.WriteJSON(w, http.StatusOK, outcome)
}

// RecognizeBatch handles POST /api/recognize/batch
func (h *RecognizeHandler) RecognizeBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	started := time.Now()

	items, err := h.readUploads(ctx, r, true)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := h.recognizer.RunBatch(ctx, items)

	runID := ""
	if h.archiver != nil {
		runID, err = h.archiver.RecordBatch(ctx, started, result)
		if err != nil {
			// Archiving is best-effort; the caller still gets the results.
			h.log.Error().Err(err).Msg("Failed to archive batch")
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total":         result.Total,
		"success_count": result.SuccessCount,
		"failed_count":  result.FailedCount,
		"results":       result.Outcomes,
		"run_id":        runID,
	})
}

// readUploads parses the multipart body into pipeline items, persisting
// each image when a store is configured. multi=false expects exactly one
// file.
func (h *RecognizeHandler) readUploads(ctx context.Context, r *http.Request, multi bool) ([]pipeline.Item, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart body: %w", err)
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["file"]
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files uploaded")
	}
	if !multi && len(files) > 1 {
		return nil, fmt.Errorf("expected exactly one file, got %d", len(files))
	}

	items := make([]pipeline.Item, 0, len(files))
	for _, fh := range files {
		data, err := readMultipartFile(fh)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", fh.Filename, err)
		}

		item := pipeline.Item{Filename: fh.Filename, Image: data}
		if h.store != nil {
			ref, err := h.store.Save(ctx, fh.Filename, data)
			if err != nil {
				h.log.Error().Err(err).Str("filename", fh.Filename).Msg("Failed to store upload")
			} else {
				item.ImageRef = ref
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func readMultipartFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// ExportHandler turns voucher records into downloadable tabular files.
type ExportHandler struct {
	log zerolog.Logger
}

// NewExportHandler creates a new export handler.
func NewExportHandler(log zerolog.Logger) *ExportHandler {
	return &ExportHandler{log: log}
}

// ExportCSV handles POST /api/export/csv
func (h *ExportHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Records []pipeline.VoucherRecord `json:"records"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if len(req.Records) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "records is required")
		return
	}

	// Caller-supplied records get the same standing defaults as recognized
	// ones before they reach the mapper.
	for i := range req.Records {
		req.Records[i].ApplyDefaults()
	}

	filename := fmt.Sprintf("vouchers-%s.csv", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)

	if err := export.WriteCSV(w, req.Records); err != nil {
		// Headers are already sent; just log.
		h.log.Error().Err(err).Msg("Failed to write CSV export")
	}
}

// SubjectsHandler serves the chart of accounts.
type SubjectsHandler struct {
	registry *chart.Registry
	log      zerolog.Logger
}

// NewSubjectsHandler creates a new subjects handler.
func NewSubjectsHandler(registry *chart.Registry, log zerolog.Logger) *SubjectsHandler {
	return &SubjectsHandler{
		registry: registry,
		log:      log,
	}
}

// ListSubjects handles GET /api/subjects
func (h *SubjectsHandler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	entries := h.registry.Entries()

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"subjects": entries,
		"count":    len(entries),
	})
}

// GetSubject handles GET /api/subjects/{code}
func (h *SubjectsHandler) GetSubject(w http.ResponseWriter, r *http.Request, code string) {
	entry, ok := h.registry.LookupByCode(code)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Subject not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, entry)
}

// JobsHandler handles async batch job endpoints.
type JobsHandler struct {
	store     jobs.JobStore
	publisher jobs.Publisher
	images    imagestore.Store
	log       zerolog.Logger
}

// NewJobsHandler creates a new jobs handler. publisher and images may be
// nil, which disables enqueueing.
func NewJobsHandler(store jobs.JobStore, publisher jobs.Publisher, images imagestore.Store, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store:     store,
		publisher: publisher,
		images:    images,
		log:       log,
	}
}

// EnqueueBatch handles POST /api/jobs/batch
// Uploaded images are persisted first so the worker can fetch them later.
func (h *JobsHandler) EnqueueBatch(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil || h.images == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Async processing is not configured")
		return
	}

	ctx := r.Context()

	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "No files uploaded")
		return
	}

	job := &jobs.RecognizeBatchJob{}
	for _, fh := range files {
		data, err := readMultipartFile(fh)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("Reading %q failed", fh.Filename))
			return
		}
		ref, err := h.images.Save(ctx, fh.Filename, data)
		if err != nil {
			h.log.Error().Err(err).Str("filename", fh.Filename).Msg("Failed to store upload")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to store upload")
			return
		}
		job.Items = append(job.Items, jobs.BatchItemRef{Filename: fh.Filename, ImageRef: ref})
	}

	if err := h.publisher.PublishRecognizeBatch(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue batch job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue batch job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Int("items", len(job.Items)).Msg("Batch job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.JobID,
		"status": string(job.Status),
		"items":  len(job.Items),
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
