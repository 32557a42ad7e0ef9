package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hzhu/voucher-scan/internal/api/handlers"
	"github.com/hzhu/voucher-scan/internal/api/middleware"
	"github.com/hzhu/voucher-scan/internal/archive"
	"github.com/hzhu/voucher-scan/internal/chart"
	"github.com/hzhu/voucher-scan/internal/config"
	"github.com/hzhu/voucher-scan/internal/imagestore"
	"github.com/hzhu/voucher-scan/internal/jobs"
	"github.com/hzhu/voucher-scan/internal/jobs/inmemory"
	"github.com/hzhu/voucher-scan/internal/llm"
	"github.com/hzhu/voucher-scan/internal/logger"
	"github.com/hzhu/voucher-scan/internal/ocr"
	"github.com/hzhu/voucher-scan/internal/pipeline"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	ctx := context.Background()

	recognizer, err := buildRecognizer(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build recognizer")
	}

	// Image storage
	var store imagestore.Store
	var localStore *imagestore.LocalStore
	if cfg.GCSBucket != "" {
		gcsStore, err := imagestore.NewGCSStore(ctx, cfg.GCSBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS image store")
		}
		defer gcsStore.Close()
		store = gcsStore
	} else {
		localStore, err = imagestore.NewLocalStore(cfg.UploadDir)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create local image store")
		}
		store = localStore
	}

	// BigQuery archive (optional)
	var archiver handlers.Archiver
	var batchArchive *archive.Archive
	if cfg.ArchiveEnabled() {
		batchArchive, err = archive.New(ctx, cfg.BQProject, cfg.BQDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery archive")
		}
		defer batchArchive.Close()
		archiver = batchArchive
	}

	// Job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.JobQueueSize, cfg.JobWorkers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := batchJobHandler(recognizer, store, batchArchive, log)

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Handlers
	registry := chart.NewRegistry()
	recognizeHandler := handlers.NewRecognizeHandler(recognizer, store, archiver, log)
	exportHandler := handlers.NewExportHandler(log)
	subjectsHandler := handlers.NewSubjectsHandler(registry, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, jobQueue, store, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/recognize/single", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			recognizeHandler.RecognizeSingle(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/recognize/batch", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			recognizeHandler.RecognizeBatch(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/export/csv", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			exportHandler.ExportCSV(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/subjects", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			subjectsHandler.ListSubjects(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/subjects/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			code := strings.TrimPrefix(r.URL.Path, "/api/subjects/")
			if code == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Subject code is required")
				return
			}
			subjectsHandler.GetSubject(w, r, code)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/batch", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			jobsHandler.EnqueueBatch(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Locally stored images are served back under their reference paths.
	if localStore != nil {
		mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(localStore.Dir()))))
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}

// buildRecognizer wires OCR provider, LLM client and extractor from config.
func buildRecognizer(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pipeline.Recognizer, error) {
	var provider ocr.Provider
	var normalizer *ocr.Normalizer

	switch cfg.OCRProvider {
	case "baidu":
		baidu := ocr.NewBaiduProvider(cfg.BaiduAPIKey, cfg.BaiduSecretKey, cfg.BaiduOCRURL)
		provider = baidu
		normalizer = &ocr.Normalizer{Bank: baidu}
	case "generic":
		provider = ocr.NewGenericProvider(cfg.GenericOCRKey, cfg.GenericOCRURL)
		normalizer = &ocr.Normalizer{}
	default:
		return nil, fmt.Errorf("unknown OCR provider %q", cfg.OCRProvider)
	}

	var client pipeline.LLMClient
	if cfg.LLMProvider == "gemini" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.LLMAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, fmt.Errorf("creating gemini client: %w", err)
		}
		client = gemini
	} else {
		client = llm.NewOpenAICompatClient(cfg.LLMProvider, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMEndpoint)
	}

	extractor := pipeline.NewExtractor(client, chart.NewRegistry())
	return pipeline.NewRecognizer(provider, normalizer, extractor, cfg.BatchConcurrency, log), nil
}

// batchJobHandler processes queued batch jobs: it loads the stored images,
// runs the batch and attaches the result to the job.
func batchJobHandler(recognizer *pipeline.Recognizer, store imagestore.Store, batchArchive *archive.Archive, log zerolog.Logger) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		batchJob, ok := job.(*jobs.RecognizeBatchJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", batchJob.JobID).
			Int("items", len(batchJob.Items)).
			Msg("Processing batch job")

		started := time.Now()
		items := make([]pipeline.Item, 0, len(batchJob.Items))
		for _, ref := range batchJob.Items {
			data, err := store.Load(ctx, ref.ImageRef)
			if err != nil {
				return fmt.Errorf("loading image %q: %w", ref.ImageRef, err)
			}
			items = append(items, pipeline.Item{
				Filename: ref.Filename,
				Image:    data,
				ImageRef: ref.ImageRef,
			})
		}

		result := recognizer.RunBatch(ctx, items)
		batchJob.Result = &result

		if batchArchive != nil {
			runID, err := batchArchive.RecordBatch(ctx, started, result)
			if err != nil {
				log.Error().Err(err).Str("job_id", batchJob.JobID).Msg("Failed to archive batch")
			} else {
				batchJob.ArchiveRunID = runID
			}
		}

		log.Info().
			Str("job_id", batchJob.JobID).
			Int("success", result.SuccessCount).
			Int("failed", result.FailedCount).
			Msg("Batch job completed")

		return nil
	}
}
