package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

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
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recognizer, err := buildRecognizer(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build recognizer")
	}

	var store imagestore.Store
	if cfg.GCSBucket != "" {
		gcsStore, err := imagestore.NewGCSStore(ctx, cfg.GCSBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS image store")
		}
		defer gcsStore.Close()
		store = gcsStore
	} else {
		localStore, err := imagestore.NewLocalStore(cfg.UploadDir)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create local image store")
		}
		store = localStore
	}

	var batchArchive *archive.Archive
	if cfg.ArchiveEnabled() {
		batchArchive, err = archive.New(ctx, cfg.BQProject, cfg.BQDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery archive")
		}
		defer batchArchive.Close()
	}

	// In production, this would be replaced with Cloud Tasks or Pub/Sub.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.JobQueueSize, cfg.JobWorkers, jobStore)

	log.Info().Msg("Starting worker service")

	handler := func(ctx context.Context, job jobs.Job) error {
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

	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Worker service exited")
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
