package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hzhu/voucher-scan/internal/archive"
	"github.com/hzhu/voucher-scan/internal/chart"
	"github.com/hzhu/voucher-scan/internal/config"
	"github.com/hzhu/voucher-scan/internal/export"
	"github.com/hzhu/voucher-scan/internal/llm"
	"github.com/hzhu/voucher-scan/internal/logger"
	"github.com/hzhu/voucher-scan/internal/ocr"
	"github.com/hzhu/voucher-scan/internal/pipeline"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runBatch()
	case "runs":
		listRuns()
	case "subjects":
		listSubjects()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Voucher Scan CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  recognize <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  run       Recognize voucher images and export the results")
	fmt.Println("  runs      List archived recognition runs")
	fmt.Println("  subjects  Print the chart of accounts")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'recognize <command> -h' for more information on a command.")
}

func runBatch() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	out := fs.String("out", "vouchers.csv", "CSV output path")
	asJSON := fs.Bool("json", false, "print full results as JSON instead of writing CSV")
	fs.Parse(os.Args[2:])

	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one image path is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	recognizer, err := buildRecognizer(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build recognizer")
	}

	items := make([]pipeline.Item, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			log.Fatal().Err(err).Str("path", p).Msg("Failed to read image")
		}
		items = append(items, pipeline.Item{Filename: filepath.Base(p), Image: data})
	}

	log.Info().Int("items", len(items)).Msg("Starting recognition batch")
	started := time.Now()
	result := recognizer.RunBatch(ctx, items)

	if cfg.ArchiveEnabled() {
		batchArchive, err := archive.New(ctx, cfg.BQProject, cfg.BQDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery archive")
		}
		defer batchArchive.Close()

		runID, err := batchArchive.RecordBatch(ctx, started, result)
		if err != nil {
			log.Error().Err(err).Msg("Failed to archive batch")
		} else {
			log.Info().Str("run_id", runID).Msg("Batch archived")
		}
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			log.Fatal().Err(err).Msg("Failed to encode results")
		}
		return
	}

	records := make([]pipeline.VoucherRecord, 0, result.SuccessCount)
	for _, o := range result.Outcomes {
		if o.Succeeded() {
			records = append(records, *o.Voucher)
		}
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatal().Err(err).Str("path", *out).Msg("Failed to create output file")
	}
	defer f.Close()

	if err := export.WriteCSV(f, records); err != nil {
		log.Fatal().Err(err).Msg("Failed to write CSV")
	}

	fmt.Printf("Processed %d images: %d succeeded, %d failed.\n", result.Total, result.SuccessCount, result.FailedCount)
	for _, o := range result.Outcomes {
		if !o.Succeeded() {
			fmt.Printf("  FAILED %s: %s\n", o.Filename, o.Reason)
		}
	}
	fmt.Printf("Wrote %s\n", *out)
}

func listRuns() {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	limit := fs.Int("limit", 20, "maximum runs to list")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if !cfg.ArchiveEnabled() {
		log.Fatal().Msg("BQ_PROJECT is not set; no archive to list")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	batchArchive, err := archive.New(ctx, cfg.BQProject, cfg.BQDataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery archive")
	}
	defer batchArchive.Close()

	runs, err := batchArchive.ListRuns(ctx, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list runs")
	}

	fmt.Printf("=== Recognition Runs (%d) ===\n", len(runs))
	for _, run := range runs {
		fmt.Printf("%s  started=%s  total=%d  ok=%d  failed=%d\n",
			run.RunID, run.StartedTS.Format(time.RFC3339), run.Total, run.SuccessCount, run.FailedCount)
	}
}

func listSubjects() {
	registry := chart.NewRegistry()
	for _, e := range registry.Entries() {
		fmt.Printf("%s  %s  (%s)\n", e.Code, e.Name, e.Category)
	}
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
