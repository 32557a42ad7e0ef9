// Package config reads service configuration from the environment. Values
// are loaded once and injected into constructors; nothing reads the
// environment after startup.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all settings for the server, worker and CLI binaries.
type Config struct {
	// HTTP server
	Port     string
	LogLevel string

	// OCR provider: "baidu" or "generic".
	OCRProvider    string
	BaiduAPIKey    string
	BaiduSecretKey string
	BaiduOCRURL    string
	GenericOCRURL  string
	GenericOCRKey  string

	// LLM provider: "doubao", "deepseek", "kimi", "openrouter" or "gemini".
	LLMProvider string
	LLMAPIKey   string
	LLMModel    string
	LLMEndpoint string

	// Image storage. GCSBucket empty means local disk under UploadDir.
	UploadDir string
	GCSBucket string

	// Batch processing
	BatchConcurrency int
	JobQueueSize     int
	JobWorkers       int

	// BigQuery archive. Empty project disables archiving.
	BQProject string
	BQDataset string
}

// Load builds a Config from the environment, applying defaults for
// everything that is optional.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     envOr("PORT", "8080"),
		LogLevel: envOr("LOG_LEVEL", "info"),

		OCRProvider:    envOr("OCR_PROVIDER", "baidu"),
		BaiduAPIKey:    os.Getenv("BAIDU_OCR_API_KEY"),
		BaiduSecretKey: os.Getenv("BAIDU_OCR_SECRET_KEY"),
		BaiduOCRURL:    os.Getenv("BAIDU_OCR_URL"),
		GenericOCRURL:  os.Getenv("GENERIC_OCR_URL"),
		GenericOCRKey:  os.Getenv("GENERIC_OCR_API_KEY"),

		LLMProvider: envOr("LLM_PROVIDER", "deepseek"),
		LLMAPIKey:   os.Getenv("LLM_API_KEY"),
		LLMModel:    os.Getenv("LLM_MODEL"),
		LLMEndpoint: os.Getenv("LLM_ENDPOINT"),

		UploadDir: envOr("UPLOAD_DIR", "uploads"),
		GCSBucket: os.Getenv("GCS_BUCKET"),

		BQProject: os.Getenv("BQ_PROJECT"),
		BQDataset: envOr("BQ_DATASET", "voucher_scan"),
	}

	var err error
	if cfg.BatchConcurrency, err = envInt("BATCH_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.JobQueueSize, err = envInt("JOB_QUEUE_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.JobWorkers, err = envInt("JOB_WORKERS", 2); err != nil {
		return nil, err
	}

	switch cfg.OCRProvider {
	case "baidu":
		if cfg.BaiduAPIKey == "" || cfg.BaiduSecretKey == "" {
			return nil, fmt.Errorf("config: BAIDU_OCR_API_KEY and BAIDU_OCR_SECRET_KEY are required for the baidu OCR provider")
		}
	case "generic":
		if cfg.GenericOCRURL == "" {
			return nil, fmt.Errorf("config: GENERIC_OCR_URL is required for the generic OCR provider")
		}
	default:
		return nil, fmt.Errorf("config: unknown OCR provider %q", cfg.OCRProvider)
	}

	if cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("config: LLM_API_KEY is required")
	}

	return cfg, nil
}

// ArchiveEnabled reports whether results should be persisted to BigQuery.
func (c *Config) ArchiveEnabled() bool {
	return c.BQProject != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("config: %s must be positive, got %d", key, n)
	}
	return n, nil
}
