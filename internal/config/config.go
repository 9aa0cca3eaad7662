// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/trellis/internal/domain"
)

// Config holds application configuration
type Config struct {
	DataDir      string // Base directory for all databases (always absolute)
	LogLevel     string
	Port         int
	DevMode      bool
	ScheduleSpec string // Cron expression for scheduled batches ("" disables)

	Experiment domain.ExperimentConfig
	Provider   ProviderConfig
	Archive    ArchiveConfig
}

// ProviderConfig bounds the price data provider.
type ProviderConfig struct {
	MaxConcurrent int // Upper bound on simultaneous provider requests
	RetryAttempts int
	CacheOnly     bool // Serve exclusively from the history DB (no network)
}

// ArchiveConfig holds S3 archive settings for the results database.
type ArchiveConfig struct {
	Enabled       bool
	Bucket        string
	Region        string
	Endpoint      string // Non-empty for S3-compatible services (MinIO etc.)
	AccessKey     string
	SecretKey     string
	Prefix        string
	RetentionDays int // Archives older than this are rotated out (0 keeps everything)
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory: TRELLIS_DATA_DIR, else ./data, always absolute
	dataDir := getEnv("TRELLIS_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	exp, err := loadExperimentConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:      absDataDir,
		Port:         getEnvAsInt("TRELLIS_PORT", 8001),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		ScheduleSpec: getEnv("SCHEDULE_SPEC", ""),
		Experiment:   exp,
		Provider: ProviderConfig{
			MaxConcurrent: getEnvAsInt("PROVIDER_MAX_CONCURRENT", 4),
			RetryAttempts: getEnvAsInt("PROVIDER_RETRY_ATTEMPTS", 3),
			CacheOnly:     getEnvAsBool("PROVIDER_CACHE_ONLY", false),
		},
		Archive: ArchiveConfig{
			Enabled:       getEnvAsBool("ARCHIVE_ENABLED", false),
			Bucket:        getEnv("ARCHIVE_S3_BUCKET", ""),
			Region:        getEnv("ARCHIVE_S3_REGION", "us-east-1"),
			Endpoint:      getEnv("ARCHIVE_S3_ENDPOINT", ""),
			AccessKey:     getEnv("ARCHIVE_S3_ACCESS_KEY", ""),
			SecretKey:     getEnv("ARCHIVE_S3_SECRET_KEY", ""),
			Prefix:        getEnv("ARCHIVE_S3_PREFIX", "trellis"),
			RetentionDays: getEnvAsInt("ARCHIVE_RETENTION_DAYS", 30),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadExperimentConfig reads the default experiment parameters from the
// environment. The CLI and the runs API can override any of these per batch.
func loadExperimentConfig() (domain.ExperimentConfig, error) {
	exp := domain.ExperimentConfig{
		Name:            getEnv("EXPERIMENT_NAME", "default"),
		Cash:            getEnvAsFloat("TRIAL_CASH", 1000000),
		NumSymbols:      getEnvAsInt("TRIAL_NUM_SYMBOLS", 5),
		Sectors:         splitList(getEnv("TRIAL_SECTORS", "")),
		Benchmark:       getEnv("TRIAL_BENCHMARK", "SPY"),
		AnnualRiskFree:  getEnvAsFloat("ANNUAL_RISK_FREE", domain.DefaultAnnualRiskFree),
		Diagonalize:     getEnvAsBool("DIAGONALIZE_COVARIANCE", false),
		BaseSeed:        int64(getEnvAsInt("TRIAL_BASE_SEED", 1)),
		Trials:          getEnvAsInt("TRIAL_COUNT", 30),
		BootstrapRounds: getEnvAsInt("BOOTSTRAP_ROUNDS", 1000),
		Workers:         getEnvAsInt("TRIAL_WORKERS", 4),
	}

	var err error
	exp.InSampleStart, err = parseDate("IN_SAMPLE_START", "2017-01-01")
	if err != nil {
		return exp, err
	}
	exp.InSampleEnd, err = parseDate("IN_SAMPLE_END", "2019-01-01")
	if err != nil {
		return exp, err
	}
	exp.OutSampleStart, err = parseDate("OUT_SAMPLE_START", "2019-01-01")
	if err != nil {
		return exp, err
	}
	exp.OutSampleEnd, err = parseDate("OUT_SAMPLE_END", "2020-01-01")
	if err != nil {
		return exp, err
	}

	return exp, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	exp := c.Experiment
	if exp.Cash <= 0 {
		return fmt.Errorf("TRIAL_CASH must be positive, got %v", exp.Cash)
	}
	if exp.NumSymbols <= 0 {
		return fmt.Errorf("TRIAL_NUM_SYMBOLS must be positive, got %d", exp.NumSymbols)
	}
	if exp.Trials <= 0 {
		return fmt.Errorf("TRIAL_COUNT must be positive, got %d", exp.Trials)
	}
	if exp.BootstrapRounds < 1 {
		return fmt.Errorf("BOOTSTRAP_ROUNDS must be at least 1, got %d", exp.BootstrapRounds)
	}
	if !exp.InSampleEnd.After(exp.InSampleStart) {
		return fmt.Errorf("IN_SAMPLE_END must be after IN_SAMPLE_START")
	}
	if !exp.OutSampleEnd.After(exp.OutSampleStart) {
		return fmt.Errorf("OUT_SAMPLE_END must be after OUT_SAMPLE_START")
	}
	if c.Provider.MaxConcurrent < 1 {
		return fmt.Errorf("PROVIDER_MAX_CONCURRENT must be at least 1, got %d", c.Provider.MaxConcurrent)
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("ARCHIVE_S3_BUCKET required when ARCHIVE_ENABLED is true")
	}
	if c.Archive.RetentionDays < 0 {
		return fmt.Errorf("ARCHIVE_RETENTION_DAYS must not be negative, got %d", c.Archive.RetentionDays)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// parseDate reads a YYYY-MM-DD env var, falling back to the given default.
func parseDate(key, defaultValue string) (time.Time, error) {
	raw := getEnv(key, defaultValue)
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return t, nil
}

// splitList parses a comma-separated env value into trimmed entries.
// Empty input yields nil, which means "all catalog sectors".
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
