package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Null-key policies accepted by MCPREPORTS_NULL_KEYS.
const (
	NullKeysDrop   = "drop"
	NullKeysBucket = "bucket"
)

// Config is the process configuration for cmd/server and cmd/reportctl.
type Config struct {
	// Security
	AllowedDirs  []string
	EnableWrites bool

	// Runtime
	MaxConcurrentRequests int
	MaxOpenDatasets       int
	OperationTimeout      time.Duration
	DatasetIdleTTL        time.Duration
	MaxRowsPerLoad        int

	// Reports
	NullKeys        string
	UnknownKeyLabel string
	SummaryModel    string
	SummaryTokens   int

	// Logging
	LogLevel string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AllowedDirs:           getEnvPathList("MCPREPORTS_ALLOWED_DIRS"),
		EnableWrites:          getEnvBool("MCPREPORTS_ENABLE_WRITES", false),
		MaxConcurrentRequests: getEnvInt("MCPREPORTS_MAX_CONCURRENT_REQUESTS", DefaultMaxConcurrentRequests),
		MaxOpenDatasets:       getEnvInt("MCPREPORTS_MAX_OPEN_DATASETS", DefaultMaxOpenDatasets),
		OperationTimeout:      getEnvDuration("MCPREPORTS_OPERATION_TIMEOUT", DefaultOperationTimeout),
		DatasetIdleTTL:        getEnvDuration("MCPREPORTS_DATASET_TTL", DefaultDatasetIdleTTL),
		MaxRowsPerLoad:        getEnvInt("MCPREPORTS_MAX_ROWS", DefaultMaxRowsPerLoad),
		NullKeys:              strings.ToLower(getEnv("MCPREPORTS_NULL_KEYS", NullKeysDrop)),
		UnknownKeyLabel:       getEnv("MCPREPORTS_UNKNOWN_LABEL", DefaultUnknownKeyLabel),
		SummaryModel:          getEnv("MCPREPORTS_SUMMARY_MODEL", DefaultSummaryModel),
		SummaryTokens:         getEnvInt("MCPREPORTS_SUMMARY_TOKENS", DefaultSummaryTokens),
		LogLevel:              strings.ToLower(getEnv("MCPREPORTS_LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	if c.MaxConcurrentRequests <= 0 {
		problems = append(problems, fmt.Sprintf("max concurrent requests must be positive, got %d", c.MaxConcurrentRequests))
	}
	if c.MaxOpenDatasets <= 0 {
		problems = append(problems, fmt.Sprintf("max open datasets must be positive, got %d", c.MaxOpenDatasets))
	}
	if c.OperationTimeout <= 0 {
		problems = append(problems, "operation timeout must be positive")
	}
	if c.DatasetIdleTTL <= 0 {
		problems = append(problems, "dataset ttl must be positive")
	}
	if c.MaxRowsPerLoad <= 0 {
		problems = append(problems, fmt.Sprintf("max rows must be positive, got %d", c.MaxRowsPerLoad))
	}
	if c.NullKeys != NullKeysDrop && c.NullKeys != NullKeysBucket {
		problems = append(problems, fmt.Sprintf("invalid null key policy %q, must be one of: %s, %s", c.NullKeys, NullKeysDrop, NullKeysBucket))
	}
	if strings.TrimSpace(c.UnknownKeyLabel) == "" {
		problems = append(problems, "unknown key label cannot be empty")
	}
	if c.SummaryTokens <= 0 {
		problems = append(problems, "summary token budget must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("invalid log level %q, must be one of: debug, info, warn, error", c.LogLevel))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return defaultValue
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvPathList splits an os.PathListSeparator list, dropping blanks.
func getEnvPathList(key string) []string {
	list := os.Getenv(key)
	if list == "" {
		return nil
	}
	var out []string
	for _, p := range filepath.SplitList(list) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
