// Package config handles configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all training and serving configuration
type Config struct {
	// Training
	DataPath       string
	ModelDir       string
	ReportDir      string
	Seed           int64
	TestSize       float64
	SMOTENeighbors int
	SMOTERatio     float64
	Families       []string // empty => all families

	// Artifact storage
	ArtifactBackend string // "file" or "redis"
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	// Serving
	Port         string
	DefaultModel string

	// Observability
	LogLevel     string
	LogFormat    string
	OTLPEndpoint string
	MetricsAddr  string
}

const (
	DefaultDataPath       = "data/creditcard.csv"
	DefaultModelDir       = "models"
	DefaultSeed           = 42
	DefaultTestSize       = 0.2
	DefaultSMOTENeighbors = 5
	DefaultSMOTERatio     = 1.0
	DefaultBackend        = "file"
	DefaultRedisAddr      = "localhost:6379"
	DefaultPort           = "8080"
	DefaultModel          = "logreg"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

// Load reads configuration from environment variables.
// It loads a .env file if present (for local development).
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	var errs []string
	intVar := func(key string, def int64) int64 {
		v, err := getEnvInt64(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}
	floatVar := func(key string, def float64) float64 {
		v, err := getEnvFloat(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}

	cfg := &Config{
		DataPath:        getEnv("DATA_PATH", DefaultDataPath),
		ModelDir:        getEnv("MODEL_DIR", DefaultModelDir),
		ReportDir:       os.Getenv("REPORT_DIR"),
		Seed:            intVar("SEED", DefaultSeed),
		TestSize:        floatVar("TEST_SIZE", DefaultTestSize),
		SMOTENeighbors:  int(intVar("SMOTE_NEIGHBORS", DefaultSMOTENeighbors)),
		SMOTERatio:      floatVar("SMOTE_RATIO", DefaultSMOTERatio),
		Families:        SplitList(os.Getenv("FAMILIES")),
		ArtifactBackend: getEnv("ARTIFACT_BACKEND", DefaultBackend),
		RedisAddr:       getEnv("REDIS_ADDR", DefaultRedisAddr),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         int(intVar("REDIS_DB", 0)),
		Port:            getEnv("PORT", DefaultPort),
		DefaultModel:    getEnv("DEFAULT_MODEL", DefaultModel),
		LogLevel:        getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:       getEnv("LOG_FORMAT", DefaultLogFormat),
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		MetricsAddr:     os.Getenv("METRICS_ADDR"),
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.TestSize <= 0 || c.TestSize >= 1 {
		return fmt.Errorf("TEST_SIZE must be in (0, 1), got %v", c.TestSize)
	}
	if c.SMOTENeighbors < 1 {
		return fmt.Errorf("SMOTE_NEIGHBORS must be positive, got %d", c.SMOTENeighbors)
	}
	if c.SMOTERatio <= 0 || c.SMOTERatio > 1 {
		return fmt.Errorf("SMOTE_RATIO must be in (0, 1], got %v", c.SMOTERatio)
	}
	switch c.ArtifactBackend {
	case "file":
		if c.ModelDir == "" {
			return fmt.Errorf("MODEL_DIR is required for the file backend")
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis backend")
		}
	default:
		return fmt.Errorf("ARTIFACT_BACKEND must be file or redis, got %q", c.ArtifactBackend)
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

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	i, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %q is not an integer", key, value)
	}
	return i, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %q is not a number", key, value)
	}
	return f, nil
}

// SplitList splits a comma-separated value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
