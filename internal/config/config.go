package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for both entry points.
type Config struct {
	Server ServerConfig
	Store  StoreConfig
	Import ImportConfig
	Scrape ScrapeConfig
}

type ServerConfig struct {
	Addr string
}

type StoreConfig struct {
	Path string
}

// ImportConfig drives the batch import coordinator.
type ImportConfig struct {
	DatasetPath string
	BatchSize   int
	// SelfBaseURL switches continuation to an HTTP self-call for time-boxed
	// deployments. Empty means in-process continuation.
	SelfBaseURL  string
	SharedSecret string
	BatchPause   time.Duration
}

// ScrapeConfig drives the valuation scraper lanes.
type ScrapeConfig struct {
	BaseURL        string
	Lanes          int
	MinInterval    time.Duration
	MaxAttempts    int
	RateLimitWait  time.Duration
	ServerErrWait  time.Duration
	ConnAbortWait  time.Duration
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	SessionTimeout time.Duration
}

// Load reads configuration from a .env file (when present) and the
// environment, with defaults for everything.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}

	return &Config{
		Server: ServerConfig{
			Addr: getEnv("SERVER_ADDR", ":8080"),
		},
		Store: StoreConfig{
			Path: getEnv("DATABASE_PATH", "properties.db"),
		},
		Import: ImportConfig{
			DatasetPath:  getEnv("DATASET_PATH", "data/search.json"),
			BatchSize:    getEnvInt("IMPORT_BATCH_SIZE", 10),
			SelfBaseURL:  getEnv("IMPORT_SELF_BASE_URL", ""),
			SharedSecret: getEnv("IMPORT_SHARED_SECRET", ""),
			BatchPause:   getEnvDuration("IMPORT_BATCH_PAUSE", time.Second),
		},
		Scrape: ScrapeConfig{
			BaseURL:        getEnv("VALUATION_BASE_URL", "https://property.example.com"),
			Lanes:          getEnvInt("SCRAPE_LANES", 3),
			MinInterval:    getEnvDuration("SCRAPE_MIN_INTERVAL", 3*time.Second),
			MaxAttempts:    getEnvInt("SCRAPE_MAX_ATTEMPTS", 25),
			RateLimitWait:  getEnvDuration("SCRAPE_RATE_LIMIT_WAIT", 30*time.Second),
			ServerErrWait:  getEnvDuration("SCRAPE_SERVER_ERR_WAIT", 15*time.Second),
			ConnAbortWait:  getEnvDuration("SCRAPE_CONN_ABORT_WAIT", time.Hour),
			BackoffBase:    getEnvDuration("SCRAPE_BACKOFF_BASE", 5*time.Second),
			BackoffCap:     getEnvDuration("SCRAPE_BACKOFF_CAP", 2*time.Minute),
			SessionTimeout: getEnvDuration("SCRAPE_SESSION_TIMEOUT", 30*time.Second),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
