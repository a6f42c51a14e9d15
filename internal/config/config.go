// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable the server and worker binaries read.
type Config struct {
	// HTTP API
	APIAddr string

	// Qdrant
	QdrantHost string
	QdrantPort int

	// Postgres job ledger
	PostgresURL string

	// Local blob storage
	DataDir string

	// Ingestion pipeline
	WorkerCount  int
	PollInterval time.Duration
	StaleAfter   time.Duration

	// Retrieval
	CorpusRefresh time.Duration
	SearchTimeout time.Duration

	// Embeddings
	EmbedBatchSize int
}

// Load reads configuration from the environment, applying defaults for
// anything unset. PostgresURL is required.
func Load() (*Config, error) {
	cfg := &Config{
		APIAddr:        getenv("API_ADDR", ":8080"),
		QdrantHost:     getenv("QDRANT_HOST", "localhost"),
		QdrantPort:     getenvInt("QDRANT_PORT", 6334),
		PostgresURL:    os.Getenv("POSTGRES_URL"),
		DataDir:        getenv("DATA_DIR", "./data"),
		WorkerCount:    getenvInt("WORKER_COUNT", 2),
		PollInterval:   getenvDuration("POLL_INTERVAL", 5*time.Second),
		StaleAfter:     getenvDuration("STALE_AFTER", 30*time.Minute),
		CorpusRefresh:  getenvDuration("CORPUS_REFRESH", time.Minute),
		SearchTimeout:  getenvDuration("SEARCH_TIMEOUT", 10*time.Second),
		EmbedBatchSize: getenvInt("EMBED_BATCH_SIZE", 500),
	}

	if cfg.PostgresURL == "" {
		return nil, fmt.Errorf("POSTGRES_URL environment variable not set")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
