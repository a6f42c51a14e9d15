// Package main provides the ingestion worker entry point.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/HugoPaj/ai-chatbot-sub001/internal/blob"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/config"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/embedding"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/extract"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/ingest"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/jobs"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/vectorstore"
)

var rootCmd = &cobra.Command{
	Use:   "worker",
	Short: "Document ingestion worker",
	Long: `Claims queued ingestion jobs, extracts document content, generates
embeddings, and stores the resulting chunks in Qdrant.

Environment variables:
  QDRANT_HOST    Qdrant hostname (default: localhost)
  QDRANT_PORT    Qdrant gRPC port (default: 6334)
  POSTGRES_URL   Postgres connection string for the job ledger (required)
  DATA_DIR       Local blob storage directory (default: ./data)
  WORKER_COUNT   Concurrent workers (default: 2)
  OPENAI_API_KEY OpenAI API key for embeddings (required)`,
	RunE: runWorker,
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := vectorstore.NewStore(cfg.QdrantHost, cfg.QdrantPort)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureCollection(ctx); err != nil {
		return err
	}

	dbPool, err := jobs.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	ledger := jobs.NewStore(dbPool)
	if err := ledger.Migrate(ctx); err != nil {
		return err
	}

	embeddingClient, err := embedding.NewClient()
	if err != nil {
		return err
	}
	embedder := embedding.NewEmbedder(embeddingClient, cfg.EmbedBatchSize)

	localBlobs, err := blob.NewFS(cfg.DataDir)
	if err != nil {
		return err
	}
	blobs := blob.NewResolver(localBlobs, blob.NewFetcher(nil))

	extractor := extract.NewExtractor(extract.DefaultMaxChunkSize, logger)

	pool := ingest.NewPool(ledger, blobs, extractor, embedder, store, ingest.Config{
		Workers:      cfg.WorkerCount,
		PollInterval: cfg.PollInterval,
		StaleAfter:   cfg.StaleAfter,
	}, logger)

	logger.Info("worker pool starting", "workers", cfg.WorkerCount)
	pool.Run(ctx)
	logger.Info("worker pool stopped")
	return nil
}
