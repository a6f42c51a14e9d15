// Package main provides the HTTP API and MCP server entry point.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/HugoPaj/ai-chatbot-sub001/internal/api"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/blob"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/config"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/dedupe"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/embedding"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/jobs"
	mcpserver "github.com/HugoPaj/ai-chatbot-sub001/internal/mcp"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/retrieval"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/vectorstore"
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Document ingestion and hybrid search API server",
	Long: `Serves the document upload, job status, and hybrid search HTTP API,
plus an MCP endpoint at /mcp for assistant clients.

Environment variables:
  API_ADDR       Listen address (default: :8080)
  QDRANT_HOST    Qdrant hostname (default: localhost)
  QDRANT_PORT    Qdrant gRPC port (default: 6334)
  POSTGRES_URL   Postgres connection string for the job ledger (required)
  DATA_DIR       Local blob storage directory (default: ./data)
  OPENAI_API_KEY OpenAI API key for embeddings (required)`,
	RunE: runServer,
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
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

	pool, err := jobs.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	ledger := jobs.NewStore(pool)
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

	retriever := retrieval.NewRetriever(embedder, store, store, cfg.SearchTimeout, logger)
	if err := retriever.Refresh(ctx); err != nil {
		logger.Warn("initial corpus refresh failed, keyword search starts empty", "error", err)
	}
	go retriever.RunRefresher(ctx, cfg.CorpusRefresh)

	apiServer := api.NewServer(ledger, retriever, dedupe.NewGate(store), blobs, store, ledger, logger)

	mcpSrv := mcpserver.NewServer(&mcpserver.Config{
		Searcher:  retriever,
		Jobs:      ledger,
		Documents: store,
	})

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(mcpSrv, nil))
	mux.Handle("/", apiServer.Handler())

	httpServer := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.APIAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
