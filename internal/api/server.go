// Package api exposes the document ingestion and search endpoints over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/HugoPaj/ai-chatbot-sub001/internal/jobs"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/retrieval"
)

// JobLedger is the slice of the job store the API needs.
type JobLedger interface {
	Create(ctx context.Context, j jobs.Job) (string, error)
	Get(ctx context.Context, id string) (jobs.Job, error)
}

// Searcher serves hybrid queries and corpus refreshes.
type Searcher interface {
	Search(ctx context.Context, query string, opts retrieval.Options) ([]retrieval.Result, error)
	Refresh(ctx context.Context) error
}

// Deduper answers whether a content hash is already ingested.
type Deduper interface {
	Check(ctx context.Context, contentHash string) (bool, string, error)
}

// BlobStore persists uploaded files and deletes them on cascade.
type BlobStore interface {
	Put(ctx context.Context, filename string, data []byte) (string, error)
	Delete(ctx context.Context, ref string) error
}

// DocumentStore is the slice of the vector store the API needs.
type DocumentStore interface {
	DeleteByFilename(ctx context.Context, filename string) (bool, error)
	ListBlobURLs(ctx context.Context, filename string) ([]string, error)
	ListFilenames(ctx context.Context) ([]string, error)
	Health(ctx context.Context) error
}

// Pinger reports backend liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires the HTTP routes to the ingestion and retrieval components.
type Server struct {
	ledger    JobLedger
	searcher  Searcher
	deduper   Deduper
	blobs     BlobStore
	documents DocumentStore
	dbPing    Pinger
	logger    *slog.Logger
}

func NewServer(ledger JobLedger, searcher Searcher, deduper Deduper, blobs BlobStore, documents DocumentStore, dbPing Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ledger:    ledger,
		searcher:  searcher,
		deduper:   deduper,
		blobs:     blobs,
		documents: documents,
		dbPing:    dbPing,
		logger:    logger,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/documents", s.handleUpload)
	mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	mux.HandleFunc("DELETE /api/documents/{filename}", s.handleDeleteDocument)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("GET /health", s.handleHealth)
	return withCORS(s.withLogging(mux))
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"elapsed", time.Since(start))
	})
}
