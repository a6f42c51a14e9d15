// Package ingest runs the asynchronous document processing pipeline: claim a
// queued job, download the file, extract chunks, embed them, and store the
// vectors, reporting progress along the way.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/HugoPaj/ai-chatbot-sub001/internal/document"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/extract"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/jobs"
)

const (
	DefaultWorkerCount  = 2
	DefaultPollInterval = 5 * time.Second
	DefaultStaleAfter   = 30 * time.Minute
)

// Progress checkpoints reported while a job moves through the pipeline.
const (
	progressDownloading = 10
	progressExtracting  = 30
	progressEmbedding   = 60
	progressStoring     = 90
)

// JobStore is the slice of the job ledger the pipeline needs.
type JobStore interface {
	Claim(ctx context.Context) (jobs.Job, error)
	SetProgress(ctx context.Context, id string, progress int, message string) error
	Complete(ctx context.Context, id string, message string, res jobs.Result) error
	Fail(ctx context.Context, id string, errorMessage string) error
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// BlobGetter resolves a job's source reference to the raw file bytes.
type BlobGetter interface {
	Get(ctx context.Context, ref string) ([]byte, error)
}

// Extractor converts raw file bytes into content chunks.
type Extractor interface {
	Extract(ctx context.Context, data []byte, filename, fileType, sourceURL string) (*extract.Result, error)
}

// Embedder fills in chunk embeddings in place.
type Embedder interface {
	EmbedChunks(ctx context.Context, chunks []document.Chunk) error
}

// VectorWriter persists embedded chunks.
type VectorWriter interface {
	Upsert(ctx context.Context, chunks []document.Chunk) error
}

// Config tunes the worker pool.
type Config struct {
	Workers      int
	PollInterval time.Duration
	StaleAfter   time.Duration
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkerCount
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = DefaultStaleAfter
	}
}

// Pool polls the job ledger and processes claimed jobs concurrently. A job
// failure marks that job failed and the worker moves on; workers never stop
// on job errors.
type Pool struct {
	store     JobStore
	blobs     BlobGetter
	extractor Extractor
	embedder  Embedder
	vectors   VectorWriter
	cfg       Config
	logger    *slog.Logger
}

func NewPool(store JobStore, blobs BlobGetter, extractor Extractor, embedder Embedder, vectors VectorWriter, cfg Config, logger *slog.Logger) *Pool {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		store:     store,
		blobs:     blobs,
		extractor: extractor,
		embedder:  embedder,
		vectors:   vectors,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run starts the workers and the stale-job requeuer and blocks until ctx is
// cancelled and all workers have drained.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.runWorker(ctx, id)
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.runRequeuer(ctx)
	}()

	wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	logger := p.logger.With("worker", id)
	logger.Info("worker started")

	for {
		job, err := p.store.Claim(ctx)
		switch {
		case ctx.Err() != nil:
			logger.Info("worker stopping")
			return
		case errors.Is(err, jobs.ErrNoQueuedJobs):
			if !sleep(ctx, p.cfg.PollInterval) {
				logger.Info("worker stopping")
				return
			}
			continue
		case err != nil:
			logger.Error("failed to claim job", "error", err)
			if !sleep(ctx, p.cfg.PollInterval) {
				return
			}
			continue
		}

		p.processJob(ctx, logger, job)
	}
}

// runRequeuer periodically reverts jobs stuck in processing back to queued so
// work lost to a crashed worker is retried.
func (p *Pool) runRequeuer(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.StaleAfter / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.store.RequeueStale(ctx, p.cfg.StaleAfter)
			if err != nil {
				p.logger.Warn("failed to requeue stale jobs", "error", err)
				continue
			}
			if n > 0 {
				p.logger.Info("requeued stale jobs", "count", n)
			}
		}
	}
}

// processJob runs the full pipeline for one claimed job. Panics from
// third-party parsers are contained and recorded as job failures.
func (p *Pool) processJob(ctx context.Context, logger *slog.Logger, job jobs.Job) {
	logger = logger.With("job", job.ID, "filename", job.Filename)
	logger.Info("processing job")
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing job", "panic", r)
			p.fail(ctx, logger, job.ID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	p.progress(ctx, logger, job.ID, progressDownloading, "Downloading file")
	data, err := p.blobs.Get(ctx, job.SourceURL)
	if err != nil {
		p.fail(ctx, logger, job.ID, fmt.Sprintf("failed to download file: %v", err))
		return
	}

	p.progress(ctx, logger, job.ID, progressExtracting, "Extracting document content")
	extracted, err := p.extractor.Extract(ctx, data, job.Filename, job.FileType, job.SourceURL)
	if err != nil {
		p.fail(ctx, logger, job.ID, fmt.Sprintf("failed to extract content: %v", err))
		return
	}

	p.progress(ctx, logger, job.ID, progressEmbedding, "Generating embeddings")
	if err := p.embedder.EmbedChunks(ctx, extracted.Chunks); err != nil {
		p.fail(ctx, logger, job.ID, fmt.Sprintf("failed to generate embeddings: %v", err))
		return
	}

	p.progress(ctx, logger, job.ID, progressStoring, "Storing in vector database")
	if err := p.vectors.Upsert(ctx, extracted.Chunks); err != nil {
		p.fail(ctx, logger, job.ID, fmt.Sprintf("failed to store vectors: %v", err))
		return
	}

	message := fmt.Sprintf("Successfully processed and stored %d chunks", len(extracted.Chunks))
	if skipped := len(extracted.SkippedPages); skipped > 0 {
		message = fmt.Sprintf("%s (%d pages skipped as unreadable)", message, skipped)
	}
	result := jobs.Result{
		ChunksCount:      len(extracted.Chunks),
		TotalPages:       extracted.TotalPages,
		ProcessingTimeMs: time.Since(started).Milliseconds(),
	}
	if err := p.store.Complete(ctx, job.ID, message, result); err != nil {
		logger.Error("failed to mark job completed", "error", err)
		return
	}

	logger.Info("job completed",
		"chunks", result.ChunksCount,
		"pages", result.TotalPages,
		"elapsed_ms", result.ProcessingTimeMs)
}

func (p *Pool) progress(ctx context.Context, logger *slog.Logger, id string, pct int, message string) {
	if err := p.store.SetProgress(ctx, id, pct, message); err != nil {
		logger.Warn("failed to update progress", "progress", pct, "error", err)
	}
}

func (p *Pool) fail(ctx context.Context, logger *slog.Logger, id, reason string) {
	logger.Error("job failed", "reason", reason)
	if err := p.store.Fail(ctx, id, reason); err != nil {
		logger.Error("failed to mark job failed", "error", err)
	}
}

// sleep waits for d or until ctx is done. Returns false when cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
