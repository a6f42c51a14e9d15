package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx pool against the given DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// Store persists ingestion jobs in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the jobs table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS ingestion_jobs (
  id                 uuid PRIMARY KEY,
  user_id            text NOT NULL,
  filename           text NOT NULL,
  file_size          bigint NOT NULL,
  file_type          text NOT NULL,
  content_hash       text NOT NULL,
  source_url         text NOT NULL DEFAULT '',
  status             text NOT NULL DEFAULT 'queued',
  progress           int NOT NULL DEFAULT 0,
  message            text NOT NULL DEFAULT '',
  error_message      text NOT NULL DEFAULT '',
  chunks_count       int,
  total_pages        int,
  processing_time_ms bigint,
  created_at         timestamptz NOT NULL DEFAULT now(),
  updated_at         timestamptz NOT NULL DEFAULT now(),
  started_at         timestamptz,
  completed_at       timestamptz
);
CREATE INDEX IF NOT EXISTS ingestion_jobs_status_created_idx
  ON ingestion_jobs (status, created_at)`)
	if err != nil {
		return fmt.Errorf("migrate jobs table: %w", err)
	}
	return nil
}

// Ping verifies ledger connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

const jobColumns = `
id, user_id, filename, file_size, file_type, content_hash, source_url,
status, progress, message, error_message,
chunks_count, total_pages, processing_time_ms,
created_at, updated_at, started_at, completed_at`

// Create inserts a new job in state queued and returns its id. The caller is
// responsible for running the deduplication gate first.
func (s *Store) Create(ctx context.Context, j Job) (string, error) {
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
INSERT INTO ingestion_jobs (id, user_id, filename, file_size, file_type, content_hash, source_url, status, message)
VALUES ($1, $2, $3, $4, $5, $6, $7, 'queued', 'Queued for processing')`,
		id, j.UserID, j.Filename, j.FileSize, j.FileType, j.ContentHash, j.SourceURL)
	if err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	return id, nil
}

// Get fetches one job by id.
func (s *Store) Get(ctx context.Context, id string) (Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM ingestion_jobs WHERE id=$1`, id)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, ErrJobNotFound
		}
		return Job{}, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// Claim atomically takes the oldest queued job and marks it processing.
// The single conditional UPDATE with FOR UPDATE SKIP LOCKED guarantees that
// under concurrent claimants exactly one worker wins each job. Returns
// ErrNoQueuedJobs when the queue is empty.
func (s *Store) Claim(ctx context.Context) (Job, error) {
	row := s.pool.QueryRow(ctx, `
UPDATE ingestion_jobs
SET status='processing',
    started_at=now(),
    updated_at=now(),
    progress=0,
    message='Starting document processing'
WHERE id = (
  SELECT id FROM ingestion_jobs
  WHERE status='queued'
  ORDER BY created_at ASC
  LIMIT 1
  FOR UPDATE SKIP LOCKED
)
RETURNING `+jobColumns)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, ErrNoQueuedJobs
		}
		return Job{}, fmt.Errorf("claim job: %w", err)
	}
	return j, nil
}

// SetProgress updates the advisory progress indicator while a job is
// processing. Progress never decreases; updates on non-processing jobs are
// dropped so terminal states stay immutable.
func (s *Store) SetProgress(ctx context.Context, id string, progress int, message string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE ingestion_jobs
SET progress=GREATEST(progress, $2), message=$3, updated_at=now()
WHERE id=$1 AND status='processing'`, id, progress, message)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// Complete transitions a processing job to completed with its result. The
// status guard makes the transition a compare-and-set: a job that is no longer
// processing (already terminal) is left untouched and ErrClaimConflict is
// returned.
func (s *Store) Complete(ctx context.Context, id string, message string, res Result) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE ingestion_jobs
SET status='completed',
    progress=100,
    message=$2,
    chunks_count=$3,
    total_pages=$4,
    processing_time_ms=$5,
    completed_at=now(),
    updated_at=now()
WHERE id=$1 AND status='processing'`,
		id, message, res.ChunksCount, res.TotalPages, res.ProcessingTimeMs)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClaimConflict
	}
	return nil
}

// Fail transitions a processing job to failed with a captured error message.
// Same compare-and-set guard as Complete.
func (s *Store) Fail(ctx context.Context, id string, errorMessage string) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE ingestion_jobs
SET status='failed',
    message='Processing failed',
    error_message=$2,
    completed_at=now(),
    updated_at=now()
WHERE id=$1 AND status='processing'`, id, errorMessage)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClaimConflict
	}
	return nil
}

// RequeueStale reverts jobs stuck in processing longer than olderThan back to
// queued. Covers worker crashes mid-job; terminal states are never touched.
func (s *Store) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
UPDATE ingestion_jobs
SET status='queued',
    progress=0,
    message='Requeued after stalled processing',
    started_at=NULL,
    updated_at=now()
WHERE status='processing' AND started_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("requeue stale jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanJob(row pgx.Row) (Job, error) {
	var j Job
	var chunksCount, totalPages *int
	var processingTimeMs *int64

	err := row.Scan(
		&j.ID, &j.UserID, &j.Filename, &j.FileSize, &j.FileType, &j.ContentHash, &j.SourceURL,
		&j.Status, &j.Progress, &j.Message, &j.ErrorMessage,
		&chunksCount, &totalPages, &processingTimeMs,
		&j.CreatedAt, &j.UpdatedAt, &j.StartedAt, &j.CompletedAt,
	)
	if err != nil {
		return Job{}, err
	}

	if chunksCount != nil && totalPages != nil && processingTimeMs != nil {
		j.Result = &Result{
			ChunksCount:      *chunksCount,
			TotalPages:       *totalPages,
			ProcessingTimeMs: *processingTimeMs,
		}
	}
	return j, nil
}
