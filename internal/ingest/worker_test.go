package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HugoPaj/ai-chatbot-sub001/internal/document"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/extract"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/jobs"
)

type progressUpdate struct {
	Progress int
	Message  string
}

// fakeJobStore is an in-memory queue recording every lifecycle call.
type fakeJobStore struct {
	mu        sync.Mutex
	queue     []jobs.Job
	progress  map[string][]progressUpdate
	completed map[string]jobs.Result
	messages  map[string]string
	failed    map[string]string
	requeues  int
}

func newFakeJobStore(queued ...jobs.Job) *fakeJobStore {
	return &fakeJobStore{
		queue:     queued,
		progress:  map[string][]progressUpdate{},
		completed: map[string]jobs.Result{},
		messages:  map[string]string{},
		failed:    map[string]string{},
	}
}

func (f *fakeJobStore) Claim(context.Context) (jobs.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return jobs.Job{}, jobs.ErrNoQueuedJobs
	}
	job := f.queue[0]
	f.queue = f.queue[1:]
	job.Status = jobs.StatusProcessing
	return job, nil
}

func (f *fakeJobStore) SetProgress(_ context.Context, id string, progress int, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress[id] = append(f.progress[id], progressUpdate{progress, message})
	return nil
}

func (f *fakeJobStore) Complete(_ context.Context, id string, message string, res jobs.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[id] = res
	f.messages[id] = message
	return nil
}

func (f *fakeJobStore) Fail(_ context.Context, id string, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = errorMessage
	return nil
}

func (f *fakeJobStore) RequeueStale(context.Context, time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requeues++
	return 0, nil
}

func (f *fakeJobStore) drained() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue) == 0 && len(f.completed)+len(f.failed) > 0
}

type fakeBlobs struct {
	data []byte
	err  error
}

func (f *fakeBlobs) Get(context.Context, string) ([]byte, error) { return f.data, f.err }

type fakeExtractor struct {
	result *extract.Result
	err    error
	panics bool
}

func (f *fakeExtractor) Extract(context.Context, []byte, string, string, string) (*extract.Result, error) {
	if f.panics {
		panic("parser blew up")
	}
	return f.result, f.err
}

type fakeEmbedder struct{ err error }

func (f *fakeEmbedder) EmbedChunks(_ context.Context, chunks []document.Chunk) error {
	if f.err != nil {
		return f.err
	}
	for i := range chunks {
		chunks[i].Embedding = []float32{1, 2, 3}
	}
	return nil
}

type fakeVectors struct {
	mu     sync.Mutex
	chunks []document.Chunk
	err    error
}

func (f *fakeVectors) Upsert(_ context.Context, chunks []document.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func testJob(id string) jobs.Job {
	return jobs.Job{
		ID:        id,
		Filename:  "report.pdf",
		FileType:  document.MIMEPDF,
		SourceURL: "blobs/report.pdf",
		Status:    jobs.StatusQueued,
	}
}

func extractResult(chunkCount, pages, skipped int) *extract.Result {
	res := &extract.Result{TotalPages: pages}
	for i := 0; i < chunkCount; i++ {
		res.Chunks = append(res.Chunks, document.Chunk{
			ID:      fmt.Sprintf("chunk-%d", i),
			Content: fmt.Sprintf("content %d", i),
		})
	}
	for i := 0; i < skipped; i++ {
		res.SkippedPages = append(res.SkippedPages, extract.PageError{Page: i + 1, Reason: "unreadable"})
	}
	return res
}

func newTestPool(store JobStore, blobs BlobGetter, ex Extractor, em Embedder, v VectorWriter) *Pool {
	return NewPool(store, blobs, ex, em, v,
		Config{Workers: 1, PollInterval: 10 * time.Millisecond, StaleAfter: time.Minute},
		slog.New(slog.DiscardHandler))
}

func runUntil(t *testing.T, pool *Pool, done func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(finished)
	}()

	deadline := time.After(5 * time.Second)
	for !done() {
		select {
		case <-deadline:
			cancel()
			<-finished
			t.Fatal("pool did not reach expected state in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-finished
}

func TestPool_ProcessesJobSuccessfully(t *testing.T) {
	store := newFakeJobStore(testJob("job-1"))
	vectors := &fakeVectors{}
	pool := newTestPool(store, &fakeBlobs{data: []byte("pdf")}, &fakeExtractor{result: extractResult(3, 2, 0)}, &fakeEmbedder{}, vectors)

	runUntil(t, pool, store.drained)

	res, ok := store.completed["job-1"]
	require.True(t, ok, "job should be completed")
	assert.Equal(t, 3, res.ChunksCount)
	assert.Equal(t, 2, res.TotalPages)
	assert.GreaterOrEqual(t, res.ProcessingTimeMs, int64(0))
	assert.Equal(t, "Successfully processed and stored 3 chunks", store.messages["job-1"])
	assert.Len(t, vectors.chunks, 3)
	for _, c := range vectors.chunks {
		assert.NotEmpty(t, c.Embedding)
	}
}

func TestPool_ProgressCheckpointsInOrder(t *testing.T) {
	store := newFakeJobStore(testJob("job-1"))
	pool := newTestPool(store, &fakeBlobs{data: []byte("pdf")}, &fakeExtractor{result: extractResult(1, 1, 0)}, &fakeEmbedder{}, &fakeVectors{})

	runUntil(t, pool, store.drained)

	updates := store.progress["job-1"]
	require.Len(t, updates, 4)
	assert.Equal(t, progressUpdate{10, "Downloading file"}, updates[0])
	assert.Equal(t, progressUpdate{30, "Extracting document content"}, updates[1])
	assert.Equal(t, progressUpdate{60, "Generating embeddings"}, updates[2])
	assert.Equal(t, progressUpdate{90, "Storing in vector database"}, updates[3])
}

func TestPool_SkippedPagesNotedInMessage(t *testing.T) {
	store := newFakeJobStore(testJob("job-1"))
	pool := newTestPool(store, &fakeBlobs{data: []byte("pdf")}, &fakeExtractor{result: extractResult(2, 4, 2)}, &fakeEmbedder{}, &fakeVectors{})

	runUntil(t, pool, store.drained)

	assert.Equal(t, "Successfully processed and stored 2 chunks (2 pages skipped as unreadable)", store.messages["job-1"])
}

func TestPool_FailsJobOnDownloadError(t *testing.T) {
	store := newFakeJobStore(testJob("job-1"))
	pool := newTestPool(store, &fakeBlobs{err: errors.New("blob missing")}, &fakeExtractor{}, &fakeEmbedder{}, &fakeVectors{})

	runUntil(t, pool, store.drained)

	assert.Contains(t, store.failed["job-1"], "failed to download file")
	assert.Empty(t, store.completed)
}

func TestPool_FailsJobOnExtractionError(t *testing.T) {
	store := newFakeJobStore(testJob("job-1"))
	pool := newTestPool(store, &fakeBlobs{data: []byte("x")}, &fakeExtractor{err: extract.ErrExtractionFailed}, &fakeEmbedder{}, &fakeVectors{})

	runUntil(t, pool, store.drained)

	assert.Contains(t, store.failed["job-1"], "failed to extract content")
}

func TestPool_FailsJobOnEmbeddingError(t *testing.T) {
	store := newFakeJobStore(testJob("job-1"))
	pool := newTestPool(store, &fakeBlobs{data: []byte("x")}, &fakeExtractor{result: extractResult(1, 1, 0)}, &fakeEmbedder{err: errors.New("rate limited")}, &fakeVectors{})

	runUntil(t, pool, store.drained)

	assert.Contains(t, store.failed["job-1"], "failed to generate embeddings")
}

func TestPool_FailsJobOnStoreError(t *testing.T) {
	store := newFakeJobStore(testJob("job-1"))
	pool := newTestPool(store, &fakeBlobs{data: []byte("x")}, &fakeExtractor{result: extractResult(1, 1, 0)}, &fakeEmbedder{}, &fakeVectors{err: errors.New("unreachable")})

	runUntil(t, pool, store.drained)

	assert.Contains(t, store.failed["job-1"], "failed to store vectors")
}

func TestPool_RecoversFromPanicAndContinues(t *testing.T) {
	store := newFakeJobStore(testJob("job-1"), testJob("job-2"))
	extractor := &fakeExtractor{panics: true}
	pool := newTestPool(store, &fakeBlobs{data: []byte("x")}, extractor, &fakeEmbedder{}, &fakeVectors{})

	runUntil(t, pool, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.failed) == 2
	})

	assert.Contains(t, store.failed["job-1"], "internal error")
	assert.Contains(t, store.failed["job-2"], "internal error")
}

func TestPool_ProcessesAllQueuedJobs(t *testing.T) {
	store := newFakeJobStore(testJob("job-1"), testJob("job-2"), testJob("job-3"))
	pool := NewPool(store, &fakeBlobs{data: []byte("x")}, &fakeExtractor{result: extractResult(1, 1, 0)}, &fakeEmbedder{}, &fakeVectors{},
		Config{Workers: 3, PollInterval: 10 * time.Millisecond, StaleAfter: time.Minute},
		slog.New(slog.DiscardHandler))

	runUntil(t, pool, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.completed) == 3
	})
}

func TestPool_RunsStaleRequeuer(t *testing.T) {
	store := newFakeJobStore()
	pool := NewPool(store, &fakeBlobs{}, &fakeExtractor{}, &fakeEmbedder{}, &fakeVectors{},
		Config{Workers: 1, PollInterval: 10 * time.Millisecond, StaleAfter: 40 * time.Millisecond},
		slog.New(slog.DiscardHandler))

	runUntil(t, pool, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.requeues >= 1
	})
}
