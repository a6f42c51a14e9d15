// Package retrieval runs hybrid search: BM25 keyword scoring and vector
// similarity in parallel, fused into a single ranking.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/HugoPaj/ai-chatbot-sub001/internal/document"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/fusion"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/keyword"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/vectorstore"
)

// DefaultTopK is the number of fused results returned when the caller does
// not specify a limit.
const DefaultTopK = 10

// DefaultSearchTimeout bounds each search leg independently.
const DefaultSearchTimeout = 10 * time.Second

// ErrNoSources is returned when both search legs fail.
var ErrNoSources = errors.New("all search sources failed")

// QueryEmbedder turns a query string into an embedding vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// VectorSearcher runs similarity search against the vector store.
type VectorSearcher interface {
	Query(ctx context.Context, embedding []float32, topK int) ([]vectorstore.ScoredChunk, error)
}

// ChunkLister enumerates every stored chunk, used to build the keyword corpus.
type ChunkLister interface {
	ListChunks(ctx context.Context) ([]document.Chunk, error)
}

// Result is one hydrated search hit.
type Result struct {
	Chunk         document.Chunk `json:"chunk"`
	Score         float64        `json:"score"`
	BM25Score     float64        `json:"bm25Score,omitempty"`
	SemanticScore float64        `json:"semanticScore,omitempty"`
}

// Options tunes a single search call.
type Options struct {
	TopK    int
	Method  fusion.Method
	Weights *fusion.Weights
}

// Retriever serves hybrid queries against an in-memory keyword corpus and the
// vector store. The corpus is an immutable snapshot refreshed wholesale, so
// searches never block behind a rebuild.
type Retriever struct {
	embedder QueryEmbedder
	searcher VectorSearcher
	lister   ChunkLister
	timeout  time.Duration
	logger   *slog.Logger

	mu     sync.RWMutex
	index  *keyword.Index
	chunks map[string]document.Chunk
}

func NewRetriever(embedder QueryEmbedder, searcher VectorSearcher, lister ChunkLister, timeout time.Duration, logger *slog.Logger) *Retriever {
	if timeout <= 0 {
		timeout = DefaultSearchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		searcher: searcher,
		lister:   lister,
		timeout:  timeout,
		logger:   logger,
		index:    keyword.NewIndex(nil, keyword.DefaultK1, keyword.DefaultB),
		chunks:   map[string]document.Chunk{},
	}
}

// Refresh rebuilds the keyword corpus from the vector store's current
// contents and swaps it in atomically.
func (r *Retriever) Refresh(ctx context.Context) error {
	chunks, err := r.lister.ListChunks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list chunks for corpus refresh: %w", err)
	}

	docs := make([]keyword.Document, 0, len(chunks))
	byID := make(map[string]document.Chunk, len(chunks))
	for _, c := range chunks {
		docs = append(docs, keyword.Document{ID: c.ID, Content: c.Content})
		byID[c.ID] = c
	}
	index := keyword.NewIndex(docs, keyword.DefaultK1, keyword.DefaultB)

	r.mu.Lock()
	r.index = index
	r.chunks = byID
	r.mu.Unlock()

	r.logger.Debug("keyword corpus refreshed", "chunks", len(chunks))
	return nil
}

// RunRefresher refreshes the corpus on the given interval until ctx is done.
// Refresh failures are logged and retried on the next tick.
func (r *Retriever) RunRefresher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				r.logger.Warn("corpus refresh failed", "error", err)
			}
		}
	}
}

// Search runs both legs concurrently, each under its own timeout. A failed or
// timed-out leg degrades to an empty list; the call errors only when both
// legs fail.
func (r *Retriever) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	var (
		wg          sync.WaitGroup
		keywordHits []keyword.Result
		semantic    []vectorstore.ScoredChunk
		keywordErr  error
		semanticErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		keywordHits, keywordErr = r.searchKeyword(ctx, query, topK)
	}()
	go func() {
		defer wg.Done()
		semantic, semanticErr = r.searchSemantic(ctx, query, topK)
	}()
	wg.Wait()

	if keywordErr != nil {
		r.logger.Warn("keyword search failed, degrading to semantic only", "error", keywordErr)
	}
	if semanticErr != nil {
		r.logger.Warn("semantic search failed, degrading to keyword only", "error", semanticErr)
	}
	if keywordErr != nil && semanticErr != nil {
		return nil, fmt.Errorf("%w: keyword: %v; semantic: %v", ErrNoSources, keywordErr, semanticErr)
	}

	bm25List := make([]fusion.Ranked, len(keywordHits))
	for i, hit := range keywordHits {
		bm25List[i] = fusion.Ranked{ID: hit.ID, Score: hit.Score}
	}
	semanticList := make([]fusion.Ranked, len(semantic))
	for i, hit := range semantic {
		semanticList[i] = fusion.Ranked{ID: hit.Chunk.ID, Score: hit.Score}
	}

	fused := fusion.Fuse(bm25List, semanticList, opts.Method, opts.Weights)
	if len(fused) > topK {
		fused = fused[:topK]
	}

	return r.hydrate(fused, semantic), nil
}

func (r *Retriever) searchKeyword(ctx context.Context, query string, topK int) ([]keyword.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.mu.RLock()
	index := r.index
	r.mu.RUnlock()

	// The in-memory index is fast, but honor cancellation for symmetry with
	// the remote leg.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return index.Search(query, topK), nil
}

func (r *Retriever) searchSemantic(ctx context.Context, query string, topK int) ([]vectorstore.ScoredChunk, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	embedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return r.searcher.Query(ctx, embedding, topK)
}

// hydrate attaches chunk contents to fused ids, preferring the corpus
// snapshot and falling back to the semantic leg's payloads for chunks
// ingested since the last refresh.
func (r *Retriever) hydrate(fused []fusion.Result, semantic []vectorstore.ScoredChunk) []Result {
	r.mu.RLock()
	byID := r.chunks
	r.mu.RUnlock()

	fromSemantic := make(map[string]document.Chunk, len(semantic))
	for _, hit := range semantic {
		fromSemantic[hit.Chunk.ID] = hit.Chunk
	}

	results := make([]Result, 0, len(fused))
	for _, f := range fused {
		chunk, ok := byID[f.ID]
		if !ok {
			chunk, ok = fromSemantic[f.ID]
		}
		if !ok {
			r.logger.Warn("fused result references unknown chunk", "id", f.ID)
			continue
		}
		results = append(results, Result{
			Chunk:         chunk,
			Score:         f.Score,
			BM25Score:     f.BM25Score,
			SemanticScore: f.SemanticScore,
		})
	}
	return results
}
