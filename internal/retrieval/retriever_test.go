package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HugoPaj/ai-chatbot-sub001/internal/document"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/fusion"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/vectorstore"
)

type fakeEmbedder struct {
	embedding []float32
	err       error
}

func (f *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return f.embedding, f.err
}

type fakeSearcher struct {
	hits []vectorstore.ScoredChunk
	err  error
}

func (f *fakeSearcher) Query(context.Context, []float32, int) ([]vectorstore.ScoredChunk, error) {
	return f.hits, f.err
}

type fakeLister struct {
	chunks []document.Chunk
	err    error
	calls  int
}

func (f *fakeLister) ListChunks(context.Context) ([]document.Chunk, error) {
	f.calls++
	return f.chunks, f.err
}

func chunk(id, content string) document.Chunk {
	return document.Chunk{ID: id, Content: content, ContentType: document.ContentTypeText}
}

func newTestRetriever(embedder QueryEmbedder, searcher VectorSearcher, lister ChunkLister) *Retriever {
	return NewRetriever(embedder, searcher, lister, time.Second, slog.New(slog.DiscardHandler))
}

func TestSearch_FusesBothLegs(t *testing.T) {
	corpus := []document.Chunk{
		chunk("doc-a", "thermodynamics of heat engines"),
		chunk("doc-b", "heat transfer in solids"),
		chunk("doc-c", "fluid dynamics basics"),
	}
	searcher := &fakeSearcher{hits: []vectorstore.ScoredChunk{
		{Chunk: corpus[1], Score: 0.92},
		{Chunk: corpus[2], Score: 0.61},
	}}
	r := newTestRetriever(&fakeEmbedder{embedding: make([]float32, 4)}, searcher, &fakeLister{chunks: corpus})
	require.NoError(t, r.Refresh(context.Background()))

	results, err := r.Search(context.Background(), "heat", Options{TopK: 10})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// doc-b matched the keyword and placed first semantically, so it
	// accumulates contributions from both legs and ranks first.
	assert.Equal(t, "doc-b", results[0].Chunk.ID)
	assert.Positive(t, results[0].BM25Score)
	assert.Equal(t, 0.92, results[0].SemanticScore)

	ids := make([]string, len(results))
	for i, res := range results {
		ids[i] = res.Chunk.ID
	}
	assert.Contains(t, ids, "doc-a")
	assert.Contains(t, ids, "doc-c")
}

func TestSearch_DegradesWhenSemanticFails(t *testing.T) {
	corpus := []document.Chunk{chunk("doc-a", "heat engines and entropy")}
	r := newTestRetriever(
		&fakeEmbedder{err: errors.New("embedding service down")},
		&fakeSearcher{},
		&fakeLister{chunks: corpus},
	)
	require.NoError(t, r.Refresh(context.Background()))

	results, err := r.Search(context.Background(), "heat", Options{TopK: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-a", results[0].Chunk.ID)
	assert.Zero(t, results[0].SemanticScore)
}

func TestSearch_DegradesWhenKeywordEmpty(t *testing.T) {
	hit := chunk("doc-z", "completely unrelated content")
	searcher := &fakeSearcher{hits: []vectorstore.ScoredChunk{{Chunk: hit, Score: 0.7}}}
	r := newTestRetriever(&fakeEmbedder{embedding: make([]float32, 4)}, searcher, &fakeLister{})
	require.NoError(t, r.Refresh(context.Background()))

	results, err := r.Search(context.Background(), "quantum", Options{TopK: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	// Hydrated from the semantic payload even though the corpus snapshot is
	// empty.
	assert.Equal(t, "doc-z", results[0].Chunk.ID)
}

func TestSearch_ErrorsWhenBothLegsFail(t *testing.T) {
	r := newTestRetriever(
		&fakeEmbedder{err: errors.New("down")},
		&fakeSearcher{err: errors.New("down")},
		&fakeLister{err: errors.New("down")},
	)

	// Keyword leg succeeds against an empty index, so force both failures
	// via a cancelled context.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Search(ctx, "heat", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestSearch_TopKLimitsFusedResults(t *testing.T) {
	corpus := []document.Chunk{
		chunk("doc-a", "heat one"),
		chunk("doc-b", "heat two"),
		chunk("doc-c", "heat three"),
	}
	r := newTestRetriever(&fakeEmbedder{err: errors.New("down")}, &fakeSearcher{}, &fakeLister{chunks: corpus})
	require.NoError(t, r.Refresh(context.Background()))

	results, err := r.Search(context.Background(), "heat", Options{TopK: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_WeightedMethod(t *testing.T) {
	corpus := []document.Chunk{
		chunk("doc-a", "heat engines"),
		chunk("doc-b", "cold storage"),
	}
	searcher := &fakeSearcher{hits: []vectorstore.ScoredChunk{{Chunk: corpus[1], Score: 0.9}}}
	r := newTestRetriever(&fakeEmbedder{embedding: make([]float32, 4)}, searcher, &fakeLister{chunks: corpus})
	require.NoError(t, r.Refresh(context.Background()))

	results, err := r.Search(context.Background(), "heat", Options{
		TopK:    5,
		Method:  fusion.MethodWeighted,
		Weights: &fusion.Weights{BM25: 0.9, Semantic: 0.1},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Keyword-dominant weights place the keyword match first.
	assert.Equal(t, "doc-a", results[0].Chunk.ID)
}

func TestRefresh_SwapsCorpusWholesale(t *testing.T) {
	lister := &fakeLister{chunks: []document.Chunk{chunk("doc-a", "heat engines")}}
	r := newTestRetriever(&fakeEmbedder{err: errors.New("down")}, &fakeSearcher{}, lister)
	require.NoError(t, r.Refresh(context.Background()))

	results, err := r.Search(context.Background(), "heat", Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	lister.chunks = []document.Chunk{chunk("doc-b", "entropy and work")}
	require.NoError(t, r.Refresh(context.Background()))

	results, err = r.Search(context.Background(), "heat", Options{})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = r.Search(context.Background(), "entropy", Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-b", results[0].Chunk.ID)
}

func TestRefresh_PropagatesListerError(t *testing.T) {
	r := newTestRetriever(&fakeEmbedder{}, &fakeSearcher{}, &fakeLister{err: errors.New("unreachable")})
	assert.Error(t, r.Refresh(context.Background()))
}
