//go:build integration

package vectorstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HugoPaj/ai-chatbot-sub001/internal/document"
)

// setupTestStore creates a test store and ensures the collection exists.
// Skips if Qdrant is not running.
func setupTestStore(t *testing.T) *Store {
	store, err := NewStore("localhost", 6334)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	err = store.EnsureCollection(context.Background())
	require.NoError(t, err, "Failed to ensure collection")

	return store
}

func testChunk(filename, contentHash, content string, page int) document.Chunk {
	embedding := make([]float32, VectorDimension)
	for i := range embedding {
		embedding[i] = 0.1
	}
	return document.Chunk{
		ID:          document.ChunkID(contentHash, page, "", content),
		Content:     content,
		ContentType: document.ContentTypeText,
		Metadata: document.Metadata{
			Filename:    filename,
			Page:        page,
			ContentHash: contentHash,
			SourceURL:   "https://blobs.example/" + filename,
		},
		Embedding: embedding,
	}
}

func TestChunkRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	hash := document.HashBytes([]byte("roundtrip source"))
	chunk := testChunk("roundtrip.pdf", hash, "heat transfer through composite walls", 3)

	require.NoError(t, store.Upsert(ctx, []document.Chunk{chunk}))

	query := make([]float32, VectorDimension)
	for i := range query {
		query[i] = 0.1
	}
	results, err := store.Query(ctx, query, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	var found *ScoredChunk
	for i := range results {
		if results[i].Chunk.ID == chunk.ID {
			found = &results[i]
			break
		}
	}
	require.NotNil(t, found, "upserted chunk should be retrievable")
	assert.Equal(t, chunk.Content, found.Chunk.Content)
	assert.Equal(t, chunk.Metadata.Filename, found.Chunk.Metadata.Filename)
	assert.Equal(t, chunk.Metadata.Page, found.Chunk.Metadata.Page)
	assert.Equal(t, chunk.Metadata.ContentHash, found.Chunk.Metadata.ContentHash)
	assert.Greater(t, found.Score, 0.9, "identical vector should score near 1")
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	chunk := testChunk("bad.pdf", "hash", "content", 1)
	chunk.Embedding = []float32{0.1, 0.2}

	err := store.Upsert(context.Background(), []document.Chunk{chunk})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestDuplicateCheck(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	hash := document.HashBytes([]byte("dup check source"))
	chunk := testChunk("dupcheck.pdf", hash, "duplicate check content", 1)
	require.NoError(t, store.Upsert(ctx, []document.Chunk{chunk}))

	res, err := store.DuplicateCheck(ctx, hash)
	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.Equal(t, "dupcheck.pdf", res.Filename)

	res, err = store.DuplicateCheck(ctx, document.HashBytes([]byte("never indexed")))
	require.NoError(t, err)
	assert.False(t, res.Exists)
	assert.Empty(t, res.Filename)
}

func TestDeleteByFilename_Cascade(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	hash := document.HashBytes([]byte("delete cascade source"))
	chunks := []document.Chunk{
		testChunk("cascade.pdf", hash, "first page content", 1),
		testChunk("cascade.pdf", hash, "second page content", 2),
	}
	chunks[1].Metadata.RelatedImageURLs = []string{"https://blobs.example/cascade-p2.png"}
	require.NoError(t, store.Upsert(ctx, chunks))

	urls, err := store.ListBlobURLs(ctx, "cascade.pdf")
	require.NoError(t, err)
	assert.Contains(t, urls, "https://blobs.example/cascade.pdf")
	assert.Contains(t, urls, "https://blobs.example/cascade-p2.png")

	deleted, err := store.DeleteByFilename(ctx, "cascade.pdf")
	require.NoError(t, err)
	assert.True(t, deleted)

	res, err := store.DuplicateCheck(ctx, hash)
	require.NoError(t, err)
	assert.False(t, res.Exists, "deleted chunks must not satisfy duplicate check")

	deleted, err = store.DeleteByFilename(ctx, "cascade.pdf")
	require.NoError(t, err)
	assert.False(t, deleted, "second delete finds nothing")
}

func TestListChunksAndFilenames(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	hash := document.HashBytes([]byte("listing source"))
	require.NoError(t, store.Upsert(ctx, []document.Chunk{
		testChunk("listing.pdf", hash, "listable content", 1),
	}))

	chunks, err := store.ListChunks(ctx)
	require.NoError(t, err)
	var ids []string
	for _, c := range chunks {
		ids = append(ids, c.ID)
	}
	assert.Contains(t, ids, document.ChunkID(hash, 1, "", "listable content"))

	names, err := store.ListFilenames(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "listing.pdf")
}

func TestListChunks_NoDuplicatesAcrossScrollPages(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	// More than two scroll pages, so the pagination boundary is crossed at
	// least twice. The inclusive scroll offset must not re-emit boundary
	// points: a duplicated id here would become a phantom document in the
	// keyword corpus.
	hash := document.HashBytes([]byte("pagination source"))
	var chunks []document.Chunk
	for i := 0; i < 250; i++ {
		chunks = append(chunks, testChunk("pagination.pdf", hash, fmt.Sprintf("pagination content %d", i), i+1))
	}
	require.NoError(t, store.Upsert(ctx, chunks))
	defer store.DeleteByFilename(ctx, "pagination.pdf")

	listed, err := store.ListChunks(ctx)
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, c := range listed {
		seen[c.ID]++
	}
	for id, count := range seen {
		require.Equal(t, 1, count, "chunk %s listed more than once", id)
	}
	for _, c := range chunks {
		assert.Equal(t, 1, seen[c.ID], "chunk %s missing from listing", c.ID)
	}
}
