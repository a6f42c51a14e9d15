// Package vectorstore wraps the external similarity-search service.
package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"

	"github.com/HugoPaj/ai-chatbot-sub001/internal/document"
)

// CollectionName is the single Qdrant collection for all document chunks.
const CollectionName = "document_chunks"

// VectorDimension is the embedding size for text-embedding-3-small.
const VectorDimension = 1536

// ScoredChunk pairs a chunk with its similarity score from a query.
type ScoredChunk struct {
	Chunk document.Chunk
	Score float64
}

// DuplicateResult is the outcome of a content-hash duplicate check.
type DuplicateResult struct {
	Exists   bool
	Filename string
}

// Store wraps the Qdrant client with connection management and health checks.
type Store struct {
	client *qdrant.Client
	host   string
	port   int
}

// NewStore creates a new Qdrant client with health validation.
// It performs a health check with retry on startup and fails fast if Qdrant is
// unreachable.
func NewStore(host string, port int) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	s := &Store{
		client: client,
		host:   host,
		port:   port,
	}

	if err := s.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}

	return s, nil
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *Store) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, exponentialBackoff)
}

// Health performs a single health check against Qdrant.
func (s *Store) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection ensures the chunk collection exists with proper
// configuration: 1536-dimension cosine vectors and payload indexes on the
// filterable fields. Idempotent.
func (s *Store) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range collections {
		if name == CollectionName {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: CollectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     VectorDimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	if err := s.createPayloadIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create payload indexes: %w", err)
	}

	return nil
}

// createPayloadIndexes creates indexes for the filterable fields. Without
// these, filename- and hash-scoped filters degrade badly at scale.
func (s *Store) createPayloadIndexes(ctx context.Context) error {
	fields := []string{
		"filename",     // Delete cascade and per-file listing
		"content_hash", // Duplicate check
		"content_type", // Distinguish text vs image chunks
	}

	for _, field := range fields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: CollectionName,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}

	return nil
}

// ClearCollection deletes all points in the collection and recreates it.
func (s *Store) ClearCollection(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, CollectionName); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return s.EnsureCollection(ctx)
}

// Close closes the Qdrant client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// upsertWithRetry performs the upsert operation with exponential backoff.
func (s *Store) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: CollectionName,
			Points:         points,
		})
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(exponentialBackoff, ctx))
}

// Upsert stores chunks with embeddings, batched in groups of 100.
func (s *Store) Upsert(ctx context.Context, chunks []document.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	for i, chunk := range chunks {
		if len(chunk.Embedding) != VectorDimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(chunk.Embedding), VectorDimension)
		}
	}

	batchSize := 100
	for i := 0; i < len(chunks); i += batchSize {
		end := min(i+batchSize, len(chunks))
		batch := chunks[i:end]
		points := make([]*qdrant.PointStruct, len(batch))

		for j, chunk := range batch {
			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(chunk.ID),
				Vectors: qdrant.NewVectors(chunk.Embedding...),
				Payload: qdrant.NewValueMap(payloadFromChunk(chunk)),
			}
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// Query performs a top-k similarity search and returns chunks with scores,
// ordered by score descending.
func (s *Store) Query(ctx context.Context, embedding []float32, topK int) ([]ScoredChunk, error) {
	if len(embedding) != VectorDimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(embedding), VectorDimension)
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CollectionName,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}

	scored := make([]ScoredChunk, 0, len(results))
	for _, result := range results {
		scored = append(scored, ScoredChunk{
			Chunk: chunkFromPayload(result.Id.GetUuid(), result.Payload),
			Score: float64(result.Score),
		})
	}

	return scored, nil
}

// DuplicateCheck reports whether content with the given hash is already
// indexed, and under which filename. Only already-indexed chunks count;
// in-flight jobs are deliberately not consulted.
func (s *Store) DuplicateCheck(ctx context.Context, contentHash string) (DuplicateResult, error) {
	results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: CollectionName,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("content_hash", contentHash),
			},
		},
		Limit:       qdrant.PtrOf(uint32(1)),
		WithPayload: qdrant.NewWithPayloadInclude("filename"),
	})
	if err != nil {
		return DuplicateResult{}, fmt.Errorf("failed to scroll for duplicate check: %w", err)
	}

	if len(results) == 0 {
		return DuplicateResult{}, nil
	}

	return DuplicateResult{
		Exists:   true,
		Filename: results[0].Payload["filename"].GetStringValue(),
	}, nil
}

// DeleteByFilename removes all chunks for a filename. Returns true if any
// chunks existed.
func (s *Store) DeleteByFilename(ctx context.Context, filename string) (bool, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("filename", filename),
		},
	}

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: CollectionName,
		Filter:         filter,
	})
	if err != nil {
		return false, fmt.Errorf("failed to count chunks for %s: %w", filename, err)
	}
	if count == 0 {
		return false, nil
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: CollectionName,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete chunks for %s: %w", filename, err)
	}

	return true, nil
}

// ListBlobURLs returns every stored binary asset URL referenced by chunks of
// the given filename (source binaries plus related images). Feeds the
// best-effort blob deletion cascade.
func (s *Store) ListBlobURLs(ctx context.Context, filename string) ([]string, error) {
	var urls []string
	seen := make(map[string]struct{})
	add := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	err := s.scroll(ctx, &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("filename", filename)},
	}, func(id string, payload map[string]*qdrant.Value) {
		add(payload["source_url"].GetStringValue())
		if list := payload["related_image_urls"].GetListValue(); list != nil {
			for _, val := range list.Values {
				add(val.GetStringValue())
			}
		}
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(urls)
	return urls, nil
}

// ListChunks returns every indexed chunk (without embeddings). Used to build
// the keyword index corpus.
func (s *Store) ListChunks(ctx context.Context) ([]document.Chunk, error) {
	var chunks []document.Chunk
	err := s.scroll(ctx, nil, func(id string, payload map[string]*qdrant.Value) {
		chunks = append(chunks, chunkFromPayload(id, payload))
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// ListFilenames returns all distinct indexed filenames, sorted.
func (s *Store) ListFilenames(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	err := s.scroll(ctx, nil, func(id string, payload map[string]*qdrant.Value) {
		if name := payload["filename"].GetStringValue(); name != "" {
			seen[name] = struct{}{}
		}
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// scroll iterates all points matching filter in pages of 100, invoking fn per
// point. The scroll offset is inclusive, so every page after the first starts
// with the previous page's boundary point; that point is skipped to keep each
// id visited exactly once.
func (s *Store) scroll(ctx context.Context, filter *qdrant.Filter, fn func(id string, payload map[string]*qdrant.Value)) error {
	var offset *qdrant.PointId
	var boundaryID string
	batchSize := uint32(100)

	for {
		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: CollectionName,
			Filter:         filter,
			Limit:          qdrant.PtrOf(batchSize),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return fmt.Errorf("failed to scroll chunks: %w", err)
		}

		for _, result := range results {
			id := result.Id.GetUuid()
			if offset != nil && id == boundaryID {
				continue
			}
			fn(id, result.Payload)
		}

		if uint32(len(results)) < batchSize {
			return nil
		}
		last := results[len(results)-1]
		offset = last.Id
		boundaryID = last.Id.GetUuid()
	}
}

// CollectionInfo contains collection statistics.
type CollectionInfo struct {
	PointsCount uint64
}

// GetCollectionInfo retrieves collection statistics including total chunk
// count.
func (s *Store) GetCollectionInfo(ctx context.Context) (*CollectionInfo, error) {
	collection, err := s.client.GetCollectionInfo(ctx, CollectionName)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return &CollectionInfo{PointsCount: collection.GetPointsCount()}, nil
}
