// Package dedupe rejects re-ingestion of content already present in the
// vector store, keyed by the document's content hash.
package dedupe

import (
	"context"
	"fmt"

	"github.com/HugoPaj/ai-chatbot-sub001/internal/vectorstore"
)

// DuplicateChecker looks up whether any stored chunk carries a content hash.
type DuplicateChecker interface {
	DuplicateCheck(ctx context.Context, contentHash string) (vectorstore.DuplicateResult, error)
}

// Gate answers whether a content hash is already ingested.
type Gate struct {
	checker DuplicateChecker
}

func NewGate(checker DuplicateChecker) *Gate {
	return &Gate{checker: checker}
}

// Check returns the existing filename when the hash is already stored. The
// boolean is true for duplicates.
func (g *Gate) Check(ctx context.Context, contentHash string) (bool, string, error) {
	result, err := g.checker.DuplicateCheck(ctx, contentHash)
	if err != nil {
		return false, "", fmt.Errorf("duplicate check: %w", err)
	}
	return result.Exists, result.Filename, nil
}
