// Package document defines the core chunk model shared by the ingestion
// pipeline and both retrieval paths.
package document

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// ContentType classifies what a chunk carries.
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
)

// Metadata carries the indexing metadata attached to every chunk.
// All chunks extracted from one file share the same ContentHash.
type Metadata struct {
	Filename         string   // Original upload filename
	Page             int      // 1-based page number (1 for single-image uploads)
	Section          string   // Optional section label within a page
	ContentHash      string   // SHA-256 over the whole source file
	SourceURL        string   // Stable URL of the stored source binary
	ImageData        string   // Base64-encoded image payload, image chunks only
	RelatedImageURLs []string // Stored binary assets derived from this chunk
}

// Chunk is one retrievable fragment of a document. Chunks are immutable once
// written to the vector store and deleted only as a batch keyed by filename.
type Chunk struct {
	ID          string
	Content     string // Extracted text; may be empty for pure-image chunks
	ContentType ContentType
	Metadata    Metadata
	Embedding   []float32
}

// ChunkID derives the stable chunk identifier from the content hash, page,
// section and a short digest of the leading content bytes. The keyword and
// vector rankers must compute the same id from the same fields so a chunk is
// recognized across both result sets. Encoded as an MD5-based UUID so it is
// directly usable as a vector store point id.
func ChunkID(contentHash string, page int, section, content string) string {
	head := content
	if len(head) > 256 {
		head = head[:256]
	}
	sum := md5.Sum([]byte(head))
	chunkHash := hex.EncodeToString(sum[:])[:8]

	idSource := fmt.Sprintf("%s|%d|%s|%s", contentHash, page, section, chunkHash)
	return uuid.NewMD5(uuid.NameSpaceOID, []byte(idSource)).String()
}
