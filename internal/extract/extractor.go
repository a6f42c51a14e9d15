// Package extract turns uploaded files into ordered content chunks.
package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/HugoPaj/ai-chatbot-sub001/internal/document"
)

var (
	ErrExtractionFailed  = errors.New("document extraction failed")
	ErrNoExtractableText = errors.New("no extractable text found")
)

// DefaultMaxChunkSize bounds the text length of a single chunk. Oversized page
// text is split at word boundaries.
const DefaultMaxChunkSize = 1000

// PageError records a page that could not be extracted. Malformed pages are
// reported in the job result but do not abort extraction of the remaining
// pages.
type PageError struct {
	Page   int
	Reason string
}

// Result is the output of one extraction invocation. All chunks share the
// file-level content hash.
type Result struct {
	Chunks       []document.Chunk
	TotalPages   int
	SkippedPages []PageError
}

// Extractor converts a raw file into content chunks keyed by page.
type Extractor struct {
	maxChunkSize int
	logger       *slog.Logger
}

// NewExtractor creates an Extractor. A non-positive maxChunkSize selects
// DefaultMaxChunkSize.
func NewExtractor(maxChunkSize int, logger *slog.Logger) *Extractor {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{maxChunkSize: maxChunkSize, logger: logger}
}

// Extract produces the chunk set for one uploaded file. The declared MIME type
// selects the extraction path; unsupported types fail fast.
func (e *Extractor) Extract(ctx context.Context, data []byte, filename, fileType, sourceURL string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contentHash := document.HashBytes(data)

	switch {
	case fileType == document.MIMEPDF:
		return e.extractPDF(data, filename, contentHash, sourceURL)
	case document.IsImageType(fileType):
		return e.extractImage(data, filename, contentHash, sourceURL)
	default:
		return nil, fmt.Errorf("%w: %s", document.ErrUnsupportedFileType, fileType)
	}
}

// extractPDF walks pages in order, emitting one or more chunks per page.
// Pages whose text cannot be recovered become image-typed placeholder chunks;
// pages the parser rejects outright are skipped and reported.
func (e *Extractor) extractPDF(data []byte, filename, contentHash, sourceURL string) (*Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %v", ErrExtractionFailed, err)
	}

	result := &Result{TotalPages: reader.NumPage()}

	for pageNo := 1; pageNo <= reader.NumPage(); pageNo++ {
		text, pageErr := extractPageText(reader, pageNo)
		if pageErr != nil {
			e.logger.Warn("skipping malformed page", "filename", filename, "page", pageNo, "error", pageErr)
			result.SkippedPages = append(result.SkippedPages, PageError{Page: pageNo, Reason: pageErr.Error()})
			continue
		}

		text = SanitizeText(text)
		meta := document.Metadata{
			Filename:    filename,
			Page:        pageNo,
			ContentHash: contentHash,
			SourceURL:   sourceURL,
		}

		if len(text) < minTextLength {
			// Predominantly non-text page (scanned diagram, figure-only page).
			content := fmt.Sprintf("Figure/Image found on page %d", pageNo)
			result.Chunks = append(result.Chunks, document.Chunk{
				ID:          document.ChunkID(contentHash, pageNo, "", content),
				Content:     content,
				ContentType: document.ContentTypeImage,
				Metadata:    meta,
			})
			continue
		}

		for _, part := range splitWords(text, e.maxChunkSize) {
			result.Chunks = append(result.Chunks, document.Chunk{
				ID:          document.ChunkID(contentHash, pageNo, "", part),
				Content:     part,
				ContentType: document.ContentTypeText,
				Metadata:    meta,
			})
		}
	}

	if len(result.Chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoExtractableText, filename)
	}
	return result, nil
}

// extractPageText isolates per-page parser panics; the upstream PDF library
// panics on some malformed page streams.
func extractPageText(reader *pdf.Reader, pageNo int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page parser panic: %v", r)
		}
	}()

	page := reader.Page(pageNo)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d is null", pageNo)
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("extract page text: %w", err)
	}
	return text, nil
}

// extractImage produces exactly one image chunk for a JPEG/PNG upload.
func (e *Extractor) extractImage(data []byte, filename, contentHash, sourceURL string) (*Result, error) {
	content := fmt.Sprintf("Image document: %s", filename)
	chunk := document.Chunk{
		ID:          document.ChunkID(contentHash, 1, "", content),
		Content:     content,
		ContentType: document.ContentTypeImage,
		Metadata: document.Metadata{
			Filename:    filename,
			Page:        1,
			ContentHash: contentHash,
			SourceURL:   sourceURL,
			ImageData:   base64.StdEncoding.EncodeToString(data),
		},
	}
	return &Result{Chunks: []document.Chunk{chunk}, TotalPages: 1}, nil
}

// minTextLength is the threshold below which a page counts as non-text.
const minTextLength = 4

// splitWords breaks text into chunks of at most maxLen characters, splitting
// on word boundaries. Words longer than maxLen become their own chunk.
func splitWords(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	words := strings.Fields(text)
	var out []string
	var current strings.Builder

	for _, word := range words {
		if current.Len() > 0 && current.Len()+1+len(word) > maxLen {
			out = append(out, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}
