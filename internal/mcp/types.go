// Package mcp exposes document search and job inspection as MCP tools so
// assistant clients can query the knowledge base directly.
package mcp

import "time"

// SearchDocumentsInput defines the input parameters for the search_documents tool.
type SearchDocumentsInput struct {
	// Query is the search query, matched by both keyword and semantic similarity.
	Query string `json:"query" jsonschema:"required,description=The search query for finding relevant document chunks"`
	// MaxResults is the maximum number of chunks to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Maximum number of chunks to return"`
	// Method selects the fusion algorithm: rrf (default) or weighted.
	Method string `json:"method,omitempty" jsonschema:"description=Fusion method: rrf or weighted"`
}

// SearchDocumentsOutput contains the search results.
type SearchDocumentsOutput struct {
	// Results is the list of matching chunks ordered by fused relevance.
	Results []SearchResult `json:"results"`
	// Message provides informational context (e.g., "No matching documents found").
	Message string `json:"message,omitempty"`
}

// SearchResult represents a single chunk match from hybrid search.
type SearchResult struct {
	// Filename is the source document.
	Filename string `json:"filename"`
	// Page is the 1-based page the chunk came from.
	Page int `json:"page"`
	// Content is the chunk text.
	Content string `json:"content"`
	// Score is the fused relevance score.
	Score float64 `json:"score"`
}

// GetJobStatusInput defines the input parameters for the get_job_status tool.
type GetJobStatusInput struct {
	// JobID is the ingestion job identifier returned at upload time.
	JobID string `json:"job_id" jsonschema:"required,description=The ingestion job id to look up"`
}

// GetJobStatusOutput reports one job's lifecycle state.
type GetJobStatusOutput struct {
	JobID        string     `json:"job_id"`
	Filename     string     `json:"filename"`
	Status       string     `json:"status"`
	Progress     int        `json:"progress"`
	Message      string     `json:"message,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	ChunksCount  int        `json:"chunks_count,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Found        bool       `json:"found"`
}

// ListDocumentsInput defines the input parameters for the list_documents tool.
// This tool takes no parameters and lists all ingested documents.
type ListDocumentsInput struct {
	// No input parameters required
}

// ListDocumentsOutput contains the list of ingested document filenames.
type ListDocumentsOutput struct {
	// Filenames is every ingested document.
	Filenames []string `json:"filenames"`
	// Count is the total number of documents.
	Count int `json:"count"`
}
