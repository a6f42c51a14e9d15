package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/HugoPaj/ai-chatbot-sub001/internal/fusion"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/jobs"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/retrieval"
)

// makeSearchHandler creates the search_documents tool handler.
func makeSearchHandler(searcher Searcher) func(
	context.Context, *mcp.CallToolRequest, SearchDocumentsInput,
) (*mcp.CallToolResult, SearchDocumentsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchDocumentsInput) (
		*mcp.CallToolResult, SearchDocumentsOutput, error,
	) {
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = 5
		}

		opts := retrieval.Options{TopK: maxResults}
		switch input.Method {
		case "", string(fusion.MethodRRF):
			opts.Method = fusion.MethodRRF
		case string(fusion.MethodWeighted):
			opts.Method = fusion.MethodWeighted
		default:
			return nil, SearchDocumentsOutput{}, fmt.Errorf("unknown fusion method %q", input.Method)
		}

		hits, err := searcher.Search(ctx, input.Query, opts)
		if err != nil {
			return nil, SearchDocumentsOutput{}, fmt.Errorf("search failed: %w", err)
		}

		results := make([]SearchResult, 0, len(hits))
		for _, hit := range hits {
			results = append(results, SearchResult{
				Filename: hit.Chunk.Metadata.Filename,
				Page:     hit.Chunk.Metadata.Page,
				Content:  hit.Chunk.Content,
				Score:    hit.Score,
			})
		}

		if len(results) == 0 {
			return nil, SearchDocumentsOutput{
				Results: []SearchResult{},
				Message: "No matching documents found. Try broader search terms.",
			}, nil
		}

		return nil, SearchDocumentsOutput{Results: results}, nil
	}
}

// makeJobStatusHandler creates the get_job_status tool handler.
func makeJobStatusHandler(reader JobReader) func(
	context.Context, *mcp.CallToolRequest, GetJobStatusInput,
) (*mcp.CallToolResult, GetJobStatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GetJobStatusInput) (
		*mcp.CallToolResult, GetJobStatusOutput, error,
	) {
		job, err := reader.Get(ctx, input.JobID)
		if err != nil {
			if errors.Is(err, jobs.ErrJobNotFound) {
				return nil, GetJobStatusOutput{JobID: input.JobID, Found: false}, nil
			}
			return nil, GetJobStatusOutput{}, fmt.Errorf("failed to load job: %w", err)
		}

		out := GetJobStatusOutput{
			JobID:        job.ID,
			Filename:     job.Filename,
			Status:       string(job.Status),
			Progress:     job.Progress,
			Message:      job.Message,
			ErrorMessage: job.ErrorMessage,
			CreatedAt:    job.CreatedAt,
			CompletedAt:  job.CompletedAt,
			Found:        true,
		}
		if job.Result != nil {
			out.ChunksCount = job.Result.ChunksCount
		}
		return nil, out, nil
	}
}

// makeListHandler creates the list_documents tool handler.
func makeListHandler(lister DocumentLister) func(
	context.Context, *mcp.CallToolRequest, ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListDocumentsInput) (
		*mcp.CallToolResult, ListDocumentsOutput, error,
	) {
		filenames, err := lister.ListFilenames(ctx)
		if err != nil {
			return nil, ListDocumentsOutput{}, fmt.Errorf("failed to list documents: %w", err)
		}
		if filenames == nil {
			filenames = []string{}
		}

		return nil, ListDocumentsOutput{
			Filenames: filenames,
			Count:     len(filenames),
		}, nil
	}
}
