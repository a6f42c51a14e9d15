package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HugoPaj/ai-chatbot-sub001/internal/document"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/jobs"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/retrieval"
)

type fakeSearcher struct {
	results []retrieval.Result
	err     error
	gotOpts retrieval.Options
}

func (f *fakeSearcher) Search(_ context.Context, _ string, opts retrieval.Options) ([]retrieval.Result, error) {
	f.gotOpts = opts
	return f.results, f.err
}

type fakeJobReader struct {
	job jobs.Job
	err error
}

func (f *fakeJobReader) Get(context.Context, string) (jobs.Job, error) {
	return f.job, f.err
}

type fakeLister struct {
	filenames []string
	err       error
}

func (f *fakeLister) ListFilenames(context.Context) ([]string, error) {
	return f.filenames, f.err
}

func TestSearchHandler_ReturnsChunks(t *testing.T) {
	searcher := &fakeSearcher{results: []retrieval.Result{
		{
			Chunk: document.Chunk{
				Content:  "heat transfer basics",
				Metadata: document.Metadata{Filename: "thermo.pdf", Page: 3},
			},
			Score: 0.42,
		},
	}}
	handler := makeSearchHandler(searcher)

	_, out, err := handler(context.Background(), nil, SearchDocumentsInput{Query: "heat"})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "thermo.pdf", out.Results[0].Filename)
	assert.Equal(t, 3, out.Results[0].Page)
	assert.Equal(t, 0.42, out.Results[0].Score)
	assert.Equal(t, 5, searcher.gotOpts.TopK)
}

func TestSearchHandler_NoResultsMessage(t *testing.T) {
	handler := makeSearchHandler(&fakeSearcher{})

	_, out, err := handler(context.Background(), nil, SearchDocumentsInput{Query: "nothing"})
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.NotEmpty(t, out.Message)
}

func TestSearchHandler_RejectsUnknownMethod(t *testing.T) {
	handler := makeSearchHandler(&fakeSearcher{})

	_, _, err := handler(context.Background(), nil, SearchDocumentsInput{Query: "x", Method: "cosine"})
	assert.Error(t, err)
}

func TestJobStatusHandler_Found(t *testing.T) {
	reader := &fakeJobReader{job: jobs.Job{
		ID:       "job-1",
		Filename: "report.pdf",
		Status:   jobs.StatusCompleted,
		Progress: 100,
		Result:   &jobs.Result{ChunksCount: 12},
	}}
	handler := makeJobStatusHandler(reader)

	_, out, err := handler(context.Background(), nil, GetJobStatusInput{JobID: "job-1"})
	require.NoError(t, err)
	assert.True(t, out.Found)
	assert.Equal(t, "completed", out.Status)
	assert.Equal(t, 12, out.ChunksCount)
}

func TestJobStatusHandler_NotFound(t *testing.T) {
	handler := makeJobStatusHandler(&fakeJobReader{err: jobs.ErrJobNotFound})

	_, out, err := handler(context.Background(), nil, GetJobStatusInput{JobID: "missing"})
	require.NoError(t, err)
	assert.False(t, out.Found)
	assert.Equal(t, "missing", out.JobID)
}

func TestListHandler(t *testing.T) {
	handler := makeListHandler(&fakeLister{filenames: []string{"a.pdf", "b.pdf"}})

	_, out, err := handler(context.Background(), nil, ListDocumentsInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, out.Filenames)
}

func TestListHandler_Error(t *testing.T) {
	handler := makeListHandler(&fakeLister{err: errors.New("unreachable")})

	_, _, err := handler(context.Background(), nil, ListDocumentsInput{})
	assert.Error(t, err)
}
