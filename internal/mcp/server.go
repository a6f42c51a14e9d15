package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/HugoPaj/ai-chatbot-sub001/internal/jobs"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/retrieval"
)

// Searcher serves hybrid retrieval queries.
type Searcher interface {
	Search(ctx context.Context, query string, opts retrieval.Options) ([]retrieval.Result, error)
}

// JobReader looks up ingestion jobs by id.
type JobReader interface {
	Get(ctx context.Context, id string) (jobs.Job, error)
}

// DocumentLister enumerates ingested document filenames.
type DocumentLister interface {
	ListFilenames(ctx context.Context) ([]string, error)
}

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies.
type Config struct {
	Searcher  Searcher
	Jobs      JobReader
	Documents DocumentLister
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "document-search-server",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_documents",
		Description: "Search the ingested document knowledge base with hybrid keyword and semantic retrieval. Returns the most relevant chunks with their source filename and page.",
	}, makeSearchHandler(cfg.Searcher))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_job_status",
		Description: "Look up the status and progress of a document ingestion job by id.",
	}, makeJobStatusHandler(cfg.Jobs))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List the filenames of all ingested documents.",
	}, makeListHandler(cfg.Documents))

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
