package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPHandlerOptions tunes the streamable HTTP transport.
type HTTPHandlerOptions struct {
	// Stateless drops per-session state between requests. The document tools
	// here are all one-shot request/response, so stateless mode is safe when
	// clients cannot hold a session open.
	Stateless bool
}

// NewHTTPHandler exposes the tool server over streamable HTTP so it can be
// mounted alongside the REST routes on the same mux:
//
//	mux.Handle("/mcp", mcpserver.NewHTTPHandler(mcpSrv, nil))
//
// A nil opts selects stateful sessions.
func NewHTTPHandler(server *Server, opts *HTTPHandlerOptions) http.Handler {
	if opts == nil {
		opts = &HTTPHandlerOptions{}
	}

	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server.MCPServer()
	}, &mcp.StreamableHTTPOptions{Stateless: opts.Stateless})
}
