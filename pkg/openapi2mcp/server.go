// server.go
package openapi2mcp

import (
	"context"
	"net/http"
	"sync"

	"github.com/aapmcp/openapi-mcp/pkg/auth"
	"github.com/aapmcp/openapi-mcp/pkg/registry"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// ServerOptions configures a Server.
type ServerOptions struct {
	Name    string
	Version string
	// Service is the registry name of the backend the spec describes.
	Service  string
	Strategy ToolNameStrategy
	Rules    []ToolRule
	Caller   ToolCallerOptions
	// SampleTools adds the hand-written AAP tools alongside the generated ones.
	SampleTools bool
	// OnPublish is called with the number of generated tools after each
	// (re)load.
	OnPublish func(tools int)
}

// Server exposes the operations of one service as MCP tools.
type Server struct {
	mcp      *mcpserver.MCPServer
	loader   SpecLoader
	service  string
	strategy ToolNameStrategy
	rules    []ToolRule
	caller   *ToolCaller
	extra    []mcpserver.ServerTool
	onPub    func(int)
	logger   *zap.Logger

	// mu serializes reloads; readers use the caller's published catalog.
	mu sync.Mutex
}

// NewServer returns a server with no tools. Call Reload or Publish to load
// the spec.
func NewServer(loader SpecLoader, reg *registry.Registry, opts ServerOptions, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Name == "" {
		opts.Name = "openapi-mcp"
	}
	if opts.Strategy == nil {
		opts.Strategy = ShortToolNameStrategy{}
	}
	if opts.OnPublish == nil {
		opts.OnPublish = func(int) {}
	}
	s := &Server{
		mcp:      mcpserver.NewMCPServer(opts.Name, opts.Version, mcpserver.WithToolCapabilities(true)),
		loader:   loader,
		service:  opts.Service,
		strategy: opts.Strategy,
		rules:    opts.Rules,
		onPub:    opts.OnPublish,
		logger:   logger,
	}
	s.caller = NewToolCaller(opts.Service, opts.Strategy, opts.Rules, reg, opts.Caller, logger)
	if opts.SampleTools {
		s.extra = SampleTools(s.caller)
	}
	return s
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcpserver.MCPServer { return s.mcp }

// Caller returns the tool caller.
func (s *Server) Caller() *ToolCaller { return s.caller }

// Reload fetches the spec and republishes the tool list. On error the
// previous tools stay published.
func (s *Server) Reload(ctx context.Context) (*Toolset, error) {
	doc, err := s.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	return s.Publish(doc), nil
}

// Publish parses doc and replaces every published tool at once.
func (s *Server) Publish(doc *Document) *Toolset {
	s.mu.Lock()
	defer s.mu.Unlock()

	tools := NewToolParser(doc, s.service, s.strategy, s.rules, s.logger).ParseTools()
	s.caller.Publish(doc, tools)

	serverTools := make([]mcpserver.ServerTool, 0, tools.Len()+len(s.extra))
	for _, t := range tools.Tools() {
		serverTools = append(serverTools, mcpserver.ServerTool{Tool: t.MCPTool(), Handler: s.handleToolCall})
	}
	for _, extra := range s.extra {
		if _, ok := tools.Lookup(extra.Tool.Name); ok {
			s.logger.Warn("function already exists, skipping", zap.String("name", extra.Tool.Name))
			continue
		}
		serverTools = append(serverTools, extra)
	}
	s.mcp.SetTools(serverTools...)
	s.onPub(tools.Len())
	return tools
}

func (s *Server) handleToolCall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.caller.CallTool(ctx, req.Params.Name, req.GetArguments()), nil
}

// contextWithRequestIdentity copies the identity the auth middleware stored
// on the HTTP request into the context tool handlers receive.
func contextWithRequestIdentity(ctx context.Context, r *http.Request) context.Context {
	if id := auth.IdentityFromContext(r.Context()); id != nil {
		return auth.WithIdentity(ctx, id)
	}
	return ctx
}

// SSEServer returns the SSE transport. Mount SSEHandler at /sse and
// MessageHandler at /message behind auth.Middleware.
func (s *Server) SSEServer(baseURL string) *mcpserver.SSEServer {
	opts := []mcpserver.SSEOption{mcpserver.WithSSEContextFunc(contextWithRequestIdentity)}
	if baseURL != "" {
		opts = append(opts, mcpserver.WithBaseURL(baseURL))
	}
	return mcpserver.NewSSEServer(s.mcp, opts...)
}

// StreamableHandler returns the streamable HTTP transport served at path.
func (s *Server) StreamableHandler(path string) http.Handler {
	return mcpserver.NewStreamableHTTPServer(s.mcp,
		mcpserver.WithEndpointPath(path),
		mcpserver.WithHTTPContextFunc(contextWithRequestIdentity),
	)
}

// ServeStdio serves MCP over stdin/stdout with a fixed identity.
func (s *Server) ServeStdio(id *auth.Identity) error {
	return mcpserver.ServeStdio(s.mcp, mcpserver.WithStdioContextFunc(func(ctx context.Context) context.Context {
		return auth.WithIdentity(ctx, id)
	}))
}
