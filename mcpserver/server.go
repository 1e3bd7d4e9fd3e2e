package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/isdmx/nbexec/config"
	"github.com/isdmx/nbexec/execution"
)

const (
	// ToolExecuteNotebook is the name of the exposed tool
	ToolExecuteNotebook = "execute_notebook"

	// EndpointPath is where the streamable HTTP transport is mounted
	EndpointPath = "/mcp"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	service   *execution.Service
	mcpServer *server.MCPServer

	mu         sync.Mutex
	httpServer *http.Server
	cancel     context.CancelFunc
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, service *execution.Service) (*MCPServer, error) {
	s := &MCPServer{
		config:  cfg,
		logger:  logger.Named("mcp"),
		service: service,
	}

	s.mcpServer = server.NewMCPServer("nbexec", "1.0.0", server.WithToolCapabilities(false))
	s.registerExecuteNotebookTool()

	return s, nil
}

// registerExecuteNotebookTool registers the execute_notebook tool
func (s *MCPServer) registerExecuteNotebookTool() {
	tool := mcp.Tool{
		Name:        ToolExecuteNotebook,
		Description: "Execute Python source code or a Jupyter notebook and return its text output",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				execution.FieldSourceCode: map[string]any{
					"type":        "string",
					"description": "Python program to run; its stdout is returned",
				},
				execution.FieldNotebook: map[string]any{
					"type":        []string{"object", "string"},
					"description": "nbformat 4 notebook, as an object or its serialized JSON string",
				},
			},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecuteNotebook)
}

// handleExecuteNotebook handles the execute_notebook tool. Execution
// failures are reported as tool errors rather than protocol errors.
func (s *MCPServer) handleExecuteNotebook(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	s.logger.Info("execution requested",
		zap.Bool("source_code", args[execution.FieldSourceCode] != nil),
		zap.Bool("notebook", args[execution.FieldNotebook] != nil))

	req, err := execution.RequestFromArguments(args)
	if err != nil {
		return toolError(err), nil
	}

	output, err := s.service.Execute(ctx, req)
	if err != nil {
		s.logger.Warn("execution failed", zap.Error(err))
		return toolError(err), nil
	}

	s.logger.Info("execution completed", zap.Int("output_len", len(output)))

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: output,
			},
		},
	}, nil
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: err.Error(),
			},
		},
		IsError: true,
	}
}

// ServeStdio serves the protocol on stdin/stdout until ctx is done
func (s *MCPServer) ServeStdio(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio")
	return server.NewStdioServer(s.mcpServer).Listen(ctx, os.Stdin, os.Stdout)
}

// ServeHTTP serves the streamable HTTP transport on the configured port
// and blocks until the server is stopped.
func (s *MCPServer) ServeHTTP() error {
	ln, err := s.listenHTTP()
	if err != nil {
		return err
	}
	return s.serveHTTP(ln)
}

// listenHTTP binds the configured port and prepares the HTTP server
func (s *MCPServer) listenHTTP() (net.Listener, error) {
	addr := fmt.Sprintf(":%d", s.config.MCP.HTTPPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	router := mux.NewRouter()
	router.Handle(EndpointPath, server.NewStreamableHTTPServer(s.mcpServer))

	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()

	s.logger.Info("starting MCP server on HTTP", zap.String("addr", ln.Addr().String()))
	return ln, nil
}

func (s *MCPServer) serveHTTP(ln net.Listener) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()

	if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start launches the configured transport in the background
func (s *MCPServer) Start(_ context.Context) error {
	switch s.config.MCP.Transport {
	case "stdio":
		ctx, cancel := context.WithCancel(context.Background())
		s.mu.Lock()
		s.cancel = cancel
		s.mu.Unlock()

		go func() {
			if err := s.ServeStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("MCP stdio server stopped", zap.Error(err))
			}
		}()
	case "http":
		ln, err := s.listenHTTP()
		if err != nil {
			return err
		}
		go func() {
			if err := s.serveHTTP(ln); err != nil {
				s.logger.Error("MCP HTTP server stopped", zap.Error(err))
			}
		}()
	default:
		return fmt.Errorf("unsupported MCP transport: %s", s.config.MCP.Transport)
	}
	return nil
}

// Stop shuts the running transport down
func (s *MCPServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, httpServer := s.cancel, s.httpServer
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if httpServer != nil {
		ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout())
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down MCP HTTP server: %w", err)
		}
	}
	return nil
}

// HTTPHandler returns the handler of the HTTP transport, or nil before it
// has been started
func (s *MCPServer) HTTPHandler() http.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Handler
}

// GetMCPServer returns the underlying MCP server
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// Register ties the MCP server to the fx lifecycle when it is enabled
func Register(lc fx.Lifecycle, cfg *config.Config, s *MCPServer) {
	if !cfg.MCP.Enabled {
		return
	}
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop:  s.Stop,
	})
}
