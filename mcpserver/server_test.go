package mcpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/nbexec/config"
	"github.com/isdmx/nbexec/execution"
	"github.com/isdmx/nbexec/sandbox"
)

// MockSandboxExecutor implements sandbox.SandboxExecutor for testing
type MockSandboxExecutor struct {
	codeResult     sandbox.ExecuteResult
	notebookResult sandbox.ExecuteResult
	err            error
}

func (m *MockSandboxExecutor) RunCode(_ context.Context, _ sandbox.CodeRequest) (sandbox.ExecuteResult, error) {
	return m.codeResult, m.err
}

func (m *MockSandboxExecutor) RunNotebook(_ context.Context, _ sandbox.NotebookRequest) (sandbox.ExecuteResult, error) {
	return m.notebookResult, m.err
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{HTTPPort: 5005, ShutdownTimeoutSec: 1},
		Sandbox: config.SandboxConfig{
			Backend:  "local",
			MemoryMB: 512,
		},
		Notebook: config.NotebookConfig{TimeoutSec: 600, KernelName: "python3", WorkingDir: "./"},
		MCP:      config.MCPConfig{Enabled: true, Transport: "http", HTTPPort: 5006},
		Logging:  config.LoggingConfig{Mode: "production", Level: "info"},
	}
}

func newTestServer(t *testing.T, executor sandbox.SandboxExecutor) *MCPServer {
	t.Helper()
	cfg := testConfig()
	logger := zaptest.NewLogger(t)
	server, err := New(cfg, logger, execution.New(cfg, logger, executor))
	require.NoError(t, err)
	require.NotNil(t, server)
	return server
}

func callTool(t *testing.T, s *MCPServer, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = ToolExecuteNotebook
	req.Params.Arguments = args

	result, err := s.handleExecuteNotebook(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestNewMCPServer(t *testing.T) {
	server := newTestServer(t, &MockSandboxExecutor{})

	assert.NotNil(t, server.GetMCPServer())
	assert.NotNil(t, server.service)
	assert.Nil(t, server.httpServer)
}

func TestExecuteNotebookTool(t *testing.T) {
	t.Run("SourceCode", func(t *testing.T) {
		server := newTestServer(t, &MockSandboxExecutor{codeResult: sandbox.ExecuteResult{Stdout: "hi\n"}})

		result := callTool(t, server, map[string]any{"source_code": "print('hi')"})

		assert.False(t, result.IsError)
		assert.Equal(t, "hi\n", resultText(t, result))
	})

	t.Run("NotebookObject", func(t *testing.T) {
		executed := `{"cells": [{"cell_type": "code", "source": "print(1+1)", "metadata": {}, "execution_count": 1,
			"outputs": [{"output_type": "stream", "name": "stdout", "text": "2\n"}]}],
			"metadata": {}, "nbformat": 4, "nbformat_minor": 4}`
		server := newTestServer(t, &MockSandboxExecutor{notebookResult: sandbox.ExecuteResult{Stdout: executed}})

		result := callTool(t, server, map[string]any{"notebook": map[string]any{
			"cells": []any{map[string]any{
				"cell_type": "code", "source": "print(1+1)", "metadata": map[string]any{},
				"outputs": []any{}, "execution_count": nil,
			}},
			"metadata":       map[string]any{},
			"nbformat":       4,
			"nbformat_minor": 4,
		}})

		assert.False(t, result.IsError)
		assert.Equal(t, "2\n", resultText(t, result))
	})

	t.Run("MissingInput", func(t *testing.T) {
		server := newTestServer(t, &MockSandboxExecutor{})

		result := callTool(t, server, map[string]any{})

		assert.True(t, result.IsError)
		assert.Equal(t, execution.MsgMissingInput, resultText(t, result))
	})

	t.Run("ExecutionFailure", func(t *testing.T) {
		server := newTestServer(t, &MockSandboxExecutor{codeResult: sandbox.ExecuteResult{
			Stderr:   "Traceback (most recent call last):\nNameError: name 'x' is not defined\n",
			ExitCode: 1,
		}})

		result := callTool(t, server, map[string]any{"source_code": "print(x)"})

		assert.True(t, result.IsError)
		assert.Equal(t, "Error executing code: NameError: name 'x' is not defined", resultText(t, result))
	})
}

func TestStartUnsupportedTransport(t *testing.T) {
	server := newTestServer(t, &MockSandboxExecutor{})
	server.config.MCP.Transport = "carrier-pigeon"

	err := server.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported MCP transport")
	require.NoError(t, server.Stop(context.Background()))
}

func TestHTTPTransportLifecycle(t *testing.T) {
	t.Run("StopRightAfterStart", func(t *testing.T) {
		server := newTestServer(t, &MockSandboxExecutor{})
		server.config.MCP.HTTPPort = 0

		require.NoError(t, server.Start(context.Background()))
		require.NotNil(t, server.HTTPHandler())
		require.NoError(t, server.Stop(context.Background()))
	})

	t.Run("StopWithoutStart", func(t *testing.T) {
		server := newTestServer(t, &MockSandboxExecutor{})

		assert.Nil(t, server.HTTPHandler())
		require.NoError(t, server.Stop(context.Background()))
	})

	t.Run("ServesEndpoint", func(t *testing.T) {
		server := newTestServer(t, &MockSandboxExecutor{})
		server.config.MCP.HTTPPort = 0

		require.NoError(t, server.Start(context.Background()))
		defer func() { require.NoError(t, server.Stop(context.Background())) }()

		rec := httptest.NewRecorder()
		server.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/elsewhere", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)

		body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1.0.0"}}}`
		req := httptest.NewRequest(http.MethodPost, EndpointPath, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json, text/event-stream")
		rec = httptest.NewRecorder()
		server.HTTPHandler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "nbexec")
	})
}
