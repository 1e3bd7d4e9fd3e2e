// Package mcpserver exposes the execution service as a Model Context
// Protocol tool.
//
// It uses the mark3labs/mcp-go library to handle the protocol details and
// registers a single execute_notebook tool whose arguments mirror the HTTP
// payload: source_code, or notebook as an object or serialized string.
// Execution failures come back as tool results flagged IsError, with the
// same message the HTTP endpoint would return.
//
// The server supports both stdio and streamable HTTP transports as
// configured under the mcp section, and only starts when mcp.enabled is set.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, service)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio(ctx) // or server.ServeHTTP()
package mcpserver
