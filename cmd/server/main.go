package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/nbexec/config"
	"github.com/isdmx/nbexec/execution"
	"github.com/isdmx/nbexec/httpserver"
	"github.com/isdmx/nbexec/logger"
	"github.com/isdmx/nbexec/mcpserver"
	"github.com/isdmx/nbexec/sandbox"
)

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Sandbox executor based on config
			sandbox.NewExecutor,

			// Execution service shared by both front ends
			execution.New,

			// HTTP API
			httpserver.New,

			// MCP Server
			mcpserver.New,
		),

		fx.Invoke(
			logConfig,
			httpserver.Register,
			mcpserver.Register,
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}

// logConfig logs configuration parameters on startup
func logConfig(cfg *config.Config, log *zap.Logger) {
	log.Info("configuration loaded",
		zap.Int("server.http_port", cfg.Server.HTTPPort),
		zap.Bool("server.debug", cfg.Server.Debug),
		zap.Strings("server.allowed_origins", cfg.Server.AllowedOrigins),
		zap.Int("server.max_body_mb", cfg.Server.MaxBodyMB),
		zap.Float64("server.rate_limit_rps", cfg.Server.RateLimitRPS),
		zap.String("sandbox.backend", cfg.Sandbox.Backend),
		zap.Int("sandbox.code_timeout_sec", cfg.Sandbox.CodeTimeoutSec),
		zap.Int("sandbox.memory_mb", cfg.Sandbox.MemoryMB),
		zap.Bool("sandbox.network_enabled", cfg.Sandbox.NetworkEnabled),
		zap.Int("notebook.timeout_sec", cfg.Notebook.TimeoutSec),
		zap.String("notebook.kernel_name", cfg.Notebook.KernelName),
		zap.String("notebook.working_dir", cfg.Notebook.WorkingDir),
		zap.String("python.image", cfg.Python.Image),
		zap.String("python.notebook_image", cfg.Python.NotebookImage),
		zap.Bool("mcp.enabled", cfg.MCP.Enabled),
		zap.String("mcp.transport", cfg.MCP.Transport),
	)
}
