package sandbox

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/isdmx/nbexec/config"
)

// NewExecutor creates an appropriate sandbox executor based on the configuration
func NewExecutor(logger *zap.Logger, cfg *config.Config) (SandboxExecutor, error) {
	executorConfig := &Config{
		Interpreter:    cfg.Python.Interpreter,
		Jupyter:        cfg.Python.Jupyter,
		Image:          cfg.Python.Image,
		NotebookImage:  cfg.Python.NotebookImage,
		MemoryMB:       cfg.Sandbox.MemoryMB,
		NetworkEnabled: cfg.Sandbox.NetworkEnabled,
		Environment:    cfg.Python.Environment,
	}

	logger = logger.With(zap.String("backend", cfg.Sandbox.Backend))

	switch cfg.Sandbox.Backend {
	case "docker":
		return NewDockerExecutor(logger, executorConfig), nil
	case "podman":
		return NewPodmanExecutor(logger, executorConfig), nil
	case "local":
		if !cfg.Sandbox.EnableLocalBackend {
			return nil, fmt.Errorf("local backend is disabled, set sandbox.enable_local_backend to use it")
		}
		logger.Warn("local backend runs submitted code on the host without isolation")
		return NewLocalExecutor(logger, executorConfig), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Sandbox.Backend)
	}
}
