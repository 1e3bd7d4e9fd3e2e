package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:       5005,
			Debug:          true,
			AllowedOrigins: []string{"*"},
			MaxBodyMB:      16,
		},
		Sandbox: SandboxConfig{
			Backend:            "local",
			MemoryMB:           512,
			EnableLocalBackend: true,
		},
		Notebook: NotebookConfig{
			TimeoutSec: 600,
			KernelName: "python3",
			WorkingDir: "./",
		},
		Logging: LoggingConfig{
			Mode:  "development",
			Level: "debug",
		},
	}
}

func writeYAML(t *testing.T, doc map[string]any) string {
	t.Helper()
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestConfigValidation(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		require.NoError(t, validConfig().validate())
	})

	t.Run("InvalidPort", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.HTTPPort = 0
		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server.http_port")
	})

	t.Run("InvalidBodyLimit", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.MaxBodyMB = 0
		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.max_body_mb must be positive")
	})

	t.Run("NegativeCodeTimeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.CodeTimeoutSec = -1
		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sandbox.code_timeout_sec must not be negative")
	})

	t.Run("InvalidSandboxMemory", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.MemoryMB = 0
		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sandbox.memory_mb must be positive")
	})

	t.Run("InvalidNotebookTimeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Notebook.TimeoutSec = 0
		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "notebook.timeout_sec must be positive")
	})

	t.Run("EscapingWorkingDir", func(t *testing.T) {
		for _, dir := range []string{"../outside", "/tmp", "a/../../x", ".."} {
			cfg := validConfig()
			cfg.Notebook.WorkingDir = dir
			err := cfg.validate()
			require.Error(t, err, dir)
			assert.Contains(t, err.Error(), "notebook.working_dir")
		}
	})

	t.Run("DottedWorkingDirName", func(t *testing.T) {
		for _, dir := range []string{"data..v2", "./notes/..hidden", "a/../b"} {
			cfg := validConfig()
			cfg.Notebook.WorkingDir = dir
			assert.NoError(t, cfg.validate(), dir)
		}
	})

	t.Run("InvalidMCPTransport", func(t *testing.T) {
		cfg := validConfig()
		cfg.MCP = MCPConfig{Enabled: true, Transport: "carrier-pigeon"}
		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid mcp.transport")
	})

	t.Run("InvalidLoggingMode", func(t *testing.T) {
		cfg := validConfig()
		cfg.Logging.Mode = "invalid_mode"
		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid logging.mode")
	})

	t.Run("InvalidLogLevel", func(t *testing.T) {
		cfg := validConfig()
		cfg.Logging.Level = "invalid_level"
		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid logging.level")
	})

	t.Run("InvalidBackendWhenLocalNotEnabled", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.EnableLocalBackend = false
		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported sandbox.backend")
	})

	t.Run("ContainerBackends", func(t *testing.T) {
		for _, backend := range []string{"docker", "podman"} {
			cfg := validConfig()
			cfg.Sandbox.Backend = backend
			cfg.Sandbox.EnableLocalBackend = false
			require.NoError(t, cfg.validate(), backend)
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5005, cfg.Server.HTTPPort)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "local", cfg.Sandbox.Backend)
	assert.Zero(t, cfg.CodeTimeout())
	assert.Equal(t, 600, cfg.Notebook.TimeoutSec)
	assert.Equal(t, "python3", cfg.Notebook.KernelName)
	assert.Equal(t, "./", cfg.Notebook.WorkingDir)
	assert.Equal(t, "development", cfg.Logging.Mode)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.MCP.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	path := writeYAML(t, map[string]any{
		"server": map[string]any{
			"http_port": 9090,
			"debug":     false,
		},
		"sandbox": map[string]any{
			"backend":          "docker",
			"code_timeout_sec": 30,
		},
		"notebook": map[string]any{
			"timeout_sec": 120,
		},
		"python": map[string]any{
			"environment": map[string]any{"PYTHONUNBUFFERED": "1"},
		},
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	assert.Equal(t, "docker", cfg.Sandbox.Backend)
	assert.Equal(t, 30, cfg.Sandbox.CodeTimeoutSec)
	assert.Equal(t, 120, cfg.Notebook.TimeoutSec)
	assert.Equal(t, "python3", cfg.Notebook.KernelName)
	assert.Equal(t, "production", cfg.Logging.Mode)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, map[string]string{"pythonunbuffered": "1"}, cfg.Python.Environment)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("NBEXEC_SERVER_HTTP_PORT", "7000")
	t.Setenv("NBEXEC_NOTEBOOK_KERNEL_NAME", "python3.12")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.HTTPPort)
	assert.Equal(t, "python3.12", cfg.Notebook.KernelName)
}

func TestLoadInvalidFile(t *testing.T) {
	path := writeYAML(t, map[string]any{
		"logging": map[string]any{"mode": "verbose"},
	})

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation error")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}
