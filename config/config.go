package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides
const EnvPrefix = "NBEXEC"

// ConfigPathEnv names the environment variable holding an explicit config file path
const ConfigPathEnv = "NBEXEC_CONFIG"

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Sandbox  SandboxConfig  `mapstructure:"sandbox"`
	Notebook NotebookConfig `mapstructure:"notebook"`
	Python   PythonConfig   `mapstructure:"python"`
	MCP      MCPConfig      `mapstructure:"mcp"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPPort           int      `mapstructure:"http_port"`
	Debug              bool     `mapstructure:"debug"`
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
	MaxBodyMB          int      `mapstructure:"max_body_mb"`
	ShutdownTimeoutSec int      `mapstructure:"shutdown_timeout_sec"`
	RateLimitRPS       float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst     int      `mapstructure:"rate_limit_burst"`
}

// SandboxConfig holds execution backend configuration
type SandboxConfig struct {
	Backend            string `mapstructure:"backend"`
	CodeTimeoutSec     int    `mapstructure:"code_timeout_sec"`
	MemoryMB           int    `mapstructure:"memory_mb"`
	NetworkEnabled     bool   `mapstructure:"network_enabled"`
	EnableLocalBackend bool   `mapstructure:"enable_local_backend"`
}

// NotebookConfig holds notebook execution settings
type NotebookConfig struct {
	TimeoutSec int    `mapstructure:"timeout_sec"`
	KernelName string `mapstructure:"kernel_name"`
	WorkingDir string `mapstructure:"working_dir"`
}

// PythonConfig holds interpreter and image settings
type PythonConfig struct {
	Interpreter   string            `mapstructure:"interpreter"`
	Jupyter       string            `mapstructure:"jupyter"`
	Image         string            `mapstructure:"image"`
	NotebookImage string            `mapstructure:"notebook_image"`
	Environment   map[string]string `mapstructure:"environment"`
}

// MCPConfig holds the optional MCP tool server configuration
type MCPConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration.
// An explicit file can be given through NBEXEC_CONFIG.
func New() (*Config, error) {
	return Load(os.Getenv(ConfigPathEnv))
}

// Load reads configuration from path, or searches the default
// locations when path is empty.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	config.applyLoggingDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", 5005)
	v.SetDefault("server.debug", true)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_body_mb", 16)
	v.SetDefault("server.shutdown_timeout_sec", 10)
	v.SetDefault("server.rate_limit_rps", 0)
	v.SetDefault("server.rate_limit_burst", 0)

	v.SetDefault("sandbox.backend", "local")
	v.SetDefault("sandbox.code_timeout_sec", 0)
	v.SetDefault("sandbox.memory_mb", 512)
	v.SetDefault("sandbox.network_enabled", false)
	v.SetDefault("sandbox.enable_local_backend", true)

	v.SetDefault("notebook.timeout_sec", 600)
	v.SetDefault("notebook.kernel_name", "python3")
	v.SetDefault("notebook.working_dir", "./")

	v.SetDefault("python.interpreter", "python3")
	v.SetDefault("python.jupyter", "jupyter")
	v.SetDefault("python.image", "python:3.11-slim")
	v.SetDefault("python.notebook_image", "jupyter/base-notebook:python-3.11")

	v.SetDefault("mcp.enabled", false)
	v.SetDefault("mcp.transport", "http")
	v.SetDefault("mcp.http_port", 5006)

	// logging.mode and logging.level default from server.debug
	v.SetDefault("logging.mode", "")
	v.SetDefault("logging.level", "")
}

// applyLoggingDefaults derives unset logging settings from the debug flag
func (c *Config) applyLoggingDefaults() {
	if c.Logging.Mode == "" {
		c.Logging.Mode = "production"
		if c.Server.Debug {
			c.Logging.Mode = "development"
		}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
		if c.Server.Debug {
			c.Logging.Level = "debug"
		}
	}
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid server.http_port: %d", c.Server.HTTPPort)
	}

	if c.Server.MaxBodyMB <= 0 {
		return fmt.Errorf("server.max_body_mb must be positive, got: %d", c.Server.MaxBodyMB)
	}

	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("server.rate_limit_rps must not be negative, got: %v", c.Server.RateLimitRPS)
	}

	if c.Sandbox.CodeTimeoutSec < 0 {
		return fmt.Errorf("sandbox.code_timeout_sec must not be negative, got: %d", c.Sandbox.CodeTimeoutSec)
	}

	if c.Sandbox.MemoryMB <= 0 {
		return fmt.Errorf("sandbox.memory_mb must be positive, got: %d", c.Sandbox.MemoryMB)
	}

	supportedBackends := map[string]bool{
		"docker": true,
		"podman": true,
		"local":  c.Sandbox.EnableLocalBackend, // local only enabled if specifically allowed
	}

	if !supportedBackends[c.Sandbox.Backend] {
		return fmt.Errorf("unsupported sandbox.backend: %s", c.Sandbox.Backend)
	}

	if c.Notebook.TimeoutSec <= 0 {
		return fmt.Errorf("notebook.timeout_sec must be positive, got: %d", c.Notebook.TimeoutSec)
	}

	if c.Notebook.KernelName == "" {
		return fmt.Errorf("notebook.kernel_name must not be empty")
	}

	if !StaysInside(c.Notebook.WorkingDir) {
		return fmt.Errorf("notebook.working_dir must be relative and stay inside the scratch directory: %s", c.Notebook.WorkingDir)
	}

	if c.MCP.Enabled && c.MCP.Transport != "stdio" && c.MCP.Transport != "http" {
		return fmt.Errorf("invalid mcp.transport: %s, must be 'stdio' or 'http'", c.MCP.Transport)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
		"dpanic": true, "panic": true, "fatal": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	return nil
}

// StaysInside reports whether the relative path dir, once cleaned, stays
// below the directory it is joined to.
func StaysInside(dir string) bool {
	if filepath.IsAbs(dir) {
		return false
	}
	clean := filepath.Clean(dir)
	return clean != ".." && !strings.HasPrefix(clean, ".."+string(filepath.Separator))
}

// CodeTimeout returns the direct code execution bound, zero meaning unbounded
func (c *Config) CodeTimeout() time.Duration {
	return time.Duration(c.Sandbox.CodeTimeoutSec) * time.Second
}

// NotebookTimeout returns the per-cell notebook execution timeout
func (c *Config) NotebookTimeout() time.Duration {
	return time.Duration(c.Notebook.TimeoutSec) * time.Second
}

// ShutdownTimeout returns the graceful shutdown window of the HTTP server
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSec) * time.Second
}

// MaxBodyBytes returns the request body limit in bytes
func (c *Config) MaxBodyBytes() int64 {
	return int64(c.Server.MaxBodyMB) * 1024 * 1024
}
