package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/nbexec/config"
)

// CodeRequest represents a direct code execution
type CodeRequest struct {
	Code    string
	Timeout time.Duration // zero means unbounded
}

// NotebookOptions carries the execution engine settings for a notebook run
type NotebookOptions struct {
	Timeout    time.Duration // per cell
	KernelName string
	WorkingDir string // relative to the scratch directory
}

// NotebookRequest represents a notebook execution. Document is the
// serialized nbformat 4 notebook.
type NotebookRequest struct {
	Document []byte
	Options  NotebookOptions
}

// ExecuteResult represents the result of an execution. For notebook runs
// Stdout holds the executed document.
type ExecuteResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// SandboxExecutor defines the interface for sandbox execution
type SandboxExecutor interface {
	RunCode(ctx context.Context, req CodeRequest) (ExecuteResult, error)
	RunNotebook(ctx context.Context, req NotebookRequest) (ExecuteResult, error)
}

// Config holds configuration shared by all executors
type Config struct {
	Interpreter    string
	Jupyter        string
	Image          string
	NotebookImage  string
	MemoryMB       int
	NetworkEnabled bool
	Environment    map[string]string
}

// Command describes a child process. Output is written to the supplied
// sinks, never to the parent's standard streams.
type Command struct {
	Args   []string
	Dir    string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// CommandRunner defines an interface for executing system commands
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (exitCode int, err error)
}

// RealCommandRunner implements CommandRunner using actual exec commands
type RealCommandRunner struct{}

// waitDelay bounds how long Run waits for grandchildren holding the output
// pipes open after the process itself was killed.
const waitDelay = 5 * time.Second

// Run executes the given command
func (RealCommandRunner) Run(ctx context.Context, c Command) (int, error) {
	if len(c.Args) < 1 {
		return 0, errors.New("no command provided")
	}

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...) //nolint:gosec // Running submitted code is the purpose of this service
	cmd.Dir = c.Dir
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	cmd.WaitDelay = waitDelay
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	err := cmd.Run()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return exitError.ExitCode(), nil
		}
		return 0, err
	}

	return 0, nil
}

// FileSystem defines an interface for file system operations
type FileSystem interface {
	MkdirTemp(dir, pattern string) (string, error)
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(filename string, data []byte, perm os.FileMode) error
	RemoveAll(path string) error
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

func (RealFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// File permission constants. Files must stay readable by container users.
const (
	DirPermission  = 0o755
	FilePermission = 0o644
)

// Filename constants
const (
	FilenameCode     = "main.py"
	FilenameNotebook = "notebook.ipynb"
)

// ContainerWorkdir is where the scratch directory is mounted in containers
const ContainerWorkdir = "/workdir"

// NotebookArgs returns the nbconvert arguments that execute the notebook at
// path and print the executed document on stdout.
func NotebookArgs(jupyter, path string, opts NotebookOptions) []string {
	return []string{
		jupyter, "nbconvert",
		"--to", "notebook",
		"--execute",
		"--stdout",
		fmt.Sprintf("--ExecutePreprocessor.timeout=%d", int(opts.Timeout/time.Second)),
		fmt.Sprintf("--ExecutePreprocessor.kernel_name=%s", opts.KernelName),
		path,
	}
}

// EnvList renders environment variables as sorted KEY=value pairs. Keys are
// upper-cased since configuration loaders fold them to lower case.
func EnvList(env map[string]string) []string {
	list := make([]string, 0, len(env))
	for key, value := range env {
		list = append(list, fmt.Sprintf("%s=%s", strings.ToUpper(key), value))
	}
	sort.Strings(list)
	return list
}

// ResolveWorkingDir joins a relative working directory onto root, refusing
// anything that would leave it.
func ResolveWorkingDir(root, dir string) (string, error) {
	if dir == "" {
		return root, nil
	}
	if filepath.IsAbs(dir) {
		return "", fmt.Errorf("absolute working directory not allowed: %s", dir)
	}

	if !config.StaysInside(dir) {
		return "", fmt.Errorf("working directory escapes the scratch directory: %s", dir)
	}

	return filepath.Join(root, filepath.Clean(dir)), nil
}

// workspace is the per-execution scratch directory
type workspace struct {
	root     string // host path mounted or used as cwd
	dir      string // working directory below root
	filePath string // written program or document
	rel      string // filePath relative to root
}

// runSpec describes one execution inside a fresh workspace
type runSpec struct {
	filename   string
	content    []byte
	workingDir string
	timeout    time.Duration
	command    func(ws workspace) Command
	// onAbort runs when the command was cut short by timeout or cancellation
	onAbort func()
}

// runInWorkspace writes the program into a fresh scratch directory, runs the
// command built for it and removes the directory again.
func runInWorkspace(ctx context.Context, logger *zap.Logger, fs FileSystem, runner CommandRunner, run runSpec) (ExecuteResult, error) {
	tempDir, err := fs.MkdirTemp("", "nbexec-*")
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() {
		if rmErr := fs.RemoveAll(tempDir); rmErr != nil {
			logger.Error("failed to remove temp directory", zap.String("path", tempDir), zap.Error(rmErr))
		}
	}()

	root := filepath.Join(tempDir, "workdir")
	dir, err := ResolveWorkingDir(root, run.workingDir)
	if err != nil {
		return ExecuteResult{}, err
	}
	if mkdirErr := fs.MkdirAll(dir, DirPermission); mkdirErr != nil {
		return ExecuteResult{}, fmt.Errorf("failed to create workdir: %w", mkdirErr)
	}

	filePath := filepath.Join(dir, run.filename)
	if writeErr := fs.WriteFile(filePath, run.content, FilePermission); writeErr != nil {
		return ExecuteResult{}, fmt.Errorf("failed to write %s: %w", run.filename, writeErr)
	}

	rel, err := filepath.Rel(root, filePath)
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("failed to resolve %s: %w", run.filename, err)
	}

	runCtx := ctx
	if run.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, run.timeout)
		defer cancel()
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd := run.command(workspace{root: root, dir: dir, filePath: filePath, rel: rel})
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	logger.Debug("starting execution", zap.Strings("args", cmd.Args), zap.String("dir", cmd.Dir))

	start := time.Now()
	exitCode, err := runner.Run(runCtx, cmd)
	duration := time.Since(start)

	if runCtx.Err() != nil && run.onAbort != nil {
		run.onAbort()
	}

	// If the context timed out, handle it explicitly
	if run.timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return ExecuteResult{
			Stdout:   stdoutBuf.String(),
			Stderr:   stderrBuf.String(),
			ExitCode: 1,
			TimedOut: true,
			Duration: duration,
		}, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ExecuteResult{}, fmt.Errorf("execution aborted: %w", ctxErr)
	}

	if err != nil {
		return ExecuteResult{}, fmt.Errorf("failed to execute command: %w", err)
	}

	return ExecuteResult{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		ExitCode: exitCode,
		Duration: duration,
	}, nil
}
