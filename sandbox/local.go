package sandbox

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"
)

// LocalExecutor implements SandboxExecutor by running the host's Python
// interpreter and Jupyter installation. Nothing is isolated.
type LocalExecutor struct {
	logger    *zap.Logger
	config    *Config
	cmdRunner CommandRunner
	fs        FileSystem
}

// LocalExecutorOption defines a functional option for LocalExecutor
type LocalExecutorOption func(*LocalExecutor)

// WithLocalCommandRunner sets the CommandRunner for LocalExecutor
func WithLocalCommandRunner(cmdRunner CommandRunner) LocalExecutorOption {
	return func(l *LocalExecutor) {
		l.cmdRunner = cmdRunner
	}
}

// WithLocalFileSystem sets the FileSystem for LocalExecutor
func WithLocalFileSystem(fs FileSystem) LocalExecutorOption {
	return func(l *LocalExecutor) {
		l.fs = fs
	}
}

// NewLocalExecutor creates a new LocalExecutor with default implementations and optional interfaces
func NewLocalExecutor(logger *zap.Logger, config *Config, opts ...LocalExecutorOption) *LocalExecutor {
	executor := &LocalExecutor{
		logger:    logger,
		config:    config,
		cmdRunner: &RealCommandRunner{},
		fs:        &RealFileSystem{},
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// RunCode runs the code as a Python program in a fresh scratch directory
func (l *LocalExecutor) RunCode(ctx context.Context, req CodeRequest) (ExecuteResult, error) {
	return runInWorkspace(ctx, l.logger, l.fs, l.cmdRunner, runSpec{
		filename: FilenameCode,
		content:  []byte(req.Code),
		timeout:  req.Timeout,
		command: func(ws workspace) Command {
			return Command{
				Args: []string{l.config.Interpreter, ws.filePath},
				Dir:  ws.dir,
				Env:  EnvList(l.config.Environment),
			}
		},
	})
}

// RunNotebook executes the notebook with nbconvert. The kernel's working
// directory is the directory holding the notebook.
func (l *LocalExecutor) RunNotebook(ctx context.Context, req NotebookRequest) (ExecuteResult, error) {
	return runInWorkspace(ctx, l.logger, l.fs, l.cmdRunner, runSpec{
		filename:   FilenameNotebook,
		content:    req.Document,
		workingDir: req.Options.WorkingDir,
		command: func(ws workspace) Command {
			return Command{
				Args: NotebookArgs(l.config.Jupyter, filepath.Base(ws.filePath), req.Options),
				Dir:  ws.dir,
				Env:  EnvList(l.config.Environment),
			}
		},
	})
}
