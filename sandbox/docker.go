package sandbox

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContainerExecutor implements SandboxExecutor by running Python inside a
// Docker or Podman container with the scratch directory mounted at
// /workdir.
type ContainerExecutor struct {
	logger    *zap.Logger
	config    *Config
	engine    string
	extraArgs []string
	cmdRunner CommandRunner
	fs        FileSystem
}

// ContainerExecutorOption defines a functional option for ContainerExecutor
type ContainerExecutorOption func(*ContainerExecutor)

// WithContainerCommandRunner sets the CommandRunner for ContainerExecutor
func WithContainerCommandRunner(cmdRunner CommandRunner) ContainerExecutorOption {
	return func(c *ContainerExecutor) {
		c.cmdRunner = cmdRunner
	}
}

// WithContainerFileSystem sets the FileSystem for ContainerExecutor
func WithContainerFileSystem(fs FileSystem) ContainerExecutorOption {
	return func(c *ContainerExecutor) {
		c.fs = fs
	}
}

// NewDockerExecutor creates a ContainerExecutor driving the docker CLI
func NewDockerExecutor(logger *zap.Logger, config *Config, opts ...ContainerExecutorOption) *ContainerExecutor {
	return newContainerExecutor(logger, config, "docker", nil, opts...)
}

func newContainerExecutor(logger *zap.Logger, config *Config, engine string, extraArgs []string, opts ...ContainerExecutorOption) *ContainerExecutor {
	executor := &ContainerExecutor{
		logger:    logger,
		config:    config,
		engine:    engine,
		extraArgs: extraArgs,
		cmdRunner: &RealCommandRunner{},
		fs:        &RealFileSystem{},
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Engine returns the container CLI this executor drives
func (c *ContainerExecutor) Engine() string {
	return c.engine
}

// RunCode runs the code as a Python program in a locked-down container
func (c *ContainerExecutor) RunCode(ctx context.Context, req CodeRequest) (ExecuteResult, error) {
	containerName := newContainerName()

	return runInWorkspace(ctx, c.logger, c.fs, c.cmdRunner, runSpec{
		filename: FilenameCode,
		content:  []byte(req.Code),
		timeout:  req.Timeout,
		command: func(ws workspace) Command {
			args := c.runArgs(containerName, ws)
			args = append(args, "--user", "nobody")
			args = append(args, c.config.Image, "python", path.Join(ContainerWorkdir, filepath.ToSlash(ws.rel)))
			return Command{Args: args}
		},
		onAbort: func() { c.stop(ctx, containerName) },
	})
}

// RunNotebook executes the notebook with nbconvert inside the notebook image
func (c *ContainerExecutor) RunNotebook(ctx context.Context, req NotebookRequest) (ExecuteResult, error) {
	containerName := newContainerName()

	return runInWorkspace(ctx, c.logger, c.fs, c.cmdRunner, runSpec{
		filename:   FilenameNotebook,
		content:    req.Document,
		workingDir: req.Options.WorkingDir,
		command: func(ws workspace) Command {
			args := c.runArgs(containerName, ws)
			args = append(args, c.config.NotebookImage)
			args = append(args, NotebookArgs("jupyter", path.Base(filepath.ToSlash(ws.rel)), req.Options)...)
			return Command{Args: args}
		},
		onAbort: func() { c.stop(ctx, containerName) },
	})
}

// runArgs builds the engine invocation up to the image name
func (c *ContainerExecutor) runArgs(containerName string, ws workspace) []string {
	rel, err := filepath.Rel(ws.root, ws.dir)
	if err != nil {
		rel = "."
	}

	network := "none"
	if c.config.NetworkEnabled {
		network = "bridge"
	}

	args := []string{
		c.engine, "run",
		"--name", containerName,
		"--rm", // Remove container after execution
		"-v", fmt.Sprintf("%s:%s", ws.root, ContainerWorkdir),
		"--workdir", path.Join(ContainerWorkdir, filepath.ToSlash(rel)),
		"--memory", fmt.Sprintf("%dm", c.config.MemoryMB),
		"--network", network,
		"--security-opt", "no-new-privileges:true",
		"--cap-drop", "ALL",
	}
	args = append(args, c.extraArgs...)

	for _, env := range EnvList(c.config.Environment) {
		args = append(args, "-e", env)
	}

	return args
}

// stop removes a container whose run timed out or was cancelled
func (c *ContainerExecutor) stop(ctx context.Context, containerName string) {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	_, err := c.cmdRunner.Run(stopCtx, Command{
		Args:   []string{c.engine, "stop", containerName},
		Stdout: io.Discard,
		Stderr: io.Discard,
	})
	if err != nil {
		c.logger.Warn("failed to stop container", zap.String("container", containerName), zap.Error(err))
	}
}

func newContainerName() string {
	return "nbexec-" + uuid.NewString()
}
