package sandbox

import "go.uber.org/zap"

// NewPodmanExecutor creates a ContainerExecutor driving the podman CLI.
// Rootless podman needs the host user mapped into the container to read
// the mounted scratch directory.
func NewPodmanExecutor(logger *zap.Logger, config *Config, opts ...ContainerExecutorOption) *ContainerExecutor {
	return newContainerExecutor(logger, config, "podman", []string{"--userns", "keep-id"}, opts...)
}
