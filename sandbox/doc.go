// Package sandbox runs Python programs and Jupyter notebooks in child
// processes.
//
// Every execution gets its own scratch directory and its own output
// buffers, so concurrent executions never share state. Backends are the
// host itself (LocalExecutor, development only) and Docker or Podman
// containers (ContainerExecutor) with memory limits, dropped capabilities
// and networking disabled unless configured.
//
// Notebooks are executed with `jupyter nbconvert --execute --stdout`; the
// executed document is returned in ExecuteResult.Stdout.
//
// Usage:
//
//	executor, err := sandbox.NewExecutor(logger, cfg)
//	result, err := executor.RunCode(ctx, sandbox.CodeRequest{
//	    Code: "print('Hello, World!')",
//	})
package sandbox
