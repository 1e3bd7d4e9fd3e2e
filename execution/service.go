package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/nbexec/config"
	"github.com/isdmx/nbexec/notebook"
	"github.com/isdmx/nbexec/observability"
	"github.com/isdmx/nbexec/sandbox"
)

// Service executes source code and notebooks through a sandbox executor
// and formats their output.
type Service struct {
	logger       *zap.Logger
	executor     sandbox.SandboxExecutor
	codeTimeout  time.Duration
	notebookOpts sandbox.NotebookOptions
}

// New creates a Service from the application configuration
func New(cfg *config.Config, logger *zap.Logger, executor sandbox.SandboxExecutor) *Service {
	return &Service{
		logger:      logger,
		executor:    executor,
		codeTimeout: cfg.CodeTimeout(),
		notebookOpts: sandbox.NotebookOptions{
			Timeout:    cfg.NotebookTimeout(),
			KernelName: cfg.Notebook.KernelName,
			WorkingDir: cfg.Notebook.WorkingDir,
		},
	}
}

// Execute runs whichever content the request carries. source_code takes
// precedence over notebook.
func (s *Service) Execute(ctx context.Context, req *Request) (string, error) {
	switch {
	case req.HasSourceCode():
		return s.RunSource(ctx, req.SourceCode)
	case req.HasNotebook():
		return s.RunNotebook(ctx, req.Notebook)
	default:
		return "", &Error{Kind: KindMissingInput, Err: ErrMissingInput}
	}
}

// RunSource executes a source_code value and returns everything it printed
// on stdout. Output produced before a failure is discarded.
func (s *Service) RunSource(ctx context.Context, raw json.RawMessage) (output string, err error) {
	start := time.Now()
	observability.ExecutionsInFlight.Inc()
	defer func() {
		observability.ExecutionsInFlight.Dec()
		observability.ObserveExecution(observability.KindCode, err, time.Since(start))
	}()

	code, err := sourceString(raw)
	if err != nil {
		return "", &Error{Kind: KindCode, Err: err}
	}

	s.logger.Debug("executing source code", zap.Int("code_len", len(code)))

	result, err := s.executor.RunCode(ctx, sandbox.CodeRequest{
		Code:    code,
		Timeout: s.codeTimeout,
	})
	if err != nil {
		return "", &Error{Kind: KindCode, Err: err}
	}
	if result.TimedOut {
		return "", &Error{Kind: KindCode, Err: fmt.Errorf("execution timed out after %s", s.codeTimeout)}
	}
	if result.ExitCode != 0 {
		return "", &Error{Kind: KindCode, Err: &ExitError{ExitCode: result.ExitCode, Stderr: result.Stderr}}
	}

	s.logger.Debug("source code executed",
		zap.Duration("duration", result.Duration),
		zap.Int("stdout_len", len(result.Stdout)))

	return result.Stdout, nil
}

// RunNotebook executes a notebook value, given either as a JSON object or
// as its serialized string form, and returns the collected text output.
func (s *Service) RunNotebook(ctx context.Context, raw json.RawMessage) (output string, err error) {
	start := time.Now()
	observability.ExecutionsInFlight.Inc()
	defer func() {
		observability.ExecutionsInFlight.Dec()
		observability.ObserveExecution(observability.KindNotebook, err, time.Since(start))
	}()

	nb, err := parseNotebook(raw)
	if err != nil {
		return "", &Error{Kind: KindNotebook, Err: err}
	}

	nb.NormalizeSources()

	document, err := nb.Marshal()
	if err != nil {
		return "", &Error{Kind: KindNotebook, Err: fmt.Errorf("failed to serialize notebook: %w", err)}
	}

	s.logger.Debug("executing notebook",
		zap.Int("cells", len(nb.Cells)),
		zap.Int("code_cells", nb.CodeCells()),
		zap.String("kernel", s.notebookOpts.KernelName))

	result, err := s.executor.RunNotebook(ctx, sandbox.NotebookRequest{
		Document: document,
		Options:  s.notebookOpts,
	})
	if err != nil {
		return "", &Error{Kind: KindNotebook, Err: err}
	}
	if result.TimedOut {
		return "", &Error{Kind: KindNotebook, Err: fmt.Errorf("execution timed out after %s", result.Duration.Round(time.Second))}
	}
	if result.ExitCode != 0 {
		return "", &Error{Kind: KindNotebook, Err: &ExitError{ExitCode: result.ExitCode, Stderr: result.Stderr}}
	}

	executed, err := notebook.Reads(result.Stdout, notebook.CurrentVersion)
	if err != nil {
		return "", &Error{Kind: KindNotebook, Err: fmt.Errorf("failed to read executed notebook: %w", err)}
	}

	output = executed.CollectOutput()
	if output == "" {
		output = MsgNotebookNoOutput
	}

	s.logger.Debug("notebook executed",
		zap.Duration("duration", result.Duration),
		zap.Int("output_len", len(output)))

	return output, nil
}

// parseNotebook accepts a notebook object or its serialized string form
func parseNotebook(raw json.RawMessage) (*notebook.Notebook, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ErrInvalidNotebook
	}

	switch trimmed[0] {
	case '{':
		return notebook.FromObject(trimmed)
	case '"':
		var serialized string
		if err := json.Unmarshal(trimmed, &serialized); err != nil {
			return nil, fmt.Errorf("invalid notebook string: %w", err)
		}
		return notebook.Reads(serialized, notebook.CurrentVersion)
	default:
		return nil, ErrInvalidNotebook
	}
}
