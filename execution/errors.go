package execution

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Messages returned to callers
const (
	MsgMissingInput      = "No source code or notebook provided"
	MsgInvalidNotebook   = "Invalid notebook format"
	MsgNotebookNoOutput  = "Notebook executed successfully, but produced no output."
	prefixInvalidJSON    = "Invalid JSON: "
	prefixCodeFailure    = "Error executing code: "
	prefixNotebookFailed = "Error executing notebook: "
)

var (
	// ErrMissingInput is returned when neither source_code nor notebook is present
	ErrMissingInput = errors.New(MsgMissingInput)

	// ErrInvalidNotebook is returned when notebook is neither an object nor a string
	ErrInvalidNotebook = errors.New(MsgInvalidNotebook)
)

// Kind classifies execution failures
type Kind int

const (
	// KindInvalidJSON means the request body did not parse
	KindInvalidJSON Kind = iota + 1
	// KindMissingInput means no executable content was supplied
	KindMissingInput
	// KindCode means the direct code path failed
	KindCode
	// KindNotebook means the notebook path failed
	KindNotebook
)

// Error is a failure surfaced to callers. Its message embeds the
// underlying failure description.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidJSON:
		return prefixInvalidJSON + e.Err.Error()
	case KindMissingInput:
		return e.Err.Error()
	case KindCode:
		return prefixCodeFailure + e.Err.Error()
	case KindNotebook:
		return prefixNotebookFailed + e.Err.Error()
	default:
		return e.Err.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode maps the failure onto an HTTP status
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindInvalidJSON, KindMissingInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// StatusCode returns the HTTP status for any error returned by this package
func StatusCode(err error) int {
	var execErr *Error
	if errors.As(err, &execErr) {
		return execErr.StatusCode()
	}
	return http.StatusInternalServerError
}

// ExitError describes a Python program or nbconvert run that exited with a
// non-zero status.
type ExitError struct {
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	if msg := summarizeStderr(e.Stderr); msg != "" {
		return msg
	}
	return fmt.Sprintf("process exited with status %d", e.ExitCode)
}

// cellErrorMarker starts the description nbconvert prints for a failing cell
const cellErrorMarker = "CellExecutionError:"

// tracebackFrame starts each frame line of a Python traceback
const tracebackFrame = "File "

// summarizeStderr extracts the failure description from interpreter output.
// For nbconvert this is the CellExecutionError report; for plain Python it
// is the exception text following the last traceback frame, which may span
// several lines.
func summarizeStderr(stderr string) string {
	if idx := strings.LastIndex(stderr, cellErrorMarker); idx >= 0 {
		return strings.TrimSpace(stderr[idx+len(cellErrorMarker):])
	}

	lines := strings.Split(strings.TrimRight(stderr, "\n"), "\n")

	lastFrame := -1
	for i, line := range lines {
		if isIndented(line) && strings.HasPrefix(strings.TrimSpace(line), tracebackFrame) {
			lastFrame = i
		}
	}
	if lastFrame >= 0 {
		// the frame is followed by indented source and caret lines
		for i := lastFrame + 1; i < len(lines); i++ {
			if !isIndented(lines[i]) {
				if msg := strings.TrimSpace(strings.Join(lines[i:], "\n")); msg != "" {
					return msg
				}
				break
			}
		}
	}

	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

func isIndented(line string) bool {
	return strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
}
