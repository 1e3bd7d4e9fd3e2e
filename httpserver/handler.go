package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/isdmx/nbexec/execution"
)

// maxLoggedBody bounds how much of a request body debug logging echoes
const maxLoggedBody = 2048

// ExecuteResponse is the JSON body of every execution response
type ExecuteResponse struct {
	Output *string `json:"output,omitempty"`
	Error  *string `json:"error,omitempty"`
}

// handleExecute accepts {"source_code": ...} or {"notebook": ...}, runs it
// and answers with {"output": ...} or {"error": ...}.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With(zap.String("request_id", r.Header.Get(RequestIDHeader)))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	if ce := logger.Check(zap.DebugLevel, "received request"); ce != nil {
		logged := body
		if len(logged) > maxLoggedBody {
			logged = logged[:maxLoggedBody]
		}
		ce.Write(zap.Int("body_len", len(body)), zap.ByteString("body", logged))
	}

	req, err := execution.ParseRequest(body)
	if err != nil {
		logger.Warn("error parsing JSON", zap.Error(err))
		writeError(w, execution.StatusCode(err), err.Error())
		return
	}

	output, err := s.service.Execute(r.Context(), req)
	if err != nil {
		status := execution.StatusCode(err)
		if status >= http.StatusInternalServerError {
			logger.Error("execution failed", zap.Error(err))
		} else {
			logger.Warn("rejected request", zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ExecuteResponse{Output: &output})
}

// handleHealth reports liveness
func (*Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleNotFound keeps unknown routes JSON shaped
func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Not found")
}

// handleMethodNotAllowed keeps wrong-method requests JSON shaped
func handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ExecuteResponse{Error: &message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
