package execution

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Request field names
const (
	FieldSourceCode = "source_code"
	FieldNotebook   = "notebook"
)

// Request is a decoded execution payload. Only key presence matters for
// branching; the values stay raw until the chosen path interprets them.
type Request struct {
	SourceCode json.RawMessage
	Notebook   json.RawMessage
}

// HasSourceCode reports whether the payload carried a source_code key
func (r *Request) HasSourceCode() bool {
	return r.SourceCode != nil
}

// HasNotebook reports whether the payload carried a notebook key
func (r *Request) HasNotebook() bool {
	return r.Notebook != nil
}

// ParseRequest decodes a JSON request body
func ParseRequest(body []byte) (*Request, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, &Error{Kind: KindInvalidJSON, Err: err}
	}
	return requestFromFields(fields), nil
}

// RequestFromArguments builds a request from already decoded arguments,
// as delivered by MCP tool calls.
func RequestFromArguments(args map[string]any) (*Request, error) {
	fields := make(map[string]json.RawMessage, 2)
	for _, key := range []string{FieldSourceCode, FieldNotebook} {
		value, ok := args[key]
		if !ok {
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, &Error{Kind: KindInvalidJSON, Err: fmt.Errorf("%s: %w", key, err)}
		}
		fields[key] = raw
	}
	return requestFromFields(fields), nil
}

func requestFromFields(fields map[string]json.RawMessage) *Request {
	req := &Request{}
	if raw, ok := fields[FieldSourceCode]; ok {
		req.SourceCode = nonNil(raw)
	}
	if raw, ok := fields[FieldNotebook]; ok {
		req.Notebook = nonNil(raw)
	}
	return req
}

// nonNil keeps an explicit JSON null distinguishable from an absent key
func nonNil(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return json.RawMessage("null")
	}
	return raw
}

// sourceString extracts the code string from a source_code value
func sourceString(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", errors.New("source_code must be a string")
	}

	var code string
	if err := json.Unmarshal(trimmed, &code); err != nil {
		return "", fmt.Errorf("source_code must be a string: %w", err)
	}
	return code, nil
}
