// Package httpserver exposes the execution service over HTTP.
//
// Routes:
//
//	POST /execute-notebook  run {"source_code": ...} or {"notebook": ...}
//	GET  /healthz           liveness probe
//	GET  /metrics           Prometheus exposition
//
// Every response from /execute-notebook is a JSON object with exactly one
// of "output" or "error". Requests pass through panic recovery, request ID
// assignment, access logging and CORS handling; execution requests are
// additionally size limited and optionally rate limited.
package httpserver
