// Package main is the entry point for the nbexec server.
//
// The nbexec server accepts Python source code or Jupyter notebooks over
// HTTP, runs them with the configured sandbox backend (the local host, Docker
// or Podman) and returns their text output. It can additionally expose the
// same operation as a Model Context Protocol tool over stdio or HTTP.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main
