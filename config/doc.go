// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files and NBEXEC_* environment variables. It
// covers the HTTP server, the execution backend, notebook execution and
// the optional MCP tool server.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Listening on: %d\n", cfg.Server.HTTPPort)
package config
