// Package logger provides structured logging capabilities.
//
// The logger package sets up the application's zap logger. Debug mode
// selects the colored development encoder; production mode emits JSON
// with ISO8601 timestamps.
//
// Usage:
//
//	log, err := logger.New("production", "info")
//	if err != nil {
//	    panic(err)
//	}
//	log.Info("service started")
//	log.Error("notebook execution failed", zap.Error(err))
package logger
