// Package logging provides structured logging for HomyTech Sync.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("channel open", "channel", "door")
//	logger.Error("snapshot failed", "error", err)
//
// # Security
//
// Attributes named token, access_token, password or authorization are
// redacted by the handler. Other secrets must not be logged.
package logging
