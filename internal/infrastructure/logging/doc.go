// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Log Levels:
//   - Debug: Verbose debugging information
//   - Info: General informational messages
//   - Warn: Warning messages
//   - Error: Error messages
//   - Fatal: Fatal errors (exits process)
//
// Each binary builds one Logger from config and hands components a child
// via Component, so every entry carries its origin.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Component("relay").Info("Cache updated", zap.String("page_id", id))
//	logger.Error("Failed to connect", zap.Error(err))
package logging
