// Package logging provides structured logging utilities for kbatch-proxy.
//
// This package centralizes logging patterns to ensure consistent, structured
// logging throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - PII sanitization (username hashing)
//   - Consistent attribute naming across the codebase
//
// # Usage
//
//	logger := logging.WithOperation(slog.Default(), "submit")
//	logger.Info("job submitted",
//	    logging.Namespace(user.Namespace),
//	    logging.ResourceType("job"),
//	    logging.UserHash(user.Name))
package logging
