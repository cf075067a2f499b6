// Package accesslog provides structured attribute-access logging for
// featkit.
//
// The package defines the Logger interface and the Event type
// describing one attribute get or set: which instance and attribute
// were touched, the operation, its outcome, timing, and the failing
// pipeline stage on errors. It is separate from operational logging
// (slog) - access capture produces a complete machine-readable trace
// of driver/instrument interaction for debugging and analysis.
//
// # Basic Usage
//
// Drivers configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	feat.WithLogger(accesslog.NewSlogAdapter(slog.Default()))
//
//	// For production: write to binary file
//	l, _ := accesslog.NewFileLogger("/var/log/driver/access.flog")
//
//	// Both: use MultiLogger
//	feat.WithLogger(accesslog.NewMultiLogger(
//	    accesslog.NewSlogAdapter(slog.Default()), l))
//
// Log files are CBOR streams readable with Reader or any CBOR tool.
// Logging must never disrupt attribute access: implementations swallow
// their own errors.
package accesslog
