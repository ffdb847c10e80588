// Package pkg provides shared utilities for the usb-midi engine.
//
// This package contains common functionality used across the engine
// packages, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types for configuration and transfer errors
//   - Component identifiers for log filtering
//
// The package is designed to have zero external dependencies, relying
// only on the Go standard library.
//
// # Logging
//
// The logging subsystem wraps [log/slog] with engine-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentPump, "transfer armed", "endpoint", 0x81)
//
// # Errors
//
// Common errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrBufferFull) {
//	    // Drop or retry the message
//	}
package pkg
