// Package logging provides structured logging for the bridge.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON or text output
//   - Default fields (service, version) on all log entries
//   - Runtime level changes shared by every child logger
//   - A CRITICAL level above ERROR
//
// # Configuration
//
//	[logging]
//	; DEBUG, INFO, WARNING, ERROR, CRITICAL
//	level = INFO
//	; json or text
//	format = text
//	; stdout or stderr
//	output = stdout
//
// The level is also changed at runtime by the log/level topic.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting bridge", "prefix", cfg.MQTT.Prefix)
//	_ = logger.SetLevel("DEBUG")
//
// Never log secrets such as the broker password or InfluxDB token.
package logging
