// Package logging provides structured logging for FilaCore.
//
// It wraps log/slog so every component logs the same way: JSON in
// production, text during development, and the service and version
// attached to each record.
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("printer registered", "serial", serial)
//
// Printer access codes are MQTT passwords and must never be logged.
package logging
