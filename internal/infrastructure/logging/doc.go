// Package logging provides structured logging for the Kasa MQTT bridge.
//
// It wraps the standard library's log/slog with:
//   - Output format selection (JSON for production, text for development)
//   - Level-based filtering configured from config.yaml
//   - Default fields (service name, version) on every record
//
// Components receive child loggers via With:
//
//	mqttLogger := logger.With("component", "mqtt")
//	mqttLogger.Info("connected") // includes component=mqtt
//
// Logs are the only user-visible surface for per-device and session errors
// during normal operation, so log at warn/error for anything an operator
// should notice and debug for the rest.
package logging
