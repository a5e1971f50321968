// Package logging builds the process slog.Logger: JSON or text output with
// service identity and OpenTelemetry trace correlation on every record.
package logging
