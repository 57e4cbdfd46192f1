// Package logger provides the structured logging interface used across famlysync.
//
// It wraps zerolog with a small field-oriented API:
//
//	logger.Initialize(&cfg.Logging)
//	logger.WithField("child_id", child.ID).Info("Fetching tagged images")
//	logger.WithError(err).Warn("Image download failed")
//
// Console output is colourised and written to stderr so it does not tear the
// progress bar on stdout. When LoggingConfig.File is set the same entries are
// also written as JSON lines to a lumberjack rotated file (MaxSize megabytes,
// MaxBackups files, MaxAge days, optional gzip).
//
// Tests use NewTestLogger to capture entries and assert on them.
package logger
