// Package ui prints famlysync's console output: coloured status lines and the
// per-child download progress bar. Everything is written to Out (stdout by
// default); structured logs go to stderr through pkg/logger.
package ui
