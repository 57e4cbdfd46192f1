// Package storage places downloaded images in a date-partitioned tree:
//
//	out/images/<child name>/<year>/<month>/<image id>.jpg
//
// Writes go to a temporary file that is renamed into place, so an
// interrupted run never leaves a truncated image behind.
package storage
