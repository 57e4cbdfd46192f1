// Package syncer runs an incremental sync of every child's tagged images.
//
// For each child, strictly one after another, it asks the pager for images
// newer than the child's checkpoint, downloads them into the date-partitioned
// tree, sets their EXIF capture date and finally moves the checkpoint to the
// newest image of the batch. A child with nothing new keeps its checkpoint.
// Failures inside one child never stop the next one.
package syncer
