// Package downloader fetches, stores and date-tags one image at a time.
package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"famlysync/pkg/exifdate"
	"famlysync/pkg/famly"
	"famlysync/pkg/logger"
)

// Job is a single image to download for a child
type Job struct {
	Image     famly.Image
	ChildID   string
	ChildName string
}

// Result is the outcome of a Job
type Result struct {
	Job      Job
	Path     string
	Size     int
	Tagged   bool
	TagErr   error
	Err      error
	Duration time.Duration
}

// Success reports whether the image was written to disk
func (r Result) Success() bool {
	return r.Err == nil
}

// ImageFetcher downloads image blobs
type ImageFetcher interface {
	DownloadImage(ctx context.Context, url string) ([]byte, error)
}

// ImageStorage writes image blobs to the output tree
type ImageStorage interface {
	SaveImage(r io.Reader, childName, imageID string, t time.Time) (string, error)
}

// DateTagger rewrites the capture date of a stored image
type DateTagger interface {
	SetCaptureTime(path string, at time.Time) error
}

// Downloader runs jobs sequentially
type Downloader struct {
	client  ImageFetcher
	storage ImageStorage
	tagger  DateTagger
	logger  logger.Logger
}

// New creates a downloader
func New(client ImageFetcher, storage ImageStorage, tagger DateTagger, log logger.Logger) *Downloader {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Downloader{
		client:  client,
		storage: storage,
		tagger:  tagger,
		logger:  log,
	}
}

// Process downloads one image, saves it and sets its capture date. A download
// or save failure is returned in Result.Err; a tagging failure only in
// Result.TagErr since the image itself is already stored.
func (d *Downloader) Process(ctx context.Context, job Job) Result {
	start := time.Now()
	result := Result{Job: job}
	log := d.logger.WithFields(map[string]interface{}{
		"child_id": job.ChildID,
		"image_id": job.Image.ID,
	})

	data, err := d.client.DownloadImage(ctx, job.Image.URLBig)
	if err != nil {
		result.Err = fmt.Errorf("download failed: %w", err)
		result.Duration = time.Since(start)
		log.WithError(err).Warn("Image download failed")
		return result
	}
	result.Size = len(data)

	path, err := d.storage.SaveImage(bytes.NewReader(data), job.ChildName, job.Image.ID, job.Image.CreatedAt)
	if err != nil {
		result.Err = fmt.Errorf("save failed: %w", err)
		result.Duration = time.Since(start)
		log.WithError(err).ErrorWithFields("Failed to save image", map[string]interface{}{
			"size": result.Size,
		})
		return result
	}
	result.Path = path

	switch err := d.tagger.SetCaptureTime(path, job.Image.CreatedAt); {
	case err == nil:
		result.Tagged = true
	case errors.Is(err, exifdate.ErrNoExif):
		log.DebugWithFields("Image has no EXIF block, left as downloaded", map[string]interface{}{
			"path": path,
		})
	default:
		result.TagErr = err
		log.WithError(err).WarnWithFields("Failed to set capture date", map[string]interface{}{
			"path": path,
		})
	}

	result.Duration = time.Since(start)
	log.DebugWithFields("Image stored", map[string]interface{}{
		"path":     path,
		"size":     result.Size,
		"tagged":   result.Tagged,
		"duration": result.Duration,
	})

	return result
}
