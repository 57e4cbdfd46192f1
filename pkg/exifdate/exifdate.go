// Package exifdate rewrites the capture date stored in a JPEG's EXIF block.
package exifdate

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	exif "github.com/dsoprea/go-exif/v3"
	jis "github.com/dsoprea/go-jpeg-image-structure/v2"
	goexif "github.com/rwcarlsen/goexif/exif"

	"famlysync/pkg/logger"
)

// Layout is the EXIF date/time format
const Layout = "2006:01:02 15:04:05"

// ErrNoExif is returned when the image carries no EXIF segment. Callers
// treat it as a no-op rather than a failure.
var ErrNoExif = errors.New("image has no EXIF segment")

var jpegSOI = []byte{0xFF, 0xD8}

// dateTags are rewritten together
var dateTags = []string{"DateTimeOriginal", "DateTimeDigitized"}

// Format renders t in EXIF form using t's own offset
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Tagger sets capture dates on downloaded images
type Tagger struct {
	logger logger.Logger
}

// NewTagger creates a tagger
func NewTagger(log logger.Logger) *Tagger {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Tagger{logger: log}
}

// SetCaptureTime sets DateTimeOriginal and DateTimeDigitized of the JPEG at
// path to at. Files without EXIF are left untouched and ErrNoExif is
// returned. Files whose date tags both already
// carry the value are not rewritten.
func (t *Tagger) SetCaptureTime(path string, at time.Time) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	if !bytes.HasPrefix(data, jpegSOI) {
		return fmt.Errorf("not a JPEG file: %s", path)
	}

	intfc, err := jis.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		return fmt.Errorf("failed to parse JPEG structure: %w", err)
	}
	sl := intfc.(*jis.SegmentList)

	if _, _, err := sl.FindExif(); err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return ErrNoExif
		}
		return fmt.Errorf("failed to locate EXIF segment: %w", err)
	}

	value := Format(at)
	if current, err := readDates(data); err == nil && current.Original == value && current.Digitized == value {
		t.logger.DebugWithFields("Capture date already set", map[string]interface{}{
			"path":  path,
			"value": value,
		})
		return nil
	}

	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		return fmt.Errorf("failed to load EXIF block: %w", err)
	}

	exifIb, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD/Exif")
	if err != nil {
		return fmt.Errorf("failed to open EXIF sub-IFD: %w", err)
	}

	for _, tag := range dateTags {
		if err := exifIb.SetStandardWithName(tag, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", tag, err)
		}
	}

	if err := sl.SetExif(rootIb); err != nil {
		return fmt.Errorf("failed to update EXIF segment: %w", err)
	}

	var buf bytes.Buffer
	if err := sl.Write(&buf); err != nil {
		return fmt.Errorf("failed to encode JPEG: %w", err)
	}

	if err := replaceFile(path, buf.Bytes()); err != nil {
		return err
	}

	t.logger.DebugWithFields("Capture date set", map[string]interface{}{
		"path":  path,
		"value": value,
	})
	return nil
}

// Dates holds the capture date tags of an image. A missing tag is empty.
type Dates struct {
	Original  string
	Digitized string
}

// readDates decodes the EXIF block of a JPEG
func readDates(data []byte) (Dates, error) {
	x, err := goexif.Decode(bytes.NewReader(data))
	if err != nil {
		return Dates{}, fmt.Errorf("failed to decode EXIF: %w", err)
	}

	var d Dates
	if tag, err := x.Get(goexif.DateTimeOriginal); err == nil {
		d.Original, _ = tag.StringVal()
	}
	if tag, err := x.Get(goexif.DateTimeDigitized); err == nil {
		d.Digitized, _ = tag.StringVal()
	}
	return d, nil
}

func replaceFile(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write tagged image: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace image: %w", err)
	}
	return nil
}
