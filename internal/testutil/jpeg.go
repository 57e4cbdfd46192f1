package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jis "github.com/dsoprea/go-jpeg-image-structure/v2"
	goexif "github.com/rwcarlsen/goexif/exif"
)

// PlainJPEG returns a small JPEG without an EXIF segment
func PlainJPEG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		panic(fmt.Sprintf("testutil: encode jpeg: %v", err))
	}
	return buf.Bytes()
}

// ExifJPEG returns a small JPEG whose EXIF block carries dateTime
// ("YYYY:MM:DD HH:MM:SS") as both DateTimeOriginal and DateTimeDigitized.
func ExifJPEG(dateTime string) []byte {
	return ExifJPEGDates(dateTime, dateTime)
}

// ExifJPEGDates is ExifJPEG with separate DateTimeOriginal and DateTimeDigitized values
func ExifJPEGDates(original, digitized string) []byte {
	out, err := withExif(PlainJPEG(), original, digitized)
	if err != nil {
		panic(fmt.Sprintf("testutil: build exif jpeg: %v", err))
	}
	return out
}

// ExifDates reads DateTimeOriginal and DateTimeDigitized from the JPEG at path
func ExifDates(path string) (original, digitized string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	x, err := goexif.Decode(f)
	if err != nil {
		return "", "", err
	}
	if tag, err := x.Get(goexif.DateTimeOriginal); err == nil {
		original, _ = tag.StringVal()
	}
	if tag, err := x.Get(goexif.DateTimeDigitized); err == nil {
		digitized, _ = tag.StringVal()
	}
	return original, digitized, nil
}

func withExif(data []byte, original, digitized string) ([]byte, error) {
	intfc, err := jis.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		return nil, err
	}
	sl := intfc.(*jis.SegmentList)

	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, err
	}
	ti := exif.NewTagIndex()

	rootIb := exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)
	if err := rootIb.SetStandardWithName("Software", "famlysync-test"); err != nil {
		return nil, err
	}

	exifIb, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD/Exif")
	if err != nil {
		return nil, err
	}
	if err := exifIb.SetStandardWithName("DateTimeOriginal", original); err != nil {
		return nil, err
	}
	if err := exifIb.SetStandardWithName("DateTimeDigitized", digitized); err != nil {
		return nil, err
	}

	if err := sl.SetExif(rootIb); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := sl.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
