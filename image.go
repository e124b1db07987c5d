package facenorm

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// Accepted source image dimensions, in pixels on either side.
const (
	MinImageSide = 50
	MaxImageSide = 100000
)

// checkDimensions rejects images which are too small to hold a face
// or too large to be decoded safely.
func checkDimensions(w, h int) error {
	if w < MinImageSide || h < MinImageSide {
		return fmt.Errorf("%w: %dx%d, minimum side is %d", ErrImageTooSmall, w, h, MinImageSide)
	}
	if w > MaxImageSide || h > MaxImageSide {
		return fmt.Errorf("%w: %dx%d, maximum side is %d", ErrImageTooLarge, w, h, MaxImageSide)
	}
	return nil
}

// readImage reads and decodes an image file.
func readImage(path string) (*image.NRGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageUnreadable, err)
	}
	return decodeImage(data)
}

// decodeImage checks the dimensions stored in the image header before
// decoding the pixels, so an oversized image is never allocated.
// The EXIF orientation of the JPEG images is applied.
func decodeImage(data []byte) (*image.NRGBA, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageUnreadable, err)
	}
	if err := checkDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageUnreadable, err)
	}
	return imgToNRGBA(img), nil
}

// imgToNRGBA converts any image type to *image.NRGBA with min-point at (0, 0).
func imgToNRGBA(img image.Image) *image.NRGBA {
	if src, ok := img.(*image.NRGBA); ok && src.Bounds().Min == (image.Point{}) {
		return src
	}
	return imaging.Clone(img)
}

// outputFormat returns the encoding format of the destination. Files are
// encoded by their extension, any other writer receives a JPEG image.
func outputFormat(w io.Writer) (imaging.Format, error) {
	f, ok := w.(*os.File)
	if !ok || filepath.Ext(f.Name()) == "" || f == os.Stdout {
		return imaging.JPEG, nil
	}
	format, err := imaging.FormatFromFilename(f.Name())
	if err != nil {
		return 0, fmt.Errorf("unsupported output format %q: %w", filepath.Ext(f.Name()), err)
	}
	return format, nil
}

// encodeImage encodes an image to a destination of type io.Writer.
func encodeImage(w io.Writer, img image.Image) error {
	format, err := outputFormat(w)
	if err != nil {
		return err
	}
	return imaging.Encode(w, img, format, imaging.JPEGQuality(95))
}
