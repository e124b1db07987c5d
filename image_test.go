package facenorm

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// withPNGSize rewrites the dimensions stored in the PNG header.
func withPNGSize(data []byte, w, h uint32) []byte {
	out := append([]byte(nil), data...)
	// signature(8) length(4) "IHDR"(4) width(4) height(4) ... crc
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestImage_Decode(t *testing.T) {
	img, err := decodeImage(encodePNG(t, grayNRGBA(64, 80, 10)))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 80), img.Bounds())
	assert.Equal(t, color.NRGBA{R: 10, G: 10, B: 10, A: 0xff}, img.NRGBAAt(5, 5))
}

func TestImage_DecodeGates(t *testing.T) {
	_, err := decodeImage([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrImageUnreadable)

	_, err = decodeImage(encodePNG(t, grayNRGBA(49, 200, 0)))
	assert.ErrorIs(t, err, ErrImageTooSmall)

	// The header is checked before any pixel is allocated.
	huge := withPNGSize(encodePNG(t, grayNRGBA(50, 50, 0)), 60, MaxImageSide+1)
	_, err = decodeImage(huge)
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestImage_ReadImage(t *testing.T) {
	_, err := readImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, ErrImageUnreadable)

	path := filepath.Join(t.TempDir(), "face.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, grayNRGBA(50, 50, 1)), 0o644))
	img, err := readImage(path)
	require.NoError(t, err)
	assert.Equal(t, 50, img.Bounds().Dx())
}

func TestImage_ToNRGBA(t *testing.T) {
	src := grayNRGBA(10, 10, 0)
	src.SetNRGBA(4, 6, color.NRGBA{R: 0xff, A: 0xff})

	assert.Same(t, src, imgToNRGBA(src))

	sub := src.SubImage(image.Rect(2, 3, 8, 9))
	got := imgToNRGBA(sub)
	assert.Equal(t, image.Rect(0, 0, 6, 6), got.Bounds())
	assert.Equal(t, color.NRGBA{R: 0xff, A: 0xff}, got.NRGBAAt(2, 3))

	gray := image.NewGray(image.Rect(0, 0, 2, 2))
	gray.SetGray(1, 1, color.Gray{Y: 200})
	assert.Equal(t, color.NRGBA{R: 200, G: 200, B: 200, A: 0xff}, imgToNRGBA(gray).NRGBAAt(1, 1))
}

func TestImage_OutputFormat(t *testing.T) {
	format, err := outputFormat(&bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, imaging.JPEG, format)

	dir := t.TempDir()
	for name, want := range map[string]imaging.Format{
		"face.png":  imaging.PNG,
		"face.jpeg": imaging.JPEG,
		"face.bmp":  imaging.BMP,
		"face":      imaging.JPEG,
	} {
		f, err := os.Create(filepath.Join(dir, name))
		require.NoError(t, err)

		format, err := outputFormat(f)
		assert.NoError(t, err, name)
		assert.Equal(t, want, format, name)
		f.Close()
	}

	f, err := os.Create(filepath.Join(dir, "face.xyz"))
	require.NoError(t, err)
	defer f.Close()
	_, err = outputFormat(f)
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestImage_EncodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, encodeImage(&buf, grayNRGBA(60, 60, 128)))

	img, err := decodeImage(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 60, 60), img.Bounds())
	assert.InDelta(t, 128, int(img.NRGBAAt(30, 30).G), 2)
}
