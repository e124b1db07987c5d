package utils

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))))
	return buf.Bytes()
}

func TestUtils_ShouldDownloadImage(t *testing.T) {
	data := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(data)
	}))
	defer srv.Close()

	f, err := DownloadImage(context.Background(), srv.URL+"/face.png")
	require.NoError(t, err)
	defer os.Remove(f.Name())
	defer f.Close()

	assert.True(t, strings.Contains(f.Name(), "facenorm-"))
	ctype, err := DetectContentType(f)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ctype)
}

func TestUtils_ShouldRejectNonImageDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html><body>not an image</body></html>"))
	}))
	defer srv.Close()

	_, err := DownloadImage(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "not a valid image type")
}

func TestUtils_ShouldRejectBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := DownloadImage(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "404")
}

func TestUtils_ShouldBeValidUrl(t *testing.T) {
	assert.True(t, IsValidUrl("https://github.com/esimov/pigo/"))
	assert.False(t, IsValidUrl("testdata/face.jpg"))
	assert.False(t, IsValidUrl("http://"))
}

func TestUtils_ShouldDetectValidFileType(t *testing.T) {
	ftype, err := DetectContentType(bytes.NewReader(pngBytes(t)))
	require.NoError(t, err)
	assert.Contains(t, ftype, "image")
}
