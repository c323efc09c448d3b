package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolov/imgd/internal/imageformat"
)

// testPNG returns an encoded w x h PNG.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 100, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

const testSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 40 30"><rect width="40" height="30" fill="red"/></svg>`

func TestSniff(t *testing.T) {
	f, err := Sniff(testPNG(t, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, imageformat.PNG, f)

	f, err = Sniff([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	require.NoError(t, err)
	assert.Equal(t, imageformat.JPEG, f)

	f, err = Sniff([]byte("GIF89a trailer"))
	require.NoError(t, err)
	assert.Equal(t, imageformat.GIF, f)

	f, err = Sniff([]byte("RIFF\x00\x00\x00\x00WEBPVP8 "))
	require.NoError(t, err)
	assert.Equal(t, imageformat.WebP, f)

	f, err = Sniff([]byte{'B', 'M', 0, 0})
	require.NoError(t, err)
	assert.Equal(t, imageformat.BMP, f)

	f, err = Sniff([]byte{'I', 'I', 0x2A, 0x00})
	require.NoError(t, err)
	assert.Equal(t, imageformat.TIFF, f)

	f, err = Sniff([]byte(testSVG))
	require.NoError(t, err)
	assert.Equal(t, imageformat.SVG, f)

	_, err = Sniff([]byte("definitely not an image"))
	assert.Error(t, err)

	_, err = Sniff(nil)
	assert.Error(t, err)
}

func TestBounds(t *testing.T) {
	w, h, err := Bounds(testPNG(t, 120, 80))
	require.NoError(t, err)
	assert.Equal(t, 120, w)
	assert.Equal(t, 80, h)

	w, h, err = Bounds([]byte(testSVG))
	require.NoError(t, err)
	assert.Equal(t, 40, w)
	assert.Equal(t, 30, h)

	_, _, err = Bounds([]byte("garbage"))
	assert.Error(t, err)
}

func TestTranscodeFormat(t *testing.T) {
	src := testPNG(t, 10, 10)

	out, err := Transcode(src, imageformat.JPEG, 0, 0)
	require.NoError(t, err)
	f, err := Sniff(out)
	require.NoError(t, err)
	assert.Equal(t, imageformat.JPEG, f)

	out, err = Transcode(src, imageformat.BMP, 0, 0)
	require.NoError(t, err)
	f, err = Sniff(out)
	require.NoError(t, err)
	assert.Equal(t, imageformat.BMP, f)
}

func TestTranscodeResize(t *testing.T) {
	src := testPNG(t, 100, 50)

	// fit within 50x50 preserving aspect: 50x25
	out, err := Transcode(src, imageformat.PNG, 50, 50)
	require.NoError(t, err)
	w, h, err := Bounds(out)
	require.NoError(t, err)
	assert.Equal(t, 50, w)
	assert.Equal(t, 25, h)

	// zero height keeps the source dimension as the bound
	out, err = Transcode(src, imageformat.PNG, 20, 0)
	require.NoError(t, err)
	w, h, err = Bounds(out)
	require.NoError(t, err)
	assert.Equal(t, 20, w)
	assert.Equal(t, 10, h)
}

func TestTranscodeSVG(t *testing.T) {
	out, err := Transcode([]byte(testSVG), imageformat.PNG, 0, 0)
	require.NoError(t, err)

	f, err := Sniff(out)
	require.NoError(t, err)
	assert.Equal(t, imageformat.PNG, f)

	w, h, err := Bounds(out)
	require.NoError(t, err)
	assert.Equal(t, 40, w)
	assert.Equal(t, 30, h)
}

func TestTranscodeUnencodable(t *testing.T) {
	src := testPNG(t, 10, 10)

	_, err := Transcode(src, imageformat.WebP, 0, 0)
	assert.Error(t, err)

	_, err = Transcode(src, imageformat.AVIF, 0, 0)
	assert.Error(t, err)
}

func TestTranscodeBadInput(t *testing.T) {
	_, err := Transcode([]byte("not an image"), imageformat.PNG, 0, 0)
	assert.Error(t, err)
}
