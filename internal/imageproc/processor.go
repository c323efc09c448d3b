package imageproc

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/avolov/imgd/internal/imageformat"
)

// Sniff inspects raw bytes and returns the image format, or an error when
// the payload is not a recognised image.
func Sniff(data []byte) (imageformat.Format, error) {
	// JPEG: starts with FF D8 FF
	if len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return imageformat.JPEG, nil
	}
	// PNG: starts with 89 50 4E 47 0D 0A 1A 0A
	if len(data) >= 8 && data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 &&
		data[4] == 0x0D && data[5] == 0x0A && data[6] == 0x1A && data[7] == 0x0A {
		return imageformat.PNG, nil
	}
	// GIF: starts with GIF87a or GIF89a
	if len(data) >= 6 && data[0] == 'G' && data[1] == 'I' && data[2] == 'F' {
		return imageformat.GIF, nil
	}
	// WebP: starts with RIFF....WEBP
	if len(data) >= 12 && data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' &&
		data[8] == 'W' && data[9] == 'E' && data[10] == 'B' && data[11] == 'P' {
		return imageformat.WebP, nil
	}
	// BMP: starts with BM
	if len(data) >= 2 && data[0] == 'B' && data[1] == 'M' {
		return imageformat.BMP, nil
	}
	// TIFF: II*\0 (little endian) or MM\0* (big endian)
	if len(data) >= 4 &&
		((data[0] == 'I' && data[1] == 'I' && data[2] == 0x2A && data[3] == 0x00) ||
			(data[0] == 'M' && data[1] == 'M' && data[2] == 0x00 && data[3] == 0x2A)) {
		return imageformat.TIFF, nil
	}
	if IsSVG(data) {
		return imageformat.SVG, nil
	}
	return "", fmt.Errorf("unsupported or unrecognized image format")
}

// Bounds returns the pixel dimensions of the image without fully decoding
// it. SVG reports the parsed viewbox.
func Bounds(data []byte) (int, int, error) {
	if IsSVG(data) {
		return svgBounds(data)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decoding image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// decode turns raw bytes into an image.Image. SVG input is rasterized.
func decode(data []byte) (image.Image, error) {
	if IsSVG(data) {
		return rasterizeSVG(data)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// Transcode converts src to the target format, optionally resizing to fit
// within width x height. A zero width or height means "keep the source
// dimension"; aspect ratio is always preserved and the image is never
// enlarged past the requested box.
func Transcode(src []byte, target imageformat.Format, width, height int) ([]byte, error) {
	if !target.Encodable() {
		return nil, fmt.Errorf("no encoder for format %q", target)
	}

	img, err := decode(src)
	if err != nil {
		return nil, err
	}

	if width > 0 || height > 0 {
		w := width
		h := height
		if w == 0 {
			w = img.Bounds().Dx()
		}
		if h == 0 {
			h = img.Bounds().Dy()
		}
		img = imaging.Fit(img, w, h, imaging.Lanczos)
	}

	return encode(img, target)
}

// encode serialises img in the requested format.
func encode(img image.Image, target imageformat.Format) ([]byte, error) {
	var f imaging.Format
	var opts []imaging.EncodeOption

	switch target {
	case imageformat.PNG:
		f = imaging.PNG
	case imageformat.JPEG:
		f = imaging.JPEG
		opts = append(opts, imaging.JPEGQuality(85))
	case imageformat.GIF:
		f = imaging.GIF
	case imageformat.BMP:
		f = imaging.BMP
	case imageformat.TIFF:
		f = imaging.TIFF
	default:
		return nil, fmt.Errorf("no encoder for format %q", target)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, f, opts...); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", target, err)
	}
	return buf.Bytes(), nil
}
