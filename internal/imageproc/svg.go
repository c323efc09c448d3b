package imageproc

import (
	"bytes"
	"fmt"
	"image"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// svgDefaultSize is used when an SVG declares no usable viewbox.
const svgDefaultSize = 512

// IsSVG checks whether the data appears to be SVG content by looking for
// markers near the beginning of the file.
func IsSVG(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	limit := 512
	if len(data) < limit {
		limit = len(data)
	}
	header := bytes.ToLower(data[:limit])
	return bytes.Contains(header, []byte("<svg")) ||
		bytes.Contains(header, []byte(`xmlns="http://www.w3.org/2000/svg"`))
}

func svgBounds(data []byte) (int, int, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("parsing svg: %w", err)
	}
	w := int(icon.ViewBox.W)
	h := int(icon.ViewBox.H)
	if w <= 0 || h <= 0 {
		w, h = svgDefaultSize, svgDefaultSize
	}
	return w, h, nil
}

// rasterizeSVG renders SVG bytes onto an RGBA canvas sized from the
// viewbox.
func rasterizeSVG(data []byte) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing svg: %w", err)
	}

	w := int(icon.ViewBox.W)
	h := int(icon.ViewBox.H)
	if w <= 0 || h <= 0 {
		w, h = svgDefaultSize, svgDefaultSize
	}

	icon.SetTarget(0, 0, float64(w), float64(h))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)

	return dst, nil
}
