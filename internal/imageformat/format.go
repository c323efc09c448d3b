// Package imageformat defines the short format tag stored alongside every
// image record. Tags are at most TagMaxLen bytes on the wire and in the
// database column.
package imageformat

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// TagMaxLen is the width of the image_format column.
const TagMaxLen = 4

// Format is a lowercase image format tag such as "png" or "webp".
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpg"
	GIF  Format = "gif"
	WebP Format = "webp"
	BMP  Format = "bmp"
	TIFF Format = "tiff"
	SVG  Format = "svg"
	HDR  Format = "hdr"
	AVIF Format = "avif"
)

// known maps every accepted tag to whether the server can encode it.
// webp and svg decode only; hdr and avif are recognised tags with no
// decoder or encoder in the processing stack.
var known = map[Format]bool{
	PNG:  true,
	JPEG: true,
	GIF:  true,
	BMP:  true,
	TIFF: true,
	WebP: false,
	SVG:  false,
	HDR:  false,
	AVIF: false,
}

// Parse normalises s to a known Format. "jpeg" is folded to "jpg" so the
// tag always fits the column width.
func Parse(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "jpeg" {
		f = JPEG
	}
	if _, ok := known[f]; !ok {
		return "", fmt.Errorf("unknown image format %q", s)
	}
	return f, nil
}

func (f Format) String() string { return string(f) }

// Extension returns the file extension for the format, without a dot.
func (f Format) Extension() string { return string(f) }

// Encodable reports whether the server can produce output in this format.
func (f Format) Encodable() bool {
	return known[f]
}

// ContentType returns the MIME type served with this format.
func (f Format) ContentType() string {
	switch f {
	case PNG:
		return "image/png"
	case JPEG:
		return "image/jpeg"
	case GIF:
		return "image/gif"
	case WebP:
		return "image/webp"
	case BMP:
		return "image/bmp"
	case TIFF:
		return "image/tiff"
	case SVG:
		return "image/svg+xml"
	case HDR:
		return "image/vnd.radiance"
	case AVIF:
		return "image/avif"
	default:
		return "application/octet-stream"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Value implements driver.Valuer so the tag can be bound to the
// image_format column directly.
func (f Format) Value() (driver.Value, error) {
	if len(f) > TagMaxLen {
		return nil, fmt.Errorf("format tag %q exceeds %d bytes", f, TagMaxLen)
	}
	return string(f), nil
}

// Scan implements sql.Scanner.
func (f *Format) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return f.UnmarshalText([]byte(v))
	case []byte:
		return f.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into Format", src)
	}
}
