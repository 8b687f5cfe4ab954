package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder

	"github.com/ironsheep/pixelfly/internal/apperr"
)

// Format is an output encoding.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// ParseFormat maps a user-supplied format name to a Format. An empty name
// selects JPEG.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	default:
		return "", apperr.New(apperr.ValidationError, "unsupported output format %q", name)
	}
}

// OutputFormat resolves the format for a result written to path. A
// recognised path extension selects the format when name is empty and
// must agree with name otherwise. Without a path, or with an unrecognised
// extension, it is ParseFormat(name).
func OutputFormat(name, path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	fromExt, err := ParseFormat(ext)
	if ext == "" || err != nil {
		return ParseFormat(name)
	}
	if strings.TrimSpace(name) == "" {
		return fromExt, nil
	}
	f, err := ParseFormat(name)
	if err != nil {
		return "", err
	}
	if f != fromExt {
		return "", apperr.New(apperr.ValidationError, "format %q does not match output file %q", name, filepath.Base(path))
	}
	return f, nil
}

// MIMEType returns the media type for the format.
func (f Format) MIMEType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// Limits bound what Decode accepts and produces.
type Limits struct {
	// MaxDimension caps the longer side of the decoded result. Zero means
	// no cap.
	MaxDimension int

	// MaxPixels rejects sources whose declared width*height exceeds it,
	// before any pixel data is decoded. Zero means no cap.
	MaxPixels int
}

// Decode turns raw image bytes into a normalized PixelBuffer and reports
// the detected source format.
//
// Supported inputs are JPEG, PNG, GIF, BMP, TIFF and WebP. The header is
// read first and the source rejected if it declares more than
// lim.MaxPixels pixels. The result is opaque RGB; if the longer side
// exceeds lim.MaxDimension the image is downscaled with a Lanczos filter,
// keeping its aspect ratio.
//
// # Errors
//
// Returns an apperr.DecodeError if the bytes are not a recognised image,
// are too large, or decode to an image with no pixels.
func Decode(data []byte, lim Limits) (PixelBuffer, string, error) {
	if len(data) == 0 {
		return PixelBuffer{}, "", apperr.New(apperr.DecodeError, "empty image data")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return PixelBuffer{}, "", apperr.Wrap(apperr.DecodeError, err, "failed to decode image")
	}
	if lim.MaxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(lim.MaxPixels) {
		return PixelBuffer{}, format, apperr.New(apperr.DecodeError,
			"image is %dx%d, exceeding the %d pixel limit", cfg.Width, cfg.Height, lim.MaxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return PixelBuffer{}, "", apperr.Wrap(apperr.DecodeError, err, "failed to decode image")
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return PixelBuffer{}, format, apperr.New(apperr.DecodeError, "image has no pixels")
	}

	return Normalize(img, lim.MaxDimension), format, nil
}

// Normalize converts img to an opaque PixelBuffer no larger than
// maxDimension on its longer side.
func Normalize(img image.Image, maxDimension int) PixelBuffer {
	b := img.Bounds()
	if maxDimension > 0 && (b.Dx() > maxDimension || b.Dy() > maxDimension) {
		return Own(imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos))
	}
	return FromImage(img)
}

// Encode writes the buffer in the requested format. quality applies to
// JPEG only.
func Encode(w io.Writer, buf PixelBuffer, format Format, quality int) error {
	if buf.Empty() {
		return fmt.Errorf("cannot encode empty image")
	}

	var err error
	switch format {
	case FormatPNG:
		err = imaging.Encode(w, buf.Image(), imaging.PNG)
	case FormatJPEG:
		err = imaging.Encode(w, buf.Image(), imaging.JPEG, imaging.JPEGQuality(quality))
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return nil
}

// EncodeBytes is Encode into a byte slice.
func EncodeBytes(buf PixelBuffer, format Format, quality int) ([]byte, error) {
	var out bytes.Buffer
	if err := Encode(&out, buf, format, quality); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
