// Package ocr checks whether a rendered watermark can be read back.
//
// The probe crops the watermark rectangle, upscales it and runs it through a
// Recognizer. Tesseract (via gosseract) is used when the binary is built with
// cgo and the "ocr" tag; otherwise Default returns a Recognizer that always
// reports ErrUnavailable. The result is informational only.
package ocr

import (
	"errors"
	"image"
	"strings"
	"unicode"

	imgutil "github.com/disintegration/imaging"

	"github.com/ironsheep/pixelfly/internal/imaging"
)

// ErrUnavailable is returned when OCR support is not compiled in.
var ErrUnavailable = errors.New("ocr: tesseract support not compiled in")

// probeScale is the upscale factor applied to the crop before recognition.
// Tesseract reads small watermark text far better at 2x.
const probeScale = 2

// Recognizer extracts text from an image.
type Recognizer interface {
	// Recognize returns the recognised text and a mean word confidence
	// in [0, 1].
	Recognize(img image.Image) (text string, confidence float64, err error)
}

// Legibility is the outcome of a probe.
type Legibility struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Recovered  bool    `json:"recovered"`
}

// Probe runs r over rect of buf and reports whether expected was recovered.
func Probe(r Recognizer, buf imaging.PixelBuffer, rect image.Rectangle, expected string) (Legibility, error) {
	rect = rect.Intersect(buf.Bounds())
	if rect.Empty() {
		return Legibility{}, errors.New("ocr: probe rectangle is empty")
	}

	crop := imgutil.Crop(buf.Image(), rect)
	crop = imgutil.Resize(crop, rect.Dx()*probeScale, rect.Dy()*probeScale, imgutil.Lanczos)

	text, conf, err := r.Recognize(crop)
	if err != nil {
		return Legibility{}, err
	}

	return Legibility{
		Text:       strings.TrimSpace(text),
		Confidence: conf,
		Recovered:  Matches(expected, text),
	}, nil
}

// Matches reports whether the letters and digits of expected appear, in
// order and ignoring case, in got. Text without any letters or digits never
// matches.
func Matches(expected, got string) bool {
	want := normalize(expected)
	if want == "" {
		return false
	}
	return strings.Contains(normalize(got), want)
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
