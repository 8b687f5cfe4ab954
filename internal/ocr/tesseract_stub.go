//go:build !(cgo && ocr)

package ocr

import "image"

type unavailable struct{}

// Default returns a Recognizer that reports ErrUnavailable. Build with cgo
// and -tags ocr to use Tesseract.
func Default() Recognizer {
	return unavailable{}
}

func (unavailable) Recognize(image.Image) (string, float64, error) {
	return "", 0, ErrUnavailable
}
