//go:build cgo && ocr

package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognises text with the system Tesseract installation.
// Language data must be installed (for example tesseract-ocr-eng).
type Tesseract struct {
	Language string
}

// Default returns the Tesseract recognizer for English.
func Default() Recognizer {
	return Tesseract{Language: "eng"}
}

// Recognize implements Recognizer.
func (t Tesseract) Recognize(img image.Image) (string, float64, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", 0, fmt.Errorf("failed to encode probe image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.Language); err != nil {
		return "", 0, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		return "", 0, fmt.Errorf("failed to set page segmentation: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", 0, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", 0, fmt.Errorf("OCR failed: %w", err)
	}

	// Word boxes only feed the confidence; their absence is not an error.
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return text, 0, nil
	}
	var sum float64
	for _, box := range boxes {
		sum += box.Confidence
	}
	return text, sum / float64(len(boxes)) / 100, nil
}
