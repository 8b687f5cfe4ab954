package render

import (
	"fmt"
	"image"
	"sync"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

var (
	regularOnce sync.Once
	regular     *opentype.Font
	regularErr  error
)

func regularFont() (*opentype.Font, error) {
	regularOnce.Do(func() {
		regular, regularErr = opentype.Parse(goregular.TTF)
	})
	return regular, regularErr
}

// newFace returns a fresh face at size pixels. Faces are not safe for
// concurrent use, so every render gets its own.
func newFace(size int) (font.Face, error) {
	f, err := regularFont()
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create %dpx face: %w", size, err)
	}
	return face, nil
}

// FontSize resolves a size class to pixels. Adaptive sizing fits the text
// into rect: min(width/len(text), height/2, 24), at least 12.
func FontSize(size SizeClass, rect image.Rectangle, text string) int {
	switch size {
	case Small:
		return 14
	case Large:
		return 28
	case Adaptive:
		n := utf8.RuneCountInString(text)
		if n == 0 {
			n = 1
		}
		px := min(rect.Dx()/n, rect.Dy()/2, 24)
		return max(px, 12)
	default:
		return 20
	}
}

// textBox measures text in face and returns its size in pixels and the
// distance from the top of the box to the baseline.
func textBox(face font.Face, text string) (w, h, ascent int) {
	m := face.Metrics()
	w = font.MeasureString(face, text).Ceil()
	ascent = m.Ascent.Ceil()
	h = ascent + m.Descent.Ceil()
	return w, h, ascent
}
