// Package render draws styled text watermarks onto a PixelBuffer.
//
// Each Style is a fixed recipe of passes: offset copies of the text (or, for
// the vintage stamp, a frame) drawn onto a transparent overlay in a given
// color and alpha. The overlay is then composited over a copy of the image.
package render

import (
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/pixelfly/internal/apperr"
	"github.com/ironsheep/pixelfly/internal/placement"
)

// DefaultText is used when a request does not supply watermark text.
const DefaultText = "© PixelFly"

// DefaultOpacity is used when a request does not supply an opacity.
const DefaultOpacity = 0.8

// Style is a watermark rendering style.
type Style string

const (
	Minimal      Style = "minimal_clean"
	Glass        Style = "modern_glass"
	Neon         Style = "neon_glow"
	VintageStamp Style = "vintage_stamp"
	Holographic  Style = "holographic"
	Brush        Style = "artistic_brush"
)

// Styles lists every style.
var Styles = []Style{Minimal, Glass, Neon, VintageStamp, Holographic, Brush}

// ParseStyle maps a wire name to a Style. An empty name selects Glass.
func ParseStyle(name string) (Style, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Glass, nil
	}
	for _, s := range Styles {
		if string(s) == name {
			return s, nil
		}
	}
	return "", apperr.New(apperr.ValidationError, "unknown watermark style %q", name)
}

// SizeClass selects the font size.
type SizeClass string

const (
	Small    SizeClass = "small"
	Medium   SizeClass = "medium"
	Large    SizeClass = "large"
	Adaptive SizeClass = "adaptive"
)

// Sizes lists every size class.
var Sizes = []SizeClass{Small, Medium, Large, Adaptive}

// ParseSize maps a wire name to a SizeClass. An empty name selects Medium.
func ParseSize(name string) (SizeClass, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Medium, nil
	}
	for _, s := range Sizes {
		if string(s) == name {
			return s, nil
		}
	}
	return "", apperr.New(apperr.ValidationError, "unknown watermark size %q", name)
}

var (
	White = color.NRGBA{255, 255, 255, 255}
	Black = color.NRGBA{0, 0, 0, 255}
)

var namedColors = map[string]color.NRGBA{
	"white":  White,
	"black":  Black,
	"red":    {255, 0, 0, 255},
	"blue":   {0, 0, 255, 255},
	"green":  {0, 255, 0, 255},
	"yellow": {255, 255, 0, 255},
	"purple": {128, 0, 128, 255},
	"orange": {255, 165, 0, 255},
}

// ColorNames lists the accepted color names.
var ColorNames = []string{"white", "black", "red", "blue", "green", "yellow", "purple", "orange"}

// ParseColor accepts a color name or a #rrggbb hex value. Anything else is
// white.
func ParseColor(name string) color.NRGBA {
	name = strings.ToLower(strings.TrimSpace(name))
	if c, ok := namedColors[name]; ok {
		return c
	}
	if strings.HasPrefix(name, "#") {
		if c, err := colorful.Hex(name); err == nil {
			r, g, b := c.RGB255()
			return color.NRGBA{r, g, b, 255}
		}
	}
	return White
}

// Spec describes one watermark.
type Spec struct {
	Text     string
	Position placement.Position
	Opacity  float64
	Style    Style
	Size     SizeClass
	Color    color.NRGBA
}

// DefaultSpec returns the documented defaults.
func DefaultSpec() Spec {
	return Spec{
		Text:     DefaultText,
		Position: placement.SmartAdaptive{},
		Opacity:  DefaultOpacity,
		Style:    Glass,
		Size:     Medium,
		Color:    White,
	}
}

// Validate checks the caller-supplied fields.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Text) == "" {
		return apperr.New(apperr.ValidationError, "watermark text is required")
	}
	if math.IsNaN(s.Opacity) || s.Opacity < 0 || s.Opacity > 1 {
		return apperr.New(apperr.ValidationError, "opacity %v is outside [0, 1]", s.Opacity)
	}
	if s.Position == nil {
		return apperr.New(apperr.ValidationError, "watermark position is required")
	}
	return nil
}
