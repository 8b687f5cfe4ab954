package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	imgutil "github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/pixelfly/internal/apperr"
	"github.com/ironsheep/pixelfly/internal/imaging"
)

// stampPadding and stampStroke shape the vintage stamp frame.
const (
	stampPadding = 8
	stampStroke  = 3
)

var (
	neonGlow   = color.NRGBA{0, 255, 255, 255}
	glassLight = color.NRGBA{200, 200, 200, 255}
	stampBrown = color.NRGBA{139, 69, 19, 255}

	holoPalette = []color.NRGBA{
		{255, 0, 0, 255},
		{255, 127, 0, 255},
		{255, 255, 0, 255},
		{0, 255, 0, 255},
		{0, 0, 255, 255},
		{75, 0, 130, 255},
		{148, 0, 211, 255},
	}
)

// pass is one drawing step of a style. A frame pass strokes the inset
// zone outline instead of drawing text.
type pass struct {
	offset image.Point
	color  color.NRGBA
	frame  bool
}

func withAlpha(c color.NRGBA, a int) color.NRGBA {
	c.A = uint8(max(0, min(255, a)))
	return c
}

// passes returns the recipe for style, drawn in order.
func passes(style Style, base color.NRGBA, alpha int) ([]pass, error) {
	switch style {
	case Minimal:
		return []pass{{color: withAlpha(base, alpha)}}, nil

	case Glass:
		return []pass{
			{offset: image.Pt(2, 2), color: withAlpha(base, alpha/3)},
			{offset: image.Pt(1, 1), color: withAlpha(glassLight, alpha/2)},
			{color: withAlpha(base, alpha)},
		}, nil

	case Neon:
		glow := base
		if base == White {
			glow = neonGlow
		}
		var ps []pass
		for o := 4; o >= 1; o-- {
			for _, dx := range []int{-o, 0, o} {
				for _, dy := range []int{-o, 0, o} {
					if dx == 0 && dy == 0 {
						continue
					}
					ps = append(ps, pass{offset: image.Pt(dx, dy), color: withAlpha(glow, alpha/(o+1))})
				}
			}
		}
		return append(ps, pass{color: withAlpha(White, alpha)}), nil

	case VintageStamp:
		stamp := base
		if base == White {
			stamp = stampBrown
		}
		return []pass{
			{color: withAlpha(stamp, alpha), frame: true},
			{color: withAlpha(stamp, alpha)},
		}, nil

	case Holographic:
		ps := make([]pass, 0, len(holoPalette)+1)
		for i, c := range holoPalette {
			ps = append(ps, pass{offset: image.Pt(i-3, 0), color: withAlpha(c, alpha/3)})
		}
		return append(ps, pass{color: withAlpha(base, alpha)}), nil

	case Brush:
		ps := make([]pass, 0, 4)
		for i := 0; i < 3; i++ {
			ps = append(ps, pass{offset: image.Pt(i-1, i-1), color: withAlpha(base, alpha/(i+2))})
		}
		return append(ps, pass{color: withAlpha(base, alpha)}), nil

	default:
		return nil, fmt.Errorf("unknown style %q", style)
	}
}

// Render draws spec's text inside rect and composites it over buf. buf is
// not modified. On failure the original buffer is returned together with a
// RenderFailure error.
func Render(buf imaging.PixelBuffer, rect image.Rectangle, spec Spec) (out imaging.PixelBuffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = buf, apperr.Wrap(apperr.RenderFailure, fmt.Errorf("%v", r), "watermark draw panicked")
		}
	}()

	overlay, err := Overlay(buf.Bounds(), rect, spec)
	if err != nil {
		return buf, err
	}
	return imaging.Own(imgutil.Overlay(buf.Image(), overlay, image.Pt(0, 0), 1.0)), nil
}

// Overlay draws the watermark onto a transparent canvas of the given
// bounds. Nothing is drawn outside rect.
func Overlay(bounds, rect image.Rectangle, spec Spec) (*image.RGBA, error) {
	if spec.Text == "" {
		return nil, apperr.New(apperr.RenderFailure, "empty watermark text")
	}
	if rect.Empty() || !rect.In(bounds) {
		return nil, apperr.New(apperr.RenderFailure, "target %v is not inside %v", rect, bounds)
	}

	alpha := int(255 * spec.Opacity)
	recipe, err := passes(spec.Style, spec.Color, alpha)
	if err != nil {
		return nil, apperr.Wrap(apperr.RenderFailure, err, "cannot render")
	}

	face, err := newFace(FontSize(spec.Size, rect, spec.Text))
	if err != nil {
		return nil, apperr.Wrap(apperr.RenderFailure, err, "cannot load font")
	}
	defer face.Close()

	canvas := image.NewRGBA(bounds)
	clip := canvas.SubImage(rect).(*image.RGBA)
	origin := textOrigin(face, rect, spec.Text)

	for _, p := range recipe {
		if p.frame {
			drawFrame(clip, rect.Inset(stampPadding), p.color)
			continue
		}
		d := font.Drawer{
			Dst:  clip,
			Src:  image.NewUniform(p.color),
			Face: face,
			Dot:  fixed.P(origin.X+p.offset.X, origin.Y+p.offset.Y),
		}
		d.DrawString(spec.Text)
	}
	return canvas, nil
}

// textOrigin centres the text box in rect, keeping it inside rect where it
// fits, and returns the baseline origin.
func textOrigin(face font.Face, rect image.Rectangle, text string) image.Point {
	w, h, ascent := textBox(face, text)
	x := rect.Min.X + (rect.Dx()-w)/2
	y := rect.Min.Y + (rect.Dy()-h)/2
	x = max(rect.Min.X, min(x, rect.Max.X-w))
	y = max(rect.Min.Y, min(y, rect.Max.Y-h))
	return image.Pt(x, y+ascent)
}

// drawFrame strokes the outline of r. Rectangles too small to hold the
// stroke are skipped.
func drawFrame(dst draw.Image, r image.Rectangle, c color.NRGBA) {
	if r.Dx() <= 2*stampStroke || r.Dy() <= 2*stampStroke {
		return
	}
	src := image.NewUniform(c)
	bars := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+stampStroke),
		image.Rect(r.Min.X, r.Max.Y-stampStroke, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y+stampStroke, r.Min.X+stampStroke, r.Max.Y-stampStroke),
		image.Rect(r.Max.X-stampStroke, r.Min.Y+stampStroke, r.Max.X, r.Max.Y-stampStroke),
	}
	for _, bar := range bars {
		draw.Draw(dst, bar, src, image.Point{}, draw.Over)
	}
}
