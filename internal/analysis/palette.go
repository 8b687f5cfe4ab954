package analysis

import (
	"image"
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/pixelfly/internal/imaging"
)

// Swatch is one entry of a dominant-colour palette.
type Swatch struct {
	Hex        string  `json:"hex"`
	Percentage float64 `json:"percentage"`
	Hue        float64 `json:"hue"`
	Saturation float64 `json:"saturation"`
	Lightness  float64 `json:"lightness"`
}

// Palette returns up to count of the most frequent colours inside r, most
// frequent first. Channels are quantized to steps of 16 so that near
// identical shades fall into one bucket. An empty r means the whole image.
func Palette(buf imaging.PixelBuffer, r image.Rectangle, count int) []Swatch {
	if buf.Empty() || count <= 0 {
		return nil
	}
	if r.Empty() {
		r = buf.Bounds()
	}
	r = r.Intersect(buf.Bounds())
	if r.Empty() {
		return nil
	}

	buckets := make(map[[3]uint8]int)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			cr, cg, cb := buf.RGB(x, y)
			buckets[[3]uint8{cr &^ 15, cg &^ 15, cb &^ 15}]++
		}
	}

	type bucket struct {
		rgb [3]uint8
		n   int
	}
	sorted := make([]bucket, 0, len(buckets))
	for k, n := range buckets {
		sorted = append(sorted, bucket{k, n})
	}
	// Ties break on the packed colour value to keep output stable.
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].n != sorted[j].n {
			return sorted[i].n > sorted[j].n
		}
		return pack(sorted[i].rgb) < pack(sorted[j].rgb)
	})
	if len(sorted) > count {
		sorted = sorted[:count]
	}

	total := float64(r.Dx() * r.Dy())
	out := make([]Swatch, len(sorted))
	for i, b := range sorted {
		c := colorful.Color{R: float64(b.rgb[0]) / 255, G: float64(b.rgb[1]) / 255, B: float64(b.rgb[2]) / 255}
		h, s, l := c.Hsl()
		out[i] = Swatch{
			Hex:        c.Hex(),
			Percentage: round2(float64(b.n) / total * 100),
			Hue:        round2(h),
			Saturation: round2(s),
			Lightness:  round2(l),
		}
	}
	return out
}

func pack(c [3]uint8) int {
	return int(c[0])<<16 | int(c[1])<<8 | int(c[2])
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
