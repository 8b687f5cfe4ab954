package enhance

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/convolution"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/histogram"
	imgutil "github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"github.com/ironsheep/pixelfly/internal/apperr"
	"github.com/ironsheep/pixelfly/internal/imaging"
)

// maxParam is the largest factor any operation accepts.
const maxParam = 3.0

// sharpenRadius is the unsharp mask radius as bild takes it. bild blurs
// with Gaussian(5*radius), whose kernel exp(-x²/(4*5*radius)) has sigma 2
// at 0.4, the same mask as a radius-2 unsharp mask elsewhere.
const sharpenRadius = 0.4

// Skipped records an operation that failed and was left out.
type Skipped struct {
	Kind OpKind `json:"operation"`
	Err  error  `json:"-"`
}

// Outcome is the result of executing a plan.
type Outcome struct {
	Buffer  imaging.PixelBuffer
	Applied []OpKind
	Skipped []Skipped
}

// step applies one operation. Steps never modify their input.
type step func(src image.Image, param float64) image.Image

var steps = map[OpKind]step{
	NoiseReduce:      noiseReduce,
	Sharpen:          sharpen,
	ContrastAdjust:   contrastAdjust,
	BrightnessAdjust: brightnessAdjust,
	SaturationAdjust: saturationAdjust,
	ColorBalance:     colorBalance,
	DetailBoost:      detailBoost,
}

// Execute applies plan to src in plan order and returns a new buffer. src is
// never modified. An operation that fails is skipped and execution continues
// with the next one. The only error is an unreadable source, in which case
// the outcome still carries src unchanged.
func Execute(src imaging.PixelBuffer, plan Plan) (Outcome, error) {
	out := Outcome{Buffer: src}
	if src.Empty() {
		return out, apperr.New(apperr.EnhancementOperationFailure, "source buffer has no pixels")
	}

	cur := src
	for _, op := range plan {
		next, err := apply(cur, op)
		if err != nil {
			log.Warn().Err(err).Str("operation", string(op.Kind)).Msg("skipping enhancement")
			out.Skipped = append(out.Skipped, Skipped{Kind: op.Kind, Err: err})
			continue
		}
		cur = next
		out.Applied = append(out.Applied, op.Kind)
	}

	out.Buffer = cur
	return out, nil
}

func apply(src imaging.PixelBuffer, op Operation) (out imaging.PixelBuffer, err error) {
	fn, ok := steps[op.Kind]
	if !ok {
		return src, apperr.New(apperr.EnhancementOperationFailure, "unknown operation %q", op.Kind)
	}
	if math.IsNaN(op.Param) || math.IsInf(op.Param, 0) || op.Param <= 0 || op.Param > maxParam {
		return src, apperr.New(apperr.EnhancementOperationFailure, "%s: parameter %v out of range (0, %v]", op.Kind, op.Param, maxParam)
	}

	defer func() {
		if r := recover(); r != nil {
			out = src
			err = apperr.Wrap(apperr.EnhancementOperationFailure, fmt.Errorf("%v", r), "%s panicked", op.Kind)
		}
	}()

	res := fn(src.Image(), op.Param)
	if res == nil || !res.Bounds().Eq(src.Bounds()) {
		return src, apperr.New(apperr.EnhancementOperationFailure, "%s produced an image of the wrong shape", op.Kind)
	}
	return imaging.FromImage(res), nil
}

func noiseReduce(src image.Image, _ float64) image.Image {
	return effect.Median(src, 1)
}

func sharpen(src image.Image, amount float64) image.Image {
	return effect.UnsharpMask(src, sharpenRadius, amount)
}

func contrastAdjust(src image.Image, f float64) image.Image {
	return imgutil.AdjustContrast(src, (f-1)*100)
}

func brightnessAdjust(src image.Image, f float64) image.Image {
	return adjust.Brightness(src, f-1)
}

func saturationAdjust(src image.Image, f float64) image.Image {
	return imgutil.AdjustSaturation(src, (f-1)*100)
}

// colorBalance stretches each channel so that its 2nd and 98th percentiles
// map to 0 and 255. A channel whose percentiles coincide is left alone.
func colorBalance(src image.Image, _ float64) image.Image {
	h := histogram.NewRGBAHistogram(src)
	lr := stretchTable(h.R.Bins)
	lg := stretchTable(h.G.Bins)
	lb := stretchTable(h.B.Bins)

	return adjust.Apply(src, func(c color.RGBA) color.RGBA {
		return color.RGBA{lr[c.R], lg[c.G], lb[c.B], c.A}
	})
}

func stretchTable(bins []int) [256]uint8 {
	var table [256]uint8
	for i := range table {
		table[i] = uint8(i)
	}

	lo, hi := percentile(bins, 0.02), percentile(bins, 0.98)
	if hi <= lo {
		return table
	}

	scale := 255 / (hi - lo)
	for i := range table {
		v := (float64(i) - lo) * scale
		table[i] = uint8(math.Max(0, math.Min(255, math.Round(v))))
	}
	return table
}

// percentile returns the p-th quantile of the samples counted in bins,
// interpolating linearly between the two nearest ranks.
func percentile(bins []int, p float64) float64 {
	total := 0
	for _, c := range bins {
		total += c
	}
	if total == 0 {
		return 0
	}

	pos := p * float64(total-1)
	rank := int(math.Floor(pos))
	lo := valueAtRank(bins, rank)
	if frac := pos - float64(rank); frac > 0 {
		return lo + frac*(valueAtRank(bins, rank+1)-lo)
	}
	return lo
}

// valueAtRank returns the k-th smallest sample (0-based).
func valueAtRank(bins []int, k int) float64 {
	cum := 0
	for v, c := range bins {
		cum += c
		if cum > k {
			return float64(v)
		}
	}
	return float64(len(bins) - 1)
}

var detailKernel = convolution.Kernel{
	Matrix: []float64{
		0, -1.0 / 6, 0,
		-1.0 / 6, 10.0 / 6, -1.0 / 6,
		0, -1.0 / 6, 0,
	},
	Width:  3,
	Height: 3,
}

func detailBoost(src image.Image, f float64) image.Image {
	detailed := convolution.Convolve(src, &detailKernel, &convolution.Options{KeepAlpha: true})
	return blend.Opacity(src, detailed, math.Max(0, math.Min(1, f)))
}
