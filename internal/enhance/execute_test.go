package enhance

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/pixelfly/internal/apperr"
	"github.com/ironsheep/pixelfly/internal/imaging"
)

func gradient(w, h int) imaging.PixelBuffer {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i] = uint8(60 + x*100/w)
			img.Pix[i+1] = uint8(80 + y*60/h)
			img.Pix[i+2] = 100
			img.Pix[i+3] = 255
		}
	}
	return imaging.Own(img)
}

func speckled(w, h int) imaging.PixelBuffer {
	rng := rand.New(rand.NewSource(7))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		v := uint8(128)
		if rng.Intn(10) == 0 {
			v = 255
		}
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
	}
	return imaging.Own(img)
}

func TestExecute_EmptyPlanIsIdentity(t *testing.T) {
	src := gradient(40, 30)
	out, err := Execute(src, nil)

	require.NoError(t, err)
	assert.True(t, out.Buffer.Equal(src))
	assert.Empty(t, out.Applied)
	assert.Empty(t, out.Skipped)
}

func TestExecute_DoesNotMutateSource(t *testing.T) {
	src := gradient(40, 30)
	snapshot := imaging.FromImage(src.Image())

	plan := NewPlan(
		Operation{NoiseReduce, 0.8},
		Operation{Sharpen, 1.3},
		Operation{ContrastAdjust, 1.2},
		Operation{BrightnessAdjust, 1.1},
		Operation{SaturationAdjust, 1.15},
		Operation{ColorBalance, 1},
		Operation{DetailBoost, 1},
	)
	out, err := Execute(src, plan)

	require.NoError(t, err)
	assert.True(t, src.Equal(snapshot))
	assert.Equal(t, OpOrder, out.Applied)
	assert.Equal(t, src.Bounds(), out.Buffer.Bounds())
	assert.False(t, out.Buffer.Equal(src))
}

func TestExecute_SkipsFailedOperation(t *testing.T) {
	src := gradient(20, 20)
	plan := Plan{
		{Sharpen, 1.3},
		{ContrastAdjust, 7},
		{"vignette", 1},
		{BrightnessAdjust, 1.1},
	}

	out, err := Execute(src, plan)
	require.NoError(t, err)

	assert.Equal(t, []OpKind{Sharpen, BrightnessAdjust}, out.Applied)
	require.Len(t, out.Skipped, 2)
	assert.Equal(t, ContrastAdjust, out.Skipped[0].Kind)
	assert.Equal(t, apperr.EnhancementOperationFailure, apperr.KindOf(out.Skipped[0].Err))
	assert.Equal(t, OpKind("vignette"), out.Skipped[1].Kind)
}

func TestExecute_RejectsBadParameters(t *testing.T) {
	for _, p := range []float64{0, -1, 3.5} {
		_, err := apply(gradient(4, 4), Operation{Sharpen, p})
		assert.Error(t, err, "param %v", p)
	}
}

func TestExecute_EmptySourceReturnsOriginal(t *testing.T) {
	out, err := Execute(imaging.PixelBuffer{}, NewPlan(Operation{Sharpen, 1.3}))

	require.Error(t, err)
	assert.True(t, out.Buffer.Empty())
}

func TestBrightnessAdjust(t *testing.T) {
	src := uniform(4, 4, color.NRGBA{100, 100, 100, 255})

	out, err := Execute(src, Plan{{BrightnessAdjust, 1.1}})
	require.NoError(t, err)
	r, g, b := out.Buffer.RGB(1, 1)
	assert.Equal(t, [3]uint8{110, 110, 110}, [3]uint8{r, g, b})

	out, err = Execute(src, Plan{{BrightnessAdjust, 0.9}})
	require.NoError(t, err)
	r, _, _ = out.Buffer.RGB(1, 1)
	assert.Equal(t, uint8(90), r)
}

func TestNoiseReduce_RemovesIsolatedSpeckles(t *testing.T) {
	src := speckled(30, 30)
	out, err := Execute(src, Plan{{NoiseReduce, 0.8}})
	require.NoError(t, err)

	before := 0
	after := 0
	for y := 1; y < 29; y++ {
		for x := 1; x < 29; x++ {
			if r, _, _ := src.RGB(x, y); r == 255 {
				before++
			}
			if r, _, _ := out.Buffer.RGB(x, y); r == 255 {
				after++
			}
		}
	}
	assert.Less(t, after, before)
}

func TestColorBalance_StretchesRange(t *testing.T) {
	src := gradient(50, 50)
	out, err := Execute(src, Plan{{ColorBalance, 1}})
	require.NoError(t, err)

	lo, hi := uint8(255), uint8(0)
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			r, _, _ := out.Buffer.RGB(x, y)
			lo = min(lo, r)
			hi = max(hi, r)
		}
	}
	assert.Equal(t, uint8(0), lo)
	assert.Equal(t, uint8(255), hi)

	// the blue channel is constant and stays untouched
	_, _, b := out.Buffer.RGB(10, 10)
	assert.Equal(t, uint8(100), b)
}

func TestStretchTable_FlatChannelIsIdentity(t *testing.T) {
	bins := make([]int, 256)
	bins[42] = 100

	table := stretchTable(bins)
	for i, v := range table {
		assert.Equal(t, uint8(i), v)
	}
}

func TestPercentile(t *testing.T) {
	bins := make([]int, 256)
	for v := 0; v < 100; v++ {
		bins[v] = 1
	}

	assert.InDelta(t, 1.98, percentile(bins, 0.02), 1e-9)
	assert.InDelta(t, 97.02, percentile(bins, 0.98), 1e-9)
	assert.Equal(t, 0.0, percentile(make([]int, 256), 0.5))

	two := make([]int, 256)
	two[10], two[20] = 1, 1
	assert.Equal(t, 15.0, percentile(two, 0.5))
	assert.Equal(t, 10.0, percentile(two, 0))
	assert.Equal(t, 20.0, percentile(two, 1))
}

func TestStretchTable_SmallImageInterpolates(t *testing.T) {
	bins := make([]int, 256)
	for _, v := range []int{0, 50, 100, 150, 200} {
		bins[v] = 1
	}

	// 2nd percentile is 4, 98th is 196
	table := stretchTable(bins)
	assert.Equal(t, uint8(0), table[4])
	assert.Equal(t, uint8(255), table[196])
	assert.Equal(t, uint8(128), table[100])
}

func TestSharpen_IncreasesEdgeContrast(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			v := uint8(80)
			if x >= 10 {
				v = 170
			}
			i := img.PixOffset(x, y)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
		}
	}
	src := imaging.Own(img)

	out, err := Execute(src, Plan{{Sharpen, 1.3}})
	require.NoError(t, err)

	dark, _, _ := out.Buffer.RGB(9, 10)
	light, _, _ := out.Buffer.RGB(10, 10)
	assert.Less(t, dark, uint8(80))
	assert.Greater(t, light, uint8(170))

	// a sigma-2 mask still darkens two pixels away from the edge
	near, _, _ := out.Buffer.RGB(8, 10)
	assert.Less(t, near, uint8(75))
}
