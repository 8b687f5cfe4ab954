package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromImage_RebasesAndCopies(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range src.Pix {
		src.Pix[i] = 50
	}
	sub := src.SubImage(image.Rect(1, 1, 3, 4))

	buf := FromImage(sub)
	require.Equal(t, image.Rect(0, 0, 2, 3), buf.Bounds())

	src.Pix[src.PixOffset(1, 1)] = 200
	r, _, _ := buf.RGB(0, 0)
	assert.Equal(t, uint8(50), r, "buffer changed with its source")
}

func TestPixelBuffer_ZeroValue(t *testing.T) {
	var buf PixelBuffer

	assert.True(t, buf.Empty())
	assert.Zero(t, buf.Width())
	assert.Zero(t, buf.Height())
	assert.NotNil(t, buf.Image())
	assert.Empty(t, buf.Mutable().Pix)
}

func TestPixelBuffer_MutableIsPrivate(t *testing.T) {
	buf := FromImage(createInMemoryImage(3, 3, color.RGBA{10, 10, 10, 255}))
	m := buf.Mutable()
	m.Pix[0] = 99

	r, _, _ := buf.RGB(0, 0)
	assert.Equal(t, uint8(10), r, "writing to the Mutable copy leaked into the buffer")
	assert.False(t, buf.Equal(Own(m)))
}

func TestPixelBuffer_EachSample(t *testing.T) {
	buf := FromImage(createInMemoryImage(4, 4, color.RGBA{1, 2, 3, 255}))

	var n, sum int
	buf.EachSample(image.Rect(2, 2, 10, 10), func(v uint8) {
		n++
		sum += int(v)
	})
	assert.Equal(t, 12, n)
	assert.Equal(t, 24, sum)
}

func TestOwn_ForcesOpaque(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	buf := Own(img)

	for i := 3; i < len(img.Pix); i += 4 {
		require.Equal(t, uint8(0xff), img.Pix[i], "alpha at %d", i)
	}
	assert.Equal(t, 2, buf.Width())
}
