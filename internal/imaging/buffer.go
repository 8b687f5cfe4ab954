package imaging

import (
	"bytes"
	"image"
	"image/draw"
)

// PixelBuffer is an immutable, opaque 8-bit RGB raster.
//
// The zero value is a valid 0x0 buffer. Internally the pixels are held in an
// *image.NRGBA whose alpha channel is always 255; Channels therefore reports
// 3. Use Mutable to obtain a private copy for writing and Own to wrap a
// freshly produced image without copying it.
type PixelBuffer struct {
	img *image.NRGBA
}

// FromImage copies src into a new buffer. The copy is rebased so its bounds
// start at (0,0) and alpha is discarded.
func FromImage(src image.Image) PixelBuffer {
	if src == nil {
		return PixelBuffer{}
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	if n, ok := src.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			srcOff := n.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()*4], n.Pix[srcOff:srcOff+b.Dx()*4])
		}
	} else {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	}

	return Own(dst)
}

// Own wraps img as a buffer without copying. The caller hands over
// ownership and must not modify img afterwards. Alpha is forced to opaque.
func Own(img *image.NRGBA) PixelBuffer {
	if img == nil {
		return PixelBuffer{}
	}
	if img.Bounds().Min != (image.Point{}) {
		return FromImage(img)
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return PixelBuffer{img: img}
}

// Width returns the buffer width in pixels.
func (p PixelBuffer) Width() int {
	if p.img == nil {
		return 0
	}
	return p.img.Rect.Dx()
}

// Height returns the buffer height in pixels.
func (p PixelBuffer) Height() int {
	if p.img == nil {
		return 0
	}
	return p.img.Rect.Dy()
}

// Channels is always 3.
func (p PixelBuffer) Channels() int {
	return 3
}

// Empty reports whether the buffer has no pixels.
func (p PixelBuffer) Empty() bool {
	return p.Width() == 0 || p.Height() == 0
}

// Bounds returns the buffer rectangle, always anchored at (0,0).
func (p PixelBuffer) Bounds() image.Rectangle {
	if p.img == nil {
		return image.Rectangle{}
	}
	return p.img.Rect
}

// Image returns a read-only view of the pixels for use with image libraries.
// Callers must not write through it.
func (p PixelBuffer) Image() image.Image {
	if p.img == nil {
		return image.NewNRGBA(image.Rectangle{})
	}
	return p.img
}

// RGB returns the sample values at (x, y).
func (p PixelBuffer) RGB(x, y int) (r, g, b uint8) {
	i := p.img.PixOffset(x, y)
	return p.img.Pix[i], p.img.Pix[i+1], p.img.Pix[i+2]
}

// EachSample calls fn for every R, G and B sample inside r, row by row.
func (p PixelBuffer) EachSample(r image.Rectangle, fn func(v uint8)) {
	r = r.Intersect(p.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := p.img.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x++ {
			fn(p.img.Pix[off])
			fn(p.img.Pix[off+1])
			fn(p.img.Pix[off+2])
			off += 4
		}
	}
}

// Mutable returns a private, writable copy of the pixels.
func (p PixelBuffer) Mutable() *image.NRGBA {
	dst := image.NewNRGBA(p.Bounds())
	if p.img != nil {
		copy(dst.Pix, p.img.Pix)
	}
	return dst
}

// Equal reports whether both buffers hold identical pixels.
func (p PixelBuffer) Equal(o PixelBuffer) bool {
	if p.Bounds() != o.Bounds() {
		return false
	}
	if p.img == nil || o.img == nil {
		return p.Empty() && o.Empty()
	}
	return bytes.Equal(p.img.Pix, o.img.Pix)
}
