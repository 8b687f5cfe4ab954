package imaging

import (
	"image"
	"math"
)

// Plane is a single-channel float raster, values nominally in [0, 255].
type Plane struct {
	Width  int
	Height int
	Pix    []float64
}

// At returns the value at (x, y).
func (p Plane) At(x, y int) float64 {
	return p.Pix[y*p.Width+x]
}

// Luma converts the buffer to 8-bit grayscale using ITU-R BT.601 weights
// (0.299*R + 0.587*G + 0.114*B). Each sample is rounded to the nearest
// level, so a flat image yields a plane with no gradient at all.
func (p PixelBuffer) Luma() Plane {
	return p.plane(func(r, g, b uint8) float64 {
		v := math.Round(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b))
		return math.Max(0, math.Min(255, v))
	})
}

// Intensity converts the buffer to grayscale as the unweighted mean of the
// three channels.
func (p PixelBuffer) Intensity() Plane {
	return p.plane(func(r, g, b uint8) float64 {
		return (float64(r) + float64(g) + float64(b)) / 3
	})
}

func (p PixelBuffer) plane(fn func(r, g, b uint8) float64) Plane {
	w, h := p.Width(), p.Height()
	out := Plane{Width: w, Height: h, Pix: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		off := p.img.PixOffset(0, y)
		for x := 0; x < w; x++ {
			out.Pix[y*w+x] = fn(p.img.Pix[off], p.img.Pix[off+1], p.img.Pix[off+2])
			off += 4
		}
	}
	return out
}

// Crop returns the part of the plane inside r as a new plane.
func (p Plane) Crop(r image.Rectangle) Plane {
	r = r.Intersect(image.Rect(0, 0, p.Width, p.Height))
	out := Plane{Width: r.Dx(), Height: r.Dy(), Pix: make([]float64, r.Dx()*r.Dy())}
	for y := 0; y < out.Height; y++ {
		src := (r.Min.Y+y)*p.Width + r.Min.X
		copy(out.Pix[y*out.Width:(y+1)*out.Width], p.Pix[src:src+out.Width])
	}
	return out
}

// Stats returns the population mean, standard deviation, minimum and
// maximum of the plane. An empty plane yields all zeros.
func (p Plane) Stats() (mean, std, min, max float64) {
	if len(p.Pix) == 0 {
		return 0, 0, 0, 0
	}
	min, max = p.Pix[0], p.Pix[0]
	var sum float64
	for _, v := range p.Pix {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean = sum / float64(len(p.Pix))

	var sq float64
	for _, v := range p.Pix {
		d := v - mean
		sq += d * d
	}
	std = math.Sqrt(sq / float64(len(p.Pix)))
	return mean, std, min, max
}

// Variance returns the population variance of the plane.
func (p Plane) Variance() float64 {
	_, std, _, _ := p.Stats()
	return std * std
}

// Laplacian applies the 4-neighbour discrete Laplacian:
//
//	0  1  0
//	1 -4  1
//	0  1  0
//
// Border pixels use clamped (replicated) edge values.
func (p Plane) Laplacian() Plane {
	out := Plane{Width: p.Width, Height: p.Height, Pix: make([]float64, len(p.Pix))}
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			up := p.At(x, clamp(y-1, 0, p.Height-1))
			down := p.At(x, clamp(y+1, 0, p.Height-1))
			left := p.At(clamp(x-1, 0, p.Width-1), y)
			right := p.At(clamp(x+1, 0, p.Width-1), y)
			out.Pix[y*p.Width+x] = up + down + left + right - 4*p.At(x, y)
		}
	}
	return out
}

// SobelMagnitude computes sqrt(Gx² + Gy²) with the 3x3 Sobel kernels:
//
//	Gx: -1 0 1    Gy: -1 -2 -1
//	    -2 0 2         0  0  0
//	    -1 0 1         1  2  1
//
// Border pixels use clamped (replicated) edge values.
func (p Plane) SobelMagnitude() Plane {
	sobelX := [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY := [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	out := Plane{Width: p.Width, Height: p.Height, Pix: make([]float64, len(p.Pix))}
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					v := p.At(clamp(x+kx, 0, p.Width-1), clamp(y+ky, 0, p.Height-1))
					gx += v * sobelX[ky+1][kx+1]
					gy += v * sobelY[ky+1][kx+1]
				}
			}
			out.Pix[y*p.Width+x] = math.Sqrt(gx*gx + gy*gy)
		}
	}
	return out
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
