package analysis

import (
	"image"
	"math"
)

// ZoneID names one of the five candidate watermark zones.
type ZoneID string

const (
	BottomRight ZoneID = "bottom_right"
	BottomLeft  ZoneID = "bottom_left"
	TopRight    ZoneID = "top_right"
	TopLeft     ZoneID = "top_left"
	Center      ZoneID = "center"
)

// CandidateOrder is the fixed evaluation order of the zones. Ties are
// always resolved in favour of the earlier entry.
var CandidateOrder = []ZoneID{BottomRight, BottomLeft, TopRight, TopLeft, Center}

// CandidateRect returns the zone rectangle for an image of w x h pixels,
// clamped to the image.
//
//	bottom_right  (w-200, h-100, w-20, h-20)
//	bottom_left   (20,    h-100, 200,  h-20)
//	top_right     (w-200, 20,    w-20, 100)
//	top_left      (20,    20,    200,  100)
//	center        (w/2-100, h/2-50, w/2+100, h/2+50)
func CandidateRect(id ZoneID, w, h int) image.Rectangle {
	var r image.Rectangle
	switch id {
	case BottomRight:
		r = image.Rect(w-200, h-100, w-20, h-20)
	case BottomLeft:
		r = image.Rect(20, h-100, 200, h-20)
	case TopRight:
		r = image.Rect(w-200, 20, w-20, 100)
	case TopLeft:
		r = image.Rect(20, 20, 200, 100)
	default:
		r = image.Rect(w/2-100, h/2-50, w/2+100, h/2+50)
	}
	return ClampRect(r, w, h)
}

// ClampRect constrains r to a w x h image. The result always lies inside
// the image and, when the image is non-empty, covers at least one pixel.
// A rectangle that falls entirely outside the image collapses onto the
// nearest edge.
func ClampRect(r image.Rectangle, w, h int) image.Rectangle {
	if w <= 0 || h <= 0 {
		return image.Rectangle{}
	}
	x1 := clampInt(r.Min.X, 0, w-1)
	y1 := clampInt(r.Min.Y, 0, h-1)
	x2 := clampInt(r.Max.X, x1+1, w)
	y2 := clampInt(r.Max.Y, y1+1, h)
	return image.Rect(x1, y1, x2, y2)
}

// Suitability scores a zone for watermark placement in [0, 1]. It is the
// equally weighted mean of three terms that reward mid-range brightness,
// adequate contrast and low visual complexity:
//
//	1 - |brightness-128|/128
//	min(contrast/50, 1)
//	max(0, 1 - complexity/100)
func Suitability(brightness, contrast, complexity float64) float64 {
	brightnessScore := 1 - math.Abs(brightness-128)/128
	contrastScore := math.Min(contrast/50, 1)
	complexityScore := math.Max(0, 1-complexity/100)
	return clamp01((brightnessScore + contrastScore + complexityScore) / 3)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
