package analysis

import (
	"math"
)

// QualityScore condenses a report into a single [0, 1] quality estimate:
//
//	sharpness/1000*0.3 + contrast/100*0.3 +
//	(1-|brightness-128|/128)*0.2 + dynamicRange/255*0.2
//
// Each term is capped at its weight before summing.
func QualityScore(r Report) float64 {
	sharp := math.Min(r.Sharpness/1000, 1) * 0.3
	contrast := math.Min(r.Contrast/100, 1) * 0.3
	brightness := clamp01(1-math.Abs(r.Brightness-128)/128) * 0.2
	dynamic := math.Min(r.DynamicRange/255, 1) * 0.2
	return clamp01(sharp + contrast + brightness + dynamic)
}

// StyleRecommendation is the suggested watermark styling for an image.
type StyleRecommendation struct {
	Opacity  float64 `json:"recommended_opacity"`
	Color    string  `json:"recommended_color"`
	FontSize int     `json:"recommended_size"`
}

// RecommendStyle picks opacity and text color from the overall brightness
// and a font size from the image width.
func RecommendStyle(r Report) StyleRecommendation {
	rec := StyleRecommendation{}

	switch {
	case r.Brightness < 100:
		rec.Opacity, rec.Color = 0.8, "white"
	case r.Brightness > 180:
		rec.Opacity, rec.Color = 0.9, "black"
	default:
		rec.Opacity = 0.7
		if r.Brightness < 140 {
			rec.Color = "white"
		} else {
			rec.Color = "black"
		}
	}

	rec.FontSize = r.Width / 40
	if rec.FontSize > 48 {
		rec.FontSize = 48
	}
	if rec.FontSize < 12 {
		rec.FontSize = 12
	}
	return rec
}
