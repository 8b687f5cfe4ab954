// Package analysis computes the statistical image metrics that drive both
// enhancement decisions and watermark placement.
//
// It also reports two descriptive extras used only by callers inspecting an
// image: the dominant colour palette and regions that already hold text.
//
// Analyze never fails. Degenerate input (an empty buffer) yields a report
// with neutral defaults instead of an error.
package analysis

import (
	"image"
	"math"
	"sort"

	"github.com/ironsheep/pixelfly/internal/imaging"
)

// NeutralBrightness is reported for buffers that have no pixels.
const NeutralBrightness = 128

// ZoneScore holds the statistics of one candidate zone.
type ZoneScore struct {
	Rect        image.Rectangle `json:"-"`
	Brightness  float64         `json:"brightness"`
	Contrast    float64         `json:"contrast"`
	Complexity  float64         `json:"complexity"`
	Suitability float64         `json:"suitability"`
}

// Report is the immutable result of analyzing one image.
type Report struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	// Brightness is the mean of all R, G and B samples, in [0, 255].
	Brightness float64 `json:"brightness"`

	// Contrast is the population standard deviation of the same samples.
	Contrast float64 `json:"contrast"`

	// Sharpness is the variance of the Laplacian of the luma plane.
	Sharpness float64 `json:"sharpness"`

	// NoiseEstimate reuses the sample deviation as a coarse noise signal.
	NoiseEstimate float64 `json:"noise_estimate"`

	// DynamicRange is max - min of the luma plane.
	DynamicRange float64 `json:"dynamic_range"`

	Zones map[ZoneID]ZoneScore `json:"zones"`
}

// Neutral returns the report used for images that cannot be measured.
func Neutral() Report {
	return Report{
		Brightness: NeutralBrightness,
		Zones:      map[ZoneID]ZoneScore{},
	}
}

// Analyze computes the metrics report for buf.
func Analyze(buf imaging.PixelBuffer) Report {
	if buf.Empty() {
		return Neutral()
	}

	w, h := buf.Width(), buf.Height()
	brightness, contrast := sampleStats(buf, buf.Bounds())

	luma := buf.Luma()
	_, _, lo, hi := luma.Stats()

	report := Report{
		Width:         w,
		Height:        h,
		Brightness:    brightness,
		Contrast:      contrast,
		Sharpness:     luma.Laplacian().Variance(),
		NoiseEstimate: contrast,
		DynamicRange:  hi - lo,
		Zones:         make(map[ZoneID]ZoneScore, len(CandidateOrder)),
	}

	for _, id := range CandidateOrder {
		report.Zones[id] = scoreZone(buf, luma, CandidateRect(id, w, h))
	}

	if !report.valid() {
		neutral := Neutral()
		neutral.Width, neutral.Height = w, h
		return neutral
	}
	return report
}

func scoreZone(buf imaging.PixelBuffer, luma imaging.Plane, r image.Rectangle) ZoneScore {
	brightness, contrast := sampleStats(buf, r)
	complexity, _, _, _ := luma.Crop(r).SobelMagnitude().Stats()

	return ZoneScore{
		Rect:        r,
		Brightness:  brightness,
		Contrast:    contrast,
		Complexity:  complexity,
		Suitability: Suitability(brightness, contrast, complexity),
	}
}

// sampleStats returns the mean and population standard deviation of every
// R, G and B sample inside r. The samples are binned first so the result is
// exact for any image size.
func sampleStats(buf imaging.PixelBuffer, r image.Rectangle) (mean, std float64) {
	var hist [256]uint64
	buf.EachSample(r, func(v uint8) {
		hist[v]++
	})

	var n, sum uint64
	for v, c := range hist {
		n += c
		sum += uint64(v) * c
	}
	if n == 0 {
		return NeutralBrightness, 0
	}
	mean = float64(sum) / float64(n)

	var sq float64
	for v, c := range hist {
		if c == 0 {
			continue
		}
		d := float64(v) - mean
		sq += d * d * float64(c)
	}
	return mean, math.Sqrt(sq / float64(n))
}

func (r Report) valid() bool {
	for _, v := range []float64{r.Brightness, r.Contrast, r.Sharpness, r.NoiseEstimate, r.DynamicRange} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return r.Brightness <= 255
}

// RankZones returns the zone ids by descending suitability. Equal scores
// keep CandidateOrder.
func (r Report) RankZones() []ZoneID {
	ranked := make([]ZoneID, 0, len(r.Zones))
	for _, id := range CandidateOrder {
		if _, ok := r.Zones[id]; ok {
			ranked = append(ranked, id)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return r.Zones[ranked[i]].Suitability > r.Zones[ranked[j]].Suitability
	})
	return ranked
}

// SuitabilityScores returns zone id to suitability.
func (r Report) SuitabilityScores() map[ZoneID]float64 {
	scores := make(map[ZoneID]float64, len(r.Zones))
	for id, z := range r.Zones {
		scores[id] = z.Suitability
	}
	return scores
}
