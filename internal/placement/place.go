package placement

import (
	"fmt"
	"image"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/ironsheep/pixelfly/internal/analysis"
	"github.com/ironsheep/pixelfly/internal/apperr"
	"github.com/ironsheep/pixelfly/internal/imaging"
)

// Result is the resolved placement for one request.
type Result struct {
	Mode string `json:"mode"`

	// Zone names the chosen zone; Rect is its rectangle.
	Zone string          `json:"zone"`
	Rect image.Rectangle `json:"rect"`

	Ranked []analysis.ZoneID           `json:"ranked_zones"`
	Scores map[analysis.ZoneID]float64 `json:"scores"`

	// Variances is filled for SmartAdaptive only.
	Variances map[analysis.ZoneID]float64 `json:"variances,omitempty"`

	// Err records a placement failure that was recovered by falling back
	// to the bottom-right zone.
	Err error `json:"-"`
}

// Place resolves pos for buf. report supplies the suitability ranking that
// is attached to every result. The chosen rectangle always lies inside the
// image.
func Place(buf imaging.PixelBuffer, report analysis.Report, pos Position) (res Result) {
	res = Result{
		Mode:   pos.Name(),
		Ranked: report.RankZones(),
		Scores: report.SuitabilityScores(),
	}

	defer func() {
		if r := recover(); r != nil {
			res = fallback(buf, res, apperr.Wrap(apperr.PlacementFailure, fmt.Errorf("%v", r), "zone computation panicked"))
		}
	}()

	if buf.Empty() {
		return fallback(buf, res, apperr.New(apperr.PlacementFailure, "image has no pixels"))
	}

	w, h := buf.Width(), buf.Height()
	switch p := pos.(type) {
	case FixedZone:
		res.Rect, res.Zone = fixedRect(p.ID, w, h)
	case SmartAdaptive:
		id, variances := LeastVariance(buf)
		res.Zone = string(id)
		res.Rect = analysis.CandidateRect(id, w, h)
		res.Variances = variances
	case ContentAware:
		res.Rect, res.Zone = fixedRect(BottomRight, w, h)
	case EdgeBased:
		res.Rect, res.Zone = analysis.ClampRect(image.Rect(20, 20, 200, 80), w, h), TopLeft
	default:
		return fallback(buf, res, apperr.New(apperr.PlacementFailure, "unsupported position %T", pos))
	}

	if res.Rect.Empty() || !res.Rect.In(buf.Bounds()) {
		return fallback(buf, res, apperr.New(apperr.PlacementFailure, "zone %v outside image %v", res.Rect, buf.Bounds()))
	}
	return res
}

func fallback(buf imaging.PixelBuffer, res Result, err error) Result {
	log.Warn().Err(err).Str("mode", res.Mode).Msg("placement failed, using bottom_right")
	res.Rect, res.Zone = fixedRect(BottomRight, buf.Width(), buf.Height())
	res.Variances = nil
	res.Err = err
	return res
}

// LeastVariance returns the candidate zone whose intensity plane has the
// lowest variance, together with every zone's variance. Ties keep the
// earlier zone in analysis.CandidateOrder.
func LeastVariance(buf imaging.PixelBuffer) (analysis.ZoneID, map[analysis.ZoneID]float64) {
	plane := buf.Intensity()
	w, h := buf.Width(), buf.Height()

	variances := make(map[analysis.ZoneID]float64, len(analysis.CandidateOrder))
	best := analysis.CandidateOrder[0]
	bestVar := math.Inf(1)

	for _, id := range analysis.CandidateOrder {
		v := plane.Crop(analysis.CandidateRect(id, w, h)).Variance()
		variances[id] = v
		if v < bestVar {
			best, bestVar = id, v
		}
	}
	return best, variances
}
