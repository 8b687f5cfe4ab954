package orchestrator

import (
	"context"
	"image"

	"github.com/ironsheep/pixelfly/internal/analysis"
	"github.com/ironsheep/pixelfly/internal/apperr"
	"github.com/ironsheep/pixelfly/internal/enhance"
	"github.com/ironsheep/pixelfly/internal/imaging"
	"github.com/ironsheep/pixelfly/internal/placement"
	"github.com/ironsheep/pixelfly/internal/render"
)

// Capabilities describes what the engine accepts.
type Capabilities struct {
	Categories   []enhance.Category `json:"enhancement_categories"`
	Operations   []enhance.OpKind   `json:"enhancement_operations"`
	Issues       []enhance.Issue    `json:"quality_issues"`
	Styles       []render.Style     `json:"watermark_styles"`
	Positions    []string           `json:"watermark_positions"`
	Sizes        []render.SizeClass `json:"watermark_sizes"`
	Colors       []string           `json:"watermark_colors"`
	Formats      []imaging.Format   `json:"output_formats"`
	MaxBatchSize int                `json:"max_batch_size"`
	Advisory     bool               `json:"advisory_enabled"`
	Defaults     CapabilityDefaults `json:"defaults"`
}

// CapabilityDefaults are the values used for absent request fields.
type CapabilityDefaults struct {
	Text     string  `json:"text"`
	Position string  `json:"position"`
	Style    string  `json:"style"`
	Size     string  `json:"size"`
	Opacity  float64 `json:"opacity"`
	Format   string  `json:"format"`
}

// Capabilities reports the accepted vocabularies and limits.
func (o *Orchestrator) Capabilities() Capabilities {
	def := render.DefaultSpec()
	return Capabilities{
		Categories:   enhance.Categories,
		Operations:   enhance.OpOrder,
		Issues:       enhance.Issues(),
		Styles:       render.Styles,
		Positions:    placement.Names(),
		Sizes:        render.Sizes,
		Colors:       render.ColorNames,
		Formats:      []imaging.Format{imaging.FormatJPEG, imaging.FormatPNG},
		MaxBatchSize: o.cfg.MaxBatch,
		Advisory:     o.engine.HasAdvisor(),
		Defaults: CapabilityDefaults{
			Text:     def.Text,
			Position: def.Position.Name(),
			Style:    string(def.Style),
			Size:     string(def.Size),
			Opacity:  def.Opacity,
			Format:   string(imaging.FormatJPEG),
		},
	}
}

// Analysis is the read-only report for one image.
type Analysis struct {
	Report         analysis.Report              `json:"metrics"`
	Issues         []enhance.Issue              `json:"issues"`
	RankedZones    []analysis.ZoneID            `json:"ranked_zones"`
	QualityScore   float64                      `json:"quality_score"`
	Recommendation analysis.StyleRecommendation `json:"style_recommendation"`
	Plan           enhance.Plan                 `json:"suggested_plan"`
	Palette        []analysis.Swatch            `json:"palette"`
	TextRegions    []analysis.TextRegion        `json:"text_regions"`
	TextZones      []analysis.ZoneID            `json:"text_zones"`
}

// Palette size and detection threshold reported by Analyze.
const (
	paletteSize       = 5
	textMinConfidence = 0.5
)

// Analyze loads src and reports its metrics without modifying it. The
// suggested plan always comes from the rule table.
func (o *Orchestrator) Analyze(ctx context.Context, src imaging.Source, category enhance.Category) (*Analysis, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	buf, _, err := o.loader.Load(ctx, src)
	if err != nil {
		if !apperr.KindOf(err).Surfaced() {
			err = apperr.Wrap(apperr.DecodeError, err, "cannot read image")
		}
		return nil, err
	}

	r := analysis.Analyze(buf)
	d := enhance.Rules(r, category, o.cfg.Thresholds, enhance.Hints{})
	text := analysis.TextRegions(buf, textMinConfidence)
	return &Analysis{
		Report:         r,
		Issues:         d.Issues,
		RankedZones:    r.RankZones(),
		QualityScore:   analysis.QualityScore(r),
		Recommendation: analysis.RecommendStyle(r),
		Plan:           d.Plan,
		Palette:        analysis.Palette(buf, image.Rectangle{}, paletteSize),
		TextRegions:    text,
		TextZones:      analysis.OccupiedZones(text, buf.Width(), buf.Height()),
	}, nil
}
