package orchestrator

import (
	"github.com/ironsheep/pixelfly/internal/enhance"
	"github.com/ironsheep/pixelfly/internal/imaging"
	"github.com/ironsheep/pixelfly/internal/ocr"
	"github.com/ironsheep/pixelfly/internal/placement"
)

// Result is the caller-facing summary of a completed request.
type Result struct {
	RequestID string         `json:"request_id"`
	Task      Task           `json:"task"`
	Format    imaging.Format `json:"format"`
	MIMEType  string         `json:"mime_type"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`

	// Image holds the encoded output. Transports decide how to ship it.
	Image []byte `json:"-"`

	AppliedEffects []string `json:"applied_effects"`
	SkippedEffects []string `json:"skipped_effects,omitempty"`

	ProcessingTime     float64 `json:"processing_time"`
	QualityImprovement float64 `json:"quality_improvement"`
	QualityBefore      float64 `json:"quality_before"`
	QualityAfter       float64 `json:"quality_after"`

	Decision   *DecisionSummary  `json:"decision,omitempty"`
	Placement  *placement.Result `json:"placement,omitempty"`
	Legibility *ocr.Legibility   `json:"legibility,omitempty"`
}

// DecisionSummary is the part of an enhance.Decision reported to callers.
type DecisionSummary struct {
	Source     enhance.Source   `json:"source"`
	Category   enhance.Category `json:"category"`
	Confidence float64          `json:"confidence"`
	Issues     []enhance.Issue  `json:"issues"`
	Plan       enhance.Plan     `json:"plan"`
}

// Result summarises a completed state. It returns nil for states that did
// not complete.
func (s *ProcessingState) Result() *Result {
	if s.Stage != Completed {
		return nil
	}

	r := &Result{
		RequestID:      s.RequestID,
		Task:           s.Job.Task,
		Format:         s.Job.Format,
		MIMEType:       s.Job.Format.MIMEType(),
		Width:          s.Output.Width(),
		Height:         s.Output.Height(),
		Image:          s.Encoded,
		AppliedEffects: s.AppliedEffects(),
		ProcessingTime: s.Elapsed().Seconds(),
		QualityBefore:  s.QualityBefore,
		QualityAfter:   s.QualityAfter,
		Placement:      s.Placement,
		Legibility:     s.Legibility,
	}
	if r.AppliedEffects == nil {
		r.AppliedEffects = []string{}
	}

	if s.Decision != nil {
		r.QualityImprovement = s.Decision.Improvement
		r.Decision = &DecisionSummary{
			Source:     s.Decision.Source,
			Category:   s.Decision.Category,
			Confidence: s.Decision.Confidence,
			Issues:     s.Decision.Issues,
			Plan:       s.Decision.Plan,
		}
	} else {
		r.QualityImprovement = max(0, s.QualityAfter-s.QualityBefore)
	}

	if s.Outcome != nil {
		for _, sk := range s.Outcome.Skipped {
			r.SkippedEffects = append(r.SkippedEffects, string(sk.Kind))
		}
	}
	return r
}
