package enhance

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ironsheep/pixelfly/internal/analysis"
	"github.com/ironsheep/pixelfly/internal/apperr"
	"github.com/ironsheep/pixelfly/internal/config"
	"github.com/ironsheep/pixelfly/internal/imaging"
)

// Default operation parameters used by the rule table.
const (
	DefaultSharpen      = 1.3
	DefaultContrast     = 1.2
	BrightnessBoost     = 1.1
	BrightnessReduce    = 0.9
	DefaultSaturation   = 1.15
	DefaultNoiseReduce  = 0.8
	DefaultColorBalance = 1.0
	DefaultDetailBoost  = 1.0
)

// Estimates attached to decisions.
const (
	FallbackConfidence  = 0.6
	FallbackImprovement = 0.25
	AdvisoryConfidence  = 0.85
	AdvisoryImprovement = 0.35
)

// Issue is a problem detected by the rule table.
type Issue string

const (
	IssueBlur        Issue = "blur"
	IssueLowContrast Issue = "low_contrast"
	IssueNoise       Issue = "noise"
	IssueLowLight    Issue = "low_light"
	IssueOverexposed Issue = "overexposed"
)

var knownIssues = []Issue{IssueBlur, IssueLowContrast, IssueNoise, IssueLowLight, IssueOverexposed}

// Issues lists every issue the rule table detects.
func Issues() []Issue {
	return append([]Issue(nil), knownIssues...)
}

// ParseIssue maps an issue name to an Issue.
func ParseIssue(name string) (Issue, error) {
	for _, i := range knownIssues {
		if string(i) == name {
			return i, nil
		}
	}
	return "", apperr.New(apperr.ValidationError, "unknown quality issue %q", name)
}

// Hints are optional observations a caller already has about an image.
// The zero value carries none.
type Hints struct {
	// QualityScore is a prior quality estimate in [0, 1].
	QualityScore *float64 `json:"quality_score,omitempty"`

	// Issues are problems known in advance. They are added to the measured
	// ones; a hinted exposure issue never overrides a measured one.
	Issues []Issue `json:"issues,omitempty"`
}

// Validate rejects scores outside [0, 1] and unknown issues.
func (h Hints) Validate() error {
	if q := h.QualityScore; q != nil && (math.IsNaN(*q) || *q < 0 || *q > 1) {
		return apperr.New(apperr.ValidationError, "quality score must be between 0 and 1")
	}
	for _, i := range h.Issues {
		if _, err := ParseIssue(string(i)); err != nil {
			return err
		}
	}
	return nil
}

// Empty reports whether no hint is set.
func (h Hints) Empty() bool {
	return h.QualityScore == nil && len(h.Issues) == 0
}

// merge appends hinted issues missing from measured.
func (h Hints) merge(measured []Issue) []Issue {
	out := append([]Issue(nil), measured...)
	has := func(i Issue) bool {
		for _, m := range out {
			if m == i {
				return true
			}
		}
		return false
	}
	for _, i := range h.Issues {
		if has(i) {
			continue
		}
		if (i == IssueLowLight && has(IssueOverexposed)) || (i == IssueOverexposed && has(IssueLowLight)) {
			continue
		}
		out = append(out, i)
	}
	return out
}

// headroom caps an improvement estimate at what the prior score leaves.
func (h Hints) headroom(improvement float64) float64 {
	if h.QualityScore == nil {
		return improvement
	}
	return math.Min(improvement, 1-*h.QualityScore)
}

// Source records where a plan came from.
type Source string

const (
	SourceRules    Source = "rules"
	SourceAdvisory Source = "advisory"
)

// Advice is the recommendation returned by an external advisory service.
// Operations are expected to be mapped to OpKinds and clamped already.
// A nil estimate means the advisory did not provide one.
type Advice struct {
	Operations  []Operation
	Improvement *float64
	Confidence  *float64
}

func (a *Advice) wellFormed() bool {
	if a == nil || len(a.Operations) == 0 {
		return false
	}
	for _, op := range a.Operations {
		if rank(op.Kind) == len(OpOrder) || math.IsNaN(op.Param) || math.IsInf(op.Param, 0) {
			return false
		}
	}
	return true
}

// Advisor is an optional best-effort source of enhancement hints.
type Advisor interface {
	Advise(ctx context.Context, buf imaging.PixelBuffer, category Category, hints Hints) (*Advice, error)
}

// Decision is the output of the Decision Engine.
type Decision struct {
	Plan        Plan     `json:"plan"`
	Issues      []Issue  `json:"issues"`
	Improvement float64  `json:"quality_improvement"`
	Confidence  float64  `json:"confidence"`
	Source      Source   `json:"source"`
	Category    Category `json:"category"`

	// AdvisoryError is set when an advisory was configured but its answer
	// was discarded.
	AdvisoryError error `json:"-"`
}

// Engine is the Decision Engine. It is safe for concurrent use.
type Engine struct {
	thresholds config.Thresholds
	timeout    time.Duration
	advisor    Advisor
}

// NewEngine creates an Engine. advisor may be nil.
func NewEngine(cfg *config.Config, advisor Advisor) *Engine {
	return &Engine{
		thresholds: cfg.Thresholds,
		timeout:    cfg.AdvisoryTimeout,
		advisor:    advisor,
	}
}

// HasAdvisor reports whether an advisor is configured.
func (e *Engine) HasAdvisor() bool {
	return e.advisor != nil
}

// Decide returns the plan for an image. When an advisor is configured it is
// consulted first, bounded by the advisory timeout; any advisory failure
// falls back to the rule table. Decide always returns a plan.
//
// hints are passed to the advisor and, on the rule path, add their issues
// to the measured ones. A hinted quality score caps the improvement
// estimate at 1-score.
func (e *Engine) Decide(ctx context.Context, buf imaging.PixelBuffer, report analysis.Report, category Category, hints Hints) Decision {
	if e.advisor == nil {
		return Rules(report, category, e.thresholds, hints)
	}

	advice, err := e.consult(ctx, buf, category, hints)
	if err != nil {
		log.Warn().Err(err).Str("category", string(category)).Msg("advisory unavailable, using rule table")
		d := Rules(report, category, e.thresholds, hints)
		d.AdvisoryError = err
		return d
	}

	d := FromAdvice(advice, category)
	d.Issues = hints.merge(DetectIssues(report, e.thresholds))
	d.Improvement = hints.headroom(d.Improvement)
	return d
}

// consult calls the advisor and waits at most e.timeout for its answer.
// The wait does not depend on the advisor honouring ctx.
func (e *Engine) consult(ctx context.Context, buf imaging.PixelBuffer, category Category, hints Hints) (*Advice, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	type reply struct {
		advice *Advice
		err    error
	}
	ch := make(chan reply, 1)
	go func() {
		a, err := e.advisor.Advise(ctx, buf, category, hints)
		ch <- reply{a, err}
	}()

	select {
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.UpstreamTimeout, ctx.Err(), "advisory did not answer")
	case r := <-ch:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) {
				return nil, apperr.Wrap(apperr.UpstreamTimeout, r.err, "advisory did not answer")
			}
			return nil, apperr.Wrap(apperr.UpstreamTimeout, r.err, "advisory failed")
		}
		if !r.advice.wellFormed() {
			return nil, apperr.New(apperr.UpstreamTimeout, "advisory response is malformed")
		}
		return r.advice, nil
	}
}

// FromAdvice turns a well-formed advisory answer into a Decision.
func FromAdvice(a *Advice, category Category) Decision {
	d := Decision{
		Plan:        NewPlan(a.Operations...),
		Improvement: AdvisoryImprovement,
		Confidence:  AdvisoryConfidence,
		Source:      SourceAdvisory,
		Category:    category,
	}
	if a.Improvement != nil {
		d.Improvement = clamp01(*a.Improvement)
	}
	if a.Confidence != nil {
		d.Confidence = clamp01(*a.Confidence)
	}
	return d
}

// DetectIssues applies the threshold checks of the rule table.
func DetectIssues(r analysis.Report, t config.Thresholds) []Issue {
	var issues []Issue
	if r.Sharpness < t.LowSharpness {
		issues = append(issues, IssueBlur)
	}
	if r.Contrast < t.LowContrast {
		issues = append(issues, IssueLowContrast)
	}
	if r.NoiseEstimate > t.HighNoise {
		issues = append(issues, IssueNoise)
	}
	switch {
	case r.Brightness < t.Dark:
		issues = append(issues, IssueLowLight)
	case r.Brightness > t.Bright:
		issues = append(issues, IssueOverexposed)
	}
	return issues
}

// Rules builds a plan from the rule table alone.
func Rules(r analysis.Report, category Category, t config.Thresholds, hints Hints) Decision {
	issues := hints.merge(DetectIssues(r, t))

	var ops []Operation
	for _, issue := range issues {
		switch issue {
		case IssueBlur:
			ops = append(ops, Operation{Sharpen, DefaultSharpen})
		case IssueLowContrast:
			ops = append(ops, Operation{ContrastAdjust, DefaultContrast})
		case IssueNoise:
			ops = append(ops, Operation{NoiseReduce, DefaultNoiseReduce})
		case IssueLowLight:
			ops = append(ops, Operation{BrightnessAdjust, BrightnessBoost})
		case IssueOverexposed:
			ops = append(ops, Operation{BrightnessAdjust, BrightnessReduce})
		}
	}

	ops = append(ops, categoryOps(category)...)
	ops = append(ops,
		Operation{ColorBalance, DefaultColorBalance},
		Operation{DetailBoost, DefaultDetailBoost},
	)

	return Decision{
		Plan:        NewPlan(ops...),
		Issues:      issues,
		Improvement: hints.headroom(FallbackImprovement),
		Confidence:  FallbackConfidence,
		Source:      SourceRules,
		Category:    category,
	}
}

func categoryOps(c Category) []Operation {
	switch c {
	case Portrait:
		return []Operation{{NoiseReduce, 0.5}}
	case Landscape:
		return []Operation{{SaturationAdjust, DefaultSaturation}}
	case Food:
		return []Operation{{SaturationAdjust, 1.1}}
	case Product:
		return []Operation{{Sharpen, 1.2}}
	case LowLight:
		return []Operation{{BrightnessAdjust, 1.2}}
	case Vintage:
		return []Operation{{SaturationAdjust, 0.8}}
	default:
		return nil
	}
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
