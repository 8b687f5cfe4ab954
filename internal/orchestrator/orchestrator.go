// Package orchestrator drives one image through the processing pipeline.
//
// Each request is a small state machine:
//
//	Start -> Analyzed -> Enhancing | Watermarking -> QualityChecked -> Completed
//
// with Error reachable from Start, when the input cannot be loaded or
// decoded, and from QualityChecked, when the result cannot be encoded.
// Failures inside enhancement, placement and rendering are absorbed by
// their fallbacks and recorded on the ProcessingState.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ironsheep/pixelfly/internal/analysis"
	"github.com/ironsheep/pixelfly/internal/apperr"
	"github.com/ironsheep/pixelfly/internal/config"
	"github.com/ironsheep/pixelfly/internal/enhance"
	"github.com/ironsheep/pixelfly/internal/imaging"
	"github.com/ironsheep/pixelfly/internal/ocr"
	"github.com/ironsheep/pixelfly/internal/placement"
	"github.com/ironsheep/pixelfly/internal/render"
)

// Observer receives timing and outcome events. Implementations must be
// safe for concurrent use.
type Observer interface {
	StageDone(task Task, stage State, elapsed time.Duration)
	RequestDone(task Task, err error)
}

type nopObserver struct{}

func (nopObserver) StageDone(Task, State, time.Duration) {}
func (nopObserver) RequestDone(Task, error)              {}

// Orchestrator runs jobs. It holds no per-request state and is safe for
// concurrent use.
type Orchestrator struct {
	cfg        *config.Config
	loader     *imaging.Loader
	engine     *enhance.Engine
	recognizer ocr.Recognizer
	observer   Observer
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithObserver installs an Observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithRecognizer replaces the OCR recognizer used by the legibility probe.
func WithRecognizer(r ocr.Recognizer) Option {
	return func(o *Orchestrator) { o.recognizer = r }
}

// New creates an Orchestrator. advisor may be nil.
func New(cfg *config.Config, loader *imaging.Loader, advisor enhance.Advisor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		loader:     loader,
		engine:     enhance.NewEngine(cfg, advisor),
		recognizer: ocr.Default(),
		observer:   nopObserver{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes one job to completion. The returned error is always an
// apperr DecodeError or ValidationError; the state is returned either way.
func (o *Orchestrator) Run(ctx context.Context, job Job) (*ProcessingState, error) {
	st := newState(ctx, job)
	logger := log.With().Str("request_id", st.RequestID).Str("task", string(job.Task)).Logger()

	for !st.Stage.Terminal() {
		from := st.Stage
		began := time.Now()
		next := o.step(ctx, st)
		o.observer.StageDone(job.Task, from, time.Since(began))

		logger.Debug().Str("from", string(from)).Str("to", string(next)).Msg("transition")
		st.enter(next)
	}

	o.observer.RequestDone(job.Task, st.Err)
	if st.Err != nil {
		logger.Warn().Err(st.Err).Msg("request failed")
		return st, st.Err
	}

	logger.Info().
		Strs("applied", st.AppliedEffects()).
		Dur("elapsed", st.Elapsed()).
		Msg("request completed")
	return st, nil
}

// step performs the work of the current stage and returns the next one.
func (o *Orchestrator) step(ctx context.Context, st *ProcessingState) State {
	switch st.Stage {
	case Start:
		return o.load(ctx, st)
	case Analyzed:
		switch st.Job.Task {
		case TaskEnhance:
			return o.enhance(ctx, st)
		case TaskWatermark:
			return o.watermark(st)
		default:
			return st.fail(apperr.New(apperr.ValidationError, "unknown task %q", st.Job.Task))
		}
	case Enhancing, Watermarking:
		return o.qualityCheck(st)
	case QualityChecked:
		return o.finish(st)
	default:
		return st.fail(fmt.Errorf("no transition from %s", st.Stage))
	}
}

func (o *Orchestrator) load(ctx context.Context, st *ProcessingState) State {
	if st.Job.Format == "" {
		st.Job.Format = imaging.FormatJPEG
	}
	if st.Job.Category == "" {
		st.Job.Category = enhance.Auto
	}
	if err := o.validate(st.Job); err != nil {
		return st.fail(err)
	}

	buf, _, err := o.loader.Load(ctx, st.Job.Source)
	if err != nil {
		if !apperr.KindOf(err).Surfaced() {
			err = apperr.Wrap(apperr.DecodeError, err, "cannot read image")
		}
		return st.fail(err)
	}

	st.Input = buf
	st.Output = buf
	st.Report = analysis.Analyze(buf)
	st.QualityBefore = analysis.QualityScore(st.Report)
	return Analyzed
}

func (o *Orchestrator) validate(job Job) error {
	if err := job.Source.Validate(); err != nil {
		return err
	}
	if job.Format != imaging.FormatJPEG && job.Format != imaging.FormatPNG {
		return apperr.New(apperr.ValidationError, "unsupported output format %q", job.Format)
	}
	switch job.Task {
	case TaskWatermark:
		return job.Watermark.Validate()
	case TaskEnhance:
		return job.Hints.Validate()
	}
	return nil
}

func (o *Orchestrator) enhance(ctx context.Context, st *ProcessingState) State {
	d := o.engine.Decide(ctx, st.Input, st.Report, st.Job.Category, st.Job.Hints)
	st.Decision = &d
	if d.AdvisoryError != nil {
		st.Recovered = append(st.Recovered, d.AdvisoryError)
	}

	out, err := enhance.Execute(st.Input, d.Plan)
	st.Outcome = &out
	for _, s := range out.Skipped {
		st.Recovered = append(st.Recovered, s.Err)
	}
	if err != nil {
		st.Recovered = append(st.Recovered, err)
	}
	st.Output = out.Buffer
	return Enhancing
}

func (o *Orchestrator) watermark(st *ProcessingState) State {
	spec := st.Job.Watermark

	res := placement.Place(st.Input, st.Report, spec.Position)
	st.Placement = &res
	if res.Err != nil {
		st.Recovered = append(st.Recovered, res.Err)
	}

	out, err := render.Render(st.Input, res.Rect, spec)
	if err != nil {
		log.Warn().Err(err).Str("request_id", st.RequestID).Msg("watermark not drawn, returning original")
		st.Recovered = append(st.Recovered, err)
	}
	st.Output = out
	return Watermarking
}

func (o *Orchestrator) qualityCheck(st *ProcessingState) State {
	if st.Output.Equal(st.Input) {
		st.QualityAfter = st.QualityBefore
	} else {
		st.QualityAfter = analysis.QualityScore(analysis.Analyze(st.Output))
	}

	if o.cfg.OCRProbe && st.Job.Task == TaskWatermark && st.Placement != nil {
		leg, err := ocr.Probe(o.recognizer, st.Output, st.Placement.Rect, st.Job.Watermark.Text)
		if err != nil {
			log.Debug().Err(err).Str("request_id", st.RequestID).Msg("legibility probe skipped")
		} else {
			st.Legibility = &leg
		}
	}
	return QualityChecked
}

func (o *Orchestrator) finish(st *ProcessingState) State {
	data, err := imaging.EncodeBytes(st.Output, st.Job.Format, o.cfg.JPEGQuality)
	if err != nil {
		return st.fail(apperr.Wrap(apperr.DecodeError, err, "cannot encode result"))
	}
	st.Encoded = data
	return Completed
}

// AppliedEffects lists what was done to the image.
func (s *ProcessingState) AppliedEffects() []string {
	var effects []string
	if s.Outcome != nil {
		for _, k := range s.Outcome.Applied {
			effects = append(effects, string(k))
		}
	}
	if s.Placement != nil && !s.Output.Equal(s.Input) {
		effects = append(effects, "watermark:"+string(s.Job.Watermark.Style))
	}
	return effects
}

// Elapsed is the wall time spent on the request so far.
func (s *ProcessingState) Elapsed() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
