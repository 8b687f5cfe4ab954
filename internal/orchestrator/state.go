package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/pixelfly/internal/analysis"
	"github.com/ironsheep/pixelfly/internal/enhance"
	"github.com/ironsheep/pixelfly/internal/imaging"
	"github.com/ironsheep/pixelfly/internal/ocr"
	"github.com/ironsheep/pixelfly/internal/placement"
	"github.com/ironsheep/pixelfly/internal/render"
)

// State is a stage of the processing state machine.
type State string

const (
	Start          State = "start"
	Analyzed       State = "analyzed"
	Enhancing      State = "enhancing"
	Watermarking   State = "watermarking"
	QualityChecked State = "quality_checked"
	Completed      State = "completed"
	Error          State = "error"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == Completed || s == Error
}

// Task selects the pipeline branch taken after analysis.
type Task string

const (
	TaskEnhance   Task = "enhance"
	TaskWatermark Task = "watermark"
)

// Job is a single-image request.
type Job struct {
	Task   Task
	Source imaging.Source
	Format imaging.Format

	// Category and Hints apply to TaskEnhance.
	Category enhance.Category
	Hints    enhance.Hints

	// Watermark applies to TaskWatermark.
	Watermark render.Spec
}

// ProcessingState is the request-scoped record carried through the state
// machine. It is never shared between requests.
type ProcessingState struct {
	RequestID string
	Job       Job
	Stage     State
	History   []State

	Input  imaging.PixelBuffer
	Output imaging.PixelBuffer
	Report analysis.Report

	Decision  *enhance.Decision
	Outcome   *enhance.Outcome
	Placement *placement.Result

	QualityBefore float64
	QualityAfter  float64
	Legibility    *ocr.Legibility

	// Recovered holds failures absorbed by a fallback. They never abort
	// processing.
	Recovered []error

	Encoded []byte
	Err     error

	StartedAt  time.Time
	FinishedAt time.Time
}

type requestIDKey struct{}

// WithRequestID returns a context carrying a caller-assigned request ID.
// Jobs run under it log with that ID instead of minting their own.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the ID set by WithRequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func newState(ctx context.Context, job Job) *ProcessingState {
	id := RequestIDFrom(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	return &ProcessingState{
		RequestID: id,
		Job:       job,
		Stage:     Start,
		History:   []State{Start},
		StartedAt: time.Now(),
	}
}

func (s *ProcessingState) enter(next State) {
	s.Stage = next
	s.History = append(s.History, next)
	if next.Terminal() {
		s.FinishedAt = time.Now()
	}
}

func (s *ProcessingState) fail(err error) State {
	s.Err = err
	return Error
}
