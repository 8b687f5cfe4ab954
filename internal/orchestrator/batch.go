package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/pixelfly/internal/apperr"
	"github.com/ironsheep/pixelfly/internal/imaging"
	"github.com/ironsheep/pixelfly/internal/render"
)

// BatchItem is the outcome of one image in a batch.
type BatchItem struct {
	Index   int     `json:"index"`
	Success bool    `json:"success"`
	Error   string  `json:"error,omitempty"`
	Result  *Result `json:"result,omitempty"`

	State *ProcessingState `json:"-"`
}

// BatchResult collects the per-item outcomes of RunBatch.
type BatchResult struct {
	Items          []BatchItem `json:"results"`
	ProcessedCount int         `json:"processed_count"`
	TotalRequested int         `json:"total_requested"`
	Elapsed        float64     `json:"batch_processing_time"`
}

var errItemTimeout = errors.New("item exceeded its time limit")

// RunBatch watermarks every source with the same spec. Sources are processed
// concurrently, at most cfg.BatchWorkers at a time, each bounded by
// cfg.ItemTimeout.
//
// Cancelling ctx stops items that have not started yet; an item already
// running finishes under its own deadline. When ctx carries a request ID
// each item logs as "<id>-<index>".
//
// The only error returned is a ValidationError for an empty or oversized
// batch or an invalid spec, raised before any item starts. Per-item failures
// are reported in the result.
func (o *Orchestrator) RunBatch(ctx context.Context, sources []imaging.Source, spec render.Spec, format imaging.Format) (*BatchResult, error) {
	if len(sources) == 0 {
		return nil, apperr.New(apperr.ValidationError, "no images provided")
	}
	if len(sources) > o.cfg.MaxBatch {
		return nil, apperr.New(apperr.ValidationError, "batch of %d images exceeds the limit of %d", len(sources), o.cfg.MaxBatch)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	began := time.Now()
	items := make([]BatchItem, len(sources))

	var g errgroup.Group
	g.SetLimit(max(1, o.cfg.BatchWorkers))

	for i, src := range sources {
		items[i].Index = i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				items[i].Error = err.Error()
				return nil
			}

			itemCtx := ctx
			if id := RequestIDFrom(ctx); id != "" {
				itemCtx = WithRequestID(ctx, fmt.Sprintf("%s-%d", id, i))
			}
			st, err := o.runItem(itemCtx, Job{
				Task:      TaskWatermark,
				Source:    src,
				Format:    format,
				Watermark: spec,
			})
			items[i].State = st
			if err != nil {
				items[i].Error = err.Error()
				log.Warn().Err(err).Int("index", i).Msg("batch item failed")
				return nil
			}
			items[i].Success = true
			items[i].Result = st.Result()
			return nil
		})
	}
	// Items never return errors; Wait only joins.
	_ = g.Wait()

	res := &BatchResult{
		Items:          items,
		TotalRequested: len(sources),
		Elapsed:        time.Since(began).Seconds(),
	}
	for _, it := range items {
		if it.Success {
			res.ProcessedCount++
		}
	}

	log.Info().
		Int("processed", res.ProcessedCount).
		Int("requested", res.TotalRequested).
		Float64("elapsed", res.Elapsed).
		Msg("batch completed")
	return res, nil
}

// runItem runs one job under the per-item deadline, detached from the
// caller's cancellation. A job that overruns is abandoned; its goroutine
// finishes in the background and the result is discarded.
func (o *Orchestrator) runItem(ctx context.Context, job Job) (*ProcessingState, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.ItemTimeout)
	defer cancel()

	type outcome struct {
		st  *ProcessingState
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		st, err := o.Run(ctx, job)
		done <- outcome{st, err}
	}()

	select {
	case out := <-done:
		return out.st, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errItemTimeout
		}
		return nil, ctx.Err()
	}
}
