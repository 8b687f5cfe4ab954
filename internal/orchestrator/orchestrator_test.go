package orchestrator

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/pixelfly/internal/analysis"
	"github.com/ironsheep/pixelfly/internal/apperr"
	"github.com/ironsheep/pixelfly/internal/config"
	"github.com/ironsheep/pixelfly/internal/enhance"
	"github.com/ironsheep/pixelfly/internal/imaging"
	"github.com/ironsheep/pixelfly/internal/render"
)

func grayImage(w, h int, v uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
	}
	return img
}

func pngSource(t *testing.T, img image.Image) imaging.Source {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return imaging.Source{Base64: imaging.EncodeBase64(buf.Bytes())}
}

func garbageSource() imaging.Source {
	return imaging.Source{Base64: imaging.EncodeBase64([]byte("definitely not an image"))}
}

type recordingObserver struct {
	mu       sync.Mutex
	stages   []State
	requests int
	failures int
}

func (r *recordingObserver) StageDone(_ Task, s State, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, s)
}

func (r *recordingObserver) RequestDone(_ Task, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests++
	if err != nil {
		r.failures++
	}
}

type slowAdvisor struct {
	delay  time.Duration
	advice *enhance.Advice
}

func (s slowAdvisor) Advise(ctx context.Context, _ imaging.PixelBuffer, _ enhance.Category, _ enhance.Hints) (*enhance.Advice, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.advice, nil
}

type stubRecognizer struct{ text string }

func (s stubRecognizer) Recognize(image.Image) (string, float64, error) {
	return s.text, 0.9, nil
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, advisor enhance.Advisor, opts ...Option) *Orchestrator {
	t.Helper()
	cache, err := imaging.NewCache(8, imaging.Limits{MaxDimension: cfg.MaxDimension, MaxPixels: cfg.MaxPixels})
	require.NoError(t, err)
	return New(cfg, imaging.NewLoader(cache, time.Second), advisor, opts...)
}

func TestRun_EnhanceCompletes(t *testing.T) {
	obs := &recordingObserver{}
	o := newTestOrchestrator(t, config.Default(), nil, WithObserver(obs))

	st, err := o.Run(context.Background(), Job{
		Task:   TaskEnhance,
		Source: pngSource(t, grayImage(120, 90, 128)),
		Format: imaging.FormatPNG,
	})
	require.NoError(t, err)

	assert.Equal(t, Completed, st.Stage)
	assert.Equal(t, []State{Start, Analyzed, Enhancing, QualityChecked, Completed}, st.History)
	assert.Equal(t, enhance.SourceRules, st.Decision.Source)
	assert.Equal(t, enhance.Auto, st.Job.Category)
	assert.NotEmpty(t, st.Encoded)

	res := st.Result()
	require.NotNil(t, res)
	assert.Equal(t, "image/png", res.MIMEType)
	assert.Equal(t, 120, res.Width)
	assert.Contains(t, res.AppliedEffects, string(enhance.Sharpen))

	assert.Equal(t, []State{Start, Analyzed, Enhancing, QualityChecked}, obs.stages)
	assert.Equal(t, 1, obs.requests)
	assert.Zero(t, obs.failures)
}

func TestRun_AdvisoryTimeoutFallsBack(t *testing.T) {
	cfg := config.Default()
	cfg.AdvisoryTimeout = 20 * time.Millisecond
	high := 0.99
	o := newTestOrchestrator(t, cfg, slowAdvisor{
		delay: 500 * time.Millisecond,
		advice: &enhance.Advice{
			Operations: []enhance.Operation{{Kind: enhance.Sharpen, Param: 1.5}},
			Confidence: &high,
		},
	})

	st, err := o.Run(context.Background(), Job{
		Task:   TaskEnhance,
		Source: pngSource(t, grayImage(64, 64, 128)),
		Format: imaging.FormatPNG,
	})
	require.NoError(t, err)

	assert.Equal(t, Completed, st.Stage)
	assert.Equal(t, enhance.SourceRules, st.Decision.Source)
	assert.LessOrEqual(t, st.Decision.Confidence, 0.6)
	assert.True(t, st.Decision.Plan.Has(enhance.Sharpen))
	assert.True(t, st.Decision.Plan.Has(enhance.ContrastAdjust))
	require.NotEmpty(t, st.Recovered)
	assert.True(t, apperr.Is(st.Recovered[0], apperr.UpstreamTimeout))
}

func TestRun_AllOperationsSkippedReturnsOriginal(t *testing.T) {
	src := grayImage(40, 30, 90)
	o := newTestOrchestrator(t, config.Default(), slowAdvisor{
		advice: &enhance.Advice{
			Operations: []enhance.Operation{{Kind: enhance.Sharpen, Param: 10}},
		},
	})

	st, err := o.Run(context.Background(), Job{
		Task:   TaskEnhance,
		Source: pngSource(t, src),
		Format: imaging.FormatPNG,
	})
	require.NoError(t, err)

	assert.Equal(t, enhance.SourceAdvisory, st.Decision.Source)
	assert.Empty(t, st.Outcome.Applied)
	assert.Len(t, st.Outcome.Skipped, 1)
	assert.True(t, st.Output.Equal(st.Input))
	assert.Equal(t, st.QualityBefore, st.QualityAfter)

	decoded, err := png.Decode(bytes.NewReader(st.Encoded))
	require.NoError(t, err)
	assert.True(t, imaging.FromImage(decoded).Equal(imaging.FromImage(src)))

	res := st.Result()
	assert.Empty(t, res.AppliedEffects)
	assert.Equal(t, []string{string(enhance.Sharpen)}, res.SkippedEffects)
}

func TestRun_WatermarkUniformGrayLandsBottomRight(t *testing.T) {
	o := newTestOrchestrator(t, config.Default(), nil)

	st, err := o.Run(context.Background(), Job{
		Task:      TaskWatermark,
		Source:    pngSource(t, grayImage(400, 300, 128)),
		Format:    imaging.FormatJPEG,
		Watermark: render.DefaultSpec(),
	})
	require.NoError(t, err)

	assert.Equal(t, []State{Start, Analyzed, Watermarking, QualityChecked, Completed}, st.History)
	require.NotNil(t, st.Placement)
	assert.Equal(t, "bottom_right", st.Placement.Zone)
	assert.False(t, st.Output.Equal(st.Input))
	assert.Contains(t, st.AppliedEffects(), "watermark:"+string(render.Glass))
	assert.Nil(t, st.Legibility)
	assert.Equal(t, "image/jpeg", st.Result().MIMEType)
}

func TestRun_WatermarkProbesLegibility(t *testing.T) {
	cfg := config.Default()
	cfg.OCRProbe = true
	o := newTestOrchestrator(t, cfg, nil, WithRecognizer(stubRecognizer{text: "PixelFly"}))

	st, err := o.Run(context.Background(), Job{
		Task:      TaskWatermark,
		Source:    pngSource(t, grayImage(400, 300, 40)),
		Watermark: render.DefaultSpec(),
	})
	require.NoError(t, err)

	require.NotNil(t, st.Legibility)
	assert.True(t, st.Legibility.Recovered)
	assert.Equal(t, imaging.FormatJPEG, st.Job.Format)
}

func TestRun_DecodeErrorEndsInError(t *testing.T) {
	obs := &recordingObserver{}
	o := newTestOrchestrator(t, config.Default(), nil, WithObserver(obs))

	st, err := o.Run(context.Background(), Job{Task: TaskEnhance, Source: garbageSource()})
	require.Error(t, err)

	assert.True(t, apperr.Is(err, apperr.DecodeError))
	assert.Equal(t, Error, st.Stage)
	assert.Equal(t, []State{Start, Error}, st.History)
	assert.Nil(t, st.Result())
	assert.Equal(t, 1, obs.failures)
}

func TestRun_ValidationErrors(t *testing.T) {
	o := newTestOrchestrator(t, config.Default(), nil)
	good := pngSource(t, grayImage(10, 10, 128))

	blank := render.DefaultSpec()
	blank.Text = "   "

	tests := []struct {
		name string
		job  Job
	}{
		{"missing source", Job{Task: TaskEnhance}},
		{"bad format", Job{Task: TaskEnhance, Source: good, Format: "gif"}},
		{"blank watermark text", Job{Task: TaskWatermark, Source: good, Watermark: blank}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := o.Run(context.Background(), tt.job)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.ValidationError))
			assert.Equal(t, Error, st.Stage)
		})
	}
}

func TestRunBatch_RejectsOversizedBatch(t *testing.T) {
	obs := &recordingObserver{}
	o := newTestOrchestrator(t, config.Default(), nil, WithObserver(obs))

	src := pngSource(t, grayImage(10, 10, 128))
	res, err := o.RunBatch(context.Background(), []imaging.Source{src, src, src, src}, render.DefaultSpec(), imaging.FormatPNG)

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ValidationError))
	assert.Nil(t, res)
	assert.Zero(t, obs.requests)
}

func TestRunBatch_RejectsEmptyBatchAndBadSpec(t *testing.T) {
	o := newTestOrchestrator(t, config.Default(), nil)

	_, err := o.RunBatch(context.Background(), nil, render.DefaultSpec(), imaging.FormatPNG)
	assert.True(t, apperr.Is(err, apperr.ValidationError))

	spec := render.DefaultSpec()
	spec.Opacity = 2
	_, err = o.RunBatch(context.Background(), []imaging.Source{pngSource(t, grayImage(8, 8, 1))}, spec, imaging.FormatPNG)
	assert.True(t, apperr.Is(err, apperr.ValidationError))
}

func TestRunBatch_PartialSuccess(t *testing.T) {
	o := newTestOrchestrator(t, config.Default(), nil)

	sources := []imaging.Source{
		pngSource(t, grayImage(300, 200, 128)),
		garbageSource(),
		pngSource(t, grayImage(200, 300, 60)),
	}
	res, err := o.RunBatch(context.Background(), sources, render.DefaultSpec(), imaging.FormatPNG)
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalRequested)
	assert.Equal(t, 2, res.ProcessedCount)
	require.Len(t, res.Items, 3)

	for i, it := range res.Items {
		assert.Equal(t, i, it.Index)
	}
	assert.True(t, res.Items[0].Success)
	assert.NotNil(t, res.Items[0].Result)
	assert.False(t, res.Items[1].Success)
	assert.NotEmpty(t, res.Items[1].Error)
	assert.Nil(t, res.Items[1].Result)
	assert.True(t, res.Items[2].Success)
}

func TestRunBatch_CancelledContext(t *testing.T) {
	o := newTestOrchestrator(t, config.Default(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := pngSource(t, grayImage(32, 32, 128))
	res, err := o.RunBatch(ctx, []imaging.Source{src, src}, render.DefaultSpec(), imaging.FormatPNG)
	require.NoError(t, err)

	assert.Zero(t, res.ProcessedCount)
	assert.Equal(t, 2, res.TotalRequested)
	for _, it := range res.Items {
		assert.False(t, it.Success)
		assert.NotEmpty(t, it.Error)
	}
}

func TestRunBatch_StartedItemSurvivesCancel(t *testing.T) {
	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, grayImage(64, 48, 128)))

	started := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(img.Bytes())
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, config.Default(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan *BatchResult, 1)
	go func() {
		res, err := o.RunBatch(ctx, []imaging.Source{{URL: srv.URL}}, render.DefaultSpec(), imaging.FormatPNG)
		assert.NoError(t, err)
		done <- res
	}()

	<-started
	cancel()
	close(release)

	select {
	case res := <-done:
		require.Len(t, res.Items, 1)
		assert.True(t, res.Items[0].Success, res.Items[0].Error)
		assert.Equal(t, 1, res.ProcessedCount)
	case <-time.After(5 * time.Second):
		t.Fatal("batch did not finish")
	}
}

func TestRequestIDFromContext(t *testing.T) {
	o := newTestOrchestrator(t, config.Default(), nil)
	ctx := WithRequestID(context.Background(), "req-7")

	st, err := o.Run(ctx, Job{
		Task:   TaskEnhance,
		Source: pngSource(t, grayImage(16, 16, 128)),
		Format: imaging.FormatPNG,
	})
	require.NoError(t, err)
	assert.Equal(t, "req-7", st.RequestID)
	assert.Equal(t, "req-7", st.Result().RequestID)

	src := pngSource(t, grayImage(16, 16, 128))
	res, err := o.RunBatch(ctx, []imaging.Source{src, src}, render.DefaultSpec(), imaging.FormatPNG)
	require.NoError(t, err)
	assert.Equal(t, "req-7-0", res.Items[0].State.RequestID)
	assert.Equal(t, "req-7-1", res.Items[1].State.RequestID)

	st, err = o.Run(context.Background(), Job{Task: TaskEnhance, Source: src, Format: imaging.FormatPNG})
	require.NoError(t, err)
	assert.Len(t, st.RequestID, 36)
}

func TestStateTerminal(t *testing.T) {
	for _, s := range []State{Start, Analyzed, Enhancing, Watermarking, QualityChecked} {
		assert.False(t, s.Terminal(), s)
	}
	assert.True(t, Completed.Terminal())
	assert.True(t, Error.Terminal())
}

func TestUnknownTaskFails(t *testing.T) {
	o := newTestOrchestrator(t, config.Default(), nil)
	st, err := o.Run(context.Background(), Job{Task: "resize", Source: pngSource(t, grayImage(8, 8, 128))})

	require.Error(t, err)
	assert.Equal(t, Error, st.Stage)
}

func TestAnalyze_ReportsPaletteAndText(t *testing.T) {
	o := newTestOrchestrator(t, config.Default(), nil)

	img := grayImage(800, 600, 255)
	// Vertical strokes inside the bottom-right zone read as an existing caption.
	for y := 500; y < 560; y++ {
		for x := 600; x < 780; x++ {
			if x%10 < 2 {
				i := img.PixOffset(x, y)
				img.Pix[i], img.Pix[i+1], img.Pix[i+2] = 0, 0, 0
			}
		}
	}

	res, err := o.Analyze(context.Background(), pngSource(t, img), enhance.Auto)
	require.NoError(t, err)

	require.NotEmpty(t, res.Palette)
	assert.Equal(t, "#f0f0f0", res.Palette[0].Hex)
	require.NotEmpty(t, res.TextRegions)
	assert.Contains(t, res.TextZones, analysis.BottomRight)
	assert.NotContains(t, res.TextZones, analysis.TopLeft)
	assert.Len(t, res.RankedZones, 5)
}

func TestAnalyze_Errors(t *testing.T) {
	o := newTestOrchestrator(t, config.Default(), nil)

	_, err := o.Analyze(context.Background(), imaging.Source{}, enhance.Auto)
	assert.Equal(t, apperr.ValidationError, apperr.KindOf(err))

	_, err = o.Analyze(context.Background(), garbageSource(), enhance.Auto)
	assert.Equal(t, apperr.DecodeError, apperr.KindOf(err))
}
