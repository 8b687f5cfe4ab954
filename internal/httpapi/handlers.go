package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ironsheep/pixelfly/internal/apperr"
	"github.com/ironsheep/pixelfly/internal/enhance"
	"github.com/ironsheep/pixelfly/internal/imaging"
	"github.com/ironsheep/pixelfly/internal/orchestrator"
	"github.com/ironsheep/pixelfly/internal/render"
)

type imageRequest struct {
	ImageBase64 string `json:"image_base64"`
	ImageURL    string `json:"image_url"`
}

func (r imageRequest) source() imaging.Source {
	return imaging.Source{Base64: r.ImageBase64, URL: r.ImageURL}
}

type enhanceRequest struct {
	imageRequest
	enhance.Hints
	EnhancementType string `json:"enhancement_type"`
	Format          string `json:"format"`
}

type enhanceResponse struct {
	Success             bool                 `json:"success"`
	EnhancedBase64      string               `json:"enhanced_base64"`
	EnhancementsApplied []string             `json:"enhancements_applied"`
	ProcessingTime      float64              `json:"processing_time"`
	QualityImprovement  float64              `json:"quality_improvement"`
	Details             *orchestrator.Result `json:"details"`
}

type watermarkRequest struct {
	ImageBase64List []string       `json:"image_base64_list"`
	ImageURLs       []string       `json:"image_urls"`
	WatermarkConfig render.Options `json:"watermark_config"`
	Format          string         `json:"format"`
}

func (r watermarkRequest) sources() []imaging.Source {
	out := make([]imaging.Source, 0, len(r.ImageBase64List)+len(r.ImageURLs))
	for _, b := range r.ImageBase64List {
		out = append(out, imaging.Source{Base64: b})
	}
	for _, u := range r.ImageURLs {
		out = append(out, imaging.Source{URL: u})
	}
	return out
}

type watermarkResponse struct {
	Success           bool                     `json:"success"`
	WatermarkedBase64 []string                 `json:"watermarked_base64"`
	Results           []orchestrator.BatchItem `json:"results"`
	ProcessedCount    int                      `json:"processed_count"`
	TotalRequested    int                      `json:"total_requested"`
	ProcessingTime    float64                  `json:"processing_time"`
}

type analyzeRequest struct {
	imageRequest
	EnhancementType string `json:"enhancement_type"`
}

// errorBody is the JSON shape of every failure.
type errorBody struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// fail writes err with 400 for caller mistakes and 500 for anything else.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if apperr.KindOf(err).Surfaced() {
		status = http.StatusBadRequest
	} else {
		log.Error().Err(err).Str("request_id", getRequestID(c)).Msg("unexpected failure")
	}
	c.JSON(status, errorBody{
		Error:     err.Error(),
		Kind:      string(apperr.KindOf(err)),
		RequestID: getRequestID(c),
	})
}

func bind(c *gin.Context, v interface{}) bool {
	err := c.ShouldBindJSON(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, errorBody{
			Error:     fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			Kind:      string(apperr.ValidationError),
			RequestID: getRequestID(c),
		})
		return false
	}
	fail(c, apperr.Wrap(apperr.ValidationError, err, "invalid request body"))
	return false
}

func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "PixelFly API",
		"version": s.opts.Version,
		"endpoints": gin.H{
			"health":       "/health",
			"capabilities": "/api/capabilities",
			"enhance":      "/api/enhance",
			"watermark":    "/api/watermark",
			"analyze":      "/api/analyze",
			"metrics":      "/metrics",
		},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"service":  "pixelfly",
		"version":  s.opts.Version,
		"features": []string{"photo_enhancement", "watermarking"},
	})
}

func (s *Server) handleCapabilities(c *gin.Context) {
	c.JSON(http.StatusOK, s.orch.Capabilities())
}

func (s *Server) handleEnhance(c *gin.Context) {
	var req enhanceRequest
	if !bind(c, &req) {
		return
	}
	category, err := enhance.ParseCategory(req.EnhancementType)
	if err != nil {
		fail(c, err)
		return
	}
	format, err := imaging.ParseFormat(req.Format)
	if err != nil {
		fail(c, err)
		return
	}

	st, err := s.orch.Run(c.Request.Context(), orchestrator.Job{
		Task:     orchestrator.TaskEnhance,
		Source:   req.source(),
		Format:   format,
		Category: category,
		Hints:    req.Hints,
	})
	if err != nil {
		fail(c, err)
		return
	}

	res := st.Result()
	c.JSON(http.StatusOK, enhanceResponse{
		Success:             true,
		EnhancedBase64:      imaging.EncodeBase64(res.Image),
		EnhancementsApplied: res.AppliedEffects,
		ProcessingTime:      res.ProcessingTime,
		QualityImprovement:  res.QualityImprovement,
		Details:             res,
	})
}

func (s *Server) handleWatermark(c *gin.Context) {
	var req watermarkRequest
	if !bind(c, &req) {
		return
	}
	spec, err := req.WatermarkConfig.Spec()
	if err != nil {
		fail(c, err)
		return
	}
	format, err := imaging.ParseFormat(req.Format)
	if err != nil {
		fail(c, err)
		return
	}

	br, err := s.orch.RunBatch(c.Request.Context(), req.sources(), spec, format)
	if err != nil {
		fail(c, err)
		return
	}
	s.metrics.BatchDone(br)

	resp := watermarkResponse{
		Success:           br.ProcessedCount > 0,
		WatermarkedBase64: []string{},
		Results:           br.Items,
		ProcessedCount:    br.ProcessedCount,
		TotalRequested:    br.TotalRequested,
		ProcessingTime:    br.Elapsed,
	}
	for _, it := range br.Items {
		if it.Success {
			resp.WatermarkedBase64 = append(resp.WatermarkedBase64, imaging.EncodeBase64(it.Result.Image))
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if !bind(c, &req) {
		return
	}
	category, err := enhance.ParseCategory(req.EnhancementType)
	if err != nil {
		fail(c, err)
		return
	}

	res, err := s.orch.Analyze(c.Request.Context(), req.source(), category)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
