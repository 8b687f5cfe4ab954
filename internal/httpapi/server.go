// Package httpapi serves the engine over HTTP with gin.
//
// Routes:
//
//	GET  /                  service index
//	GET  /health            liveness
//	GET  /api/capabilities  accepted vocabularies and limits
//	POST /api/enhance       enhance one image
//	POST /api/watermark     watermark a batch of images
//	POST /api/analyze       report metrics without modifying the image
//	GET  /metrics           Prometheus exposition
//
// Images travel as base64 or as http(s) URLs; local paths are not accepted.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ironsheep/pixelfly/internal/orchestrator"
)

// Options tune the HTTP server.
type Options struct {
	Version string

	// Debug exposes the pprof endpoints under /debug/pprof.
	Debug bool

	// ShutdownTimeout bounds graceful shutdown in Run.
	ShutdownTimeout time.Duration

	// MaxBodyBytes caps every request body. Zero selects 64 MiB.
	MaxBodyBytes int64
}

// Server is the HTTP transport.
type Server struct {
	orch    *orchestrator.Orchestrator
	metrics *Metrics
	opts    Options
	engine  *gin.Engine
}

// New builds the router. metrics should be the same instance installed on
// orch as its observer.
func New(orch *orchestrator.Orchestrator, metrics *Metrics, opts Options) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 64 << 20
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(
		gin.Recovery(),
		requestID(),
		limitBody(opts.MaxBodyBytes),
		accessLog(),
		metrics.instrument(),
	)

	if opts.Debug {
		log.Warn().Msg("pprof endpoints are enabled and exposed. Do not run with this flag in production.")
		pprof.Register(r)
	}

	s := &Server{orch: orch, metrics: metrics, opts: opts, engine: r}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/", s.handleIndex)
	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")
	api.GET("/capabilities", s.handleCapabilities)
	api.POST("/enhance", s.handleEnhance)
	api.POST("/watermark", s.handleWatermark)
	api.POST("/analyze", s.handleAnalyze)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
