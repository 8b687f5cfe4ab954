// Package config builds the engine's immutable runtime configuration.
//
// Configuration is read once at process start from the environment, with an
// optional .env file in the working directory loaded first. The resulting
// Config is passed by pointer into every constructor that needs it and is
// never modified afterwards.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
)

// Thresholds are the cut-offs used by the enhancement rule table.
type Thresholds struct {
	// LowSharpness flags blur when the Laplacian variance falls below it.
	LowSharpness float64

	// LowContrast flags a flat image when the sample deviation falls below it.
	LowContrast float64

	// HighNoise flags noise when the sample deviation rises above it.
	HighNoise float64

	// Dark and Bright bound the acceptable mean brightness.
	Dark   float64
	Bright float64
}

// Config is the complete set of tunables for a pixelfly process.
type Config struct {
	LogLevel string

	// JPEGQuality is the quality used when encoding results as JPEG.
	JPEGQuality int

	// MaxDimension caps the longer image side after decode.
	MaxDimension int

	// MaxPixels rejects sources declaring more pixels than this before
	// they are decoded.
	MaxPixels int

	// MaxRequestBytes bounds an HTTP request body.
	MaxRequestBytes int64

	// CacheSize is the number of decoded buffers kept in the LRU cache.
	CacheSize int

	// MaxBatch is the largest accepted batch; BatchWorkers bounds fan-out.
	MaxBatch     int
	BatchWorkers int

	ItemTimeout     time.Duration
	FetchTimeout    time.Duration
	AdvisoryTimeout time.Duration

	// AdvisoryAPIKey enables the vision advisory when non-empty.
	AdvisoryAPIKey string
	AdvisoryModel  string

	HTTPAddr string

	// OCRProbe turns on the legibility probe during the quality check.
	OCRProbe bool

	Thresholds Thresholds
}

// Default returns a Config populated with the documented defaults.
func Default() *Config {
	return &Config{
		LogLevel:        "info",
		JPEGQuality:     95,
		MaxDimension:    4096,
		MaxPixels:       40_000_000,
		MaxRequestBytes: 64 << 20,
		CacheSize:       32,
		MaxBatch:        3,
		BatchWorkers:    3,
		ItemTimeout:     60 * time.Second,
		FetchTimeout:    30 * time.Second,
		AdvisoryTimeout: 10 * time.Second,
		AdvisoryModel:   "gemini-2.0-flash",
		HTTPAddr:        ":8080",
		Thresholds: Thresholds{
			LowSharpness: 100,
			LowContrast:  50,
			HighNoise:    80,
			Dark:         80,
			Bright:       200,
		},
	}
}

// Load reads .env (if present) and the process environment on top of the
// defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found")
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function, falling back to the
// default for every key that is absent or does not parse.
func FromEnv(lookup func(string) (string, bool)) *Config {
	cfg := Default()
	e := env{lookup: lookup}

	cfg.LogLevel = e.str("PIXELFLY_LOG_LEVEL", cfg.LogLevel)
	cfg.JPEGQuality = e.int("PIXELFLY_JPEG_QUALITY", cfg.JPEGQuality)
	cfg.MaxDimension = e.int("PIXELFLY_MAX_DIMENSION", cfg.MaxDimension)
	cfg.MaxPixels = e.int("PIXELFLY_MAX_PIXELS", cfg.MaxPixels)
	cfg.MaxRequestBytes = int64(e.int("PIXELFLY_MAX_REQUEST_BYTES", int(cfg.MaxRequestBytes)))
	cfg.CacheSize = e.int("PIXELFLY_CACHE_SIZE", cfg.CacheSize)
	cfg.MaxBatch = e.int("PIXELFLY_MAX_BATCH", cfg.MaxBatch)
	cfg.BatchWorkers = e.int("PIXELFLY_BATCH_WORKERS", cfg.BatchWorkers)
	cfg.ItemTimeout = e.duration("PIXELFLY_ITEM_TIMEOUT", cfg.ItemTimeout)
	cfg.FetchTimeout = e.duration("PIXELFLY_FETCH_TIMEOUT", cfg.FetchTimeout)
	cfg.AdvisoryTimeout = e.duration("PIXELFLY_ADVISORY_TIMEOUT", cfg.AdvisoryTimeout)
	cfg.AdvisoryAPIKey = e.str("GEMINI_API_KEY", cfg.AdvisoryAPIKey)
	cfg.AdvisoryModel = e.str("PIXELFLY_ADVISORY_MODEL", cfg.AdvisoryModel)
	cfg.HTTPAddr = e.str("PIXELFLY_HTTP_ADDR", cfg.HTTPAddr)
	cfg.OCRProbe = e.bool("PIXELFLY_OCR_PROBE", cfg.OCRProbe)

	t := &cfg.Thresholds
	t.LowSharpness = e.float("PIXELFLY_LOW_SHARPNESS", t.LowSharpness)
	t.LowContrast = e.float("PIXELFLY_LOW_CONTRAST", t.LowContrast)
	t.HighNoise = e.float("PIXELFLY_HIGH_NOISE", t.HighNoise)
	t.Dark = e.float("PIXELFLY_DARK", t.Dark)
	t.Bright = e.float("PIXELFLY_BRIGHT", t.Bright)

	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 95
	}
	if cfg.BatchWorkers < 1 {
		cfg.BatchWorkers = 1
	}
	if cfg.MaxBatch < 1 {
		cfg.MaxBatch = 1
	}
	if cfg.MaxRequestBytes < 1 {
		cfg.MaxRequestBytes = Default().MaxRequestBytes
	}

	return cfg
}

type env struct {
	lookup func(string) (string, bool)
}

func (e env) raw(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e env) str(key, def string) string {
	if v, ok := e.raw(key); ok {
		return v
	}
	return def
}

func (e env) int(key string, def int) int {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Ignoring invalid integer setting")
		return def
	}
	return n
}

func (e env) float(key string, def float64) float64 {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Ignoring invalid number setting")
		return def
	}
	return f
}

func (e env) bool(key string, def bool) bool {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Ignoring invalid boolean setting")
		return def
	}
	return b
}

func (e env) duration(key string, def time.Duration) time.Duration {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	d, err := cast.ToDurationE(v)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", v).Msg("Ignoring invalid duration setting")
		return def
	}
	return d
}
