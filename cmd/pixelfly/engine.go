package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ironsheep/pixelfly/internal/advisory"
	"github.com/ironsheep/pixelfly/internal/enhance"
	"github.com/ironsheep/pixelfly/internal/imaging"
	"github.com/ironsheep/pixelfly/internal/orchestrator"
)

// newOrchestrator wires the engine from cfg. The vision advisory is enabled
// only when an API key is configured.
func newOrchestrator(ctx context.Context, opts ...orchestrator.Option) (*orchestrator.Orchestrator, error) {
	cache, err := imaging.NewCache(cfg.CacheSize, imaging.Limits{
		MaxDimension: cfg.MaxDimension,
		MaxPixels:    cfg.MaxPixels,
	})
	if err != nil {
		return nil, fmt.Errorf("create image cache: %w", err)
	}
	loader := imaging.NewLoader(cache, cfg.FetchTimeout)

	var advisor enhance.Advisor
	if cfg.AdvisoryAPIKey != "" {
		client, err := advisory.New(ctx, cfg)
		if err != nil {
			// The rule table covers every request without it.
			log.Warn().Err(err).Msg("vision advisory disabled")
		} else {
			advisor = client
			log.Info().Str("model", cfg.AdvisoryModel).Msg("vision advisory enabled")
		}
	}

	return orchestrator.New(cfg, loader, advisor, opts...), nil
}
