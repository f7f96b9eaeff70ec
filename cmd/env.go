package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/TalkingHeadsJed/texasmotels/internal/cache"
	"github.com/TalkingHeadsJed/texasmotels/internal/ratelimit"
	"github.com/TalkingHeadsJed/texasmotels/internal/recordio"
	"github.com/TalkingHeadsJed/texasmotels/internal/resilience"
	"github.com/TalkingHeadsJed/texasmotels/internal/resolve"
	"github.com/TalkingHeadsJed/texasmotels/internal/source"
	"github.com/TalkingHeadsJed/texasmotels/pkg/bing"
	"github.com/TalkingHeadsJed/texasmotels/pkg/places"
	"github.com/TalkingHeadsJed/texasmotels/pkg/serpapi"
)

// openStore builds the configured cache backend, runs migrations, and wraps
// it with per-fingerprint write serialization. Unavailability is fatal here,
// before any row is processed.
func openStore(ctx context.Context) (cache.Store, error) {
	var backend cache.Store
	switch cfg.Cache.Driver {
	case "sqlite", "":
		s, err := cache.NewSQLite(cfg.Cache.Path)
		if err != nil {
			return nil, err
		}
		backend = s
	case "postgres":
		s, err := cache.NewPostgres(ctx, cfg.Cache.DatabaseURL)
		if err != nil {
			return nil, err
		}
		backend = s
	default:
		return nil, eris.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}

	if err := backend.Migrate(ctx); err != nil {
		backend.Close()
		return nil, err
	}
	return cache.NewKeyed(backend), nil
}

// buildResolvers assembles the source tiers in priority order: structured
// place lookup first, then the configured web-search fallback.
func buildResolvers() ([]source.Resolver, error) {
	if cfg.Places.Key == "" {
		return nil, eris.New("places.key is required (MOTELS_PLACES_KEY)")
	}

	placesOpts := []places.Option{}
	if cfg.Places.BaseURL != "" {
		placesOpts = append(placesOpts, places.WithBaseURL(cfg.Places.BaseURL))
	}
	resolvers := []source.Resolver{
		source.NewPlacesResolver(places.NewClient(cfg.Places.Key, placesOpts...)),
	}

	switch cfg.Search.Provider {
	case "serpapi":
		if cfg.Search.Key == "" {
			zap.L().Warn("search.key not set; skipping web-search fallback tier",
				zap.String("provider", cfg.Search.Provider))
			break
		}
		opts := []serpapi.Option{}
		if cfg.Search.BaseURL != "" {
			opts = append(opts, serpapi.WithBaseURL(cfg.Search.BaseURL))
		}
		resolvers = append(resolvers, source.NewSerpAPIResolver(serpapi.NewClient(cfg.Search.Key, opts...)))
	case "bing":
		if cfg.Search.Key == "" {
			zap.L().Warn("search.key not set; skipping web-search fallback tier",
				zap.String("provider", cfg.Search.Provider))
			break
		}
		opts := []bing.Option{}
		if cfg.Search.BaseURL != "" {
			opts = append(opts, bing.WithBaseURL(cfg.Search.BaseURL))
		}
		resolvers = append(resolvers, source.NewBingResolver(bing.NewClient(cfg.Search.Key, opts...)))
	case "":
		// No fallback tier; structured lookup only.
	default:
		return nil, eris.Errorf("unknown search provider %q", cfg.Search.Provider)
	}

	return resolvers, nil
}

// buildOrchestrator wires the resolver tiers, rate-limit pool, and retry
// schedule from config.
func buildOrchestrator(store cache.Store) (*resolve.Orchestrator, error) {
	resolvers, err := buildResolvers()
	if err != nil {
		return nil, err
	}

	pool := ratelimit.NewPool(cfg.RateLimit.Places, cfg.RateLimit.WebSearch, ratelimit.BackoffConfig{
		Base:       time.Duration(cfg.Backoff.BaseMS) * time.Millisecond,
		Max:        time.Duration(cfg.Backoff.MaxMS) * time.Millisecond,
		ResetAfter: cfg.Backoff.ResetAfter,
	})

	retryCfg := resilience.DefaultRetryConfig()
	if cfg.Resolve.MaxAttempts > 0 {
		retryCfg.MaxAttempts = cfg.Resolve.MaxAttempts
	}

	return resolve.New(store, pool, resolvers,
		resolve.WithThreshold(cfg.Resolve.Confidence),
		resolve.WithRetryConfig(retryCfg),
	), nil
}

func columnOverrides() recordio.Columns {
	return recordio.Columns{
		Name:    cfg.Columns.Name,
		Address: cfg.Columns.Address,
		City:    cfg.Columns.City,
		State:   cfg.Columns.State,
		Zip:     cfg.Columns.Zip,
		Permit:  cfg.Columns.Permit,
	}
}
