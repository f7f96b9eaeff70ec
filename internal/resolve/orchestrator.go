// Package resolve drives the per-record resolution flow: cache lookup,
// tiered source calls behind the rate limiters, candidate filtering and
// scoring, and the cache commit that precedes every reported result.
package resolve

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/TalkingHeadsJed/texasmotels/internal/cache"
	"github.com/TalkingHeadsJed/texasmotels/internal/domains"
	"github.com/TalkingHeadsJed/texasmotels/internal/model"
	"github.com/TalkingHeadsJed/texasmotels/internal/normalize"
	"github.com/TalkingHeadsJed/texasmotels/internal/ratelimit"
	"github.com/TalkingHeadsJed/texasmotels/internal/resilience"
	"github.com/TalkingHeadsJed/texasmotels/internal/score"
	"github.com/TalkingHeadsJed/texasmotels/internal/source"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithThreshold overrides the acceptance confidence threshold.
func WithThreshold(t float64) Option {
	return func(o *Orchestrator) {
		if t > 0 {
			o.threshold = t
		}
	}
}

// WithRetryConfig overrides the per-call retry schedule.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(o *Orchestrator) {
		o.retry = cfg
	}
}

// Orchestrator resolves one record at a time. It is safe for concurrent use;
// concurrent calls for the same fingerprint collapse into a single network
// resolution.
type Orchestrator struct {
	store     cache.Store
	limiters  *ratelimit.Pool
	resolvers []source.Resolver
	threshold float64
	retry     resilience.RetryConfig

	group singleflight.Group
}

// New builds an orchestrator over an ordered resolver list. Resolvers are
// tried in the given order; the first accepted candidate wins.
func New(store cache.Store, limiters *ratelimit.Pool, resolvers []source.Resolver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		limiters:  limiters,
		resolvers: resolvers,
		threshold: score.DefaultThreshold,
		retry:     resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Resolve returns the terminal outcome for a record. A cached non-Error
// entry short-circuits without any network call; otherwise the result is
// persisted before it is returned.
func (o *Orchestrator) Resolve(ctx context.Context, rec model.Record) (*model.ResolutionResult, error) {
	fingerprint := normalize.Fingerprint(rec)

	entry, err := o.store.Get(ctx, fingerprint)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: cache lookup")
	}
	if entry != nil && entry.Outcome != model.OutcomeError {
		return model.FromEntry(entry), nil
	}

	val, err, _ := o.group.Do(fingerprint, func() (any, error) {
		return o.resolveNetwork(ctx, fingerprint, rec)
	})
	if err != nil {
		return nil, err
	}
	return val.(*model.ResolutionResult), nil
}

func (o *Orchestrator) resolveNetwork(ctx context.Context, fingerprint string, rec model.Record) (*model.ResolutionResult, error) {
	result := &model.ResolutionResult{
		Fingerprint: fingerprint,
		Outcome:     model.OutcomeNotFound,
		Source:      model.SourceNone,
	}

	var tierErrors []string
	for _, r := range o.resolvers {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		candidates, err := o.callResolver(ctx, r, rec)
		if err != nil {
			// A failed tier never suppresses the next one; the record
			// only lands in Error when every tier came up empty.
			zap.L().Warn("source tier failed",
				zap.String("source", r.Name()),
				zap.String("fingerprint", fingerprint),
				zap.Error(err),
			)
			tierErrors = append(tierErrors, r.Name()+": "+err.Error())
			continue
		}

		if o.evaluate(rec, r, candidates, result) {
			break
		}
	}

	if result.Outcome != model.OutcomeFound && len(tierErrors) > 0 {
		result.Outcome = model.OutcomeError
		result.Source = model.SourceNone
		result.Error = strings.Join(tierErrors, "; ")
		result.Website = ""
		result.Confidence = 0
		result.MatchMethod = ""
	}

	if err := o.store.Put(ctx, result.Entry()); err != nil {
		return nil, eris.Wrap(err, "resolve: cache commit")
	}
	return result, nil
}

// callResolver runs one tier behind its class limiter with retries. Throttle
// responses feed the shared backoff so every worker on the class slows down.
func (o *Orchestrator) callResolver(ctx context.Context, r source.Resolver, rec model.Record) ([]model.Candidate, error) {
	limiter := o.limiters.For(r.Class())

	cfg := o.retry
	cfg.OnRetry = resilience.RetryLogger(r.Name(), "resolve")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]model.Candidate, error) {
		if err := limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		candidates, err := r.Resolve(ctx, rec)
		if err != nil {
			if resilience.IsThrottle(err) {
				limiter.ReportThrottle()
			}
			return nil, err
		}
		limiter.ReportSuccess()
		return candidates, nil
	})
}

// evaluate scores a tier's candidates and fills result with the best one
// meeting the threshold. It reports whether the tier produced a Found.
// A confident structured match without a website still contributes its
// place id and maps URL to an eventual not-found result.
func (o *Orchestrator) evaluate(rec model.Record, r source.Resolver, candidates []model.Candidate, result *model.ResolutionResult) bool {
	src := sourceFor(r.Class())

	bestConf := 0.0
	var bestMethod model.MatchMethod
	var best *model.Candidate

	for i := range candidates {
		cand := &candidates[i]

		conf, method := o.scoreCandidate(rec, *cand)

		// Structured matches carry identity even when the provider lists
		// no website for the place.
		if src == model.SourcePlaces && cand.URL == "" && conf >= o.threshold {
			if result.PlaceID == "" {
				result.PlaceID = cand.PlaceID
				result.MapsURL = cand.MapsURL
				result.Rating = cand.Rating
				result.Reviews = cand.Reviews
			}
			continue
		}

		if cand.URL == "" || !domains.IsAllowed(cand.URL) {
			continue
		}
		if conf > bestConf {
			bestConf = conf
			bestMethod = method
			best = cand
		}
	}

	if best == nil || bestConf < o.threshold {
		return false
	}

	result.Outcome = model.OutcomeFound
	result.Website = best.URL
	result.Source = src
	result.Confidence = bestConf
	result.MatchMethod = bestMethod
	if best.PlaceID != "" {
		result.PlaceID = best.PlaceID
		result.MapsURL = best.MapsURL
		result.Rating = best.Rating
		result.Reviews = best.Reviews
	}
	return true
}

// scoreCandidate picks structured or rank-based scoring by what the
// candidate carries.
func (o *Orchestrator) scoreCandidate(rec model.Record, cand model.Candidate) (float64, model.MatchMethod) {
	if cand.PlaceID != "" || cand.Address != "" {
		return score.Structured(rec, cand)
	}
	return score.Fallback(cand.Rank)
}

func sourceFor(class ratelimit.Class) model.Source {
	if class == ratelimit.ClassPlaces {
		return model.SourcePlaces
	}
	return model.SourceWebSearch
}
