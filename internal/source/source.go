// Package source defines the lookup capability shared by all providers and
// its implementations: a structured Places-style adapter and unstructured
// web-search adapters. The orchestrator holds an ordered list of Resolvers
// and tries them in priority order.
package source

import (
	"context"
	"strings"

	"github.com/TalkingHeadsJed/texasmotels/internal/model"
	"github.com/TalkingHeadsJed/texasmotels/internal/ratelimit"
)

// Resolver is the common capability: look up candidates for a record.
// Implementations classify failures as transient (retryable) or permanent
// via the resilience error types; an empty slice with a nil error means the
// provider answered but had nothing.
type Resolver interface {
	// Name identifies the provider (used in logs and cache source labels).
	Name() string
	// Class is the rate-limiter quota pool this resolver draws from.
	Class() ratelimit.Class
	// Resolve returns candidates ordered by the provider's own confidence.
	Resolve(ctx context.Context, rec model.Record) ([]model.Candidate, error)
}

// searchQuery builds the web-search query string for a record.
func searchQuery(rec model.Record) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{rec.Name, rec.City, rec.State} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	parts = append(parts, "official website")
	return strings.Join(parts, " ")
}

// placeQuery builds the structured-lookup query string for a record.
func placeQuery(rec model.Record) string {
	parts := make([]string, 0, 5)
	for _, p := range []string{rec.Name, rec.Address, rec.City, rec.State, rec.Zip} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
