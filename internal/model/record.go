// Package model defines the core data types shared across the resolution
// pipeline: input records, candidate matches, cache entries, and results.
package model

import "time"

// Record is one input business row. Identity fields are read once and never
// mutated; Row carries the original input columns through to the output.
type Record struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Permit  string `json:"permit,omitempty"`

	// RowIndex is the zero-based position in the input file.
	RowIndex int `json:"row_index"`
	// Row is the raw input row, carried through unmodified.
	Row []string `json:"-"`
}

// Candidate is a prospective match surfaced by a source adapter. It is
// transient: only the fields of the chosen candidate survive into a
// ResolutionResult.
type Candidate struct {
	Name    string  `json:"name"`
	Address string  `json:"address"`
	City    string  `json:"city"`
	URL     string  `json:"url"`
	PlaceID string  `json:"place_id,omitempty"`
	MapsURL string  `json:"maps_url,omitempty"`
	Rating  float64 `json:"rating,omitempty"`
	Reviews int     `json:"reviews,omitempty"`
	// Rank is the zero-based position in the provider's result list.
	Rank int `json:"rank"`
}

// Outcome classifies a terminal resolution state.
type Outcome string

const (
	OutcomeFound    Outcome = "found"
	OutcomeNotFound Outcome = "not_found"
	OutcomeError    Outcome = "error"
)

// Source identifies which adapter tier produced a result.
type Source string

const (
	SourcePlaces    Source = "places_api"
	SourceWebSearch Source = "web_search"
	SourceNone      Source = "none"
)

// MatchMethod identifies the comparison strategy behind an accepted match.
type MatchMethod string

const (
	MethodNameAddress MatchMethod = "name_address"
	MethodNameCity    MatchMethod = "name_city"
	MethodAddressOnly MatchMethod = "address_only"
	MethodFallback    MatchMethod = "fallback"
)

// CacheEntry is the persisted outcome for one fingerprint. A non-Error entry
// is authoritative across runs; an Error entry is eligible for retry.
type CacheEntry struct {
	Fingerprint  string      `json:"fingerprint"`
	Outcome      Outcome     `json:"outcome"`
	Website      string      `json:"website,omitempty"`
	PlaceID      string      `json:"place_id,omitempty"`
	MapsURL      string      `json:"maps_url,omitempty"`
	Rating       float64     `json:"rating,omitempty"`
	Reviews      int         `json:"reviews,omitempty"`
	Source       Source      `json:"source"`
	Confidence   float64     `json:"confidence"`
	MatchMethod  MatchMethod `json:"match_method,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// ResolutionResult is the terminal outcome reported for one fingerprint in a
// run. Website is non-empty only when the candidate passed the domain filter
// and met the confidence threshold.
type ResolutionResult struct {
	Fingerprint string      `json:"fingerprint"`
	Outcome     Outcome     `json:"outcome"`
	Website     string      `json:"website,omitempty"`
	PlaceID     string      `json:"place_id,omitempty"`
	MapsURL     string      `json:"maps_url,omitempty"`
	Rating      float64     `json:"rating,omitempty"`
	Reviews     int         `json:"reviews,omitempty"`
	Source      Source      `json:"source"`
	Confidence  float64     `json:"confidence"`
	MatchMethod MatchMethod `json:"match_method,omitempty"`
	Error       string      `json:"error,omitempty"`
	// FromCache is true when the result short-circuited on a cache hit.
	FromCache bool `json:"from_cache"`
}

// Entry converts a result into its cache representation.
func (r *ResolutionResult) Entry() CacheEntry {
	return CacheEntry{
		Fingerprint:  r.Fingerprint,
		Outcome:      r.Outcome,
		Website:      r.Website,
		PlaceID:      r.PlaceID,
		MapsURL:      r.MapsURL,
		Rating:       r.Rating,
		Reviews:      r.Reviews,
		Source:       r.Source,
		Confidence:   r.Confidence,
		MatchMethod:  r.MatchMethod,
		ErrorMessage: r.Error,
		UpdatedAt:    time.Now().UTC(),
	}
}

// FromEntry builds a result from a cached entry.
func FromEntry(e *CacheEntry) *ResolutionResult {
	return &ResolutionResult{
		Fingerprint: e.Fingerprint,
		Outcome:     e.Outcome,
		Website:     e.Website,
		PlaceID:     e.PlaceID,
		MapsURL:     e.MapsURL,
		Rating:      e.Rating,
		Reviews:     e.Reviews,
		Source:      e.Source,
		Confidence:  e.Confidence,
		MatchMethod: e.MatchMethod,
		Error:       e.ErrorMessage,
		FromCache:   true,
	}
}

// RunSummary captures batch-level metadata persisted with each run. Total
// counts input rows after filtering; Resolved, CacheHits, and Errors count
// distinct fingerprints, so duplicate rows contribute once.
type RunSummary struct {
	ID          string    `json:"id"`
	InputPath   string    `json:"input_path"`
	Total       int       `json:"total"`
	Resolved    int       `json:"resolved"`
	CacheHits   int       `json:"cache_hits"`
	Errors      int       `json:"errors"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}
