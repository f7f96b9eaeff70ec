package resolve

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TalkingHeadsJed/texasmotels/internal/cache"
	"github.com/TalkingHeadsJed/texasmotels/internal/model"
	"github.com/TalkingHeadsJed/texasmotels/internal/normalize"
	"github.com/TalkingHeadsJed/texasmotels/internal/ratelimit"
	"github.com/TalkingHeadsJed/texasmotels/internal/resilience"
	"github.com/TalkingHeadsJed/texasmotels/internal/source"
)

// memStore is an in-memory Store with the first-Found-wins upsert policy.
type memStore struct {
	mu      sync.Mutex
	entries map[string]model.CacheEntry
	puts    int
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]model.CacheEntry)}
}

func (m *memStore) Get(_ context.Context, fp string) (*model.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[fp]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *memStore) Put(_ context.Context, entry model.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if existing, ok := m.entries[entry.Fingerprint]; ok && existing.Outcome != model.OutcomeError {
		return nil
	}
	m.entries[entry.Fingerprint] = entry
	return nil
}

func (m *memStore) Exists(_ context.Context, fp string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[fp]
	return ok, nil
}

func (m *memStore) Fingerprints(_ context.Context) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[string]bool)
	for fp, e := range m.entries {
		if e.Outcome != model.OutcomeError {
			set[fp] = true
		}
	}
	return set, nil
}

func (m *memStore) Invalidate(_ context.Context, fp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, fp)
	return nil
}

func (m *memStore) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]model.CacheEntry)
	return nil
}

func (m *memStore) Stats(context.Context) (*cache.Stats, error)  { return &cache.Stats{}, nil }
func (m *memStore) RecordRun(context.Context, model.RunSummary) error { return nil }
func (m *memStore) Migrate(context.Context) error                { return nil }
func (m *memStore) Close() error                                 { return nil }

var _ cache.Store = (*memStore)(nil)

// fakeResolver is a scripted source tier: each call pops the next response.
type fakeResolver struct {
	name  string
	class ratelimit.Class

	mu    sync.Mutex
	queue []fakeResponse
	calls int
}

type fakeResponse struct {
	candidates []model.Candidate
	err        error
}

func (f *fakeResolver) Name() string           { return f.name }
func (f *fakeResolver) Class() ratelimit.Class { return f.class }

func (f *fakeResolver) Resolve(context.Context, model.Record) ([]model.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.queue) == 0 {
		return nil, nil
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next.candidates, next.err
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func placesTier(responses ...fakeResponse) *fakeResolver {
	return &fakeResolver{name: "places_api", class: ratelimit.ClassPlaces, queue: responses}
}

func webTier(responses ...fakeResponse) *fakeResolver {
	return &fakeResolver{name: "serpapi", class: ratelimit.ClassWebSearch, queue: responses}
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     1.0,
		JitterFraction: 0,
	}
}

var testRecord = model.Record{
	Name:    "Desert Rose Motel",
	Address: "123 Main St",
	City:    "El Paso",
	State:   "TX",
}

func buildOrch(store cache.Store, resolvers ...*fakeResolver) *Orchestrator {
	srcs := make([]source.Resolver, len(resolvers))
	for i, r := range resolvers {
		srcs[i] = r
	}
	return New(store, ratelimit.NewPool(10000, 10000, ratelimit.DefaultBackoff()), srcs,
		WithRetryConfig(fastRetry()))
}

func TestResolve_CacheHitSkipsNetwork(t *testing.T) {
	store := newMemStore()
	fp := normalize.Fingerprint(testRecord)
	require.NoError(t, store.Put(context.Background(), model.CacheEntry{
		Fingerprint: fp,
		Outcome:     model.OutcomeFound,
		Website:     "https://cached.example",
		Source:      model.SourcePlaces,
		Confidence:  0.9,
		MatchMethod: model.MethodNameAddress,
	}))
	store.puts = 0

	tier := placesTier()
	o := buildOrch(store, tier)

	res, err := o.Resolve(context.Background(), testRecord)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, "https://cached.example", res.Website)
	assert.Equal(t, 0, tier.callCount(), "cache hit must not touch the network")
	assert.Equal(t, 0, store.puts, "cache hit must not rewrite the entry")
}

func TestResolve_StructuredMatchAccepted(t *testing.T) {
	store := newMemStore()
	tier := placesTier(fakeResponse{candidates: []model.Candidate{{
		Name:    "Desert Rose Motel",
		Address: "123 Main Street",
		URL:     "https://desertrosemotel.com",
		PlaceID: "place-1",
		MapsURL: "https://maps.example/1",
		Rating:  4.4,
		Reviews: 120,
	}}})
	web := webTier()
	o := buildOrch(store, tier, web)

	res, err := o.Resolve(context.Background(), testRecord)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeFound, res.Outcome)
	assert.Equal(t, "https://desertrosemotel.com", res.Website)
	assert.Equal(t, model.SourcePlaces, res.Source)
	assert.Equal(t, model.MethodNameAddress, res.MatchMethod)
	assert.Equal(t, "place-1", res.PlaceID)
	assert.Equal(t, 4.4, res.Rating)
	assert.Equal(t, 0, web.callCount(), "an accepted structured match skips the fallback tier")

	// Result was committed before it was reported.
	entry, err := store.Get(context.Background(), res.Fingerprint)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, model.OutcomeFound, entry.Outcome)
}

func TestResolve_DenylistedURLFallsToWebSearch(t *testing.T) {
	store := newMemStore()
	tier := placesTier(fakeResponse{candidates: []model.Candidate{{
		Name:    "Desert Rose Motel",
		Address: "123 Main Street",
		URL:     "https://www.facebook.com/desertrose",
		PlaceID: "place-1",
	}}})
	web := webTier(fakeResponse{candidates: []model.Candidate{
		{Name: "Desert Rose Motel", URL: "https://desertrosemotel.com", Rank: 0},
	}})
	o := buildOrch(store, tier, web)

	res, err := o.Resolve(context.Background(), testRecord)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeFound, res.Outcome)
	assert.Equal(t, "https://desertrosemotel.com", res.Website)
	assert.Equal(t, model.SourceWebSearch, res.Source)
	assert.Equal(t, model.MethodFallback, res.MatchMethod)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
	assert.Equal(t, 1, web.callCount())
}

func TestResolve_WebCandidatesFilterDenylisted(t *testing.T) {
	store := newMemStore()
	tier := placesTier()
	web := webTier(fakeResponse{candidates: []model.Candidate{
		{Name: "Yelp", URL: "https://www.yelp.com/biz/desert-rose", Rank: 0},
		{Name: "Desert Rose Motel", URL: "https://desertrosemotel.com", Rank: 1},
	}})
	o := buildOrch(store, tier, web)

	// Rank 1 scores 0.72, below the default threshold, so filtering the
	// denylisted rank 0 must not promote it.
	res, err := o.Resolve(context.Background(), testRecord)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNotFound, res.Outcome)
	assert.Empty(t, res.Website)
}

func TestResolve_TransientTierFailureDoesNotSuppressFallback(t *testing.T) {
	store := newMemStore()
	boom := resilience.NewPermanentError(errors.New("places: forbidden"), 403)
	tier := placesTier(fakeResponse{err: boom})
	web := webTier(fakeResponse{candidates: []model.Candidate{
		{Name: "Desert Rose Motel", URL: "https://desertrosemotel.com", Rank: 0},
	}})
	o := buildOrch(store, tier, web)

	res, err := o.Resolve(context.Background(), testRecord)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeFound, res.Outcome)
	assert.Equal(t, model.SourceWebSearch, res.Source)
}

func TestResolve_RetriesTransientThenSucceeds(t *testing.T) {
	store := newMemStore()
	tier := placesTier(
		fakeResponse{err: resilience.NewTransientError(errors.New("503"), 503)},
		fakeResponse{candidates: []model.Candidate{{
			Name:    "Desert Rose Motel",
			Address: "123 Main Street",
			URL:     "https://desertrosemotel.com",
		}}},
	)
	o := buildOrch(store, tier)

	res, err := o.Resolve(context.Background(), testRecord)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeFound, res.Outcome)
	assert.Equal(t, 2, tier.callCount())
}

func TestResolve_AllTiersFailRecordsError(t *testing.T) {
	store := newMemStore()
	tier := placesTier(
		fakeResponse{err: resilience.NewTransientError(errors.New("503"), 503)},
		fakeResponse{err: resilience.NewTransientError(errors.New("503"), 503)},
		fakeResponse{err: resilience.NewTransientError(errors.New("503"), 503)},
	)
	web := webTier(fakeResponse{err: resilience.NewPermanentError(errors.New("401"), 401)})
	o := buildOrch(store, tier, web)

	res, err := o.Resolve(context.Background(), testRecord)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeError, res.Outcome)
	assert.Contains(t, res.Error, "places_api")
	assert.Contains(t, res.Error, "serpapi")
	assert.Equal(t, 3, tier.callCount(), "transient errors are retried to exhaustion")
	assert.Equal(t, 1, web.callCount(), "permanent errors are not retried")

	entry, err := store.Get(context.Background(), res.Fingerprint)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, model.OutcomeError, entry.Outcome)
}

func TestResolve_ConfidentPlaceWithoutWebsiteEnrichesNotFound(t *testing.T) {
	store := newMemStore()
	tier := placesTier(fakeResponse{candidates: []model.Candidate{{
		Name:    "Desert Rose Motel",
		Address: "123 Main Street",
		PlaceID: "place-9",
		MapsURL: "https://maps.example/9",
		Rating:  3.9,
		Reviews: 40,
	}}})
	web := webTier()
	o := buildOrch(store, tier, web)

	res, err := o.Resolve(context.Background(), testRecord)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNotFound, res.Outcome)
	assert.Empty(t, res.Website)
	assert.Equal(t, "place-9", res.PlaceID)
	assert.Equal(t, "https://maps.example/9", res.MapsURL)
	assert.Equal(t, 3.9, res.Rating)
}

func TestResolve_ThrottleFeedsSharedBackoff(t *testing.T) {
	store := newMemStore()
	pool := ratelimit.NewPool(10000, 10000, ratelimit.BackoffConfig{
		Base:       time.Millisecond,
		Max:        4 * time.Millisecond,
		ResetAfter: 3,
	})
	tier := placesTier(
		fakeResponse{err: resilience.NewTransientError(errors.New("429"), 429)},
		fakeResponse{candidates: []model.Candidate{{
			Name:    "Desert Rose Motel",
			Address: "123 Main Street",
			URL:     "https://desertrosemotel.com",
		}}},
	)
	o := New(store, pool, []source.Resolver{tier}, WithRetryConfig(fastRetry()))

	_, err := o.Resolve(context.Background(), testRecord)
	require.NoError(t, err)
	assert.NotZero(t, pool.For(ratelimit.ClassPlaces).Delay(), "429 must raise the shared backoff")
}
