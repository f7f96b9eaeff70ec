// Package cache persists resolution outcomes keyed by fingerprint. The store
// is durable across runs and machines; deleting it simply forces full
// re-resolution.
package cache

import (
	"context"
	"sync"

	"github.com/TalkingHeadsJed/texasmotels/internal/model"
)

// Stats summarizes the store's contents.
type Stats struct {
	Total    int `json:"total"`
	Found    int `json:"found"`
	NotFound int `json:"not_found"`
	Errors   int `json:"errors"`
}

// Store is the persistence interface for resolution outcomes.
//
// Put follows first-Found-wins: an entry is inserted when absent and
// overwritten only when the existing outcome is Error. Reads are safe for
// concurrent use; Put callers must not race on the same fingerprint (wrap
// with Keyed for that guarantee).
type Store interface {
	// Get returns the entry for a fingerprint, or nil when absent.
	Get(ctx context.Context, fingerprint string) (*model.CacheEntry, error)
	// Put upserts an entry under the first-Found-wins policy.
	Put(ctx context.Context, entry model.CacheEntry) error
	// Exists reports whether any entry exists for the fingerprint.
	Exists(ctx context.Context, fingerprint string) (bool, error)
	// Fingerprints returns the set of fingerprints with a non-Error
	// outcome, used to pre-populate the resume skip-set.
	Fingerprints(ctx context.Context) (map[string]bool, error)
	// Invalidate removes a single entry so it re-resolves on demand.
	Invalidate(ctx context.Context, fingerprint string) error
	// Reset destroys all entries. Destructive; callers must confirm.
	Reset(ctx context.Context) error
	// Stats reports entry counts by outcome.
	Stats(ctx context.Context) (*Stats, error)
	// RecordRun persists batch-level run metadata.
	RecordRun(ctx context.Context, run model.RunSummary) error

	Migrate(ctx context.Context) error
	Close() error
}

// Keyed wraps a Store and serializes writes per fingerprint: a Put for
// fingerprint F never races another Put for F, while writes for distinct
// fingerprints proceed in parallel.
type Keyed struct {
	Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyed wraps a backend with per-fingerprint write serialization.
func NewKeyed(s Store) *Keyed {
	return &Keyed{Store: s, locks: make(map[string]*sync.Mutex)}
}

// Put serializes the write against other writes for the same fingerprint.
func (k *Keyed) Put(ctx context.Context, entry model.CacheEntry) error {
	lock := k.lockFor(entry.Fingerprint)
	lock.Lock()
	defer lock.Unlock()
	return k.Store.Put(ctx, entry)
}

func (k *Keyed) lockFor(fingerprint string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	lock, ok := k.locks[fingerprint]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[fingerprint] = lock
	}
	return lock
}
