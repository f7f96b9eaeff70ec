// Package runner coordinates a batch run: it filters and deduplicates input
// rows, resolves distinct fingerprints on a bounded worker pool, fans results
// out to duplicate rows, and writes output in the original row order.
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TalkingHeadsJed/texasmotels/internal/cache"
	"github.com/TalkingHeadsJed/texasmotels/internal/domains"
	"github.com/TalkingHeadsJed/texasmotels/internal/model"
	"github.com/TalkingHeadsJed/texasmotels/internal/normalize"
	"github.com/TalkingHeadsJed/texasmotels/internal/recordio"
)

// Resolver resolves one record to a terminal outcome.
type Resolver interface {
	Resolve(ctx context.Context, rec model.Record) (*model.ResolutionResult, error)
}

// Config controls a batch run.
type Config struct {
	// Concurrency bounds the worker pool, independently of the rate budget.
	Concurrency int
	// Limit caps the number of rows processed after filtering. Zero means
	// no cap.
	Limit int
	// PermitFilter keeps only rows whose permit value is in the set.
	PermitFilter map[string]bool
	// IndependentOnly drops rows whose name matches a national chain brand.
	IndependentOnly bool
	// Resume logs how much of the input is already resolved before starting.
	Resume bool
	// InputPath is recorded with the run summary.
	InputPath string
}

// Runner executes batch runs against a shared resolver and cache store.
type Runner struct {
	resolver Resolver
	store    cache.Store
	cfg      Config
}

// New builds a runner.
func New(resolver Resolver, store cache.Store, cfg Config) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Runner{resolver: resolver, store: store, cfg: cfg}
}

// Run resolves every filtered row of the input and writes augmented rows to
// w in the input's original order. Cancellation stops dispatching new
// fingerprints; in-flight ones finish and persist. Every processed row ends
// with either a populated result or a populated error column.
func (r *Runner) Run(ctx context.Context, file *recordio.File, w *recordio.Writer) (*model.RunSummary, error) {
	started := time.Now().UTC()

	rows := r.filter(file.Records)

	// Rows sharing a fingerprint resolve once and fan out.
	order, byFP := groupByFingerprint(rows)

	if r.cfg.Resume {
		done, err := r.store.Fingerprints(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "runner: load resume set")
		}
		already := 0
		for _, fp := range order {
			if done[fp] {
				already++
			}
		}
		zap.L().Info("resuming run",
			zap.Int("fingerprints", len(order)),
			zap.Int("already_resolved", already),
		)
	}

	col := &collector{
		w:       w,
		rows:    rows,
		results: make([]*model.ResolutionResult, len(rows)),
	}

	g := &errgroup.Group{}
	g.SetLimit(r.cfg.Concurrency)

	var dispatched int
	for _, fp := range order {
		if ctx.Err() != nil {
			break
		}
		dispatched++

		positions := byFP[fp]
		rec := rows[positions[0]]
		g.Go(func() error {
			// The dispatch loop is the only cancellation point. The
			// resolution itself runs detached from the run signal so an
			// in-flight fingerprint can finish and persist its cache write.
			res, err := r.resolver.Resolve(context.WithoutCancel(ctx), rec)
			if err != nil {
				// A per-row failure never aborts the run; it becomes an
				// error outcome on the affected rows.
				zap.L().Error("resolution failed",
					zap.String("name", rec.Name),
					zap.Error(err),
				)
				res = &model.ResolutionResult{
					Fingerprint: normalize.Fingerprint(rec),
					Outcome:     model.OutcomeError,
					Source:      model.SourceNone,
					Error:       err.Error(),
				}
			}
			return col.deliver(positions, res)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := col.drain(ctx); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}

	summary := col.summarize(order, byFP)
	summary.ID = uuid.NewString()
	summary.InputPath = r.cfg.InputPath
	summary.StartedAt = started
	summary.CompletedAt = time.Now().UTC()

	if err := r.store.RecordRun(context.WithoutCancel(ctx), *summary); err != nil {
		zap.L().Warn("recording run summary failed", zap.Error(err))
	}

	zap.L().Info("run complete",
		zap.String("run_id", summary.ID),
		zap.Int("rows", summary.Total),
		zap.Int("fingerprints", dispatched),
		zap.Int("resolved", summary.Resolved),
		zap.Int("cache_hits", summary.CacheHits),
		zap.Int("errors", summary.Errors),
	)
	return summary, nil
}

func (r *Runner) filter(records []model.Record) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, rec := range records {
		if len(r.cfg.PermitFilter) > 0 && !r.cfg.PermitFilter[rec.Permit] {
			continue
		}
		if r.cfg.IndependentOnly && domains.IsNationalChain(rec.Name) {
			continue
		}
		out = append(out, rec)
		if r.cfg.Limit > 0 && len(out) >= r.cfg.Limit {
			break
		}
	}
	return out
}

// groupByFingerprint returns fingerprints in first-occurrence order and the
// filtered-row positions sharing each one.
func groupByFingerprint(rows []model.Record) ([]string, map[string][]int) {
	order := make([]string, 0, len(rows))
	byFP := make(map[string][]int, len(rows))
	for i, rec := range rows {
		fp := normalize.Fingerprint(rec)
		if _, seen := byFP[fp]; !seen {
			order = append(order, fp)
		}
		byFP[fp] = append(byFP[fp], i)
	}
	return order, byFP
}

// collector re-associates asynchronous results with input order. Rows are
// written as soon as every earlier row has a result.
type collector struct {
	mu      sync.Mutex
	w       *recordio.Writer
	rows    []model.Record
	results []*model.ResolutionResult
	next    int
}

func (c *collector) deliver(positions []int, res *model.ResolutionResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range positions {
		c.results[p] = res
	}
	return c.advance()
}

// drain writes cancellation placeholders for rows that were never
// dispatched, so a cancelled run still accounts for every row.
func (c *collector) drain(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := c.next; i < len(c.results); i++ {
		if c.results[i] == nil {
			c.results[i] = &model.ResolutionResult{
				Fingerprint: normalize.Fingerprint(c.rows[i]),
				Outcome:     model.OutcomeError,
				Source:      model.SourceNone,
				Error:       "run cancelled before resolution",
			}
		}
	}
	return c.advance()
}

func (c *collector) advance() error {
	for c.next < len(c.results) && c.results[c.next] != nil {
		if err := c.w.Write(c.rows[c.next], c.results[c.next]); err != nil {
			return err
		}
		c.next++
	}
	return nil
}

func (c *collector) summarize(order []string, byFP map[string][]int) *model.RunSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &model.RunSummary{Total: len(c.rows)}
	for _, fp := range order {
		res := c.results[byFP[fp][0]]
		if res == nil {
			continue
		}
		if res.FromCache {
			s.CacheHits++
		}
		switch res.Outcome {
		case model.OutcomeFound:
			s.Resolved++
		case model.OutcomeError:
			s.Errors++
		}
	}
	return s
}
