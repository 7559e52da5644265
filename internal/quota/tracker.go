// Package quota tracks monthly usage of metered data providers.
package quota

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Store persists per-source counters keyed by billing period.
type Store interface {
	Usage(ctx context.Context, source, period string) (int, error)
	Increment(ctx context.Context, source, period string) error
}

// Usage is a point-in-time view of one source's consumption.
type Usage struct {
	Source    string `json:"source"`
	Period    string `json:"period"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

// Tracker enforces monthly limits per source. Sources without a positive
// limit are unmetered and never touch the store.
type Tracker struct {
	store  Store
	limits map[string]int
	now    func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithNow sets the clock used to derive the billing period.
func WithNow(fn func() time.Time) Option {
	return func(t *Tracker) {
		t.now = fn
	}
}

// NewTracker creates a Tracker over store with the given monthly limits.
func NewTracker(store Store, limits map[string]int, opts ...Option) *Tracker {
	t := &Tracker{
		store:  store,
		limits: make(map[string]int, len(limits)),
		now:    time.Now,
	}
	for src, n := range limits {
		if n > 0 {
			t.limits[src] = n
		}
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Period returns the billing period key (UTC calendar month) for ts.
func Period(ts time.Time) string {
	return ts.UTC().Format("2006-01")
}

// Limit returns the monthly limit for source and whether it is metered.
func (t *Tracker) Limit(source string) (int, bool) {
	n, ok := t.limits[source]
	return n, ok
}

// Usage returns successful calls recorded for source in the current period.
// Unmetered sources always report zero.
func (t *Tracker) Usage(ctx context.Context, source string) (int, error) {
	if _, ok := t.limits[source]; !ok {
		return 0, nil
	}
	n, err := t.store.Usage(ctx, source, Period(t.now()))
	if err != nil {
		return 0, eris.Wrapf(err, "quota: usage %s", source)
	}
	return n, nil
}

// Available reports whether source may be called. A failed usage read is
// treated as exhausted.
func (t *Tracker) Available(ctx context.Context, source string) bool {
	limit, ok := t.limits[source]
	if !ok {
		return true
	}
	used, err := t.Usage(ctx, source)
	if err != nil {
		zap.L().Warn("quota: usage read failed, treating source as exhausted",
			zap.String("source", source),
			zap.Error(err),
		)
		return false
	}
	return used < limit
}

// RecordSuccess counts one successful call against source.
func (t *Tracker) RecordSuccess(ctx context.Context, source string) error {
	if _, ok := t.limits[source]; !ok {
		return nil
	}
	if err := t.store.Increment(ctx, source, Period(t.now())); err != nil {
		return eris.Wrapf(err, "quota: record %s", source)
	}
	return nil
}

// Snapshot reports usage for every metered source, sorted by name.
func (t *Tracker) Snapshot(ctx context.Context) ([]Usage, error) {
	period := Period(t.now())
	sources := make([]string, 0, len(t.limits))
	for src := range t.limits {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	out := make([]Usage, 0, len(sources))
	for _, src := range sources {
		used, err := t.store.Usage(ctx, src, period)
		if err != nil {
			return nil, eris.Wrapf(err, "quota: snapshot %s", src)
		}
		limit := t.limits[src]
		out = append(out, Usage{
			Source:    src,
			Period:    period,
			Used:      used,
			Limit:     limit,
			Remaining: max(limit-used, 0),
		})
	}
	return out, nil
}
