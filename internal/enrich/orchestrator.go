// Package enrich decides which enrichment fields an entity is missing,
// fetches them from their sources under quota and rate limits, and writes
// the results to the cache and the durable store.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/risk-enrichment/internal/cache"
	"github.com/sells-group/risk-enrichment/internal/model"
	"github.com/sells-group/risk-enrichment/internal/source"
	"github.com/sells-group/risk-enrichment/internal/store"
)

// Quota gates metered sources.
type Quota interface {
	Available(ctx context.Context, source string) bool
	RecordSuccess(ctx context.Context, source string) error
}

// Limiter admits calls to a source. release must be called once the call ends.
type Limiter interface {
	Acquire(ctx context.Context, source string) (release func(), err error)
}

// Adapters resolves the adapter for a field.
type Adapters interface {
	Get(f model.Field) (source.Adapter, bool)
}

// Config tunes an Orchestrator.
type Config struct {
	// MaxParallel bounds concurrent adapter calls within one pass.
	MaxParallel int
	// AdmissionTimeout bounds the wait for a rate limiter slot. A field
	// that cannot be admitted in time is skipped for the pass.
	AdmissionTimeout time.Duration
	// CallTimeout is the per-call timeout for sources without their own.
	CallTimeout time.Duration
	// SourceTimeouts overrides CallTimeout per source.
	SourceTimeouts map[string]time.Duration
	// Workers and QueueSize size the background queue used by Trigger.
	Workers   int
	QueueSize int
}

func (c Config) withDefaults() Config {
	if c.MaxParallel <= 0 {
		c.MaxParallel = 16
	}
	if c.AdmissionTimeout <= 0 {
		c.AdmissionTimeout = 5 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 15 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	return c
}

func (c Config) timeout(src string) time.Duration {
	if d, ok := c.SourceTimeouts[src]; ok && d > 0 {
		return d
	}
	return c.CallTimeout
}

// Request identifies the entity to enrich. Non-empty Base attributes take
// precedence over the stored base record.
type Request struct {
	EntityID string           `json:"entity_id"`
	Type     model.EntityType `json:"entity_type,omitempty"`
	Base     model.Attributes `json:"base"`
}

// Orchestrator runs enrichment passes.
type Orchestrator struct {
	store    store.Store
	cache    *cache.Safe
	adapters Adapters
	quota    Quota
	limiter  Limiter
	cfg      Config
	queue    *Queue
}

// New creates an Orchestrator and starts its background queue.
func New(st store.Store, c *cache.Safe, adapters Adapters, q Quota, l Limiter, cfg Config) *Orchestrator {
	cfg = cfg.withDefaults()
	return &Orchestrator{
		store:    st,
		cache:    c,
		adapters: adapters,
		quota:    q,
		limiter:  l,
		cfg:      cfg,
		queue:    NewQueue(cfg.Workers, cfg.QueueSize),
	}
}

// Trigger schedules a pass for req and returns without waiting for it.
func (o *Orchestrator) Trigger(req Request) error {
	if req.EntityID == "" {
		return eris.New("enrich: entity id is required")
	}
	return o.queue.Submit(func(ctx context.Context) {
		o.Run(ctx, req)
	})
}

// Drain waits for every triggered pass to finish.
func (o *Orchestrator) Drain() {
	o.queue.Drain()
}

// Close stops accepting triggers and waits for queued passes.
func (o *Orchestrator) Close(ctx context.Context) error {
	return o.queue.Close(ctx)
}

// Run performs one synchronous pass. It never fails: problems are logged
// and reported in the Outcome.
func (o *Orchestrator) Run(ctx context.Context, req Request) *Outcome {
	start := time.Now()
	out := newOutcome(req.EntityID)
	log := zap.L().With(zap.String("entity_id", req.EntityID))

	defer func() {
		passDuration.WithLabelValues(out.State.String()).Observe(time.Since(start).Seconds())
	}()

	ent, err := o.store.ReadBase(ctx, req.EntityID)
	if err != nil {
		out.abort(err)
		if errors.Is(err, store.ErrNotFound) {
			log.Info("enrich: entity not found, pass aborted")
		} else {
			log.Warn("enrich: read base failed, pass aborted", zap.Error(err))
		}
		return out
	}
	out.Existing = ent.Enrichment.Clone()

	subj := subjectFor(ent, req)
	out.State = StateGapAnalysis
	missing := o.gaps(ctx, subj, ent.Enrichment, out)
	if len(missing) == 0 {
		log.Debug("enrich: nothing missing")
		return out
	}

	out.State = StateDispatched
	o.dispatch(ctx, subj, missing, out)

	out.State = StateMerged
	o.persist(ctx, req.EntityID, out)
	out.State = StatePersisted

	log.Info("enrich: pass complete",
		zap.Int("fetched", len(out.Fields)),
		zap.Int("cached", len(out.Cached)),
		zap.Int("skipped", len(out.Skipped)),
		zap.Int("failed", len(out.Failed)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out
}

func subjectFor(ent *model.Entity, req Request) source.Subject {
	typ := ent.Type
	if req.Type.Valid() {
		typ = req.Type
	}
	return source.Subject{
		EntityID:   ent.ID,
		Type:       typ,
		Attributes: overlay(ent.Base, req.Base),
	}
}

// overlay returns base with every non-empty attribute of top applied.
func overlay(base, top model.Attributes) model.Attributes {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&base.Name, top.Name)
	set(&base.FirstName, top.FirstName)
	set(&base.LastName, top.LastName)
	set(&base.LegalName, top.LegalName)
	set(&base.Email, top.Email)
	set(&base.Phone, top.Phone)
	set(&base.Address, top.Address)
	set(&base.City, top.City)
	set(&base.State, top.State)
	set(&base.Zip, top.Zip)
	set(&base.DOB, top.DOB)
	return base
}

// gaps returns the fields that need a fetch this pass. Fields answered by
// the stored record or the cache are recorded on out; fields that cannot
// be fetched are marked skipped.
func (o *Orchestrator) gaps(ctx context.Context, subj source.Subject, stored model.Record, out *Outcome) []model.Field {
	var missing []model.Field
	for _, f := range model.FieldsFor(subj.Type) {
		p, _ := model.PolicyFor(f)
		if p.Present(stored[f]) {
			continue
		}
		if raw, ok := o.cache.Get(ctx, cache.Key(subj.EntityID, f)); ok && p.Present(raw) {
			out.Cached[f] = json.RawMessage(raw)
			cacheHits.WithLabelValues(string(f)).Inc()
			continue
		}
		if p.Durable {
			n, err := o.store.CountExisting(ctx, subj.EntityID, f)
			if err != nil {
				zap.L().Warn("enrich: existing-record check failed",
					zap.String("entity_id", subj.EntityID),
					zap.String("field", string(f)),
					zap.Error(err),
				)
				out.skip(f, SkipCheckFailed)
				continue
			}
			if n > 0 {
				out.skip(f, SkipExists)
				continue
			}
		}
		if _, ok := o.adapters.Get(f); !ok {
			out.skip(f, SkipNoAdapter)
			continue
		}
		missing = append(missing, f)
	}
	return missing
}

// dispatch fetches missing fields. Fields whose adapter is not yet eligible
// get a second wave when the first wave produced an email address.
func (o *Orchestrator) dispatch(ctx context.Context, subj source.Subject, missing []model.Field, out *Outcome) {
	if raw, ok := out.value(model.FieldEmail); ok && subj.EmailAddress() == "" {
		subj.Email = decodeString(raw)
	}

	pending := missing
	for wave := 0; len(pending) > 0; wave++ {
		var ready, deferred []model.Field
		for _, f := range pending {
			a, _ := o.adapters.Get(f)
			if a.Eligible(subj) {
				ready = append(ready, f)
			} else {
				deferred = append(deferred, f)
			}
		}

		o.fetchAll(ctx, subj, ready, out)

		email, gained := out.Fields[model.FieldEmail]
		if wave > 0 || !gained || subj.EmailAddress() != "" {
			for _, f := range deferred {
				out.skip(f, SkipIneligible)
			}
			return
		}
		subj.Email = decodeString(email)
		pending = deferred
	}
}

func decodeString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// fetchAll runs one adapter per field, bounded by MaxParallel, and waits
// for all of them. Tasks never return errors so one failing field cannot
// cancel the others.
func (o *Orchestrator) fetchAll(ctx context.Context, subj source.Subject, fields []model.Field, out *Outcome) {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(o.cfg.MaxParallel)
	for _, f := range fields {
		a, _ := o.adapters.Get(f)
		g.Go(func() error {
			res := o.fetchOne(ctx, subj, a)
			mu.Lock()
			defer mu.Unlock()
			res.apply(f, out)
			return nil
		})
	}
	_ = g.Wait()
}
