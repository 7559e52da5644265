package enrich

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/risk-enrichment/internal/cache"
	"github.com/sells-group/risk-enrichment/internal/model"
	"github.com/sells-group/risk-enrichment/internal/quota"
	"github.com/sells-group/risk-enrichment/internal/ratelimit"
	"github.com/sells-group/risk-enrichment/internal/source"
	"github.com/sells-group/risk-enrichment/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeAdapter struct {
	field    model.Field
	src      string
	eligible func(source.Subject) bool
	fetch    func(context.Context, source.Subject) source.Result
	calls    atomic.Int32
	lastSubj atomic.Value
}

func (a *fakeAdapter) Field() model.Field { return a.field }
func (a *fakeAdapter) Source() string     { return a.src }

func (a *fakeAdapter) Eligible(s source.Subject) bool {
	if a.eligible == nil {
		return true
	}
	return a.eligible(s)
}

func (a *fakeAdapter) Fetch(ctx context.Context, s source.Subject) source.Result {
	a.calls.Add(1)
	a.lastSubj.Store(s)
	if a.fetch == nil {
		return source.Found(payloadFor(a.field))
	}
	return a.fetch(ctx, s)
}

func payloadFor(f model.Field) any {
	switch f {
	case model.FieldPhone:
		return "7135550100"
	case model.FieldEmail:
		return "jane@acme.com"
	case model.FieldBankruptcy:
		return model.BankruptcyRecord{Cases: []model.BankruptcyCase{}}
	case model.FieldBreachCount:
		return model.BreachSummary{Count: 0, Breaches: []model.Breach{}}
	case model.FieldEvictionCount:
		return model.EvictionSummary{Count: 0, Dates: []string{}}
	default:
		return []string{string(f) + "-1"}
	}
}

func never(source.Subject) bool { return false }

// memStore is an in-memory store.Store with injectable failures.
type memStore struct {
	mu        sync.Mutex
	entities  map[string]*model.Entity
	readErr   error
	countErr  error
	upsertErr error
	upserts   map[model.Field]int
}

func newMemStore() *memStore {
	return &memStore{entities: make(map[string]*model.Entity), upserts: make(map[model.Field]int)}
}

func (s *memStore) ReadBase(_ context.Context, id string) (*model.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	e, ok := s.entities[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *e
	cp.Enrichment = e.Enrichment.Clone()
	return &cp, nil
}

func (s *memStore) CreateEntity(_ context.Context, e model.Entity) (*model.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Enrichment == nil {
		e.Enrichment = make(model.Record)
	}
	s.entities[e.ID] = &e
	return &e, nil
}

func (s *memStore) UpsertField(_ context.Context, id string, f model.Field, v json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.entities[id].Enrichment[f] = v
	s.upserts[f]++
	return nil
}

func (s *memStore) CountExisting(_ context.Context, id string, f model.Field) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	if _, ok := s.entities[id].Enrichment[f]; ok {
		return 1, nil
	}
	return 0, nil
}

func (s *memStore) Migrate(context.Context) error { return nil }
func (s *memStore) Close() error                  { return nil }

func (s *memStore) field(id string, f model.Field) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entities[id].Enrichment[f]
	return v, ok
}

type harness struct {
	orch     *Orchestrator
	store    *memStore
	cache    *cache.Memory
	adapters map[model.Field]*fakeAdapter
	usage    *quota.MemoryStore
	tracker  *quota.Tracker

	mu  sync.Mutex
	now time.Time
}

type harnessOptions struct {
	limits  map[string]int
	cache   cache.Cache
	limiter Limiter
	cfg     Config
}

// newHarness wires an Orchestrator over fakes: one fake adapter per field,
// an in-memory store seeded with person p-1 and business b-1, and real
// quota and rate limiting.
func newHarness(t *testing.T, opts ...func(*harnessOptions)) *harness {
	t.Helper()
	o := harnessOptions{cfg: Config{MaxParallel: 4, AdmissionTimeout: time.Second, CallTimeout: time.Second}}
	for _, fn := range opts {
		fn(&o)
	}

	h := &harness{
		store:    newMemStore(),
		cache:    cache.NewMemory(time.Minute),
		adapters: make(map[model.Field]*fakeAdapter),
		usage:    quota.NewMemoryStore(),
		now:      time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
	}
	h.tracker = quota.NewTracker(h.usage, o.limits, quota.WithNow(h.clock))

	reg := source.NewRegistry()
	for _, f := range model.AllFields() {
		p, _ := model.PolicyFor(f)
		a := &fakeAdapter{field: f, src: p.Source}
		h.adapters[f] = a
		reg.Register(a)
	}

	ctx := context.Background()
	_, _ = h.store.CreateEntity(ctx, model.Entity{ID: "p-1", Type: model.EntityPerson, Base: model.Attributes{Name: "Jane Doe"}})
	_, _ = h.store.CreateEntity(ctx, model.Entity{ID: "b-1", Type: model.EntityBusiness, Base: model.Attributes{LegalName: "Acme LLC"}})

	var backend cache.Cache = h.cache
	if o.cache != nil {
		backend = o.cache
	}
	limiter := o.limiter
	if limiter == nil {
		limiter = ratelimit.NewRegistry(nil)
	}
	h.orch = New(h.store, cache.NewSafe(backend, 100*time.Millisecond), reg, h.tracker, limiter, o.cfg)
	t.Cleanup(func() { _ = h.orch.Close(context.Background()) })
	return h
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) setClock(ts time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = ts
}

func (h *harness) calls(f model.Field) int {
	return int(h.adapters[f].calls.Load())
}

func (h *harness) totalCalls() int {
	n := 0
	for _, a := range h.adapters {
		n += int(a.calls.Load())
	}
	return n
}

// nameOnly makes the four fields that need more than a name ineligible,
// leaving twelve for a person known only by name.
func (h *harness) nameOnly() {
	for _, f := range []model.Field{model.FieldBreachCount, model.FieldDomains, model.FieldSocialDeep, model.FieldBoat} {
		h.adapters[f].eligible = never
	}
}
