// Package source defines enrichment adapters: one per field, each wrapping a
// single provider call or bulk-file scan and normalizing its output.
package source

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/sells-group/risk-enrichment/internal/model"
)

// Subject is what an adapter knows about the entity it enriches.
type Subject struct {
	EntityID string
	Type     model.EntityType
	model.Attributes
}

// PersonName returns the subject's name split into first and last parts.
func (s Subject) PersonName() Name {
	first := strings.TrimSpace(s.FirstName)
	last := strings.TrimSpace(s.LastName)
	if last != "" {
		return Name{First: first, Last: last}
	}
	return ParseName(s.DisplayName())
}

// EmailAddress returns the lowercased email when it looks valid.
func (s Subject) EmailAddress() string {
	e := strings.ToLower(strings.TrimSpace(s.Email))
	at := strings.LastIndex(e, "@")
	if at <= 0 || at == len(e)-1 {
		return ""
	}
	return e
}

// Result is an adapter outcome. A nil Value means no data.
type Result struct {
	Value any
	// Billable is set when the provider answered and the call counts
	// against the source's quota.
	Billable bool
	// Err records why no data was produced, for logging.
	Err error
}

// Found is a billable result carrying v.
func Found(v any) Result { return Result{Value: v, Billable: true} }

// Scanned is data read from a bulk file. Local scans are never billed.
func Scanned(v any) Result { return Result{Value: v} }

// NoData is an answered call with nothing to report.
func NoData(billable bool) Result { return Result{Billable: billable} }

// Failed is a provider failure. It carries no data and is not billed.
func Failed(err error) Result { return Result{Err: err} }

// HasData reports whether the result carries a value.
func (r Result) HasData() bool { return r.Value != nil }

// Adapter produces one enrichment field from one source.
type Adapter interface {
	Field() model.Field
	Source() string
	// Eligible reports whether the subject has the inputs Fetch needs.
	Eligible(s Subject) bool
	// Fetch calls the provider. Failures come back as Failed or NoData,
	// never as a panic.
	Fetch(ctx context.Context, s Subject) Result
}

// Registry maps fields to their adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[model.Field]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[model.Field]Adapter)}
}

// Register adds a, replacing any adapter for the same field.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Field()] = a
}

// Get returns the adapter for f.
func (r *Registry) Get(f model.Field) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[f]
	return a, ok
}

// Fields returns the registered fields, sorted.
func (r *Registry) Fields() []model.Field {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Field, 0, len(r.adapters))
	for f := range r.adapters {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type base struct {
	field  model.Field
	source string
}

func (b base) Field() model.Field { return b.field }
func (b base) Source() string     { return b.source }
