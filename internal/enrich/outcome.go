package enrich

import (
	"encoding/json"
	"sort"

	"github.com/sells-group/risk-enrichment/internal/model"
)

// State is the furthest point a pass reached.
type State int

const (
	StateReceived State = iota
	StateGapAnalysis
	StateDispatched
	StateMerged
	StatePersisted
	// StateAborted ends a pass whose entity could not be read.
	StateAborted
)

var stateNames = [...]string{"received", "gap_analysis", "dispatched", "merged", "persisted", "aborted"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SkipReason explains why a missing field was not fetched.
type SkipReason string

const (
	SkipIneligible  SkipReason = "ineligible"
	SkipExists      SkipReason = "exists"
	SkipQuota       SkipReason = "quota"
	SkipRateLimited SkipReason = "rate_limited"
	SkipNoAdapter   SkipReason = "no_adapter"
	SkipCheckFailed SkipReason = "check_failed"
)

// Outcome reports what one pass did.
type Outcome struct {
	EntityID string `json:"entity_id"`
	State    State  `json:"state"`
	// Existing holds the stored values read before the pass.
	Existing model.Record `json:"existing,omitempty"`
	// Cached holds fields answered by the result cache.
	Cached model.Record `json:"cached,omitempty"`
	// Fields holds values fetched from sources in this pass.
	Fields  model.Record               `json:"fields,omitempty"`
	Skipped map[model.Field]SkipReason `json:"skipped,omitempty"`
	// Failed lists fields whose source errored; Empty lists fields whose
	// source answered without data.
	Failed []model.Field `json:"failed,omitempty"`
	Empty  []model.Field `json:"empty,omitempty"`

	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

func newOutcome(id string) *Outcome {
	return &Outcome{
		EntityID: id,
		State:    StateReceived,
		Cached:   make(model.Record),
		Fields:   make(model.Record),
		Skipped:  make(map[model.Field]SkipReason),
	}
}

func (o *Outcome) abort(err error) {
	o.State = StateAborted
	o.Err = err
	o.Error = err.Error()
}

func (o *Outcome) skip(f model.Field, r SkipReason) {
	o.Skipped[f] = r
	fieldSkips.WithLabelValues(string(f), string(r)).Inc()
}

// value returns the best known value for f from any part of the outcome.
func (o *Outcome) value(f model.Field) (json.RawMessage, bool) {
	for _, r := range []model.Record{o.Fields, o.Cached, o.Existing} {
		if v, ok := r[f]; ok {
			return v, true
		}
	}
	return nil, false
}

// Record merges stored, cached and fetched values. Fetched values win.
func (o *Outcome) Record() model.Record {
	out := make(model.Record, len(o.Existing)+len(o.Cached)+len(o.Fields))
	for _, r := range []model.Record{o.Existing, o.Cached, o.Fields} {
		for f, v := range r {
			out[f] = v
		}
	}
	return out
}

func sortFields(fs []model.Field) {
	sort.Slice(fs, func(i, j int) bool { return fs[i] < fs[j] })
}
