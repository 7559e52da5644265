package enrich

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/risk-enrichment/internal/cache"
	"github.com/sells-group/risk-enrichment/internal/model"
	"github.com/sells-group/risk-enrichment/internal/source"
)

type fetchOutcome string

const (
	outcomeData   fetchOutcome = "data"
	outcomeEmpty  fetchOutcome = "empty"
	outcomeFailed fetchOutcome = "failed"
	outcomePanic  fetchOutcome = "panic"
)

type fieldResult struct {
	raw     json.RawMessage
	skip    SkipReason
	outcome fetchOutcome
}

func (r fieldResult) apply(f model.Field, out *Outcome) {
	if r.skip != "" {
		out.skip(f, r.skip)
		return
	}
	adapterCalls.WithLabelValues(string(f), string(r.outcome)).Inc()
	switch r.outcome {
	case outcomeData:
		out.Fields[f] = r.raw
	case outcomeEmpty:
		out.Empty = append(out.Empty, f)
		sortFields(out.Empty)
	default:
		out.Failed = append(out.Failed, f)
		sortFields(out.Failed)
	}
}

// fetchOne gates and calls one adapter.
func (o *Orchestrator) fetchOne(ctx context.Context, subj source.Subject, a source.Adapter) fieldResult {
	f, src := a.Field(), a.Source()
	log := zap.L().With(
		zap.String("entity_id", subj.EntityID),
		zap.String("field", string(f)),
		zap.String("source", src),
	)

	if !o.quota.Available(ctx, src) {
		log.Debug("enrich: quota exhausted, field skipped")
		return fieldResult{skip: SkipQuota}
	}

	admitCtx, cancel := context.WithTimeout(ctx, o.cfg.AdmissionTimeout)
	release, err := o.limiter.Acquire(admitCtx, src)
	cancel()
	if err != nil {
		log.Debug("enrich: not admitted by rate limiter, field skipped", zap.Error(err))
		return fieldResult{skip: SkipRateLimited}
	}
	defer release()

	// Usage may have moved while this call waited for a slot.
	if !o.quota.Available(ctx, src) {
		log.Debug("enrich: quota exhausted while waiting for admission, field skipped")
		return fieldResult{skip: SkipQuota}
	}

	callCtx, cancelCall := context.WithTimeout(ctx, o.cfg.timeout(src))
	defer cancelCall()
	res, panicked := safeFetch(callCtx, a, subj)

	if res.Billable {
		if err := o.quota.RecordSuccess(ctx, src); err != nil {
			log.Warn("enrich: record quota usage failed", zap.Error(err))
		}
	}
	if panicked {
		log.Error("enrich: adapter panicked", zap.Error(res.Err))
		return fieldResult{outcome: outcomePanic}
	}
	if res.Err != nil {
		log.Warn("enrich: source call failed", zap.Error(res.Err))
		return fieldResult{outcome: outcomeFailed}
	}
	if !res.HasData() {
		return fieldResult{outcome: outcomeEmpty}
	}

	raw, err := json.Marshal(res.Value)
	if err != nil {
		log.Warn("enrich: encode result failed", zap.Error(err))
		return fieldResult{outcome: outcomeFailed}
	}
	if p, _ := model.PolicyFor(f); !p.Present(raw) {
		return fieldResult{outcome: outcomeEmpty}
	}
	return fieldResult{raw: raw, outcome: outcomeData}
}

// safeFetch converts an adapter panic into a failed result.
func safeFetch(ctx context.Context, a source.Adapter, subj source.Subject) (res source.Result, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			res = source.Failed(eris.Errorf("enrich: %s adapter panic: %v", a.Field(), r))
			panicked = true
		}
	}()
	return a.Fetch(ctx, subj), false
}

// persist writes fetched fields to the cache and durable values to the
// store. Failures are logged and do not affect other fields.
func (o *Orchestrator) persist(ctx context.Context, entityID string, out *Outcome) {
	for f, raw := range out.Fields {
		p, _ := model.PolicyFor(f)
		o.cache.Set(ctx, cache.Key(entityID, f), raw, p.TTL)
		if !p.Persists(raw) {
			continue
		}
		if err := o.store.UpsertField(ctx, entityID, f, raw); err != nil {
			zap.L().Warn("enrich: persist field failed",
				zap.String("entity_id", entityID),
				zap.String("field", string(f)),
				zap.Error(err),
			)
		}
	}
}
