package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/risk-enrichment/internal/cache"
	"github.com/sells-group/risk-enrichment/internal/config"
	"github.com/sells-group/risk-enrichment/internal/db"
	"github.com/sells-group/risk-enrichment/internal/enrich"
	"github.com/sells-group/risk-enrichment/internal/fetcher"
	"github.com/sells-group/risk-enrichment/internal/quota"
	"github.com/sells-group/risk-enrichment/internal/ratelimit"
	"github.com/sells-group/risk-enrichment/internal/resilience"
	"github.com/sells-group/risk-enrichment/internal/source"
	"github.com/sells-group/risk-enrichment/internal/store"
)

// appEnv holds the wired services used by the serve, enrich and quota
// commands.
type appEnv struct {
	Store   store.Store
	Redis   *redis.Client // nil when redis.url is unset
	Catalog source.Catalog
	Tracker *quota.Tracker
	Cache   *cache.Safe
	Orch    *enrich.Orchestrator
}

// Close drains queued passes and releases connections.
func (e *appEnv) Close(ctx context.Context) {
	if e.Orch != nil {
		if err := e.Orch.Close(ctx); err != nil {
			zap.L().Warn("enrich queue did not drain", zap.Error(err))
		}
	}
	if e.Redis != nil {
		_ = e.Redis.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates config, opens the store and Redis, and builds the
// orchestrator. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	env := &appEnv{Store: st}

	if err := st.Migrate(ctx); err != nil {
		env.Close(ctx)
		return nil, eris.Wrap(err, "migrate store")
	}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			env.Close(ctx)
			return nil, eris.Wrap(err, "parse redis url")
		}
		env.Redis = redis.NewClient(opts)
	}

	catalog := source.DefaultCatalog()
	if cfg.Enrich.SourcesFile != "" {
		catalog, err = source.LoadCatalog(cfg.Enrich.SourcesFile)
		if err != nil {
			env.Close(ctx)
			return nil, err
		}
	}
	env.Catalog = catalog

	env.Tracker, err = initTracker(ctx, cfg.Quota, st, env.Redis, catalog)
	if err != nil {
		env.Close(ctx)
		return nil, err
	}

	callTimeout := time.Duration(cfg.Enrich.CallTimeoutSecs) * time.Second
	client := fetcher.New(fetcher.Options{
		UserAgent: cfg.Providers.UserAgent,
		Timeout:   callTimeout,
		Retry: resilience.FromRetrySettings(
			cfg.Resilience.MaxAttempts, cfg.Resilience.InitialBackoffMs, cfg.Resilience.MaxBackoffMs,
		),
		Breakers: resilience.NewBreakers(resilience.FromBreakerSettings(
			cfg.Resilience.FailureThreshold, cfg.Resilience.CoolOffSecs,
		)),
	})

	adapters := source.NewDefaultRegistry(source.Deps{
		HTTP:         client,
		Bulk:         fetcher.NewBulk(client, time.Duration(cfg.Enrich.BulkTTLHours)*time.Hour),
		Catalog:      catalog,
		Keys:         credentials(cfg.Providers),
		LicenseFiles: cfg.Enrich.LicenseFiles,
	})

	var backend cache.Cache
	if cfg.Cache.Backend == "redis" && env.Redis != nil {
		backend = cache.Open(ctx, env.Redis)
	} else {
		backend = cache.NewMemory(0)
	}

	timeouts := make(map[string]time.Duration)
	for _, name := range catalog.Names() {
		if d := catalog.Timeout(name, 0); d > 0 {
			timeouts[name] = d
		}
	}

	env.Cache = cache.NewSafe(backend, cfg.Cache.Timeout())
	env.Orch = enrich.New(st, env.Cache, adapters, env.Tracker,
		ratelimit.NewRegistry(catalog.RatePolicies()),
		enrich.Config{
			MaxParallel:      cfg.Enrich.MaxParallel,
			AdmissionTimeout: time.Duration(cfg.Enrich.AdmissionTimeoutSecs) * time.Second,
			CallTimeout:      callTimeout,
			SourceTimeouts:   timeouts,
			Workers:          cfg.Enrich.Workers,
			QueueSize:        cfg.Enrich.QueueSize,
		})

	zap.L().Info("enrichment environment ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("cache", cfg.Cache.Backend),
		zap.String("quota", cfg.Quota.Backend),
		zap.Int("fields", len(adapters.Fields())),
	)
	return env, nil
}

func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "postgres":
		st, err := store.OpenPostgres(ctx, sc.DatabaseURL, db.PoolConfig{MaxConns: sc.MaxConns, MinConns: sc.MinConns})
		if err != nil {
			return nil, eris.Wrap(err, "init postgres store")
		}
		return st, nil
	case "sqlite":
		st, err := store.NewSQLite(sc.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "init sqlite store")
		}
		return st, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

// initTracker builds the quota tracker over the configured counter store.
func initTracker(ctx context.Context, qc config.QuotaConfig, st store.Store, rdb *redis.Client, catalog source.Catalog) (*quota.Tracker, error) {
	var counters quota.Store
	switch qc.Backend {
	case "postgres":
		ps, ok := st.(*store.PostgresStore)
		if !ok {
			return nil, eris.New("quota: postgres backend requires the postgres store")
		}
		pq := quota.NewPostgresStore(ps.Pool())
		if err := pq.Migrate(ctx); err != nil {
			return nil, err
		}
		counters = pq
	case "redis":
		if rdb == nil {
			return nil, eris.New("quota: redis backend requires redis.url")
		}
		counters = quota.NewRedisStore(rdb)
	case "memory":
		counters = quota.NewMemoryStore()
	default:
		return nil, eris.Errorf("quota: unsupported backend %s", qc.Backend)
	}
	return quota.NewTracker(counters, catalog.Limits()), nil
}

func credentials(p config.ProvidersConfig) source.Credentials {
	return source.Credentials{
		ALeads:         p.ALeadsKey,
		DataAxle:       p.DataAxleKey,
		HIBP:           p.HIBPKey,
		WhoisXML:       p.WhoisXMLKey,
		OpenDataNation: p.OpenDataNationKey,
		CourtListener:  p.CourtListenerToken,
		SocrataToken:   p.SocrataToken,
	}
}
