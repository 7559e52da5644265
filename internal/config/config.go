package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Quota      QuotaConfig      `yaml:"quota" mapstructure:"quota"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Providers  ProvidersConfig  `yaml:"providers" mapstructure:"providers"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// RedisConfig locates the shared Redis server. An empty URL disables it.
type RedisConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// CacheConfig selects the result cache backend.
type CacheConfig struct {
	Backend   string `yaml:"backend" mapstructure:"backend"`
	TimeoutMs int    `yaml:"timeout_ms" mapstructure:"timeout_ms"`
}

// Timeout returns the per-operation cache timeout.
func (c CacheConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// QuotaConfig selects where monthly usage counters live.
type QuotaConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"`
}

// EnrichConfig tunes the orchestrator.
type EnrichConfig struct {
	// SourcesFile overrides the built-in source catalog.
	SourcesFile          string            `yaml:"sources_file" mapstructure:"sources_file"`
	MaxParallel          int               `yaml:"max_parallel" mapstructure:"max_parallel"`
	Workers              int               `yaml:"workers" mapstructure:"workers"`
	QueueSize            int               `yaml:"queue_size" mapstructure:"queue_size"`
	AdmissionTimeoutSecs int               `yaml:"admission_timeout_secs" mapstructure:"admission_timeout_secs"`
	CallTimeoutSecs      int               `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	BulkTTLHours         int               `yaml:"bulk_ttl_hours" mapstructure:"bulk_ttl_hours"`
	LicenseFiles         map[string]string `yaml:"license_files" mapstructure:"license_files"`
}

// ProvidersConfig holds provider credentials.
type ProvidersConfig struct {
	UserAgent          string `yaml:"user_agent" mapstructure:"user_agent"`
	ALeadsKey          string `yaml:"a_leads_key" mapstructure:"a_leads_key"`
	DataAxleKey        string `yaml:"data_axle_key" mapstructure:"data_axle_key"`
	HIBPKey            string `yaml:"hibp_key" mapstructure:"hibp_key"`
	WhoisXMLKey        string `yaml:"whoisxml_key" mapstructure:"whoisxml_key"`
	OpenDataNationKey  string `yaml:"opendatanation_key" mapstructure:"opendatanation_key"`
	CourtListenerToken string `yaml:"courtlistener_token" mapstructure:"courtlistener_token"`
	SocrataToken       string `yaml:"socrata_token" mapstructure:"socrata_token"`
}

// ResilienceConfig configures retries and circuit breakers for provider calls.
type ResilienceConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CoolOffSecs      int `yaml:"cool_off_secs" mapstructure:"cool_off_secs"`
}

// ServerConfig configures the trigger server.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
	AllowedOrigins      []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("cache.backend", "redis")
	v.SetDefault("cache.timeout_ms", 500)
	v.SetDefault("quota.backend", "postgres")
	v.SetDefault("enrich.sources_file", "")
	v.SetDefault("enrich.max_parallel", 16)
	v.SetDefault("enrich.workers", 4)
	v.SetDefault("enrich.queue_size", 256)
	v.SetDefault("enrich.admission_timeout_secs", 5)
	v.SetDefault("enrich.call_timeout_secs", 15)
	v.SetDefault("enrich.bulk_ttl_hours", 24)
	v.SetDefault("providers.user_agent", "risk-enrichment/1.0 (ops@sellsadvisors.com)")
	for _, k := range []string{
		"a_leads_key", "data_axle_key", "hibp_key", "whoisxml_key",
		"opendatanation_key", "courtlistener_token", "socrata_token",
	} {
		v.SetDefault("providers."+k, "")
	}
	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_backoff_ms", 500)
	v.SetDefault("resilience.max_backoff_ms", 5000)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.cool_off_secs", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout_secs", 30)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		return eris.Errorf("config: store.driver must be postgres or sqlite, got %q", c.Store.Driver)
	}
	if c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required")
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return eris.New("config: cache.backend redis requires redis.url")
		}
	default:
		return eris.Errorf("config: cache.backend must be redis or memory, got %q", c.Cache.Backend)
	}

	switch c.Quota.Backend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return eris.New("config: quota.backend redis requires redis.url")
		}
	case "postgres":
		if c.Store.Driver != "postgres" {
			return eris.New("config: quota.backend postgres requires store.driver postgres")
		}
	default:
		return eris.Errorf("config: quota.backend must be postgres, redis or memory, got %q", c.Quota.Backend)
	}

	if c.Enrich.MaxParallel <= 0 {
		return eris.New("config: enrich.max_parallel must be positive")
	}
	if c.Enrich.Workers <= 0 || c.Enrich.QueueSize <= 0 {
		return eris.New("config: enrich.workers and enrich.queue_size must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
