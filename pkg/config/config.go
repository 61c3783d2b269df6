package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-pkgz/lgr"
	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema -o schema.json

// Config holds the application configuration
type Config struct {
	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:data/news.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Sources  string         `yaml:"sources" json:"sources" jsonschema:"default=config/data/sources.yaml,description=Path to the source catalogue"`
	LLM      LLMConfig      `yaml:"llm" json:"llm" jsonschema:"description=LLM configuration for importance and credibility scoring"`
	Scoring  ScoringConfig  `yaml:"scoring" json:"scoring" jsonschema:"description=Admission scoring settings"`
	Cache    CacheConfig    `yaml:"cache" json:"cache" jsonschema:"description=Feed cache settings"`
	Dedup    DedupConfig    `yaml:"dedup" json:"dedup" jsonschema:"description=Near-duplicate detection settings"`
	Progress ProgressConfig `yaml:"progress" json:"progress" jsonschema:"description=Shared progress file"`
	Events   EventsConfig   `yaml:"events" json:"events" jsonschema:"description=Event collection settings"`
	LogDir   string         `yaml:"log_dir" json:"log_dir" jsonschema:"default=logs,description=Directory for source maintenance logs"`
}

// LLMConfig holds settings of the OpenAI-compatible scorer
type LLMConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Use LLM for scoring instead of heuristics"`
	Endpoint     string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=OpenAI-compatible API endpoint"`
	APIKey       string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model        string        `yaml:"model" json:"model" jsonschema:"default=gpt-4o-mini,description=Model name"`
	Temperature  float64       `yaml:"temperature" json:"temperature" jsonschema:"default=0.2,description=Temperature for response generation"`
	MaxTokens    int           `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=200,description=Maximum tokens in response"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Request timeout"`
	SystemPrompt string        `yaml:"system_prompt" json:"system_prompt" jsonschema:"description=System prompt override"`
}

// ScoringConfig holds admission thresholds
type ScoringConfig struct {
	MinImportance  float64       `yaml:"min_importance" json:"min_importance" jsonschema:"default=0.3,minimum=0,maximum=1,description=Items below this importance are dropped"`
	TrustedDomains []string      `yaml:"trusted_domains" json:"trusted_domains" jsonschema:"description=Domains with raised credibility for the heuristic scorer"`
	CacheSize      int           `yaml:"cache_size" json:"cache_size" jsonschema:"default=5000,description=Number of cached score verdicts"`
	CacheTTL       time.Duration `yaml:"cache_ttl" json:"cache_ttl" jsonschema:"default=24h,description=Score cache entry lifetime"`
}

// CacheConfig holds SmartCache settings
type CacheConfig struct {
	Dir       string        `yaml:"dir" json:"dir" jsonschema:"default=data/cache,description=Cache directory"`
	MaxSize   int64         `yaml:"max_size" json:"max_size" jsonschema:"default=1073741824,description=Cache size cap in bytes"`
	FreshFor  time.Duration `yaml:"fresh_for" json:"fresh_for" jsonschema:"default=6h,description=Freshness window for cached feeds"`
	RetainFor time.Duration `yaml:"retain_for" json:"retain_for" jsonschema:"default=168h,description=Absolute retention of cached bodies"`
}

// DedupConfig holds deduplicator memory bounds
type DedupConfig struct {
	MaxItems  int           `yaml:"max_items" json:"max_items" jsonschema:"default=20000,description=Maximum remembered items"`
	TTL       time.Duration `yaml:"ttl" json:"ttl" jsonschema:"default=72h,description=How long an admitted item is remembered"`
	SeedHours int           `yaml:"seed_hours" json:"seed_hours" jsonschema:"default=48,description=Seed index from news persisted in the last N hours"`
}

// ProgressConfig holds the progress file location
type ProgressConfig struct {
	Path string `yaml:"path" json:"path" jsonschema:"default=data/progress_state.json,description=Progress state file"`
}

// EventsConfig holds event collection settings
type EventsConfig struct {
	Enabled     bool            `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Collect events after news"`
	WindowDays  int             `yaml:"window_days" json:"window_days" jsonschema:"default=7,description=Collect events starting within this many days"`
	Concurrency int             `yaml:"concurrency" json:"concurrency" jsonschema:"default=4,description=Providers queried in parallel"`
	Providers   []EventProvider `yaml:"providers" json:"providers" jsonschema:"description=JSON event endpoints"`
}

// EventProvider is a JSON endpoint returning events, {start} and {end} in the url are replaced by dates
type EventProvider struct {
	Name      string  `yaml:"name" json:"name" jsonschema:"required,description=Provider name, also the default event source"`
	Category  string  `yaml:"category" json:"category" jsonschema:"required,description=Default event category"`
	URL       string  `yaml:"url" json:"url" jsonschema:"required,description=Endpoint url template"`
	PerMinute float64 `yaml:"per_minute" json:"per_minute" jsonschema:"description=Request rate limit, built-in provider limits apply when zero"`
}

// Default returns configuration with all defaults applied
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// schema validation is supplementary
		lgr.Printf("[WARN] schema validation failed: %v", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:data/news.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 3600
	}
	if cfg.Sources == "" {
		cfg.Sources = "config/data/sources.yaml"
	}

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.2
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 200
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 30 * time.Second
	}

	if cfg.Scoring.MinImportance == 0 {
		cfg.Scoring.MinImportance = 0.3
	}
	if cfg.Scoring.CacheSize == 0 {
		cfg.Scoring.CacheSize = 5000
	}
	if cfg.Scoring.CacheTTL == 0 {
		cfg.Scoring.CacheTTL = 24 * time.Hour
	}

	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = "data/cache"
	}
	if cfg.Cache.MaxSize == 0 {
		cfg.Cache.MaxSize = 1 << 30
	}
	if cfg.Cache.FreshFor == 0 {
		cfg.Cache.FreshFor = 6 * time.Hour
	}
	if cfg.Cache.RetainFor == 0 {
		cfg.Cache.RetainFor = 7 * 24 * time.Hour
	}

	if cfg.Dedup.MaxItems == 0 {
		cfg.Dedup.MaxItems = 20000
	}
	if cfg.Dedup.TTL == 0 {
		cfg.Dedup.TTL = 72 * time.Hour
	}
	if cfg.Dedup.SeedHours == 0 {
		cfg.Dedup.SeedHours = 48
	}

	if cfg.Progress.Path == "" {
		cfg.Progress.Path = "data/progress_state.json"
	}
	if cfg.Events.WindowDays == 0 {
		cfg.Events.WindowDays = 7
	}
	if cfg.Events.Concurrency == 0 {
		cfg.Events.Concurrency = 4
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "logs"
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.LLM.Enabled {
		if cfg.LLM.Endpoint == "" {
			return fmt.Errorf("llm.endpoint is required when llm is enabled")
		}
		if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
			return fmt.Errorf("llm.temperature must be between 0 and 2")
		}
	}
	if cfg.Scoring.MinImportance < 0 || cfg.Scoring.MinImportance > 1 {
		return fmt.Errorf("scoring.min_importance must be between 0 and 1")
	}
	if cfg.Cache.FreshFor > cfg.Cache.RetainFor {
		return fmt.Errorf("cache.fresh_for must not exceed cache.retain_for")
	}
	if cfg.Dedup.MaxItems < 1 {
		return fmt.Errorf("dedup.max_items must be at least 1")
	}
	for i, p := range cfg.Events.Providers {
		if p.Name == "" || p.URL == "" {
			return fmt.Errorf("events.providers[%d]: name and url are required", i)
		}
	}
	return nil
}

// GetLLMConfig returns LLM configuration
func (c *Config) GetLLMConfig() LLMConfig {
	return c.LLM
}

// GetCacheConfig returns feed cache configuration
func (c *Config) GetCacheConfig() CacheConfig {
	return c.Cache
}
