// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	DB        DBConfig        `mapstructure:"db"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Watcher   WatcherConfig   `mapstructure:"watcher"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Publisher PublisherConfig `mapstructure:"publisher"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DBConfig controls access to the relational store.
type DBConfig struct {
	Provider        string `mapstructure:"provider"` // postgres | memory
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MigrateOnStart  bool   `mapstructure:"migrate_on_start"`
	ConnLifetimeMin int    `mapstructure:"conn_lifetime_minutes"`
}

// CrawlConfig selects and tunes the crawling collaborator.
type CrawlConfig struct {
	Provider       string         `mapstructure:"provider"` // firecrawl | local
	FirecrawlURL   string         `mapstructure:"firecrawl_url"`
	FirecrawlKey   string         `mapstructure:"firecrawl_key"`
	TimeoutSeconds int            `mapstructure:"timeout_seconds"`
	UserAgent      string         `mapstructure:"user_agent"`
	MapLimit       int            `mapstructure:"map_limit"`
	Headless       HeadlessConfig `mapstructure:"headless"`
}

// HeadlessConfig configures the local provider's JS-rendering escalation.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// LLMConfig configures the text-understanding collaborator.
type LLMConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	MaxTokens      int    `mapstructure:"max_tokens"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// DiscoveryConfig tunes the discovery pipeline and its heuristic
// tables. Empty lists fall back to the package defaults.
type DiscoveryConfig struct {
	MaxCandidates    int      `mapstructure:"max_candidates"`
	MaxCombinedChars int      `mapstructure:"max_combined_chars"`
	ProgramKeywords  []string `mapstructure:"program_keywords"`
	PortalSignatures []string `mapstructure:"portal_signatures"`
	SearchDenylist   []string `mapstructure:"search_denylist"`
}

// WatcherConfig controls the watch-rule scheduler.
type WatcherConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes"`
}

// ArchiveConfig selects the raw-scrape blob archive provider.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"` // noop | local | gcs
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// PublisherConfig selects the notification event publisher provider.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"` // noop | memory | pubsub
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REGGIE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("logging.development", true)
	v.SetDefault("db.provider", "postgres")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.migrate_on_start", true)
	v.SetDefault("db.conn_lifetime_minutes", 30)
	v.SetDefault("crawl.provider", "firecrawl")
	v.SetDefault("crawl.firecrawl_url", "https://api.firecrawl.dev")
	v.SetDefault("crawl.timeout_seconds", 60)
	v.SetDefault("crawl.user_agent", "reggie-bot/0.1")
	v.SetDefault("crawl.map_limit", 200)
	v.SetDefault("crawl.headless.enabled", false)
	v.SetDefault("crawl.headless.max_parallel", 1)
	v.SetDefault("crawl.headless.nav_timeout_seconds", 25)
	v.SetDefault("llm.base_url", "https://api.anthropic.com")
	v.SetDefault("llm.model", "claude-haiku-4-5")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.timeout_seconds", 90)
	v.SetDefault("discovery.max_candidates", 15)
	v.SetDefault("discovery.max_combined_chars", 50000)
	v.SetDefault("watcher.enabled", true)
	v.SetDefault("watcher.interval_minutes", 5)
	v.SetDefault("archive.provider", "noop")
	v.SetDefault("archive.prefix", "scrapes")
	v.SetDefault("publisher.provider", "noop")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.DB.Provider {
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required for the postgres provider")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown db.provider %q", c.DB.Provider)
	}
	switch c.Crawl.Provider {
	case "firecrawl":
		if c.Crawl.FirecrawlURL == "" {
			return fmt.Errorf("crawl.firecrawl_url is required for the firecrawl provider")
		}
	case "local":
	default:
		return fmt.Errorf("unknown crawl.provider %q", c.Crawl.Provider)
	}
	if c.Crawl.Headless.Enabled && c.Crawl.Headless.MaxParallel <= 0 {
		return fmt.Errorf("crawl.headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Discovery.MaxCandidates <= 0 {
		return fmt.Errorf("discovery.max_candidates must be > 0")
	}
	if c.Discovery.MaxCombinedChars <= 0 {
		return fmt.Errorf("discovery.max_combined_chars must be > 0")
	}
	if c.Watcher.Enabled && c.Watcher.IntervalMinutes <= 0 {
		return fmt.Errorf("watcher.interval_minutes must be > 0 when the watcher is enabled")
	}
	if c.Archive.Provider == "gcs" && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.gcs_bucket is required for the gcs provider")
	}
	if c.Archive.Provider == "local" && c.Archive.LocalDir == "" {
		return fmt.Errorf("archive.local_dir is required for the local provider")
	}
	if c.Publisher.Provider == "pubsub" && (c.Publisher.ProjectID == "" || c.Publisher.Topic == "") {
		return fmt.Errorf("publisher.project_id and publisher.topic are required for the pubsub provider")
	}
	return nil
}

// WatchInterval converts the watcher interval into a duration.
func (c Config) WatchInterval() time.Duration {
	return time.Duration(c.Watcher.IntervalMinutes) * time.Minute
}

// CrawlTimeout converts the crawl timeout into a duration.
func (c Config) CrawlTimeout() time.Duration {
	return time.Duration(c.Crawl.TimeoutSeconds) * time.Second
}

// LLMTimeout converts the LLM timeout into a duration.
func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// ConnLifetime converts the connection lifetime into a duration.
func (c DBConfig) ConnLifetime() time.Duration {
	return time.Duration(c.ConnLifetimeMin) * time.Minute
}

// NavTimeout converts the navigation timeout into a duration.
func (c HeadlessConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}
