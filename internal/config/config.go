package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Schedule types
const (
	ScheduleInterval = "interval"
	ScheduleDaily    = "daily"
	ScheduleHourly   = "hourly"
	ScheduleCustom   = "custom"
)

// Config represents the application configuration
type Config struct {
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Sink      SinkConfig      `mapstructure:"sink"`
	Database  DatabaseConfig  `mapstructure:"database"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ScheduleConfig holds the crawl timing policy. Only the fields relevant to
// Type are meaningful; the rest are ignored.
type ScheduleConfig struct {
	Type            string   `mapstructure:"type"`             // interval, daily, hourly, custom
	IntervalMinutes int      `mapstructure:"interval_minutes"` // when type=interval
	DailyTime       string   `mapstructure:"daily_time"`       // HH:MM, when type=daily
	CustomTimes     []string `mapstructure:"custom_times"`     // HH:MM list, when type=custom
	RunImmediately  bool     `mapstructure:"run_immediately"`
}

// SourcesConfig holds all source crawler configurations
type SourcesConfig struct {
	Coin98        SiteConfig `mapstructure:"coin98"`
	TapchiBitcoin SiteConfig `mapstructure:"tapchibitcoin"`
	RSS           RSSConfig  `mapstructure:"rss"`
}

// SiteConfig holds the settings of one crawled site. MaxArticles and
// APIEndpoint fall back to the global sink values when empty.
type SiteConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	HomeURL     string `mapstructure:"home_url"`
	MaxArticles int    `mapstructure:"max_articles"`
	APIEndpoint string `mapstructure:"api_endpoint"`
}

// RSSConfig holds RSS feed source settings
type RSSConfig struct {
	Enabled     bool      `mapstructure:"enabled"`
	Feeds       []RSSFeed `mapstructure:"feeds"`
	MaxArticles int       `mapstructure:"max_articles"`
	APIEndpoint string    `mapstructure:"api_endpoint"`
}

// RSSFeed represents a single RSS feed
type RSSFeed struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// SinkConfig holds the global article API settings, used as the fallback for
// sources without per-source overrides.
type SinkConfig struct {
	APIEndpoint    string `mapstructure:"api_endpoint"`
	MaxArticles    int    `mapstructure:"max_articles"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// DatabaseConfig holds the optional submission dedup store settings
type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	CrawlPerSecond float64 `mapstructure:"crawl_per_second"`
	SinkPerSecond  float64 `mapstructure:"sink_per_second"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// ConfigError describes an invalid or missing configuration value. It is
// always raised at startup, never once the schedule loop is running.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Key, e.Reason)
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".news-crawler"))
		}
	}

	v.AutomaticEnv()

	// Explicit bindings: the deployment surface is flat env keys
	v.BindEnv("schedule.type", "SCHEDULE_TYPE")
	v.BindEnv("schedule.interval_minutes", "INTERVAL_MINUTES")
	v.BindEnv("schedule.daily_time", "DAILY_TIME")
	v.BindEnv("schedule.custom_times", "CUSTOM_TIMES")
	v.BindEnv("schedule.run_immediately", "RUN_IMMEDIATELY")
	v.BindEnv("sources.coin98.enabled", "ENABLE_COIN98")
	v.BindEnv("sources.coin98.home_url", "COIN98_HOME_URL")
	v.BindEnv("sources.coin98.max_articles", "COIN98_MAX_ARTICLES")
	v.BindEnv("sources.coin98.api_endpoint", "COIN98_API_ENDPOINT")
	v.BindEnv("sources.tapchibitcoin.enabled", "ENABLE_TAPCHIBITCOIN")
	v.BindEnv("sources.tapchibitcoin.home_url", "TAPCHIBITCOIN_HOME_URL")
	v.BindEnv("sources.tapchibitcoin.max_articles", "TAPCHIBITCOIN_MAX_ARTICLES")
	v.BindEnv("sources.tapchibitcoin.api_endpoint", "TAPCHIBITCOIN_API_ENDPOINT")
	v.BindEnv("sources.rss.enabled", "ENABLE_RSS")
	v.BindEnv("sink.api_endpoint", "API_ENDPOINT")
	v.BindEnv("sink.max_articles", "MAX_ARTICLES")
	v.BindEnv("database.enabled", "DATABASE_ENABLED")
	v.BindEnv("database.dsn", "DATABASE_DSN")
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.output", "LOG_FILE")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// CUSTOM_TIMES arrives as one comma-separated value from the environment
	config.Schedule.CustomTimes = splitTimes(config.Schedule.CustomTimes)

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Schedule defaults
	v.SetDefault("schedule.type", ScheduleInterval)
	v.SetDefault("schedule.interval_minutes", 60)
	v.SetDefault("schedule.daily_time", "09:00")
	v.SetDefault("schedule.custom_times", []string{"06:00", "12:00", "18:00"})
	v.SetDefault("schedule.run_immediately", false)

	// Source defaults
	v.SetDefault("sources.coin98.enabled", true)
	v.SetDefault("sources.coin98.home_url", "https://coin98.net/home/moi-nhat")
	v.SetDefault("sources.tapchibitcoin.enabled", true)
	v.SetDefault("sources.tapchibitcoin.home_url", "https://tapchibitcoin.io/")
	v.SetDefault("sources.rss.enabled", false)

	// Sink defaults
	v.SetDefault("sink.api_endpoint", "http://localhost:8080/admin/news-articles")
	v.SetDefault("sink.max_articles", 5)
	v.SetDefault("sink.timeout_seconds", 30)

	// Database defaults (dedup store is opt-in)
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.dsn", "./data/crawler.db")

	// Rate limit defaults
	v.SetDefault("rate_limit.crawl_per_second", 1.0)
	v.SetDefault("rate_limit.sink_per_second", 2.0)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
}

// splitTimes expands comma-separated entries and trims whitespace
func splitTimes(times []string) []string {
	var out []string
	for _, t := range times {
		for _, part := range strings.Split(t, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate validates the configuration. Every violation is returned as a
// *ConfigError so the caller can fail fast with a clear diagnostic.
func (c *Config) Validate() error {
	switch c.Schedule.Type {
	case ScheduleInterval:
		if c.Schedule.IntervalMinutes <= 0 {
			return &ConfigError{Key: "INTERVAL_MINUTES", Reason: "must be a positive integer"}
		}
	case ScheduleDaily:
		if err := ValidateClock(c.Schedule.DailyTime); err != nil {
			return &ConfigError{Key: "DAILY_TIME", Reason: err.Error()}
		}
	case ScheduleHourly:
		// no parameters
	case ScheduleCustom:
		if len(c.Schedule.CustomTimes) == 0 {
			return &ConfigError{Key: "CUSTOM_TIMES", Reason: "must list at least one HH:MM time"}
		}
		for _, t := range c.Schedule.CustomTimes {
			if err := ValidateClock(t); err != nil {
				return &ConfigError{Key: "CUSTOM_TIMES", Reason: err.Error()}
			}
		}
	default:
		return &ConfigError{Key: "SCHEDULE_TYPE", Reason: fmt.Sprintf("unknown type %q", c.Schedule.Type)}
	}

	if c.Sources.Coin98.Enabled {
		if err := c.validateSite("COIN98", c.Sources.Coin98); err != nil {
			return err
		}
	}
	if c.Sources.TapchiBitcoin.Enabled {
		if err := c.validateSite("TAPCHIBITCOIN", c.Sources.TapchiBitcoin); err != nil {
			return err
		}
	}
	if c.Sources.RSS.Enabled {
		if len(c.Sources.RSS.Feeds) == 0 {
			return &ConfigError{Key: "sources.rss.feeds", Reason: "RSS enabled but no feeds configured"}
		}
		if c.Sources.RSS.Endpoint(c.Sink) == "" {
			return &ConfigError{Key: "API_ENDPOINT", Reason: "rss source has no endpoint and no global fallback"}
		}
		if c.Sources.RSS.Limit(c.Sink) <= 0 {
			return &ConfigError{Key: "MAX_ARTICLES", Reason: "must be a positive integer"}
		}
	}

	if !c.Sources.Coin98.Enabled && !c.Sources.TapchiBitcoin.Enabled && !c.Sources.RSS.Enabled {
		return &ConfigError{Key: "ENABLE_*", Reason: "no sources enabled"}
	}

	if level := strings.ToLower(c.Logging.Level); level != "" {
		switch level {
		case "debug", "info", "warn", "warning", "error":
		default:
			return &ConfigError{Key: "LOG_LEVEL", Reason: fmt.Sprintf("unknown level %q", c.Logging.Level)}
		}
	}

	return nil
}

func (c *Config) validateSite(prefix string, site SiteConfig) error {
	if site.HomeURL == "" {
		return &ConfigError{Key: prefix + "_HOME_URL", Reason: "required"}
	}
	endpoint := site.Endpoint(c.Sink)
	if endpoint == "" {
		return &ConfigError{Key: prefix + "_API_ENDPOINT", Reason: "no endpoint and no global API_ENDPOINT fallback"}
	}
	if u, err := url.Parse(endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigError{Key: prefix + "_API_ENDPOINT", Reason: fmt.Sprintf("not a valid URL: %q", endpoint)}
	}
	if site.Limit(c.Sink) <= 0 {
		return &ConfigError{Key: prefix + "_MAX_ARTICLES", Reason: "must be a positive integer"}
	}
	return nil
}

// ValidateClock checks an HH:MM wall-clock string
func ValidateClock(s string) error {
	if _, err := time.Parse("15:04", s); err != nil {
		return fmt.Errorf("%q is not a valid HH:MM time", s)
	}
	return nil
}

// Endpoint resolves the per-source endpoint, falling back to the global sink
func (s SiteConfig) Endpoint(sink SinkConfig) string {
	if s.APIEndpoint != "" {
		return s.APIEndpoint
	}
	return sink.APIEndpoint
}

// Limit resolves the per-source article cap, falling back to the global sink
func (s SiteConfig) Limit(sink SinkConfig) int {
	if s.MaxArticles > 0 {
		return s.MaxArticles
	}
	return sink.MaxArticles
}

// Endpoint resolves the RSS endpoint, falling back to the global sink
func (r RSSConfig) Endpoint(sink SinkConfig) string {
	if r.APIEndpoint != "" {
		return r.APIEndpoint
	}
	return sink.APIEndpoint
}

// Limit resolves the RSS article cap, falling back to the global sink
func (r RSSConfig) Limit(sink SinkConfig) int {
	if r.MaxArticles > 0 {
		return r.MaxArticles
	}
	return sink.MaxArticles
}
