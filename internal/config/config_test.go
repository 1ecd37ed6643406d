package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ScheduleInterval, cfg.Schedule.Type)
	assert.Equal(t, 60, cfg.Schedule.IntervalMinutes)
	assert.False(t, cfg.Schedule.RunImmediately)
	assert.True(t, cfg.Sources.Coin98.Enabled)
	assert.True(t, cfg.Sources.TapchiBitcoin.Enabled)
	assert.False(t, cfg.Sources.RSS.Enabled)
	assert.Equal(t, "http://localhost:8080/admin/news-articles", cfg.Sink.APIEndpoint)
	assert.Equal(t, 5, cfg.Sink.MaxArticles)
	assert.False(t, cfg.Database.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SCHEDULE_TYPE", "custom")
	t.Setenv("CUSTOM_TIMES", "06:00, 12:00,18:30")
	t.Setenv("RUN_IMMEDIATELY", "true")
	t.Setenv("ENABLE_COIN98", "false")
	t.Setenv("TAPCHIBITCOIN_MAX_ARTICLES", "9")
	t.Setenv("API_ENDPOINT", "http://news-api:9090/articles")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ScheduleCustom, cfg.Schedule.Type)
	assert.Equal(t, []string{"06:00", "12:00", "18:30"}, cfg.Schedule.CustomTimes)
	assert.True(t, cfg.Schedule.RunImmediately)
	assert.False(t, cfg.Sources.Coin98.Enabled)
	assert.Equal(t, 9, cfg.Sources.TapchiBitcoin.MaxArticles)
	assert.Equal(t, "http://news-api:9090/articles", cfg.Sink.APIEndpoint)
	assert.Equal(t, "debug", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
}

func validConfig() *Config {
	return &Config{
		Schedule: ScheduleConfig{Type: ScheduleInterval, IntervalMinutes: 60},
		Sources: SourcesConfig{
			Coin98: SiteConfig{Enabled: true, HomeURL: "https://coin98.net/home/moi-nhat"},
		},
		Sink:    SinkConfig{APIEndpoint: "http://localhost:8080/admin/news-articles", MaxArticles: 5},
		Logging: LoggingConfig{Level: "info"},
	}
}

func TestValidate_ConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantKey string
	}{
		{
			name:    "unknown schedule type",
			mutate:  func(c *Config) { c.Schedule.Type = "sometimes" },
			wantKey: "SCHEDULE_TYPE",
		},
		{
			name:    "zero interval minutes",
			mutate:  func(c *Config) { c.Schedule.IntervalMinutes = 0 },
			wantKey: "INTERVAL_MINUTES",
		},
		{
			name: "malformed daily time",
			mutate: func(c *Config) {
				c.Schedule.Type = ScheduleDaily
				c.Schedule.DailyTime = "25:99"
			},
			wantKey: "DAILY_TIME",
		},
		{
			name: "custom with empty times",
			mutate: func(c *Config) {
				c.Schedule.Type = ScheduleCustom
				c.Schedule.CustomTimes = nil
			},
			wantKey: "CUSTOM_TIMES",
		},
		{
			name:    "no sources enabled",
			mutate:  func(c *Config) { c.Sources.Coin98.Enabled = false },
			wantKey: "ENABLE_*",
		},
		{
			name: "enabled source without any endpoint",
			mutate: func(c *Config) {
				c.Sink.APIEndpoint = ""
			},
			wantKey: "COIN98_API_ENDPOINT",
		},
		{
			name: "endpoint is not a URL",
			mutate: func(c *Config) {
				c.Sources.Coin98.APIEndpoint = "not a url"
			},
			wantKey: "COIN98_API_ENDPOINT",
		},
		{
			name:    "non-positive max articles",
			mutate:  func(c *Config) { c.Sink.MaxArticles = 0 },
			wantKey: "COIN98_MAX_ARTICLES",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantKey: "LOG_LEVEL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantKey, cfgErr.Key)
		})
	}
}

func TestValidate_AcceptsAllScheduleTypes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"interval", func(c *Config) {}},
		{"hourly", func(c *Config) { c.Schedule.Type = ScheduleHourly }},
		{"daily", func(c *Config) {
			c.Schedule.Type = ScheduleDaily
			c.Schedule.DailyTime = "09:00"
		}},
		{"custom", func(c *Config) {
			c.Schedule.Type = ScheduleCustom
			c.Schedule.CustomTimes = []string{"06:00", "22:00"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestFallbackChain(t *testing.T) {
	sink := SinkConfig{APIEndpoint: "http://global/articles", MaxArticles: 5}

	site := SiteConfig{}
	assert.Equal(t, "http://global/articles", site.Endpoint(sink))
	assert.Equal(t, 5, site.Limit(sink))

	site = SiteConfig{APIEndpoint: "http://own/articles", MaxArticles: 12}
	assert.Equal(t, "http://own/articles", site.Endpoint(sink))
	assert.Equal(t, 12, site.Limit(sink))

	feed := RSSConfig{}
	assert.Equal(t, "http://global/articles", feed.Endpoint(sink))
	assert.Equal(t, 5, feed.Limit(sink))
}

func TestValidateClock(t *testing.T) {
	assert.NoError(t, ValidateClock("00:00"))
	assert.NoError(t, ValidateClock("23:59"))
	assert.Error(t, ValidateClock("24:00"))
	assert.Error(t, ValidateClock("09:60"))
	assert.Error(t, ValidateClock("9 am"))
	assert.Error(t, ValidateClock(""))
}
