package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Environment string
	Host        string `toml:"host"`
	Port        int    `toml:"port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// redis - the durable key/value medium for all checklist state
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`

	// prometheus metrics server
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	// plan document source: a local file path, or a URL when set
	PlanPath string `toml:"plan_path"`
	PlanURL  string `toml:"plan_url"`

	// RenumberWeeks recomputes week numbers at load time so that each week
	// ends on WeekEndsOn (normalization pass, off by default)
	RenumberWeeks bool   `toml:"renumber_weeks"`
	WeekEndsOn    string `toml:"week_ends_on"`

	// TodayPolicy: "nearest" or "none" - what "jump to today" does when
	// today is not in the plan
	TodayPolicy string `toml:"today_policy"`

	NoteSaveDelayMillis  int `toml:"note_save_delay_millis"`
	ResetRateLimitPerMin int `toml:"reset_rate_limit_per_min"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

func Load(env, path string) (*Config, error) {
	var tomlFile Toml
	if _, err := toml.DecodeFile(path, &tomlFile); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}

	cfg, err := tomlFile.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}

	cfg.Environment = env
	if cfg.TodayPolicy == "" {
		cfg.TodayPolicy = "nearest"
	}
	if cfg.ResetRateLimitPerMin <= 0 {
		cfg.ResetRateLimitPerMin = 10
	}

	return cfg, nil
}
