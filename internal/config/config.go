// Package config loads StockHome settings from defaults, an optional YAML
// file, a .env file and STOCKHOME_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "STOCKHOME_"

// Config is the complete server configuration.
type Config struct {
	Port       string        `yaml:"port"`
	DBPath     string        `yaml:"db_path"`
	LogLevel   string        `yaml:"log_level"`
	LogFormat  string        `yaml:"log_format"`
	BaseURL    string        `yaml:"base_url"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	Email      EmailConfig   `yaml:"email"`
	NATS       NATSConfig    `yaml:"nats"`
	Alerts     AlertsConfig  `yaml:"alerts"`
}

// EmailConfig configures invitation e-mail through Postmark. An empty token
// disables sending.
type EmailConfig struct {
	PostmarkToken string `yaml:"postmark_token"`
	From          string `yaml:"from"`
}

// NATSConfig configures the optional change-feed bridge. An empty URL
// disables it.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// AlertsConfig configures the background stock alert scheduler.
type AlertsConfig struct {
	Interval         time.Duration `yaml:"interval"`
	ExpiryWindowDays int           `yaml:"expiry_window_days"`
}

// Default returns a Config with working local defaults.
func Default() *Config {
	return &Config{
		Port:       "8080",
		DBPath:     "stockhome.db",
		LogLevel:   "info",
		LogFormat:  "text",
		BaseURL:    "http://localhost:8080",
		SessionTTL: 30 * 24 * time.Hour,
		NATS: NATSConfig{
			SubjectPrefix: "stockhome",
		},
		Alerts: AlertsConfig{
			Interval:         time.Hour,
			ExpiryWindowDays: 3,
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if p, err := strconv.Atoi(c.Port); err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535, got %q", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive")
	}
	if c.Alerts.Interval <= 0 {
		return fmt.Errorf("alerts.interval must be positive")
	}
	if c.Alerts.ExpiryWindowDays < 0 {
		return fmt.Errorf("alerts.expiry_window_days must not be negative")
	}
	if c.Email.PostmarkToken != "" && c.Email.From == "" {
		return fmt.Errorf("email.from is required when email.postmark_token is set")
	}
	if c.NATS.URL != "" && c.NATS.SubjectPrefix == "" {
		return fmt.Errorf("nats.subject_prefix is required when nats.url is set")
	}
	return nil
}

// LoadFromFile reads a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Load builds the effective configuration. path may be empty, in which case
// STOCKHOME_CONFIG is consulted. envFile names a dotenv file whose variables
// are added to the environment without overriding ones already set; a
// missing file is ignored.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}

	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"PORT":                &c.Port,
		"DB_PATH":             &c.DBPath,
		"LOG_LEVEL":           &c.LogLevel,
		"LOG_FORMAT":          &c.LogFormat,
		"BASE_URL":            &c.BaseURL,
		"POSTMARK_TOKEN":      &c.Email.PostmarkToken,
		"FROM_EMAIL":          &c.Email.From,
		"NATS_URL":            &c.NATS.URL,
		"NATS_SUBJECT_PREFIX": &c.NATS.SubjectPrefix,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	durations := map[string]*time.Duration{
		"SESSION_TTL":    &c.SessionTTL,
		"ALERT_INTERVAL": &c.Alerts.Interval,
	}
	for key, dst := range durations {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s%s: %w", EnvPrefix, key, err)
		}
		*dst = d
	}

	if v, ok := lookup(EnvPrefix + "EXPIRY_WINDOW_DAYS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sEXPIRY_WINDOW_DAYS: %w", EnvPrefix, err)
		}
		c.Alerts.ExpiryWindowDays = n
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}
