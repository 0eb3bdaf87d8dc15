// Package config loads and validates application configuration from
// environment variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// xdgConfigFile is looked up under $XDG_CONFIG_HOME and $XDG_CONFIG_DIRS.
const xdgConfigFile = "nemt/config.yaml"

// Config holds all configuration values for the server and the CLI.
// Values are populated by Load.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// Location is the service timezone. Recurring times of day and manifest
	// days are interpreted in it. Defaults to UTC.
	Location *time.Location

	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64

	WebhookLeadTime time.Duration
	WebhookDedupe   bool

	// RedisURL enables the Redis dedupe guard. Empty leaves deduplication
	// to Postgres alone.
	RedisURL string

	PermissionCacheTTL time.Duration

	// SlackToken and SlackChannel enable approval notifications when both are set.
	SlackToken   string
	SlackChannel string

	// OTELEndpoint is the OTLP/HTTP collector (host:port). Empty disables telemetry.
	OTELEndpoint string
	OTELInsecure bool

	LogRetentionDays     int
	LogRetentionSchedule string
}

// SlackEnabled reports whether approval notifications are configured.
func (c Config) SlackEnabled() bool {
	return c.SlackToken != "" && c.SlackChannel != ""
}

// Option adjusts how Load finds its inputs.
type Option func(*loader)

type loader struct {
	file string
}

// WithFile reads path instead of searching the XDG config directories.
// A missing explicit file is an error.
func WithFile(path string) Option {
	return func(l *loader) { l.file = path }
}

var defaults = map[string]any{
	"port":                   "8080",
	"log_level":              "info",
	"cors_origins":           "http://localhost:5173",
	"timezone":               "UTC",
	"max_body_bytes":         1 << 20,
	"webhook_lead_time":      "2h",
	"webhook_dedupe":         true,
	"redis_url":              "",
	"permission_cache_ttl":   "5m",
	"slack_token":            "",
	"slack_channel":          "",
	"otel_endpoint":          "",
	"otel_insecure":          false,
	"log_retention_days":     90,
	"log_retention_schedule": "@daily",
}

// Load reads configuration from environment variables, falling back to the
// YAML config file and then to defaults. Empty environment variables count
// as unset. Returns an error listing any required variables that are not
// set, or describing every malformed value.
func Load(opts ...Option) (Config, error) {
	var l loader
	for _, o := range opts {
		o(&l)
	}

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	if err := l.readFile(v); err != nil {
		return Config{}, err
	}

	if v.GetString("database_url") == "" {
		return Config{}, fmt.Errorf("required environment variables not set: %s", "DATABASE_URL")
	}

	var problems []error
	cfg := Config{
		Port:                 v.GetString("port"),
		DatabaseURL:          v.GetString("database_url"),
		LogLevel:             strings.ToLower(v.GetString("log_level")),
		CORSOrigins:          stringList(v, "cors_origins"),
		MaxBodyBytes:         int64(parseInt(v, "max_body_bytes", &problems)),
		WebhookLeadTime:      parseDuration(v, "webhook_lead_time", &problems),
		WebhookDedupe:        parseBool(v, "webhook_dedupe", &problems),
		RedisURL:             v.GetString("redis_url"),
		PermissionCacheTTL:   parseDuration(v, "permission_cache_ttl", &problems),
		SlackToken:           v.GetString("slack_token"),
		SlackChannel:         v.GetString("slack_channel"),
		OTELEndpoint:         v.GetString("otel_endpoint"),
		OTELInsecure:         parseBool(v, "otel_insecure", &problems),
		LogRetentionDays:     parseInt(v, "log_retention_days", &problems),
		LogRetentionSchedule: v.GetString("log_retention_schedule"),
	}

	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		problems = append(problems, fmt.Errorf("TIMEZONE: %w", err))
	}
	cfg.Location = loc

	if cfg.MaxBodyBytes <= 0 {
		problems = append(problems, errors.New("MAX_BODY_BYTES: must be positive"))
	}
	if cfg.LogRetentionDays < 1 {
		problems = append(problems, errors.New("LOG_RETENTION_DAYS: must be at least 1"))
	}

	if len(problems) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %w", errors.Join(problems...))
	}
	return cfg, nil
}

// readFile loads the explicit file, or the XDG config file when one exists.
func (l loader) readFile(v *viper.Viper) error {
	path := l.file
	if path == "" {
		found, err := xdg.SearchConfigFile(xdgConfigFile)
		if err != nil {
			return nil
		}
		path = found
	}
	v.SetConfigFile(path)
	v.SetConfigType(strings.TrimPrefix(filepath.Ext(path), "."))
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config.Load: read %s: %w", path, err)
	}
	return nil
}

// stringList accepts a comma-separated string (environment) or a YAML list.
func stringList(v *viper.Viper, key string) []string {
	if s, ok := v.Get(key).(string); ok {
		return splitCSV(s)
	}
	return v.GetStringSlice(key)
}

func parseInt(v *viper.Viper, key string, problems *[]error) int {
	raw := v.GetString(key)
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		*problems = append(*problems, fmt.Errorf("%s: %q is not an integer", strings.ToUpper(key), raw))
	}
	return n
}

func parseDuration(v *viper.Viper, key string, problems *[]error) time.Duration {
	raw := v.GetString(key)
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d < 0 {
		*problems = append(*problems, fmt.Errorf("%s: %q is not a duration", strings.ToUpper(key), raw))
	}
	return d
}

func parseBool(v *viper.Viper, key string, problems *[]error) bool {
	raw := v.GetString(key)
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		*problems = append(*problems, fmt.Errorf("%s: %q is not a boolean", strings.ToUpper(key), raw))
	}
	return b
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
