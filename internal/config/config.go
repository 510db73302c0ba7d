package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

const (
	InitialStateOnline  = "online"
	InitialStateUnknown = "unknown"
)

type Config struct {
	Port           string
	Version        string
	DiscordWebhook string
	PlexURL        string

	CheckInterval      time.Duration
	NotifyAfterRetries int
	InitialState       string

	MaxSummaryLength int

	NotifyWorkers   int
	NotifyQueueSize int

	LogLevel  string
	LogFormat string

	PushgatewayURL string
	JobName        string
}

// Load reads the configuration from the environment. When CONFIG_FILE names a
// YAML file its keys (e.g. discord_webhook) act as defaults for the matching
// environment variables.
func Load() (Config, error) {
	file, err := readFile(strings.TrimSpace(os.Getenv("CONFIG_FILE")))
	if err != nil {
		return Config{}, err
	}
	return load(envSource(file))
}

func load(src source) (Config, error) {
	var errs []error

	config := Config{
		Port:           src.get("PORT", "3666"),
		Version:        src.get("VERSION", ""),
		DiscordWebhook: src.get("DISCORD_WEBHOOK", ""),
		PlexURL:        src.get("PLEX_URL_WITH_TOKEN", ""),
		InitialState:   strings.ToLower(src.get("MONITOR_INITIAL_STATE", InitialStateOnline)),
		LogLevel:       src.get("LOG_LEVEL", "info"),
		LogFormat:      src.get("LOG_FORMAT", "json"),
		PushgatewayURL: src.get("PROMETHEUS_PUSHGATEWAY_URL", ""),
		JobName:        src.get("PROMETHEUS_JOB_NAME", "plex-2-discord"),
	}

	for _, opt := range []struct {
		key      string
		fallback int
		dst      *int
	}{
		{"MAX_SUMMARY_LENGTH", 400, &config.MaxSummaryLength},
		{"NOTIFY_WORKERS", 2, &config.NotifyWorkers},
		{"NOTIFY_QUEUE_SIZE", 128, &config.NotifyQueueSize},
	} {
		value, err := src.getInt(opt.key, opt.fallback)
		if err != nil {
			errs = append(errs, err)
		}
		*opt.dst = value
	}

	if config.DiscordWebhook == "" {
		errs = append(errs, errors.New("DISCORD_WEBHOOK is required"))
	}
	if config.PlexURL == "" {
		errs = append(errs, errors.New("PLEX_URL_WITH_TOKEN is required"))
	}

	interval, err := src.requiredInt("CHECK_INTERVAL_SECONDS", 1)
	if err != nil {
		errs = append(errs, err)
	}
	config.CheckInterval = time.Duration(interval) * time.Second

	config.NotifyAfterRetries, err = src.requiredInt("NOTIFY_AFTER_RETRIES", 1)
	if err != nil {
		errs = append(errs, err)
	}

	if config.InitialState != InitialStateOnline && config.InitialState != InitialStateUnknown {
		errs = append(errs, fmt.Errorf("MONITOR_INITIAL_STATE must be %q or %q, got %q", InitialStateOnline, InitialStateUnknown, config.InitialState))
	}
	// Room for at least one character plus the ellipsis.
	if config.MaxSummaryLength < 4 {
		errs = append(errs, fmt.Errorf("MAX_SUMMARY_LENGTH must be at least 4, got %d", config.MaxSummaryLength))
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}

	if config.NotifyWorkers < 1 {
		config.NotifyWorkers = 1
	}
	if config.NotifyQueueSize < 1 {
		config.NotifyQueueSize = 128
	}

	return config, nil
}

type source struct {
	lookup func(key string) string
}

func envSource(file map[string]string) source {
	return source{lookup: func(key string) string {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
		return strings.TrimSpace(file[key])
	}}
}

func (s source) get(key, fallback string) string {
	value := s.lookup(key)
	if value == "" {
		return fallback
	}
	return value
}

func (s source) getInt(key string, fallback int) (int, error) {
	raw := s.lookup(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}

func (s source) requiredInt(key string, minimum int) (int, error) {
	raw := s.lookup(key)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	if value < minimum {
		return 0, fmt.Errorf("%s must be >= %d, got %d", key, minimum, value)
	}
	return value, nil
}

func readFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	values := make(map[string]string, len(doc))
	for key, value := range doc {
		if value == nil {
			continue
		}
		values[strings.ToUpper(strings.TrimSpace(key))] = fmt.Sprint(value)
	}
	return values, nil
}
