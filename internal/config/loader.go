package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/example/milestone-calendar/internal/reminder"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "MILESTONES_"

// FileEnv names the variable holding the optional YAML config path.
const FileEnv = EnvPrefix + "CONFIG_FILE"

// DefaultQuietHours holds reminders overnight unless configured otherwise.
const DefaultQuietHours = "22:00-07:00"

// Config captures the settings of the milestones service.
type Config struct {
	HTTPPort int
	Driver   string
	DSN      string

	CacheCapacity int
	ListTTL       time.Duration
	StatsTTL      time.Duration
	HistoryTTL    time.Duration

	ReminderLeads []int
	QuietHours    reminder.QuietHours
	MaxRetries    int
	SweepSpec     string

	DefaultTimezone string
	Location        *time.Location
	LogLevel        slog.Level
}

// Load assembles configuration from, in increasing precedence, built-in
// defaults, the YAML file named by MILESTONES_CONFIG_FILE, a .env file in the
// working directory and the process environment.
//
// Every missing or malformed setting is collected and reported in one error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	file, err := readFile(strings.TrimSpace(os.Getenv(FileEnv)))
	if err != nil {
		return Config{}, err
	}
	src := source{file: file}

	cfg := Config{
		HTTPPort:        8080,
		Driver:          "sqlite",
		DSN:             "file:milestones.db",
		CacheCapacity:   500,
		ListTTL:         5 * time.Minute,
		StatsTTL:        time.Minute,
		HistoryTTL:      30 * time.Minute,
		MaxRetries:      reminder.DefaultMaxRetries,
		SweepSpec:       reminder.DefaultSweepSpec,
		DefaultTimezone: "UTC",
		Location:        time.UTC,
		LogLevel:        slog.LevelInfo,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if v, ok := src.lookup("HTTP_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, EnvPrefix+"HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if v, ok := src.lookup("DB_DRIVER"); ok {
		switch v {
		case "sqlite", "pgx":
			cfg.Driver = v
		default:
			invalid = append(invalid, EnvPrefix+"DB_DRIVER")
		}
	}

	if v, ok := src.lookup("DB_DSN"); ok {
		cfg.DSN = v
	} else if cfg.Driver == "pgx" {
		missing = append(missing, EnvPrefix+"DB_DSN")
	}

	if v, ok := src.lookup("CACHE_CAPACITY"); ok {
		capacity, err := strconv.Atoi(v)
		if err != nil || capacity <= 0 {
			invalid = append(invalid, EnvPrefix+"CACHE_CAPACITY")
		} else {
			cfg.CacheCapacity = capacity
		}
	}

	for name, target := range map[string]*time.Duration{
		"CACHE_LIST_TTL":    &cfg.ListTTL,
		"CACHE_STATS_TTL":   &cfg.StatsTTL,
		"CACHE_HISTORY_TTL": &cfg.HistoryTTL,
	} {
		v, ok := src.lookup(name)
		if !ok {
			continue
		}
		ttl, err := time.ParseDuration(v)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, EnvPrefix+name)
			continue
		}
		*target = ttl
	}

	if v, ok := src.lookup("REMINDER_LEADS"); ok {
		leads, err := parseLeads(v)
		if err != nil {
			invalid = append(invalid, EnvPrefix+"REMINDER_LEADS")
		} else {
			cfg.ReminderLeads = leads
		}
	}

	if v, ok := src.lookup("DEFAULT_TIMEZONE"); ok {
		loc, err := time.LoadLocation(v)
		if err != nil {
			invalid = append(invalid, EnvPrefix+"DEFAULT_TIMEZONE")
		} else {
			cfg.DefaultTimezone = v
			cfg.Location = loc
		}
	}

	quiet, ok := src.lookup("QUIET_HOURS")
	if !ok {
		quiet = DefaultQuietHours
	}
	if qh, err := reminder.ParseQuietHours(quiet, cfg.Location); err != nil {
		invalid = append(invalid, EnvPrefix+"QUIET_HOURS")
	} else {
		cfg.QuietHours = qh
	}

	if v, ok := src.lookup("REMINDER_MAX_RETRIES"); ok {
		retries, err := strconv.Atoi(v)
		if err != nil || retries < 1 {
			invalid = append(invalid, EnvPrefix+"REMINDER_MAX_RETRIES")
		} else {
			cfg.MaxRetries = retries
		}
	}

	if v, ok := src.lookup("REMINDER_SWEEP"); ok {
		cfg.SweepSpec = v
	}

	if v, ok := src.lookup("LOG_LEVEL"); ok {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			invalid = append(invalid, EnvPrefix+"LOG_LEVEL")
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		slices.Sort(invalid)
		return Config{}, fmt.Errorf("invalid settings: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// source resolves a setting from the environment, falling back to the file.
type source struct {
	file map[string]string
}

func (s source) lookup(name string) (string, bool) {
	if v := strings.TrimSpace(os.Getenv(EnvPrefix + name)); v != "" {
		return v, true
	}
	if v := strings.TrimSpace(s.file[strings.ToLower(name)]); v != "" {
		return v, true
	}
	return "", false
}

// readFile decodes a flat YAML mapping whose keys are the lower-cased
// variable names without prefix, e.g. "http_port: 9090".
func readFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	values := make(map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return values, nil
}

func parseLeads(value string) ([]int, error) {
	parts := strings.Split(value, ",")
	leads := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lead, err := strconv.Atoi(part)
		if err != nil || lead < 0 {
			return nil, fmt.Errorf("invalid lead %q", part)
		}
		leads = append(leads, lead)
	}
	return leads, nil
}
