// Package config loads the service configuration and the bootstrap job
// registration table from YAML.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML strings like "30s" or "1h30m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Job is one bootstrap registration: a task type plus a schedule descriptor.
// Schedule is either a cron expression ("*/5 * * * *"), an interval
// ("every 30s"), or a one-time instant ("at 2026-08-27T06:00:00Z").
type Job struct {
	Name       string         `yaml:"name"`
	Task       string         `yaml:"task"`
	Schedule   string         `yaml:"schedule"`
	Payload    map[string]any `yaml:"payload"`
	Priority   int            `yaml:"priority"`
	MaxRetries int            `yaml:"max_retries"`
	Timeout    Duration       `yaml:"timeout"`
}

// Config is the full service configuration.
type Config struct {
	Addr          string   `yaml:"addr"`
	DBPath        string   `yaml:"db"`
	Workers       int      `yaml:"workers"`
	CheckInterval Duration `yaml:"check_interval"`
	TakeTimeout   Duration `yaml:"take_timeout"`
	Jobs          []Job    `yaml:"jobs"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Addr:          ":8006",
		DBPath:        "taskspace.db",
		Workers:       4,
		CheckInterval: Duration(time.Second),
		TakeTimeout:   Duration(500 * time.Millisecond),
	}
}

// Load reads a YAML config file, filling unset fields with defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = Duration(time.Second)
	}
	if cfg.TakeTimeout <= 0 {
		cfg.TakeTimeout = Duration(500 * time.Millisecond)
	}
	return cfg, nil
}

// ScheduleKind classifies a parsed schedule descriptor.
type ScheduleKind int

const (
	KindCron ScheduleKind = iota
	KindInterval
	KindOnce
)

// ScheduleSpec is the parsed form of a Job.Schedule string.
type ScheduleSpec struct {
	Kind  ScheduleKind
	Cron  string
	Every time.Duration
	RunAt time.Time
}

// ParseSchedule interprets a schedule descriptor. "every <duration>" becomes
// an interval, "at <RFC3339>" a one-time instant, and anything else is
// treated as a cron expression — cron validity is checked by the scheduler
// at registration.
func ParseSchedule(s string) (ScheduleSpec, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return ScheduleSpec{}, fmt.Errorf("empty schedule")
	case strings.HasPrefix(s, "every "):
		d, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(s, "every ")))
		if err != nil {
			return ScheduleSpec{}, fmt.Errorf("parse interval %q: %w", s, err)
		}
		return ScheduleSpec{Kind: KindInterval, Every: d}, nil
	case strings.HasPrefix(s, "at "):
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(strings.TrimPrefix(s, "at ")))
		if err != nil {
			return ScheduleSpec{}, fmt.Errorf("parse timestamp %q: %w", s, err)
		}
		return ScheduleSpec{Kind: KindOnce, RunAt: t}, nil
	default:
		return ScheduleSpec{Kind: KindCron, Cron: s}, nil
	}
}
