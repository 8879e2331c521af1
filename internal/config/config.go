package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"

	"github.com/ibeckermayer/keepalive/internal/markers"
)

// DefaultTargetURL is the app kept awake when nothing else is configured
const DefaultTargetURL = "https://multimodal-food-analyzer-himesh.streamlit.app/?heartbeat=1"

// Config holds all application configuration
type Config struct {
	Version  int            `toml:"version"`
	Target   TargetConfig   `toml:"target"`
	Markers  MarkersConfig  `toml:"markers"`
	Browser  BrowserConfig  `toml:"browser"`
	Schedule ScheduleConfig `toml:"schedule"`
	History  HistoryConfig  `toml:"history"`
	Alert    AlertConfig    `toml:"alert"`
}

type TargetConfig struct {
	URL          string   `toml:"url"`
	Timeout      Duration `toml:"timeout"`
	PollInterval Duration `toml:"poll_interval"`
	WakeGrace    Duration `toml:"wake_grace"`
	ScanTimeout  Duration `toml:"scan_timeout"`
	SnippetLimit int      `toml:"snippet_limit"`
}

type MarkersConfig struct {
	Alive    []string `toml:"alive"`
	Wake     []string `toml:"wake"`
	Fallback []string `toml:"fallback"`
}

type BrowserConfig struct {
	Headless  bool   `toml:"headless"`
	NoSandbox bool   `toml:"no_sandbox"`
	UserAgent string `toml:"user_agent"`
}

type ScheduleConfig struct {
	Cron       string   `toml:"cron"`
	Timezone   string   `toml:"timezone"`
	JobTimeout Duration `toml:"job_timeout"`
}

type HistoryConfig struct {
	Enabled     bool   `toml:"enabled"`
	Path        string `toml:"path"`
	SnapshotDir string `toml:"snapshot_dir"`
}

type AlertConfig struct {
	Enabled       bool   `toml:"enabled"`
	AfterFailures int    `toml:"after_failures"`
	Provider      string `toml:"provider"`
	SMTPHost      string `toml:"smtp_host"`
	SMTPPort      int    `toml:"smtp_port"`
	SMTPUser      string `toml:"smtp_user"`
	SMTPPass      string `toml:"smtp_pass"`
	FromAddr      string `toml:"from_address"`
	ToAddr        string `toml:"to_address"`
}

// Duration is a time.Duration written as a string ("60s") in TOML
type Duration struct {
	time.Duration
}

// D wraps d as a Duration
func D(d time.Duration) Duration { return Duration{d} }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Target: TargetConfig{
			URL:          DefaultTargetURL,
			Timeout:      D(60 * time.Second),
			PollInterval: D(2 * time.Second),
			WakeGrace:    D(60 * time.Second),
			ScanTimeout:  D(10 * time.Second),
			SnippetLimit: 500,
		},
		Markers: MarkersConfig{
			Alive:    append([]string(nil), markers.DefaultAlive...),
			Wake:     append([]string(nil), markers.DefaultWake...),
			Fallback: append([]string(nil), markers.DefaultFallback...),
		},
		Browser: BrowserConfig{
			Headless:  true,
			NoSandbox: true,
		},
		Schedule: ScheduleConfig{
			Cron:       "*/10 * * * *",
			Timezone:   "UTC",
			JobTimeout: D(5 * time.Minute),
		},
		History: HistoryConfig{
			Enabled: false,
		},
		Alert: AlertConfig{
			Enabled:       false,
			AfterFailures: 3,
			Provider:      "smtp",
			SMTPPort:      587,
		},
	}
}

// Validate checks the values a probe run depends on
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Target.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("target.url must be an absolute http(s) URL, got %q", c.Target.URL))
	}
	if c.Target.Timeout.Duration <= 0 {
		errs = append(errs, errors.New("target.timeout must be positive"))
	}
	if c.Target.PollInterval.Duration <= 0 {
		errs = append(errs, errors.New("target.poll_interval must be positive"))
	}
	if c.Target.WakeGrace.Duration < 0 {
		errs = append(errs, errors.New("target.wake_grace must not be negative"))
	}
	if c.Target.ScanTimeout.Duration <= 0 {
		errs = append(errs, errors.New("target.scan_timeout must be positive"))
	}
	if c.Target.SnippetLimit <= 0 {
		errs = append(errs, errors.New("target.snippet_limit must be positive"))
	}
	if len(c.Markers.Alive) == 0 {
		errs = append(errs, errors.New("markers.alive must not be empty"))
	}
	if c.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			errs = append(errs, fmt.Errorf("schedule.cron: %w", err))
		}
	}
	if c.Alert.Enabled {
		if c.Alert.AfterFailures < 1 {
			errs = append(errs, errors.New("alert.after_failures must be at least 1"))
		}
		if c.Alert.ToAddr == "" {
			errs = append(errs, errors.New("alert.to_address is required when alerts are enabled"))
		}
	}

	return errors.Join(errs...)
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "keepalive"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the platform-appropriate cache directory
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "keepalive"), nil
}

// HistoryPath returns the configured history database, or the default one
// under CacheDir.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// SnapshotDir returns the directory failure snapshots are written to
func (c *Config) SnapshotDir() (string, error) {
	if c.History.SnapshotDir != "" {
		return c.History.SnapshotDir, nil
	}
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "snapshots"), nil
}

// LoadFile reads config from path. Keys missing from the file keep their
// default values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault reads path (or the default path when empty). A missing file
// yields Default().
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return Default(), nil
		}
		path = p
	}

	cfg, err := LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes config to the default path
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes config to path, creating its directory
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
