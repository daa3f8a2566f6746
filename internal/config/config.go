package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no path is given. A missing
// file is not an error; the defaults below cover a stock deployment.
const DefaultPath = "impactcal.yaml"

// Default upstream feeds. The current week is always published and is
// required; the following week appears a few days early and is fetched
// best-effort.
const (
	DefaultThisWeekURL = "https://nfs.faireconomy.media/ff_calendar_thisweek.ics"
	DefaultNextWeekURL = "https://nfs.faireconomy.media/ff_calendar_nextweek.ics"
)

// SourceConfig describes a single upstream ICS source.
type SourceConfig struct {
	// ID is an internal identifier used for logging.
	ID string `yaml:"id"`
	// URL is the ICS endpoint.
	URL string `yaml:"url"`
	// Required marks a source whose failure aborts the run.
	Required bool `yaml:"required"`
}

// Config is the top-level application configuration.
type Config struct {
	// Output is the path the published feed is written to.
	Output string `yaml:"output"`

	// Listen is the HTTP listen address for serve mode.
	Listen string `yaml:"listen"`

	// Refresh is a cron-style schedule string (e.g. "0 6 * * *") used
	// by serve mode for periodic regeneration.
	Refresh string `yaml:"refresh"`

	// IncludeVIP additionally publishes events mentioning the built-in
	// VIP keyword list, regardless of their impact rating.
	IncludeVIP bool `yaml:"include_vip"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Sources are the upstream weekly feeds, fetched in order.
	Sources []SourceConfig `yaml:"sources"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Output:   "high_impact_only.ics",
		Listen:   "127.0.0.1:8080",
		Refresh:  "0 6 * * *",
		LogLevel: "info",
		Sources: []SourceConfig{
			{ID: "thisweek", URL: DefaultThisWeekURL, Required: true},
			{ID: "nextweek", URL: DefaultNextWeekURL},
		},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Output == "" {
		c.Output = "high_impact_only.ics"
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Refresh == "" {
		c.Refresh = "0 6 * * *"
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = "info"
	}
	if len(c.Sources) == 0 {
		c.Sources = DefaultConfig().Sources
	}
	for i := range c.Sources {
		if c.Sources[i].ID == "" {
			c.Sources[i].ID = "source" + strconv.Itoa(i)
		}
	}
}

// Load loads configuration from the given YAML path; an empty path
// means DefaultPath.
//
// Behavior:
//   - If the file does not exist, the defaults are returned. Nothing
//     is written: one-shot runs in scratch directories should not
//     leave config files behind.
//   - If the file exists, it is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// ApplyEnv overlays IMPACTCAL_* environment variables onto c. Variables
// override both defaults and file values; unset variables leave c
// untouched.
func ApplyEnv(c *Config) {
	if v := os.Getenv("IMPACTCAL_OUTPUT"); v != "" {
		c.Output = v
	}
	if v := os.Getenv("IMPACTCAL_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("IMPACTCAL_REFRESH"); v != "" {
		c.Refresh = v
	}
	if v := os.Getenv("IMPACTCAL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("IMPACTCAL_INCLUDE_VIP"); v != "" {
		c.IncludeVIP = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("IMPACTCAL_SOURCE_URL"); v != "" {
		c.Sources = []SourceConfig{{ID: "primary", URL: v, Required: true}}
	}
	c.Normalize()
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".impactcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the
// package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
