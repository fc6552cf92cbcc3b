// Package config handles configuration loading and validation for screenguard.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/eliteGoblin/focusd/screen_guard/internal/infra"
	"github.com/eliteGoblin/focusd/screen_guard/internal/policy"
)

// Config is the on-disk configuration of the screenguard daemon.
type Config struct {
	App      AppConfig          `toml:"app"`
	Observer ObserverConfig     `toml:"observer"`
	Hooks    infra.HookCommands `toml:"hooks"`
	Logging  LoggingConfig      `toml:"logging"`
	Journal  JournalConfig      `toml:"journal"`
}

// AppConfig selects the protected application and its policy.
type AppConfig struct {
	// Name is matched case-insensitively against the frontmost app.
	Name string `toml:"name"`

	// Policy is a policy ID ("default", "strict-resume").
	Policy string `toml:"policy"`

	// FocusPollMs is how often the frontmost app is sampled.
	FocusPollMs int `toml:"focus_poll_ms"`
}

// ObserverConfig configures capture-status sources.
type ObserverConfig struct {
	Patterns       []string  `toml:"patterns"`
	PollIntervalMs int       `toml:"poll_interval_ms"`
	OBS            OBSConfig `toml:"obs"`
}

// OBSConfig configures the OBS Studio websocket source.
type OBSConfig struct {
	Enabled  bool   `toml:"enabled"`
	URL      string `toml:"url"`
	Password string `toml:"password"`
}

// LoggingConfig configures zap output. An empty File uses the default path.
type LoggingConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	Console    bool   `toml:"console"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxAgeDays int    `toml:"max_age_days"`
	MaxBackups int    `toml:"max_backups"`
}

// JournalConfig configures the encrypted transition journal.
type JournalConfig struct {
	Enabled   bool `toml:"enabled"`
	Retention int  `toml:"retention"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Policy:      policy.DefaultPolicyID,
			FocusPollMs: 500,
		},
		Observer: ObserverConfig{
			Patterns:       append([]string(nil), infra.DefaultRecorderPatterns...),
			PollIntervalMs: 2000,
			OBS: OBSConfig{
				Enabled: false,
				URL:     infra.DefaultOBSObserverConfig().URL,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Console:    true,
			MaxSizeMB:  10,
			MaxAgeDays: 7,
			MaxBackups: 3,
		},
		Journal: JournalConfig{
			Enabled:   true,
			Retention: infra.DefaultJournalRetention,
		},
	}
}

// Load reads configuration from path. A missing file yields the defaults.
// Environment overrides are applied; validation is left to the caller.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("decode TOML: %w", err)
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as TOML, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode TOML: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0600)
}

// ApplyEnvOverrides applies SCREENGUARD_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SCREENGUARD_APP"); v != "" {
		c.App.Name = v
	}
	if v := os.Getenv("SCREENGUARD_POLICY"); v != "" {
		c.App.Policy = v
	}
	if v := os.Getenv("SCREENGUARD_PATTERNS"); v != "" {
		var patterns []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				patterns = append(patterns, p)
			}
		}
		c.Observer.Patterns = patterns
	}
	if v := os.Getenv("SCREENGUARD_OBS_URL"); v != "" {
		c.Observer.OBS.URL = v
		c.Observer.OBS.Enabled = true
	}
	if v := os.Getenv("SCREENGUARD_OBS_PASSWORD"); v != "" {
		c.Observer.OBS.Password = v
	}
	if v := os.Getenv("SCREENGUARD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SCREENGUARD_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("SCREENGUARD_JOURNAL"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Journal.Enabled = enabled
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Observer.Patterns = append([]string(nil), c.Observer.Patterns...)
	return &clone
}

// FocusPollInterval returns the focus sampling interval.
func (c *Config) FocusPollInterval() time.Duration {
	return time.Duration(c.App.FocusPollMs) * time.Millisecond
}

// ProcessObserverConfig maps the observer section onto the process observer.
func (c *Config) ProcessObserverConfig() infra.ProcessObserverConfig {
	return infra.ProcessObserverConfig{
		Patterns:     append([]string(nil), c.Observer.Patterns...),
		PollInterval: time.Duration(c.Observer.PollIntervalMs) * time.Millisecond,
	}
}

// OBSObserverConfig maps the obs section onto the OBS observer.
func (c *Config) OBSObserverConfig() infra.OBSObserverConfig {
	cfg := infra.DefaultOBSObserverConfig()
	if c.Observer.OBS.URL != "" {
		cfg.URL = c.Observer.OBS.URL
	}
	cfg.Password = c.Observer.OBS.Password
	return cfg
}

// LoggingConfig maps the logging section, using defaultFile when unset.
func (c *Config) LoggingConfig(defaultFile string) infra.LoggingConfig {
	file := c.Logging.File
	if file == "" {
		file = defaultFile
	}
	return infra.LoggingConfig{
		Level:      c.Logging.Level,
		File:       file,
		Console:    c.Logging.Console,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxAgeDays: c.Logging.MaxAgeDays,
		MaxBackups: c.Logging.MaxBackups,
	}
}
