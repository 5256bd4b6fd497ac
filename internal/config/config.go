package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const configFileName = "config.json"

// DataDirEnv overrides the data directory when set.
const DataDirEnv = "QUEUECTL_DATA_DIR"

// Config holds the process-wide tunables. One instance lives per data
// directory as config.json and is rewritten on every Set.
type Config struct {
	MaxRetries      int     `json:"max_retries"`
	BackoffBase     float64 `json:"backoff_base"`
	PollInterval    float64 `json:"poll_interval"`    // seconds
	ShutdownTimeout float64 `json:"shutdown_timeout"` // seconds
	JobTimeout      float64 `json:"job_timeout"`      // seconds
	LockTimeout     float64 `json:"lock_timeout"`     // seconds

	dir string
}

// Default returns a config with the documented default values.
func Default() *Config {
	return &Config{
		MaxRetries:      3,
		BackoffBase:     2.0,
		PollInterval:    1,
		ShutdownTimeout: 10,
		JobTimeout:      300,
		LockTimeout:     5,
	}
}

// DataDir resolves the data directory: $QUEUECTL_DATA_DIR if set,
// otherwise ~/.queuectl.
func DataDir() (string, error) {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".queuectl"), nil
}

// Load reads config.json from dir, creating it with defaults on first run.
func Load(dir string) (*Config, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	cfg := Default()
	cfg.dir = dir

	data, err := os.ReadFile(filepath.Join(dir, configFileName))
	if err != nil {
		if os.IsNotExist(err) {
			// First run: persist the defaults so `config get` shows them.
			return cfg, cfg.Save()
		}
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configFileName, err)
	}
	return cfg, nil
}

// Save writes the config back to its data directory.
func (c *Config) Save() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.dir, configFileName), data, 0o644)
}

// Keys lists the settable configuration keys.
func Keys() []string {
	return []string{"max_retries", "backoff_base", "poll_interval", "shutdown_timeout", "job_timeout", "lock_timeout"}
}

// Get returns the value for key as a display string.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "max_retries":
		return strconv.Itoa(c.MaxRetries), nil
	case "backoff_base":
		return strconv.FormatFloat(c.BackoffBase, 'g', -1, 64), nil
	case "poll_interval":
		return strconv.FormatFloat(c.PollInterval, 'g', -1, 64), nil
	case "shutdown_timeout":
		return strconv.FormatFloat(c.ShutdownTimeout, 'g', -1, 64), nil
	case "job_timeout":
		return strconv.FormatFloat(c.JobTimeout, 'g', -1, 64), nil
	case "lock_timeout":
		return strconv.FormatFloat(c.LockTimeout, 'g', -1, 64), nil
	}
	return "", fmt.Errorf("unknown config key: %s", key)
}

// Set updates key to value and persists immediately. Values must be
// numeric and non-negative; max_retries must be an integer.
func (c *Config) Set(key, value string) error {
	switch key {
	case "max_retries":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid value for max_retries: %q", value)
		}
		c.MaxRetries = n
	case "backoff_base", "poll_interval", "shutdown_timeout", "job_timeout", "lock_timeout":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid value for %s: %q", key, value)
		}
		// The poll ticker and the job timeout cannot be zero.
		if f == 0 && (key == "poll_interval" || key == "job_timeout") {
			return fmt.Errorf("invalid value for %s: must be greater than zero", key)
		}
		switch key {
		case "backoff_base":
			c.BackoffBase = f
		case "poll_interval":
			c.PollInterval = f
		case "shutdown_timeout":
			c.ShutdownTimeout = f
		case "job_timeout":
			c.JobTimeout = f
		case "lock_timeout":
			c.LockTimeout = f
		}
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return c.Save()
}

// Durations derived from the numeric settings.

func (c *Config) PollIntervalDuration() time.Duration {
	return secondsToDuration(c.PollInterval)
}

func (c *Config) ShutdownTimeoutDuration() time.Duration {
	return secondsToDuration(c.ShutdownTimeout)
}

func (c *Config) JobTimeoutDuration() time.Duration {
	return secondsToDuration(c.JobTimeout)
}

func (c *Config) LockTimeoutDuration() time.Duration {
	return secondsToDuration(c.LockTimeout)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
