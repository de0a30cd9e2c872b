package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"
)

// Config captures the settings of the scheduler command line.
type Config struct {
	SQLiteDSN            string
	LogLevel             string
	LogFormat            string
	GridCacheTTL         time.Duration
	GridCacheEntries     int
	DefaultFreeTimeLimit time.Duration
	EnforceAttendance    bool
	Collation            language.Tag
	MetricsTextfile      string
}

// fileConfig mirrors the optional TOML file named by SCHEDULER_CONFIG_FILE.
type fileConfig struct {
	SQLiteDSN string `toml:"sqlite_dsn"`
	Log       struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
	Grid struct {
		CacheTTL     string `toml:"cache_ttl"`
		CacheEntries int    `toml:"cache_entries"`
		Collation    string `toml:"collation"`
	} `toml:"grid"`
	Engine struct {
		DefaultFreeTimeLimit string `toml:"default_free_time_limit"`
		EnforceAttendance    *bool  `toml:"enforce_attendance"`
	} `toml:"engine"`
	Metrics struct {
		Textfile string `toml:"textfile"`
	} `toml:"metrics"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		SQLiteDSN:            "scheduler.db",
		LogLevel:             "info",
		LogFormat:            "json",
		GridCacheTTL:         30 * time.Second,
		GridCacheEntries:     64,
		DefaultFreeTimeLimit: 6 * time.Hour,
		Collation:            language.Russian,
	}
}

// Load builds the configuration from defaults, the optional TOML file named by
// SCHEDULER_CONFIG_FILE and the process environment, in that order of
// precedence from lowest to highest. Every invalid key is reported at once.
func Load() (Config, error) {
	cfg := Default()
	var invalid []string

	if path := strings.TrimSpace(os.Getenv("SCHEDULER_CONFIG_FILE")); path != "" {
		var file fileConfig
		if _, err := toml.DecodeFile(path, &file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("config file %s not found", path)
			}
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
		invalid = append(invalid, file.apply(&cfg)...)
	}

	invalid = append(invalid, applyEnv(&cfg)...)

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

func (f fileConfig) apply(cfg *Config) []string {
	var invalid []string
	set := func(key, value string, parse func(string) error) {
		if strings.TrimSpace(value) == "" {
			return
		}
		if err := parse(strings.TrimSpace(value)); err != nil {
			invalid = append(invalid, key)
		}
	}

	set("sqlite_dsn", f.SQLiteDSN, cfg.setDSN)
	set("log.level", f.Log.Level, cfg.setLogLevel)
	set("log.format", f.Log.Format, cfg.setLogFormat)
	set("grid.cache_ttl", f.Grid.CacheTTL, cfg.setGridCacheTTL)
	if f.Grid.CacheEntries != 0 {
		set("grid.cache_entries", strconv.Itoa(f.Grid.CacheEntries), cfg.setGridCacheEntries)
	}
	set("grid.collation", f.Grid.Collation, cfg.setCollation)
	set("engine.default_free_time_limit", f.Engine.DefaultFreeTimeLimit, cfg.setDefaultFreeTimeLimit)
	if f.Engine.EnforceAttendance != nil {
		cfg.EnforceAttendance = *f.Engine.EnforceAttendance
	}
	set("metrics.textfile", f.Metrics.Textfile, cfg.setMetricsTextfile)
	return invalid
}

func applyEnv(cfg *Config) []string {
	var invalid []string
	for _, entry := range []struct {
		key   string
		parse func(string) error
	}{
		{"SCHEDULER_SQLITE_DSN", cfg.setDSN},
		{"SCHEDULER_LOG_LEVEL", cfg.setLogLevel},
		{"SCHEDULER_LOG_FORMAT", cfg.setLogFormat},
		{"SCHEDULER_GRID_CACHE_TTL", cfg.setGridCacheTTL},
		{"SCHEDULER_GRID_CACHE_ENTRIES", cfg.setGridCacheEntries},
		{"SCHEDULER_DEFAULT_FREE_TIME_LIMIT", cfg.setDefaultFreeTimeLimit},
		{"SCHEDULER_ENFORCE_ATTENDANCE", cfg.setEnforceAttendance},
		{"SCHEDULER_COLLATION", cfg.setCollation},
		{"SCHEDULER_METRICS_TEXTFILE", cfg.setMetricsTextfile},
	} {
		value := strings.TrimSpace(os.Getenv(entry.key))
		if value == "" {
			continue
		}
		if err := entry.parse(value); err != nil {
			invalid = append(invalid, entry.key)
		}
	}
	return invalid
}

func (c *Config) setDSN(v string) error {
	c.SQLiteDSN = v
	return nil
}

func (c *Config) setLogLevel(v string) error {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(v)
		return nil
	}
	return fmt.Errorf("unknown log level %q", v)
}

func (c *Config) setLogFormat(v string) error {
	switch strings.ToLower(v) {
	case "json", "text":
		c.LogFormat = strings.ToLower(v)
		return nil
	}
	return fmt.Errorf("unknown log format %q", v)
}

func (c *Config) setGridCacheTTL(v string) error {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fmt.Errorf("invalid cache ttl %q", v)
	}
	c.GridCacheTTL = d
	return nil
}

func (c *Config) setGridCacheEntries(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid cache size %q", v)
	}
	c.GridCacheEntries = n
	return nil
}

func (c *Config) setDefaultFreeTimeLimit(v string) error {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fmt.Errorf("invalid free time limit %q", v)
	}
	c.DefaultFreeTimeLimit = d
	return nil
}

func (c *Config) setEnforceAttendance(v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	c.EnforceAttendance = b
	return nil
}

func (c *Config) setCollation(v string) error {
	tag, err := language.Parse(v)
	if err != nil {
		return err
	}
	c.Collation = tag
	return nil
}

func (c *Config) setMetricsTextfile(v string) error {
	c.MetricsTextfile = v
	return nil
}
