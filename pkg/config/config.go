// Package config loads client settings from TOML files and the environment.
//
// A configuration file has one table per concern:
//
//	[connection]
//	uri = "neo4j://localhost:7687"
//	username = "neo4j"
//	password = "secret"
//
//	[arrow]
//	enabled = true
//
//	[retry]
//	attempts = 3
//	initial = "1s"
//
//	[progress]
//	enabled = true
//	interval = "500ms"
//
//	[cache]
//	backend = "file"
//	ttl = "1h"
//
// Environment variables override file values; see [Config.ApplyEnv].
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/errors"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/retry"
)

// Environment variables read by ApplyEnv.
const (
	EnvURI      = "NEO4J_URI"
	EnvUsername = "NEO4J_USERNAME"
	EnvPassword = "NEO4J_PASSWORD"
	EnvDatabase = "NEO4J_DATABASE"
	EnvArrow    = "GDS_ARROW"
)

// Cache backends.
const (
	CacheNone  = "none"
	CacheFile  = "file"
	CacheRedis = "redis"
)

// Config is the complete client configuration.
type Config struct {
	Connection Connection `toml:"connection"`
	Arrow      Arrow      `toml:"arrow"`
	Retry      Retry      `toml:"retry"`
	Progress   Progress   `toml:"progress"`
	Cache      Cache      `toml:"cache"`
	Gateway    Gateway    `toml:"gateway"`
}

// Connection configures the Bolt connection used by the query channel.
type Connection struct {
	URI      string `toml:"uri"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

// Arrow configures the bulk channel.
type Arrow struct {
	Enabled bool `toml:"enabled"`

	// Address overrides the listen address advertised by the server.
	Address            string `toml:"address"`
	Encrypted          bool   `toml:"encrypted"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// Retry configures the transient-failure retry policy.
type Retry struct {
	Attempts int           `toml:"attempts"`
	Initial  time.Duration `toml:"initial"`
	Factor   float64       `toml:"factor"`
	Max      time.Duration `toml:"max"`
}

// Progress configures job progress polling.
type Progress struct {
	Enabled  bool          `toml:"enabled"`
	Interval time.Duration `toml:"interval"`
}

// Cache configures the metadata cache.
type Cache struct {
	Backend  string        `toml:"backend"`
	Dir      string        `toml:"dir"`
	RedisURL string        `toml:"redis_url"`
	TTL      time.Duration `toml:"ttl"`

	// Prefix namespaces keys when several clients share one redis.
	Prefix string `toml:"prefix"`
}

// Gateway configures the HTTP gateway.
type Gateway struct {
	Addr string `toml:"addr"`
}

// AppName names the cache and config directories.
const AppName = "gds-client"

// DefaultCacheDir returns the cache directory using the XDG standard
// (~/.cache/gds-client/).
func DefaultCacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", AppName), nil
}

// DefaultConfigPath returns ~/.config/gds-client/config.toml, honouring
// XDG_CONFIG_HOME.
func DefaultConfigPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, AppName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppName, "config.toml"), nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Connection: Connection{URI: "neo4j://localhost:7687", Username: "neo4j"},
		Arrow:      Arrow{Enabled: true},
		Retry:      Retry{Attempts: 3, Initial: time.Second, Factor: 2, Max: 30 * time.Second},
		Progress:   Progress{Enabled: true, Interval: 500 * time.Millisecond},
		Cache:      Cache{Backend: CacheFile, TTL: time.Hour},
		Gateway:    Gateway{Addr: ":8080"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, errors.New(errors.ErrCodeInvalidConfig, "unknown config key %q in %s", undecoded[0].String(), path)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes TOML text over the defaults without consulting the
// environment.
func Parse(text string) (Config, error) {
	cfg := Default()
	if _, err := toml.Decode(text, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config")
	}
	return cfg, nil
}

// ApplyEnv overrides connection settings from the environment. Empty
// variables are ignored. GDS_ARROW accepts any strconv.ParseBool value.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Connection.URI, EnvURI)
	set(&c.Connection.Username, EnvUsername)
	set(&c.Connection.Password, EnvPassword)
	set(&c.Connection.Database, EnvDatabase)

	if v := getenv(EnvArrow); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s must be a boolean", EnvArrow)
		}
		c.Arrow.Enabled = on
	}
	return nil
}

// Validate checks the configuration for values the client cannot use.
func (c Config) Validate() error {
	if err := errors.ValidateURI(c.Connection.URI); err != nil {
		return err
	}
	if c.Arrow.Address != "" {
		if err := errors.ValidateAddress(c.Arrow.Address); err != nil {
			return err
		}
	}
	if c.Retry.Attempts < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "retry.attempts must be at least 1")
	}
	if c.Retry.Initial < 0 || c.Retry.Max < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "retry durations cannot be negative")
	}
	if c.Progress.Interval <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "progress.interval must be positive")
	}
	switch c.Cache.Backend {
	case CacheNone, CacheFile:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache.redis_url is required for the redis backend")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q", c.Cache.Backend)
	}
	return nil
}

// RetryPolicy builds the retry policy described by c.Retry.
func (c Config) RetryPolicy() retry.Policy {
	p := retry.Default()
	p.Attempts = c.Retry.Attempts
	p.Wait = retry.Exponential{Initial: c.Retry.Initial, Factor: c.Retry.Factor, Max: c.Retry.Max}
	return p
}
