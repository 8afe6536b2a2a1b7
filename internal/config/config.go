// Package config handles TOML configuration loading with environment variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Store     StoreConfig     `toml:"store"`
	Events    EventsConfig    `toml:"events"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Search    SearchConfig    `toml:"search"`
	Dispatch  DispatchConfig  `toml:"dispatch"`
	Bot       BotConfig       `toml:"bot"`
	Transport TransportConfig `toml:"transport"`
	Feed      FeedConfig      `toml:"feed"`
}

type ServerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"`
}

// Store backends.
const (
	BackendMemory   = "memory"
	BackendJSON     = "json"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type StoreConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"` // json and sqlite backends
	DSN     string `toml:"dsn"`  // postgres backend
}

type EventsConfig struct {
	Path      string        `toml:"path"`
	Retention time.Duration `toml:"retention"` // 0 keeps everything
}

type CatalogConfig struct {
	QualityOrder []string `toml:"quality_order"` // best first; empty uses the built-in order
}

type SearchConfig struct {
	Threshold   float64 `toml:"threshold"`
	PageSize    int     `toml:"page_size"`
	MaxTokenLen int     `toml:"max_token_len"`
}

type DispatchConfig struct {
	Pace time.Duration `toml:"pace"`
}

type BotConfig struct {
	AllowedUsers []int64 `toml:"allowed_users"` // empty admits everyone
	SourceChats  []int64 `toml:"source_chats"`  // chats whose file postings are indexed
}

type TransportConfig struct {
	OutboundURL string        `toml:"outbound_url"`
	Timeout     time.Duration `toml:"timeout"`
	Secret      string        `toml:"secret"` // required in X-Cinedex-Secret when set
}

type FeedConfig struct {
	WatchDirs      []string      `toml:"watch_dirs"`
	RescanInterval time.Duration `toml:"rescan_interval"`
	Extensions     []string      `toml:"extensions"`
}

// Defaults.
const (
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 8585
	DefaultThreshold      = 0.6
	DefaultPageSize       = 8
	DefaultMaxTokenLen    = 64
	DefaultPace           = time.Second
	DefaultTimeout        = 30 * time.Second
	DefaultRescanInterval = time.Hour
)

// DefaultExtensions are the video container extensions the feed indexes.
var DefaultExtensions = []string{".mkv", ".mp4", ".avi", ".m4v", ".webm"}

// Load reads, parses and validates the configuration file.
func Load(path string) (*Config, error) {
	cfg, err := LoadWithoutValidation(path)
	if err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, &ConfigError{Path: path, Errors: errs}
	}
	return cfg, nil
}

// LoadWithoutValidation reads and parses the configuration file and applies defaults.
// Unresolved environment variables are still an error.
func LoadWithoutValidation(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	content, missing := substituteEnvVars(string(data))
	if len(missing) > 0 {
		return nil, &ConfigError{Path: path, Missing: missing}
	}

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendSQLite
	}
	if c.Store.Path == "" {
		switch c.Store.Backend {
		case BackendJSON:
			c.Store.Path = "./data/catalog.json"
		case BackendSQLite:
			c.Store.Path = "./data/cinedex.db"
		}
	}
	if c.Events.Path == "" {
		c.Events.Path = "./data/events.db"
	}
	if c.Search.Threshold == 0 {
		c.Search.Threshold = DefaultThreshold
	}
	if c.Search.PageSize == 0 {
		c.Search.PageSize = DefaultPageSize
	}
	if c.Search.MaxTokenLen == 0 {
		c.Search.MaxTokenLen = DefaultMaxTokenLen
	}
	if c.Dispatch.Pace == 0 {
		c.Dispatch.Pace = DefaultPace
	}
	if c.Transport.Timeout == 0 {
		c.Transport.Timeout = DefaultTimeout
	}
	if c.Feed.RescanInterval == 0 {
		c.Feed.RescanInterval = DefaultRescanInterval
	}
	if len(c.Feed.Extensions) == 0 {
		c.Feed.Extensions = DefaultExtensions
	}
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// envVarPattern matches ${VAR}, ${VAR:-default} and ${VAR:?message}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([-?])([^}]*))?\}`)

// substituteEnvVars replaces variable references with environment values.
// An empty value counts as unset for the :- and :? forms. Unresolved references are
// left in place and reported in missing.
func substituteEnvVars(content string) (string, []string) {
	var missing []string
	out := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		m := envVarPattern.FindStringSubmatch(match)
		name, op, arg := m[1], m[2], m[3]
		value, ok := os.LookupEnv(name)

		switch op {
		case "-":
			if value == "" {
				return arg
			}
			return value
		case "?":
			if value == "" {
				missing = append(missing, fmt.Sprintf("%s: %s", name, strings.TrimSpace(arg)))
				return match
			}
			return value
		}
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value
	})
	return out, missing
}
