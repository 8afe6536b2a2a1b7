// internal/config/validate.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/vmunix/cinedex/pkg/release/scoring"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

var validBackends = map[string]bool{
	BackendMemory: true, BackendJSON: true, BackendSQLite: true, BackendPostgres: true,
}

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string

	// Server
	if c.Server.Port != 0 && (c.Server.Port < 1 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server.port: must be between 1 and 65535, got %d", c.Server.Port))
	}
	if !validLogLevels[c.Server.LogLevel] {
		errs = append(errs, fmt.Sprintf("server.log_level: must be one of debug, info, warn, error; got %q", c.Server.LogLevel))
	}

	// Store
	if !validBackends[c.Store.Backend] {
		errs = append(errs, fmt.Sprintf("store.backend: must be one of memory, json, sqlite, postgres; got %q", c.Store.Backend))
	}
	if c.Store.Backend == BackendPostgres && c.Store.DSN == "" {
		errs = append(errs, "store.dsn: required when backend is postgres")
	}

	if _, err := scoring.ParsePriority(c.Catalog.QualityOrder); err != nil {
		errs = append(errs, fmt.Sprintf("catalog.quality_order: %v", err))
	}

	// Search
	if c.Search.Threshold < 0 || c.Search.Threshold > 1 {
		errs = append(errs, fmt.Sprintf("search.threshold: must be between 0 and 1, got %g", c.Search.Threshold))
	}
	if c.Search.PageSize < 0 {
		errs = append(errs, fmt.Sprintf("search.page_size: must be positive, got %d", c.Search.PageSize))
	}
	if c.Search.MaxTokenLen < 0 {
		errs = append(errs, fmt.Sprintf("search.max_token_len: must not be negative, got %d", c.Search.MaxTokenLen))
	}

	if c.Dispatch.Pace < 0 {
		errs = append(errs, fmt.Sprintf("dispatch.pace: must not be negative, got %s", c.Dispatch.Pace))
	}

	// Transport
	if c.Transport.OutboundURL != "" {
		u, err := url.Parse(c.Transport.OutboundURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("transport.outbound_url: must be an http(s) URL, got %q", c.Transport.OutboundURL))
		}
	}

	// Feed
	for _, ext := range c.Feed.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Sprintf("feed.extensions: %q must start with a dot", ext))
		}
	}
	for _, dir := range c.Feed.WatchDirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			errs = append(errs, fmt.Sprintf("feed.watch_dirs: %q is not a directory", dir))
		}
	}

	return errs
}
