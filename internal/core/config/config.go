// Package config provides configuration management for the reach service.
package config

import (
	"fmt"
	"time"
)

// Config holds every product tunable for the segmentation service.
// Engine caps (sample size, export cap, guards) are configuration rather
// than constants: they are product-level decisions, not engine invariants.
type Config struct {
	Server ServerConfig
	Engine EngineConfig
}

// ServerConfig holds the HTTP admin API settings.
type ServerConfig struct {
	Host     string
	Port     int
	BasePath string
}

// EngineConfig bounds rule complexity and query execution.
type EngineConfig struct {
	SampleSize      int
	ExportCap       int
	ResolvePageSize int
	MaxRuleDepth    int
	MaxRuleNodes    int
	PreviewTimeout  time.Duration
	BulkTimeout     time.Duration
	PreviewCacheTTL time.Duration
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     8080,
			BasePath: "/v1",
		},
		Engine: EngineConfig{
			SampleSize:      10,
			ExportCap:       100000,
			ResolvePageSize: 1000,
			MaxRuleDepth:    6,
			MaxRuleNodes:    200,
			PreviewTimeout:  5 * time.Second,
			BulkTimeout:     60 * time.Second,
			PreviewCacheTTL: 5 * time.Minute,
		},
	}
}

// Validate checks port range and positive engine bounds.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Engine.SampleSize <= 0 {
		return fmt.Errorf("sample_size must be positive, got %d", c.Engine.SampleSize)
	}
	if c.Engine.ExportCap <= 0 {
		return fmt.Errorf("export_cap must be positive, got %d", c.Engine.ExportCap)
	}
	if c.Engine.ResolvePageSize <= 0 {
		return fmt.Errorf("resolve_page_size must be positive, got %d", c.Engine.ResolvePageSize)
	}
	if c.Engine.MaxRuleDepth <= 0 {
		return fmt.Errorf("max_rule_depth must be positive, got %d", c.Engine.MaxRuleDepth)
	}
	if c.Engine.MaxRuleNodes <= 0 {
		return fmt.Errorf("max_rule_nodes must be positive, got %d", c.Engine.MaxRuleNodes)
	}
	if c.Engine.PreviewTimeout <= 0 {
		return fmt.Errorf("preview_timeout must be positive, got %v", c.Engine.PreviewTimeout)
	}
	if c.Engine.BulkTimeout <= 0 {
		return fmt.Errorf("bulk_timeout must be positive, got %v", c.Engine.BulkTimeout)
	}
	// A zero cache TTL is valid: it disables preview caching.
	if c.Engine.PreviewCacheTTL < 0 {
		return fmt.Errorf("preview_cache_ttl must not be negative, got %v", c.Engine.PreviewCacheTTL)
	}
	return nil
}
