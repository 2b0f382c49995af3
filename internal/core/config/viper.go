package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults matching Default()
	def := Default()
	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.base_path", def.Server.BasePath)
	v.SetDefault("engine.sample_size", def.Engine.SampleSize)
	v.SetDefault("engine.export_cap", def.Engine.ExportCap)
	v.SetDefault("engine.resolve_page_size", def.Engine.ResolvePageSize)
	v.SetDefault("engine.max_rule_depth", def.Engine.MaxRuleDepth)
	v.SetDefault("engine.max_rule_nodes", def.Engine.MaxRuleNodes)
	v.SetDefault("engine.preview_timeout", "5s")
	v.SetDefault("engine.bulk_timeout", "60s")
	v.SetDefault("engine.preview_cache_ttl", "5m")

	// Bind environment variables with REACH_ prefix
	v.SetEnvPrefix("REACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Security check: reject credentials in config files
	// Database URLs carry passwords and must be environment-only
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:     v.GetString("server.host"),
			Port:     v.GetInt("server.port"),
			BasePath: v.GetString("server.base_path"),
		},
		Engine: EngineConfig{
			SampleSize:      v.GetInt("engine.sample_size"),
			ExportCap:       v.GetInt("engine.export_cap"),
			ResolvePageSize: v.GetInt("engine.resolve_page_size"),
			MaxRuleDepth:    v.GetInt("engine.max_rule_depth"),
			MaxRuleNodes:    v.GetInt("engine.max_rule_nodes"),
			PreviewTimeout:  v.GetDuration("engine.preview_timeout"),
			BulkTimeout:     v.GetDuration("engine.bulk_timeout"),
			PreviewCacheTTL: v.GetDuration("engine.preview_cache_ttl"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateNoSecretsInConfig enforces environment-only credentials
// (12-factor principle).
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.IsSet("db_url") || v.IsSet("server.db_url") || v.IsSet("database.url") {
		return fmt.Errorf("database URLs not allowed in config files (use the --db-url flag or REACH_DB_URL environment variable)")
	}
	return nil
}
