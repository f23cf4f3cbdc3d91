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

	def := DefaultConfig()
	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.grpc_port", def.Server.GRPCPort)
	v.SetDefault("server.http_port", def.Server.HTTPPort)
	v.SetDefault("server.request_timeout", def.Server.RequestTimeout.String())
	v.SetDefault("database.url", def.Database.URL)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("engine.max_items", def.Engine.MaxItems)
	v.SetDefault("engine.max_cost", def.Engine.MaxCost)
	v.SetDefault("cache.ttl", def.Cache.TTL.String())

	// Bind environment variables with RT_ prefix
	v.SetEnvPrefix("RT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Credentials must come from the environment, never the file.
		if err := validateNoSecretsInConfig(configPath); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			GRPCPort:       v.GetInt("server.grpc_port"),
			HTTPPort:       v.GetInt("server.http_port"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
		},
		Database: DatabaseConfig{URL: v.GetString("database.url")},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Engine: EngineConfig{
			MaxItems: v.GetInt("engine.max_items"),
			MaxCost:  v.GetInt("engine.max_cost"),
		},
		Cache: CacheConfig{TTL: v.GetDuration("cache.ttl")},
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks port ranges and positive limits. CLI commands call it again
// after applying flag overrides.
func Validate(cfg *Config) error {
	if cfg.Server.GRPCPort <= 0 || cfg.Server.GRPCPort > 65535 {
		return fmt.Errorf("grpc_port must be between 1 and 65535, got %d", cfg.Server.GRPCPort)
	}
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 1 and 65535, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Server.GRPCPort == cfg.Server.HTTPPort {
		return fmt.Errorf("grpc_port and http_port must differ, both are %d", cfg.Server.GRPCPort)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if cfg.Engine.MaxItems <= 0 {
		return fmt.Errorf("max_items must be positive, got %d", cfg.Engine.MaxItems)
	}
	if cfg.Engine.MaxCost <= 0 {
		return fmt.Errorf("max_cost must be positive, got %d", cfg.Engine.MaxCost)
	}
	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl must not be negative, got %v", cfg.Cache.TTL)
	}
	return nil
}

// validateNoSecretsInConfig rejects a database URL with an embedded password
// in the config file. The same URL is accepted from RT_DATABASE_URL.
func validateNoSecretsInConfig(configPath string) error {
	file := viper.New()
	file.SetConfigFile(configPath)
	if err := file.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if hasPassword(file.GetString("database.url")) {
		return fmt.Errorf("database credentials not allowed in config files (use RT_DATABASE_URL environment variable)")
	}
	return nil
}
