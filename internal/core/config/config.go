// Package config provides configuration management for ruletree services.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/solatis/ruletree/internal/types"
)

// Config holds configuration for the ruletree server and CLI.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Log      LogConfig
	Engine   EngineConfig
	Cache    CacheConfig
}

// ServerConfig holds listener settings for the gRPC and HTTP transports.
type ServerConfig struct {
	Host           string
	GRPCPort       int
	HTTPPort       int
	RequestTimeout time.Duration
}

// DatabaseConfig holds the connection URL (sqlite://path or postgres://...).
type DatabaseConfig struct {
	URL string
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

// EngineConfig bounds the work a single evaluation or stored tree may cost.
type EngineConfig struct {
	MaxItems int
	MaxCost  int
}

// CacheConfig controls the materialized rule cache.
type CacheConfig struct {
	TTL time.Duration
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			GRPCPort:       50051,
			HTTPPort:       8080,
			RequestTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{URL: "sqlite://./data/ruletree.db"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Engine: EngineConfig{
			MaxItems: types.DefaultMaxItems,
			MaxCost:  types.DefaultMaxCost,
		},
		Cache: CacheConfig{TTL: 5 * time.Minute},
	}
}

// GRPCAddr returns the gRPC listen address.
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

// HTTPAddr returns the HTTP listen address.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HTTPPort)
}

// hasPassword reports whether a database URL embeds a password.
// Unparseable URLs are not secrets; db.Open rejects them later.
func hasPassword(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return false
	}
	_, ok := u.User.Password()
	return ok
}
