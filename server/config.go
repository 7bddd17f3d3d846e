package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xraph/headless"
)

// Store drivers accepted by StoreConfig.Driver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config holds configuration for a headless Server.
type Config struct {
	// Addr is the listen address for the HTTP API. Empty disables listening;
	// the routes remain reachable through App.
	Addr string `yaml:"addr" json:"addr"`

	// BasePath is the URL prefix for all API routes.
	BasePath string `yaml:"base_path" json:"base_path"`

	// DisableRoutes skips HTTP route registration.
	// Useful when embedding the engine for background processing only.
	DisableRoutes bool `yaml:"disable_routes" json:"disable_routes"`

	// DisableMigrate disables store migration on Start.
	DisableMigrate bool `yaml:"disable_migrate" json:"disable_migrate"`

	// Store selects and configures the persistence backend.
	Store StoreConfig `yaml:"store" json:"store"`

	// Engine holds the engine-wide settings.
	Engine headless.Config `yaml:"engine" json:"engine"`
}

// StoreConfig selects a store backend.
type StoreConfig struct {
	// Driver is one of memory, postgres or redis.
	Driver string `yaml:"driver" json:"driver"`

	// DSN is the connection URL for postgres or redis.
	DSN string `yaml:"dsn" json:"dsn"`

	// Prefix namespaces redis keys. Ignored by other drivers.
	Prefix string `yaml:"prefix" json:"prefix"`
}

// DefaultConfig returns a Config backed by the memory store.
func DefaultConfig() Config {
	return Config{
		BasePath: "/api/headless",
		Store:    StoreConfig{Driver: DriverMemory},
		Engine:   headless.DefaultConfig(),
	}
}

// LoadConfig reads a YAML file over DefaultConfig.
//
//	addr: ":8080"
//	store:
//	  driver: postgres
//	  dsn: postgres://localhost:5432/headless
//	engine:
//	  concurrency: 4
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("headless/server: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML bytes over DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("headless/server: parse config: %w", err)
	}
	return cfg, nil
}
