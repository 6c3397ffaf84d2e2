// Package app wires the competition flow onto the core bot runtime:
// configuration, bootstrap, message routing and the outbound adapters.
package app

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"

	coreconfig "github.com/shmeleva/TiKGingerbreadBot/core/config"
	coredatabase "github.com/shmeleva/TiKGingerbreadBot/core/database"
)

// Config aggregates the core bot configuration with database settings.
type Config struct {
	core *coreconfig.Config
	db   coredatabase.Config
}

// LoadConfig reads the YAML file at path, overlays environment
// variables, and fills in database settings from the environment.
func LoadConfig(path string) (*Config, error) {
	core, err := coreconfig.Load(path)
	if err != nil {
		return nil, err
	}

	var db coredatabase.Config
	if err := envconfig.Process("", &db); err != nil {
		return nil, fmt.Errorf("app: failed to process database env: %w", err)
	}
	if db.Host == "" {
		db.Host = "localhost"
	}
	if db.Port == "" {
		db.Port = "5432"
	}
	if db.SSLMode == "" {
		db.SSLMode = "disable"
	}

	return &Config{core: core, db: db}, nil
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config { return c.core }

// DatabaseConfig exposes the database settings.
func (c *Config) DatabaseConfig() coredatabase.Config { return c.db }
