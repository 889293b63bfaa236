// Package config loads process configuration: defaults, then an optional
// YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

var validate = validator.New()

// Config is the process configuration.
type Config struct {
	Environment string `yaml:"environment" validate:"oneof=development production test"`
	ListenAddr  string `yaml:"listen_addr" validate:"required"`
	// DatabaseURL is optional; without it workflows are not persisted.
	DatabaseURL string `yaml:"database_url"`
	// CatalogPath overrides the built-in algorithm catalog.
	CatalogPath string `yaml:"catalog_path"`
	LogLevel    string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Environment: Development,
		ListenAddr:  ":3000",
		LogLevel:    "info",
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	for name, field := range map[string]*string{
		"MLGRAPH_ENV":         &c.Environment,
		"DATABASE_URL":        &c.DatabaseURL,
		"MLGRAPH_LISTEN_ADDR": &c.ListenAddr,
		"MLGRAPH_CATALOG":     &c.CatalogPath,
		"MLGRAPH_LOG_LEVEL":   &c.LogLevel,
	} {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}
}

// Logger builds a production logger in production and a development logger
// otherwise, at the configured level.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("config: log level: %w", err)
	}

	zc := zap.NewDevelopmentConfig()
	if c.Environment == Production {
		zc = zap.NewProductionConfig()
	}
	zc.Level = level
	return zc.Build()
}
