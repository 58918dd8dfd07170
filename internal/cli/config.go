// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-certslot.
//
// go-certslot is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"fmt"
	"io"

	"github.com/jeremyhahn/go-certslot/internal/config"
	"github.com/jeremyhahn/go-certslot/pkg/logging"
	"github.com/jeremyhahn/go-certslot/pkg/metrics"
)

// Config holds global CLI configuration
type Config struct {
	// ConfigFile is the path to the YAML configuration file
	ConfigFile string

	// OutputFormat controls output formatting (json, text, table)
	OutputFormat string

	// LogLevel overrides logging.level from the configuration file
	LogLevel string

	// DataDir overrides storage.path from the configuration file
	DataDir string

	// Verbose enables verbose logging
	Verbose bool
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		ConfigFile:   "certslot.yaml",
		OutputFormat: "text",
	}
}

// Load reads the configuration file and applies the command line overrides.
func (c *Config) Load() (*config.Config, error) {
	cfg, err := config.Load(c.ConfigFile)
	if err != nil {
		return nil, err
	}
	if err := c.apply(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) apply(cfg *config.Config) error {
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}
	if c.Verbose {
		cfg.Logging.Level = "debug"
	}
	if c.DataDir != "" {
		cfg.Storage.Path = c.DataDir
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// OpenEngine builds the engine for cfg, logging to w.
func OpenEngine(cfg *config.Config, w io.Writer) (*Engine, *logging.Logger, error) {
	if cfg.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}
	log := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, w)
	engine, err := NewEngine(cfg, log.Adapter())
	if err != nil {
		return nil, nil, err
	}
	return engine, log, nil
}
