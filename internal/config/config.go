// Package config contains configuration parsing for the membership service.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config contains the runtime parameters of the membership service.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	// ArrearsAsOf optionally pins the instant arrears are computed against
	// (RFC 3339). When empty the live clock is used.
	ArrearsAsOf string `env:"ARREARS_AS_OF"`
}

// Parse reads the configuration from command-line flags and environment
// variables. Environment variables take precedence over flags.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envArrearsAsOf := cfg.ArrearsAsOf

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.ArrearsAsOf, "t", "", "fixed RFC 3339 instant for arrears computation")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envArrearsAsOf != "" {
		cfg.ArrearsAsOf = envArrearsAsOf
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if _, err := cfg.ArrearsClock(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ArrearsClock returns the clock the dues ledger should use: the live clock,
// or a clock pinned to ArrearsAsOf when it is set.
func (c *Config) ArrearsClock() (func() time.Time, error) {
	if c.ArrearsAsOf == "" {
		return time.Now, nil
	}

	pinned, err := time.Parse(time.RFC3339, c.ArrearsAsOf)
	if err != nil {
		return nil, fmt.Errorf("parse arrears instant: %w", err)
	}
	return func() time.Time { return pinned }, nil
}
