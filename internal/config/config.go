// Package config loads the optional YAML run configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tt-analysis/internal/optimizer"
)

// Config is the run configuration. Zero fields fall back to defaults.
type Config struct {
	Constants Constants `yaml:"constants"`
	Storage   Storage   `yaml:"storage"`
	OutputDir string    `yaml:"output_dir"`
	KeepGoing bool      `yaml:"keep_going"`
	Verbose   bool      `yaml:"verbose"`
}

// Constants overrides the optimizer's model constants.
type Constants struct {
	BlockSize          float64 `yaml:"block_size"`
	BlocksPerYear      float64 `yaml:"blocks_per_year"`
	SatoshisPerBitcoin float64 `yaml:"satoshis_per_bitcoin"`
	Iterations         int     `yaml:"iterations"`
}

// Storage selects where results are persisted in addition to the output CSV.
type Storage struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	d := optimizer.DefaultConfig()
	return &Config{
		Constants: Constants{
			BlockSize:          d.BlockSize,
			BlocksPerYear:      d.BlocksPerYear,
			SatoshisPerBitcoin: d.SatoshisPerBitcoin,
			Iterations:         d.Iterations,
		},
		OutputDir: ".",
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.Optimizer().Validate(); err != nil {
		return fmt.Errorf("constants: %w", err)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}
	return nil
}

// Optimizer returns the optimizer constants.
func (c *Config) Optimizer() optimizer.Config {
	return optimizer.Config{
		BlockSize:          c.Constants.BlockSize,
		BlocksPerYear:      c.Constants.BlocksPerYear,
		SatoshisPerBitcoin: c.Constants.SatoshisPerBitcoin,
		Iterations:         c.Constants.Iterations,
	}
}
