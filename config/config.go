// Package config loads the YAML configuration of the timer subsystem and the
// simulator.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	yaml "go.yaml.in/yaml/v3"

	"hvtimer/core"
)

// Config is the top-level configuration document.
type Config struct {
	// CPUs is the number of per-core timer queues.
	CPUs int `yaml:"cpus"`

	// Margin is the fire-time window in ticks. nil means core.DefaultMargin;
	// an explicit 0 disables the window.
	Margin *uint64 `yaml:"margin"`

	// NextDeadline is "minimum" or "last_observed".
	NextDeadline string `yaml:"next_deadline"`

	Log LogConfig `yaml:"log"`
}

// LogConfig selects level, format and sink of the logger.
type LogConfig struct {
	Level  string     `yaml:"level"`
	Format string     `yaml:"format"` // "console" or "json"
	UART   UARTConfig `yaml:"uart"`
}

// UARTConfig sends log output to a serial port when Device is set.
type UARTConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	applyDefaults(c)
	return c
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML document. Unknown keys are rejected. An empty
// document yields the defaults.
func Parse(data []byte) (*Config, error) {
	var c Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("yaml decode: %w", err)
	}

	applyDefaults(&c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// applyDefaults fills in missing configuration values with sensible defaults
func applyDefaults(c *Config) {
	if c.CPUs == 0 {
		c.CPUs = 4
	}
	if c.Margin == nil {
		m := uint64(core.DefaultMargin)
		c.Margin = &m
	}
	if c.NextDeadline == "" {
		c.NextDeadline = core.NextDeadlineMinimum.String()
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.UART.Device != "" && c.Log.UART.Baud == 0 {
		c.Log.UART.Baud = 115200
	}
}

// Validate checks the document against the timer subsystem's constraints.
func (c *Config) Validate() error {
	tc, err := c.Timers()
	if err != nil {
		return err
	}
	if err := tc.Validate(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// Timers converts the document into the subsystem configuration.
func (c *Config) Timers() (core.Config, error) {
	policy, err := core.ParseNextDeadlinePolicy(c.NextDeadline)
	if err != nil {
		return core.Config{}, err
	}
	tc := core.DefaultConfig(c.CPUs)
	if c.Margin != nil {
		tc.Margin = core.Ticks(*c.Margin)
	}
	tc.Policy = policy
	return tc, nil
}
