// Package config provides configuration types and loading for the
// logtx CLI: reader controls, dispatch policy, and logging setup.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Common errors for configuration loading.
var (
	ErrFileNotFound = errors.New("configuration file not found")
	ErrInvalidYAML  = errors.New("invalid YAML syntax")
	ErrEmptyFile    = errors.New("configuration file is empty")
)

// Config is the top-level logtx configuration.
type Config struct {
	Reader   ReaderConfig   `yaml:"reader"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Logging  LoggingConfig  `yaml:"logging"`
	History  HistoryConfig  `yaml:"history"`
}

// ReaderConfig mirrors the fragment-source controls.
type ReaderConfig struct {
	// Source is a path to a persisted fragment dump to replay instead
	// of reading live.
	Source string `yaml:"source,omitempty"`

	SkipFirst int `yaml:"skipFirst,omitempty"`
	StopAfter int `yaml:"stopAfter,omitempty"`

	IncludeTag        string `yaml:"includeTag,omitempty"`
	ExcludeTag        string `yaml:"excludeTag,omitempty"`
	IncludeTagPattern string `yaml:"includeTagPattern,omitempty"`
	ExcludeTagPattern string `yaml:"excludeTagPattern,omitempty"`
	IgnoreCase        bool   `yaml:"ignoreCase,omitempty"`
}

// DispatchConfig selects the delivery policy and transaction filters.
type DispatchConfig struct {
	// Aggregate delivers only client transactions, with backends
	// attached by reference. Defaults to true.
	Aggregate *bool `yaml:"aggregate,omitempty"`

	// PayloadPattern includes only transactions with a fragment
	// payload matching this regular expression.
	PayloadPattern string `yaml:"payloadPattern,omitempty"`

	// FilterExpr is a boolean expression over transaction fields,
	// e.g. "status >= 500 && !hit".
	FilterExpr string `yaml:"filterExpr,omitempty"`
}

// LoggingConfig configures the operational logger.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// HistoryConfig bounds the in-memory transaction history.
type HistoryConfig struct {
	// MaxEntries caps retained transactions. Zero uses the default.
	MaxEntries int `yaml:"maxEntries,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	aggregate := true
	return &Config{
		Dispatch: DispatchConfig{Aggregate: &aggregate},
	}
}

// Aggregate resolves the delivery policy, defaulting to true.
func (c *DispatchConfig) AggregateOrDefault() bool {
	if c.Aggregate == nil {
		return true
	}
	return *c.Aggregate
}

// LoadFromFile reads a Config from a YAML file.
// Returns wrapped errors for common failure cases.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges; pattern compilation is deferred to the
// components that own the patterns.
func (c *Config) Validate() error {
	if c.Reader.SkipFirst < 0 {
		return fmt.Errorf("reader.skipFirst must not be negative, got %d", c.Reader.SkipFirst)
	}
	if c.Reader.StopAfter < 0 {
		return fmt.Errorf("reader.stopAfter must not be negative, got %d", c.Reader.StopAfter)
	}
	if c.History.MaxEntries < 0 {
		return fmt.Errorf("history.maxEntries must not be negative, got %d", c.History.MaxEntries)
	}
	return nil
}
