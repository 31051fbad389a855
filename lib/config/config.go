// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Vellum services.
//
// Configuration is loaded from a single YAML file specified by:
//   - VELLUM_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. The file may contain
// environment-specific sections (development, staging, production)
// that override base values when the environment matches; individual
// environment variables never override file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the master configuration for a Vellum document service.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Domain is the event and partition namespace, normally "document".
	Domain string `yaml:"domain"`

	// Store configures the object store.
	Store StoreConfig `yaml:"store"`

	// Pipeline configures content processing.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Workflow configures the workflow engine.
	Workflow WorkflowConfig `yaml:"workflow"`

	// Per-environment overrides, applied after the base values.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the fields that can be overridden per
// environment.
type Overrides struct {
	Store    *StoreConfig    `yaml:"store,omitempty"`
	Pipeline *PipelineConfig `yaml:"pipeline,omitempty"`
	Workflow *WorkflowConfig `yaml:"workflow,omitempty"`
}

// StoreConfig configures the object store.
type StoreConfig struct {
	// StagingRetentionHours is how long staged content survives
	// before the retention sweep collects it. Default: 48.
	StagingRetentionHours int `yaml:"staging_retention_hours"`

	// ArchiveRetentionYears is the compliance retention recorded on
	// archive partitions. Default: 7.
	ArchiveRetentionYears int `yaml:"archive_retention_years"`

	// CapacityBytes bounds total stored bytes. Zero means unbounded.
	CapacityBytes int64 `yaml:"capacity_bytes"`

	// SweepInterval is how often the staging retention sweep runs,
	// as a Go duration string. Default: "1h".
	SweepInterval string `yaml:"sweep_interval"`
}

// PipelineConfig configures content processing.
type PipelineConfig struct {
	// VirusScan toggles the virus_scan stage. Default: true.
	VirusScan *bool `yaml:"virus_scan"`

	// Validation toggles the format_validation stage. Default: true.
	Validation *bool `yaml:"validation"`

	// AutoPromote toggles automatic promotion of clean content out of
	// staging. Default: true.
	AutoPromote *bool `yaml:"auto_promote"`

	// MaxConcurrent bounds the number of jobs processed in parallel.
	// Default: 4.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// WorkflowConfig configures the workflow engine.
type WorkflowConfig struct {
	// ChainDatabase is the SQLite file holding event integrity
	// chains. Empty selects the in-memory store.
	ChainDatabase string `yaml:"chain_database"`

	// PoolSize is the chain database connection pool size.
	// Default: 4.
	PoolSize int `yaml:"pool_size"`
}

// VirusScanEnabled resolves the virus_scan toggle.
func (p PipelineConfig) VirusScanEnabled() bool { return p.VirusScan == nil || *p.VirusScan }

// ValidationEnabled resolves the format_validation toggle.
func (p PipelineConfig) ValidationEnabled() bool { return p.Validation == nil || *p.Validation }

// AutoPromoteEnabled resolves the auto-promotion toggle.
func (p PipelineConfig) AutoPromoteEnabled() bool { return p.AutoPromote == nil || *p.AutoPromote }

// StagingRetention returns the staging retention as a duration.
func (s StoreConfig) StagingRetention() time.Duration {
	return time.Duration(s.StagingRetentionHours) * time.Hour
}

// SweepEvery returns the parsed sweep interval. Validate has already
// checked that the string parses.
func (s StoreConfig) SweepEvery() time.Duration {
	d, err := time.ParseDuration(s.SweepInterval)
	if err != nil {
		return time.Hour
	}
	return d
}

// Default returns the default configuration. The defaults make every
// field usable without a file; Load still requires an explicit file so
// that deployments stay auditable.
func Default() *Config {
	return &Config{
		Environment: Development,
		Domain:      "document",
		Store: StoreConfig{
			StagingRetentionHours: 48,
			ArchiveRetentionYears: 7,
			SweepInterval:         "1h",
		},
		Pipeline: PipelineConfig{
			MaxConcurrent: 4,
		},
		Workflow: WorkflowConfig{
			PoolSize: 4,
		},
	}
}

// Load loads configuration from the VELLUM_CONFIG environment
// variable. If VELLUM_CONFIG is not set, this fails; there are no
// fallback locations.
func Load() (*Config, error) {
	path := os.Getenv("VELLUM_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("VELLUM_CONFIG environment variable not set; " +
			"set it to the path of your vellum.yaml config file, or use --config flag")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merging it
// over the defaults and applying the matching environment section.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if o := overrides.Store; o != nil {
		if o.StagingRetentionHours != 0 {
			c.Store.StagingRetentionHours = o.StagingRetentionHours
		}
		if o.ArchiveRetentionYears != 0 {
			c.Store.ArchiveRetentionYears = o.ArchiveRetentionYears
		}
		if o.CapacityBytes != 0 {
			c.Store.CapacityBytes = o.CapacityBytes
		}
		if o.SweepInterval != "" {
			c.Store.SweepInterval = o.SweepInterval
		}
	}
	if o := overrides.Pipeline; o != nil {
		if o.VirusScan != nil {
			c.Pipeline.VirusScan = o.VirusScan
		}
		if o.Validation != nil {
			c.Pipeline.Validation = o.Validation
		}
		if o.AutoPromote != nil {
			c.Pipeline.AutoPromote = o.AutoPromote
		}
		if o.MaxConcurrent != 0 {
			c.Pipeline.MaxConcurrent = o.MaxConcurrent
		}
	}
	if o := overrides.Workflow; o != nil {
		if o.ChainDatabase != "" {
			c.Workflow.ChainDatabase = o.ChainDatabase
		}
		if o.PoolSize != 0 {
			c.Workflow.PoolSize = o.PoolSize
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Domain == "" {
		errs = append(errs, fmt.Errorf("domain is required"))
	}
	if c.Store.StagingRetentionHours <= 0 {
		errs = append(errs, fmt.Errorf("store.staging_retention_hours must be positive"))
	}
	if c.Store.ArchiveRetentionYears <= 0 {
		errs = append(errs, fmt.Errorf("store.archive_retention_years must be positive"))
	}
	if c.Store.CapacityBytes < 0 {
		errs = append(errs, fmt.Errorf("store.capacity_bytes must not be negative"))
	}
	if d, err := time.ParseDuration(c.Store.SweepInterval); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("store.sweep_interval must be a positive duration"))
	}
	if c.Pipeline.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_concurrent must be positive"))
	}
	if c.Workflow.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("workflow.pool_size must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
