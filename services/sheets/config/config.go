// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config provides configuration loading for the sheets service.
//
// Thread Safety:
//
//	All exported functions are safe for concurrent use.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gopkg.in/yaml.v3"
)

// MaxYAMLFileSize is the maximum allowed YAML file size (1MB).
// Prevents memory issues from large files.
const MaxYAMLFileSize = 1024 * 1024

var (
	configLoadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sheets_config_load_errors_total",
		Help: "Total configuration load errors",
	})

	configLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sheets_config_load_duration_seconds",
		Help:    "Duration of configuration loading",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5},
	})
)

// Config is the sheets service configuration.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string `yaml:"listen_addr"`

	// MetricsAddr is the Prometheus /metrics listen address.
	// Empty disables the metrics endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	// Workspace is the directory holding fork copies and checkpoints.
	Workspace string `yaml:"workspace"`

	// StagedCapacity bounds the per-fork staged-change log.
	StagedCapacity int `yaml:"staged_capacity"`

	// PruneBoundary is "inclusive" or "exclusive"; see the checkpoint
	// manager for semantics.
	PruneBoundary string `yaml:"prune_boundary"`

	// WatchForks enables out-of-band modification detection.
	WatchForks bool `yaml:"watch_forks"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:     ":8085",
		MetricsAddr:    ":9090",
		Workspace:      "./workspace",
		StagedCapacity: 20,
		PruneBoundary:  "inclusive",
		LogLevel:       "info",
	}
}

// Load reads a YAML configuration file, filling unset fields from
// Default. An empty path returns Default unchanged.
func Load(path string) (Config, error) {
	start := time.Now()
	defer func() { configLoadDuration.Observe(time.Since(start).Seconds()) }()

	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		configLoadErrors.Inc()
		return Config{}, fmt.Errorf("config file %s: %w", path, err)
	}
	if info.Size() > MaxYAMLFileSize {
		configLoadErrors.Inc()
		return Config{}, fmt.Errorf("config file %s exceeds %d bytes", path, MaxYAMLFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		configLoadErrors.Inc()
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		configLoadErrors.Inc()
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		configLoadErrors.Inc()
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Workspace == "" {
		return fmt.Errorf("workspace must not be empty")
	}
	if c.StagedCapacity < 1 {
		return fmt.Errorf("staged_capacity must be at least 1, got %d", c.StagedCapacity)
	}
	switch c.PruneBoundary {
	case "inclusive", "exclusive":
	default:
		return fmt.Errorf("prune_boundary must be inclusive or exclusive, got %q", c.PruneBoundary)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return nil
}
