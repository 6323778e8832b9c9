// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command sheets starts the Aleutian Sheets API server and offers
// one-shot workbook utilities.
//
// Aleutian Sheets provides workbook versioning and transformation:
//   - Fork and checkpoint lifecycle for xlsx workbooks
//   - Formula pattern filling with reference shifting
//   - Structured diffs between workbook states
//   - Style batch application with format interning
//
// Usage:
//
//	go run ./cmd/sheets serve
//	go run ./cmd/sheets serve --config sheets.yaml
//	go run ./cmd/sheets shift "=A1+B1" --cols 1 --rows 2
//	go run ./cmd/sheets diff old.xlsx new.xlsx
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8085/v1/sheets/health
//
//	# Create a fork
//	curl -X POST http://localhost:8085/v1/sheets/forks \
//	  -H "Content-Type: application/json" \
//	  -d '{"base_path": "/path/to/book.xlsx"}'
package main

import (
	"log/slog"
	"os"

	"github.com/AleutianAI/AleutianSheets/pkg/logging"
	"github.com/AleutianAI/AleutianSheets/services/sheets/config"
	"github.com/spf13/cobra"
)

var (
	cfg       config.Config
	logger    *slog.Logger
	logClose  func() error
	cfgPath   string
	logLevel  string
	debugMode bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug mode")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if debugMode {
			cfg.LogLevel = "debug"
		}
		logger, logClose, err = logging.New(logging.Config{
			Level:   cfg.LogLevel,
			Service: "sheets",
		})
		return err
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if logClose != nil {
			return logClose()
		}
		return nil
	}
}
