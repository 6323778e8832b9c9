// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/AleutianSheets/services/sheets"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// runServe starts the Sheets API server.
//
// Description:
//
//	Builds the service from the loaded configuration, registers the
//	HTTP routes under /v1, optionally exposes Prometheus metrics on
//	a second listener, and blocks until SIGINT or SIGTERM.
//
// Inputs:
//
//	cmd - The cobra command (unused).
//	args - Positional arguments (none).
//
// Outputs:
//
//	error - Non-nil if the service or server fails to start.
func runServe(cmd *cobra.Command, args []string) error {
	if debugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	svc, err := sheets.NewService(sheets.ServiceConfig{
		Workspace:      cfg.Workspace,
		StagedCapacity: cfg.StagedCapacity,
		PruneBoundary:  cfg.PruneBoundary,
		WatchForks:     cfg.WatchForks,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer svc.Close()

	handlers := sheets.NewHandlers(svc)

	router := gin.New()
	router.Use(gin.Recovery())
	if debugMode {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	sheets.RegisterRoutes(v1, handlers)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics listener starting", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("sheets server starting",
			"addr", cfg.ListenAddr,
			"workspace", cfg.Workspace,
			"version", sheets.ServiceVersion)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if metricsServer != nil {
		_ = metricsServer.Shutdown(ctx)
	}
	return server.Shutdown(ctx)
}
