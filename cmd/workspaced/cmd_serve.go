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
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/workspaced/pkg/logging"
	"github.com/AleutianAI/workspaced/services/workspaced"
	"github.com/AleutianAI/workspaced/services/workspaced/config"
	"github.com/AleutianAI/workspaced/services/workspaced/telemetry"
)

// shutdownTimeout bounds graceful shutdown after a signal.
const shutdownTimeout = 15 * time.Second

// runServe starts the HTTP server and blocks until SIGINT or SIGTERM.
//
// Description:
//
//	Wires logging, telemetry, the host and the routes, opens the
//	workspaces named by --workspace, and optionally watches --config.
//	On signal, stops accepting requests, then shuts the host down.
func runServe(cmd *cobra.Command, opts *options) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, opts, cmd.ErrOrStderr(), logging.LevelInfo)
	if err != nil {
		return err
	}
	logger := a.logger.Slog()
	slog.SetDefault(logger)

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = workspaced.ServiceVersion
	shutdownTelemetry, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		a.close(context.Background())
		return fmt.Errorf("init telemetry: %w", err)
	}

	for _, root := range opts.workspaces {
		if _, err := a.host.AddInstance(ctx, root, nil, nil); err != nil {
			logger.Warn("Cannot open workspace",
				slog.String("root", root),
				slog.String("error", err.Error()),
			)
		}
	}

	if opts.watch && opts.configPath != "" {
		w, err := config.Watch(ctx, opts.configPath, func(doc config.Document) {
			changed, err := a.host.ReloadGlobal(doc)
			if err != nil {
				logger.Warn("Config reload rejected", slog.String("error", err.Error()))
				return
			}
			logger.Info("Config reloaded", slog.Int("changed", changed))
		})
		if err != nil {
			logger.Warn("Cannot watch config", slog.String("error", err.Error()))
		} else {
			defer w.Stop()
		}
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.port),
		Handler:           newRouter(a.host, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting workspaced server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down workspaced server")
	case err = <-serveErr:
		if err != nil {
			logger.Error("Server failed", slog.String("error", err.Error()))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("HTTP shutdown failed", slog.String("error", serr.Error()))
	}
	a.close(shutdownCtx)
	if terr := shutdownTelemetry(shutdownCtx); terr != nil {
		logger.Warn("Telemetry shutdown failed", slog.String("error", terr.Error()))
	}
	return err
}

// newRouter builds the gin engine with request tracing, the workspaced
// routes under /v1 and the Prometheus scrape endpoint when enabled.
func newRouter(host *workspaced.Host, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware(serviceName), requestLogger(logger))

	v1 := router.Group("/v1")
	workspaced.RegisterRoutes(v1, workspaced.NewHandlers(host))

	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}
	return router
}

// requestLogger logs each request at debug level.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
