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
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/classmap/services/classmap"
	"github.com/AleutianAI/classmap/services/classmap/snapshot"
)

// DataFileEnv names the analysis file served when --data is not given.
const DataFileEnv = "CLASSMAP_DATA_FILE"

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	data        string
	port        int
	watch       bool
	traceStdout bool
	snapshotDB  string
	analyzeRate int
	debug       bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve class graphs over HTTP",
		Long: `Serve starts the HTTP backend for graph exploration under /v1/classmap
and Prometheus metrics under /metrics.

The analysis file comes from --data or ` + DataFileEnv + `. A missing or
malformed file is logged and the server starts with an empty model.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.debug, _ = cmd.Flags().GetBool("debug")
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.data, "data", os.Getenv(DataFileEnv), "Analysis JSON file to serve")
	cmd.Flags().IntVar(&opts.port, "port", 8080, "Port to listen on")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Reload the data file when it changes")
	cmd.Flags().BoolVar(&opts.traceStdout, "trace-stdout", false, "Export trace spans to stdout")
	cmd.Flags().StringVar(&opts.snapshotDB, "snapshot-db", "", "Badger directory for snapshot endpoints")
	cmd.Flags().IntVar(&opts.analyzeRate, "analyze-rate", classmap.DefaultServiceConfig().AnalyzeRatePerMinute,
		"Analyze requests allowed per minute (0 disables the limit)")
	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	if opts.traceStdout {
		shutdown, err := setupStdoutTracing()
		if err != nil {
			return err
		}
		defer shutdown()
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	cfg := classmap.DefaultServiceConfig()
	cfg.DataFile = opts.data
	cfg.AnalyzeRatePerMinute = opts.analyzeRate

	svcOpts := []classmap.ServiceOption{classmap.WithServiceLogger(slog.Default())}
	if opts.snapshotDB != "" {
		db, err := snapshot.OpenDB(opts.snapshotDB)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				slog.Warn("Failed to close snapshot BadgerDB", slog.String("error", err.Error()))
			}
		}()
		mgr, err := snapshot.NewManager(db, slog.Default())
		if err != nil {
			return err
		}
		svcOpts = append(svcOpts, classmap.WithSnapshots(mgr))
	}

	svc := classmap.NewService(cfg, svcOpts...)
	svc.Bootstrap()

	if opts.watch && cfg.DataFile != "" {
		go func() {
			if err := svc.Watch(ctx, 0); err != nil {
				slog.Warn("Data file watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	if opts.debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.port),
		Handler:           newRouter(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting classmap server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down classmap server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newRouter builds the gin engine with tracing, metrics and API routes.
func newRouter(svc *classmap.Service) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("classmap"))
	router.Use(classmap.RequestTimer(slog.Default()))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	classmap.RegisterRoutes(v1, classmap.NewHandlers(svc))
	return router
}

// setupStdoutTracing installs a tracer provider that pretty-prints spans.
func setupStdoutTracing() (func(), error) {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating stdout exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			slog.Warn("Failed to flush traces", slog.String("error", err.Error()))
		}
	}, nil
}
