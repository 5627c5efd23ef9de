// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/veragate/internal/metrics"
	"github.com/pdiddy/veragate/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the streaming analysis API",
	Long: `Serve listens for multipart submissions on POST /api/analyze and answers
each with a text/event-stream of status, thinking, result and error events.
Run history is exposed on /api/runs when a store path is configured, and
Prometheus metrics on /metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	serveCmd.Flags().String("store", "", "SQLite run history file (empty disables history)")
	serveCmd.Flags().Duration("grace", 30*time.Second, "time allowed for in-flight streams on shutdown")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	pipeline, err := newPipeline(ctx, m)
	if err != nil {
		return err
	}

	opts := server.Options{Metrics: m, Logger: logger, Version: version}
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		opts.Store = store
	}

	grace, _ := cmd.Flags().GetDuration("grace")
	return server.New(appCfg.Server, pipeline, opts).ListenAndServe(ctx, grace)
}
