// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/veragate/internal/archive"
	"github.com/pdiddy/veragate/internal/audit"
	"github.com/pdiddy/veragate/internal/metrics"
	"github.com/pdiddy/veragate/internal/provider"
	"github.com/pdiddy/veragate/internal/runstore"
)

// newPipeline builds a pipeline over the Gemini client with the optional
// evidence archive attached.
func newPipeline(ctx context.Context, m *metrics.Metrics) (*audit.Pipeline, error) {
	cfg := appCfg.Pipeline
	gemini := provider.NewGemini(cfg.Provider, &http.Client{Timeout: cfg.Provider.Timeout})
	if !gemini.HasCredential() {
		logger.Warn("no Gemini credential configured; runs will fail",
			zap.String("env", "GEMINI_API_KEY"))
	}

	opts := audit.Options{Metrics: m}
	if appCfg.Archive.Endpoint != "" {
		arch, err := archive.New(appCfg.Archive)
		if err != nil {
			return nil, err
		}
		if err := arch.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		logger.Info("archiving evidence",
			zap.String("endpoint", appCfg.Archive.Endpoint),
			zap.String("bucket", arch.Bucket()))
		opts.Archiver = arch
	}
	return audit.NewPipeline(cfg, gemini, opts), nil
}

// openStore opens the run history database, or returns nil when history
// is disabled. A --store flag on cmd overrides the configured path.
func openStore(cmd *cobra.Command) (*runstore.Store, error) {
	cfg := appCfg.Store
	if f := cmd.Flags().Lookup("store"); f != nil && f.Changed {
		cfg.Path = f.Value.String()
	}
	if cfg.Path == "" {
		return nil, nil
	}
	return runstore.Open(cfg)
}
