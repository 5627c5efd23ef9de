// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package upload hands evidence artifacts to the provider and waits until
// the provider has finished processing them.
package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/veragate/internal/logging"
	"github.com/pdiddy/veragate/internal/metrics"
	"github.com/pdiddy/veragate/internal/provider"
	"github.com/pdiddy/veragate/pkg/types"
)

var (
	// ErrUploadTimeout means the provider kept reporting a file as pending
	// for longer than PollConfig.MaxWait.
	ErrUploadTimeout = errors.New("upload timed out waiting for provider processing")

	// ErrProcessingFailed means the provider reported the file as failed.
	ErrProcessingFailed = errors.New("provider failed to process file")
)

// Uploader transfers artifacts and polls them to a terminal state.
type Uploader struct {
	provider provider.Provider
	poll     types.PollConfig
	metrics  *metrics.Metrics
}

// New returns an Uploader. Zero poll fields take their defaults.
func New(p provider.Provider, poll types.PollConfig, m *metrics.Metrics) *Uploader {
	poll = types.PipelineConfig{Poll: poll}.WithDefaults().Poll
	return &Uploader{provider: p, poll: poll, metrics: m}
}

// Upload transfers artifact and blocks until the provider reports it ready.
func (u *Uploader) Upload(ctx context.Context, artifact types.EvidenceArtifact) (types.ProviderHandle, error) {
	log := logging.FromContext(ctx).With(zap.String("kind", string(artifact.Kind)), zap.String("file", artifact.Name))
	start := time.Now()

	h, err := u.provider.Upload(ctx, artifact)
	if err != nil {
		return types.ProviderHandle{}, fmt.Errorf("uploading %s: %w", artifact.Name, err)
	}
	log.Info("artifact uploaded", zap.String("name", h.Name), zap.Int64("bytes", artifact.Size()))

	h, err = u.WaitReady(ctx, h)
	if err != nil {
		return types.ProviderHandle{}, fmt.Errorf("processing %s: %w", artifact.Name, err)
	}
	if h.MediaType == "" {
		h.MediaType = artifact.MediaType
	}

	u.metrics.ObserveUpload(string(artifact.Kind), time.Since(start))
	log.Info("artifact ready", zap.Duration("elapsed", time.Since(start)))
	return h, nil
}

// WaitReady queries the handle's state until it is terminal. The first
// check happens immediately; the wait between later checks starts at
// Interval and grows by Multiplier up to MaxInterval. The whole wait is
// bounded by MaxWait.
func (u *Uploader) WaitReady(ctx context.Context, h types.ProviderHandle) (types.ProviderHandle, error) {
	log := logging.FromContext(ctx).With(zap.String("name", h.Name))

	waitCtx, cancel := context.WithTimeout(ctx, u.poll.MaxWait)
	defer cancel()

	interval := u.poll.Interval
	for attempt := 1; ; attempt++ {
		current, err := u.provider.Get(waitCtx, h.Name)
		if err != nil {
			if waitCtx.Err() != nil {
				return h, u.waitErr(ctx)
			}
			return h, fmt.Errorf("checking state of %s: %w", h.Name, err)
		}
		if current.URI == "" {
			current.URI = h.URI
		}
		if current.MediaType == "" {
			current.MediaType = h.MediaType
		}
		h = current

		switch h.State {
		case types.FileReady:
			return h, nil
		case types.FileFailed:
			if h.Error != "" {
				return h, fmt.Errorf("%w: %s", ErrProcessingFailed, h.Error)
			}
			return h, ErrProcessingFailed
		}

		log.Debug("file still processing", zap.Int("attempt", attempt), zap.Duration("next_check", interval))
		select {
		case <-waitCtx.Done():
			return h, u.waitErr(ctx)
		case <-time.After(interval):
		}
		interval = nextInterval(interval, u.poll)
	}
}

// waitErr distinguishes the caller's cancellation from the poll budget
// running out.
func (u *Uploader) waitErr(parent context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w after %s", ErrUploadTimeout, u.poll.MaxWait)
}

func nextInterval(cur time.Duration, poll types.PollConfig) time.Duration {
	next := time.Duration(float64(cur) * poll.Multiplier)
	if next > poll.MaxInterval {
		return poll.MaxInterval
	}
	return next
}
