// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package invoke routes every inference call through one path that waits
// on the shared rate limiter, calls the provider, classifies a failure,
// and retries according to the calling stage's policy.
package invoke

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/veragate/internal/logging"
	"github.com/pdiddy/veragate/internal/metrics"
	"github.com/pdiddy/veragate/internal/provider"
	"github.com/pdiddy/veragate/pkg/types"
)

// Class is the retry classification of a provider failure.
type Class int

const (
	// Permanent failures abort the run immediately.
	Permanent Class = iota
	// Retryable failures may succeed on another attempt.
	Retryable
	// Canceled means the run's context ended.
	Canceled
)

func (c Class) String() string {
	switch c {
	case Retryable:
		return "retryable"
	case Canceled:
		return "canceled"
	default:
		return "permanent"
	}
}

// Classify maps an error returned by a provider call to a Class.
func Classify(err error) Class {
	if err == nil {
		return Permanent
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Canceled
	}
	if errors.Is(err, provider.ErrMissingCredential) {
		return Permanent
	}

	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode >= 500:
			return Retryable
		default:
			return Permanent
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Retryable
	}
	return Permanent
}

// Policy is a stage's retry policy.
type Policy struct {
	// MaxRetries of zero makes one attempt only.
	MaxRetries int
	// Backoff is the first delay, doubled on each further attempt.
	Backoff time.Duration
}

// PolicyFor builds a Policy from a stage configuration.
func PolicyFor(cfg types.StageConfig) Policy {
	p := Policy{MaxRetries: cfg.MaxRetries, Backoff: cfg.RetryBackoff}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.Backoff <= 0 {
		p.Backoff = types.DefaultRetryBackoff
	}
	return p
}

// Invoker wraps a Provider with rate limiting, classification and retries.
// It is safe for concurrent use by many runs.
type Invoker struct {
	provider provider.Provider
	limiter  *rate.Limiter
	metrics  *metrics.Metrics
}

// New returns an Invoker for p. A zero RequestsPerMinute disables rate
// limiting. m may be nil.
func New(p provider.Provider, rl types.RateLimitConfig, m *metrics.Metrics) *Invoker {
	inv := &Invoker{provider: p, metrics: m}
	if rl.RequestsPerMinute > 0 {
		burst := rl.Burst
		if burst <= 0 {
			burst = 1
		}
		inv.limiter = rate.NewLimiter(rate.Limit(float64(rl.RequestsPerMinute)/60.0), burst)
	}
	return inv
}

// Generate runs req for stage under policy. Only Retryable failures are
// retried; the last error is returned wrapped with the attempt count.
func (i *Invoker) Generate(ctx context.Context, stage string, policy Policy, req provider.GenerateRequest) (string, error) {
	log := logging.FromContext(ctx).With(zap.String("stage", stage), zap.String("model", req.Model))

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * policy.Backoff
			log.Warn("retrying provider call", zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		if i.limiter != nil {
			if err := i.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("waiting for rate limiter: %w", err)
			}
		}

		start := time.Now()
		text, err := i.provider.Generate(ctx, req)
		elapsed := time.Since(start)
		if err == nil {
			i.metrics.ObserveCall(stage, "ok", elapsed)
			log.Debug("provider call complete", zap.Int("attempt", attempt), zap.Duration("elapsed", elapsed), zap.Int("chars", len(text)))
			return text, nil
		}

		class := Classify(err)
		i.metrics.ObserveCall(stage, class.String(), elapsed)
		lastErr = err
		if class != Retryable {
			return "", err
		}
	}
	if policy.MaxRetries == 0 {
		return "", lastErr
	}
	return "", fmt.Errorf("after %d retries: %w", policy.MaxRetries, lastErr)
}
