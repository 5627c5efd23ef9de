// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/veragate/internal/invoke"
	"github.com/pdiddy/veragate/internal/logging"
	"github.com/pdiddy/veragate/internal/metrics"
	"github.com/pdiddy/veragate/internal/provider"
	"github.com/pdiddy/veragate/pkg/types"
)

// Watcher is the extraction stage: one call to the fast model with the
// video and WatcherPrompt.
type Watcher struct {
	inv    *invoke.Invoker
	model  string
	policy invoke.Policy
}

// NewWatcher returns the extraction stage for cfg.
func NewWatcher(inv *invoke.Invoker, cfg types.StageConfig) *Watcher {
	return &Watcher{inv: inv, model: cfg.Model, policy: invoke.PolicyFor(cfg)}
}

// Extract returns the model's free-form observations, or "" when the
// provider returned no text.
func (w *Watcher) Extract(ctx context.Context, video types.ProviderHandle) (string, error) {
	text, err := w.inv.Generate(ctx, string(types.AgentWatcher), w.policy, provider.GenerateRequest{
		Model:  w.model,
		File:   video,
		Prompt: WatcherPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("video analysis: %w", err)
	}
	return text, nil
}

// Auditor is the correlation stage: one call to the deliberative model with
// the document, the watcher output and AuditorPrompt.
type Auditor struct {
	inv     *invoke.Invoker
	model   string
	policy  invoke.Policy
	metrics *metrics.Metrics
}

// NewAuditor returns the correlation stage for cfg.
func NewAuditor(inv *invoke.Invoker, cfg types.StageConfig, m *metrics.Metrics) *Auditor {
	return &Auditor{inv: inv, model: cfg.Model, policy: invoke.PolicyFor(cfg), metrics: m}
}

// Correlate returns the raw structured response. Reasoning is requested at
// the highest level and the response is constrained to JSON.
func (a *Auditor) Correlate(ctx context.Context, doc types.ProviderHandle, extraction string) (string, error) {
	text, err := a.inv.Generate(ctx, string(types.AgentAuditor), a.policy, provider.GenerateRequest{
		Model:         a.model,
		File:          doc,
		Prompt:        AuditorInput(extraction),
		JSONOutput:    true,
		ThinkingLevel: provider.ThinkingHigh,
	})
	if err != nil {
		return "", fmt.Errorf("forensic audit: %w", err)
	}
	return text, nil
}

// Interpret decodes the auditor response. When it cannot be decoded the
// default result is returned with fallback set, and the event is logged
// and counted.
func (a *Auditor) Interpret(ctx context.Context, text string) (result types.AuditResult, fallback bool) {
	log := logging.FromContext(ctx).With(zap.String("stage", string(types.AgentAuditor)))

	result, err := ParseAuditResult(text)
	if err != nil {
		a.metrics.ParseFallback()
		log.Warn("auditor response unparseable, using default result",
			zap.Error(err),
			zap.Int("chars", len(text)),
			zap.String("prefix", prefix(text, 200)))
		return types.DefaultAuditResult(), true
	}

	if err := CheckSchema(text); err != nil {
		log.Warn("auditor response deviates from expected shape", zap.String("detail", err.Error()))
	}
	for _, c := range result.Contradictions {
		a.metrics.CountContradiction(string(c.Severity))
	}
	return result, false
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
