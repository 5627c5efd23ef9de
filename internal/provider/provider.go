// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provider talks to the hosted multimodal model: it stores
// evidence files, reports their processing state, and runs inference
// calls that reference them.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/veragate/pkg/types"
)

// ErrMissingCredential is returned when no API key has been configured.
// The message matches what users see in the error frame.
var ErrMissingCredential = errors.New("GEMINI_API_KEY environment variable is not set")

// ThinkingHigh asks the model for its deepest reasoning budget.
const ThinkingHigh = "HIGH"

// Provider abstracts the hosted model so the pipeline can run against a
// fake in tests.
type Provider interface {
	// Upload transfers an artifact to provider storage and returns its
	// handle. The handle is usually still pending.
	Upload(ctx context.Context, artifact types.EvidenceArtifact) (types.ProviderHandle, error)

	// Get returns the current state of a previously uploaded file.
	Get(ctx context.Context, name string) (types.ProviderHandle, error)

	// Generate runs one inference call and returns the concatenated
	// answer text. Reasoning parts are not included.
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GenerateRequest is one inference call against a single uploaded file.
type GenerateRequest struct {
	Model  string
	File   types.ProviderHandle
	Prompt string

	// JSONOutput requests an application/json response body.
	JSONOutput bool

	// ThinkingLevel is passed through when non-empty (e.g. ThinkingHigh).
	ThinkingLevel string
}

// APIError is a non-success HTTP response from the provider.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: provider returned %d: %s", e.Op, e.StatusCode, e.Body)
}
