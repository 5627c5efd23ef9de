// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/pdiddy/veragate/pkg/types"
)

// MockProvider implements Provider with scripted behavior for tests and
// dry runs. Uploaded files become ready after PendingPolls Get calls
// unless FailFiles names them.
type MockProvider struct {
	mu sync.Mutex

	// Responses maps a model name to the text Generate returns.
	Responses map[string]string

	// GenerateErrors are returned by successive Generate calls; a nil
	// entry lets that call succeed.
	GenerateErrors []error

	UploadErr error
	GetErr    error

	// PendingPolls is how many Get calls report pending before ready.
	// Negative keeps files pending forever.
	PendingPolls int

	// FailFiles lists display names whose processing fails.
	FailFiles map[string]bool

	Uploads       []types.EvidenceArtifact
	GetCalls      int
	Requests      []GenerateRequest
	generateCalls int
	polls         map[string]int
	names         map[string]string
}

// NewMockProvider returns a MockProvider whose files are ready on the
// first check and whose models answer with responses.
func NewMockProvider(responses map[string]string) *MockProvider {
	return &MockProvider{Responses: responses}
}

func (m *MockProvider) Upload(ctx context.Context, artifact types.EvidenceArtifact) (types.ProviderHandle, error) {
	if err := ctx.Err(); err != nil {
		return types.ProviderHandle{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UploadErr != nil {
		return types.ProviderHandle{}, m.UploadErr
	}
	m.Uploads = append(m.Uploads, artifact)
	if m.names == nil {
		m.names = make(map[string]string)
	}
	name := fmt.Sprintf("files/mock-%d", len(m.Uploads))
	m.names[name] = artifact.Name
	return types.ProviderHandle{
		Name:      name,
		URI:       "mock://" + name,
		MediaType: artifact.MediaType,
		State:     types.FilePending,
	}, nil
}

func (m *MockProvider) Get(ctx context.Context, name string) (types.ProviderHandle, error) {
	if err := ctx.Err(); err != nil {
		return types.ProviderHandle{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls++
	if m.GetErr != nil {
		return types.ProviderHandle{}, m.GetErr
	}
	display, ok := m.names[name]
	if !ok {
		return types.ProviderHandle{}, &APIError{Op: "getting file", StatusCode: 404, Body: "not found: " + name}
	}
	if m.polls == nil {
		m.polls = make(map[string]int)
	}
	m.polls[name]++

	h := types.ProviderHandle{Name: name, URI: "mock://" + name, State: types.FilePending}
	switch {
	case m.FailFiles[display]:
		h.State = types.FileFailed
		h.Error = "unsupported media"
	case m.PendingPolls >= 0 && m.polls[name] > m.PendingPolls:
		h.State = types.FileReady
	}
	return h, nil
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.generateCalls
	m.generateCalls++
	m.Requests = append(m.Requests, req)
	if idx < len(m.GenerateErrors) && m.GenerateErrors[idx] != nil {
		return "", m.GenerateErrors[idx]
	}
	return m.Responses[req.Model], nil
}

// GenerateCalls returns how many Generate calls were made.
func (m *MockProvider) GenerateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generateCalls
}
