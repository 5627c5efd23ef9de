// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/segmentio/encoding/json"

	"github.com/pdiddy/veragate/internal/httputil"
	"github.com/pdiddy/veragate/pkg/types"
)

// maxErrorBody bounds how much of an error response is kept in APIError.
const maxErrorBody = 4096

// Gemini is the REST client for the Gemini API files and generateContent
// endpoints.
type Gemini struct {
	cfg    types.ProviderConfig
	client *http.Client
}

// NewGemini returns a client for cfg. A nil client gets one with
// cfg.Timeout applied.
func NewGemini(cfg types.ProviderConfig, client *http.Client) *Gemini {
	if cfg.BaseURL == "" {
		cfg.BaseURL = types.DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Gemini{cfg: cfg, client: client}
}

// HasCredential reports whether an API key is configured.
func (g *Gemini) HasCredential() bool {
	return g.cfg.APIKey != ""
}

type geminiFile struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	State    string `json:"state"`
	Error    *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (f geminiFile) handle() types.ProviderHandle {
	h := types.ProviderHandle{
		Name:      f.Name,
		URI:       f.URI,
		MediaType: f.MimeType,
		State:     mapState(f.State),
	}
	if f.Error != nil {
		h.Error = f.Error.Message
	}
	return h
}

// mapState folds Gemini file states onto the three readiness states. Only
// PROCESSING keeps a file pending; any state other than FAILED, including
// STATE_UNSPECIFIED or none, ends polling and the file is used as is.
func mapState(s string) types.FileState {
	switch s {
	case "PROCESSING":
		return types.FilePending
	case "FAILED":
		return types.FileFailed
	default:
		return types.FileReady
	}
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"fileData,omitempty"`
	Thought  bool      `json:"thought,omitempty"`
}

type fileData struct {
	FileURI  string `json:"fileUri"`
	MimeType string `json:"mimeType"`
}

type generationConfig struct {
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ThinkingConfig   *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type thinkingConfig struct {
	ThinkingLevel string `json:"thinkingLevel"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// Upload performs a resumable upload in two requests: a start request that
// returns the session URL and a single upload-and-finalize request carrying
// the bytes.
func (g *Gemini) Upload(ctx context.Context, artifact types.EvidenceArtifact) (types.ProviderHandle, error) {
	if g.cfg.APIKey == "" {
		return types.ProviderHandle{}, ErrMissingCredential
	}

	meta, err := json.Marshal(map[string]any{"file": map[string]string{"display_name": artifact.Name}})
	if err != nil {
		return types.ProviderHandle{}, fmt.Errorf("marshaling upload metadata: %w", err)
	}

	start, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/upload/v1beta/files", bytes.NewReader(meta))
	if err != nil {
		return types.ProviderHandle{}, fmt.Errorf("creating upload request: %w", err)
	}
	g.setHeaders(start)
	start.Header.Set("Content-Type", "application/json")
	start.Header.Set("X-Goog-Upload-Protocol", "resumable")
	start.Header.Set("X-Goog-Upload-Command", "start")
	start.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.FormatInt(artifact.Size(), 10))
	start.Header.Set("X-Goog-Upload-Header-Content-Type", artifact.MediaType)

	resp, err := httputil.DoWithRetry(ctx, g.client, start, g.cfg.RateLimitRetries)
	if err != nil {
		return types.ProviderHandle{}, fmt.Errorf("starting upload of %s: %w", artifact.Name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.ProviderHandle{}, apiError("starting upload", resp)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	uploadURL := resp.Header.Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return types.ProviderHandle{}, fmt.Errorf("starting upload of %s: no upload URL in response", artifact.Name)
	}

	put, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(artifact.Data))
	if err != nil {
		return types.ProviderHandle{}, fmt.Errorf("creating upload request: %w", err)
	}
	g.setHeaders(put)
	put.Header.Set("Content-Type", artifact.MediaType)
	put.Header.Set("X-Goog-Upload-Offset", "0")
	put.Header.Set("X-Goog-Upload-Command", "upload, finalize")

	resp, err = httputil.DoWithRetry(ctx, g.client, put, g.cfg.RateLimitRetries)
	if err != nil {
		return types.ProviderHandle{}, fmt.Errorf("uploading %s: %w", artifact.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.ProviderHandle{}, apiError("uploading file", resp)
	}

	var out struct {
		File geminiFile `json:"file"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return types.ProviderHandle{}, fmt.Errorf("decoding upload response: %w", err)
	}
	if out.File.Name == "" {
		return types.ProviderHandle{}, fmt.Errorf("upload response for %s has no file name", artifact.Name)
	}

	h := out.File.handle()
	if h.MediaType == "" {
		h.MediaType = artifact.MediaType
	}
	return h, nil
}

// Get fetches the file resource (e.g. "files/abc123").
func (g *Gemini) Get(ctx context.Context, name string) (types.ProviderHandle, error) {
	if g.cfg.APIKey == "" {
		return types.ProviderHandle{}, ErrMissingCredential
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"/v1beta/"+name, nil)
	if err != nil {
		return types.ProviderHandle{}, fmt.Errorf("creating request: %w", err)
	}
	g.setHeaders(req)

	resp, err := httputil.DoWithRetry(ctx, g.client, req, g.cfg.RateLimitRetries)
	if err != nil {
		return types.ProviderHandle{}, fmt.Errorf("getting %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.ProviderHandle{}, apiError("getting file", resp)
	}

	var f geminiFile
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return types.ProviderHandle{}, fmt.Errorf("decoding file %s: %w", name, err)
	}
	return f.handle(), nil
}

// Generate calls models/{model}:generateContent with the file reference
// followed by the prompt text.
func (g *Gemini) Generate(ctx context.Context, r GenerateRequest) (string, error) {
	if g.cfg.APIKey == "" {
		return "", ErrMissingCredential
	}

	body := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{FileData: &fileData{FileURI: r.File.URI, MimeType: r.File.MediaType}},
				{Text: r.Prompt},
			},
		}},
	}
	if r.JSONOutput || r.ThinkingLevel != "" {
		gc := &generationConfig{}
		if r.JSONOutput {
			gc.ResponseMimeType = "application/json"
		}
		if r.ThinkingLevel != "" {
			gc.ThinkingConfig = &thinkingConfig{ThinkingLevel: r.ThinkingLevel}
		}
		body.GenerationConfig = gc
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.cfg.BaseURL, r.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	g.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httputil.DoWithRetry(ctx, g.client, req, g.cfg.RateLimitRetries)
	if err != nil {
		return "", fmt.Errorf("calling %s: %w", r.Model, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apiError("generating content", resp)
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("decoding %s response: %w", r.Model, err)
	}
	if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked by provider: %s", gr.PromptFeedback.BlockReason)
	}
	if len(gr.Candidates) == 0 {
		return "", nil
	}

	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		if p.Thought {
			continue
		}
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

func (g *Gemini) setHeaders(req *http.Request) {
	req.Header.Set("x-goog-api-key", g.cfg.APIKey)
	if g.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", g.cfg.UserAgent)
	}
}

func apiError(op string, resp *http.Response) *APIError {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
