// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RunStatus is the lifecycle state of a persisted run.
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunComplete RunStatus = "complete"
	RunError    RunStatus = "error"
)

// ThinkingEntry is a timestamped thinking event kept in a run's log.
type ThinkingEntry struct {
	Agent     Agent     `json:"agent" yaml:"agent"`
	Phase     Phase     `json:"phase" yaml:"phase"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// ArtifactInfo describes a submitted artifact without its bytes.
type ArtifactInfo struct {
	Name      string `json:"name" yaml:"name"`
	MediaType string `json:"mediaType" yaml:"media_type"`
	Size      int64  `json:"size" yaml:"size"`
}

// Run is the persisted record of one pipeline execution. The Stage-1
// extraction text is deliberately absent: it lives only for the duration
// of the run.
type Run struct {
	ID            string          `json:"id" yaml:"id"`
	Status        RunStatus       `json:"status" yaml:"status"`
	StartedAt     time.Time       `json:"startedAt" yaml:"started_at"`
	FinishedAt    *time.Time      `json:"finishedAt,omitempty" yaml:"finished_at,omitempty"`
	ProcessingMS  int64           `json:"processingTime" yaml:"processing_time_ms"`
	Video         ArtifactInfo    `json:"video" yaml:"video"`
	Document      ArtifactInfo    `json:"document" yaml:"document"`
	PromptVersion string          `json:"promptVersion" yaml:"prompt_version"`
	ParseFallback bool            `json:"parseFallback" yaml:"parse_fallback"`
	Result        *AuditResult    `json:"result,omitempty" yaml:"result,omitempty"`
	Error         string          `json:"error,omitempty" yaml:"error,omitempty"`
	ThinkingLog   []ThinkingEntry `json:"thinkingLog" yaml:"thinking_log"`
}

// RunSummary is the list-view projection of a Run.
type RunSummary struct {
	ID                 string    `json:"id" yaml:"id"`
	Status             RunStatus `json:"status" yaml:"status"`
	StartedAt          time.Time `json:"startedAt" yaml:"started_at"`
	ProcessingMS       int64     `json:"processingTime" yaml:"processing_time_ms"`
	VideoName          string    `json:"videoName" yaml:"video_name"`
	DocumentName       string    `json:"documentName" yaml:"document_name"`
	ContradictionCount int       `json:"contradictionCount" yaml:"contradiction_count"`
	VerifiedFactCount  int       `json:"verifiedFactCount" yaml:"verified_fact_count"`
}
