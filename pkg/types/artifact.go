// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"mime"
	"path/filepath"
	"strings"
)

// ArtifactKind identifies which role an uploaded file plays in an audit.
type ArtifactKind string

const (
	ArtifactVideo    ArtifactKind = "video"
	ArtifactDocument ArtifactKind = "document"
)

// EvidenceArtifact is one submitted file held in memory until it has been
// handed to the provider.
type EvidenceArtifact struct {
	Kind ArtifactKind

	// Name is the display name (usually the client-side filename).
	Name string

	// MediaType is the declared MIME type (e.g. "video/mp4", "application/pdf").
	MediaType string

	Data []byte
}

// Size returns the artifact's byte size.
func (a EvidenceArtifact) Size() int64 {
	return int64(len(a.Data))
}

// videoTypes covers container formats missing from many system mime tables.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
}

// MediaTypeByName guesses a media type from a filename extension, without
// parameters. It returns "application/octet-stream" when nothing matches.
func MediaTypeByName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if mt, ok := videoTypes[ext]; ok {
		return mt
	}
	if mt, _, err := mime.ParseMediaType(mime.TypeByExtension(ext)); err == nil {
		return mt
	}
	return "application/octet-stream"
}

// FileState is the provider-side readiness of an uploaded artifact.
type FileState string

const (
	FilePending FileState = "pending"
	FileReady   FileState = "ready"
	FileFailed  FileState = "failed"
)

// Terminal reports whether polling can stop.
func (s FileState) Terminal() bool {
	return s == FileReady || s == FileFailed
}

// ProviderHandle references an artifact stored by the provider.
type ProviderHandle struct {
	// Name is the provider resource name used for readiness queries (e.g. "files/abc123").
	Name string `json:"name" yaml:"name"`

	// URI is the reference passed to inference calls.
	URI string `json:"uri" yaml:"uri"`

	MediaType string    `json:"mediaType" yaml:"media_type"`
	State     FileState `json:"state" yaml:"state"`

	// Error carries the provider's failure reason when State is FileFailed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}
