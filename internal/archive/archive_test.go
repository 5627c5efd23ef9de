// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/veragate/pkg/types"
)

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.ArchiveConfig
	}{
		{"no endpoint", types.ArchiveConfig{AccessKey: "a", SecretKey: "s"}},
		{"no access key", types.ArchiveConfig{Endpoint: "localhost:9000", SecretKey: "s"}},
		{"no secret key", types.ArchiveConfig{Endpoint: "localhost:9000", AccessKey: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestNewDefaultsBucket(t *testing.T) {
	a, err := New(types.ArchiveConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, types.DefaultArchiveBucket, a.Bucket())
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name     string
		artifact types.EvidenceArtifact
		want     string
	}{
		{"plain", types.EvidenceArtifact{Kind: types.ArtifactVideo, Name: "site.mp4"}, "runs/r1/video/site.mp4"},
		{"unix path", types.EvidenceArtifact{Kind: types.ArtifactDocument, Name: "../../etc/spec.pdf"}, "runs/r1/document/spec.pdf"},
		{"windows path", types.EvidenceArtifact{Kind: types.ArtifactDocument, Name: `C:\docs\spec.pdf`}, "runs/r1/document/spec.pdf"},
		{"empty", types.EvidenceArtifact{Kind: types.ArtifactVideo}, "runs/r1/video/video"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ObjectKey("r1", tt.artifact))
		})
	}
}

func TestArchivePutsObject(t *testing.T) {
	var (
		mu     sync.Mutex
		paths  []string
		ctypes []string
		bodies []string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			paths = append(paths, r.URL.Path)
			ctypes = append(ctypes, r.Header.Get("Content-Type"))
			bodies = append(bodies, string(body))
			mu.Unlock()
		}
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a, err := New(types.ArchiveConfig{
		Endpoint:  strings.TrimPrefix(ts.URL, "http://"),
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "evidence",
	})
	require.NoError(t, err)

	err = a.Archive(context.Background(), "r1", types.EvidenceArtifact{
		Kind: types.ArtifactVideo, Name: "site.mp4", MediaType: "video/mp4", Data: []byte("frames"),
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, paths, 1)
	assert.Equal(t, "/evidence/runs/r1/video/site.mp4", paths[0])
	assert.Equal(t, "video/mp4", ctypes[0])
	assert.Contains(t, bodies[0], "frames")
}
