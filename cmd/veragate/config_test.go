// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/veragate/pkg/types"
)

func TestLoadConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	c := loadConfig()
	assert.Equal(t, types.DefaultWatcherModel, c.Pipeline.Watcher.Model)
	assert.Equal(t, types.DefaultAuditorModel, c.Pipeline.Auditor.Model)
	assert.Equal(t, types.DefaultPollInterval, c.Pipeline.Poll.Interval)
	assert.Equal(t, types.DefaultAddr, c.Server.Addr)
	assert.Empty(t, c.Store.Path)
	assert.Empty(t, c.Archive.Endpoint)
}

func TestLoadConfigFromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "veragate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pipeline:
  watcher:
    model: gemini-test-flash
    max_retries: 2
  poll:
    interval: 500ms
    max_wait: 1m
  run_timeout: 15m
server:
  addr: ":9090"
store:
  path: runs.db
`), 0o644))
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	c := loadConfig()
	assert.Equal(t, "gemini-test-flash", c.Pipeline.Watcher.Model)
	assert.Equal(t, 2, c.Pipeline.Watcher.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, c.Pipeline.Poll.Interval)
	assert.Equal(t, time.Minute, c.Pipeline.Poll.MaxWait)
	assert.Equal(t, 15*time.Minute, c.Pipeline.RunTimeout)
	assert.Equal(t, ":9090", c.Server.Addr)
	assert.Equal(t, "runs.db", c.Store.Path)
	assert.Equal(t, types.DefaultAuditorModel, c.Pipeline.Auditor.Model)
}

func TestReadArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Site.MP4")
	require.NoError(t, os.WriteFile(path, []byte("frames"), 0o644))

	a, err := readArtifact(path, types.ArtifactVideo)
	require.NoError(t, err)
	assert.Equal(t, "Site.MP4", a.Name)
	assert.Equal(t, "video/mp4", a.MediaType)
	assert.Equal(t, int64(6), a.Size())

	_, err = readArtifact(filepath.Join(dir, "missing.pdf"), types.ArtifactDocument)
	assert.Error(t, err)
}

func TestPrintProgress(t *testing.T) {
	var buf bytes.Buffer
	emit := printProgress(&buf)
	require.NoError(t, emit(types.StatusEvent("Uploading files to Gemini...", 10)))
	require.NoError(t, emit(types.ThinkingEvent(types.AgentWatcher, types.PhaseAnalyzing, "Looking")))
	require.NoError(t, emit(types.ResultEvent(types.DefaultAuditResult())))

	assert.Equal(t, "[ 10%] Uploading files to Gemini...\n  watcher/analyzing: Looking\n", buf.String())
}
