// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T) string
		want   map[string]string
		errMsg string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "gemini-api-key", "  gk_abc123  \n")
				writeFile(t, dir, "archive-access-key", "ak_xyz789")
				writeFile(t, dir, "archive-secret-key", "s3cr3t\n")
				return dir
			},
			want: map[string]string{
				"gemini-api-key":     "gk_abc123",
				"archive-access-key": "ak_xyz789",
				"archive-secret-key": "s3cr3t",
			},
		},
		{
			name: "returns empty map for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: map[string]string{},
		},
		{
			name: "skips empty files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "gemini-api-key", "valid-key")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				return dir
			},
			want: map[string]string{
				"gemini-api-key": "valid-key",
			},
		},
		{
			name: "skips dotfiles",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				writeFile(t, dir, "gemini-api-key", "gk_real")
				return dir
			},
			want: map[string]string{
				"gemini-api-key": "gk_real",
			},
		},
		{
			name: "skips subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "gemini-api-key", "ak_123")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: map[string]string{
				"gemini-api-key": "ak_123",
			},
		},
		{
			name: "returns empty map for empty directory",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.setup(t)
			got, err := Load(dir)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}
	dir := t.TempDir()
	writeFile(t, dir, "good-key", "value123")

	// Create a file then remove read permission.
	badPath := filepath.Join(dir, "bad-key")
	require.NoError(t, os.WriteFile(badPath, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o644) })

	got, err := Load(dir)
	require.NoError(t, err)
	// The good file should still be returned; the bad file is skipped with a warning.
	assert.Equal(t, "value123", got["good-key"])
	_, hasBad := got["bad-key"]
	assert.False(t, hasBad, "unreadable file should not appear in result")
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "GEMINI_API_KEY=from-dotenv\n# comment\nOTHER=x\n")

	env, err := LoadEnvFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", env[GeminiEnvVar])
	assert.Equal(t, "x", env["OTHER"])

	missing, err := LoadEnvFile(filepath.Join(dir, "nope.env"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestResolve(t *testing.T) {
	dirSecrets := map[string]string{GeminiAPIKey: "from-dir"}
	dotenv := map[string]string{GeminiEnvVar: "from-dotenv"}

	t.Run("explicit wins", func(t *testing.T) {
		assert.Equal(t, "flag", Resolve("flag", dirSecrets, GeminiAPIKey, dotenv, GeminiEnvVar))
	})
	t.Run("secrets dir before env", func(t *testing.T) {
		t.Setenv(GeminiEnvVar, "from-env")
		assert.Equal(t, "from-dir", Resolve("", dirSecrets, GeminiAPIKey, dotenv, GeminiEnvVar))
	})
	t.Run("env before dotenv", func(t *testing.T) {
		t.Setenv(GeminiEnvVar, "from-env")
		assert.Equal(t, "from-env", Resolve("", nil, GeminiAPIKey, dotenv, GeminiEnvVar))
	})
	t.Run("dotenv last", func(t *testing.T) {
		t.Setenv(GeminiEnvVar, "")
		assert.Equal(t, "from-dotenv", Resolve("", nil, GeminiAPIKey, dotenv, GeminiEnvVar))
	})
	t.Run("nothing configured", func(t *testing.T) {
		t.Setenv(GeminiEnvVar, "")
		assert.Empty(t, Resolve("", nil, GeminiAPIKey, nil, GeminiEnvVar))
	})
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
