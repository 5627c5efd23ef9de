// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of
// plain-text files and from dotenv files. In a secrets directory each file
// represents one secret: the filename is the key name and the file
// contents (trimmed) are the value.
//
// Supported key files: gemini-api-key, archive-access-key, archive-secret-key.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Key names recognised in the secrets directory.
const (
	GeminiAPIKey     = "gemini-api-key"
	ArchiveAccessKey = "archive-access-key"
	ArchiveSecretKey = "archive-secret-key"
)

// GeminiEnvVar is the environment variable consulted for the provider credential.
const GeminiEnvVar = "GEMINI_API_KEY"

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// LoadEnvFile reads KEY=VALUE pairs from a dotenv file without touching the
// process environment. A missing file yields an empty map.
func LoadEnvFile(path string) (map[string]string, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}
	return env, nil
}

// Resolve returns the first non-empty value among an explicit value, the
// secrets-directory entry for key, the process environment variable envVar,
// and the dotenv entry for envVar.
func Resolve(explicit string, dirSecrets map[string]string, key string, dotenv map[string]string, envVar string) string {
	if explicit != "" {
		return explicit
	}
	if v := dirSecrets[key]; v != "" {
		return v
	}
	if envVar == "" {
		return ""
	}
	if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
		return v
	}
	return strings.TrimSpace(dotenv[envVar])
}
