// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive keeps a copy of submitted evidence in an S3-compatible
// bucket, one prefix per run.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/pdiddy/veragate/internal/logging"
	"github.com/pdiddy/veragate/pkg/types"
)

// Archiver writes evidence artifacts to object storage.
type Archiver struct {
	mc     *minio.Client
	bucket string
}

// New returns an Archiver for cfg. Endpoint and both keys are required.
func New(cfg types.ArchiveConfig) (*Archiver, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("archive endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("archive access_key and secret_key are required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: "us-east-1",
	})
	if err != nil {
		return nil, fmt.Errorf("creating object store client: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = types.DefaultArchiveBucket
	}
	return &Archiver{mc: mc, bucket: bucket}, nil
}

// Bucket returns the target bucket name.
func (a *Archiver) Bucket() string {
	return a.bucket
}

// EnsureBucket creates the bucket if it does not exist.
func (a *Archiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.mc.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.mc.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", a.bucket, err)
	}
	logging.FromContext(ctx).Info("created archive bucket", zap.String("bucket", a.bucket))
	return nil
}

// Archive stores artifact under ObjectKey(runID, artifact).
func (a *Archiver) Archive(ctx context.Context, runID string, artifact types.EvidenceArtifact) error {
	key := ObjectKey(runID, artifact)
	contentType := artifact.MediaType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := a.mc.PutObject(ctx, a.bucket, key, bytes.NewReader(artifact.Data), artifact.Size(), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"run-id": runID, "kind": string(artifact.Kind)},
	})
	if err != nil {
		return fmt.Errorf("archiving %s: %w", key, err)
	}
	logging.FromContext(ctx).Debug("evidence archived", zap.String("bucket", a.bucket), zap.String("key", key))
	return nil
}

// ObjectKey returns runs/<run-id>/<kind>/<name>. Directory parts of the
// submitted name are dropped.
func ObjectKey(runID string, artifact types.EvidenceArtifact) string {
	name := path.Base(strings.ReplaceAll(artifact.Name, `\`, "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		name = string(artifact.Kind)
	}
	return path.Join("runs", runID, string(artifact.Kind), name)
}
