package persist

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"archdoc/internal/config"
	"archdoc/internal/diagram"
	"archdoc/internal/errors"
	"archdoc/internal/slogutil"
)

// ObjectStore uploads local files under a key
type ObjectStore interface {
	PutFile(ctx context.Context, key, localPath, contentType string) error
}

// Mirror copies artifacts to an S3-compatible bucket. Failures are warnings.
type Mirror struct {
	store  ObjectStore
	prefix string
	logger *slog.Logger
}

// NewMirror creates a mirror backed by an S3-compatible endpoint.
func NewMirror(cfg config.MirrorConfig, logger *slog.Logger) (*Mirror, error) {
	store, err := NewS3Store(cfg)
	if err != nil {
		return nil, err
	}
	return NewMirrorWithStore(store, cfg.Prefix, logger), nil
}

// NewMirrorWithStore creates a mirror over any object store
func NewMirrorWithStore(store ObjectStore, prefix string, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Mirror{store: store, prefix: strings.Trim(prefix, "/"), logger: logger}
}

// ObjectKey returns <prefix>/<runID>/<diagram>/<file>
func (m *Mirror) ObjectKey(runID, diagramName, localPath string) string {
	parts := []string{}
	if m.prefix != "" {
		parts = append(parts, m.prefix)
	}
	parts = append(parts, runID, diagramName, filepath.Base(localPath))
	return path.Join(parts...)
}

// Upload sends each description and image. It returns the uploaded keys
// and a warning per failed upload.
func (m *Mirror) Upload(ctx context.Context, runID string, artifacts []*diagram.Artifact) ([]string, []errors.Warning) {
	var (
		keys     []string
		warnings []errors.Warning
	)
	for _, a := range artifacts {
		files := []string{a.SourcePath}
		if a.Rendered() {
			files = append(files, a.RenderedPath)
		}
		for _, f := range files {
			key := m.ObjectKey(runID, a.Name, f)
			if err := m.store.PutFile(ctx, key, f, contentType(f)); err != nil {
				m.logger.Warn("Mirror upload failed", "key", key, "error", err)
				warnings = append(warnings, errors.NewWarning(errors.MirrorFailed, f, "upload to %s failed: %v", key, err))
				continue
			}
			m.logger.Debug("Mirrored artifact", "key", key)
			keys = append(keys, key)
		}
	}
	return keys, warnings
}

func contentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".svg":
		return "image/svg+xml"
	case ".png":
		return "image/png"
	case diagram.SourceExt:
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}

// S3Store is an ObjectStore over minio-go.
type S3Store struct {
	client   *minio.Client
	bucket   string
	region   string
	initOnce sync.Once
	initErr  error
}

// NewS3Store validates the configuration and creates the client. No network
// traffic happens until the first upload.
func NewS3Store(cfg config.MirrorConfig) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("mirror endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("mirror bucket is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("mirror access key and secret key are required (ARCHDOC_MIRROR_ACCESS_KEY, ARCHDOC_MIRROR_SECRET_KEY)")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Store{client: client, bucket: bucket, region: region}, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// PutFile uploads localPath under key
func (s *S3Store) PutFile(ctx context.Context, key, localPath, contentType string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	_, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}
