// Package objectstore mirrors the identifier store file to and from S3.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// API is the part of *s3.Client the mirror uses.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewClient loads the default AWS configuration for region and returns an
// S3 client.
func NewClient(ctx context.Context, region string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// ExpandKey substitutes the date into keys that carry a %s verb.
func ExpandKey(key string, now time.Time) string {
	if !strings.Contains(key, "%s") {
		return key
	}
	return fmt.Sprintf(key, now.Format("2006-Jan-02"))
}

// Mirror copies a single local file to and from one bucket.
type Mirror struct {
	api    API
	bucket string
	logger *zap.Logger
}

// NewMirror returns a Mirror for bucket.
func NewMirror(api API, bucket string, logger *zap.Logger) (*Mirror, error) {
	if bucket == "" {
		return nil, errors.New("S3_BUCKET_NAME must be set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{api: api, bucket: bucket, logger: logger}, nil
}

// Download fetches key into path. A missing object is not an error and
// leaves path untouched; found reports whether anything was written.
func (m *Mirror) Download(ctx context.Context, key, path string) (found bool, err error) {
	out, err := m.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			m.logger.Info("no remote store yet", zap.String("bucket", m.bucket), zap.String("key", key))
			return false, nil
		}
		return false, fmt.Errorf("failed to download s3://%s/%s: %w", m.bucket, key, err)
	}
	defer out.Body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return false, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, out.Body)
	if err != nil {
		tmp.Close()
		return false, fmt.Errorf("reading s3://%s/%s: %w", m.bucket, key, err)
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return false, fmt.Errorf("replacing %s: %w", path, err)
	}
	m.logger.Info("downloaded store", zap.String("key", key), zap.Int64("bytes", n))
	return true, nil
}

// Upload writes the file at path to key.
func (m *Mirror) Upload(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	_, err = m.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file to S3: %w", err)
	}
	m.logger.Info("uploaded store", zap.String("bucket", m.bucket), zap.String("key", key))
	return nil
}
