package objectstore

import (
	"context"
	"errors"
	"fmt"
	"github.com/cenkalti/backoff/v4"
	"github.com/minio/minio-go/v7"
	miniocredentials "github.com/minio/minio-go/v7/pkg/credentials"
	"log/slog"
	"net/http"
	"path/filepath"
	"photometa/pipeline"
	"strings"
	"time"
)

const (
	DefaultBucket = "photometa"
	DefaultPrefix = "metadata/"
)

type MinIO interface {
	FPutObject(ctx context.Context, bucketName, objectName string, filePath string, opts minio.PutObjectOptions) (info minio.UploadInfo, err error)
}

// Uploader copies written metadata files into a bucket, mirroring their absolute paths under
// a key prefix.
type Uploader struct {
	mc     MinIO
	bucket string
	prefix string

	Logger *slog.Logger
	// NewBackOff returns the retry policy for a single upload.
	NewBackOff func() backoff.BackOff
}

func Dial(endpoint, accessKey, secretKey string, secure bool) (*minio.Client, error) {
	return minio.New(endpoint, &minio.Options{
		Creds:  miniocredentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
}

func New(mc MinIO, bucket, prefix string) *Uploader {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &Uploader{
		mc:     mc,
		bucket: bucket,
		prefix: prefix,
		NewBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(30 * time.Second))
		},
	}
}

func (u *Uploader) Key(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return u.prefix + strings.TrimLeft(filepath.ToSlash(abs), "/"), nil
}

func (u *Uploader) Publish(ctx context.Context, out pipeline.Output) error {
	key, err := u.Key(out.Path)
	if err != nil {
		return fmt.Errorf("object key: %w", err)
	}

	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		_, err := u.mc.FPutObject(ctx, u.bucket, key, out.Path, minio.PutObjectOptions{
			ContentType: "application/json",
		})
		if err == nil {
			return nil
		}
		if IsClientError(err) {
			return backoff.Permanent(err)
		}
		u.logger().Debug("retrying upload", "key", key, "attempt", attempt, "err", err)
		return err
	}, backoff.WithContext(u.NewBackOff(), ctx))
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (u *Uploader) logger() *slog.Logger {
	if u.Logger == nil {
		return slog.Default()
	}
	return u.Logger
}

// IsClientError reports whether err is a MinIO response the caller cannot fix by retrying.
// Timeouts and throttling are 4xx but retryable.
func IsClientError(err error) bool {
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		return false
	}
	switch resp.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError
}
