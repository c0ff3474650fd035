package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const defaultTimeout = 2 * time.Minute

// MinioConfig holds connection settings for the S3-compatible store.
type MinioConfig struct {
	// Endpoint is host:port of the S3-compatible API.
	Endpoint string

	// AccessKeyID and SecretAccessKey authenticate the client.
	AccessKeyID     string
	SecretAccessKey string

	// Region is passed through to the client when set.
	Region string

	// UseSSL enables TLS.
	UseSSL bool

	// Timeout bounds each purge call. Tenant prefixes can hold many
	// objects, so the default is generous: 2m.
	Timeout time.Duration
}

// MinioAdapter implements Adapter on any S3-compatible store.
type MinioAdapter struct {
	client  *minio.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewMinioAdapter creates the client. No connection is made until the
// first call.
func NewMinioAdapter(cfg MinioConfig, logger *zap.Logger) (*MinioAdapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object storage client: %w", err)
	}

	return &MinioAdapter{
		client:  client,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// DeleteTenantScoped removes every object under the tenant prefix.
func (a *MinioAdapter) DeleteTenantScoped(ctx context.Context, bucket, tenantPrefix string) (int, error) {
	if bucket == "" {
		return 0, fmt.Errorf("bucket cannot be empty")
	}
	if tenantPrefix == "" {
		// Refuse to purge a whole bucket through the tenant path.
		return 0, fmt.Errorf("tenant prefix cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	exists, err := a.client.BucketExists(ctx, bucket)
	if err != nil {
		return 0, fmt.Errorf("checking bucket %s: %w", bucket, err)
	}
	if !exists {
		return 0, nil
	}

	deleted := 0
	objectCh := a.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    tenantPrefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return deleted, fmt.Errorf("listing %s/%s: %w", bucket, tenantPrefix, object.Err)
		}
		if err := a.client.RemoveObject(ctx, bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return deleted, fmt.Errorf("removing %s/%s: %w", bucket, object.Key, err)
		}
		deleted++
	}

	a.logger.Debug("purged tenant objects",
		zap.String("bucket", bucket),
		zap.String("prefix", tenantPrefix),
		zap.Int("objects", deleted))
	return deleted, nil
}

var _ Adapter = (*MinioAdapter)(nil)
