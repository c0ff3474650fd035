package tenantmeta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// Key layout:
//
//	tenant:{id}            JSON-encoded Record
//	tenant:{id}:documents  set of document IDs
func recordKey(tenantID string) string    { return "tenant:" + tenantID }
func documentsKey(tenantID string) string { return "tenant:" + tenantID + ":documents" }

// RedisConfig holds connection settings for the metadata store.
type RedisConfig struct {
	// Addr is host:port of the Redis server.
	Addr string

	// Password authenticates when set.
	Password string

	// DB selects the logical database.
	DB int

	// Timeout bounds each adapter call. Default: 10s.
	Timeout time.Duration
}

// RedisAdapter implements Adapter on Redis.
type RedisAdapter struct {
	client  *redis.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewRedisAdapter connects and verifies the connection with a ping.
func NewRedisAdapter(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*RedisAdapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to metadata store: %w", err)
	}

	return &RedisAdapter{
		client:  client,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// Close releases the connection pool.
func (a *RedisAdapter) Close() error {
	return a.client.Close()
}

// Get returns the tenant record, nil when absent.
func (a *RedisAdapter) Get(ctx context.Context, tenantID string) (*Record, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant ID cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.client.Get(ctx, recordKey(tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading tenant %s: %w", tenantID, err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding tenant %s: %w", tenantID, err)
	}
	return &rec, nil
}

// Put stores the tenant record. Used at provisioning time and by tests.
func (a *RedisAdapter) Put(ctx context.Context, rec *Record) error {
	if rec == nil || rec.TenantID == "" {
		return fmt.Errorf("tenant record must carry a tenant ID")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding tenant %s: %w", rec.TenantID, err)
	}
	if err := a.client.Set(ctx, recordKey(rec.TenantID), raw, 0).Err(); err != nil {
		return fmt.Errorf("storing tenant %s: %w", rec.TenantID, err)
	}
	return nil
}

// AddDocument registers a document ID under the tenant.
func (a *RedisAdapter) AddDocument(ctx context.Context, tenantID, documentID string) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.client.SAdd(ctx, documentsKey(tenantID), documentID).Err(); err != nil {
		return fmt.Errorf("registering document %s for tenant %s: %w", documentID, tenantID, err)
	}
	return nil
}

// ListDocuments returns the tenant's document IDs.
func (a *RedisAdapter) ListDocuments(ctx context.Context, tenantID string) ([]string, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant ID cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	docs, err := a.client.SMembers(ctx, documentsKey(tenantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing documents for tenant %s: %w", tenantID, err)
	}
	return docs, nil
}

// Delete removes the record and document list in one round trip.
func (a *RedisAdapter) Delete(ctx context.Context, tenantID string) (bool, error) {
	if tenantID == "" {
		return false, fmt.Errorf("tenant ID cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	removed, err := a.client.Del(ctx, recordKey(tenantID), documentsKey(tenantID)).Result()
	if err != nil {
		return false, fmt.Errorf("deleting tenant %s: %w", tenantID, err)
	}

	if removed > 0 {
		a.logger.Info("deleted tenant metadata", zap.String("tenant", tenantID))
	}
	return removed > 0, nil
}

var _ Adapter = (*RedisAdapter)(nil)
