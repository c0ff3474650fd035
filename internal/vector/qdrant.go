package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultMaxMessageSize = 50 * 1024 * 1024
	defaultTimeout        = 30 * time.Second
)

// QdrantConfig holds connection settings for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (6334, not the 6333 REST port).
	Port int

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// Timeout bounds each adapter call. Default: 30s.
	Timeout time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	MaxMessageSize int
}

// QdrantAdapter implements Adapter against a Qdrant cluster. Tenant
// namespaces are payload fields, so a purge is a filtered points delete
// and never touches other tenants in the shared index.
type QdrantAdapter struct {
	client  *qdrant.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewQdrantAdapter connects to Qdrant and verifies the connection.
func NewQdrantAdapter(cfg QdrantConfig, logger *zap.Logger) (*QdrantAdapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	a := &QdrantAdapter{
		client:  client,
		timeout: cfg.Timeout,
		logger:  logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant health check: %w", err)
	}

	return a, nil
}

// Close releases the gRPC connection.
func (a *QdrantAdapter) Close() error {
	return a.client.Close()
}

// DeleteDocument removes every point for one document in a namespace.
func (a *QdrantAdapter) DeleteDocument(ctx context.Context, index, namespace, documentID string) (int, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			fieldMatch("namespace", namespace),
			fieldMatch("document_id", documentID),
		},
	}
	return a.deleteByFilter(ctx, index, filter)
}

// PurgeNamespace removes every point in a tenant namespace.
func (a *QdrantAdapter) PurgeNamespace(ctx context.Context, index, namespace string) (int, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			fieldMatch("namespace", namespace),
		},
	}
	return a.deleteByFilter(ctx, index, filter)
}

// deleteByFilter counts matching points, then deletes them. The count is
// taken first because the points delete API does not report how many
// points it removed. An absent collection is success with zero items.
func (a *QdrantAdapter) deleteByFilter(ctx context.Context, index string, filter *qdrant.Filter) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	exact := true
	count, err := a.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: index,
		Filter:         filter,
		Exact:          &exact,
	})
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("counting points in %s: %w", index, err)
	}
	if count == 0 {
		return 0, nil
	}

	_, err = a.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: index,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("deleting points in %s: %w", index, err)
	}

	a.logger.Debug("deleted vector points",
		zap.String("index", index),
		zap.Uint64("count", count))
	return int(count), nil
}

// DeleteIndex drops the collection. Absent collections are not an error.
func (a *QdrantAdapter) DeleteIndex(ctx context.Context, index string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if _, err := a.client.GetCollectionInfo(ctx, index); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking index %s: %w", index, err)
	}

	if err := a.client.DeleteCollection(ctx, index); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("deleting index %s: %w", index, err)
	}

	a.logger.Info("deleted vector index", zap.String("index", index))
	return true, nil
}

func fieldMatch(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func isNotFound(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == grpccodes.NotFound
}

var _ Adapter = (*QdrantAdapter)(nil)
