package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

const defaultTimeout = 60 * time.Second

// Neo4jConfig holds connection settings for the Neo4j driver.
type Neo4jConfig struct {
	// URI is the bolt/neo4j connection string (neo4j://host:7687).
	URI string

	// Username and Password authenticate against the cluster.
	Username string
	Password string

	// Timeout bounds each adapter call. Default: 60s.
	Timeout time.Duration
}

// Neo4jAdapter implements Adapter against a Neo4j cluster. Tenant graphs
// live in per-tenant databases named by instance ID; document and tenant
// purges run Cypher against that database, instance deletion drops it
// through the system database.
type Neo4jAdapter struct {
	driver  neo4j.DriverWithContext
	timeout time.Duration
	logger  *zap.Logger
}

// NewNeo4jAdapter connects to Neo4j and verifies connectivity.
func NewNeo4jAdapter(ctx context.Context, cfg Neo4jConfig, logger *zap.Logger) (*Neo4jAdapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verifying neo4j connectivity: %w", err)
	}

	return &Neo4jAdapter{
		driver:  driver,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// Close releases the driver.
func (a *Neo4jAdapter) Close(ctx context.Context) error {
	return a.driver.Close(ctx)
}

// DeleteDocumentNodes removes the nodes derived from one document.
func (a *Neo4jAdapter) DeleteDocumentNodes(ctx context.Context, instanceID, tenantID, documentID string) (int, error) {
	return a.detachDelete(ctx, instanceID,
		`MATCH (n {tenant_id: $tenantID, document_id: $documentID}) DETACH DELETE n`,
		map[string]any{"tenantID": tenantID, "documentID": documentID})
}

// PurgeTenant removes every node belonging to a tenant.
func (a *Neo4jAdapter) PurgeTenant(ctx context.Context, instanceID, tenantID string) (int, error) {
	return a.detachDelete(ctx, instanceID,
		`MATCH (n {tenant_id: $tenantID}) DETACH DELETE n`,
		map[string]any{"tenantID": tenantID})
}

// detachDelete runs a DETACH DELETE statement in a write session against
// the instance database. A missing database is success with zero nodes.
func (a *Neo4jAdapter) detachDelete(ctx context.Context, instanceID, query string, params map[string]any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	session := a.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: instanceID,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		if isDatabaseNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("running graph delete on %s: %w", instanceID, err)
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return 0, fmt.Errorf("consuming graph delete result on %s: %w", instanceID, err)
	}
	deleted := summary.Counters().NodesDeleted()

	a.logger.Debug("deleted graph nodes",
		zap.String("instance", instanceID),
		zap.Int("nodes", deleted))
	return deleted, nil
}

// DeleteInstance drops the tenant database through the system database.
func (a *Neo4jAdapter) DeleteInstance(ctx context.Context, instanceID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	session := a.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: "system",
	})
	defer session.Close(ctx)

	// IF EXISTS keeps the drop idempotent; absence is reported through
	// the existence probe below rather than an error.
	existed, err := a.instanceExists(ctx, session, instanceID)
	if err != nil {
		return false, err
	}

	result, err := session.Run(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", instanceID), nil)
	if err != nil {
		return false, fmt.Errorf("dropping graph instance %s: %w", instanceID, err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return false, fmt.Errorf("dropping graph instance %s: %w", instanceID, err)
	}

	if existed {
		a.logger.Info("deleted graph instance", zap.String("instance", instanceID))
	}
	return existed, nil
}

func (a *Neo4jAdapter) instanceExists(ctx context.Context, session neo4j.SessionWithContext, instanceID string) (bool, error) {
	result, err := session.Run(ctx,
		"SHOW DATABASES YIELD name WHERE name = $name RETURN name",
		map[string]any{"name": instanceID})
	if err != nil {
		return false, fmt.Errorf("checking graph instance %s: %w", instanceID, err)
	}
	exists := result.Next(ctx)
	if err := result.Err(); err != nil {
		return false, fmt.Errorf("checking graph instance %s: %w", instanceID, err)
	}
	return exists, nil
}

// isDatabaseNotFound matches the Neo4j error for a session against a
// database that does not exist.
func isDatabaseNotFound(err error) bool {
	var neo4jErr *neo4j.Neo4jError
	if !errors.As(err, &neo4jErr) {
		return false
	}
	return neo4jErr.Code == "Neo.ClientError.Database.DatabaseNotFound"
}

var _ Adapter = (*Neo4jAdapter)(nil)
