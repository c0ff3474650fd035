package record

import "context"

// ListFilter narrows List results. Zero value matches everything.
type ListFilter struct {
	// Status restricts results to one lifecycle state when set.
	Status Status

	// Type restricts results to pool or dedicated when set.
	Type ProjectType
}

// Store is the persistence contract for resource records.
//
// MarkInUse is the single concurrency-critical operation: implementations
// MUST perform it as an atomic compare-and-set (verify available, write
// in-use, all in one indivisible step) so two concurrent claims can never
// both succeed against the same record.
type Store interface {
	// Register creates a new record in available state.
	// Returns ErrAlreadyRegistered for a duplicate project ID.
	Register(ctx context.Context, projectID string, typ ProjectType, metadata map[string]string) (*ResourceRecord, error)

	// Get retrieves a record by project ID.
	Get(ctx context.Context, projectID string) (*ResourceRecord, error)

	// List returns records matching the filter plus per-status counts
	// over the full store.
	List(ctx context.Context, filter ListFilter) ([]*ResourceRecord, Summary, error)

	// MarkInUse atomically claims an available record for a tenant.
	// Returns ErrConflict if the record is not available or is bound to
	// a different tenant.
	MarkInUse(ctx context.Context, projectID, tenantID, ownerUserID string) (*ResourceRecord, error)

	// MarkRecycling moves an in-use record into recycling, keeping its
	// tenant binding until the purge completes.
	MarkRecycling(ctx context.Context, projectID string) (*ResourceRecord, error)

	// MarkAvailable returns a record to the pool, clearing its binding
	// and stamping RecycledAt when it leaves recycling.
	MarkAvailable(ctx context.Context, projectID string) (*ResourceRecord, error)

	// MarkMaintenance withholds a record from allocation. The reason is
	// recorded in metadata under "maintenance_reason".
	MarkMaintenance(ctx context.Context, projectID, reason string) (*ResourceRecord, error)

	// SetDeployed stamps DeployedAt on an in-use record.
	SetDeployed(ctx context.Context, projectID string) error

	// Delete removes a record entirely. Only dedicated records are ever
	// deleted; pool records cycle forever.
	Delete(ctx context.Context, projectID string) error
}
