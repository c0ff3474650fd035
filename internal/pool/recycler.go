package pool

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tenantd/internal/graph"
	"github.com/fyrsmithlabs/tenantd/internal/hosting"
	"github.com/fyrsmithlabs/tenantd/internal/objectstore"
	"github.com/fyrsmithlabs/tenantd/internal/record"
	"github.com/fyrsmithlabs/tenantd/internal/tenantmeta"
	"github.com/fyrsmithlabs/tenantd/internal/vector"
)

// ErrWrongTenant is returned when a release names a tenant the record
// is not bound to.
var ErrWrongTenant = errors.New("project is bound to a different tenant")

// RecyclerConfig names the shared resources a pool purge touches.
type RecyclerConfig struct {
	// VectorIndex is the shared index holding tenant namespaces.
	VectorIndex string

	// Buckets are the shared buckets holding tenant-prefixed objects.
	Buckets []string
}

// Recycler purges a departing tenant's data from a shared pool project
// and returns the record to the pool. The project itself is never
// deleted.
type Recycler struct {
	store   record.Store
	vectors vector.Adapter
	graphs  graph.Adapter
	objects objectstore.Adapter
	hosting hosting.Adapter
	meta    tenantmeta.Adapter
	cfg     RecyclerConfig
	logger  *zap.Logger
}

// NewRecycler wires the recycler to the stores and adapters it purges
// through.
func NewRecycler(store record.Store, vectors vector.Adapter, graphs graph.Adapter, objects objectstore.Adapter, host hosting.Adapter, meta tenantmeta.Adapter, cfg RecyclerConfig, logger *zap.Logger) *Recycler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recycler{
		store:   store,
		vectors: vectors,
		graphs:  graphs,
		objects: objects,
		hosting: host,
		meta:    meta,
		cfg:     cfg,
		logger:  logger,
	}
}

// TenantObjectPrefix is the object key prefix isolating one tenant
// inside a shared bucket.
func TenantObjectPrefix(tenantID string) string {
	return "tenants/" + tenantID + "/"
}

// Release validates the binding, purges the tenant's data from the
// shared project, and returns the record to the pool.
//
// On any purge failure the record stays in recycling: it must never
// return to available while residual tenant data may remain. The
// reconciler flags records stuck in recycling for operator retry, and
// Release can simply be invoked again.
func (r *Recycler) Release(ctx context.Context, projectID, tenantID string) error {
	if projectID == "" {
		return record.ErrEmptyProjectID
	}
	if tenantID == "" {
		return record.ErrEmptyTenantID
	}

	rec, err := r.store.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if rec.Type != record.TypePool {
		return fmt.Errorf("%w: %s is not a pool project", record.ErrConflict, projectID)
	}
	if rec.BoundTenantID != tenantID && tenantID != SentinelTenant {
		return fmt.Errorf("%w: %s is not bound to %s", ErrWrongTenant, projectID, tenantID)
	}

	// Retrying a release that previously failed mid-purge finds the
	// record already in recycling; skip the transition then.
	if rec.Status != record.StatusRecycling {
		if _, err := r.store.MarkRecycling(ctx, projectID); err != nil {
			return err
		}
	}

	boundTenant := rec.BoundTenantID
	if boundTenant == "" {
		boundTenant = tenantID
	}

	if err := r.purgeTenantData(ctx, projectID, boundTenant); err != nil {
		r.logger.Error("pool purge incomplete, record stays in recycling",
			zap.String("project_id", projectID),
			zap.String("tenant", boundTenant),
			zap.Error(err))
		return err
	}

	if _, err := r.store.MarkAvailable(ctx, projectID); err != nil {
		return err
	}

	r.logger.Info("recycled pool project",
		zap.String("project_id", projectID),
		zap.String("tenant", boundTenant))
	return nil
}

// purgeTenantData removes every tenant-scoped artifact from the shared
// systems. All purges are attempted even when one fails, so a retry has
// less left to do.
func (r *Recycler) purgeTenantData(ctx context.Context, projectID, tenantID string) error {
	var errs []error

	namespace := tenantID
	index := r.cfg.VectorIndex
	var graphInstance string
	if r.meta != nil {
		if meta, err := r.meta.Get(ctx, tenantID); err == nil && meta != nil {
			if meta.VectorIndex != "" {
				index = meta.VectorIndex
			}
			if meta.VectorNamespace != "" {
				namespace = meta.VectorNamespace
			}
			graphInstance = meta.GraphInstanceID
		}
	}

	if index != "" {
		if _, err := r.vectors.PurgeNamespace(ctx, index, namespace); err != nil {
			errs = append(errs, fmt.Errorf("vector namespace purge: %w", err))
		}
	}

	// A tenant on a shared graph instance leaves its nodes behind unless
	// they are swept here; the instance itself survives.
	if graphInstance != "" {
		if _, err := r.graphs.PurgeTenant(ctx, graphInstance, tenantID); err != nil {
			errs = append(errs, fmt.Errorf("graph node purge: %w", err))
		}
	}

	prefix := TenantObjectPrefix(tenantID)
	for _, bucket := range r.cfg.Buckets {
		if _, err := r.objects.DeleteTenantScoped(ctx, bucket, prefix); err != nil {
			errs = append(errs, fmt.Errorf("bucket %s purge: %w", bucket, err))
		}
	}

	if _, err := r.hosting.PurgeTenantPaths(ctx, projectID, tenantID); err != nil {
		errs = append(errs, fmt.Errorf("hosting path purge: %w", err))
	}

	return errors.Join(errs...)
}
