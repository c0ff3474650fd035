// Package orchestrator sequences the cascading deletion of a tenant's
// resources across the platform's external systems.
//
// Deletion is not a distributed transaction. Each step is independently
// attempted, independently reported, and idempotent: already-absent
// resources count as success, so re-running a partially failed deletion
// is always safe and only retries what actually failed. There is no
// rollback; deletions cannot be meaningfully reversed, so the only
// recovery path is forward retry.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/tenantd/internal/graph"
	"github.com/fyrsmithlabs/tenantd/internal/hosting"
	"github.com/fyrsmithlabs/tenantd/internal/objectstore"
	"github.com/fyrsmithlabs/tenantd/internal/pool"
	"github.com/fyrsmithlabs/tenantd/internal/record"
	"github.com/fyrsmithlabs/tenantd/internal/tenantmeta"
	"github.com/fyrsmithlabs/tenantd/internal/vector"
)

// Config tunes the deletion sequence.
type Config struct {
	// VectorIndex is the shared index used when tenant metadata does
	// not name one.
	VectorIndex string

	// Buckets are the shared object storage buckets to purge.
	Buckets []string

	// DocConcurrency bounds parallel per-document deletions within a
	// batch. Default: 4.
	DocConcurrency int

	// DocBatchSize is the number of documents per batch. Default: 20.
	DocBatchSize int

	// BatchInterval is the minimum spacing between batches, respecting
	// external rate limits. Default: 500ms.
	BatchInterval time.Duration

	// DocStepTimeout bounds the whole per-document deletion step.
	// Bulk deletion is slow; default is 5m.
	DocStepTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.DocConcurrency <= 0 {
		c.DocConcurrency = 4
	}
	if c.DocBatchSize <= 0 {
		c.DocBatchSize = 20
	}
	if c.BatchInterval <= 0 {
		c.BatchInterval = 500 * time.Millisecond
	}
	if c.DocStepTimeout <= 0 {
		c.DocStepTimeout = 5 * time.Minute
	}
}

// Orchestrator drives tenant deletion across the subsystem adapters.
type Orchestrator struct {
	store    record.Store
	recycler *pool.Recycler
	vectors  vector.Adapter
	graphs   graph.Adapter
	objects  objectstore.Adapter
	hosting  hosting.Adapter
	meta     tenantmeta.Adapter
	cfg      Config
	logger   *zap.Logger
}

// New wires the orchestrator.
func New(store record.Store, recycler *pool.Recycler, vectors vector.Adapter, graphs graph.Adapter, objects objectstore.Adapter, host hosting.Adapter, meta tenantmeta.Adapter, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	return &Orchestrator{
		store:    store,
		recycler: recycler,
		vectors:  vectors,
		graphs:   graphs,
		objects:  objects,
		hosting:  host,
		meta:     meta,
		cfg:      cfg,
		logger:   logger,
	}
}

// Binding is the snapshot of a tenant's external resource identifiers,
// captured before any destructive step. Once the metadata record is
// deleted this information is unrecoverable, so it is read first and
// treated as immutable for the rest of the run.
type Binding struct {
	ProjectID       string
	VectorIndex     string
	VectorNamespace string
	GraphInstanceID string
	Buckets         []string
	Documents       []string
}

// DeleteTenant removes every resource the tenant holds.
//
// Steps run sequentially in a fixed order: snapshot, per-document
// vector/graph deletion (scope-gated), graph instance drop (scope-gated),
// hosting resolution (pool release or dedicated delete), object storage
// purge, and tenant metadata last. A failed step is recorded and the
// sequence continues; only validation errors abort the call.
func (o *Orchestrator) DeleteTenant(ctx context.Context, req Request) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	outcome := newOutcome(req.TenantID)
	outcome.RunID = uuid.NewString()
	o.logger.Info("starting tenant deletion",
		zap.String("run_id", outcome.RunID),
		zap.String("tenant", req.TenantID),
		zap.Bool("delete_vector_index", req.DeleteVectorIndex),
		zap.Bool("delete_graph_database", req.DeleteGraphDatabase))

	binding := o.snapshot(ctx, req.TenantID)

	// Per-document vector and graph deletion, scope-gated.
	if req.DeleteVectorIndex {
		outcome.record(SubsystemVector, o.deleteDocuments(ctx, req, binding, outcome))
	} else {
		outcome.skip(SubsystemVector)
	}

	// Graph instance drop: irreversible, opt-in.
	if req.DeleteGraphDatabase {
		outcome.record(SubsystemGraph, o.deleteGraphInstance(ctx, binding))
	} else {
		outcome.skip(SubsystemGraph)
	}

	// Hosting resolution: pool records are released back to the pool,
	// dedicated projects are deleted entirely. Always attempted.
	outcome.record(SubsystemHosting, o.teardownHosting(ctx, req.TenantID, binding))

	// Object storage purge for anything the hosting path did not cover.
	outcome.record(SubsystemStorage, o.purgeStorage(ctx, req.TenantID, binding))

	// Metadata goes last so a crash mid-sequence leaves enough state
	// for a safe retry of the earlier steps.
	outcome.record(SubsystemMetadata, o.deleteMetadata(ctx, req.TenantID))

	outcome.finalize()
	o.logger.Info("tenant deletion finished",
		zap.String("run_id", outcome.RunID),
		zap.String("tenant", req.TenantID),
		zap.String("status", string(outcome.Status)),
		zap.Int("total_items", outcome.TotalItems()),
		zap.Strings("errors", outcome.Errors()))
	return outcome, nil
}

// snapshot captures the tenant's resource identifiers before anything
// is deleted. Absent metadata (a retry after metadata deletion) yields
// an empty binding; every later step then resolves to already-absent
// success.
func (o *Orchestrator) snapshot(ctx context.Context, tenantID string) *Binding {
	binding := &Binding{
		VectorIndex:     o.cfg.VectorIndex,
		VectorNamespace: tenantID,
		Buckets:         o.cfg.Buckets,
	}

	meta, err := o.meta.Get(ctx, tenantID)
	if err != nil {
		o.logger.Warn("metadata snapshot failed, proceeding with defaults",
			zap.String("tenant", tenantID), zap.Error(err))
	}
	if meta != nil {
		binding.ProjectID = meta.ProjectID
		binding.GraphInstanceID = meta.GraphInstanceID
		if meta.VectorIndex != "" {
			binding.VectorIndex = meta.VectorIndex
		}
		if meta.VectorNamespace != "" {
			binding.VectorNamespace = meta.VectorNamespace
		}
		if len(meta.StorageBuckets) > 0 {
			binding.Buckets = meta.StorageBuckets
		}
	}

	docs, err := o.meta.ListDocuments(ctx, tenantID)
	if err != nil {
		o.logger.Warn("document listing failed, vector step will sweep the namespace only",
			zap.String("tenant", tenantID), zap.Error(err))
	}
	binding.Documents = docs
	return binding
}

// deleteDocuments removes the tenant's documents from the vector index
// (and their graph nodes when the graph scope is on), then sweeps the
// namespace for strays.
//
// Documents are processed in batches with bounded concurrency inside a
// batch and a rate limiter between batches. This is the only parallelism
// in the deletion sequence and exists purely to respect external rate
// limits while keeping bulk deletion tolerable.
func (o *Orchestrator) deleteDocuments(ctx context.Context, req Request, binding *Binding, outcome *Outcome) StepResult {
	res := StepResult{Attempted: true}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.DocStepTimeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(o.cfg.BatchInterval), 1)
	var (
		mu       sync.Mutex
		items    int
		docsDone int
		firstErr error
	)

	docs := binding.Documents
	for start := 0; start < len(docs); start += o.cfg.DocBatchSize {
		if err := limiter.Wait(ctx); err != nil {
			res.Err = fmt.Errorf("document deletion interrupted: %w", err)
			break
		}

		end := start + o.cfg.DocBatchSize
		if end > len(docs) {
			end = len(docs)
		}

		var wg sync.WaitGroup
		sem := make(chan struct{}, o.cfg.DocConcurrency)
		for _, docID := range docs[start:end] {
			wg.Add(1)
			sem <- struct{}{}
			go func(docID string) {
				defer wg.Done()
				defer func() { <-sem }()

				n, err := o.vectors.DeleteDocument(ctx, binding.VectorIndex, binding.VectorNamespace, docID)
				if req.DeleteGraphDatabase && binding.GraphInstanceID != "" && err == nil {
					var gn int
					gn, err = o.graphs.DeleteDocumentNodes(ctx, binding.GraphInstanceID, outcome.TenantID, docID)
					n += gn
				}

				mu.Lock()
				defer mu.Unlock()
				items += n
				if err != nil && firstErr == nil {
					firstErr = fmt.Errorf("document %s: %w", docID, err)
				}
				if err == nil {
					docsDone++
				}
			}(docID)
		}
		wg.Wait()

		if firstErr != nil {
			break
		}
	}

	// Sweep the namespace for points not tracked in the document list.
	if res.Err == nil && firstErr == nil {
		n, err := o.vectors.PurgeNamespace(ctx, binding.VectorIndex, binding.VectorNamespace)
		if err != nil {
			firstErr = fmt.Errorf("namespace sweep: %w", err)
		}
		items += n
	}

	res.ItemsAffected = items
	outcome.DocumentsDeleted = docsDone
	if res.Err == nil {
		res.Err = firstErr
	}
	res.Success = res.Err == nil
	return res
}

// deleteGraphInstance drops the tenant's graph database. A tenant with
// no instance is trivially done.
func (o *Orchestrator) deleteGraphInstance(ctx context.Context, binding *Binding) StepResult {
	res := StepResult{Attempted: true}
	if binding.GraphInstanceID == "" {
		res.Success = true
		return res
	}

	existed, err := o.graphs.DeleteInstance(ctx, binding.GraphInstanceID)
	if err != nil {
		res.Err = err
		return res
	}
	if existed {
		res.ItemsAffected = 1
	}
	res.Success = true
	return res
}

// teardownHosting resolves the tenant's hosting binding and tears it
// down: pool projects are released back to the pool (the shared project
// survives), dedicated projects are deleted from the platform and the
// record store.
func (o *Orchestrator) teardownHosting(ctx context.Context, tenantID string, binding *Binding) StepResult {
	res := StepResult{Attempted: true}

	rec := o.boundRecord(ctx, tenantID, binding.ProjectID)
	if rec == nil {
		// No binding on record. If the snapshot still names a project,
		// delete it directly; not-found is success either way.
		if binding.ProjectID == "" {
			res.Success = true
			return res
		}
		status, err := o.hosting.Delete(ctx, binding.ProjectID)
		if err != nil {
			res.Err = err
			return res
		}
		if status == hosting.StatusDeleted {
			res.ItemsAffected = 1
		}
		res.Success = true
		return res
	}

	if rec.Type == record.TypePool {
		if err := o.recycler.Release(ctx, rec.ProjectID, tenantID); err != nil {
			res.Err = fmt.Errorf("releasing pool project %s: %w", rec.ProjectID, err)
			return res
		}
		res.ItemsAffected = 1
		res.Success = true
		return res
	}

	// Dedicated: delete the project and drop its record.
	status, err := o.hosting.Delete(ctx, rec.ProjectID)
	if err != nil {
		res.Err = fmt.Errorf("deleting dedicated project %s: %w", rec.ProjectID, err)
		return res
	}
	if status == hosting.StatusDeleted {
		res.ItemsAffected = 1
	}
	if err := o.store.Delete(ctx, rec.ProjectID); err != nil {
		res.Err = fmt.Errorf("removing record for %s: %w", rec.ProjectID, err)
		return res
	}
	res.Success = true
	return res
}

// boundRecord finds the record bound to the tenant, preferring the
// snapshot's project reference and falling back to a scan.
func (o *Orchestrator) boundRecord(ctx context.Context, tenantID, projectID string) *record.ResourceRecord {
	if projectID != "" {
		rec, err := o.store.Get(ctx, projectID)
		if err == nil && rec.BoundTenantID == tenantID {
			return rec
		}
	}

	recs, _, err := o.store.List(ctx, record.ListFilter{})
	if err != nil {
		return nil
	}
	for _, rec := range recs {
		if rec.BoundTenantID == tenantID {
			return rec
		}
	}
	return nil
}

// purgeStorage removes the tenant's object prefixes from every bucket in
// the binding. The recycler may already have purged these for pool
// tenants; the second pass is a cheap no-op then.
func (o *Orchestrator) purgeStorage(ctx context.Context, tenantID string, binding *Binding) StepResult {
	res := StepResult{Attempted: true}

	prefix := pool.TenantObjectPrefix(tenantID)
	for _, bucket := range binding.Buckets {
		n, err := o.objects.DeleteTenantScoped(ctx, bucket, prefix)
		res.ItemsAffected += n
		if err != nil {
			res.Err = fmt.Errorf("bucket %s: %w", bucket, err)
			return res
		}
	}
	res.Success = true
	return res
}

// deleteMetadata removes the tenant record. Already-absent is success so
// a second DeleteTenant run converges to the same state.
func (o *Orchestrator) deleteMetadata(ctx context.Context, tenantID string) StepResult {
	res := StepResult{Attempted: true}

	existed, err := o.meta.Delete(ctx, tenantID)
	if err != nil {
		res.Err = err
		return res
	}
	if existed {
		res.ItemsAffected = 1
	}
	res.Success = true
	return res
}
