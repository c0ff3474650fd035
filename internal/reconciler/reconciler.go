// Package reconciler compares record store state against reality and
// flags drift: orphaned allocations, stale tenants, stuck recycling.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tenantd/internal/pool"
	"github.com/fyrsmithlabs/tenantd/internal/record"
	"github.com/fyrsmithlabs/tenantd/internal/tenantmeta"
)

// IssueKind classifies a detected drift.
type IssueKind string

const (
	// IssueOrphaned: record is in-use but its tenant no longer exists.
	// The reconciler corrects this one itself.
	IssueOrphaned IssueKind = "orphaned-allocation"

	// IssueStaleInUse: record has been in-use with no activity beyond
	// the threshold. Flagged only; the tenant may simply be quiet.
	IssueStaleInUse IssueKind = "stale-in-use"

	// IssueStuckRecycling: record has sat in recycling beyond the
	// threshold, meaning a purge failed and nobody retried.
	IssueStuckRecycling IssueKind = "stuck-recycling"
)

// Issue is one detected drift.
type Issue struct {
	ProjectID string    `json:"project_id"`
	Kind      IssueKind `json:"kind"`
	Detail    string    `json:"detail"`

	// Corrected is true when the reconciler fixed the drift itself.
	// Only orphaned allocations are auto-corrected; everything else is
	// left for operators.
	Corrected bool `json:"corrected"`
}

// HealthReport is the outcome of one reconciliation pass.
type HealthReport struct {
	CheckedAt      time.Time      `json:"checked_at"`
	RecordsChecked int            `json:"records_checked"`
	Issues         []Issue        `json:"issues"`
	Summary        record.Summary `json:"summary"`
}

// Healthy reports whether the pass found no drift.
func (r *HealthReport) Healthy() bool {
	return len(r.Issues) == 0
}

// Config holds the drift thresholds.
type Config struct {
	// StaleInUseAfter flags in-use records idle beyond this. Default: 24h.
	StaleInUseAfter time.Duration `koanf:"stale_in_use_after"`

	// RecyclingStuckAfter flags recycling records older than this.
	// Default: 2h.
	RecyclingStuckAfter time.Duration `koanf:"recycling_stuck_after"`

	// Interval spaces periodic passes started by Run. Default: 15m.
	Interval time.Duration `koanf:"interval"`
}

func (c *Config) applyDefaults() {
	if c.StaleInUseAfter <= 0 {
		c.StaleInUseAfter = 24 * time.Hour
	}
	if c.RecyclingStuckAfter <= 0 {
		c.RecyclingStuckAfter = 2 * time.Hour
	}
	if c.Interval <= 0 {
		c.Interval = 15 * time.Minute
	}
}

// Reconciler runs health/sync passes over the record store. It is the
// only component allowed to mutate record status outside the allocator,
// recycler, and orchestrator, and only to correct detected drift.
type Reconciler struct {
	store  record.Store
	meta   tenantmeta.Adapter
	cfg    Config
	logger *zap.Logger
}

// New creates a reconciler.
func New(store record.Store, meta tenantmeta.Adapter, cfg Config, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	return &Reconciler{
		store:  store,
		meta:   meta,
		cfg:    cfg,
		logger: logger,
	}
}

// SyncStatus checks one record, or every record when projectID is empty.
func (r *Reconciler) SyncStatus(ctx context.Context, projectID string) (*HealthReport, error) {
	report := &HealthReport{CheckedAt: time.Now()}

	var targets []*record.ResourceRecord
	if projectID != "" {
		rec, err := r.store.Get(ctx, projectID)
		if err != nil {
			return nil, err
		}
		targets = append(targets, rec)
		_, report.Summary, err = r.store.List(ctx, record.ListFilter{})
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		targets, report.Summary, err = r.store.List(ctx, record.ListFilter{})
		if err != nil {
			return nil, err
		}
	}

	for _, rec := range targets {
		report.RecordsChecked++
		if issue := r.checkRecord(ctx, rec); issue != nil {
			report.Issues = append(report.Issues, *issue)
		}
	}

	if !report.Healthy() {
		r.logger.Warn("reconciliation found drift",
			zap.Int("records_checked", report.RecordsChecked),
			zap.Int("issues", len(report.Issues)))
	}
	return report, nil
}

func (r *Reconciler) checkRecord(ctx context.Context, rec *record.ResourceRecord) *Issue {
	now := time.Now()

	switch rec.Status {
	case record.StatusInUse:
		// Sentinel allocations belong to the pool process, not a
		// tenant; the metadata store knows nothing about them.
		if rec.BoundTenantID != "" && rec.BoundTenantID != pool.SentinelTenant {
			meta, err := r.meta.Get(ctx, rec.BoundTenantID)
			if err != nil {
				r.logger.Warn("tenant lookup failed during reconciliation",
					zap.String("project_id", rec.ProjectID),
					zap.String("tenant", rec.BoundTenantID),
					zap.Error(err))
			} else if meta == nil {
				return r.correctOrphan(ctx, rec)
			}
		}
		if idle := now.Sub(rec.LastUsedAt); idle > r.cfg.StaleInUseAfter {
			return &Issue{
				ProjectID: rec.ProjectID,
				Kind:      IssueStaleInUse,
				Detail:    fmt.Sprintf("in-use with no activity for %s (tenant %s)", idle.Round(time.Minute), rec.BoundTenantID),
			}
		}

	case record.StatusRecycling:
		if age := now.Sub(rec.LastUsedAt); age > r.cfg.RecyclingStuckAfter {
			return &Issue{
				ProjectID: rec.ProjectID,
				Kind:      IssueStuckRecycling,
				Detail:    fmt.Sprintf("recycling for %s, purge likely failed (tenant %s)", age.Round(time.Minute), rec.BoundTenantID),
			}
		}
	}
	return nil
}

// correctOrphan returns an in-use record whose tenant vanished back to
// the pool. Dedicated orphans are corrected too so the pool summary
// stays truthful; their external teardown remains an operator decision.
func (r *Reconciler) correctOrphan(ctx context.Context, rec *record.ResourceRecord) *Issue {
	issue := &Issue{
		ProjectID: rec.ProjectID,
		Kind:      IssueOrphaned,
		Detail:    fmt.Sprintf("bound tenant %s no longer exists", rec.BoundTenantID),
	}

	if _, err := r.store.MarkAvailable(ctx, rec.ProjectID); err != nil {
		issue.Detail += fmt.Sprintf("; correction failed: %v", err)
		return issue
	}

	issue.Corrected = true
	r.logger.Info("corrected orphaned allocation",
		zap.String("project_id", rec.ProjectID),
		zap.String("tenant", rec.BoundTenantID))
	return issue
}

// Run executes periodic passes until the context ends. An initial pass
// runs immediately.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.SyncStatus(ctx, ""); err != nil {
			r.logger.Error("reconciliation pass failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
