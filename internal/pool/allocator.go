// Package pool manages the shared pool of reusable hosting projects:
// exclusive allocation to tenants and recycling after they leave.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tenantd/internal/record"
)

// ErrPoolExhausted is returned when no available record matches the
// allocation requirements. The caller decides the fallback, typically
// provisioning a dedicated project instead.
var ErrPoolExhausted = errors.New("hosting project pool exhausted")

// SentinelTenant is accepted by Release for records being cycled by the
// pool initialization process rather than a real tenant.
const SentinelTenant = "pool-init"

// Requirements narrows which pool records qualify for a tenant.
type Requirements struct {
	// Region restricts to records whose metadata region matches.
	Region string

	// Metadata lists additional key/value pairs the record must carry.
	Metadata map[string]string
}

func (r Requirements) matches(rec *record.ResourceRecord) bool {
	if r.Region != "" && rec.Metadata["region"] != r.Region {
		return false
	}
	for k, v := range r.Metadata {
		if rec.Metadata[k] != v {
			return false
		}
	}
	return true
}

// Allocator claims available pool records for new tenants.
type Allocator struct {
	store  record.Store
	logger *zap.Logger
}

// NewAllocator creates an allocator over the record store.
func NewAllocator(store record.Store, logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{store: store, logger: logger}
}

// Allocate claims an available pool record for the tenant.
//
// Selection is FIFO by oldest LastUsedAt so reuse spreads across the
// pool instead of hammering the most recently freed record. The claim
// itself goes through Store.MarkInUse, the single atomic compare-and-set;
// losing a race against a concurrent claim just moves on to the next
// candidate.
func (a *Allocator) Allocate(ctx context.Context, tenantID, ownerUserID string, req Requirements) (*record.ResourceRecord, error) {
	if tenantID == "" {
		return nil, record.ErrEmptyTenantID
	}

	// A retried allocation returns the record the tenant already holds
	// instead of binding a second one.
	held, _, err := a.store.List(ctx, record.ListFilter{
		Status: record.StatusInUse,
		Type:   record.TypePool,
	})
	if err != nil {
		return nil, fmt.Errorf("listing in-use pool records: %w", err)
	}
	for _, rec := range held {
		if rec.BoundTenantID == tenantID {
			a.logger.Info("tenant already holds a pool project",
				zap.String("project_id", rec.ProjectID),
				zap.String("tenant", tenantID))
			return rec, nil
		}
	}

	candidates, _, err := a.store.List(ctx, record.ListFilter{
		Status: record.StatusAvailable,
		Type:   record.TypePool,
	})
	if err != nil {
		return nil, fmt.Errorf("listing available pool records: %w", err)
	}

	matching := candidates[:0]
	for _, rec := range candidates {
		if req.matches(rec) {
			matching = append(matching, rec)
		}
	}
	sort.Slice(matching, func(i, j int) bool {
		return matching[i].LastUsedAt.Before(matching[j].LastUsedAt)
	})

	for _, candidate := range matching {
		claimed, err := a.store.MarkInUse(ctx, candidate.ProjectID, tenantID, ownerUserID)
		if errors.Is(err, record.ErrConflict) {
			// Lost the race for this record; try the next.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("claiming %s: %w", candidate.ProjectID, err)
		}

		a.logger.Info("allocated pool project",
			zap.String("project_id", claimed.ProjectID),
			zap.String("tenant", tenantID))
		return claimed, nil
	}

	return nil, fmt.Errorf("%w: no available record for tenant %s", ErrPoolExhausted, tenantID)
}
