// Package record persists the resource records that describe every hosting
// project the platform owns, pool and dedicated alike.
package record

import (
	"errors"
	"time"
)

// Common errors.
var (
	// ErrNotFound is returned when no record exists for a project ID.
	ErrNotFound = errors.New("resource record not found")

	// ErrAlreadyRegistered is returned when registering a project ID twice.
	ErrAlreadyRegistered = errors.New("resource record already registered")

	// ErrConflict is returned when a claim or release races with another
	// holder (record not available, or bound to a different tenant).
	ErrConflict = errors.New("resource record conflict")

	// ErrInvalidTransition is returned for status changes outside the
	// transition table.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrEmptyProjectID indicates a missing project identifier.
	ErrEmptyProjectID = errors.New("project ID cannot be empty")

	// ErrEmptyTenantID indicates a missing tenant identifier.
	ErrEmptyTenantID = errors.New("tenant ID cannot be empty")
)

// ProjectType distinguishes shared pool projects from dedicated ones.
type ProjectType string

const (
	// TypePool marks a project reused across tenants sequentially.
	TypePool ProjectType = "pool"

	// TypeDedicated marks a project owned by exactly one tenant.
	TypeDedicated ProjectType = "dedicated"
)

// Valid reports whether the project type is one of the known values.
func (t ProjectType) Valid() bool {
	return t == TypePool || t == TypeDedicated
}

// Status is the lifecycle state of a resource record.
type Status string

const (
	// StatusAvailable means the project can be claimed by an allocator.
	StatusAvailable Status = "available"

	// StatusInUse means the project is bound to a tenant.
	StatusInUse Status = "in-use"

	// StatusRecycling means a departed tenant's data is being purged
	// before the project returns to the pool.
	StatusRecycling Status = "recycling"

	// StatusMaintenance means the project is withheld from allocation.
	StatusMaintenance Status = "maintenance"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusInUse, StatusRecycling, StatusMaintenance:
		return true
	}
	return false
}

// transitions is the closed table of legal status changes. Anything not
// listed is rejected with ErrInvalidTransition.
var transitions = map[Status][]Status{
	StatusAvailable:   {StatusInUse, StatusMaintenance},
	StatusInUse:       {StatusRecycling, StatusAvailable, StatusMaintenance},
	StatusRecycling:   {StatusAvailable, StatusMaintenance},
	StatusMaintenance: {StatusAvailable},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ResourceRecord describes one hosting project and who holds it.
//
// Invariants:
//   - status available implies BoundTenantID == ""
//   - status in-use or recycling implies BoundTenantID != ""
//   - at most one record is bound to a given tenant at a time
type ResourceRecord struct {
	// ProjectID is the stable external identifier. Immutable.
	ProjectID string `json:"project_id"`

	// Type is pool or dedicated.
	Type ProjectType `json:"project_type"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// BoundTenantID is the tenant holding the project, if any.
	BoundTenantID string `json:"bound_tenant_id,omitempty"`

	// OwnerUserID is the user who owns the bound tenant, if known.
	OwnerUserID string `json:"owner_user_id,omitempty"`

	// CreatedAt is when the record was registered.
	CreatedAt time.Time `json:"created_at"`

	// LastUsedAt is stamped on every mutation. Allocation picks the
	// available record with the oldest value, spreading reuse evenly.
	LastUsedAt time.Time `json:"last_used_at"`

	// DeployedAt is when a tenant deployment last went live on the
	// project, if ever.
	DeployedAt *time.Time `json:"deployed_at,omitempty"`

	// RecycledAt is when the record last completed a recycle cycle.
	RecycledAt *time.Time `json:"recycled_at,omitempty"`

	// Metadata is an opaque bag (region, display name, ...).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate store state.
func (r *ResourceRecord) Clone() *ResourceRecord {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Metadata != nil {
		cp.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			cp.Metadata[k] = v
		}
	}
	if r.DeployedAt != nil {
		t := *r.DeployedAt
		cp.DeployedAt = &t
	}
	if r.RecycledAt != nil {
		t := *r.RecycledAt
		cp.RecycledAt = &t
	}
	return &cp
}

// Summary holds per-status counts for operational visibility.
type Summary struct {
	Available   int `json:"available"`
	InUse       int `json:"in_use"`
	Recycling   int `json:"recycling"`
	Maintenance int `json:"maintenance"`
}

// Add counts one record into the summary.
func (s *Summary) Add(status Status) {
	switch status {
	case StatusAvailable:
		s.Available++
	case StatusInUse:
		s.InUse++
	case StatusRecycling:
		s.Recycling++
	case StatusMaintenance:
		s.Maintenance++
	}
}
