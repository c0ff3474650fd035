package record

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore implements Store with in-memory storage. All mutations run
// under one mutex, which makes MarkInUse trivially atomic.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*ResourceRecord // projectID -> record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*ResourceRecord),
	}
}

// Register creates a new record in available state.
func (s *MemoryStore) Register(ctx context.Context, projectID string, typ ProjectType, metadata map[string]string) (*ResourceRecord, error) {
	if projectID == "" {
		return nil, ErrEmptyProjectID
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("invalid project type %q", typ)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[projectID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, projectID)
	}

	now := time.Now()
	rec := &ResourceRecord{
		ProjectID:  projectID,
		Type:       typ,
		Status:     StatusAvailable,
		CreatedAt:  now,
		LastUsedAt: now,
	}
	if len(metadata) > 0 {
		rec.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			rec.Metadata[k] = v
		}
	}
	s.records[projectID] = rec
	return rec.Clone(), nil
}

// Get retrieves a record by project ID.
func (s *MemoryStore) Get(ctx context.Context, projectID string) (*ResourceRecord, error) {
	if projectID == "" {
		return nil, ErrEmptyProjectID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[projectID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}
	return rec.Clone(), nil
}

// List returns records matching the filter plus full-store counts.
func (s *MemoryStore) List(ctx context.Context, filter ListFilter) ([]*ResourceRecord, Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summary Summary
	out := make([]*ResourceRecord, 0, len(s.records))
	for _, rec := range s.records {
		summary.Add(rec.Status)
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.Type != "" && rec.Type != filter.Type {
			continue
		}
		out = append(out, rec.Clone())
	}
	return out, summary, nil
}

// MarkInUse atomically claims an available record for a tenant.
func (s *MemoryStore) MarkInUse(ctx context.Context, projectID, tenantID, ownerUserID string) (*ResourceRecord, error) {
	if projectID == "" {
		return nil, ErrEmptyProjectID
	}
	if tenantID == "" {
		return nil, ErrEmptyTenantID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[projectID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}
	if rec.BoundTenantID != "" && rec.BoundTenantID != tenantID {
		return nil, fmt.Errorf("%w: %s is bound to another tenant", ErrConflict, projectID)
	}
	if rec.Status != StatusAvailable {
		return nil, fmt.Errorf("%w: %s is %s, not available", ErrConflict, projectID, rec.Status)
	}

	rec.Status = StatusInUse
	rec.BoundTenantID = tenantID
	rec.OwnerUserID = ownerUserID
	rec.LastUsedAt = time.Now()
	return rec.Clone(), nil
}

// MarkRecycling moves an in-use record into recycling.
func (s *MemoryStore) MarkRecycling(ctx context.Context, projectID string) (*ResourceRecord, error) {
	return s.transition(projectID, StatusRecycling, func(rec *ResourceRecord) {})
}

// MarkAvailable returns a record to the pool and clears its binding.
func (s *MemoryStore) MarkAvailable(ctx context.Context, projectID string) (*ResourceRecord, error) {
	return s.transition(projectID, StatusAvailable, func(rec *ResourceRecord) {
		if rec.Status == StatusRecycling {
			now := time.Now()
			rec.RecycledAt = &now
		}
		rec.BoundTenantID = ""
		rec.OwnerUserID = ""
	})
}

// MarkMaintenance withholds a record from allocation.
func (s *MemoryStore) MarkMaintenance(ctx context.Context, projectID, reason string) (*ResourceRecord, error) {
	return s.transition(projectID, StatusMaintenance, func(rec *ResourceRecord) {
		if reason != "" {
			if rec.Metadata == nil {
				rec.Metadata = make(map[string]string, 1)
			}
			rec.Metadata["maintenance_reason"] = reason
		}
	})
}

// transition applies a table-checked status change under the lock. The
// mutate hook runs after the check, before the status write.
func (s *MemoryStore) transition(projectID string, to Status, mutate func(*ResourceRecord)) (*ResourceRecord, error) {
	if projectID == "" {
		return nil, ErrEmptyProjectID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[projectID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}
	if !CanTransition(rec.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s for %s", ErrInvalidTransition, rec.Status, to, projectID)
	}

	mutate(rec)
	rec.Status = to
	rec.LastUsedAt = time.Now()
	return rec.Clone(), nil
}

// SetDeployed stamps DeployedAt on an in-use record.
func (s *MemoryStore) SetDeployed(ctx context.Context, projectID string) error {
	if projectID == "" {
		return ErrEmptyProjectID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[projectID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}
	now := time.Now()
	rec.DeployedAt = &now
	rec.LastUsedAt = now
	return nil
}

// Delete removes a record entirely.
func (s *MemoryStore) Delete(ctx context.Context, projectID string) error {
	if projectID == "" {
		return ErrEmptyProjectID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[projectID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}
	delete(s.records, projectID)
	return nil
}

var _ Store = (*MemoryStore)(nil)
