package tenantmeta

import (
	"context"
	"sync"
)

// MemoryAdapter implements Adapter in memory. Used in tests and by the
// reconciler's unit suite.
type MemoryAdapter struct {
	mu        sync.RWMutex
	records   map[string]*Record
	documents map[string][]string
}

// NewMemoryAdapter creates an empty in-memory metadata store.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		records:   make(map[string]*Record),
		documents: make(map[string][]string),
	}
}

// Put stores a tenant record.
func (a *MemoryAdapter) Put(rec *Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := *rec
	a.records[rec.TenantID] = &cp
}

// SetDocuments replaces the tenant's document list.
func (a *MemoryAdapter) SetDocuments(tenantID string, docs []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.documents[tenantID] = append([]string(nil), docs...)
}

// Get returns the tenant record, nil when absent.
func (a *MemoryAdapter) Get(ctx context.Context, tenantID string) (*Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.records[tenantID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// ListDocuments returns the tenant's document IDs.
func (a *MemoryAdapter) ListDocuments(ctx context.Context, tenantID string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.documents[tenantID]...), nil
}

// Delete removes the record and document list.
func (a *MemoryAdapter) Delete(ctx context.Context, tenantID string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.records[tenantID]
	delete(a.records, tenantID)
	delete(a.documents, tenantID)
	return ok, nil
}

var _ Adapter = (*MemoryAdapter)(nil)
