package record

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMemoryStore_Register(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	tests := []struct {
		name      string
		projectID string
		typ       ProjectType
		wantErr   bool
	}{
		{name: "valid pool record", projectID: "pool-001", typ: TypePool},
		{name: "valid dedicated record", projectID: "dedicated-001", typ: TypeDedicated},
		{name: "empty project ID", projectID: "", typ: TypePool, wantErr: true},
		{name: "invalid type", projectID: "pool-002", typ: ProjectType("shared"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := store.Register(ctx, tt.projectID, tt.typ, map[string]string{"region": "us-central1"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if rec.Status != StatusAvailable {
				t.Errorf("Register() status = %v, want %v", rec.Status, StatusAvailable)
			}
			if rec.BoundTenantID != "" {
				t.Errorf("Register() bound tenant = %q, want empty", rec.BoundTenantID)
			}
			if rec.Metadata["region"] != "us-central1" {
				t.Errorf("Register() region = %q, want us-central1", rec.Metadata["region"])
			}
		})
	}

	// Duplicate registration is rejected.
	if _, err := store.Register(ctx, "pool-001", TypePool, nil); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("duplicate Register() error = %v, want ErrAlreadyRegistered", err)
	}
}

func TestMemoryStore_MarkInUse(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	mustRegister(t, store, "pool-001", TypePool)

	rec, err := store.MarkInUse(ctx, "pool-001", "tenant-a", "user-1")
	if err != nil {
		t.Fatalf("MarkInUse() error = %v", err)
	}
	if rec.Status != StatusInUse || rec.BoundTenantID != "tenant-a" {
		t.Errorf("MarkInUse() = %v/%v, want in-use/tenant-a", rec.Status, rec.BoundTenantID)
	}

	// A second claim by another tenant must conflict.
	if _, err := store.MarkInUse(ctx, "pool-001", "tenant-b", "user-2"); !errors.Is(err, ErrConflict) {
		t.Errorf("second MarkInUse() error = %v, want ErrConflict", err)
	}

	// Unknown record.
	if _, err := store.MarkInUse(ctx, "missing", "tenant-a", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkInUse(missing) error = %v, want ErrNotFound", err)
	}
}

// Exactly one of N concurrent claims may win a single available record.
func TestMemoryStore_MarkInUse_Exclusive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	mustRegister(t, store, "pool-001", TypePool)

	const claimers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tenant := "tenant-" + string(rune('a'+n))
			if _, err := store.MarkInUse(ctx, "pool-001", tenant, ""); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("concurrent MarkInUse() wins = %d, want 1", wins)
	}
}

func TestMemoryStore_TransitionTable(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	mustRegister(t, store, "pool-001", TypePool)

	// available -> recycling is off the table.
	if _, err := store.MarkRecycling(ctx, "pool-001"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("MarkRecycling(available) error = %v, want ErrInvalidTransition", err)
	}

	if _, err := store.MarkInUse(ctx, "pool-001", "tenant-a", ""); err != nil {
		t.Fatalf("MarkInUse() error = %v", err)
	}
	rec, err := store.MarkRecycling(ctx, "pool-001")
	if err != nil {
		t.Fatalf("MarkRecycling() error = %v", err)
	}
	if rec.BoundTenantID != "tenant-a" {
		t.Errorf("recycling record lost its tenant binding")
	}

	rec, err = store.MarkAvailable(ctx, "pool-001")
	if err != nil {
		t.Fatalf("MarkAvailable() error = %v", err)
	}
	if rec.BoundTenantID != "" {
		t.Errorf("available record still bound to %q", rec.BoundTenantID)
	}
	if rec.RecycledAt == nil {
		t.Errorf("RecycledAt not stamped on recycle completion")
	}
}

func TestMemoryStore_MarkMaintenance(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	mustRegister(t, store, "pool-001", TypePool)

	rec, err := store.MarkMaintenance(ctx, "pool-001", "disk pressure")
	if err != nil {
		t.Fatalf("MarkMaintenance() error = %v", err)
	}
	if rec.Metadata["maintenance_reason"] != "disk pressure" {
		t.Errorf("maintenance_reason = %q, want disk pressure", rec.Metadata["maintenance_reason"])
	}

	// maintenance -> available is the only exit.
	if _, err := store.MarkAvailable(ctx, "pool-001"); err != nil {
		t.Errorf("MarkAvailable(maintenance) error = %v", err)
	}
}

func TestMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	mustRegister(t, store, "pool-001", TypePool)
	mustRegister(t, store, "pool-002", TypePool)
	mustRegister(t, store, "dedicated-001", TypeDedicated)

	if _, err := store.MarkInUse(ctx, "pool-001", "tenant-a", ""); err != nil {
		t.Fatalf("MarkInUse() error = %v", err)
	}

	recs, summary, err := store.List(ctx, ListFilter{Status: StatusAvailable})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("List(available) = %d records, want 2", len(recs))
	}
	if summary.Available != 2 || summary.InUse != 1 {
		t.Errorf("summary = %+v, want 2 available / 1 in-use", summary)
	}

	recs, _, err = store.List(ctx, ListFilter{Type: TypeDedicated})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(recs) != 1 || recs[0].ProjectID != "dedicated-001" {
		t.Errorf("List(dedicated) = %v, want [dedicated-001]", recs)
	}
}

func TestMemoryStore_CloneIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	mustRegister(t, store, "pool-001", TypePool)

	rec, err := store.Get(ctx, "pool-001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	rec.Status = StatusMaintenance
	rec.Metadata = map[string]string{"poisoned": "true"}

	fresh, err := store.Get(ctx, "pool-001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if fresh.Status != StatusAvailable || fresh.Metadata["poisoned"] != "" {
		t.Errorf("store state mutated through a returned record")
	}
}

func mustRegister(t *testing.T, store *MemoryStore, projectID string, typ ProjectType) {
	t.Helper()
	if _, err := store.Register(context.Background(), projectID, typ, nil); err != nil {
		t.Fatalf("Register(%s) error = %v", projectID, err)
	}
}
