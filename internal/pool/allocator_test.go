package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/tenantd/internal/record"
)

func TestAllocator_Allocate_FIFO(t *testing.T) {
	ctx := context.Background()
	store := record.NewMemoryStore()
	alloc := NewAllocator(store, nil)

	// Register two pool records and cycle the first so its LastUsedAt
	// is newer than the second's.
	for _, id := range []string{"pool-001", "pool-002"} {
		if _, err := store.Register(ctx, id, record.TypePool, nil); err != nil {
			t.Fatalf("Register(%s) error = %v", id, err)
		}
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := store.MarkInUse(ctx, "pool-001", "tenant-x", ""); err != nil {
		t.Fatalf("MarkInUse() error = %v", err)
	}
	if _, err := store.MarkAvailable(ctx, "pool-001"); err != nil {
		t.Fatalf("MarkAvailable() error = %v", err)
	}

	rec, err := alloc.Allocate(ctx, "tenant-a", "user-1", Requirements{})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if rec.ProjectID != "pool-002" {
		t.Errorf("Allocate() picked %s, want pool-002 (oldest last_used_at)", rec.ProjectID)
	}
}

func TestAllocator_Allocate_Requirements(t *testing.T) {
	ctx := context.Background()
	store := record.NewMemoryStore()
	alloc := NewAllocator(store, nil)

	if _, err := store.Register(ctx, "pool-us", record.TypePool, map[string]string{"region": "us-central1"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := store.Register(ctx, "pool-eu", record.TypePool, map[string]string{"region": "europe-west1"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	rec, err := alloc.Allocate(ctx, "tenant-a", "", Requirements{Region: "europe-west1"})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if rec.ProjectID != "pool-eu" {
		t.Errorf("Allocate() picked %s, want pool-eu", rec.ProjectID)
	}

	// No record matches an unknown region.
	if _, err := alloc.Allocate(ctx, "tenant-b", "", Requirements{Region: "asia-east1"}); !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("Allocate(unmatched region) error = %v, want ErrPoolExhausted", err)
	}
}

// A retried allocation for a tenant that already holds a record must
// return that record, never bind a second one.
func TestAllocator_Allocate_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := record.NewMemoryStore()
	alloc := NewAllocator(store, nil)

	for _, id := range []string{"pool-001", "pool-002"} {
		if _, err := store.Register(ctx, id, record.TypePool, nil); err != nil {
			t.Fatalf("Register(%s) error = %v", id, err)
		}
	}

	first, err := alloc.Allocate(ctx, "tenant-a", "user-1", Requirements{})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	second, err := alloc.Allocate(ctx, "tenant-a", "user-1", Requirements{})
	if err != nil {
		t.Fatalf("Allocate(retry) error = %v", err)
	}
	if second.ProjectID != first.ProjectID {
		t.Errorf("retry bound %s, want existing %s", second.ProjectID, first.ProjectID)
	}

	_, summary, err := store.List(ctx, record.ListFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if summary.InUse != 1 {
		t.Errorf("in-use records = %d, want 1 after retry", summary.InUse)
	}
}

func TestAllocator_Allocate_Exhausted(t *testing.T) {
	ctx := context.Background()
	alloc := NewAllocator(record.NewMemoryStore(), nil)

	if _, err := alloc.Allocate(ctx, "tenant-a", "", Requirements{}); !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("Allocate(empty pool) error = %v, want ErrPoolExhausted", err)
	}
}

// With one available record and N concurrent allocations, exactly one
// tenant wins; the rest see pool exhaustion.
func TestAllocator_Allocate_Exclusive(t *testing.T) {
	ctx := context.Background()
	store := record.NewMemoryStore()
	alloc := NewAllocator(store, nil)

	if _, err := store.Register(ctx, "pool-001", record.TypePool, nil); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	const tenants = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []string
		exhausted int
	)
	for i := 0; i < tenants; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tenant := "tenant-" + string(rune('a'+n))
			rec, err := alloc.Allocate(ctx, tenant, "", Requirements{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, rec.BoundTenantID)
			case errors.Is(err, ErrPoolExhausted):
				exhausted++
			default:
				t.Errorf("Allocate(%s) unexpected error = %v", tenant, err)
			}
		}(i)
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("winners = %v, want exactly one", winners)
	}
	if exhausted != tenants-1 {
		t.Errorf("exhausted = %d, want %d", exhausted, tenants-1)
	}

	rec, err := store.Get(ctx, "pool-001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Status != record.StatusInUse || rec.BoundTenantID != winners[0] {
		t.Errorf("record = %s/%s, want in-use/%s", rec.Status, rec.BoundTenantID, winners[0])
	}
}
