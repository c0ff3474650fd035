package hosting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{
		BaseURL:       srv.URL,
		Timeout:       2 * time.Second,
		ReadyAttempts: 3,
		ReadyBackoff:  10 * time.Millisecond,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestClient_Delete(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		want       DeleteStatus
		wantErr    bool
	}{
		{name: "deleted", statusCode: http.StatusOK, want: StatusDeleted},
		{name: "already absent", statusCode: http.StatusNotFound, want: StatusNotFound},
		{name: "server error", statusCode: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodDelete {
					t.Errorf("method = %s, want DELETE", r.Method)
				}
				w.WriteHeader(tt.statusCode)
			}))

			got, err := client.Delete(context.Background(), "proj-123")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Delete() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Delete() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_Create_WaitsForReady(t *testing.T) {
	var polls int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(map[string]string{"project_id": "proj-new", "state": "provisioning"})
		case r.Method == http.MethodGet:
			polls++
			state := "provisioning"
			if polls >= 2 {
				state = "active"
			}
			json.NewEncoder(w).Encode(map[string]string{"project_id": "proj-new", "state": state})
		}
	}))

	id, err := client.Create(context.Background(), "tenant-site", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if id != "proj-new" {
		t.Errorf("Create() = %q, want proj-new", id)
	}
	if polls < 2 {
		t.Errorf("readiness polls = %d, want >= 2", polls)
	}
}

func TestClient_Create_ProvisionFailed(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]string{"project_id": "proj-bad", "state": "provisioning"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"project_id": "proj-bad", "state": "failed", "message": "quota exceeded"})
	}))

	_, err := client.Create(context.Background(), "tenant-site", nil)
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("Create() error = %v, want provisioning failure with message", err)
	}
}

func TestClient_PurgeTenantPaths(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/tenants/tenant-a") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"paths_removed": 7})
	}))

	n, err := client.PurgeTenantPaths(context.Background(), "proj-123", "tenant-a")
	if err != nil {
		t.Fatalf("PurgeTenantPaths() error = %v", err)
	}
	if n != 7 {
		t.Errorf("PurgeTenantPaths() = %d, want 7", n)
	}

	// Absent tenant path is success with zero items.
	n, err = client.PurgeTenantPaths(context.Background(), "proj-123", "tenant-gone")
	if err != nil || n != 0 {
		t.Errorf("PurgeTenantPaths(absent) = %d, %v, want 0, nil", n, err)
	}
}

func TestClient_Exists(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/proj-123") {
			json.NewEncoder(w).Encode(map[string]string{"project_id": "proj-123", "state": "active"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	exists, err := client.Exists(context.Background(), "proj-123")
	if err != nil || !exists {
		t.Errorf("Exists(proj-123) = %v, %v, want true, nil", exists, err)
	}
	exists, err = client.Exists(context.Background(), "proj-999")
	if err != nil || exists {
		t.Errorf("Exists(proj-999) = %v, %v, want false, nil", exists, err)
	}
}
