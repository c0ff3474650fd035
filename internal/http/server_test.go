package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tenantd/internal/orchestrator"
	"github.com/fyrsmithlabs/tenantd/internal/reconciler"
	"github.com/fyrsmithlabs/tenantd/internal/record"
)

// stubDeleter returns a canned outcome.
type stubDeleter struct {
	outcome *orchestrator.Outcome
	err     error
	lastReq orchestrator.Request
}

func (d *stubDeleter) DeleteTenant(ctx context.Context, req orchestrator.Request) (*orchestrator.Outcome, error) {
	d.lastReq = req
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return d.outcome, d.err
}

type stubSyncer struct {
	report *reconciler.HealthReport
	err    error
}

func (s *stubSyncer) SyncStatus(ctx context.Context, projectID string) (*reconciler.HealthReport, error) {
	return s.report, s.err
}

func fullOutcome(tenantID string) *orchestrator.Outcome {
	out := &orchestrator.Outcome{
		TenantID:         tenantID,
		Status:           orchestrator.StatusFull,
		DocumentsDeleted: 3,
		Steps: map[orchestrator.Subsystem]orchestrator.StepResult{
			orchestrator.SubsystemVector:   {Attempted: true, Success: true, ItemsAffected: 3},
			orchestrator.SubsystemHosting:  {Attempted: true, Success: true, ItemsAffected: 1},
			orchestrator.SubsystemMetadata: {Attempted: true, Success: true, ItemsAffected: 1},
		},
	}
	return out
}

func setupTestServer(t *testing.T, deleter TenantDeleter, syncer StatusSyncer) (*Server, *record.MemoryStore) {
	t.Helper()
	store := record.NewMemoryStore()
	if deleter == nil {
		deleter = &stubDeleter{outcome: fullOutcome("tenant-a")}
	}
	server, err := NewServer(store, deleter, syncer, zap.NewNop(), nil)
	require.NoError(t, err)
	return server, store
}

func TestNewServer(t *testing.T) {
	t.Run("creates server with valid config", func(t *testing.T) {
		store := record.NewMemoryStore()
		cfg := &Config{Host: "localhost", Port: 8080}

		server, err := NewServer(store, &stubDeleter{}, nil, zap.NewNop(), cfg)
		require.NoError(t, err)
		assert.NotNil(t, server)
		assert.Equal(t, cfg, server.config)
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, _ := setupTestServer(t, nil, nil)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 8080, server.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(record.NewMemoryStore(), &stubDeleter{}, nil, nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when store is nil", func(t *testing.T) {
		_, err := NewServer(nil, &stubDeleter{}, nil, zap.NewNop(), nil)
		assert.Error(t, err)
	})

	t.Run("returns error when deleter is nil", func(t *testing.T) {
		_, err := NewServer(record.NewMemoryStore(), nil, nil, zap.NewNop(), nil)
		assert.Error(t, err)
	})
}

func TestHandleHealth(t *testing.T) {
	server, _ := setupTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleDeleteTenant(t *testing.T) {
	t.Run("full success returns 200", func(t *testing.T) {
		deleter := &stubDeleter{outcome: fullOutcome("tenant-a")}
		server, _ := setupTestServer(t, deleter, nil)

		body, _ := json.Marshal(DeleteTenantRequest{
			OwnerUserID:       "user-1",
			DeleteVectorIndex: true,
		})
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/tenants/tenant-a", bytes.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp DeleteTenantResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Empty(t, resp.Errors)
		assert.Equal(t, 3, resp.Details.DocumentsDeleted)
		assert.Equal(t, 5, resp.Details.TotalItemsDeleted)
		assert.Contains(t, resp.Details.ServicesCleaned, "tenant-metadata")

		assert.Equal(t, "tenant-a", deleter.lastReq.TenantID)
		assert.Equal(t, "user-1", deleter.lastReq.OwnerUserID)
		assert.True(t, deleter.lastReq.DeleteVectorIndex)
		assert.False(t, deleter.lastReq.DeleteGraphDatabase)
	})

	t.Run("partial result returns 207 with errors", func(t *testing.T) {
		out := fullOutcome("tenant-a")
		out.Status = orchestrator.StatusPartial
		out.Steps[orchestrator.SubsystemVector] = orchestrator.StepResult{
			Attempted: true,
			Success:   false,
			Err:       fmt.Errorf("index unreachable"),
		}
		server, _ := setupTestServer(t, &stubDeleter{outcome: out}, nil)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/tenants/tenant-a", bytes.NewReader([]byte(`{}`)))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusMultiStatus, rec.Code)

		var resp DeleteTenantResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		require.Len(t, resp.Errors, 1)
		assert.Contains(t, resp.Errors[0], "vector-index:")
	})

	t.Run("total failure returns 500", func(t *testing.T) {
		out := fullOutcome("tenant-a")
		out.Status = orchestrator.StatusFailed
		server, _ := setupTestServer(t, &stubDeleter{outcome: out}, nil)

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/tenants/tenant-a", bytes.NewReader([]byte(`{}`)))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandlePoolAction(t *testing.T) {
	t.Run("register creates a record", func(t *testing.T) {
		server, store := setupTestServer(t, nil, nil)

		body, _ := json.Marshal(PoolActionRequest{
			Action:    PoolActionRegister,
			ProjectID: "pool-001",
			Metadata:  map[string]string{"region": "us-central1"},
		})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/pool", bytes.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)

		got, err := store.Get(context.Background(), "pool-001")
		require.NoError(t, err)
		assert.Equal(t, record.TypePool, got.Type)
		assert.Equal(t, record.StatusAvailable, got.Status)
		assert.Equal(t, "us-central1", got.Metadata["region"])
	})

	t.Run("register duplicate returns 409", func(t *testing.T) {
		server, store := setupTestServer(t, nil, nil)
		_, err := store.Register(context.Background(), "pool-001", record.TypePool, nil)
		require.NoError(t, err)

		body, _ := json.Marshal(PoolActionRequest{Action: PoolActionRegister, ProjectID: "pool-001"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/pool", bytes.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("mark-available returns a recycling record to the pool", func(t *testing.T) {
		server, store := setupTestServer(t, nil, nil)
		ctx := context.Background()
		_, err := store.Register(ctx, "pool-001", record.TypePool, nil)
		require.NoError(t, err)
		_, err = store.MarkInUse(ctx, "pool-001", "tenant-a", "user-1")
		require.NoError(t, err)
		_, err = store.MarkRecycling(ctx, "pool-001")
		require.NoError(t, err)

		body, _ := json.Marshal(PoolActionRequest{Action: PoolActionMarkAvailable, ProjectID: "pool-001"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/pool", bytes.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		got, err := store.Get(ctx, "pool-001")
		require.NoError(t, err)
		assert.Equal(t, record.StatusAvailable, got.Status)
		assert.Empty(t, got.BoundTenantID)
	})

	t.Run("mark-available on unknown project returns 404", func(t *testing.T) {
		server, _ := setupTestServer(t, nil, nil)

		body, _ := json.Marshal(PoolActionRequest{Action: PoolActionMarkAvailable, ProjectID: "nope"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/pool", bytes.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("sync-status returns the health report", func(t *testing.T) {
		syncer := &stubSyncer{report: &reconciler.HealthReport{RecordsChecked: 2}}
		server, _ := setupTestServer(t, nil, syncer)

		body, _ := json.Marshal(PoolActionRequest{Action: PoolActionSyncStatus})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/pool", bytes.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var report reconciler.HealthReport
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Equal(t, 2, report.RecordsChecked)
	})

	t.Run("unknown action returns 400", func(t *testing.T) {
		server, _ := setupTestServer(t, nil, nil)

		body, _ := json.Marshal(PoolActionRequest{Action: "explode"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/pool", bytes.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandlePoolGet(t *testing.T) {
	t.Run("summary without projectId", func(t *testing.T) {
		server, store := setupTestServer(t, nil, nil)
		ctx := context.Background()
		for _, id := range []string{"pool-001", "pool-002", "pool-003"} {
			_, err := store.Register(ctx, id, record.TypePool, nil)
			require.NoError(t, err)
		}
		_, err := store.MarkInUse(ctx, "pool-001", "tenant-a", "user-1")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/pool", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp PoolSummaryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Available)
		assert.Equal(t, 1, resp.InUse)
		assert.Equal(t, 0, resp.Recycling)
	})

	t.Run("single record by projectId", func(t *testing.T) {
		server, store := setupTestServer(t, nil, nil)
		_, err := store.Register(context.Background(), "pool-001", record.TypePool, nil)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/pool?projectId=pool-001", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var got record.ResourceRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "pool-001", got.ProjectID)
	})

	t.Run("unknown project returns 404", func(t *testing.T) {
		server, _ := setupTestServer(t, nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/pool?projectId=missing", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestErrorResponseMapping(t *testing.T) {
	server, _ := setupTestServer(t, nil, nil)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", record.ErrNotFound, http.StatusNotFound},
		{"conflict", record.ErrConflict, http.StatusConflict},
		{"invalid transition", record.ErrInvalidTransition, http.StatusConflict},
		{"empty project id", record.ErrEmptyProjectID, http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := server.echo.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			require.NoError(t, server.errorResponse(c, tt.err))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
