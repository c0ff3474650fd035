// Package http provides the HTTP API for tenantd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tenantd/internal/orchestrator"
	"github.com/fyrsmithlabs/tenantd/internal/pool"
	"github.com/fyrsmithlabs/tenantd/internal/reconciler"
	"github.com/fyrsmithlabs/tenantd/internal/record"
)

// TenantDeleter runs cascading tenant deletions.
type TenantDeleter interface {
	DeleteTenant(ctx context.Context, req orchestrator.Request) (*orchestrator.Outcome, error)
}

// StatusSyncer runs reconciliation passes on demand.
type StatusSyncer interface {
	SyncStatus(ctx context.Context, projectID string) (*reconciler.HealthReport, error)
}

// Server provides HTTP endpoints for tenantd.
type Server struct {
	echo       *echo.Echo
	store      record.Store
	deleter    TenantDeleter
	reconciler StatusSyncer
	logger     *zap.Logger
	config     *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(store record.Store, deleter TenantDeleter, syncer StatusSyncer, logger *zap.Logger, cfg *Config) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("record store cannot be nil")
	}
	if deleter == nil {
		return nil, fmt.Errorf("tenant deleter cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:       e,
		store:      store,
		deleter:    deleter,
		reconciler: syncer,
		logger:     logger,
		config:     cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.DELETE("/tenants/:id", s.handleDeleteTenant)
	v1.POST("/pool", s.handlePoolAction)
	v1.GET("/pool", s.handlePoolGet)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleDeleteTenant runs a cascading tenant deletion. A fully clean
// run returns 200, a partial one 207 with the per-subsystem errors,
// and a run where nothing succeeded 500.
func (s *Server) handleDeleteTenant(c echo.Context) error {
	tenantID := c.Param("id")

	var req DeleteTenantRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid tenant deletion request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	outcome, err := s.deleter.DeleteTenant(c.Request().Context(), orchestrator.Request{
		TenantID:            tenantID,
		OwnerUserID:         req.OwnerUserID,
		DeleteVectorIndex:   req.DeleteVectorIndex,
		DeleteGraphDatabase: req.DeleteGraphDatabase,
	})
	if err != nil {
		return s.errorResponse(c, err)
	}

	resp := DeleteTenantResponse{
		Success: outcome.Status == orchestrator.StatusFull,
		Errors:  outcome.Errors(),
		Details: DeleteTenantDetails{
			DocumentsDeleted:  outcome.DocumentsDeleted,
			TotalItemsDeleted: outcome.TotalItems(),
			ServicesCleaned:   outcome.ServicesCleaned(),
		},
	}

	switch outcome.Status {
	case orchestrator.StatusFull:
		resp.Message = fmt.Sprintf("tenant %s deleted", tenantID)
		return c.JSON(http.StatusOK, resp)
	case orchestrator.StatusPartial:
		resp.Message = fmt.Sprintf("tenant %s partially deleted; retry the failed subsystems", tenantID)
		return c.JSON(http.StatusMultiStatus, resp)
	default:
		resp.Message = fmt.Sprintf("tenant %s deletion failed", tenantID)
		return c.JSON(http.StatusInternalServerError, resp)
	}
}

// handlePoolAction dispatches POST /api/v1/pool by action.
func (s *Server) handlePoolAction(c echo.Context) error {
	var req PoolActionRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid pool request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	ctx := c.Request().Context()

	switch req.Action {
	case PoolActionRegister:
		typ := record.ProjectType(req.ProjectType)
		if req.ProjectType == "" {
			typ = record.TypePool
		}
		rec, err := s.store.Register(ctx, req.ProjectID, typ, req.Metadata)
		if err != nil {
			return s.errorResponse(c, err)
		}
		return c.JSON(http.StatusCreated, rec)

	case PoolActionMarkAvailable:
		rec, err := s.store.MarkAvailable(ctx, req.ProjectID)
		if err != nil {
			return s.errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, rec)

	case PoolActionSyncStatus:
		if s.reconciler == nil {
			return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "reconciler not configured"})
		}
		report, err := s.reconciler.SyncStatus(ctx, req.ProjectID)
		if err != nil {
			return s.errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, report)

	default:
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("unknown action %q", req.Action),
		})
	}
}

// handlePoolGet returns one record by projectId, or the pool summary
// when no projectId is given.
func (s *Server) handlePoolGet(c echo.Context) error {
	ctx := c.Request().Context()

	if projectID := c.QueryParam("projectId"); projectID != "" {
		rec, err := s.store.Get(ctx, projectID)
		if err != nil {
			return s.errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, rec)
	}

	_, summary, err := s.store.List(ctx, record.ListFilter{})
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, PoolSummaryResponse{
		Available:   summary.Available,
		InUse:       summary.InUse,
		Recycling:   summary.Recycling,
		Maintenance: summary.Maintenance,
	})
}

// errorResponse maps domain sentinels to HTTP statuses.
func (s *Server) errorResponse(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, record.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, record.ErrConflict),
		errors.Is(err, record.ErrAlreadyRegistered),
		errors.Is(err, record.ErrInvalidTransition),
		errors.Is(err, pool.ErrWrongTenant):
		status = http.StatusConflict
	case errors.Is(err, pool.ErrPoolExhausted):
		status = http.StatusServiceUnavailable
	case errors.Is(err, record.ErrEmptyProjectID),
		errors.Is(err, record.ErrEmptyTenantID),
		errors.Is(err, orchestrator.ErrEmptyTenantID):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	return c.JSON(status, ErrorResponse{Error: err.Error()})
}

// Echo exposes the underlying echo instance so main can mount extra
// handlers and middleware.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
