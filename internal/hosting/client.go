package hosting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultReadyAttempts = 20
	defaultReadyBackoff  = 2 * time.Second
)

// ClientConfig holds settings for the hosting platform REST client.
type ClientConfig struct {
	// BaseURL is the platform API root.
	BaseURL string

	// APIKey authenticates requests.
	APIKey string

	// Timeout bounds each HTTP call. Default: 30s.
	Timeout time.Duration

	// ReadyAttempts caps the readiness poll after Create. Default: 20.
	ReadyAttempts int

	// ReadyBackoff is the initial poll interval, doubling up to 30s.
	// Default: 2s.
	ReadyBackoff time.Duration
}

// Client implements Adapter over the hosting platform's REST API.
type Client struct {
	http   *resty.Client
	cfg    ClientConfig
	logger *zap.Logger
}

// NewClient builds the REST client.
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("hosting base URL cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ReadyAttempts <= 0 {
		cfg.ReadyAttempts = defaultReadyAttempts
	}
	if cfg.ReadyBackoff <= 0 {
		cfg.ReadyBackoff = defaultReadyBackoff
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	}

	return &Client{
		http:   httpClient,
		cfg:    cfg,
		logger: logger,
	}, nil
}

type projectResponse struct {
	ProjectID string `json:"project_id"`
	State     string `json:"state"`
	Message   string `json:"message,omitempty"`
}

// Create provisions a project and polls until the platform reports it
// ready. The polling is invisible to callers; they see success, failure,
// or a context timeout.
func (c *Client) Create(ctx context.Context, name string, metadata map[string]string) (string, error) {
	var created projectResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"name": name, "metadata": metadata}).
		SetResult(&created).
		Post("/v1/projects")
	if err != nil {
		return "", fmt.Errorf("creating hosting project %s: %w", name, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("creating hosting project %s: status %d", name, resp.StatusCode())
	}

	if err := c.waitReady(ctx, created.ProjectID); err != nil {
		return "", err
	}

	c.logger.Info("created hosting project",
		zap.String("name", name),
		zap.String("project_id", created.ProjectID))
	return created.ProjectID, nil
}

// waitReady polls the project state with exponential backoff until it is
// active, the attempt budget runs out, or the context ends.
func (c *Client) waitReady(ctx context.Context, projectID string) error {
	backoff := c.cfg.ReadyBackoff
	for attempt := 1; attempt <= c.cfg.ReadyAttempts; attempt++ {
		var proj projectResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&proj).
			Get("/v1/projects/" + projectID)
		if err == nil && resp.IsSuccess() && proj.State == "active" {
			return nil
		}
		if err == nil && resp.IsSuccess() && proj.State == "failed" {
			return fmt.Errorf("hosting project %s failed to provision: %s", projectID, proj.Message)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for hosting project %s: %w", projectID, ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
	return fmt.Errorf("hosting project %s not ready after %d attempts", projectID, c.cfg.ReadyAttempts)
}

// Delete removes a project. 404 maps to StatusNotFound.
func (c *Client) Delete(ctx context.Context, idOrName string) (DeleteStatus, error) {
	if idOrName == "" {
		return "", fmt.Errorf("project identifier cannot be empty")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		Delete("/v1/projects/" + idOrName)
	if err != nil {
		return "", fmt.Errorf("deleting hosting project %s: %w", idOrName, err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return StatusNotFound, nil
	case resp.IsError():
		return "", fmt.Errorf("deleting hosting project %s: status %d", idOrName, resp.StatusCode())
	}

	c.logger.Info("deleted hosting project", zap.String("project_id", idOrName))
	return StatusDeleted, nil
}

// PurgeTenantPaths removes a tenant's deployed paths from a shared
// project. The platform exposes this as a scoped delete on the tenant
// path prefix.
func (c *Client) PurgeTenantPaths(ctx context.Context, projectID, tenantID string) (int, error) {
	if projectID == "" || tenantID == "" {
		return 0, fmt.Errorf("project and tenant identifiers cannot be empty")
	}

	var result struct {
		PathsRemoved int `json:"paths_removed"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Delete("/v1/projects/" + projectID + "/tenants/" + tenantID)
	if err != nil {
		return 0, fmt.Errorf("purging tenant %s from project %s: %w", tenantID, projectID, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return 0, nil
	}
	if resp.IsError() {
		return 0, fmt.Errorf("purging tenant %s from project %s: status %d", tenantID, projectID, resp.StatusCode())
	}
	return result.PathsRemoved, nil
}

// Exists probes the project.
func (c *Client) Exists(ctx context.Context, idOrName string) (bool, error) {
	if idOrName == "" {
		return false, fmt.Errorf("project identifier cannot be empty")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		Get("/v1/projects/" + idOrName)
	if err != nil {
		return false, fmt.Errorf("checking hosting project %s: %w", idOrName, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	if resp.IsError() {
		return false, fmt.Errorf("checking hosting project %s: status %d", idOrName, resp.StatusCode())
	}
	return true, nil
}

var _ Adapter = (*Client)(nil)
