package http

// DeleteTenantRequest is the body for DELETE /api/v1/tenants/:id.
type DeleteTenantRequest struct {
	OwnerUserID         string `json:"ownerUserId"`
	DeleteVectorIndex   bool   `json:"deleteVectorIndex"`
	DeleteGraphDatabase bool   `json:"deleteGraphDatabase"`
}

// DeleteTenantDetails itemizes what a deletion removed.
type DeleteTenantDetails struct {
	DocumentsDeleted  int      `json:"documentsDeleted"`
	TotalItemsDeleted int      `json:"totalItemsDeleted"`
	ServicesCleaned   []string `json:"servicesCleaned"`
}

// DeleteTenantResponse is the body for DELETE /api/v1/tenants/:id.
// Success is true only for a fully clean deletion; a partial result
// carries the per-subsystem errors so the failed pieces can be retried.
type DeleteTenantResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Errors  []string            `json:"errors,omitempty"`
	Details DeleteTenantDetails `json:"details"`
}

// Pool actions accepted by POST /api/v1/pool.
const (
	PoolActionRegister      = "register"
	PoolActionMarkAvailable = "mark-available"
	PoolActionSyncStatus    = "sync-status"
)

// PoolActionRequest is the body for POST /api/v1/pool.
type PoolActionRequest struct {
	Action      string            `json:"action"`
	ProjectID   string            `json:"projectId"`
	ProjectType string            `json:"projectType,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// PoolSummaryResponse is the body for GET /api/v1/pool without a
// projectId parameter.
type PoolSummaryResponse struct {
	Available   int `json:"available"`
	InUse       int `json:"inUse"`
	Recycling   int `json:"recycling"`
	Maintenance int `json:"maintenance"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse carries a client-facing error message.
type ErrorResponse struct {
	Error string `json:"error"`
}
