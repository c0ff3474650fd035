// Package hosting is the adapter for the hosting platform that runs
// tenant deployments.
package hosting

import "context"

// DeleteStatus classifies the result of a project delete.
type DeleteStatus string

const (
	// StatusDeleted means the project existed and was removed.
	StatusDeleted DeleteStatus = "deleted"

	// StatusNotFound means the project was already absent. Deletion is
	// idempotent, so callers treat this as success.
	StatusNotFound DeleteStatus = "not-found"
)

// Adapter is the narrow contract the core needs from the hosting
// platform. Project handles are opaque; the core never interprets them.
type Adapter interface {
	// Create provisions a new hosting project and blocks until it is
	// ready, hiding the platform's readiness polling behind a bounded
	// retry with backoff. Returns the platform's project handle.
	Create(ctx context.Context, name string, metadata map[string]string) (string, error)

	// Delete removes a project entirely. Absent projects report
	// StatusNotFound, never an error.
	Delete(ctx context.Context, idOrName string) (DeleteStatus, error)

	// PurgeTenantPaths removes a tenant's deployed content from a shared
	// project without touching the project itself. Returns the number of
	// paths removed.
	PurgeTenantPaths(ctx context.Context, projectID, tenantID string) (int, error)

	// Exists reports whether a project is present on the platform.
	Exists(ctx context.Context, idOrName string) (bool, error)
}
