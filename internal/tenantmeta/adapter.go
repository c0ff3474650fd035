// Package tenantmeta is the adapter for the tenant metadata store, the
// system of record mapping tenants to their external resources.
package tenantmeta

import (
	"context"
)

// Record is the metadata snapshot for one tenant. Deletion captures it
// before any destructive step because the record is unrecoverable once
// Delete runs.
type Record struct {
	// TenantID identifies the tenant (chatbot).
	TenantID string `json:"tenant_id"`

	// OwnerUserID is the user who owns the tenant.
	OwnerUserID string `json:"owner_user_id,omitempty"`

	// ProjectID is the hosting project the tenant is bound to.
	ProjectID string `json:"project_id,omitempty"`

	// VectorIndex and VectorNamespace locate the tenant's embeddings.
	VectorIndex     string `json:"vector_index,omitempty"`
	VectorNamespace string `json:"vector_namespace,omitempty"`

	// GraphInstanceID locates the tenant's graph database, if any.
	GraphInstanceID string `json:"graph_instance_id,omitempty"`

	// StorageBuckets are the buckets holding tenant-prefixed objects.
	StorageBuckets []string `json:"storage_buckets,omitempty"`
}

// Adapter is the contract the core needs from the metadata store.
type Adapter interface {
	// Get returns the tenant record, or nil with no error when the
	// tenant is absent.
	Get(ctx context.Context, tenantID string) (*Record, error)

	// ListDocuments returns the IDs of the tenant's stored documents.
	// Absent tenants yield an empty list.
	ListDocuments(ctx context.Context, tenantID string) ([]string, error)

	// Delete removes the tenant record and its document list. Returns
	// false when the tenant was already absent.
	Delete(ctx context.Context, tenantID string) (bool, error)
}
