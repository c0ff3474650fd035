// Package graph is the adapter for the graph database holding tenant
// knowledge graphs.
package graph

import "context"

// Adapter is the narrow contract the deletion paths need from the graph
// database. Instance deletion is irreversible; callers opt into it
// explicitly.
type Adapter interface {
	// DeleteDocumentNodes removes the nodes derived from one document in
	// a tenant's graph. Returns the number of nodes removed.
	DeleteDocumentNodes(ctx context.Context, instanceID, tenantID, documentID string) (int, error)

	// PurgeTenant removes every node belonging to a tenant from a shared
	// instance, leaving the instance itself in place. Returns the number
	// of nodes removed.
	PurgeTenant(ctx context.Context, instanceID, tenantID string) (int, error)

	// DeleteInstance drops the tenant's database instance entirely.
	// Returns false when the instance was already absent.
	DeleteInstance(ctx context.Context, instanceID string) (bool, error)
}
