// Package vector is the adapter for the vector index used for tenant
// document embeddings.
package vector

import "context"

// Adapter is the narrow contract the deletion paths need from the vector
// index. All operations are idempotent: deleting from an absent index or
// namespace succeeds with zero items affected.
type Adapter interface {
	// DeleteDocument removes every point stored for one document in a
	// tenant namespace. Returns the number of points removed.
	DeleteDocument(ctx context.Context, index, namespace, documentID string) (int, error)

	// PurgeNamespace removes every point in a tenant namespace, leaving
	// the shared index in place. Returns the number of points removed.
	PurgeNamespace(ctx context.Context, index, namespace string) (int, error)

	// DeleteIndex drops the index entirely. Returns false when the index
	// was already absent.
	DeleteIndex(ctx context.Context, index string) (bool, error)
}
