// Package objectstore is the adapter for the object storage system
// holding tenant uploads and build artifacts.
package objectstore

import "context"

// Adapter is the narrow contract the deletion paths need from object
// storage. Buckets are shared; tenants are isolated by key prefix, so a
// tenant purge lists the prefix and removes objects, never the bucket.
type Adapter interface {
	// DeleteTenantScoped removes every object under the tenant prefix in
	// one bucket. A missing bucket or empty prefix listing is success
	// with zero items. Returns the number of objects removed.
	DeleteTenantScoped(ctx context.Context, bucket, tenantPrefix string) (int, error)
}
