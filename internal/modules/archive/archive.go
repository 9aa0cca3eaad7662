// Package archive snapshots the results database and per-run CSV exports to
// cold storage and rotates old snapshots. Storage backends: S3-compatible
// object stores and a local directory tree.
package archive

import "context"

// Storage is a cold-storage backend addressed by slash-separated keys.
type Storage interface {
	// Write stores data at the given key, overwriting any previous object.
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves the object at the given key.
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns every key under the prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the object at the given key.
	Delete(ctx context.Context, path string) error

	// Exists reports whether an object is stored at the given key.
	Exists(ctx context.Context, path string) (bool, error)
}
