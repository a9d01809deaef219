// Package objectstore abstracts the blob backend holding proxies, clips,
// thumbnails, caption files and highlight manifests. It keeps a narrow
// interface: opaque objects addressed by bucket-relative key.
package objectstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// Store is the interface for object storage operations.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves an object by key. The caller must close the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Put stores an object under key, overwriting any existing object.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// PutFile uploads a local file under key.
	PutFile(ctx context.Context, key, localPath, contentType string) error

	// Download copies an object to a local path.
	Download(ctx context.Context, key, localPath string) error

	// Exists reports whether an object exists at key.
	Exists(ctx context.Context, key string) (bool, error)
}
