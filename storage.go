package storage

import (
	"context"
	"io"
	"time"
)

// Object describes one stored blob. Objects are produced by List and are
// never mutated by this library.
type Object struct {
	// Key is the hierarchical, '/'-separated identifier of the object.
	Key string

	// Size is the object's size in bytes.
	Size int64

	// LastUpdated is the object's last modification time, in UTC.
	LastUpdated time.Time
}

// Store is the capability contract implemented by every backend.
//
// All operations honor context cancellation: an in-flight call aborts as
// soon as practicable, executing any pending cleanup obligations (multipart
// abort, temp-file removal) before returning.
//
// Every failure crossing this boundary is an *errors.Error carrying one of
// the taxonomy kinds plus the resource key; no backend-native error type
// ever escapes.
type Store interface {
	// Get returns a readable stream over the object at key. The caller must
	// close the returned stream on all exit paths. A missing object is
	// reported as a NotFound error.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Put stores size bytes read from r at key and returns the stored size
	// in bytes. Options supply a file-extension hint for content-type
	// resolution and may request gzip compression of the content before it
	// is stored, in which case the returned size is the compressed byte
	// count.
	Put(ctx context.Context, key string, r io.Reader, size int64, opts ...PutOption) (int64, error)

	// Exists reports whether an object is stored at key. A failed probe,
	// including not-found, access-denied, and transport faults, is false,
	// never an error; only cancellation surfaces.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns every object whose key starts with prefix, in ascending
	// key order. A prefix matching nothing yields an empty slice, not an
	// error. List is restartable: it may be called any number of times.
	List(ctx context.Context, prefix string) ([]Object, error)

	// Copy copies the object at srcKey to dstKey inside dstContainer.
	// An empty dstContainer targets the backend's own container (bucket or
	// base path). A missing source is reported as a NotFound error carrying
	// the source key.
	Copy(ctx context.Context, srcKey, dstContainer, dstKey string) error

	// Delete removes the object at key. Deleting an absent object is a
	// success, never a NotFound error.
	Delete(ctx context.Context, key string) error
}

// PutOptions collects the per-call settings applied by PutOption values.
// Backends read it after applying the caller's options.
type PutOptions struct {
	// Extension is a file-extension hint (".json", "csv") used for
	// content-type resolution. Optional.
	Extension string

	// Gzip requests gzip compression of the content before storage.
	Gzip bool
}

// PutOption configures a single Put call.
type PutOption func(*PutOptions)

// WithExtension supplies a file-extension hint for content-type resolution.
// A leading dot is optional.
func WithExtension(ext string) PutOption {
	return func(o *PutOptions) {
		o.Extension = ext
	}
}

// WithGzip requests gzip compression of the content before it is stored.
// The object at key becomes the gzip stream; Get returns it as stored.
func WithGzip() PutOption {
	return func(o *PutOptions) {
		o.Gzip = true
	}
}

// ApplyPutOptions folds opts into a PutOptions value for backends to read.
func ApplyPutOptions(opts ...PutOption) PutOptions {
	var o PutOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
