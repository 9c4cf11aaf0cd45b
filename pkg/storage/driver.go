// Package storage defines the narrow storage-driver contract the commit
// coordinator consumes, plus a handful of implementations of it.
//
// The coordinator never talks to a filesystem, an object store, or a map
// directly. It only ever calls through a Driver, so that the same protocol
// code runs unmodified against a local disk, S3, or an in-memory fake used
// by tests. Filenames carry protocol meaning; file contents do not, and
// writes are never assumed to be atomic (the coordinator reads protocol
// state from filenames alone, so a partially written file still counts).
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotExist indicates the requested path does not exist.
var ErrNotExist = errors.New("storage: path does not exist")

// Entry describes one file observed by a directory listing. Name is the
// last path segment (no directory components); LastModified is the
// backend's notion of modification time, which callers must treat as
// possibly skewed relative to their own clock (spec's TTL windows are
// sized to absorb that skew, not eliminate it).
type Entry struct {
	Name         string
	LastModified time.Time
}

// Driver is the minimal set of operations the coordinator needs from a
// shared storage substrate. Any backend providing read-your-writes
// consistency for a single client plus monotonic (never-shrinking)
// directory listings is safe to use; see package storage/s3 and
// storage/fs for two concrete instances.
type Driver interface {
	// CreateDirectory ensures path exists as a directory. Idempotent.
	CreateDirectory(ctx context.Context, path string) error

	// Exists reports whether path is present (file or directory).
	Exists(ctx context.Context, path string) (bool, error)

	// ListAllFiles lists entries under dir. When recursive is false, only
	// direct children are returned; when true, the whole subtree is
	// flattened. Order is not guaranteed.
	ListAllFiles(ctx context.Context, dir string, recursive bool) ([]Entry, error)

	// WriteFileWithoutGuarantees writes content to path as a whole-file
	// put. Overwriting an existing path is allowed. Atomicity is
	// explicitly NOT required or assumed by callers.
	WriteFileWithoutGuarantees(ctx context.Context, path string, content []byte) error

	// Delete removes path. If recursive is true and path is a directory,
	// its entire subtree is removed. A missing target is success.
	Delete(ctx context.Context, path string, recursive bool) error
}
