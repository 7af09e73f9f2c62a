package domain

import (
	"context"
	"io"
)

// RemoteNode is a handle on a resolved remote entity (file or folder).
// Children loads the directory listing; callers are expected to memoize
// the result themselves (see transfer.Flattener) so a node stays an
// immutable description rather than a mutable cache.
type RemoteNode interface {
	// ID identifies the node within its storage backend. Stable for the
	// lifetime of the remote item; used as the memoization key.
	ID() string
	Name() string
	Size() int64
	IsDir() bool

	// Children enumerates direct children of a folder node.
	Children(ctx context.Context) ([]RemoteNode, error)

	// Open returns the byte stream of a file node.
	Open(ctx context.Context) (io.ReadCloser, error)
}
