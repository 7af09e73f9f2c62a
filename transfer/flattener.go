package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"mega-relay/domain"
	"mega-relay/errors"
)

// Flattener turns an arbitrary remote directory tree into the ordered list
// of leaf files to download. Child listings are loaded lazily and memoized
// in an explicit map keyed by node ID, so the remote capability is invoked
// exactly once per directory and the nodes themselves stay immutable.
type Flattener struct {
	log      *slog.Logger
	children map[string][]domain.RemoteNode
}

func NewFlattener(log *slog.Logger) *Flattener {
	return &Flattener{
		log:      log,
		children: make(map[string][]domain.RemoteNode),
	}
}

// Flatten walks the folder depth-first and returns its leaves in enumeration
// order. An empty directory contributes nothing and is not an error; a child
// listing failure aborts the whole walk with no partial results.
func (f *Flattener) Flatten(ctx context.Context, root domain.RemoteNode) ([]domain.LeafFile, error) {
	return f.walk(ctx, root, "")
}

func (f *Flattener) walk(ctx context.Context, node domain.RemoteNode, prefix string) ([]domain.LeafFile, error) {
	children, err := f.load(ctx, node)
	if err != nil {
		return nil, err
	}

	var leaves []domain.LeafFile
	for _, child := range children {
		if child.IsDir() {
			sub, err := f.walk(ctx, child, path.Join(prefix, child.Name()))
			if err != nil {
				return nil, err
			}
			leaves = append(leaves, sub...)
			continue
		}

		leaves = append(leaves, domain.LeafFile{
			RelPath: path.Join(prefix, child.Name()),
			Name:    child.Name(),
			Size:    child.Size(),
			Node:    child,
		})
	}

	return leaves, nil
}

func (f *Flattener) load(ctx context.Context, node domain.RemoteNode) ([]domain.RemoteNode, error) {
	if cached, ok := f.children[node.ID()]; ok {
		return cached, nil
	}

	f.log.Debug("Loading folder children", "node", node.Name())
	children, err := node.Children(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %q: %v", errors.ErrEnumeration, node.Name(), err)
	}

	f.children[node.ID()] = children
	return children, nil
}
