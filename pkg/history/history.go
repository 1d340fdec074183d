// Package history finds the commit that last changed the content of a path.
//
// The resolver walks the commit graph breadth-first from a start commit and
// follows every parent edge along which the path's content id stays the same.
// The walk stops at the first commit none of whose parents carry that content.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lastmodified/pkg/types"
)

var (
	// ErrPathNotFound means the path does not exist in the start commit.
	ErrPathNotFound = errors.New("path not found in start commit")

	// ErrStoreCorruption wraps any failure of the accessor to produce an object.
	ErrStoreCorruption = errors.New("object store corruption")
)

// Commit is the read-only view of a commit the resolver works with.
type Commit struct {
	ID          types.Hash
	Tree        types.Hash
	Parents     []types.Hash
	AuthorName  string
	AuthorEmail string
	When        time.Time
	Message     string
}

// Summary returns the first line of the message.
func (c *Commit) Summary() string {
	for i := 0; i < len(c.Message); i++ {
		if c.Message[i] == '\n' {
			return c.Message[:i]
		}
	}
	return c.Message
}

// Accessor is the read capability the resolver needs from a store.
// Implementations must be deterministic; errors are treated as corruption.
type Accessor interface {
	GetCommit(ctx context.Context, id types.Hash) (*Commit, error)
	Parents(ctx context.Context, c *Commit) ([]*Commit, error)
	// ContentID returns the id of the object at path, or false when absent.
	ContentID(ctx context.Context, c *Commit, path types.RepoPath) (types.Hash, bool, error)
}

// corruption wraps an accessor error so that errors.Is matches both
// ErrStoreCorruption and the underlying cause. Context errors pass through.
func corruption(op string, id types.Hash, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ErrStoreCorruption) {
		return fmt.Errorf("%s %s: %w", op, id.Short(), err)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrStoreCorruption, op, id.Short(), err)
}
