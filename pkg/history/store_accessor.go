package history

import (
	"context"
	"fmt"

	"lastmodified/pkg/core"
	"lastmodified/pkg/storage"
	"lastmodified/pkg/types"
)

// StoreAccessor reads history from a raw object store (a disk or S3 mirror,
// optionally behind the Redis cache). It holds no state between calls and is
// safe for concurrent use when the store is.
type StoreAccessor struct {
	store storage.Store
}

func NewStoreAccessor(s storage.Store) *StoreAccessor {
	return &StoreAccessor{store: s}
}

func (a *StoreAccessor) GetCommit(ctx context.Context, id types.Hash) (*Commit, error) {
	c, err := storage.ReadCommit(ctx, a.store, id)
	if err != nil {
		return nil, err
	}
	return fromCoreCommit(id, c), nil
}

func (a *StoreAccessor) Parents(ctx context.Context, c *Commit) ([]*Commit, error) {
	parents := make([]*Commit, 0, len(c.Parents))
	for _, id := range c.Parents {
		p, err := a.GetCommit(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("parent %s: %w", id.Short(), err)
		}
		parents = append(parents, p)
	}
	return parents, nil
}

// ContentID descends the tree one path component at a time. A missing entry
// or a file where a directory is expected means the path is absent; a
// missing tree object is an error.
func (a *StoreAccessor) ContentID(ctx context.Context, c *Commit, path types.RepoPath) (types.Hash, bool, error) {
	parts := path.Parts()
	if len(parts) == 0 {
		return "", false, nil
	}

	treeID := c.Tree
	for i, name := range parts {
		tree, err := storage.ReadTree(ctx, a.store, treeID)
		if err != nil {
			return "", false, err
		}
		entry, ok := tree.Entry(name)
		if !ok {
			return "", false, nil
		}
		if i == len(parts)-1 {
			return entry.Hash, true, nil
		}
		if !entry.IsDir() {
			return "", false, nil
		}
		treeID = entry.Hash
	}
	return "", false, nil
}

func fromCoreCommit(id types.Hash, c *core.Commit) *Commit {
	return &Commit{
		ID:          id,
		Tree:        c.TreeHash,
		Parents:     c.Parents,
		AuthorName:  c.Author.Name,
		AuthorEmail: c.Author.Email,
		When:        c.Author.When,
		Message:     c.Message,
	}
}
