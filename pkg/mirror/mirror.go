// Package mirror copies repository history into an object store so the
// resolver can run without the working repository.
package mirror

import (
	"context"
	"fmt"
	"log/slog"

	"lastmodified/pkg/core"
	"lastmodified/pkg/storage"
	"lastmodified/pkg/types"
)

// Source reads raw objects. *gitrepo.Repository implements it.
type Source interface {
	RawObject(ctx context.Context, id types.Hash) (core.ObjectType, []byte, error)
}

// Stats counts objects written and objects found already present.
type Stats struct {
	Commits int
	Trees   int
	Present int
}

type Mirror struct {
	src    Source
	store  storage.Store
	logger *slog.Logger
}

func New(src Source, store storage.Store) *Mirror {
	return &Mirror{src: src, store: store, logger: slog.Default()}
}

// Run copies every commit and tree reachable from start. Blobs are not
// copied, trees only carry their ids.
//
// Objects are written ancestors first and a tree after its subtrees, so a
// commit or tree found in the store is taken as complete and not descended.
func (m *Mirror) Run(ctx context.Context, start types.Hash) (Stats, error) {
	var st Stats

	type frame struct {
		id       types.Hash
		commit   *core.Commit
		expanded bool
	}
	stack := []*frame{{id: start}}
	done := map[types.Hash]bool{}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		f := stack[len(stack)-1]

		// 1. Second visit: parents are stored, write tree and commit
		if f.expanded {
			stack = stack[:len(stack)-1]
			if err := m.copyTree(ctx, f.commit.TreeHash, &st); err != nil {
				return st, err
			}
			if err := m.store.Put(ctx, f.commit); err != nil {
				return st, fmt.Errorf("put commit %s: %w", f.id.Short(), err)
			}
			st.Commits++
			done[f.id] = true
			continue
		}

		// 2. First visit
		if done[f.id] {
			stack = stack[:len(stack)-1]
			continue
		}
		present, err := m.store.Has(ctx, f.id)
		if err != nil {
			return st, err
		}
		if present {
			st.Present++
			done[f.id] = true
			stack = stack[:len(stack)-1]
			continue
		}

		commit, err := m.readCommit(ctx, f.id)
		if err != nil {
			return st, err
		}
		f.commit = commit
		f.expanded = true
		for _, p := range commit.Parents {
			if !done[p] {
				stack = append(stack, &frame{id: p})
			}
		}
	}

	m.logger.Info("mirror finished", "start", start.Short(), "commits", st.Commits, "trees", st.Trees, "present", st.Present)
	return st, nil
}

func (m *Mirror) readCommit(ctx context.Context, id types.Hash) (*core.Commit, error) {
	t, payload, err := m.src.RawObject(ctx, id)
	if err != nil {
		return nil, err
	}
	if t != core.TypeCommit {
		return nil, fmt.Errorf("%s is a %s, not a commit", id.Short(), t)
	}
	return core.ParseCommit(id, payload)
}

// copyTree writes a tree after all of its subtrees.
func (m *Mirror) copyTree(ctx context.Context, id types.Hash, st *Stats) error {
	present, err := m.store.Has(ctx, id)
	if err != nil {
		return err
	}
	if present {
		st.Present++
		return nil
	}

	t, payload, err := m.src.RawObject(ctx, id)
	if err != nil {
		return err
	}
	if t != core.TypeTree {
		return fmt.Errorf("%s is a %s, not a tree", id.Short(), t)
	}
	tree, err := core.ParseTree(id, payload)
	if err != nil {
		return err
	}

	for _, e := range tree.Entries {
		if !e.IsDir() {
			continue
		}
		if err := m.copyTree(ctx, e.Hash, st); err != nil {
			return err
		}
	}

	if err := m.store.Put(ctx, tree); err != nil {
		return fmt.Errorf("put tree %s: %w", id.Short(), err)
	}
	st.Trees++
	return nil
}
