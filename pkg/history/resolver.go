package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lastmodified/pkg/types"
)

// Policy decides which commit is reported when the walk could stop on more
// than one branch of a merge-heavy history.
type Policy string

const (
	// PolicyFirstStop returns the commit at which the walk first stops, in
	// FIFO order. This is the classic behaviour.
	PolicyFirstStop Policy = "first-stop"

	// PolicyEarliestStop walks the whole matching sub-graph and returns the
	// stop commit with the earliest author time. Ties keep FIFO order.
	PolicyEarliestStop Policy = "earliest-stop"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyFirstStop:
		return PolicyFirstStop, nil
	case PolicyEarliestStop:
		return PolicyEarliestStop, nil
	default:
		return "", fmt.Errorf("unknown resolver policy %q", s)
	}
}

type options struct {
	policy Policy
}

type Option func(*options)

func WithPolicy(p Policy) Option {
	return func(o *options) {
		if p != "" {
			o.policy = p
		}
	}
}

// Resolve returns the commit that last set the content found at path in
// start. The result is start itself when no parent carries that content.
//
// Errors: ErrPathNotFound when path is absent from start (no graph walk is
// done), ErrStoreCorruption when the accessor fails, ctx.Err() on cancel.
func Resolve(ctx context.Context, acc Accessor, start types.Hash, path types.RepoPath, opts ...Option) (*Commit, error) {
	o := options{policy: PolicyFirstStop}
	for _, opt := range opts {
		opt(&o)
	}

	// 1. Content id in the start snapshot
	head, err := acc.GetCommit(ctx, start)
	if err != nil {
		return nil, corruption("read commit", start, err)
	}
	target, ok, err := acc.ContentID(ctx, head, path)
	if err != nil {
		return nil, corruption("read tree of", head.ID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s at %s", ErrPathNotFound, path, head.ID.Short())
	}

	// 2. Frontier
	queue := []*Commit{head}
	visited := map[types.Hash]struct{}{head.ID: {}}

	var current *Commit
	var stops []*Commit

	// 3. Breadth-first over parents carrying the same content
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current, queue = queue[0], queue[1:]

		parents, err := acc.Parents(ctx, current)
		if err != nil {
			return nil, corruption("read parents of", current.ID, err)
		}

		matched := false
		for _, p := range parents {
			id, present, err := acc.ContentID(ctx, p, path)
			if err != nil {
				return nil, corruption("read tree of", p.ID, err)
			}
			if !present || id != target {
				continue
			}
			matched = true
			if _, seen := visited[p.ID]; seen {
				continue
			}
			visited[p.ID] = struct{}{}
			queue = append(queue, p)
		}

		if matched {
			continue
		}
		if o.policy != PolicyEarliestStop {
			return current, nil
		}
		stops = append(stops, current)
	}

	// 4. Queue drained
	if len(stops) == 0 {
		return current, nil
	}
	earliest := stops[0]
	for _, c := range stops[1:] {
		if c.When.Before(earliest.When) {
			earliest = c
		}
	}
	return earliest, nil
}

// Log lists successive commits that changed path, newest first, up to
// limit entries (limit <= 0 means no limit). After each result the walk
// continues from the first parent that still has the path.
func Log(ctx context.Context, acc Accessor, start types.Hash, path types.RepoPath, limit int, opts ...Option) ([]*Commit, error) {
	var out []*Commit
	next := start
	for limit <= 0 || len(out) < limit {
		c, err := Resolve(ctx, acc, next, path, opts...)
		if err != nil {
			if len(out) > 0 && errors.Is(err, ErrPathNotFound) {
				break
			}
			return out, err
		}
		out = append(out, c)

		parent, err := firstParentWithPath(ctx, acc, c, path)
		if err != nil {
			return out, err
		}
		if parent == nil {
			break
		}
		next = parent.ID
	}
	return out, nil
}

func firstParentWithPath(ctx context.Context, acc Accessor, c *Commit, path types.RepoPath) (*Commit, error) {
	parents, err := acc.Parents(ctx, c)
	if err != nil {
		return nil, corruption("read parents of", c.ID, err)
	}
	for _, p := range parents {
		_, ok, err := acc.ContentID(ctx, p, path)
		if err != nil {
			return nil, corruption("read tree of", p.ID, err)
		}
		if ok {
			return p, nil
		}
	}
	return nil, nil
}
