package history

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"lastmodified/pkg/types"
)

// -----------------------------------------------------------------------------
// fakeGraph: in-memory Accessor with call counters
// -----------------------------------------------------------------------------

type fakeGraph struct {
	mu       sync.Mutex
	commits  map[types.Hash]*Commit
	contents map[types.Hash]map[types.RepoPath]types.Hash
	failOn   map[types.Hash]error // ContentID fails for these commits

	getCalls     map[types.Hash]int
	parentCalls  map[types.Hash]int
	contentCalls int
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		commits:     make(map[types.Hash]*Commit),
		contents:    make(map[types.Hash]map[types.RepoPath]types.Hash),
		failOn:      make(map[types.Hash]error),
		getCalls:    make(map[types.Hash]int),
		parentCalls: make(map[types.Hash]int),
	}
}

// id derives a stable 40 char hash from a label such as "C3".
func id(label string) types.Hash {
	sum := sha1.Sum([]byte(label))
	return types.Hash(hex.EncodeToString(sum[:]))
}

// content returns the id of a fictional blob labelled e.g. "A".
func content(label string) types.Hash {
	return id("blob:" + label)
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// add registers a commit. files maps path -> content label; at is the author
// time offset in hours.
func (g *fakeGraph) add(label string, at int, files map[types.RepoPath]string, parents ...string) types.Hash {
	c := &Commit{
		ID:          id(label),
		Tree:        id("tree:" + label),
		AuthorName:  "author-" + label,
		AuthorEmail: label + "@example.com",
		When:        epoch.Add(time.Duration(at) * time.Hour),
		Message:     "commit " + label,
	}
	for _, p := range parents {
		c.Parents = append(c.Parents, id(p))
	}
	g.commits[c.ID] = c

	snapshot := make(map[types.RepoPath]types.Hash, len(files))
	for path, label := range files {
		snapshot[path] = content(label)
	}
	g.contents[c.ID] = snapshot
	return c.ID
}

func (g *fakeGraph) GetCommit(ctx context.Context, h types.Hash) (*Commit, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getCalls[h]++
	c, ok := g.commits[h]
	if !ok {
		return nil, errMissingObject
	}
	return c, nil
}

func (g *fakeGraph) Parents(ctx context.Context, c *Commit) ([]*Commit, error) {
	g.mu.Lock()
	g.parentCalls[c.ID]++
	g.mu.Unlock()

	out := make([]*Commit, 0, len(c.Parents))
	for _, p := range c.Parents {
		pc, err := g.GetCommit(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, pc)
	}
	return out, nil
}

func (g *fakeGraph) ContentID(ctx context.Context, c *Commit, path types.RepoPath) (types.Hash, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.contentCalls++
	if err, ok := g.failOn[c.ID]; ok {
		return "", false, err
	}
	h, ok := g.contents[c.ID][path]
	return h, ok, nil
}

func (g *fakeGraph) totalParentCalls() int {
	n := 0
	for _, v := range g.parentCalls {
		n += v
	}
	return n
}

var errMissingObject = errors.New("missing object")

// mustResolve aborts the test on error.
func mustResolve(t *testing.T, acc Accessor, start types.Hash, path types.RepoPath, opts ...Option) *Commit {
	t.Helper()
	c, err := Resolve(context.Background(), acc, start, path, opts...)
	if err != nil {
		t.Fatalf("resolve %s from %s: %v", path, start.Short(), err)
	}
	return c
}
