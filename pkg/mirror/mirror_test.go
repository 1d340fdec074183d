package mirror

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lastmodified/pkg/core"
	"lastmodified/pkg/gitrepo"
	"lastmodified/pkg/history"
	"lastmodified/pkg/storage/disk"
	"lastmodified/pkg/types"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture is a small repository with a merge and nested folders.
type fixture struct {
	t     *testing.T
	dir   string
	repo  *git.Repository
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	return &fixture{t: t, dir: dir, repo: repo, clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fixture) write(rel, content string) {
	f.t.Helper()
	full := filepath.Join(f.dir, filepath.FromSlash(rel))
	require.NoError(f.t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(f.t, os.WriteFile(full, []byte(content), 0644))
	wt, err := f.repo.Worktree()
	require.NoError(f.t, err)
	_, err = wt.Add(rel)
	require.NoError(f.t, err)
}

func (f *fixture) commit(author string, parents ...types.Hash) types.Hash {
	f.t.Helper()
	wt, err := f.repo.Worktree()
	require.NoError(f.t, err)
	f.clock = f.clock.Add(time.Hour)
	opts := &git.CommitOptions{
		Author:            &object.Signature{Name: author, Email: author + "@example.com", When: f.clock},
		AllowEmptyCommits: true,
	}
	for _, p := range parents {
		opts.Parents = append(opts.Parents, plumbing.NewHash(string(p)))
	}
	h, err := wt.Commit(author, opts)
	require.NoError(f.t, err)
	return types.Hash(h.String())
}

var paths = []types.RepoPath{"index.md", "docs/intro.md", "docs/guide/setup.md"}

// build returns the head of a merge between c2 (on top of c1, c0) and c0.
func (f *fixture) build() types.Hash {
	f.write("index.md", "home")
	f.write("docs/intro.md", "A")
	f.write("docs/guide/setup.md", "s1")
	c0 := f.commit("ann")

	f.write("docs/intro.md", "B")
	f.commit("ben")

	f.write("docs/guide/setup.md", "s2")
	c2 := f.commit("cat")

	return f.commit("dan", c2, c0)
}

func TestMirror_ResolutionMatchesRepository(t *testing.T) {
	f := newFixture(t)
	head := f.build()
	ctx := context.Background()

	repo := gitrepo.Open(f.repo)
	store, err := disk.NewAdapter(filepath.Join(t.TempDir(), "objects"))
	require.NoError(t, err)

	st, err := New(repo, store).Run(ctx, head)
	require.NoError(t, err)
	assert.Equal(t, 4, st.Commits)
	assert.Positive(t, st.Trees)

	// Same answers from the mirror and from the repository
	mirrored := history.NewStoreAccessor(store)
	for _, p := range paths {
		want, err := history.Resolve(ctx, repo, head, p)
		require.NoError(t, err, p)
		got, err := history.Resolve(ctx, mirrored, head, p)
		require.NoError(t, err, p)

		assert.Equal(t, want.ID, got.ID, p)
		assert.Equal(t, want.AuthorName, got.AuthorName, p)
		assert.True(t, want.When.Equal(got.When), p)
	}

	// Blobs stay behind
	blob := core.NewBlob([]byte("home"))
	has, err := store.Has(ctx, blob.ID())
	require.NoError(t, err)
	assert.False(t, has)
}

func TestMirror_Incremental(t *testing.T) {
	f := newFixture(t)
	head := f.build()
	ctx := context.Background()

	repo := gitrepo.Open(f.repo)
	store, err := disk.NewAdapter(t.TempDir())
	require.NoError(t, err)
	m := New(repo, store)

	_, err = m.Run(ctx, head)
	require.NoError(t, err)

	// 1. Nothing new
	st, err := m.Run(ctx, head)
	require.NoError(t, err)
	assert.Equal(t, Stats{Present: 1}, st)

	// 2. One new commit on top: only it and its changed trees
	f.write("docs/intro.md", "C")
	next := f.commit("eve", head)
	st, err = m.Run(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Commits)
	assert.Equal(t, 2, st.Trees, "root and docs changed, docs/guide did not")
	assert.Equal(t, 2, st.Present, "parent commit and docs/guide tree")
}

type failingSource struct{}

func (failingSource) RawObject(ctx context.Context, id types.Hash) (core.ObjectType, []byte, error) {
	return "", nil, errors.New("object not found")
}

func TestMirror_SourceError(t *testing.T) {
	store, err := disk.NewAdapter(t.TempDir())
	require.NoError(t, err)

	_, err = New(failingSource{}, store).Run(context.Background(), "0123456789012345678901234567890123456789")
	assert.Error(t, err)
}

func TestMirror_Cancelled(t *testing.T) {
	store, err := disk.NewAdapter(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = New(failingSource{}, store).Run(ctx, "0123456789012345678901234567890123456789")
	assert.ErrorIs(t, err, context.Canceled)
}
