package gitrepo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"lastmodified/pkg/types"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// testRepo is a real on-disk repository driven through go-git.
type testRepo struct {
	t     *testing.T
	dir   string
	repo  *git.Repository
	clock time.Time
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	return &testRepo{
		t:     t,
		dir:   dir,
		repo:  repo,
		clock: time.Date(2024, 3, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600)),
	}
}

func (r *testRepo) write(rel, content string) {
	r.t.Helper()
	full := filepath.Join(r.dir, filepath.FromSlash(rel))
	require.NoError(r.t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(r.t, os.WriteFile(full, []byte(content), 0644))

	wt, err := r.repo.Worktree()
	require.NoError(r.t, err)
	_, err = wt.Add(rel)
	require.NoError(r.t, err)
}

func (r *testRepo) remove(rel string) {
	r.t.Helper()
	wt, err := r.repo.Worktree()
	require.NoError(r.t, err)
	_, err = wt.Remove(rel)
	require.NoError(r.t, err)
}

// commit records the staged state; explicit parents create merges.
func (r *testRepo) commit(author, msg string, parents ...types.Hash) types.Hash {
	r.t.Helper()
	wt, err := r.repo.Worktree()
	require.NoError(r.t, err)

	r.clock = r.clock.Add(time.Hour)
	opts := &git.CommitOptions{
		Author:            &object.Signature{Name: author, Email: author + "@example.com", When: r.clock},
		AllowEmptyCommits: true,
	}
	for _, p := range parents {
		opts.Parents = append(opts.Parents, plumbing.NewHash(string(p)))
	}

	h, err := wt.Commit(msg, opts)
	require.NoError(r.t, err)
	return types.Hash(h.String())
}
