package gitrepo

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"lastmodified/pkg/history"
	"lastmodified/pkg/storage"
	"lastmodified/pkg/types"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 1. Discovery
// -----------------------------------------------------------------------------

func TestDiscover(t *testing.T) {
	r := newTestRepo(t)
	r.write("docs/articles/intro.md", "# Intro\n")
	r.commit("ann", "init")

	// from the root, a nested directory and a file
	for _, start := range []string{
		r.dir,
		filepath.Join(r.dir, "docs", "articles"),
		filepath.Join(r.dir, "docs", "articles", "intro.md"),
	} {
		repo, err := Discover(start)
		require.NoError(t, err, start)
		assert.Equal(t, r.dir, repo.Root())
		require.NoError(t, repo.Close())
	}
}

func TestDiscover_NoRepository(t *testing.T) {
	_, err := Discover(t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreDiscoveryFailed)
}

func TestOpen_BareHasNoRoot(t *testing.T) {
	bare, err := git.PlainInit(t.TempDir(), true)
	require.NoError(t, err)

	repo := Open(bare)
	assert.Empty(t, repo.Root())

	_, err = RelativePath(repo.Root(), "/srv/docs/intro.md")
	assert.ErrorIs(t, err, ErrRootNotResolvable)
}

// -----------------------------------------------------------------------------
// 2. Accessor
// -----------------------------------------------------------------------------

func TestRepository_ResolveLinear(t *testing.T) {
	r := newTestRepo(t)
	r.write("docs/intro.md", "v1")
	r.write("index.md", "home")
	c0 := r.commit("ann", "init")

	r.write("docs/intro.md", "v2")
	c1 := r.commit("ben", "rewrite intro\n\nlonger text")

	r.write("index.md", "home v2")
	c2 := r.commit("cat", "touch index")

	repo, err := Discover(r.dir)
	require.NoError(t, err)
	defer repo.Close()

	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, c2, head)

	ctx := context.Background()

	got, err := history.Resolve(ctx, repo, head, "docs/intro.md")
	require.NoError(t, err)
	assert.Equal(t, c1, got.ID)
	assert.Equal(t, "ben", got.AuthorName)
	assert.Equal(t, "ben@example.com", got.AuthorEmail)
	assert.Equal(t, "rewrite intro", got.Summary())
	assert.True(t, r.clock.Add(-time.Hour).Equal(got.When))

	got, err = history.Resolve(ctx, repo, head, "index.md")
	require.NoError(t, err)
	assert.Equal(t, c2, got.ID)

	got, err = history.Resolve(ctx, repo, c1, "index.md")
	require.NoError(t, err)
	assert.Equal(t, c0, got.ID)

	_, err = history.Resolve(ctx, repo, head, "docs/missing.md")
	assert.ErrorIs(t, err, history.ErrPathNotFound)

	_, err = history.Resolve(ctx, repo, head, "index.md/below")
	assert.ErrorIs(t, err, history.ErrPathNotFound)
}

func TestRepository_ResolveMergeAndRestore(t *testing.T) {
	r := newTestRepo(t)
	r.write("intro.md", "A")
	c0 := r.commit("ann", "A")

	r.write("intro.md", "B")
	c1 := r.commit("ben", "B")

	// merge keeping B; c0 diverges, c1 matches
	m := r.commit("cat", "merge", c1, c0)

	repo := Open(r.repo)
	ctx := context.Background()

	got, err := history.Resolve(ctx, repo, m, "intro.md")
	require.NoError(t, err)
	assert.Equal(t, c1, got.ID)

	// delete and restore the same content: the restore wins
	r.remove("intro.md")
	r.write("keep.md", "k")
	r.commit("dan", "delete")
	r.write("intro.md", "B")
	restored := r.commit("eve", "restore")

	got, err = history.Resolve(ctx, repo, restored, "intro.md")
	require.NoError(t, err)
	assert.Equal(t, restored, got.ID)

	log, err := history.Log(ctx, repo, restored, "intro.md", 0)
	require.NoError(t, err)
	require.Len(t, log, 1, "the parent of the restore lacks the file")
}

func TestRepository_ResolveRevision(t *testing.T) {
	r := newTestRepo(t)
	r.write("a.md", "1")
	c0 := r.commit("ann", "one")
	r.write("a.md", "2")
	c1 := r.commit("ben", "two")

	repo := Open(r.repo)

	got, err := repo.ResolveRevision("")
	require.NoError(t, err)
	assert.Equal(t, c1, got)

	got, err = repo.ResolveRevision("HEAD~1")
	require.NoError(t, err)
	assert.Equal(t, c0, got)

	got, err = repo.ResolveRevision(string(c0))
	require.NoError(t, err)
	assert.Equal(t, c0, got)

	_, err = repo.ResolveRevision("no-such-branch")
	assert.Error(t, err)
}

func TestRepository_CorruptObject(t *testing.T) {
	r := newTestRepo(t)
	r.write("a.md", "1")
	c0 := r.commit("ann", "one")
	r.write("a.md", "2")
	c1 := r.commit("ben", "two")

	ctx := context.Background()
	parent, err := Open(r.repo).GetCommit(ctx, c0)
	require.NoError(t, err)

	// remove the parent's root tree object, then reopen without caches
	tree := string(parent.Tree)
	require.NoError(t, os.Remove(filepath.Join(r.dir, ".git", "objects", tree[:2], tree[2:])))

	repo, err := Discover(r.dir)
	require.NoError(t, err)
	defer repo.Close()

	_, err = history.Resolve(ctx, repo, c1, "a.md")
	require.Error(t, err)
	assert.ErrorIs(t, err, history.ErrStoreCorruption)
}

func TestRepository_ConcurrentReads(t *testing.T) {
	r := newTestRepo(t)
	for i, content := range []string{"a", "b", "c", "d"} {
		r.write("doc.md", content)
		r.write("other.md", string(rune('0'+i)))
		r.commit("ann", "edit "+content)
	}
	r.write("other.md", "last")
	head := r.commit("ann", "unrelated")

	repo := Open(r.repo)

	var wg sync.WaitGroup
	results := make([]types.Hash, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := history.Resolve(context.Background(), repo, head, "doc.md")
			if err == nil {
				results[i] = c.ID
			}
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, results[0], got)
		assert.NotEmpty(t, got)
	}
}

func TestRepository_RawObject(t *testing.T) {
	r := newTestRepo(t)
	r.write("hello.txt", "hello\n")
	head := r.commit("ann", "init")

	repo := Open(r.repo)
	typ, payload, err := repo.RawObject(context.Background(), head)
	require.NoError(t, err)
	assert.Equal(t, "commit", string(typ))
	assert.Contains(t, string(payload), "author ann <ann@example.com>")

	typ, payload, err = repo.RawObject(context.Background(), "ce013625030ba8dba906f756967f9e9ca394464a")
	require.NoError(t, err)
	assert.Equal(t, "blob", string(typ))
	assert.Equal(t, "hello\n", string(payload))
}

func TestRepository_ExpandHash(t *testing.T) {
	r := newTestRepo(t)
	r.write("hello.txt", "hello\n")
	head := r.commit("ann", "init")

	c, err := r.repo.CommitObject(plumbing.NewHash(string(head)))
	require.NoError(t, err)
	tree := types.Hash(c.TreeHash.String())
	blob := types.Hash("ce013625030ba8dba906f756967f9e9ca394464a")

	repo := Open(r.repo)
	ctx := context.Background()

	tests := []struct {
		name    string
		input   string
		want    types.Hash
		wantErr error
	}{
		{"full blob id", string(blob), blob, nil},
		{"abbreviated blob", "ce0136", blob, nil},
		{"odd length", "ce01362", blob, nil},
		{"upper case", "CE013625", blob, nil},
		{"abbreviated tree", string(tree)[:7], tree, nil},
		{"abbreviated commit", string(head)[:10], head, nil},
		{"unknown full id", "ffffffffffffffffffffffffffffffffffffffff", "", storage.ErrNotFound},
		{"unknown prefix", "ffffff", "", storage.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ExpandHash(ctx, types.HashPrefix(tt.input))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err = repo.ExpandHash(ctx, "ce0")
	assert.Error(t, err, "too short")
	_, err = repo.ExpandHash(ctx, "zzzz")
	assert.Error(t, err, "not hex")
}
