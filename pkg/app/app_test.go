package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lastmodified/pkg/config"
	"lastmodified/pkg/core"
	"lastmodified/pkg/history"
	"lastmodified/pkg/storage/disk"
	"lastmodified/pkg/treebuilder"
	"lastmodified/pkg/types"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitStore_Disk(t *testing.T) {
	s := &config.Settings{}
	s.Storage.Type = "disk"
	s.Storage.Path = filepath.Join(t.TempDir(), "objects")

	store, err := initStore(context.Background(), s)
	require.NoError(t, err)
	assert.IsType(t, &disk.Adapter{}, store)
}

func TestInitStore_S3_MissingBucket(t *testing.T) {
	s := &config.Settings{}
	s.Storage.Type = "s3"

	store, err := initStore(context.Background(), s)
	assert.Error(t, err)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "bucket is required")
}

func TestInitStore_UnknownType(t *testing.T) {
	s := &config.Settings{}
	s.Storage.Type = "ftp"

	store, err := initStore(context.Background(), s)
	assert.Error(t, err)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "unsupported storage type")
}

func TestNewApp_GitMode(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	h, err := wt.Commit("init", &git.CommitOptions{
		Author:            &object.Signature{Name: "ann", Email: "ann@example.com", When: time.Now()},
		AllowEmptyCommits: true,
	})
	require.NoError(t, err)

	s := &config.Settings{}
	s.Storage.Type = "git"
	s.Repo.Path = dir
	s.Resolver.Policy = "earliest-stop"

	a, err := NewApp(context.Background(), s)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Repo)
	assert.NotNil(t, a.History)
	assert.Equal(t, history.PolicyEarliestStop, a.Policy)
	assert.Equal(t, dir, a.Root())

	head, err := a.ResolveRevision(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, types.Hash(h.String()), head)
}

func TestNewApp_GitModeWithoutRepository(t *testing.T) {
	s := &config.Settings{}
	s.Repo.Path = t.TempDir()

	a, err := NewApp(context.Background(), s)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.History)
	assert.Empty(t, a.Root())
	_, err = a.ResolveRevision(context.Background(), "HEAD")
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestAdoptSourceRepository(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	h, err := wt.Commit("init", &git.CommitOptions{
		Author:            &object.Signature{Name: "ann", Email: "ann@example.com", When: time.Now()},
		AllowEmptyCommits: true,
	})
	require.NoError(t, err)
	docs := filepath.Join(dir, "docs")
	require.NoError(t, os.MkdirAll(docs, 0755))

	// started outside of any repository
	t.Chdir(t.TempDir())

	t.Run("repo.path unset", func(t *testing.T) {
		s := &config.Settings{}
		a, err := NewApp(context.Background(), s)
		require.NoError(t, err)
		defer a.Close()
		require.Nil(t, a.History)

		assert.True(t, a.AdoptSourceRepository(docs))
		assert.Equal(t, dir, a.Root())
		head, err := a.ResolveRevision(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, types.Hash(h.String()), head)

		// the same repository again keeps the handle
		assert.True(t, a.AdoptSourceRepository(dir))
		assert.Len(t, a.closers, 1)
	})

	t.Run("explicit repo.path wins", func(t *testing.T) {
		s := &config.Settings{}
		s.Repo.Path = t.TempDir()
		a, err := NewApp(context.Background(), s)
		require.NoError(t, err)
		defer a.Close()

		assert.False(t, a.AdoptSourceRepository(docs))
		assert.Nil(t, a.History)
	})

	t.Run("mirror mode is left alone", func(t *testing.T) {
		s := &config.Settings{}
		s.Storage.Type = "disk"
		s.Storage.Path = filepath.Join(t.TempDir(), "objects")
		a, err := NewApp(context.Background(), s)
		require.NoError(t, err)
		defer a.Close()

		assert.True(t, a.AdoptSourceRepository(docs))
		assert.Nil(t, a.Repo)
	})
}

func TestNewApp_DiskModeWithLedger(t *testing.T) {
	base := t.TempDir()
	objects := filepath.Join(base, "mirror", "objects")

	// A mirror with one commit and HEAD pointing at it
	store, err := disk.NewAdapter(objects)
	require.NoError(t, err)
	b := treebuilder.NewBuilder(store)
	ctx := context.Background()
	tree, err := b.Build(ctx, map[types.RepoPath][]byte{"index.md": []byte("home\n")})
	require.NoError(t, err)
	sig := core.Signature{Name: "ann", Email: "ann@example.com", When: time.Unix(1700000000, 0).UTC()}
	commit, err := b.Commit(ctx, tree, nil, sig, "init")
	require.NoError(t, err)

	s := &config.Settings{}
	s.Storage.Type = "disk"
	s.Storage.Path = objects
	s.Repo.Path = base
	s.Ledger.Enabled = true
	s.Ledger.Driver = "sqlite"
	s.Ledger.DSN = "file:" + filepath.Join(base, "ledger.db")

	a, err := NewApp(ctx, s)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Refs.UpdateRef("HEAD", commit))
	head, err := a.ResolveRevision(ctx, "HEAD")
	require.NoError(t, err)
	assert.Equal(t, commit, head)

	got, err := history.Resolve(ctx, a.History, head, "index.md")
	require.NoError(t, err)
	assert.Equal(t, commit, got.ID)

	require.NotNil(t, a.Ledger)
	_, err = a.Ledger.StartRun(ctx, head, base)
	assert.NoError(t, err)
}

func TestNewApp_BadPolicy(t *testing.T) {
	s := &config.Settings{}
	s.Resolver.Policy = "random"
	_, err := NewApp(context.Background(), s)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, config.LogSettings{Level: "warn", Format: "json"})

	logger.Info("hidden")
	logger.Warn("shown", "k", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	assert.Same(t, logger, slog.Default())
	assert.Equal(t, "INFO", parseLevel("nonsense").String())
}
