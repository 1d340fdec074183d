package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"lastmodified/pkg/app"
	"lastmodified/pkg/core"
	"lastmodified/pkg/history"
	"lastmodified/pkg/refs"
	"lastmodified/pkg/storage/disk"
	"lastmodified/pkg/treebuilder"
	"lastmodified/pkg/types"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

// fixture is a mirror with two commits:
//
//	c0: index.md=v1 guide.md=g
//	c1: index.md=v2 guide.md=g   (HEAD)
type fixture struct {
	app     *app.App
	builder *treebuilder.Builder
	c0, c1  types.Hash
}

func setupTestApp(t *testing.T) *fixture {
	t.Helper()
	gitDir := t.TempDir()
	store, err := disk.NewAdapter(filepath.Join(gitDir, "objects"))
	require.NoError(t, err)

	f := &fixture{builder: treebuilder.NewBuilder(store)}
	f.c0 = f.commit(t, map[types.RepoPath]string{"index.md": "v1", "guide.md": "g"}, 0)
	f.c1 = f.commit(t, map[types.RepoPath]string{"index.md": "v2", "guide.md": "g"}, 1, f.c0)

	mgr := refs.NewManager(gitDir, store)
	require.NoError(t, mgr.UpdateRef("HEAD", f.c1))

	f.app = &app.App{
		Store:   store,
		Refs:    mgr,
		History: history.NewStoreAccessor(store),
		Policy:  history.PolicyFirstStop,
	}
	return f
}

func (f *fixture) commit(t *testing.T, files map[types.RepoPath]string, hour int, parents ...types.Hash) types.Hash {
	t.Helper()
	ctx := context.Background()
	snapshot := map[types.RepoPath][]byte{}
	for p, c := range files {
		snapshot[p] = []byte(c)
	}
	tree, err := f.builder.Build(ctx, snapshot)
	require.NoError(t, err)

	sig := core.Signature{
		Name:  "ann",
		Email: "ann@example.com",
		When:  time.Date(2024, 3, 1, 9+hour, 0, 0, 0, time.UTC),
	}
	id, err := f.builder.Commit(ctx, tree, parents, sig, "change\n\nbody")
	require.NoError(t, err)
	return id
}

func mustStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}
