package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lastmodified/pkg/annotate"
	"lastmodified/pkg/history"
	"lastmodified/pkg/manifest"
	"lastmodified/pkg/meta"
	"lastmodified/pkg/types"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const pageWithList = `<html><body>
<article class="content wrap"><h1>Page</h1></article>
<div class="contribution"><ul><li>Edit</li></ul></div>
</body></html>`

const pageWithoutList = `<html><body><article class="content wrap"></article></body></html>`

var commitTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// site is a docs folder, optionally inside a repository, plus DocFX output.
type site struct {
	t      *testing.T
	root   string // repository / docs root
	output string
	items  []manifest.Item
}

func newSite(t *testing.T) *site {
	t.Helper()
	return &site{t: t, root: t.TempDir(), output: t.TempDir()}
}

// source writes a markdown file below docs/ with a fixed mtime.
func (s *site) source(rel string, mtime time.Time) {
	s.t.Helper()
	full := filepath.Join(s.root, "docs", filepath.FromSlash(rel))
	require.NoError(s.t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(s.t, os.WriteFile(full, []byte("# "+rel+"\n"), 0644))
	require.NoError(s.t, os.Chtimes(full, mtime, mtime))
}

// page registers a conceptual item and writes its HTML output.
func (s *site) page(rel, html string) string {
	s.t.Helper()
	out := rel[:len(rel)-len(filepath.Ext(rel))] + ".html"
	full := filepath.Join(s.output, filepath.FromSlash(out))
	require.NoError(s.t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(s.t, os.WriteFile(full, []byte(html), 0644))

	s.items = append(s.items, manifest.Item{
		Type:               manifest.TypeConceptual,
		SourceRelativePath: rel,
		Output:             map[string]manifest.OutputFile{".html": {RelativePath: out}},
	})
	return full
}

func (s *site) manifest() *manifest.Manifest {
	return &manifest.Manifest{
		SourceBasePath: filepath.ToSlash(filepath.Join(s.root, "docs")),
		Files:          s.items,
	}
}

// commitAll turns root into a repository holding docs/ files in tracked.
func (s *site) commitAll(author string, tracked ...string) types.Hash {
	s.t.Helper()
	repo, err := git.PlainInit(s.root, false)
	require.NoError(s.t, err)
	wt, err := repo.Worktree()
	require.NoError(s.t, err)
	for _, rel := range tracked {
		_, err := wt.Add("docs/" + rel)
		require.NoError(s.t, err)
	}
	h, err := wt.Commit("docs", &git.CommitOptions{
		Author: &object.Signature{Name: author, Email: author + "@example.com", When: commitTime},
	})
	require.NoError(s.t, err)
	return types.Hash(h.String())
}

func mustRead(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(data)
}

func newWriter() *annotate.Writer {
	return annotate.NewWriter(annotate.Options{Location: time.UTC})
}

func newLedger(t *testing.T) *meta.Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	metaDB := meta.NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate())
	t.Cleanup(func() { _ = metaDB.Close() })
	return meta.NewRepository(metaDB)
}

// brokenAccessor fails every read, like a repository with missing objects.
type brokenAccessor struct{ err error }

func (b brokenAccessor) GetCommit(ctx context.Context, id types.Hash) (*history.Commit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, b.err
}

func (b brokenAccessor) Parents(ctx context.Context, c *history.Commit) ([]*history.Commit, error) {
	return nil, b.err
}

func (b brokenAccessor) ContentID(ctx context.Context, c *history.Commit, path types.RepoPath) (types.Hash, bool, error) {
	return "", false, b.err
}
