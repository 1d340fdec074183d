// Package gitrepo adapts an on-disk git repository (loose objects, packfiles,
// linked worktrees) to the history.Accessor contract using go-git.
package gitrepo

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"lastmodified/pkg/core"
	"lastmodified/pkg/history"
	"lastmodified/pkg/storage"
	"lastmodified/pkg/types"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrStoreDiscoveryFailed means no repository encloses the given location.
var ErrStoreDiscoveryFailed = errors.New("no git repository found")

// Repository is a shared, read-only handle. go-git's packfile readers are
// not safe for concurrent use, so every read takes the mutex.
type Repository struct {
	mu   sync.Mutex
	repo *git.Repository
	root string
}

// Discover opens the repository enclosing path, walking up parent
// directories like git does. path may be a file.
func Discover(path string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStoreDiscoveryFailed, path, err)
	}
	return wrap(repo), nil
}

// Open wraps an already opened go-git repository.
func Open(repo *git.Repository) *Repository {
	return wrap(repo)
}

func wrap(repo *git.Repository) *Repository {
	r := &Repository{repo: repo}
	// bare repositories have no worktree and therefore no root
	if wt, err := repo.Worktree(); err == nil {
		r.root = wt.Filesystem.Root()
	}
	return r
}

// Root is the worktree directory, or "" for bare repositories.
func (r *Repository) Root() string { return r.root }

// Head returns the commit HEAD points to.
func (r *Repository) Head() (types.Hash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return types.Hash(ref.Hash().String()), nil
}

// ResolveRevision accepts anything git rev-parse would for a commit:
// branch, tag, HEAD~2, abbreviated hash.
func (r *Repository) ResolveRevision(rev string) (types.Hash, error) {
	if rev == "" {
		return r.Head()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	h, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", fmt.Errorf("resolve revision %q: %w", rev, err)
	}
	return types.Hash(h.String()), nil
}

func (r *Repository) GetCommit(ctx context.Context, id types.Hash) (*history.Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commit(id)
}

func (r *Repository) Parents(ctx context.Context, c *history.Commit) ([]*history.Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	parents := make([]*history.Commit, 0, len(c.Parents))
	for _, id := range c.Parents {
		p, err := r.commit(id)
		if err != nil {
			return nil, fmt.Errorf("parent %s: %w", id.Short(), err)
		}
		parents = append(parents, p)
	}
	return parents, nil
}

// ContentID walks the tree of c. Missing entries (and files used as
// directories) are reported as absent, unreadable trees as errors.
func (r *Repository) ContentID(ctx context.Context, c *history.Commit, path types.RepoPath) (types.Hash, bool, error) {
	parts := path.Parts()
	if len(parts) == 0 {
		return "", false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tree, err := r.repo.TreeObject(plumbing.NewHash(string(c.Tree)))
	if err != nil {
		return "", false, fmt.Errorf("tree %s: %w", c.Tree.Short(), err)
	}

	for i, name := range parts {
		entry := findEntry(tree, name)
		if entry == nil {
			return "", false, nil
		}
		if i == len(parts)-1 {
			return types.Hash(entry.Hash.String()), true, nil
		}
		if entry.Mode != filemode.Dir {
			return "", false, nil
		}
		tree, err = r.repo.TreeObject(entry.Hash)
		if err != nil {
			return "", false, fmt.Errorf("tree %s: %w", entry.Hash.String()[:8], err)
		}
	}
	return "", false, nil
}

// RawObject returns the type and payload of any object, loose or packed.
func (r *Repository) RawObject(ctx context.Context, id types.Hash) (core.ObjectType, []byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj, err := r.repo.Storer.EncodedObject(plumbing.AnyObject, plumbing.NewHash(string(id)))
	if err != nil {
		return "", nil, fmt.Errorf("object %s: %w", id.Short(), err)
	}
	t, err := core.ParseObjectType(obj.Type().String())
	if err != nil {
		return "", nil, err
	}

	rd, err := obj.Reader()
	if err != nil {
		return "", nil, err
	}
	defer rd.Close()

	payload, err := io.ReadAll(rd)
	if err != nil {
		return "", nil, fmt.Errorf("object %s: %w", id.Short(), err)
	}
	return t, payload, nil
}

// ExpandHash resolves an abbreviated id of any object type, loose or
// packed. Unlike ResolveRevision it also finds trees and blobs.
func (r *Repository) ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.Hash, error) {
	if err := storage.CheckPrefix(prefix); err != nil {
		return "", err
	}
	p := strings.ToLower(string(prefix))
	if strings.Trim(p, "0123456789abcdef") != "" {
		return "", fmt.Errorf("invalid hash prefix %q", prefix)
	}
	// whole bytes only; the odd nibble is matched on the hex form below
	raw, _ := hex.DecodeString(p[:len(p)&^1])

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(p) == types.HashLen {
		_, err := r.repo.Storer.EncodedObject(plumbing.AnyObject, plumbing.NewHash(p))
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return "", fmt.Errorf("%w: %s", storage.ErrNotFound, prefix)
		}
		if err != nil {
			return "", err
		}
		return types.Hash(p), nil
	}

	candidates, err := r.hashesWithPrefix(raw)
	if err != nil {
		return "", err
	}
	var match types.Hash
	for _, h := range candidates {
		if !strings.HasPrefix(h.String(), p) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("%w: %s", storage.ErrAmbiguousHash, prefix)
		}
		match = types.Hash(h.String())
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, prefix)
	}
	return match, nil
}

// hashesWithPrefix uses the filesystem storer's index lookup when present
// and scans every object otherwise.
func (r *Repository) hashesWithPrefix(raw []byte) ([]plumbing.Hash, error) {
	type prefixLister interface {
		HashesWithPrefix(prefix []byte) ([]plumbing.Hash, error)
	}
	if pl, ok := r.repo.Storer.(prefixLister); ok {
		return pl.HashesWithPrefix(raw)
	}

	iter, err := r.repo.Storer.IterEncodedObjects(plumbing.AnyObject)
	if err != nil {
		return nil, err
	}
	var hashes []plumbing.Hash
	err = iter.ForEach(func(obj plumbing.EncodedObject) error {
		h := obj.Hash()
		if bytes.HasPrefix(h[:], raw) {
			hashes = append(hashes, h)
		}
		return nil
	})
	return hashes, err
}

// Close releases packfile handles.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.repo.Storer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (r *Repository) commit(id types.Hash) (*history.Commit, error) {
	if !id.IsValid() {
		return nil, fmt.Errorf("invalid commit id %q", id)
	}
	c, err := r.repo.CommitObject(plumbing.NewHash(string(id)))
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", id.Short(), err)
	}
	return toCommit(c), nil
}

func toCommit(c *object.Commit) *history.Commit {
	parents := make([]types.Hash, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, types.Hash(p.String()))
	}
	return &history.Commit{
		ID:          types.Hash(c.Hash.String()),
		Tree:        types.Hash(c.TreeHash.String()),
		Parents:     parents,
		AuthorName:  c.Author.Name,
		AuthorEmail: c.Author.Email,
		When:        c.Author.When,
		Message:     c.Message,
	}
}

func findEntry(t *object.Tree, name string) *object.TreeEntry {
	for i := range t.Entries {
		if t.Entries[i].Name == name {
			return &t.Entries[i]
		}
	}
	return nil
}
