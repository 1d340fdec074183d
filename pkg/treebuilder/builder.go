// Package treebuilder writes snapshots into a storage.Store: file contents
// become blobs, directories become git trees, and commits tie them together.
package treebuilder

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"lastmodified/pkg/core"
	"lastmodified/pkg/storage"
	"lastmodified/pkg/types"
)

type Builder struct {
	store storage.Store
}

func NewBuilder(store storage.Store) *Builder {
	return &Builder{store: store}
}

// Build writes every file and the directory trees above it, and returns the
// root tree id. Identical snapshots always yield the same id.
func (b *Builder) Build(ctx context.Context, files map[types.RepoPath][]byte) (types.Hash, error) {
	// 1. In-memory directory tree
	root := newDirNode("")
	for p, content := range files {
		parts := p.Clean().Parts()
		if len(parts) == 0 {
			return "", fmt.Errorf("empty path in snapshot")
		}
		if err := root.addFile(parts, content); err != nil {
			return "", fmt.Errorf("%s: %w", p, err)
		}
	}

	// 2. Bottom-up write
	return b.writeNode(ctx, root)
}

// Commit writes a commit object whose author and committer are sig.
func (b *Builder) Commit(ctx context.Context, tree types.Hash, parents []types.Hash, sig core.Signature, msg string) (types.Hash, error) {
	c, err := core.NewCommit(tree, parents, sig, sig, msg)
	if err != nil {
		return "", err
	}
	if err := b.store.Put(ctx, c); err != nil {
		return "", fmt.Errorf("failed to store commit: %w", err)
	}
	return c.ID(), nil
}

// ReadFiles loads every regular file under dir, keyed by its slash path
// relative to root. dir must be root or inside it. Directories named in
// skipDirs are not entered; symlinks and other special files are skipped.
func ReadFiles(root, dir string, skipDirs ...string) (map[types.RepoPath][]byte, error) {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%s is outside of %s", dir, root)
	}

	files := make(map[types.RepoPath][]byte)
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && slices.Contains(skipDirs, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[types.RepoPath(filepath.ToSlash(rel))] = content
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// -----------------------------------------------------------------------------
// In-memory nodes
// -----------------------------------------------------------------------------

type node struct {
	name     string
	isDir    bool
	children map[string]*node
	content  []byte
}

func newDirNode(name string) *node {
	return &node{
		name:     name,
		isDir:    true,
		children: make(map[string]*node),
	}
}

// addFile inserts parts ("a", "b", "c.md") creating intermediate dirs.
func (n *node) addFile(parts []string, content []byte) error {
	current := n
	for _, part := range parts[:len(parts)-1] {
		child, exists := current.children[part]
		if !exists {
			child = newDirNode(part)
			current.children[part] = child
		}
		if !child.isDir {
			return fmt.Errorf("%q is both a file and a directory", part)
		}
		current = child
	}

	name := parts[len(parts)-1]
	if existing, ok := current.children[name]; ok && existing.isDir {
		return fmt.Errorf("%q is both a file and a directory", name)
	}
	current.children[name] = &node{name: name, content: content}
	return nil
}

func (b *Builder) writeNode(ctx context.Context, n *node) (types.Hash, error) {
	// Files are blobs
	if !n.isDir {
		blob := core.NewBlob(n.content)
		if err := b.store.Put(ctx, blob); err != nil {
			return "", fmt.Errorf("failed to store blob: %w", err)
		}
		return blob.ID(), nil
	}

	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]core.TreeEntry, 0, len(names))
	for _, name := range names {
		child := n.children[name]

		childHash, err := b.writeNode(ctx, child)
		if err != nil {
			return "", err
		}

		mode := core.ModeFile
		if child.isDir {
			mode = core.ModeDir
		}
		entries = append(entries, core.TreeEntry{Mode: mode, Name: name, Hash: childHash})
	}

	// core.NewTree applies git's ordering
	treeObj, err := core.NewTree(entries)
	if err != nil {
		return "", fmt.Errorf("failed to create tree object: %w", err)
	}
	if err := b.store.Put(ctx, treeObj); err != nil {
		return "", fmt.Errorf("failed to store tree: %w", err)
	}
	return treeObj.ID(), nil
}
