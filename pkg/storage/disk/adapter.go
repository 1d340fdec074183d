package disk

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"lastmodified/pkg/core"
	"lastmodified/pkg/storage"
	"lastmodified/pkg/types"
)

// Adapter implements storage.Store over a loose-object directory.
// The layout is the one git uses under .git/objects, so an Adapter can be
// pointed at a real repository's object directory for reading.
type Adapter struct {
	rootPath string // e.g. /srv/docs/.git/objects
}

func NewAdapter(root string) (*Adapter, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create object dir: %w", err)
	}
	return &Adapter{rootPath: root}, nil
}

// layout shards by the first two hex characters:
// "aabbcc..." -> root/aa/bbcc...
func (s *Adapter) layout(hash types.Hash) string {
	h := string(hash)
	if len(h) < 2 {
		return filepath.Join(s.rootPath, h)
	}
	return filepath.Join(s.rootPath, h[:2], h[2:])
}

func (s *Adapter) Put(ctx context.Context, obj core.Object) error {
	targetPath := s.layout(obj.ID())

	// 1. Idempotent: an existing id already holds the same content
	if _, err := os.Stat(targetPath); err == nil {
		return nil
	}

	// 2. Shard directory
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// 3. Write to a temp file then rename, so readers never see a partial object
	tempFile, err := os.CreateTemp(dir, "tmp_obj_*")
	if err != nil {
		return err
	}
	defer os.Remove(tempFile.Name())

	if err := storage.WriteLoose(tempFile, obj); err != nil {
		tempFile.Close()
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	// 4. Publish
	return os.Rename(tempFile.Name(), targetPath)
}

func (s *Adapter) Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error) {
	f, err := os.Open(s.layout(hash))
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Adapter) Has(ctx context.Context, hash types.Hash) (bool, error) {
	_, err := os.Stat(s.layout(hash))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// ExpandHash lists the shard directory of the prefix and matches file names.
func (s *Adapter) ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.Hash, error) {
	if err := storage.CheckPrefix(prefix); err != nil {
		return "", err
	}
	p := strings.ToLower(string(prefix))

	entries, err := os.ReadDir(filepath.Join(s.rootPath, p[:2]))
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, prefix)
	}
	if err != nil {
		return "", err
	}

	var match types.Hash
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), p[2:]) {
			continue
		}
		candidate := types.Hash(p[:2] + e.Name())
		if !candidate.IsValid() {
			// temp files and other debris
			continue
		}
		if match != "" {
			return "", fmt.Errorf("%w: %s", storage.ErrAmbiguousHash, prefix)
		}
		match = candidate
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, prefix)
	}
	return match, nil
}
