// Package refs resolves revisions against a git directory and an object
// store: HEAD, loose refs, packed-refs, full and abbreviated hashes.
package refs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lastmodified/pkg/storage"
	"lastmodified/pkg/types"
)

var (
	ErrNoHead          = errors.New("HEAD not found")
	ErrUnknownRevision = errors.New("unknown revision")
)

const maxSymrefDepth = 5

type Manager struct {
	gitDir string // e.g. /srv/docs/.git or a mirror directory
	store  storage.Store
}

// NewManager reads refs below gitDir; store is used to expand abbreviated
// hashes and may be nil.
func NewManager(gitDir string, store storage.Store) *Manager {
	return &Manager{gitDir: gitDir, store: store}
}

// GetHead returns the commit HEAD points to, following a symbolic ref.
// An unborn branch or missing HEAD yields ErrNoHead.
func (m *Manager) GetHead() (types.Hash, error) {
	h, err := m.readRef("HEAD", 0)
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, ErrUnknownRevision) {
		return "", ErrNoHead
	}
	return h, err
}

// Resolve maps a revision to a commit id. Lookup order follows git:
// HEAD, full hash, refs/<rev>, refs/tags/<rev>, refs/heads/<rev>,
// refs/remotes/<rev>, then an abbreviated hash.
func (m *Manager) Resolve(ctx context.Context, rev string) (types.Hash, error) {
	rev = strings.TrimSpace(rev)
	if rev == "" || rev == "HEAD" {
		return m.GetHead()
	}
	if h := types.Hash(strings.ToLower(rev)); h.IsValid() {
		return h, nil
	}

	for _, name := range []string{rev, "refs/" + rev, "refs/tags/" + rev, "refs/heads/" + rev, "refs/remotes/" + rev} {
		if !strings.HasPrefix(name, "refs/") {
			continue
		}
		h, err := m.readRef(name, 0)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, os.ErrNotExist) && !errors.Is(err, ErrUnknownRevision) {
			return "", err
		}
	}

	if m.store != nil && isHex(rev) && len(rev) >= storage.MinPrefixLen {
		h, err := m.store.ExpandHash(ctx, types.HashPrefix(rev))
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownRevision, rev)
}

// UpdateRef points name (e.g. "HEAD" or "refs/heads/main") at hash.
// The write goes through a temp file and rename.
func (m *Manager) UpdateRef(name string, hash types.Hash) error {
	if !hash.IsValid() {
		return fmt.Errorf("invalid hash %q", hash)
	}
	target := filepath.Join(m.gitDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".ref-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(string(hash) + "\n"); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// readRef resolves one ref: a loose file (hash or "ref: <target>"), else a
// packed-refs entry.
func (m *Manager) readRef(name string, depth int) (types.Hash, error) {
	if depth > maxSymrefDepth {
		return "", fmt.Errorf("symbolic ref loop at %s", name)
	}

	content, err := os.ReadFile(filepath.Join(m.gitDir, filepath.FromSlash(name)))
	if err == nil {
		line := strings.TrimSpace(string(content))
		if target, ok := strings.CutPrefix(line, "ref: "); ok {
			return m.readRef(strings.TrimSpace(target), depth+1)
		}
		h := types.Hash(line)
		if !h.IsValid() {
			return "", fmt.Errorf("invalid hash in ref %s: %q", name, line)
		}
		return h, nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("read ref %s: %w", name, err)
	}

	return m.packedRef(name)
}

func (m *Manager) packedRef(name string) (types.Hash, error) {
	f, err := os.Open(filepath.Join(m.gitDir, "packed-refs"))
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrUnknownRevision, name)
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		// "# pack-refs with: ..." header and "^<hash>" peeled tag lines
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}
		hash, ref, ok := strings.Cut(line, " ")
		if ok && ref == name {
			h := types.Hash(hash)
			if !h.IsValid() {
				return "", fmt.Errorf("invalid hash in packed-refs for %s", name)
			}
			return h, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownRevision, name)
}

func isHex(s string) bool {
	for _, c := range strings.ToLower(s) {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
