package gitrepo

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"lastmodified/pkg/types"
)

var (
	ErrRootNotResolvable = errors.New("repository root not resolvable")
	ErrOutsideRepository = errors.New("path is outside the repository")
)

// RelativePath maps a source file path (absolute, relative to root, or with
// Windows separators) to a slash separated path relative to root.
func RelativePath(root, src string) (types.RepoPath, error) {
	if strings.TrimSpace(root) == "" {
		return "", ErrRootNotResolvable
	}

	base := normalize(root)
	target := normalize(src)
	if !isAbs(target) {
		target = path.Join(base, target)
	}

	if rel, ok := under(base, target); ok {
		return rel, nil
	}

	// symlinked temp dirs and similar: compare resolved paths
	if rb, err := filepath.EvalSymlinks(root); err == nil {
		if rt, err := filepath.EvalSymlinks(filepath.FromSlash(target)); err == nil {
			if rel, ok := under(normalize(rb), normalize(rt)); ok {
				return rel, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s not under %s", ErrOutsideRepository, src, root)
}

func normalize(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return path.Clean(p)
}

func isAbs(p string) bool {
	if strings.HasPrefix(p, "/") {
		return true
	}
	// drive letter, e.g. C:/docs
	return len(p) >= 3 && p[1] == ':' && p[2] == '/'
}

func under(base, target string) (types.RepoPath, bool) {
	prefix := strings.TrimSuffix(base, "/") + "/"
	if !strings.HasPrefix(target, prefix) {
		return "", false
	}
	rel := strings.TrimPrefix(target, prefix)
	if rel == "" {
		return "", false
	}
	return types.RepoPath(rel), true
}
