// pkg/types/common.go
package types

import (
	"encoding/hex"
	"path"
	"strings"
)

// HashLen is the length of a hex encoded SHA-1 object id.
const HashLen = 40

// Hash identifies a git object (commit, tree or blob) by its SHA-1 hex digest.
// It is a value object and must stay immutable.
type Hash string

func (h Hash) String() string { return string(h) }

func (h Hash) IsZero() bool { return h == "" }

// IsValid reports whether h is 40 lowercase hex characters.
func (h Hash) IsValid() bool {
	if len(h) != HashLen {
		return false
	}
	if strings.ToLower(string(h)) != string(h) {
		return false
	}
	_, err := hex.DecodeString(string(h))
	return err == nil
}

// Short returns the abbreviated form used in human output.
func (h Hash) Short() string {
	if len(h) <= 8 {
		return string(h)
	}
	return string(h[:8])
}

// HashPrefix is an abbreviated object id typed by a user (e.g. "a8fd12").
type HashPrefix string

func (p HashPrefix) String() string { return string(p) }

// RepoPath is a slash separated path relative to the repository root,
// e.g. "docs/articles/intro.md".
type RepoPath string

func (p RepoPath) String() string { return string(p) }

// Parts splits the path into its components, ignoring empty segments.
func (p RepoPath) Parts() []string {
	var parts []string
	for _, part := range strings.Split(string(p), "/") {
		if part != "" && part != "." {
			parts = append(parts, part)
		}
	}
	return parts
}

// Clean normalises separators and removes leading slashes.
func (p RepoPath) Clean() RepoPath {
	s := strings.ReplaceAll(string(p), "\\", "/")
	s = path.Clean("/" + s)
	return RepoPath(strings.TrimPrefix(s, "/"))
}
