package ignore

import (
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName is the per-project ignore file, gitignore syntax.
const FileName = ".lastmodignore"

// Matcher decides which source files keep their page untouched.
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher compiles the built-in rules plus dir/.lastmodignore if present.
func NewMatcher(dir string) (*Matcher, error) {
	// 1. Always skipped
	defaultRules := []string{
		".git",
		".lastmod",
		"_site", // DocFX output below the docs folder
		"obj",   // DocFX intermediate files
	}

	var ignorer *gitignore.GitIgnore
	var err error

	// 2. Merge the user file with the defaults
	ignoreFilePath := filepath.Join(dir, FileName)
	if _, errStat := os.Stat(ignoreFilePath); errStat == nil {
		ignorer, err = gitignore.CompileIgnoreFileAndLines(ignoreFilePath, defaultRules...)
	} else {
		ignorer = gitignore.CompileIgnoreLines(defaultRules...)
	}
	if err != nil {
		return nil, err
	}

	return &Matcher{ignorer: ignorer}, nil
}

// FromLines compiles rules without touching the filesystem.
func FromLines(lines ...string) *Matcher {
	return &Matcher{ignorer: gitignore.CompileIgnoreLines(lines...)}
}

// Matches reports whether a slash or backslash separated relative path
// (e.g. "articles/draft.md") is ignored. A nil Matcher ignores nothing.
func (m *Matcher) Matches(path string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(strings.ReplaceAll(path, `\`, "/"))
}
