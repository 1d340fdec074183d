// Package manifest reads the manifest.json DocFX writes next to its output.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// TypeConceptual marks hand-written articles, the only pages annotated.
const TypeConceptual = "Conceptual"

// DefaultStripSegments are removed from source paths. Build agents check the
// docs out below a "_work" directory that is not part of the repository.
var DefaultStripSegments = []string{"_work/"}

type Manifest struct {
	SourceBasePath string `json:"source_base_path"`
	Files          []Item `json:"files"`
}

type Item struct {
	Type               string                `json:"type"`
	SourceRelativePath string                `json:"source_relative_path"`
	Output             map[string]OutputFile `json:"output"`
}

type OutputFile struct {
	RelativePath string `json:"relative_path"`
}

// Target is one output page and the source file it was generated from.
type Target struct {
	Source   string // absolute source path, slash separated
	Relative string // source_relative_path, slash separated
	Output   string // absolute output path
}

func Load(manifestPath string) (*Manifest, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", manifestPath, err)
	}
	return &m, nil
}

// Conceptual returns the conceptual items in manifest order.
func (m *Manifest) Conceptual() []Item {
	var out []Item
	for _, it := range m.Files {
		if it.Type == TypeConceptual {
			out = append(out, it)
		}
	}
	return out
}

// Targets expands conceptual items into one Target per output file.
// Output extensions are visited in sorted order so runs are reproducible.
func (m *Manifest) Targets(outputDir string, strip []string) []Target {
	var targets []Target
	for _, it := range m.Conceptual() {
		src := SourcePath(m.SourceBasePath, it.SourceRelativePath, strip)

		exts := make([]string, 0, len(it.Output))
		for ext := range it.Output {
			exts = append(exts, ext)
		}
		sort.Strings(exts)

		for _, ext := range exts {
			rel := it.Output[ext].RelativePath
			if rel == "" {
				continue
			}
			targets = append(targets, Target{
				Source:   src,
				Relative: strings.ReplaceAll(it.SourceRelativePath, `\`, "/"),
				Output:   filepath.Join(outputDir, filepath.FromSlash(rel)),
			})
		}
	}
	return targets
}

// SourcePath joins base and rel with forward slashes and removes every
// occurrence of the strip segments.
func SourcePath(base, rel string, strip []string) string {
	p := strings.ReplaceAll(base, `\`, "/")
	r := strings.ReplaceAll(rel, `\`, "/")
	if p == "" {
		p = r
	} else {
		p = path.Join(p, r)
	}
	for _, seg := range strip {
		seg = strings.ReplaceAll(seg, `\`, "/")
		if seg != "" {
			p = strings.ReplaceAll(p, seg, "")
		}
	}
	return p
}
