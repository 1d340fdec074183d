package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"lastmodified/pkg/types"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// EntryMode is the octal file mode stored in a tree entry.
type EntryMode string

const (
	ModeFile       EntryMode = "100644"
	ModeExecutable EntryMode = "100755"
	ModeSymlink    EntryMode = "120000"
	ModeDir        EntryMode = "40000"
	ModeSubmodule  EntryMode = "160000"
)

type TreeEntry struct {
	Mode EntryMode
	Name string
	Hash types.Hash
}

func (e TreeEntry) IsDir() bool { return e.Mode == ModeDir }

// Tree is one directory level of a snapshot.
type Tree struct {
	hash     types.Hash
	rawBytes []byte

	Entries []TreeEntry
}

// NewTree sorts entries the way git does and serialises them.
func NewTree(entries []TreeEntry) (*Tree, error) {
	gt := &object.Tree{Entries: make([]object.TreeEntry, 0, len(entries))}
	for _, e := range entries {
		if e.Name == "" || strings.ContainsAny(e.Name, "/\x00") {
			return nil, fmt.Errorf("invalid tree entry name %q", e.Name)
		}
		if !e.Hash.IsValid() {
			return nil, fmt.Errorf("invalid hash for entry %q: %q", e.Name, e.Hash)
		}
		mode, err := filemode.New(string(e.Mode))
		if err != nil {
			return nil, fmt.Errorf("invalid mode for entry %q: %w", e.Name, err)
		}
		gt.Entries = append(gt.Entries, object.TreeEntry{
			Name: e.Name,
			Mode: mode,
			Hash: plumbing.NewHash(string(e.Hash)),
		})
	}
	sort.Sort(object.TreeEntrySorter(gt.Entries))
	for i := 1; i < len(gt.Entries); i++ {
		if gt.Entries[i-1].Name == gt.Entries[i].Name {
			return nil, fmt.Errorf("duplicate tree entry %q", gt.Entries[i].Name)
		}
	}

	mem := &plumbing.MemoryObject{}
	if err := gt.Encode(mem); err != nil {
		return nil, fmt.Errorf("failed to encode tree: %w", err)
	}
	raw, err := contents(mem)
	if err != nil {
		return nil, err
	}

	return &Tree{
		hash:     types.Hash(mem.Hash().String()),
		rawBytes: raw,
		Entries:  fromGitEntries(gt.Entries),
	}, nil
}

// ParseTree decodes the binary tree payload.
func ParseTree(id types.Hash, payload []byte) (*Tree, error) {
	gt, err := object.DecodeTree(nil, memoryObject(TypeTree, payload))
	if err != nil {
		return nil, fmt.Errorf("tree %s: %w", id, err)
	}
	return &Tree{
		hash:     id,
		rawBytes: payload,
		Entries:  fromGitEntries(gt.Entries),
	}, nil
}

func fromGitEntries(in []object.TreeEntry) []TreeEntry {
	if len(in) == 0 {
		return nil
	}
	out := make([]TreeEntry, len(in))
	for i, e := range in {
		out[i] = TreeEntry{
			Mode: EntryMode(strconv.FormatUint(uint64(e.Mode), 8)),
			Name: e.Name,
			Hash: types.Hash(e.Hash.String()),
		}
	}
	return out
}

// Entry returns the direct child called name.
func (t *Tree) Entry(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}

func (t *Tree) Type() ObjectType { return TypeTree }
func (t *Tree) ID() types.Hash   { return t.hash }
func (t *Tree) Bytes() []byte    { return t.rawBytes }
