package core

import (
	"fmt"
	"strings"

	"lastmodified/pkg/types"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

type Commit struct {
	hash     types.Hash
	rawBytes []byte

	TreeHash  types.Hash
	Parents   []types.Hash
	Author    Signature
	Committer Signature
	// Message is kept as git stores it, including the trailing newline.
	Message string
}

// NewCommit serialises a commit in git's text format. A message without
// a trailing newline gets one, as `git commit` does.
func NewCommit(tree types.Hash, parents []types.Hash, author, committer Signature, msg string) (*Commit, error) {
	if !tree.IsValid() {
		return nil, fmt.Errorf("invalid tree hash %q", tree)
	}
	gc := &object.Commit{
		TreeHash:  plumbing.NewHash(string(tree)),
		Author:    author.toGit(),
		Committer: committer.toGit(),
		Message:   msg,
	}
	if !strings.HasSuffix(msg, "\n") {
		gc.Message += "\n"
	}
	for _, p := range parents {
		if !p.IsValid() {
			return nil, fmt.Errorf("invalid parent hash %q", p)
		}
		gc.ParentHashes = append(gc.ParentHashes, plumbing.NewHash(string(p)))
	}

	mem := &plumbing.MemoryObject{}
	if err := gc.Encode(mem); err != nil {
		return nil, fmt.Errorf("failed to encode commit: %w", err)
	}
	raw, err := contents(mem)
	if err != nil {
		return nil, err
	}

	return &Commit{
		hash:      types.Hash(mem.Hash().String()),
		rawBytes:  raw,
		TreeHash:  tree,
		Parents:   append([]types.Hash(nil), parents...),
		Author:    author,
		Committer: committer,
		Message:   gc.Message,
	}, nil
}

// ParseCommit decodes a commit payload. Signature and mergetag headers
// are dropped.
func ParseCommit(id types.Hash, payload []byte) (*Commit, error) {
	gc, err := object.DecodeCommit(nil, memoryObject(TypeCommit, payload))
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", id, err)
	}
	if gc.TreeHash.IsZero() {
		return nil, fmt.Errorf("commit %s: missing or invalid tree", id)
	}

	c := &Commit{
		hash:      id,
		rawBytes:  payload,
		TreeHash:  types.Hash(gc.TreeHash.String()),
		Author:    fromGit(gc.Author),
		Committer: fromGit(gc.Committer),
		Message:   gc.Message,
	}
	for _, p := range gc.ParentHashes {
		c.Parents = append(c.Parents, types.Hash(p.String()))
	}
	return c, nil
}

func (c *Commit) Type() ObjectType { return TypeCommit }
func (c *Commit) ID() types.Hash   { return c.hash }
func (c *Commit) Bytes() []byte    { return c.rawBytes }
