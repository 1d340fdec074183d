package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"lastmodified/pkg/core"
	"lastmodified/pkg/types"
)

var (
	ErrNotFound      = errors.New("object not found")
	ErrAmbiguousHash = errors.New("ambiguous hash prefix")
	ErrCorruptObject = errors.New("corrupt object")
)

// MinPrefixLen is the shortest abbreviated id ExpandHash accepts.
const MinPrefixLen = 4

// Store is a content-addressed git object database laid out like
// .git/objects: loose objects keyed by their SHA-1.
// Implementations can be a local directory, an S3 bucket or a cache in front
// of either.
type Store interface {
	// Put persists an object. Writing an existing id is a no-op.
	Put(ctx context.Context, obj core.Object) error

	// Get streams the object as stored: a zlib-compressed loose object,
	// readable with ReadLoose. Returns ErrNotFound when the id is unknown.
	Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error)

	// Has reports whether the object exists.
	Has(ctx context.Context, hash types.Hash) (bool, error)

	// ExpandHash resolves an abbreviated id to the unique full id.
	ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.Hash, error)
}

// ReadObject fetches, verifies and decodes an object.
// A payload whose hash does not match the requested id yields ErrCorruptObject.
func ReadObject(ctx context.Context, s Store, hash types.Hash) (core.Object, error) {
	reader, err := s.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	t, payload, got, err := ReadLoose(reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", hash, err)
	}
	if got != hash {
		return nil, fmt.Errorf("%w: %s hashes to %s", ErrCorruptObject, hash, got)
	}

	obj, err := core.Decode(hash, t, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptObject, hash, err)
	}
	return obj, nil
}

// ReadCommit is ReadObject restricted to commits.
func ReadCommit(ctx context.Context, s Store, hash types.Hash) (*core.Commit, error) {
	obj, err := ReadObject(ctx, s, hash)
	if err != nil {
		return nil, err
	}
	c, ok := obj.(*core.Commit)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s, not a commit", ErrCorruptObject, hash, obj.Type())
	}
	return c, nil
}

// ReadTree is ReadObject restricted to trees.
func ReadTree(ctx context.Context, s Store, hash types.Hash) (*core.Tree, error) {
	obj, err := ReadObject(ctx, s, hash)
	if err != nil {
		return nil, err
	}
	t, ok := obj.(*core.Tree)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s, not a tree", ErrCorruptObject, hash, obj.Type())
	}
	return t, nil
}

// CheckPrefix validates an abbreviated id before a backend lists candidates.
func CheckPrefix(prefix types.HashPrefix) error {
	if len(prefix) < MinPrefixLen {
		return fmt.Errorf("hash prefix too short: %q", prefix)
	}
	if len(prefix) > types.HashLen {
		return fmt.Errorf("hash prefix too long: %q", prefix)
	}
	return nil
}
