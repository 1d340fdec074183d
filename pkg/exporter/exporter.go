package exporter

import (
	"context"
	"fmt"
	"io"

	"lastmodified/pkg/core"
	"lastmodified/pkg/storage"
	"lastmodified/pkg/types"
)

// Source reads raw objects. *gitrepo.Repository implements it; stores are
// wrapped with FromStore.
type Source interface {
	RawObject(ctx context.Context, id types.Hash) (core.ObjectType, []byte, error)
}

type storeSource struct {
	store storage.Store
}

// FromStore reads verified objects from a store.
func FromStore(s storage.Store) Source {
	return storeSource{store: s}
}

func (s storeSource) RawObject(ctx context.Context, id types.Hash) (core.ObjectType, []byte, error) {
	obj, err := storage.ReadObject(ctx, s.store, id)
	if err != nil {
		return "", nil, err
	}
	return obj.Type(), obj.Bytes(), nil
}

type Exporter struct {
	src Source
}

func NewExporter(src Source) *Exporter {
	return &Exporter{src: src}
}

// PrintObject writes a readable form of any object: commits and trees are
// pretty printed, blob content is copied as is.
func (e *Exporter) PrintObject(ctx context.Context, hash types.Hash, w io.Writer) error {
	t, payload, err := e.src.RawObject(ctx, hash)
	if err != nil {
		return fmt.Errorf("failed to read object %s: %w", hash.Short(), err)
	}

	obj, err := core.Decode(hash, t, payload)
	if err != nil {
		return fmt.Errorf("failed to decode object %s: %w", hash.Short(), err)
	}

	ok, err := PrintStructure(obj, w)
	if err != nil || ok {
		return err
	}

	// Blobs and tags
	_, err = w.Write(obj.Bytes())
	return err
}

// PrintRaw writes the payload exactly as stored, like `git cat-file -p` for blobs.
func (e *Exporter) PrintRaw(ctx context.Context, hash types.Hash, w io.Writer) error {
	_, payload, err := e.src.RawObject(ctx, hash)
	if err != nil {
		return fmt.Errorf("failed to read object %s: %w", hash.Short(), err)
	}
	_, err = w.Write(payload)
	return err
}
