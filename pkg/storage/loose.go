package storage

import (
	"bytes"
	"fmt"
	"io"

	"lastmodified/pkg/core"
	"lastmodified/pkg/types"

	"github.com/go-git/go-git/v5/plumbing/format/objfile"
)

// WriteLoose writes obj to w in git's loose object format: the zlib
// stream of "<type> <size>\x00<payload>".
func WriteLoose(w io.Writer, obj core.Object) error {
	payload := obj.Bytes()

	ow := objfile.NewWriter(w)
	if err := ow.WriteHeader(obj.Type().Plumbing(), int64(len(payload))); err != nil {
		ow.Close()
		return err
	}
	if _, err := ow.Write(payload); err != nil {
		ow.Close()
		return err
	}
	return ow.Close()
}

// EncodeLoose is WriteLoose into memory.
func EncodeLoose(obj core.Object) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteLoose(&buf, obj); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadLoose inflates a loose object and returns its type, its payload and
// the id the content hashes to. Malformed input yields ErrCorruptObject.
func ReadLoose(r io.Reader) (core.ObjectType, []byte, types.Hash, error) {
	or, err := objfile.NewReader(r)
	if err != nil {
		return "", nil, "", fmt.Errorf("%w: %v", ErrCorruptObject, err)
	}
	defer or.Close()

	pt, size, err := or.Header()
	if err != nil {
		return "", nil, "", fmt.Errorf("%w: %v", ErrCorruptObject, err)
	}
	t, err := core.FromPlumbing(pt)
	if err != nil {
		return "", nil, "", fmt.Errorf("%w: %v", ErrCorruptObject, err)
	}

	// one byte past the declared size detects trailing garbage
	payload, err := io.ReadAll(io.LimitReader(or, size+1))
	if err != nil {
		return "", nil, "", fmt.Errorf("%w: %v", ErrCorruptObject, err)
	}
	if int64(len(payload)) != size {
		return "", nil, "", fmt.Errorf("%w: size mismatch: header %d, content %d", ErrCorruptObject, size, len(payload))
	}
	return t, payload, types.Hash(or.Hash().String()), nil
}
