package core

import (
	"fmt"
	"io"

	"lastmodified/pkg/types"

	"github.com/go-git/go-git/v5/plumbing"
)

// ObjectType is the git object kind written in the loose object header.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"   // file content
	TypeTree   ObjectType = "tree"   // directory snapshot
	TypeCommit ObjectType = "commit" // history node
	TypeTag    ObjectType = "tag"    // annotated tag
)

// ParseObjectType validates a type name read from an object header.
func ParseObjectType(s string) (ObjectType, error) {
	switch t := ObjectType(s); t {
	case TypeBlob, TypeTree, TypeCommit, TypeTag:
		return t, nil
	default:
		return "", fmt.Errorf("unknown object type %q", s)
	}
}

// Plumbing maps the type to go-git's enum.
func (t ObjectType) Plumbing() plumbing.ObjectType {
	pt, err := plumbing.ParseObjectType(string(t))
	if err != nil {
		return plumbing.InvalidObject
	}
	return pt
}

// FromPlumbing is the inverse of Plumbing.
func FromPlumbing(pt plumbing.ObjectType) (ObjectType, error) {
	return ParseObjectType(pt.String())
}

// Object is the common interface of every node of the commit graph.
type Object interface {
	// Type returns the git object kind.
	Type() ObjectType

	// ID returns the SHA-1 of the framed object.
	ID() types.Hash

	// Bytes returns the object payload without the "<type> <size>\x00" header.
	Bytes() []byte
}

// RawObject carries an object whose payload is not interpreted,
// e.g. when copying objects between stores.
type RawObject struct {
	hash    types.Hash
	typ     ObjectType
	payload []byte
}

// NewRawObject frames payload as an object of type t and computes its id.
func NewRawObject(t ObjectType, payload []byte) *RawObject {
	return &RawObject{
		hash:    CalculateHash(t, payload),
		typ:     t,
		payload: payload,
	}
}

func (o *RawObject) Type() ObjectType { return o.typ }
func (o *RawObject) ID() types.Hash   { return o.hash }
func (o *RawObject) Bytes() []byte    { return o.payload }

// Decode interprets a payload according to its type.
// Tags are returned as RawObject.
func Decode(id types.Hash, t ObjectType, payload []byte) (Object, error) {
	switch t {
	case TypeBlob:
		return &Blob{hash: id, data: payload}, nil
	case TypeTree:
		return ParseTree(id, payload)
	case TypeCommit:
		return ParseCommit(id, payload)
	case TypeTag:
		return &RawObject{hash: id, typ: t, payload: payload}, nil
	default:
		return nil, fmt.Errorf("unknown object type %q", t)
	}
}

// memoryObject wraps a payload for go-git's decoders.
func memoryObject(t ObjectType, payload []byte) *plumbing.MemoryObject {
	o := &plumbing.MemoryObject{}
	o.SetType(t.Plumbing())
	o.Write(payload)
	return o
}

// contents reads back what a go-git encoder wrote.
func contents(o *plumbing.MemoryObject) ([]byte, error) {
	r, err := o.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
