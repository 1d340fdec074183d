package core

import (
	"fmt"

	"lastmodified/pkg/types"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-git/go-git/v5/plumbing"
)

// CBOR options for cache entries. Canonical encoding keeps equal entries
// byte-identical across processes sharing the same cache.
var encOptions = cbor.EncOptions{
	// 1. Sorted map keys (canonical form)
	Sort: cbor.SortCanonical,

	// 2. No indefinite length containers
	IndefLength: cbor.IndefLengthForbidden,

	// 3. Plain unix integers for time values, no tag 0/1
	Time:    cbor.TimeUnix,
	TimeTag: cbor.EncTagNone,
}

var em, _ = encOptions.EncMode()

var decOptions = cbor.DecOptions{
	// Bound container sizes so a corrupted cache entry cannot exhaust memory.
	MaxArrayElements: 10000,
	MaxMapPairs:      10000,
	MaxNestedLevels:  16,

	IndefLength: cbor.IndefLengthForbidden,
	DupMapKey:   cbor.DupMapKeyEnforcedAPF,
}

var dm, _ = decOptions.DecMode()

// CalculateHash returns the git object id of payload framed as type t.
func CalculateHash(t ObjectType, payload []byte) types.Hash {
	return types.Hash(plumbing.ComputeHash(t.Plumbing(), payload).String())
}

// Entry is the cached form of an object: its type plus the loose object
// bytes exactly as a Store returns them.
type Entry struct {
	Type  ObjectType `cbor:"t"`
	Loose []byte     `cbor:"l"`
}

// EncodeEntry serialises an object for a cache backend.
func EncodeEntry(t ObjectType, loose []byte) ([]byte, error) {
	data, err := em.Marshal(Entry{Type: t, Loose: loose})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	return data, nil
}

// DecodeEntry is the inverse of EncodeEntry.
func DecodeEntry(data []byte) (Entry, error) {
	var e Entry
	if err := dm.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	if _, err := ParseObjectType(string(e.Type)); err != nil {
		return Entry{}, err
	}
	return e, nil
}
