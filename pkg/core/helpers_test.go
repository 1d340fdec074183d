package core

import (
	"crypto/sha1"
	"encoding/hex"
	"testing"
	"time"

	"lastmodified/pkg/types"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// mockHash derives a valid 40 char object id from a label.
func mockHash(input string) types.Hash {
	sum := sha1.Sum([]byte(input))
	return types.Hash(hex.EncodeToString(sum[:]))
}

func testSignature(name string, unix int64) Signature {
	return Signature{
		Name:  name,
		Email: name + "@example.com",
		When:  time.Unix(unix, 0).In(time.FixedZone("+0100", 3600)),
	}
}

// mustNewCommit aborts the test when the commit cannot be built.
func mustNewCommit(t *testing.T, tree types.Hash, parents []types.Hash, author string, msgAndArgs ...any) *Commit {
	t.Helper()
	sig := testSignature(author, 1700000000)
	c, err := NewCommit(tree, parents, sig, sig, "message from "+author)
	require.NoError(t, err, msgAndArgs...)
	return c
}
