package core

import (
	"bytes"
	"time"

	"github.com/go-git/go-git/v5/plumbing/object"
)

// Signature is the author or committer line of a commit.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

func (s Signature) toGit() object.Signature {
	return object.Signature{Name: s.Name, Email: s.Email, When: s.When}
}

func fromGit(s object.Signature) Signature {
	return Signature{Name: s.Name, Email: s.Email, When: s.When}
}

// String renders the signature in git's wire format,
// "Name <email> 1700000000 +0100".
func (s Signature) String() string {
	var buf bytes.Buffer
	g := s.toGit()
	if err := g.Encode(&buf); err != nil {
		return ""
	}
	return buf.String()
}
