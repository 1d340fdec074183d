package service

import (
	"fmt"
	"time"

	"lastmodified/pkg/history"
	"lastmodified/pkg/types"

	"google.golang.org/protobuf/types/known/structpb"
)

// EncodeCommit maps a commit to the wire struct
// {commit, author, email, timestamp (RFC 3339), summary, parents}.
func EncodeCommit(c *history.Commit) (*structpb.Struct, error) {
	return structpb.NewStruct(commitFields(c))
}

func commitFields(c *history.Commit) map[string]any {
	parents := make([]any, 0, len(c.Parents))
	for _, p := range c.Parents {
		parents = append(parents, string(p))
	}
	return map[string]any{
		"commit":    string(c.ID),
		"author":    c.AuthorName,
		"email":     c.AuthorEmail,
		"timestamp": c.When.Format(time.RFC3339),
		"summary":   c.Summary(),
		"parents":   parents,
	}
}

// DecodeCommit is the inverse of EncodeCommit. Message holds the summary only.
func DecodeCommit(s *structpb.Struct) (*history.Commit, error) {
	f := s.GetFields()
	id := types.Hash(f["commit"].GetStringValue())
	if !id.IsValid() {
		return nil, fmt.Errorf("invalid commit id %q", id)
	}
	when, err := time.Parse(time.RFC3339, f["timestamp"].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp: %w", err)
	}

	c := &history.Commit{
		ID:          id,
		AuthorName:  f["author"].GetStringValue(),
		AuthorEmail: f["email"].GetStringValue(),
		When:        when,
		Message:     f["summary"].GetStringValue(),
	}
	for _, v := range f["parents"].GetListValue().GetValues() {
		c.Parents = append(c.Parents, types.Hash(v.GetStringValue()))
	}
	return c, nil
}

// EncodeLog wraps commits as {commits: [...]}.
func EncodeLog(commits []*history.Commit) (*structpb.Struct, error) {
	list := make([]any, 0, len(commits))
	for _, c := range commits {
		list = append(list, commitFields(c))
	}
	return structpb.NewStruct(map[string]any{"commits": list})
}

func DecodeLog(s *structpb.Struct) ([]*history.Commit, error) {
	var out []*history.Commit
	for _, v := range s.GetFields()["commits"].GetListValue().GetValues() {
		c, err := DecodeCommit(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
