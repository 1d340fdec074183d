package service

import (
	"context"
	"errors"

	"lastmodified/pkg/app"
	"lastmodified/pkg/history"
	"lastmodified/pkg/types"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// maxLogLimit bounds Log responses.
const maxLogLimit = 500

type HistoryService struct {
	app *app.App
}

func NewHistoryService(application *app.App) *HistoryService {
	return &HistoryService{app: application}
}

// Resolve returns the commit that last changed a repository path.
func (s *HistoryService) Resolve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path, start, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	c, err := history.Resolve(ctx, s.app.History, start, path, history.WithPolicy(s.app.Policy))
	if err != nil {
		return nil, toStatus(err)
	}

	resp, err := EncodeCommit(c)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return resp, nil
}

// Log returns successive commits that changed a path, newest first.
func (s *HistoryService) Log(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path, start, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	limit := int(req.GetFields()["limit"].GetNumberValue())
	if limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must not be negative")
	}
	if limit == 0 || limit > maxLogLimit {
		limit = maxLogLimit
	}

	commits, err := history.Log(ctx, s.app.History, start, path, limit, history.WithPolicy(s.app.Policy))
	if err != nil {
		return nil, toStatus(err)
	}

	resp, err := EncodeLog(commits)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return resp, nil
}

// prepare validates {path, rev?} and resolves the start commit.
func (s *HistoryService) prepare(ctx context.Context, req *structpb.Struct) (types.RepoPath, types.Hash, error) {
	if s.app.History == nil {
		return "", "", status.Error(codes.FailedPrecondition, app.ErrNoHistory.Error())
	}

	fields := req.GetFields()
	path := types.RepoPath(fields["path"].GetStringValue()).Clean()
	if path == "" {
		return "", "", status.Error(codes.InvalidArgument, "path is required")
	}

	rev := fields["rev"].GetStringValue()
	start, err := s.app.ResolveRevision(ctx, rev)
	if err != nil {
		if st := toStatus(err); status.Code(st) == codes.Canceled || status.Code(st) == codes.DeadlineExceeded {
			return "", "", st
		}
		return "", "", status.Errorf(codes.InvalidArgument, "unknown revision %q: %v", rev, err)
	}
	return path, start, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, history.ErrPathNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, history.ErrStoreCorruption):
		return status.Error(codes.Internal, err.Error())
	default:
		return status.Error(codes.Unknown, err.Error())
	}
}
