package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/salesdash/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	msgInvalidCredentials = "invalid credentials"
	msgTooManyAttempts    = "too many failed attempts, try again later"
	msgInternal           = "internal error"
)

// toStatus maps err to a gRPC status carrying only the generic message.
func (s *GRPCServer) toStatus(ctx context.Context, method string, err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		s.logger.Info(ctx, "rejected", "method", method, "reason", err)
		return status.Error(codes.Unauthenticated, msgInvalidCredentials)
	case errors.Is(err, common.ErrSessionInvalid):
		s.logger.Info(ctx, "rejected", "method", method, "reason", err)
		return status.Error(codes.Unauthenticated, common.ErrSessionInvalid.Error())
	case errors.Is(err, common.ErrTooManyAttempts):
		return status.Error(codes.ResourceExhausted, msgTooManyAttempts)
	case errors.Is(err, common.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	default:
		s.logger.Error(ctx, "request failed", "method", method, "error", err)
		return status.Error(codes.Internal, msgInternal)
	}
}

func stringField(in *structpb.Struct, key string) string {
	return in.GetFields()[key].GetStringValue()
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(ctx, s.loginTimeout)
	defer cancel()

	sess, err := s.sessions.VerifyCredentials(ctx, stringField(req, "identifier"), stringField(req, "password"))
	if err != nil {
		return nil, s.toStatus(ctx, MethodLogin, err)
	}

	sealed, err := s.sealer.Seal(sess.Token)
	if err != nil {
		return nil, s.toStatus(ctx, MethodLogin, err)
	}

	resp, err := structpb.NewStruct(map[string]any{
		"token":      sealed,
		"user_id":    sess.UserID,
		"expires_at": sess.ExpiresAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, s.toStatus(ctx, MethodLogin, err)
	}
	return resp, nil
}

func (s *GRPCServer) Validate(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	token, err := s.sealer.Open(req.GetValue())
	if err != nil {
		return nil, s.toStatus(ctx, MethodValidate, err)
	}

	user, err := s.sessions.ValidateSession(ctx, token)
	if err != nil {
		return nil, s.toStatus(ctx, MethodValidate, err)
	}

	resp, err := structpb.NewStruct(map[string]any{
		"user_id":      user.ID,
		"username":     user.UserName,
		"display_name": user.Name(),
	})
	if err != nil {
		return nil, s.toStatus(ctx, MethodValidate, err)
	}
	return resp, nil
}

// Logout is idempotent: unknown or malformed tokens succeed.
func (s *GRPCServer) Logout(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	token, err := s.sealer.Open(req.GetValue())
	if err != nil {
		return &emptypb.Empty{}, nil
	}
	if err := s.sessions.InvalidateSession(ctx, token); err != nil {
		return nil, s.toStatus(ctx, MethodLogout, err)
	}
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) RevokeAll(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	user, ok := userFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, common.ErrSessionInvalid.Error())
	}

	n, err := s.sessions.InvalidateAllSessions(ctx, user.ID)
	if err != nil {
		return nil, s.toStatus(ctx, MethodRevokeAll, err)
	}
	return wrapperspb.Int64(int64(n)), nil
}

func (s *GRPCServer) Sweep(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	n, err := s.sessions.SweepExpired(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, MethodSweep, err)
	}
	return wrapperspb.Int64(int64(n)), nil
}
