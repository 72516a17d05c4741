package grpc

import (
	"context"

	"github.com/dmitrijs2005/salesdash/internal/common"
	"github.com/dmitrijs2005/salesdash/internal/logging"
	"github.com/dmitrijs2005/salesdash/internal/server/audit"
	"github.com/dmitrijs2005/salesdash/internal/server/models"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type ctxKey string

const userKey ctxKey = "user"

// protected lists the methods that act on behalf of an authenticated caller.
var protected = map[string]bool{
	MethodRevokeAll: true,
	MethodSweep:     true,
}

func userFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok && u != nil
}

func (s *GRPCServer) originInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	o := audit.Origin{Transport: "grpc"}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		o.RemoteAddr = p.Addr.String()
	}
	var requestID string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get("user-agent"); len(v) > 0 {
			o.UserAgent = v[0]
		}
		if v := md.Get(common.RequestIDHeaderName); len(v) > 0 {
			requestID = v[0]
		}
	}
	if requestID == "" || len(requestID) > common.MaxRequestIDLength {
		requestID = uuid.NewString()
	}
	_ = grpc.SetHeader(ctx, metadata.Pairs(common.RequestIDHeaderName, requestID))
	ctx = logging.WithFields(ctx, "request_id", requestID, "method", info.FullMethod)
	return handler(audit.WithOrigin(ctx, o), req)
}

func (s *GRPCServer) sessionTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !protected[info.FullMethod] {
		return handler(ctx, req)
	}

	var sealed string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.SessionTokenHeaderName); len(values) > 0 {
			sealed = values[0]
		}
	}
	if sealed == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	token, err := s.sealer.Open(sealed)
	if err != nil {
		return nil, s.toStatus(ctx, info.FullMethod, err)
	}
	user, err := s.sessions.ValidateSession(ctx, token)
	if err != nil {
		return nil, s.toStatus(ctx, info.FullMethod, err)
	}

	return handler(context.WithValue(ctx, userKey, user), req)
}
