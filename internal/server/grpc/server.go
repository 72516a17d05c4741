// Package grpc exposes the session manager to internal services over gRPC.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/salesdash/internal/logging"
	"github.com/dmitrijs2005/salesdash/internal/server/auth"
	"github.com/dmitrijs2005/salesdash/internal/server/models"
	"google.golang.org/grpc"
)

// SessionManager is the part of *sessions.Manager the gRPC API needs.
type SessionManager interface {
	VerifyCredentials(ctx context.Context, identifier, password string) (*models.Session, error)
	ValidateSession(ctx context.Context, token string) (*models.User, error)
	InvalidateSession(ctx context.Context, token string) error
	InvalidateAllSessions(ctx context.Context, userID string) (int, error)
	SweepExpired(ctx context.Context) (int, error)
}

type GRPCServer struct {
	address      string
	sessions     SessionManager
	sealer       *auth.TokenSealer
	loginTimeout time.Duration
	logger       logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, sm SessionManager, sealer *auth.TokenSealer, loginTimeout time.Duration) *GRPCServer {
	if l == nil {
		l = logging.Nop()
	}
	if loginTimeout <= 0 {
		loginTimeout = 5 * time.Second
	}
	return &GRPCServer{
		address:      a,
		logger:       l.With("module", "grpc_server"),
		sessions:     sm,
		sealer:       sealer,
		loginTimeout: loginTimeout,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.originInterceptor, s.sessionTokenInterceptor))
	RegisterSessionServiceServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	<-stopped
	return nil
}
