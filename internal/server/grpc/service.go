package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "salesdash.session.SessionService"

const (
	MethodLogin     = "/" + ServiceName + "/Login"
	MethodValidate  = "/" + ServiceName + "/Validate"
	MethodLogout    = "/" + ServiceName + "/Logout"
	MethodRevokeAll = "/" + ServiceName + "/RevokeAll"
	MethodSweep     = "/" + ServiceName + "/Sweep"
)

// SessionServiceServer is implemented by *Server. Messages are protobuf
// well-known types, so no generated code is needed on either side.
type SessionServiceServer interface {
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Validate(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Logout(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	RevokeAll(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error)
	Sweep(context.Context, *emptypb.Empty) (*wrapperspb.Int64Value, error)
}

// unary builds the method handler the generated code would normally emit.
func unary[Req any, Resp any](name, fullMethod string, call func(SessionServiceServer, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SessionServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(SessionServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Login", MethodLogin, SessionServiceServer.Login),
		unary("Validate", MethodValidate, SessionServiceServer.Validate),
		unary("Logout", MethodLogout, SessionServiceServer.Logout),
		unary("RevokeAll", MethodRevokeAll, SessionServiceServer.RevokeAll),
		unary("Sweep", MethodSweep, SessionServiceServer.Sweep),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "salesdash/session.proto",
}

// RegisterSessionServiceServer registers srv on s.
func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
