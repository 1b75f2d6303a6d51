package auth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/elskow/rubric-eval/internal/api"
)

// AuthServer is the server API for the rubric.auth.v1.Auth service.
type AuthServer interface {
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ValidateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ChangePassword(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListUsers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetAdmin(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListActiveSessions(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var _ AuthServer = (*Handler)(nil)

type unaryMethod func(AuthServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func methodHandler(fullMethod string, call unaryMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AuthServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AuthServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AuthServiceDesc describes rubric.auth.v1.Auth for grpc.Server.RegisterService.
var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: api.AuthService,
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Login", Handler: methodHandler(api.AuthLogin, AuthServer.Login)},
		{MethodName: "ValidateSession", Handler: methodHandler(api.AuthValidateSession, AuthServer.ValidateSession)},
		{MethodName: "Logout", Handler: methodHandler(api.AuthLogout, AuthServer.Logout)},
		{MethodName: "ChangePassword", Handler: methodHandler(api.AuthChangePassword, AuthServer.ChangePassword)},
		{MethodName: "CreateUser", Handler: methodHandler(api.AuthCreateUser, AuthServer.CreateUser)},
		{MethodName: "ListUsers", Handler: methodHandler(api.AuthListUsers, AuthServer.ListUsers)},
		{MethodName: "DeleteUser", Handler: methodHandler(api.AuthDeleteUser, AuthServer.DeleteUser)},
		{MethodName: "SetAdmin", Handler: methodHandler(api.AuthSetAdmin, AuthServer.SetAdmin)},
		{MethodName: "ListActiveSessions", Handler: methodHandler(api.AuthListActiveSessions, AuthServer.ListActiveSessions)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rubric/auth/v1/auth.proto",
}

func RegisterAuthServer(s grpc.ServiceRegistrar, srv AuthServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}
