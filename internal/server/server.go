package server

import (
	"context"
	"fmt"
	"net"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/elskow/rubric-eval/internal/api"
	"github.com/elskow/rubric-eval/internal/auth"
	"github.com/elskow/rubric-eval/internal/config"
)

type Server struct {
	config         *config.AppConfig
	log            *zap.Logger
	grpcServer     *grpc.Server
	health         *health.Server
	authHandler    *auth.Handler
	authMiddleware *auth.AuthMiddleware
}

type Params struct {
	fx.In

	Config         *config.AppConfig
	Logger         *zap.Logger
	AuthHandler    *auth.Handler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *RequestMetrics
}

// AuthInterceptor runs the authorization gate before every protected
// method. A rejected request never reaches its handler.
func AuthInterceptor(m *auth.AuthMiddleware, log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		access := api.AccessFor(info.FullMethod)

		// Skip authentication for public endpoints
		if access == api.AccessPublic {
			return handler(ctx, req)
		}

		// Authenticate the request
		newCtx, err := m.AuthenticationMiddleware(ctx, access == api.AccessAdmin)
		if err != nil {
			log.Warn("request rejected",
				zap.String("method", info.FullMethod),
				zap.Stringer("access", access),
				zap.String("reason", auth.CodeOf(err)))
			return nil, auth.ToStatus(err)
		}

		// Call the handler with the authenticated context
		return handler(newCtx, req)
	}
}

func NewServer(p Params) *Server {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			p.Metrics.UnaryServerInterceptor(),
			AuthInterceptor(p.AuthMiddleware, p.Logger),
		),
		grpc.MaxRecvMsgSize(p.Config.GRPC.MaxReceiveMessageSize),
		grpc.MaxSendMsgSize(p.Config.GRPC.MaxSendMessageSize),
	}

	grpcServer := grpc.NewServer(opts...)
	healthServer := health.NewServer()

	server := &Server{
		config:         p.Config,
		log:            p.Logger,
		grpcServer:     grpcServer,
		health:         healthServer,
		authHandler:    p.AuthHandler,
		authMiddleware: p.AuthMiddleware,
	}

	// Register services
	auth.RegisterAuthServer(grpcServer, p.AuthHandler)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	if p.Config.GRPC.EnableReflection {
		reflection.Register(grpcServer)
	}

	return server
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.log.Info("Starting gRPC server",
		zap.String("address", addr),
		zap.Object("config", serverConfigToField(s.config)),
	)

	return s.Serve(lis)
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.health.SetServingStatus(api.AuthService, healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	if err := s.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}

	return nil
}

func serverConfigToField(config *config.AppConfig) zapcore.ObjectMarshaler {
	return zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		enc.AddString("environment", os.Getenv("APP_ENV"))
		enc.AddBool("reflection_enabled", config.GRPC.EnableReflection)
		enc.AddInt("max_receive_size", config.GRPC.MaxReceiveMessageSize)
		enc.AddInt("max_send_size", config.GRPC.MaxSendMessageSize)
		enc.AddDuration("session_timeout", config.Auth.SessionTimeout)
		enc.AddString("lockout_backend", config.Lockout.Backend)
		enc.AddInt("lockout_threshold", config.Lockout.Threshold)
		enc.AddDuration("lockout_window", config.Lockout.Window)
		enc.AddString("metrics_addr", config.Metrics.Addr)
		return nil
	})
}

func (s *Server) Stop() {
	s.log.Info("shutting down gRPC server")
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
