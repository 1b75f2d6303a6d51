package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/elskow/rubric-eval/internal/api"
	"github.com/elskow/rubric-eval/internal/auth"
	"github.com/elskow/rubric-eval/internal/config"
	"github.com/elskow/rubric-eval/internal/testutil"
)

type testEnv struct {
	conn  *grpc.ClientConn
	svc   *auth.Service
	users *testutil.CredentialStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.AppConfig{
		GRPC: config.GRPCConfig{
			MaxReceiveMessageSize: 4 << 20,
			MaxSendMessageSize:    4 << 20,
		},
		Auth: config.AuthConfig{
			SessionTimeout:    time.Hour,
			TokenLength:       32,
			TokenAlphabet:     "abcdefghijklmnopqrstuvwxyz0123456789",
			BcryptCost:        bcrypt.MinCost,
			MinUsernameLength: 3,
		},
	}
	log := zaptest.NewLogger(t)

	clock := testutil.NewClock()
	users := testutil.NewCredentialStore(clock)
	sessions := testutil.NewSessionStore(clock, cfg.Auth.SessionTimeout, users)
	hasher, err := auth.NewHasher(cfg.Auth.BcryptCost)
	require.NoError(t, err)
	tokens, err := auth.NewTokenGenerator(cfg.Auth.TokenLength, cfg.Auth.TokenAlphabet)
	require.NoError(t, err)

	metrics, err := auth.NewMetricsCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	svc := auth.NewService(&cfg.Auth, log, users, sessions, auth.NewMemoryGuard(3, 5*time.Minute), hasher, tokens, metrics)
	requestMetrics, err := NewRequestMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	srv := NewServer(Params{
		Config:         cfg,
		Logger:         log,
		AuthHandler:    auth.NewHandler(svc, log),
		AuthMiddleware: auth.NewAuthMiddleware(auth.NewGate(svc), log),
		Metrics:        requestMetrics,
	})

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &testEnv{conn: conn, svc: svc, users: users}
}

func (e *testEnv) call(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	resp := new(structpb.Struct)
	if err := e.conn.Invoke(ctx, method, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (e *testEnv) login(t *testing.T, username, password string) context.Context {
	t.Helper()
	resp, err := e.call(context.Background(), api.AuthLogin, map[string]any{"username": username, "password": password})
	require.NoError(t, err)
	token := resp.GetFields()["token"].GetStringValue()
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t)

	resp, err := healthpb.NewHealthClient(env.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: api.AuthService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestServer_AccessControl(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.CreateUser(ctx, "root", "Passw0rd!", true)
	require.NoError(t, err)
	_, err = env.svc.CreateUser(ctx, "bob", "Passw0rd!", false)
	require.NoError(t, err)

	adminCtx := env.login(t, "root", "Passw0rd!")
	userCtx := env.login(t, "bob", "Passw0rd!")

	tests := []struct {
		name       string
		ctx        context.Context
		method     string
		request    map[string]any
		wantCode   codes.Code
		wantReason string
	}{
		{
			name:       "admin method without token",
			ctx:        ctx,
			method:     api.AuthCreateUser,
			request:    map[string]any{"username": "mallory", "password": "Passw0rd!"},
			wantCode:   codes.Unauthenticated,
			wantReason: auth.CodeMissingToken,
		},
		{
			name:       "admin method with bogus token",
			ctx:        metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer nope"),
			method:     api.AuthCreateUser,
			request:    map[string]any{"username": "mallory", "password": "Passw0rd!"},
			wantCode:   codes.Unauthenticated,
			wantReason: auth.CodeInvalidToken,
		},
		{
			name:       "admin method as regular user",
			ctx:        userCtx,
			method:     api.AuthCreateUser,
			request:    map[string]any{"username": "mallory", "password": "Passw0rd!"},
			wantCode:   codes.PermissionDenied,
			wantReason: auth.CodeInsufficientPrivilege,
		},
		{
			name:       "session method without token",
			ctx:        ctx,
			method:     api.AuthChangePassword,
			request:    map[string]any{"old_password": "Passw0rd!", "new_password": "x"},
			wantCode:   codes.Unauthenticated,
			wantReason: auth.CodeMissingToken,
		},
		{
			name:     "admin listing as regular user",
			ctx:      userCtx,
			method:   api.AuthListUsers,
			wantCode: codes.PermissionDenied,
		},
		{
			name:     "admin method as admin",
			ctx:      adminCtx,
			method:   api.AuthListUsers,
			wantCode: codes.OK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.call(tt.ctx, tt.method, tt.request)
			assert.Equal(t, tt.wantCode, status.Code(err))
			if tt.wantReason != "" {
				info, ok := auth.ErrorInfoFromStatus(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantReason, info.GetReason())
			}
		})
	}

	// None of the rejected calls created anything.
	_, exists := env.users.Row("mallory")
	assert.False(t, exists)
}

func TestServer_LoginLogoutRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.CreateUser(context.Background(), "bob", "Passw0rd!", false)
	require.NoError(t, err)
	ctx := env.login(t, "bob", "Passw0rd!")

	resp, err := env.call(ctx, api.AuthValidateSession, nil)
	require.NoError(t, err)
	assert.Equal(t, "bob", resp.GetFields()["username"].GetStringValue())

	resp, err = env.call(ctx, api.AuthLogout, nil)
	require.NoError(t, err)
	assert.True(t, resp.GetFields()["logged_out"].GetBoolValue())

	resp, err = env.call(ctx, api.AuthLogout, nil)
	require.NoError(t, err)
	assert.False(t, resp.GetFields()["logged_out"].GetBoolValue())

	_, err = env.call(ctx, api.AuthValidateSession, nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestAuthInterceptor_ShortCircuits(t *testing.T) {
	env := newTestEnv(t)
	log := zaptest.NewLogger(t)
	interceptor := AuthInterceptor(auth.NewAuthMiddleware(auth.NewGate(env.svc), log), log)

	called := false
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		called = true
		return req, nil
	}

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: api.AuthDeleteUser}, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.False(t, called)

	_, err = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: api.AuthLogin}, handler)
	assert.NoError(t, err)
	assert.True(t, called)
}
