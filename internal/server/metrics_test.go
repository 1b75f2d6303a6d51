package server

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/elskow/rubric-eval/internal/api"
	"github.com/elskow/rubric-eval/internal/config"
)

func TestRequestMetrics_Interceptor(t *testing.T) {
	m, err := NewRequestMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	interceptor := m.UnaryServerInterceptor()

	ok := func(ctx context.Context, req interface{}) (interface{}, error) { return req, nil }
	denied := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.PermissionDenied, "no")
	}

	info := &grpc.UnaryServerInfo{FullMethod: api.AuthListUsers}
	_, _ = interceptor(context.Background(), nil, info, ok)
	_, _ = interceptor(context.Background(), nil, info, denied)
	_, _ = interceptor(context.Background(), nil, info, denied)

	assert.Equal(t, float64(1), promtestutil.ToFloat64(m.requests.WithLabelValues(api.AuthListUsers, codes.OK.String())))
	assert.Equal(t, float64(2), promtestutil.ToFloat64(m.requests.WithLabelValues(api.AuthListUsers, codes.PermissionDenied.String())))
}

func TestNewRequestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRequestMetrics(reg)
	require.NoError(t, err)

	_, err = NewRequestMetrics(reg)
	assert.Error(t, err)
}

func TestMetricsServer_Disabled(t *testing.T) {
	s := NewMetricsServer(&config.AppConfig{}, NewRegistry(), zaptest.NewLogger(t))

	assert.NoError(t, s.Start())
	assert.NoError(t, s.Stop(context.Background()))
}
