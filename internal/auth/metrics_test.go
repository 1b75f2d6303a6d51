package auth_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elskow/rubric-eval/internal/auth"
)

func TestMetricsCollector(t *testing.T) {
	mc, err := auth.NewMetricsCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	mc.RecordLogin(auth.OutcomeSuccess, time.Millisecond)
	mc.RecordLogin(auth.OutcomeSuccess, 2*time.Millisecond)
	mc.RecordLogin(auth.OutcomeLocked, time.Microsecond)

	snap := mc.Snapshot()
	assert.Equal(t, int64(2), snap[auth.OutcomeSuccess].Count)
	assert.Equal(t, 2*time.Millisecond, snap[auth.OutcomeSuccess].LastLatency)
	assert.Equal(t, int64(1), snap[auth.OutcomeLocked].Count)
	assert.NotContains(t, snap, auth.OutcomeError)
}

func TestMetricsCollector_Prometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	mc, err := auth.NewMetricsCollector(reg)
	require.NoError(t, err)

	mc.RecordLogin(auth.OutcomeSuccess, time.Millisecond)
	mc.RecordLogin(auth.OutcomeInvalidCredentials, time.Millisecond)
	mc.RecordLogin(auth.OutcomeInvalidCredentials, time.Millisecond)

	expected := `
# HELP rubric_auth_logins_total Login attempts by outcome
# TYPE rubric_auth_logins_total counter
rubric_auth_logins_total{outcome="invalid_credentials"} 2
rubric_auth_logins_total{outcome="success"} 1
`
	assert.NoError(t, promtestutil.GatherAndCompare(reg, strings.NewReader(expected), "rubric_auth_logins_total"))

	// A second collector on the same registry is a wiring mistake.
	_, err = auth.NewMetricsCollector(reg)
	assert.Error(t, err)
}

func TestService_RecordsLoginOutcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUser(t, "bob", "Passw0rd!", false)

	f.login(t, "bob", "Passw0rd!")
	for i := 0; i < testThreshold; i++ {
		_, _ = f.svc.Authenticate(ctx, "bob", "wrong")
	}
	_, _ = f.svc.Authenticate(ctx, "bob", "Passw0rd!")
	_, _ = f.svc.Authenticate(ctx, "", "x")

	snap := f.svc.Metrics().Snapshot()
	require.Len(t, snap, 4)
	assert.Equal(t, int64(1), snap[auth.OutcomeSuccess].Count)
	assert.Equal(t, int64(testThreshold), snap[auth.OutcomeInvalidCredentials].Count)
	assert.Equal(t, int64(1), snap[auth.OutcomeLocked].Count)
	assert.Equal(t, int64(1), snap[auth.OutcomeInvalidInput].Count)
}
