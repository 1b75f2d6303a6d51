package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/elskow/rubric-eval/internal/auth"
	"github.com/elskow/rubric-eval/internal/config"
	"github.com/elskow/rubric-eval/internal/testutil"
)

const (
	testThreshold = 3
	testWindow    = 5 * time.Minute
)

type fixture struct {
	svc      *auth.Service
	users    *testutil.CredentialStore
	sessions *testutil.SessionStore
	clock    *testutil.Clock
	config   *config.AuthConfig
}

func newTestConfig() *config.AuthConfig {
	return &config.AuthConfig{
		SessionTimeout:    time.Hour,
		TokenLength:       32,
		TokenAlphabet:     "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789",
		BcryptCost:        bcrypt.MinCost,
		MinUsernameLength: 3,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := newTestConfig()
	clock := testutil.NewClock()
	users := testutil.NewCredentialStore(clock)
	sessions := testutil.NewSessionStore(clock, cfg.SessionTimeout, users)
	guard := auth.NewMemoryGuard(testThreshold, testWindow).WithClock(clock.Now)

	hasher, err := auth.NewHasher(cfg.BcryptCost)
	require.NoError(t, err)
	tokens, err := auth.NewTokenGenerator(cfg.TokenLength, cfg.TokenAlphabet)
	require.NoError(t, err)
	metrics, err := auth.NewMetricsCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	return &fixture{
		svc:      auth.NewService(cfg, zaptest.NewLogger(t), users, sessions, guard, hasher, tokens, metrics),
		users:    users,
		sessions: sessions,
		clock:    clock,
		config:   cfg,
	}
}

func (f *fixture) createUser(t *testing.T, username, password string, isAdmin bool) uuid.UUID {
	t.Helper()
	id, err := f.svc.CreateUser(context.Background(), username, password, isAdmin)
	require.NoError(t, err)
	return id
}

func (f *fixture) login(t *testing.T, username, password string) string {
	t.Helper()
	token, err := f.svc.Authenticate(context.Background(), username, password)
	require.NoError(t, err)
	return token
}
