package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/metadata"
)

// Define a custom type for context keys
type contextKey string

const (
	// SessionContextKey is the key used to store the *SessionView in the context
	SessionContextKey contextKey = "session"

	authorizationHeader = "authorization"
	bearerPrefix        = "bearer "
)

type AuthMiddleware struct {
	gate *Gate
	log  *zap.Logger
}

func NewAuthMiddleware(gate *Gate, log *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		gate: gate,
		log:  log,
	}
}

// AuthenticationMiddleware runs the gate against the token carried in the
// incoming metadata and stores the resulting session in the context.
func (m *AuthMiddleware) AuthenticationMiddleware(ctx context.Context, requireAdmin bool) (context.Context, error) {
	view, err := m.gate.Authorize(ctx, TokenFromContext(ctx), requireAdmin)
	if err != nil {
		m.log.Debug("request not authorized",
			zap.Bool("require_admin", requireAdmin),
			zap.String("reason", CodeOf(err)))
		return nil, err
	}
	return context.WithValue(ctx, SessionContextKey, view), nil
}

// TokenFromContext extracts the session token from the authorization
// metadata. Both "Bearer <token>" and a bare token are accepted.
func TokenFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}

	values := md.Get(authorizationHeader)
	if len(values) == 0 {
		return ""
	}

	token := strings.TrimSpace(values[0]) // Get the first token
	if len(token) > len(bearerPrefix) && strings.EqualFold(token[:len(bearerPrefix)], bearerPrefix) {
		token = strings.TrimSpace(token[len(bearerPrefix):])
	}
	return token
}

// Helper function to get the authorized session from context
func SessionFromContext(ctx context.Context) (*SessionView, error) {
	view, ok := ctx.Value(SessionContextKey).(*SessionView)
	if !ok || view == nil {
		return nil, errors.New("session not found in context")
	}
	return view, nil
}
