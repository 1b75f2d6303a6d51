package auth

import (
	"context"
	"errors"
)

// SessionValidator is the part of Service the gate depends on.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*SessionView, error)
}

// Gate decides whether a request may run a protected operation. It performs
// no writes of its own beyond the lazy session cleanup done by validation.
type Gate struct {
	sessions SessionValidator
}

func NewGate(sessions SessionValidator) *Gate {
	return &Gate{sessions: sessions}
}

// Authorize returns the caller's session or one of ErrMissingToken,
// ErrInvalidToken, ErrAccountInactive, ErrInsufficientPrivilege or an
// internal error.
func (g *Gate) Authorize(ctx context.Context, token string, requireAdmin bool) (*SessionView, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	view, err := g.sessions.ValidateSession(ctx, token)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return nil, e
		}
		return nil, internalError(err)
	}

	if requireAdmin && !view.IsAdmin {
		return nil, ErrInsufficientPrivilege
	}
	return view, nil
}
