package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionStore owns the sessions table. Expiry is computed here from the
// configured timeout; callers never choose it.
type SessionStore interface {
	Create(ctx context.Context, token string, userID uuid.UUID, isAdmin bool) (*Session, error)
	// GetByToken returns only active, unexpired sessions. An expired row is
	// deactivated before ErrSessionNotFound is returned.
	GetByToken(ctx context.Context, token string) (*Session, error)
	Deactivate(ctx context.Context, token string) (bool, error)
	DeactivateByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Session, error)
	// ListActive returns active, unexpired sessions with User preloaded.
	ListActive(ctx context.Context) ([]Session, error)
	// Sweep deactivates every expired session that is still marked active.
	Sweep(ctx context.Context) (int64, error)
}

type sessionStore struct {
	db      *gorm.DB
	timeout time.Duration
	now     func() time.Time
}

func NewSessionStore(db *gorm.DB, timeout time.Duration) SessionStore {
	return &sessionStore{db: db, timeout: timeout, now: time.Now}
}

func (r *sessionStore) Create(ctx context.Context, token string, userID uuid.UUID, isAdmin bool) (*Session, error) {
	now := r.now().UTC()
	session := &Session{
		ID:        uuid.New(),
		Token:     token,
		UserID:    userID,
		IsAdmin:   isAdmin,
		IsActive:  true,
		CreatedAt: now,
		ExpiresAt: now.Add(r.timeout),
	}

	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return nil, fmt.Errorf("session for unknown user %s: %w", userID, err)
		}
		return nil, err
	}
	return session, nil
}

func (r *sessionStore) GetByToken(ctx context.Context, token string) (*Session, error) {
	var session Session
	err := r.db.WithContext(ctx).
		Where("token = ? AND is_active = ?", token, true).
		Take(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	now := r.now().UTC()
	if session.Expired(now) {
		if err := r.end(r.db.WithContext(ctx).Where("id = ?", session.ID), now).Error; err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}
	return &session, nil
}

func (r *sessionStore) Deactivate(ctx context.Context, token string) (bool, error) {
	res := r.end(r.db.WithContext(ctx).Where("token = ?", token), r.now().UTC())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *sessionStore) DeactivateByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.end(r.db.WithContext(ctx).Where("user_id = ?", userID), r.now().UTC())
	return res.RowsAffected, res.Error
}

func (r *sessionStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	var sessions []Session
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionStore) ListActive(ctx context.Context) ([]Session, error) {
	var sessions []Session
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("is_active = ? AND expires_at > ?", true, r.now().UTC()).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionStore) Sweep(ctx context.Context) (int64, error) {
	now := r.now().UTC()
	res := r.end(r.db.WithContext(ctx).Where("expires_at <= ?", now), now)
	return res.RowsAffected, res.Error
}

// end flips active rows matched by q to inactive and stamps ended_at.
func (r *sessionStore) end(q *gorm.DB, now time.Time) *gorm.DB {
	return q.Model(&Session{}).
		Where("is_active = ?", true).
		Updates(map[string]any{"is_active": false, "ended_at": now})
}
