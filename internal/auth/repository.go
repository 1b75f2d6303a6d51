package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CredentialStore owns the users table. It is the only writer of user rows.
type CredentialStore interface {
	Create(ctx context.Context, username, passwordHash string, isAdmin bool) (*User, error)
	// GetByUsername returns the row whether or not it is active.
	GetByUsername(ctx context.Context, username string) (*User, error)
	// GetByID returns active users only.
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	ListActive(ctx context.Context) ([]User, error)
	Deactivate(ctx context.Context, id uuid.UUID) (bool, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetAdmin(ctx context.Context, id uuid.UUID, isAdmin bool) error
}

type credentialStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCredentialStore(db *gorm.DB) CredentialStore {
	return &credentialStore{db: db, now: time.Now}
}

func (r *credentialStore) Create(ctx context.Context, username, passwordHash string, isAdmin bool) (*User, error) {
	now := r.now().UTC()
	user := &User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	return user, nil
}

func (r *credentialStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).Where("username = ?", username).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *credentialStore) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *credentialStore) ListActive(ctx context.Context) ([]User, error) {
	var users []User
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *credentialStore) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]any{"is_active": false, "updated_at": r.now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *credentialStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.update(ctx, id, map[string]any{"password_hash": passwordHash})
}

func (r *credentialStore) SetAdmin(ctx context.Context, id uuid.UUID, isAdmin bool) error {
	return r.update(ctx, id, map[string]any{"is_admin": isAdmin})
}

func (r *credentialStore) update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	fields["updated_at"] = r.now().UTC()
	res := r.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
