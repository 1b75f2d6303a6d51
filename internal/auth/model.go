package auth

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	IsAdmin      bool      `gorm:"not null;default:false"`
	IsActive     bool      `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (User) TableName() string {
	return "users"
}

// Session rows are never deleted; EndedAt records when IsActive went false.
type Session struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Token     string    `gorm:"uniqueIndex;not null"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT"`
	IsAdmin   bool      `gorm:"not null"`
	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"not null;index"`
	EndedAt   *time.Time
}

func (Session) TableName() string {
	return "sessions"
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionView is what ValidateSession hands to callers and the gate.
type SessionView struct {
	SessionID   uuid.UUID
	Token       string
	UserID      uuid.UUID
	Username    string
	IsAdmin     bool
	Permissions []string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// UserInfo is the listing shape of a user; it never carries the hash.
type UserInfo struct {
	ID        uuid.UUID
	Username  string
	IsAdmin   bool
	IsActive  bool
	CreatedAt time.Time
}

type SessionSummary struct {
	MaskedToken string
	Username    string
	IsAdmin     bool
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

type ActiveSessions struct {
	Total    int
	Sessions []SessionSummary
}

// Permissions granted to admin sessions. Regular sessions get none.
const (
	PermissionManageUsers    = "users:manage"
	PermissionViewSessions   = "sessions:view"
	PermissionManageSettings = "settings:manage"
)

func permissionsFor(isAdmin bool) []string {
	if !isAdmin {
		return []string{}
	}
	return []string{PermissionManageUsers, PermissionViewSessions, PermissionManageSettings}
}

func toUserInfo(u *User) UserInfo {
	return UserInfo{
		ID:        u.ID,
		Username:  u.Username,
		IsAdmin:   u.IsAdmin,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}
