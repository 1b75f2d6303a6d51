// Package testutil holds in-memory implementations of the auth stores and a
// controllable clock, shared by tests across packages.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/elskow/rubric-eval/internal/auth"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// CredentialStore is a map-backed auth.CredentialStore.
// Set the *Err fields to make the matching call fail.
type CredentialStore struct {
	CreateErr     error
	GetErr        error
	ListErr       error
	DeactivateErr error
	UpdateErr     error

	clock *Clock

	mu         sync.RWMutex
	byUsername map[string]*auth.User
	byID       map[uuid.UUID]*auth.User
}

func NewCredentialStore(clock *Clock) *CredentialStore {
	return &CredentialStore{
		clock:      clock,
		byUsername: make(map[string]*auth.User),
		byID:       make(map[uuid.UUID]*auth.User),
	}
}

func (r *CredentialStore) Create(_ context.Context, username, passwordHash string, isAdmin bool) (*auth.User, error) {
	if r.CreateErr != nil {
		return nil, r.CreateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[username]; exists {
		return nil, auth.ErrDuplicateUsername
	}

	now := r.clock.Now()
	user := &auth.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.byUsername[username] = user
	r.byID[user.ID] = user

	clone := *user
	return &clone, nil
}

func (r *CredentialStore) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	if r.GetErr != nil {
		return nil, r.GetErr
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byUsername[username]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *CredentialStore) GetByID(_ context.Context, id uuid.UUID) (*auth.User, error) {
	if r.GetErr != nil {
		return nil, r.GetErr
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok || !user.IsActive {
		return nil, auth.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *CredentialStore) ListActive(_ context.Context) ([]auth.User, error) {
	if r.ListErr != nil {
		return nil, r.ListErr
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]auth.User, 0, len(r.byID))
	for _, u := range r.byID {
		if u.IsActive {
			users = append(users, *u)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (r *CredentialStore) Deactivate(_ context.Context, id uuid.UUID) (bool, error) {
	if r.DeactivateErr != nil {
		return false, r.DeactivateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok || !user.IsActive {
		return false, nil
	}
	user.IsActive = false
	user.UpdatedAt = r.clock.Now()
	return true, nil
}

func (r *CredentialStore) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	return r.update(id, func(u *auth.User) { u.PasswordHash = passwordHash })
}

func (r *CredentialStore) SetAdmin(_ context.Context, id uuid.UUID, isAdmin bool) error {
	return r.update(id, func(u *auth.User) { u.IsAdmin = isAdmin })
}

func (r *CredentialStore) update(id uuid.UUID, fn func(*auth.User)) error {
	if r.UpdateErr != nil {
		return r.UpdateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok || !user.IsActive {
		return auth.ErrUserNotFound
	}
	fn(user)
	user.UpdatedAt = r.clock.Now()
	return nil
}

// Count returns the number of rows, active or not.
func (r *CredentialStore) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Row returns a copy of the stored row for username, including inactive ones.
func (r *CredentialStore) Row(username string) (auth.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byUsername[username]
	if !ok {
		return auth.User{}, false
	}
	return *u, true
}

// SessionStore is a map-backed auth.SessionStore. It resolves owners through
// the CredentialStore it was built with, the way a foreign key would.
type SessionStore struct {
	CreateErr     error
	GetErr        error
	DeactivateErr error
	ListErr       error

	clock   *Clock
	timeout time.Duration
	users   *CredentialStore

	mu      sync.RWMutex
	byToken map[string]*auth.Session
}

func NewSessionStore(clock *Clock, timeout time.Duration, users *CredentialStore) *SessionStore {
	return &SessionStore{
		clock:   clock,
		timeout: timeout,
		users:   users,
		byToken: make(map[string]*auth.Session),
	}
}

func (r *SessionStore) Create(_ context.Context, token string, userID uuid.UUID, isAdmin bool) (*auth.Session, error) {
	if r.CreateErr != nil {
		return nil, r.CreateErr
	}

	r.users.mu.RLock()
	_, known := r.users.byID[userID]
	r.users.mu.RUnlock()
	if !known {
		return nil, errors.New("violates foreign key constraint sessions_user_id_fkey")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byToken[token]; exists {
		return nil, errors.New("duplicate session token")
	}

	now := r.clock.Now()
	session := &auth.Session{
		ID:        uuid.New(),
		Token:     token,
		UserID:    userID,
		IsAdmin:   isAdmin,
		IsActive:  true,
		CreatedAt: now,
		ExpiresAt: now.Add(r.timeout),
	}
	r.byToken[token] = session

	clone := *session
	return &clone, nil
}

func (r *SessionStore) GetByToken(_ context.Context, token string) (*auth.Session, error) {
	if r.GetErr != nil {
		return nil, r.GetErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.byToken[token]
	if !ok || !session.IsActive {
		return nil, auth.ErrSessionNotFound
	}

	now := r.clock.Now()
	if session.Expired(now) {
		end(session, now)
		return nil, auth.ErrSessionExpired
	}

	clone := *session
	return &clone, nil
}

func (r *SessionStore) Deactivate(_ context.Context, token string) (bool, error) {
	if r.DeactivateErr != nil {
		return false, r.DeactivateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.byToken[token]
	if !ok || !session.IsActive {
		return false, nil
	}
	end(session, r.clock.Now())
	return true, nil
}

func (r *SessionStore) DeactivateByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	if r.DeactivateErr != nil {
		return 0, r.DeactivateErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	now := r.clock.Now()
	for _, s := range r.byToken {
		if s.UserID == userID && s.IsActive {
			end(s, now)
			n++
		}
	}
	return n, nil
}

func (r *SessionStore) ListByUser(_ context.Context, userID uuid.UUID) ([]auth.Session, error) {
	if r.ListErr != nil {
		return nil, r.ListErr
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var sessions []auth.Session
	for _, s := range r.byToken {
		if s.UserID == userID {
			sessions = append(sessions, *s)
		}
	}
	sortNewestFirst(sessions)
	return sessions, nil
}

func (r *SessionStore) ListActive(_ context.Context) ([]auth.Session, error) {
	if r.ListErr != nil {
		return nil, r.ListErr
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.clock.Now()
	var sessions []auth.Session
	for _, s := range r.byToken {
		if !s.IsActive || s.Expired(now) {
			continue
		}
		clone := *s
		r.users.mu.RLock()
		if u, ok := r.users.byID[s.UserID]; ok {
			owner := *u
			clone.User = &owner
		}
		r.users.mu.RUnlock()
		sessions = append(sessions, clone)
	}
	sortNewestFirst(sessions)
	return sessions, nil
}

func (r *SessionStore) Sweep(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	now := r.clock.Now()
	for _, s := range r.byToken {
		if s.IsActive && s.Expired(now) {
			end(s, now)
			n++
		}
	}
	return n, nil
}

// Row returns a copy of the stored session for token, active or not.
func (r *SessionStore) Row(token string) (auth.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byToken[token]
	if !ok {
		return auth.Session{}, false
	}
	return *s, true
}

// Count returns the number of session rows, active or not.
func (r *SessionStore) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byToken)
}

func end(s *auth.Session, now time.Time) {
	s.IsActive = false
	ended := now
	s.EndedAt = &ended
}

func sortNewestFirst(sessions []auth.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
}

var (
	_ auth.CredentialStore = (*CredentialStore)(nil)
	_ auth.SessionStore    = (*SessionStore)(nil)
)
