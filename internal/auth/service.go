package auth

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elskow/rubric-eval/internal/config"
)

// Service implements login, session validation and user administration on
// top of the credential store, session store, guard and hasher.
//
// Authenticate is slow by construction (bcrypt); callers must not hold
// unrelated locks across it. Each successful call mints a new session, so a
// retry after an ambiguous timeout can leave more than one valid session.
type Service struct {
	config   *config.AuthConfig
	log      *zap.Logger
	users    CredentialStore
	sessions SessionStore
	guard    Guard
	hasher   *Hasher
	tokens   *TokenGenerator
	metrics  *MetricsCollector
}

func NewService(
	config *config.AuthConfig,
	log *zap.Logger,
	users CredentialStore,
	sessions SessionStore,
	guard Guard,
	hasher *Hasher,
	tokens *TokenGenerator,
	metrics *MetricsCollector,
) *Service {
	return &Service{
		config:   config,
		log:      log,
		users:    users,
		sessions: sessions,
		guard:    guard,
		hasher:   hasher,
		tokens:   tokens,
		metrics:  metrics,
	}
}

// Metrics exposes the login outcome counters.
func (s *Service) Metrics() *MetricsCollector {
	return s.metrics
}

// Authenticate checks the credentials and returns a new session token.
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, error) {
	start := time.Now()
	token, err := s.authenticate(ctx, username, password)
	s.metrics.RecordLogin(loginOutcome(err), time.Since(start))
	return token, err
}

func (s *Service) authenticate(ctx context.Context, username, password string) (string, error) {
	if username == "" {
		return "", validationError(CodeEmptyUsername, "username", "username is required")
	}
	if password == "" {
		return "", validationError(CodeEmptyPassword, "password", "password is required")
	}

	if s.guard.IsBlocked(ctx, username) {
		s.log.Warn("login rejected", zap.String("username", username), zap.String("reason", CodeLocked))
		return "", ErrLocked
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.hasher.DummyVerify(password) // Prevent timing attacks
			s.guard.RecordAttempt(ctx, username, false)
			s.log.Warn("login failed", zap.String("username", username), zap.String("reason", "unknown_user"))
			return "", ErrInvalidCredentials
		}
		return "", s.internal("failed to look up user", err)
	}

	// Not a password guess, so it does not count toward the lockout.
	if !user.IsActive {
		s.log.Warn("login rejected", zap.String("username", username), zap.String("reason", CodeAccountInactive))
		return "", ErrAccountInactive
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.guard.RecordAttempt(ctx, username, false)
		s.log.Warn("login failed", zap.String("username", username), zap.String("reason", "wrong_password"))
		return "", ErrInvalidCredentials
	}

	s.guard.RecordAttempt(ctx, username, true)

	token, err := s.tokens.Generate()
	if err != nil {
		return "", s.internal("failed to generate session token", err)
	}

	session, err := s.sessions.Create(ctx, token, user.ID, user.IsAdmin)
	if err != nil {
		return "", s.internal("failed to create session", err)
	}

	s.log.Info("session created",
		zap.String("username", user.Username),
		zap.String("token", MaskToken(token)),
		zap.Bool("is_admin", session.IsAdmin),
		zap.Time("expires_at", session.ExpiresAt))

	return token, nil
}

// ValidateSession resolves a token into a SessionView. Absent and expired
// tokens both yield ErrInvalidToken.
func (s *Service) ValidateSession(ctx context.Context, token string) (*SessionView, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			reason := "not_found"
			if errors.Is(err, ErrSessionExpired) {
				reason = "expired"
			}
			s.log.Debug("session rejected", zap.String("token", MaskToken(token)), zap.String("reason", reason))
			return nil, ErrInvalidToken
		}
		return nil, s.internal("failed to load session", err)
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			if _, err := s.sessions.Deactivate(ctx, token); err != nil {
				s.log.Error("failed to end session of inactive user",
					zap.String("token", MaskToken(token)),
					zap.Error(err))
			}
			s.log.Warn("session rejected",
				zap.String("token", MaskToken(token)),
				zap.String("reason", CodeAccountInactive))
			return nil, ErrAccountInactive
		}
		return nil, s.internal("failed to load session owner", err)
	}

	return &SessionView{
		SessionID:   session.ID,
		Token:       session.Token,
		UserID:      user.ID,
		Username:    user.Username,
		IsAdmin:     session.IsAdmin,
		Permissions: permissionsFor(session.IsAdmin),
		CreatedAt:   session.CreatedAt,
		ExpiresAt:   session.ExpiresAt,
	}, nil
}

// Logout ends the session. It reports false when the token was already
// inactive or unknown.
func (s *Service) Logout(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	ended, err := s.sessions.Deactivate(ctx, token)
	if err != nil {
		return false, s.internal("failed to end session", err)
	}
	if ended {
		s.log.Info("session ended", zap.String("token", MaskToken(token)))
	}
	return ended, nil
}

// CreateUser registers a new account. Usernames are never reused, including
// those of deactivated accounts.
func (s *Service) CreateUser(ctx context.Context, username, password string, isAdmin bool) (uuid.UUID, error) {
	if err := s.validateNewCredentials(username, password); err != nil {
		return uuid.Nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return uuid.Nil, s.internal("failed to hash password", err)
	}

	user, err := s.users.Create(ctx, username, hash, isAdmin)
	if err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return uuid.Nil, ErrUsernameTaken
		}
		return uuid.Nil, s.internal("failed to create user", err)
	}

	s.log.Info("user created",
		zap.String("username", user.Username),
		zap.String("user_id", user.ID.String()),
		zap.Bool("is_admin", user.IsAdmin))

	return user.ID, nil
}

func (s *Service) validateNewCredentials(username, password string) error {
	if username == "" {
		return validationError(CodeEmptyUsername, "username", "username is required")
	}
	if utf8.RuneCountInString(username) < s.config.MinUsernameLength {
		return validationError(CodeUsernameTooShort, "username", "username is too short")
	}
	if password == "" {
		return validationError(CodeEmptyPassword, "password", "password is required")
	}
	if len(password) > MaxPasswordBytes {
		return validationError(CodePasswordTooLong, "password", "password must be at most 72 bytes")
	}
	return nil
}

// ListUsers returns active accounts, newest first.
func (s *Service) ListUsers(ctx context.Context) ([]UserInfo, error) {
	users, err := s.users.ListActive(ctx)
	if err != nil {
		return nil, s.internal("failed to list users", err)
	}

	infos := make([]UserInfo, 0, len(users))
	for i := range users {
		infos = append(infos, toUserInfo(&users[i]))
	}
	return infos, nil
}

// DeleteUser ends every session of the user, then soft-deletes the account.
// It reports false when there was no active account to delete.
func (s *Service) DeleteUser(ctx context.Context, username string) (bool, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, s.internal("failed to look up user", err)
	}

	ended, err := s.sessions.DeactivateByUser(ctx, user.ID)
	if err != nil {
		return false, s.internal("failed to end user sessions", err)
	}

	deleted, err := s.users.Deactivate(ctx, user.ID)
	if err != nil {
		return false, s.internal("failed to deactivate user", err)
	}

	if deleted {
		s.log.Info("user deactivated",
			zap.String("username", username),
			zap.Int64("sessions_ended", ended))
	}
	return deleted, nil
}

// ListActiveSessions lists live sessions with their tokens masked.
func (s *Service) ListActiveSessions(ctx context.Context) (*ActiveSessions, error) {
	sessions, err := s.sessions.ListActive(ctx)
	if err != nil {
		return nil, s.internal("failed to list sessions", err)
	}

	out := &ActiveSessions{
		Total:    len(sessions),
		Sessions: make([]SessionSummary, 0, len(sessions)),
	}
	for _, sess := range sessions {
		var username string
		if sess.User != nil {
			username = sess.User.Username
		}
		out.Sessions = append(out.Sessions, SessionSummary{
			MaskedToken: MaskToken(sess.Token),
			Username:    username,
			IsAdmin:     sess.IsAdmin,
			CreatedAt:   sess.CreatedAt,
			ExpiresAt:   sess.ExpiresAt,
		})
	}
	return out, nil
}

// ChangePassword replaces the password of the session's owner and ends every
// other session that user holds.
func (s *Service) ChangePassword(ctx context.Context, token, oldPassword, newPassword string) error {
	view, err := s.ValidateSession(ctx, token)
	if err != nil {
		return err
	}
	if newPassword == "" {
		return validationError(CodeEmptyPassword, "new_password", "new password is required")
	}
	if len(newPassword) > MaxPasswordBytes {
		return validationError(CodePasswordTooLong, "new_password", "new password must be at most 72 bytes")
	}

	if s.guard.IsBlocked(ctx, view.Username) {
		return ErrLocked
	}

	user, err := s.users.GetByID(ctx, view.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrAccountInactive
		}
		return s.internal("failed to load user", err)
	}

	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		s.guard.RecordAttempt(ctx, user.Username, false)
		s.log.Warn("password change rejected", zap.String("username", user.Username), zap.String("reason", "wrong_password"))
		return ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return s.internal("failed to hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return s.internal("failed to update password", err)
	}

	sessions, err := s.sessions.ListByUser(ctx, user.ID)
	if err != nil {
		return s.internal("failed to list user sessions", err)
	}
	for _, sess := range sessions {
		if !sess.IsActive || sess.Token == token {
			continue
		}
		if _, err := s.sessions.Deactivate(ctx, sess.Token); err != nil {
			return s.internal("failed to end session", err)
		}
	}

	s.log.Info("password changed", zap.String("username", user.Username))
	return nil
}

// SetAdmin changes the admin flag of an active account. Sessions already
// issued keep the flag they were created with.
func (s *Service) SetAdmin(ctx context.Context, username string, isAdmin bool) error {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrNoSuchUser
		}
		return s.internal("failed to look up user", err)
	}
	if !user.IsActive {
		return ErrNoSuchUser
	}

	if err := s.users.SetAdmin(ctx, user.ID, isAdmin); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrNoSuchUser
		}
		return s.internal("failed to update admin flag", err)
	}

	s.log.Info("admin flag updated", zap.String("username", username), zap.Bool("is_admin", isAdmin))
	return nil
}

// EnsureAdmin creates the bootstrap administrator if no account with that
// username exists yet.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" {
		return nil
	}

	_, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return s.internal("failed to look up bootstrap admin", err)
	}

	if _, err := s.CreateUser(ctx, username, password, true); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil
		}
		return err
	}
	return nil
}

// SweepExpiredSessions terminates expired sessions nobody has read since
// they expired.
func (s *Service) SweepExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.Sweep(ctx)
	if err != nil {
		return 0, s.internal("failed to sweep sessions", err)
	}
	return n, nil
}

func (s *Service) internal(msg string, err error) *Error {
	s.log.Error(msg, zap.Error(err))
	return internalError(err)
}
