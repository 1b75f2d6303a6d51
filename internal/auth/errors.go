package auth

import (
	"errors"
	"fmt"
)

// Store-level sentinels. The service translates these into *Error before
// anything crosses its boundary.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrSessionNotFound   = errors.New("session not found")

	// ErrSessionExpired is returned by the session store when the lookup
	// terminated an expired session. It matches ErrSessionNotFound.
	ErrSessionExpired = fmt.Errorf("%w: expired", ErrSessionNotFound)
)

// Kind classifies a failure for the transport layer.
type Kind string

const (
	KindValidation     Kind = "ValidationError"
	KindAuthentication Kind = "AuthenticationError"
	KindAuthorization  Kind = "AuthorizationError"
	KindConflict       Kind = "ConflictError"
	KindInternal       Kind = "InternalError"
)

// Codes name the specific reason inside a kind. They are stable and safe to
// return to callers; the messages paired with them never distinguish an
// unknown username from a wrong password.
const (
	CodeEmptyUsername         = "empty_username"
	CodeEmptyPassword         = "empty_password"
	CodeUsernameTooShort      = "username_too_short"
	CodePasswordTooLong       = "password_too_long"
	CodeLocked                = "locked"
	CodeInvalidCredentials    = "invalid_credentials"
	CodeAccountInactive       = "account_inactive"
	CodeInvalidToken          = "invalid_token"
	CodeMissingToken          = "missing_token"
	CodeInsufficientPrivilege = "insufficient_privilege"
	CodeDuplicateUsername     = "duplicate_username"
	CodeUserNotFound          = "user_not_found"
	CodeInternal              = "internal"
)

const internalMessage = "an internal error occurred"

// Error is the structured outcome of a rejected operation.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error on kind and code so callers can compare against
// the package-level values below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

var (
	ErrLocked                = &Error{Kind: KindAuthentication, Code: CodeLocked, Message: "too many failed attempts, try again later"}
	ErrInvalidCredentials    = &Error{Kind: KindAuthentication, Code: CodeInvalidCredentials, Message: "invalid username or password"}
	ErrAccountInactive       = &Error{Kind: KindAuthentication, Code: CodeAccountInactive, Message: "account is inactive"}
	ErrInvalidToken          = &Error{Kind: KindAuthentication, Code: CodeInvalidToken, Message: "invalid or expired session"}
	ErrMissingToken          = &Error{Kind: KindAuthentication, Code: CodeMissingToken, Message: "authentication required"}
	ErrInsufficientPrivilege = &Error{Kind: KindAuthorization, Code: CodeInsufficientPrivilege, Message: "administrator privileges required"}
	ErrUsernameTaken         = &Error{Kind: KindConflict, Code: CodeDuplicateUsername, Message: "username already taken", Field: "username"}
	ErrNoSuchUser            = &Error{Kind: KindValidation, Code: CodeUserNotFound, Message: "user does not exist", Field: "username"}
)

func validationError(code, field, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message, Field: field}
}

func internalError(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: internalMessage, Err: err}
}

// KindOf reports the kind carried by err, defaulting to KindInternal for
// anything that is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf reports the code carried by err, defaulting to CodeInternal.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// PublicMessage returns the message that may be shown to a caller.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return internalMessage
}
