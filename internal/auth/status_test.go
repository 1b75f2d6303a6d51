package auth_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/elskow/rubric-eval/internal/auth"
)

func TestToStatus(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  codes.Code
		wantMsg   string
		wantKind  string
		wantField string
	}{
		{
			name:     "invalid credentials",
			err:      auth.ErrInvalidCredentials,
			wantCode: codes.Unauthenticated,
			wantMsg:  "invalid username or password",
			wantKind: string(auth.KindAuthentication),
		},
		{
			name:     "locked",
			err:      auth.ErrLocked,
			wantCode: codes.Unauthenticated,
			wantMsg:  "too many failed attempts, try again later",
			wantKind: string(auth.KindAuthentication),
		},
		{
			name:     "insufficient privilege",
			err:      auth.ErrInsufficientPrivilege,
			wantCode: codes.PermissionDenied,
			wantMsg:  "administrator privileges required",
			wantKind: string(auth.KindAuthorization),
		},
		{
			name:      "duplicate username",
			err:       auth.ErrUsernameTaken,
			wantCode:  codes.AlreadyExists,
			wantMsg:   "username already taken",
			wantKind:  string(auth.KindConflict),
			wantField: "username",
		},
		{
			name:     "raw storage error",
			err:      errors.New(`pq: relation "users" does not exist`),
			wantCode: codes.Internal,
			wantMsg:  "an internal error occurred",
			wantKind: string(auth.KindInternal),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ToStatus(tt.err)
			require.Error(t, err)

			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, st.Code())
			assert.Equal(t, tt.wantMsg, st.Message())

			info, ok := auth.ErrorInfoFromStatus(err)
			require.True(t, ok)
			assert.Equal(t, auth.CodeOf(tt.err), info.GetReason())
			assert.Equal(t, tt.wantKind, info.GetMetadata()["kind"])
			assert.Equal(t, tt.wantField, info.GetMetadata()["field"])
		})
	}
}

func TestToStatus_PassThrough(t *testing.T) {
	assert.NoError(t, auth.ToStatus(nil))

	original := status.Error(codes.Unavailable, "draining")
	assert.Equal(t, original, auth.ToStatus(original))
}
