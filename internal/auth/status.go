package auth

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const errorDomain = "auth.rubric-eval"

var kindCodes = map[Kind]codes.Code{
	KindValidation:     codes.InvalidArgument,
	KindAuthentication: codes.Unauthenticated,
	KindAuthorization:  codes.PermissionDenied,
	KindConflict:       codes.AlreadyExists,
	KindInternal:       codes.Internal,
}

// ToStatus converts a service error into a gRPC status error. The kind, code
// and field travel in an ErrorInfo detail; internal causes never leave the
// process.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		if _, ok := status.FromError(err); ok {
			return err
		}
		e = internalError(err)
	}

	code, ok := kindCodes[e.Kind]
	if !ok {
		code = codes.Internal
	}

	st := status.New(code, PublicMessage(e))
	info := &errdetails.ErrorInfo{
		Reason: e.Code,
		Domain: errorDomain,
		Metadata: map[string]string{
			"kind": string(e.Kind),
		},
	}
	if e.Field != "" {
		info.Metadata["field"] = e.Field
	}

	withDetails, detailErr := st.WithDetails(info)
	if detailErr != nil {
		return st.Err()
	}
	return withDetails.Err()
}

// ErrorInfoFromStatus extracts the ErrorInfo detail set by ToStatus.
func ErrorInfoFromStatus(err error) (*errdetails.ErrorInfo, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return nil, false
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info, true
		}
	}
	return nil, false
}
