package api

// Authentication service endpoints
const (
	// Service name
	AuthService = "rubric.auth.v1.Auth"

	// Public endpoints
	AuthLogin           = "/rubric.auth.v1.Auth/Login"
	AuthValidateSession = "/rubric.auth.v1.Auth/ValidateSession"
	AuthLogout          = "/rubric.auth.v1.Auth/Logout"

	// Session endpoints
	AuthChangePassword = "/rubric.auth.v1.Auth/ChangePassword"

	// Administrative endpoints
	AuthCreateUser         = "/rubric.auth.v1.Auth/CreateUser"
	AuthListUsers          = "/rubric.auth.v1.Auth/ListUsers"
	AuthDeleteUser         = "/rubric.auth.v1.Auth/DeleteUser"
	AuthSetAdmin           = "/rubric.auth.v1.Auth/SetAdmin"
	AuthListActiveSessions = "/rubric.auth.v1.Auth/ListActiveSessions"

	HealthCheck = "/grpc.health.v1.Health/Check"
)

// Access is the level a caller needs to reach an endpoint.
type Access int

const (
	AccessPublic Access = iota
	AccessSession
	AccessAdmin
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessSession:
		return "session"
	case AccessAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Endpoints lists the access level of every known method. Logout is public so
// that repeating it stays a no-op instead of an authentication failure.
var Endpoints = map[string]Access{
	AuthLogin:           AccessPublic,
	AuthValidateSession: AccessPublic,
	AuthLogout:          AccessPublic,
	HealthCheck:         AccessPublic,

	AuthChangePassword: AccessSession,

	AuthCreateUser:         AccessAdmin,
	AuthListUsers:          AccessAdmin,
	AuthDeleteUser:         AccessAdmin,
	AuthSetAdmin:           AccessAdmin,
	AuthListActiveSessions: AccessAdmin,
}

// AccessFor returns the access level for method. Methods missing from
// Endpoints are admin-only until they are listed.
func AccessFor(method string) Access {
	if access, ok := Endpoints[method]; ok {
		return access
	}
	return AccessAdmin
}
