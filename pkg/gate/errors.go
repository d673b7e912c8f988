package gate

import "net/http"

// Stable application error codes. API clients branch on these instead of
// parsing message text.
const (
	// CodeUnauthenticated: no token supplied
	CodeUnauthenticated = 4100
	// CodeCannotVerify: token invalid or expired
	CodeCannotVerify = 4101
	// CodeUnknownRole: the caller's role reference resolved to nothing
	CodeUnknownRole = 4300
	// CodeUnknownRoleInternal: role resolution failed as a side effect of
	// another operation rather than a direct access check
	CodeUnknownRoleInternal = 4301
	// CodeNotAuthorized: role level outside the permitted range
	CodeNotAuthorized = 4302
	// CodeNotOwner: the target resource does not belong to the caller
	CodeNotOwner = 4303
)

// Error is a gate failure with its HTTP status and application code
type Error struct {
	Status  int
	AppCode int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func errUnauthenticated() *Error {
	return &Error{
		Status:  http.StatusUnauthorized,
		AppCode: CodeUnauthenticated,
		Message: "no access token supplied",
	}
}

func errCannotVerify() *Error {
	return &Error{
		Status:  http.StatusForbidden,
		AppCode: CodeCannotVerify,
		Message: "access token could not be verified",
	}
}

func errUnknownRole(internal bool) *Error {
	code := CodeUnknownRole
	if internal {
		code = CodeUnknownRoleInternal
	}
	return &Error{
		Status:  http.StatusForbidden,
		AppCode: code,
		Message: "unknown role",
	}
}

func errNotAuthorized() *Error {
	return &Error{
		Status:  http.StatusForbidden,
		AppCode: CodeNotAuthorized,
		Message: "not authorized for this operation",
	}
}

func errNotOwner() *Error {
	return &Error{
		Status:  http.StatusForbidden,
		AppCode: CodeNotOwner,
		Message: "resource does not belong to the caller",
	}
}
