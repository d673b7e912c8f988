// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains the authenticated *auth.Principal
	// Set by: gate middleware (pkg/gate)
	// Required by: all protected API endpoints
	PrincipalKey Key = "principal"

	// RoleKey contains the caller's resolved *privilege.Role
	// Set by: gate middleware after role resolution
	// Required by: privilege-mask checks in handlers
	RoleKey Key = "role"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: logger, error responses
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: observability middleware
	// Used by: handlers that log with request context
	LoggerKey Key = "logger"
)

// WithPrincipal adds the authenticated principal to the context
func WithPrincipal(ctx context.Context, principal interface{}) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// Principal retrieves the raw principal value from the context
func Principal(ctx context.Context) interface{} {
	return ctx.Value(PrincipalKey)
}

// WithRole adds the resolved role to the context
func WithRole(ctx context.Context, role interface{}) context.Context {
	return context.WithValue(ctx, RoleKey, role)
}

// Role retrieves the raw role value from the context
func Role(ctx context.Context) interface{} {
	return ctx.Value(RoleKey)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID retrieves the request ID from the context, or "" if unset
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
