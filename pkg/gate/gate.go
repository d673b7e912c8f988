// Package gate is the access control layer wrapped around every handler
// entry point.
//
// A request passes the gate in stages, terminal on first failure: bearer
// token extraction and verification, role resolution (re-read from the
// store on every request; staleness window is one request), then a numeric
// role-level range check. The self-or-level variant first compares the
// request's target id against the principal's own id and bypasses the
// level check entirely on match.
package gate

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/opencanvass/canvassd/pkg/auth"
	"github.com/opencanvass/canvassd/pkg/contextkeys"
	"github.com/opencanvass/canvassd/pkg/httputil"
	"github.com/opencanvass/canvassd/pkg/observability"
	"github.com/opencanvass/canvassd/pkg/privilege"
)

// TokenHeader is the dedicated token header checked after Authorization
const TokenHeader = "X-Access-Token"

// TokenQueryParam is the query-string fallback for clients that cannot set
// headers
const TokenQueryParam = "token"

// RoleSource resolves a role reference to a role document. Implementations
// must not cache: every access check re-reads the role.
type RoleSource interface {
	RoleByID(ctx context.Context, id string) (*privilege.Role, error)
}

// Gate validates tokens, resolves roles and enforces level ranges
type Gate struct {
	tokens  *auth.Manager
	roles   RoleSource
	metrics *observability.Metrics

	// disabled skips token verification and synthesizes a fixed
	// administrator principal. Development mode only.
	disabled bool
}

// New creates a gate. A nil metrics disables failure counters.
func New(tokens *auth.Manager, roles RoleSource, metrics *observability.Metrics) *Gate {
	return &Gate{tokens: tokens, roles: roles, metrics: metrics}
}

// Disable turns off authentication. Development mode only: every request is
// treated as the built-in administrator.
func (g *Gate) Disable() {
	g.disabled = true
}

// ExtractToken pulls a bearer token from the Authorization header, the
// dedicated token header, or the query string
func ExtractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	if token := r.Header.Get(TokenHeader); token != "" {
		return token
	}
	return r.URL.Query().Get(TokenQueryParam)
}

// Authenticate resolves the request's principal. With authentication
// disabled a fixed administrator principal is synthesized instead of
// verifying a token.
func (g *Gate) Authenticate(r *http.Request) (*auth.Principal, *Error) {
	if g.disabled {
		return &auth.Principal{
			ID:       "root",
			Username: "root",
			RoleID:   roleIDDisabled,
		}, nil
	}

	token := ExtractToken(r)
	if token == "" {
		g.countFailure("unauthenticated")
		return nil, errUnauthenticated()
	}

	principal, err := g.tokens.Verify(token)
	if err != nil {
		g.countFailure("cannot_verify")
		return nil, errCannotVerify()
	}
	return principal, nil
}

// roleIDDisabled marks the synthesized principal of disabled mode; its role
// never touches the store
const roleIDDisabled = "!disabled"

// ResolveRole looks up the principal's role. internal selects the error
// variant used when resolution happens as a side effect of another
// operation rather than a direct access check.
func (g *Gate) ResolveRole(ctx context.Context, principal *auth.Principal, internal bool) (*privilege.Role, *Error) {
	if g.disabled && principal.RoleID == roleIDDisabled {
		return privilege.AdminRole(), nil
	}

	role, err := g.roles.RoleByID(ctx, principal.RoleID)
	if err != nil || role == nil {
		g.countFailure("unknown_role")
		return nil, errUnknownRole(internal)
	}
	return role, nil
}

// Require enforces an inclusive role-level range before the handler runs
func (g *Gate) Require(minLevel, maxLevel int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, role, gateErr := g.admit(r, minLevel, maxLevel, "")
			if gateErr != nil {
				writeGateError(w, gateErr)
				return
			}
			next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), principal, role)))
		})
	}
}

// RequireSelfOr bypasses the level check when the request's target id (the
// named mux path variable) equals the principal's own id; on mismatch it
// falls through to the level check. The self check always completes before
// the level fallback is attempted.
func (g *Gate) RequireSelfOr(idParam string, minLevel, maxLevel int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, role, gateErr := g.admit(r, minLevel, maxLevel, idParam)
			if gateErr != nil {
				writeGateError(w, gateErr)
				return
			}
			next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), principal, role)))
		})
	}
}

// Public attaches a principal and role when a valid token is present but
// never rejects the request
func (g *Gate) Public() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if principal, gateErr := g.Authenticate(r); gateErr == nil {
				if role, roleErr := g.ResolveRole(ctx, principal, false); roleErr == nil {
					ctx = withCaller(ctx, principal, role)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Passthrough performs no check at all. Used when an outer handler has
// already admitted the request and an inner helper must not re-check.
func (g *Gate) Passthrough() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// admit runs the credential, role and level stages. A non-empty selfParam
// enables the self-or-level variant.
func (g *Gate) admit(r *http.Request, minLevel, maxLevel int, selfParam string) (*auth.Principal, *privilege.Role, *Error) {
	principal, gateErr := g.Authenticate(r)
	if gateErr != nil {
		return nil, nil, gateErr
	}

	role, gateErr := g.ResolveRole(r.Context(), principal, false)
	if gateErr != nil {
		return nil, nil, gateErr
	}

	if selfParam != "" {
		if targetID := mux.Vars(r)[selfParam]; targetID != "" && targetID == principal.ID {
			return principal, role, nil
		}
	}

	if role.Level < minLevel || role.Level > maxLevel {
		g.countFailure("not_authorized")
		return nil, nil, errNotAuthorized()
	}
	return principal, role, nil
}

func (g *Gate) countFailure(reason string) {
	if g.metrics != nil {
		g.metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
	}
}

func writeGateError(w http.ResponseWriter, gateErr *Error) {
	httputil.WriteAppError(w, gateErr.Status, gateErr.AppCode, gateErr.Message)
}

// Named gates against the canonical role levels

// AdminOnly admits only level 100
func (g *Gate) AdminOnly() func(http.Handler) http.Handler {
	return g.Require(privilege.LevelAdmin, privilege.LevelAdmin)
}

// ManagerOrAbove admits levels [90, 100]
func (g *Gate) ManagerOrAbove() func(http.Handler) http.Handler {
	return g.Require(privilege.LevelManager, privilege.LevelAdmin)
}

// GroupLeadOrAbove admits levels [80, 100]
func (g *Gate) GroupLeadOrAbove() func(http.Handler) http.Handler {
	return g.Require(privilege.LevelGroupLead, privilege.LevelAdmin)
}

// StaffOrAbove admits levels [70, 100]
func (g *Gate) StaffOrAbove() func(http.Handler) http.Handler {
	return g.Require(privilege.LevelStaff, privilege.LevelAdmin)
}

// CanvasserOrAbove admits levels [60, 100]
func (g *Gate) CanvasserOrAbove() func(http.Handler) http.Handler {
	return g.Require(privilege.LevelCanvasser, privilege.LevelAdmin)
}

// Authenticated admits any caller with a valid token and known role
func (g *Gate) Authenticated() func(http.Handler) http.Handler {
	return g.Require(privilege.LevelNone, privilege.LevelAdmin)
}

// SelfOrStaff admits the resource owner at any level, or staff and above
func (g *Gate) SelfOrStaff(idParam string) func(http.Handler) http.Handler {
	return g.RequireSelfOr(idParam, privilege.LevelStaff, privilege.LevelAdmin)
}

// SelfOrManager admits the resource owner at any level, or managers and
// above
func (g *Gate) SelfOrManager(idParam string) func(http.Handler) http.Handler {
	return g.RequireSelfOr(idParam, privilege.LevelManager, privilege.LevelAdmin)
}

func withCaller(ctx context.Context, principal *auth.Principal, role *privilege.Role) context.Context {
	ctx = contextkeys.WithPrincipal(ctx, principal)
	return contextkeys.WithRole(ctx, role)
}

// CallerPrincipal returns the admitted principal from the request context
func CallerPrincipal(ctx context.Context) *auth.Principal {
	principal, _ := contextkeys.Principal(ctx).(*auth.Principal)
	return principal
}

// CallerRole returns the admitted caller's role from the request context
func CallerRole(ctx context.Context) *privilege.Role {
	role, _ := contextkeys.Role(ctx).(*privilege.Role)
	return role
}

// ErrRoleNotFound reports a missing role document from a RoleSource
var ErrRoleNotFound = errors.New("role not found")
