package api

import (
	"net/http"

	"github.com/opencanvass/canvassd/pkg/audit"
	"github.com/opencanvass/canvassd/pkg/auth"
	"github.com/opencanvass/canvassd/pkg/contextkeys"
	"github.com/opencanvass/canvassd/pkg/gate"
	"github.com/opencanvass/canvassd/pkg/httputil"
	"github.com/opencanvass/canvassd/pkg/observability"
	"github.com/opencanvass/canvassd/pkg/schema"
	"github.com/opencanvass/canvassd/pkg/store"
)

// loginRequest is the POST /auth/login body
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Source   string `json:"source,omitempty"`
}

// loginResponse carries the issued token and its subject
type loginResponse struct {
	Token     string         `json:"token"`
	ExpiresIn int64          `json:"expiresIn"`
	User      store.Document `json:"user"`
}

// login handles POST /auth/login. Credentials are checked against the
// stored hash; a token is issued with the lifetime of the client source.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "username and password are required")
		return
	}

	source := auth.SourceWeb
	if req.Source == string(auth.SourceMobile) {
		source = auth.SourceMobile
	}

	users, err := s.store.Collection(schema.CollUsers).Find(ctx, store.Eq("username", req.Username), nil)
	if err != nil {
		httputil.WriteInternalError(w, err, s.development)
		return
	}
	if len(users) == 0 {
		// Same response as a wrong password: no username probing
		s.recordLogin(r, req.Username, "", false)
		httputil.WriteUnauthorized(w, "invalid credentials")
		return
	}

	user := users[0]
	storedHash, _ := user["passwordHash"].(string)
	if storedHash == "" || !auth.CheckSecret(req.Password, storedHash) {
		observability.FromContext(ctx).WithField("username", req.Username).Warn("failed login attempt")
		s.recordLogin(r, req.Username, user.ID(), false)
		httputil.WriteUnauthorized(w, "invalid credentials")
		return
	}

	roleID, _ := user["role"].(string)
	principal := auth.Principal{
		ID:       user.ID(),
		Username: req.Username,
		RoleID:   roleID,
		Source:   source,
	}
	token, err := s.tokens.Sign(principal)
	if err != nil {
		httputil.WriteInternalError(w, err, s.development)
		return
	}

	s.recordLogin(r, req.Username, user.ID(), true)
	httputil.WriteSuccess(w, loginResponse{
		Token:     token,
		ExpiresIn: int64(s.tokens.TTL(source).Seconds()),
		User:      conceal(user, s.registry.User),
	})
}

// recordLogin writes a login outcome to the audit trail
func (s *Server) recordLogin(r *http.Request, username, userID string, ok bool) {
	event := audit.Event{
		Type:       audit.EventTypeAuthLogin,
		Status:     audit.EventStatusSuccess,
		Principal:  userID,
		Username:   username,
		RequestID:  contextkeys.RequestID(r.Context()),
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
	}
	if !ok {
		event.Type = audit.EventTypeAuthLoginFailed
		event.Status = audit.EventStatusFailure
	}
	_ = s.trail.Record(r.Context(), event)
}

// whoami handles GET /auth/whoami, reporting the admitted caller
func (s *Server) whoami(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := gate.CallerPrincipal(ctx)
	role := gate.CallerRole(ctx)

	httputil.WriteSuccess(w, map[string]interface{}{
		"principal": principal,
		"role":      role,
	})
}
