package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencanvass/canvassd/pkg/auth"
	"github.com/opencanvass/canvassd/pkg/gate"
	"github.com/opencanvass/canvassd/pkg/httputil"
	"github.com/opencanvass/canvassd/pkg/observability"
	"github.com/opencanvass/canvassd/pkg/privilege"
	"github.com/opencanvass/canvassd/pkg/schema"
	"github.com/opencanvass/canvassd/pkg/store"
)

type testEnv struct {
	server *Server
	store  store.Store
	tokens *auth.Manager

	adminToken     string
	canvasserToken string
	canvasserID    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()

	roleIDs := make(map[int]string)
	roles := st.Collection(schema.CollRoles)
	for _, role := range privilege.DefaultRoles() {
		doc, err := roles.Insert(ctx, role.ToDocument())
		require.NoError(t, err)
		roleIDs[role.Level] = doc.ID()
	}

	users := st.Collection(schema.CollUsers)
	admin, err := users.Insert(ctx, store.Document{
		"username":     "admin",
		"passwordHash": auth.HashSecret("admin-pass"),
		"role":         roleIDs[privilege.LevelAdmin],
	})
	require.NoError(t, err)
	canvasser, err := users.Insert(ctx, store.Document{
		"username":     "carol",
		"passwordHash": auth.HashSecret("carol-pass"),
		"role":         roleIDs[privilege.LevelCanvasser],
	})
	require.NoError(t, err)

	tokens := auth.NewManager("test-secret", time.Hour, time.Hour)
	g := gate.New(tokens, gate.NewStoreRoleSource(st), nil)

	server := NewServer(Options{
		Store:    st,
		Registry: schema.BuildRegistry(),
		Gate:     g,
		Tokens:   tokens,
		Logger:   observability.NewLogger(observability.ErrorLevel, io.Discard),
	})

	sign := func(doc store.Document, roleID string) string {
		token, err := tokens.Sign(auth.Principal{
			ID:       doc.ID(),
			Username: doc["username"].(string),
			RoleID:   roleID,
		})
		require.NoError(t, err)
		return token
	}

	return &testEnv{
		server:         server,
		store:          st,
		tokens:         tokens,
		adminToken:     sign(admin, roleIDs[privilege.LevelAdmin]),
		canvasserToken: sign(canvasser, roleIDs[privilege.LevelCanvasser]),
		canvasserID:    canvasser.ID(),
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	r := httptest.NewRequest(method, path, reader)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, r)
	return rec
}

func decodeDocs(t *testing.T, rec *httptest.ResponseRecorder) []store.Document {
	t.Helper()
	var docs []store.Document
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&docs))
	return docs
}

func decodeDoc(t *testing.T, rec *httptest.ResponseRecorder) store.Document {
	t.Helper()
	var doc store.Document
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&doc))
	return doc
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorEnvelope {
	t.Helper()
	var envelope httputil.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	return envelope
}

func TestHealthIsPublic(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, "GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListRequiresToken(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, "GET", "/canvasses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, gate.CodeUnauthenticated, decodeError(t, rec).Error.AppCode)
}

func TestListEmptyCollectionIsNoContent(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, "GET", "/canvasses", e.adminToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCreateAndListWithFieldSelection(t *testing.T) {
	e := newTestEnv(t)

	for _, body := range []store.Document{
		{"name": "spring", "status": "active"},
		{"name": "summer", "status": "active"},
		{"name": "winter", "status": "done"},
	} {
		rec := e.do(t, "POST", "/canvasses", e.adminToken, body)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := e.do(t, "GET", "/canvasses?status=active&fields=name%20status", e.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	docs := decodeDocs(t, rec)
	require.Len(t, docs, 2)
	for _, doc := range docs {
		assert.NotEmpty(t, doc.ID())
		assert.Contains(t, doc, "name")
		assert.Contains(t, doc, "status")
		assert.NotContains(t, doc, "createdAt")
		assert.NotContains(t, doc, "rev")
	}
}

func TestListBadQueryIsCombinedError(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "GET", "/people?age=abc&nosuch=x", e.adminToken, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	message := decodeError(t, rec).Message
	assert.Contains(t, message, `invalid numeric value "abc"`)
	assert.Contains(t, message, `unknown field "nosuch"`)
}

func TestListResolvesAcrossCollections(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	canvass, err := e.store.Collection(schema.CollCanvasses).Insert(ctx,
		store.Document{"name": "spring", "status": "active"})
	require.NoError(t, err)
	other, err := e.store.Collection(schema.CollCanvasses).Insert(ctx,
		store.Document{"name": "summer", "status": "active"})
	require.NoError(t, err)

	_, err = e.store.Collection(schema.CollAssignments).Insert(ctx,
		store.Document{"ward": "north", store.FieldOwner: canvass.ID()})
	require.NoError(t, err)

	rec := e.do(t, "GET", "/canvasses?ward=north", e.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	docs := decodeDocs(t, rec)
	require.Len(t, docs, 1)
	assert.Equal(t, canvass.ID(), docs[0].ID())
	assert.NotEqual(t, other.ID(), docs[0].ID())
}

func TestGetUnknownIdentifier(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "GET", "/canvasses/nope", e.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Unknown canvass identifier", decodeError(t, rec).Message)
}

func TestCreateRejectsUnknownFields(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "POST", "/canvasses", e.adminToken,
		store.Document{"name": "spring", "bogus": 1, "extra": 2})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown fields: bogus, extra", decodeError(t, rec).Message)
}

func TestCreateUniqueUsernameConflict(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "POST", "/users", e.adminToken,
		store.Document{"username": "admin", "email": "dup@example.org"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, `username "admin" is already taken`)
}

func TestUserResponsesConcealCredentials(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "GET", "/users", e.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, doc := range decodeDocs(t, rec) {
		assert.NotContains(t, doc, "passwordHash")
	}

	rec = e.do(t, "GET", "/users/"+e.canvasserID, e.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, decodeDoc(t, rec), "passwordHash")
}

func TestOwnScopeUpdateChecksOwnership(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	results := e.store.Collection(schema.CollResults)
	mine, err := results.Insert(ctx, store.Document{
		"response":       "yes",
		store.FieldOwner: e.canvasserID,
	})
	require.NoError(t, err)
	theirs, err := results.Insert(ctx, store.Document{
		"response":       "no",
		store.FieldOwner: "someone-else",
	})
	require.NoError(t, err)

	rec := e.do(t, "PUT", "/results/"+mine.ID(), e.canvasserToken,
		store.Document{"response": "maybe"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "maybe", decodeDoc(t, rec)["response"])

	rec = e.do(t, "PUT", "/results/"+theirs.ID(), e.canvasserToken,
		store.Document{"response": "maybe"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, gate.CodeNotOwner, decodeError(t, rec).Error.AppCode)
}

func TestOwnScopeCreateForcesOwner(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "POST", "/results", e.canvasserToken, store.Document{
		"response":       "yes",
		store.FieldOwner: "someone-else",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, e.canvasserID, decodeDoc(t, rec).Owner())
}

func TestDeleteWithoutCapability(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	party, err := e.store.Collection(schema.CollParties).Insert(ctx,
		store.Document{"name": "Greens"})
	require.NoError(t, err)

	// Canvassers hold read-only masks on parties
	rec := e.do(t, "DELETE", "/parties/"+party.ID(), e.canvasserToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, gate.CodeNotAuthorized, decodeError(t, rec).Error.AppCode)

	rec = e.do(t, "DELETE", "/parties/"+party.ID(), e.adminToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestBatchCreateRequiresBatchCapability(t *testing.T) {
	e := newTestEnv(t)
	batch := []store.Document{
		{"firstname": "Ada"},
		{"firstname": "Grace"},
	}

	rec := e.do(t, "POST", "/people/batch", e.canvasserToken, batch)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, gate.CodeNotAuthorized, decodeError(t, rec).Error.AppCode)

	rec = e.do(t, "POST", "/people/batch", e.adminToken, batch)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, decodeDocs(t, rec), 2)
}

func TestBatchCreateRejectsInvalidElement(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "POST", "/people/batch", e.adminToken, []store.Document{
		{"firstname": "Ada"},
		{"bogus": true},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "element 1")

	// Nothing was inserted
	rec = e.do(t, "GET", "/people", e.adminToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRolesRequireManagerLevel(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "GET", "/roles", e.canvasserToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, "GET", "/roles", e.adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginIssuesUsableToken(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "POST", "/auth/login", "", loginRequest{
		Username: "carol",
		Password: "carol-pass",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.NotContains(t, resp.User, "passwordHash")

	rec = e.do(t, "GET", "/auth/whoami", resp.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var whoami struct {
		Principal auth.Principal `json:"principal"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&whoami))
	assert.Equal(t, "carol", whoami.Principal.Username)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	e := newTestEnv(t)

	for _, body := range []loginRequest{
		{Username: "carol", Password: "wrong"},
		{Username: "nobody", Password: "x"},
	} {
		rec := e.do(t, "POST", "/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestTokenQueryParamIsNotAFilter(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.store.Collection(schema.CollCanvasses).Insert(ctx,
		store.Document{"name": "spring", "status": "active"})
	require.NoError(t, err)

	// Token arrives via the query string; it must be stripped before the
	// query decoder sees the parameters
	rec := e.do(t, "GET", "/canvasses?token="+e.adminToken, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
