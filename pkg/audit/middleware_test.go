package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencanvass/canvassd/pkg/auth"
	"github.com/opencanvass/canvassd/pkg/contextkeys"
)

// recordingTrail captures events in memory for assertions.
type recordingTrail struct {
	mu     sync.Mutex
	events []Event
}

func (t *recordingTrail) Record(_ context.Context, event Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
	return nil
}

func (t *recordingTrail) recorded() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Event(nil), t.events...)
}

func serve(t *testing.T, trail Trail, status int, principal *auth.Principal, method, target string) {
	t.Helper()
	handler := NewMiddleware(trail).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	req := httptest.NewRequest(method, target, nil)
	if principal != nil {
		req = req.WithContext(contextkeys.WithPrincipal(req.Context(), principal))
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestMiddlewareRecordsMutations(t *testing.T) {
	trail := &recordingTrail{}
	caller := &auth.Principal{ID: "u1", Username: "ada"}

	serve(t, trail, http.StatusCreated, caller, "POST", "/people")
	serve(t, trail, http.StatusOK, caller, "PATCH", "/people/p1")
	serve(t, trail, http.StatusNoContent, caller, "DELETE", "/people/p1")
	serve(t, trail, http.StatusCreated, caller, "POST", "/people/batch")

	events := trail.recorded()
	require.Len(t, events, 4)

	assert.Equal(t, EventTypeDataCreate, events[0].Type)
	assert.Equal(t, EventStatusSuccess, events[0].Status)
	assert.Equal(t, "u1", events[0].Principal)
	assert.Equal(t, "ada", events[0].Username)
	assert.Equal(t, "people", events[0].Resource)
	assert.Empty(t, events[0].ResourceID)

	assert.Equal(t, EventTypeDataUpdate, events[1].Type)
	assert.Equal(t, "p1", events[1].ResourceID)

	assert.Equal(t, EventTypeDataDelete, events[2].Type)
	assert.Equal(t, 204, events[2].StatusCode)

	assert.Equal(t, EventTypeDataBatch, events[3].Type)
	assert.Empty(t, events[3].ResourceID)
}

func TestMiddlewareSkipsSuccessfulReads(t *testing.T) {
	trail := &recordingTrail{}
	serve(t, trail, http.StatusOK, nil, "GET", "/people")
	serve(t, trail, http.StatusNoContent, nil, "GET", "/people")
	assert.Empty(t, trail.recorded())
}

func TestMiddlewareRecordsDenials(t *testing.T) {
	trail := &recordingTrail{}
	caller := &auth.Principal{ID: "u2", Username: "bob"}

	serve(t, trail, http.StatusForbidden, caller, "GET", "/roles")
	serve(t, trail, http.StatusUnauthorized, nil, "GET", "/people")

	events := trail.recorded()
	require.Len(t, events, 2)
	assert.Equal(t, EventTypeAccessDenied, events[0].Type)
	assert.Equal(t, EventStatusDenied, events[0].Status)
	assert.Equal(t, "u2", events[0].Principal)
	assert.Equal(t, EventTypeAccessDenied, events[1].Type)
	assert.Empty(t, events[1].Principal)
}

func TestMiddlewareFailedMutationIsFailure(t *testing.T) {
	trail := &recordingTrail{}
	serve(t, trail, http.StatusConflict, &auth.Principal{ID: "u1"}, "POST", "/users")

	events := trail.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeDataCreate, events[0].Type)
	assert.Equal(t, EventStatusFailure, events[0].Status)
}

func TestMiddlewareSkipsLoginPath(t *testing.T) {
	trail := &recordingTrail{}
	serve(t, trail, http.StatusUnauthorized, nil, "POST", "/auth/login")
	assert.Empty(t, trail.recorded())
}
