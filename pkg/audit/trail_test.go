package audit

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencanvass/canvassd/pkg/observability"
	"github.com/opencanvass/canvassd/pkg/store"
)

func newTestTrail(t *testing.T) (*StoreTrail, store.Store) {
	t.Helper()
	st := store.NewMemory()
	log := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return NewStoreTrail(st, log), st
}

func TestStoreTrailRecordPersistsEvent(t *testing.T) {
	trail, st := newTestTrail(t)
	ctx := context.Background()

	err := trail.Record(ctx, Event{
		Type:       EventTypeDataCreate,
		Status:     EventStatusSuccess,
		Principal:  "u1",
		Username:   "ada",
		Resource:   "people",
		Method:     "POST",
		Path:       "/people",
		StatusCode: 201,
	})
	require.NoError(t, err)

	docs, err := st.Collection(Collection).Find(ctx, store.Filter{}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc := docs[0]
	assert.Equal(t, "data.create", doc["type"])
	assert.Equal(t, "success", doc["status"])
	assert.Equal(t, "u1", doc["principal"])
	assert.Equal(t, "ada", doc["username"])
	assert.Equal(t, "people", doc["resource"])
	assert.Equal(t, float64(201), doc["statusCode"])
	assert.NotEmpty(t, doc.ID())
	assert.NotZero(t, doc["recordedAt"])

	// Empty optional fields are not stored at all
	_, hasDetail := doc["detail"]
	assert.False(t, hasDetail)
	_, hasResourceID := doc["resourceId"]
	assert.False(t, hasResourceID)
}

func TestStoreTrailPruneRemovesOldEvents(t *testing.T) {
	trail, st := newTestTrail(t)
	ctx := context.Background()

	require.NoError(t, trail.Record(ctx, Event{Type: EventTypeDataDelete, Status: EventStatusSuccess}))

	// Backdate one event past the cutoff
	old := store.Document{
		"type":       string(EventTypeDataCreate),
		"status":     string(EventStatusSuccess),
		"recordedAt": float64(time.Now().Add(-48 * time.Hour).Unix()),
	}
	_, err := st.Collection(Collection).Insert(ctx, old)
	require.NoError(t, err)

	pruned, err := trail.Prune(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	docs, err := st.Collection(Collection).Find(ctx, store.Filter{}, nil)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, "data.delete", docs[0]["type"])
}

func TestNopTrailDiscards(t *testing.T) {
	var trail Trail = NopTrail{}
	assert.NoError(t, trail.Record(context.Background(), Event{Type: EventTypeAuthLogin}))
}
