package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencanvass/canvassd/pkg/schema"
	"github.com/opencanvass/canvassd/pkg/store"
)

// canvassFixture seeds three canvasses: two with a north-ward assignment
// and an "intro" survey, one with only the assignment
func canvassFixture(t *testing.T) (store.Store, *schema.Registry, []string) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	reg := schema.BuildRegistry()

	canvasses := st.Collection(schema.CollCanvasses)
	assignments := st.Collection(schema.CollAssignments)
	surveys := st.Collection(schema.CollSurveys)

	ids := make([]string, 3)
	for i, name := range []string{"spring", "summer", "autumn"} {
		doc, err := canvasses.Insert(ctx, store.Document{"name": name, "status": "active"})
		require.NoError(t, err)
		ids[i] = doc.ID()
	}

	for _, id := range ids {
		_, err := assignments.Insert(ctx, store.Document{
			"ward":           "north",
			store.FieldOwner: id,
		})
		require.NoError(t, err)
	}
	for _, id := range ids[:2] {
		_, err := surveys.Insert(ctx, store.Document{
			"title":          "intro",
			store.FieldOwner: id,
		})
		require.NoError(t, err)
	}

	return st, reg, ids
}

func execute(t *testing.T, st store.Store, root *schema.Node, params map[string]string) []store.Document {
	t.Helper()
	dec, err := Decode(params, root, true)
	require.NoError(t, err)

	docs, err := NewResolver(st, nil).Execute(context.Background(), root, dec)
	require.NoError(t, err)
	return docs
}

func docIDs(docs []store.Document) []string {
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID())
	}
	return ids
}

func TestExecuteDirectRootQuery(t *testing.T) {
	st, reg, ids := canvassFixture(t)

	docs := execute(t, st, reg.Canvass, map[string]string{"name": "spring"})
	require.Len(t, docs, 1)
	assert.Equal(t, ids[0], docs[0].ID())
}

func TestExecuteIntersectsOwnerChains(t *testing.T) {
	st, reg, ids := canvassFixture(t)

	// Three canvasses carry the assignment, two carry the survey; only
	// the common two survive the intersection
	docs := execute(t, st, reg.Canvass, map[string]string{
		"ward":  "north",
		"title": "intro",
	})
	assert.ElementsMatch(t, ids[:2], docIDs(docs))
}

func TestExecuteDisjointUnitsYieldNothing(t *testing.T) {
	st, reg, _ := canvassFixture(t)

	docs := execute(t, st, reg.Canvass, map[string]string{
		"ward":  "south",
		"title": "intro",
	})
	assert.Nil(t, docs)
}

func TestExecuteMixedRootAndSubtreeUnits(t *testing.T) {
	ctx := context.Background()
	st, reg, ids := canvassFixture(t)

	// Retire one of the surveyed canvasses; the root-field unit must
	// narrow the subtree-field results
	_, err := st.Collection(schema.CollCanvasses).Update(ctx, ids[0], store.Document{"status": "done"})
	require.NoError(t, err)

	docs := execute(t, st, reg.Canvass, map[string]string{
		"title":  "intro",
		"status": "active",
	})
	require.Len(t, docs, 1)
	assert.Equal(t, ids[1], docs[0].ID())
}

func TestExecuteNorResidualAppliesAfterResolution(t *testing.T) {
	ctx := context.Background()
	st, reg, ids := canvassFixture(t)

	_, err := st.Collection(schema.CollCanvasses).Update(ctx, ids[0], store.Document{"name": "renamed"})
	require.NoError(t, err)

	docs := execute(t, st, reg.Canvass, map[string]string{
		"title": "intro",
		"$nor":  "name=renamed",
	})
	require.Len(t, docs, 1)
	assert.Equal(t, ids[1], docs[0].ID())
}

func TestExecuteOrJoinUnionsMembers(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	reg := schema.BuildRegistry()

	people := st.Collection(schema.CollPeople)
	ada, err := people.Insert(ctx, store.Document{"firstname": "Ada", "lastname": "Lovelace"})
	require.NoError(t, err)
	_, err = people.Insert(ctx, store.Document{"firstname": "Grace", "lastname": "Hopper"})
	require.NoError(t, err)

	// Matches on either side of the OR contribute to the union
	docs := execute(t, st, reg.Person, map[string]string{"firstname|lastname": "lovelace"})
	require.Len(t, docs, 1)
	assert.Equal(t, ada.ID(), docs[0].ID())

	docs = execute(t, st, reg.Person, map[string]string{"firstname|lastname": "a"})
	assert.Len(t, docs, 2)
}

func TestExecuteSelectShapesResponse(t *testing.T) {
	st, reg, _ := canvassFixture(t)

	docs := execute(t, st, reg.Canvass, map[string]string{
		"status": "active",
		"fields": "name status",
	})
	require.Len(t, docs, 3)
	for _, doc := range docs {
		assert.NotEmpty(t, doc.ID())
		assert.Contains(t, doc, "name")
		assert.Contains(t, doc, "status")
		assert.NotContains(t, doc, store.FieldCreatedAt)
		assert.NotContains(t, doc, store.FieldRev)
	}
}

func TestExecuteDanglingOwnerIsNotARoot(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	reg := schema.BuildRegistry()

	// Assignment pointing at a canvass that no longer exists: the walk
	// terminates mid-chain and contributes nothing
	_, err := st.Collection(schema.CollAssignments).Insert(ctx, store.Document{
		"ward":           "north",
		store.FieldOwner: "gone",
	})
	require.NoError(t, err)

	docs := execute(t, st, reg.Canvass, map[string]string{"ward": "north"})
	assert.Empty(t, docs)
}
