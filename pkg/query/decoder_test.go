package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencanvass/canvassd/pkg/schema"
	"github.com/opencanvass/canvassd/pkg/store"
)

func registry(t *testing.T) *schema.Registry {
	t.Helper()
	return schema.BuildRegistry()
}

func onlyCond(t *testing.T, dec *Decoded) store.Cond {
	t.Helper()
	require.Len(t, dec.Filter.Conds, 1)
	return dec.Filter.Conds[0]
}

func TestDecodeTextField(t *testing.T) {
	reg := registry(t)

	dec, err := Decode(map[string]string{"firstname": "ada"}, reg.Person, true)
	require.NoError(t, err)

	cond := onlyCond(t, dec)
	assert.Equal(t, store.Cond{Field: "firstname", Op: store.OpContains, Value: "ada"}, cond)
	require.Len(t, dec.Units, 1)
	assert.Equal(t, UnitField, dec.Units[0].Kind)
	assert.Same(t, reg.Person, dec.FieldNodes["firstname"])
	assert.False(t, dec.NeedsResolution(reg.Person))
}

func TestDecodeTextOperators(t *testing.T) {
	reg := registry(t)

	tests := []struct {
		raw  string
		want store.Cond
	}{
		{"ada", store.Cond{Field: "firstname", Op: store.OpContains, Value: "ada"}},
		{"!ada", store.Cond{Field: "firstname", Op: store.OpNotContains, Value: "ada"}},
		{"~", store.Cond{Field: "firstname", Op: store.OpBlank}},
		{"!~", store.Cond{Field: "firstname", Op: store.OpNotBlank}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			dec, err := Decode(map[string]string{"firstname": tt.raw}, reg.Person, true)
			require.NoError(t, err)
			assert.Equal(t, tt.want, onlyCond(t, dec))
		})
	}
}

func TestDecodeNumericOperators(t *testing.T) {
	reg := registry(t)

	tests := []struct {
		raw   string
		op    store.Op
		value float64
	}{
		{"21", store.OpEq, 21},
		{"!21", store.OpNe, 21},
		{">21", store.OpGt, 21},
		{">=21", store.OpGte, 21},
		{"<21", store.OpLt, 21},
		{"<=21", store.OpLte, 21},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			dec, err := Decode(map[string]string{"age": tt.raw}, reg.Person, true)
			require.NoError(t, err)
			assert.Equal(t, store.Cond{Field: "age", Op: tt.op, Value: tt.value}, onlyCond(t, dec))
		})
	}
}

func TestDecodeNumericRejectsNonNumbers(t *testing.T) {
	reg := registry(t)

	_, err := Decode(map[string]string{"age": ">=abc"}, reg.Person, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid numeric value ">=abc" for field "age"`)
}

func TestDecodeFieldsSelection(t *testing.T) {
	reg := registry(t)

	dec, err := Decode(map[string]string{
		"fields": "name status",
		"status": "active",
	}, reg.Canvass, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "status"}, dec.Select)
	assert.Equal(t, store.Cond{Field: "status", Op: store.OpContains, Value: "active"}, onlyCond(t, dec))
}

func TestDecodeFieldsSelectionIsRootOnly(t *testing.T) {
	reg := registry(t)

	// "ward" belongs to the assignment entity, not the canvass itself;
	// valid as a filter, invalid as a selection
	_, err := Decode(map[string]string{"fields": "ward"}, reg.Canvass, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown field "ward" in "fields"`)

	_, err = Decode(map[string]string{"ward": "north"}, reg.Canvass, true)
	assert.NoError(t, err)
}

func TestDecodeSubtreeFieldNeedsResolution(t *testing.T) {
	reg := registry(t)

	dec, err := Decode(map[string]string{"ward": "north"}, reg.Canvass, true)
	require.NoError(t, err)

	assert.True(t, dec.NeedsResolution(reg.Canvass))
	node := dec.FieldNodes["ward"]
	require.NotNil(t, node)
	assert.Equal(t, "canvassAssignment", node.Model.Name)
}

func TestDecodeOrJoin(t *testing.T) {
	reg := registry(t)

	dec, err := Decode(map[string]string{"firstname|lastname": "smith"}, reg.Person, true)
	require.NoError(t, err)

	require.Len(t, dec.Filter.Groups, 1)
	group := dec.Filter.Groups[0]
	assert.Equal(t, store.GroupOr, group.Op)
	require.Len(t, group.Clauses, 2)

	require.Len(t, dec.Units, 1)
	assert.Equal(t, UnitOr, dec.Units[0].Kind)
	assert.Len(t, dec.Units[0].Members, 2)
}

func TestDecodeAndJoin(t *testing.T) {
	reg := registry(t)

	dec, err := Decode(map[string]string{"firstname+lastname": "a"}, reg.Person, true)
	require.NoError(t, err)

	require.Len(t, dec.Filter.Groups, 1)
	assert.Equal(t, store.GroupAnd, dec.Filter.Groups[0].Op)
	require.Len(t, dec.Units, 1)
	assert.Equal(t, UnitAnd, dec.Units[0].Kind)
}

func TestDecodeJoinRejectsMixedSeparators(t *testing.T) {
	reg := registry(t)

	_, err := Decode(map[string]string{"firstname|lastname+gender": "x"}, reg.Person, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot mix")
}

func TestDecodeJoinRejectsModelMismatch(t *testing.T) {
	reg := registry(t)

	// firstname is on the person entity, candidateName on the candidate
	// entity mounted above it
	_, err := Decode(map[string]string{"candidateName|firstname": "x"}, reg.Candidate, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fields resolve to different models")
	assert.Contains(t, err.Error(), `"candidate"`)
	assert.Contains(t, err.Error(), `"person"`)
}

func TestDecodeOrOperator(t *testing.T) {
	reg := registry(t)

	dec, err := Decode(map[string]string{"$or": "firstname=ada,age=>30"}, reg.Person, true)
	require.NoError(t, err)

	require.Len(t, dec.Filter.Groups, 1)
	group := dec.Filter.Groups[0]
	assert.Equal(t, store.GroupOr, group.Op)
	require.Len(t, group.Clauses, 2)
	assert.Equal(t, store.OpContains, group.Clauses[0].Conds[0].Op)
	assert.Equal(t, store.OpGt, group.Clauses[1].Conds[0].Op)

	require.Len(t, dec.Units, 1)
	assert.Equal(t, UnitOr, dec.Units[0].Kind)
	assert.Len(t, dec.Units[0].Members, 2, "logical members get node tracking")
}

func TestDecodeNorIsRootOnlyResidual(t *testing.T) {
	reg := registry(t)

	dec, err := Decode(map[string]string{"$nor": "status=done"}, reg.Canvass, true)
	require.NoError(t, err)

	assert.Empty(t, dec.Units, "$nor produces no resolver work item")
	require.Len(t, dec.Residual.Groups, 1)
	assert.Equal(t, store.GroupNor, dec.Residual.Groups[0].Op)

	// A non-root member is rejected outright
	_, err = Decode(map[string]string{"$nor": "ward=north"}, reg.Canvass, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must belong to the root model")
}

func TestDecodeNotIsUnsupported(t *testing.T) {
	reg := registry(t)

	_, err := Decode(map[string]string{"$not": "firstname=ada"}, reg.Person, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"$not" operator is not supported`)
}

func TestDecodeCombinesAllProblems(t *testing.T) {
	reg := registry(t)

	_, err := Decode(map[string]string{
		"age":    "abc",
		"nosuch": "x",
	}, reg.Person, true)
	require.Error(t, err)

	// Both problems in one deterministic message
	assert.Equal(t,
		`invalid numeric value "abc" for field "age"; unknown field "nosuch"`,
		err.Error())
}

func TestDecodeRejectsHiddenFields(t *testing.T) {
	reg := registry(t)

	_, err := Decode(map[string]string{"passwordHash": "x"}, reg.User, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown field "passwordHash"`)
}

func TestDecodeIDFieldIsExactMatch(t *testing.T) {
	reg := registry(t)

	dec, err := Decode(map[string]string{"party": "p1"}, reg.Person, true)
	require.NoError(t, err)
	assert.Equal(t, store.Cond{Field: "party", Op: store.OpEq, Value: "p1"}, onlyCond(t, dec))
}
