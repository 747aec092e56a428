package properties

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusLabel(options ...LabelOption) LabelDefinition {
	return LabelDefinition{Name: "status", Options: options}
}

func TestUpsert_AppendsNewDefinition(t *testing.T) {
	defs := Definitions{NumberDefinition{Name: "points"}}

	out, err := defs.Upsert(statusLabel(LabelOption{ID: 1, Name: "Todo", Color: ColorGray}))
	require.NoError(t, err)
	assert.Equal(t, []string{"points", "status"}, out.Names())
	assert.Len(t, defs, 1, "receiver must not be mutated")
}

func TestUpsert_ReplacesInPlace(t *testing.T) {
	defs := Definitions{
		statusLabel(LabelOption{ID: 1, Name: "Todo", Color: ColorGray}),
		NumberDefinition{Name: "points"},
	}
	updated := statusLabel(
		LabelOption{ID: 1, Name: "Todo", Color: ColorGray},
		LabelOption{ID: 2, Name: "Done", Color: ColorGreen},
	)

	out, err := defs.Upsert(updated)
	require.NoError(t, err)
	assert.Equal(t, []string{"status", "points"}, out.Names())
	assert.Equal(t, updated, out[0])
	assert.Len(t, defs[0].(LabelDefinition).Options, 1)
}

func TestUpsert_TypeConflict(t *testing.T) {
	defs := Definitions{NumberDefinition{Name: "points"}}

	out, err := defs.Upsert(LabelDefinition{Name: "points", Options: []LabelOption{{ID: 1, Name: "a", Color: ColorRed}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTypeConflict))
	assert.Equal(t, defs, out)
	assert.Equal(t, Definitions{NumberDefinition{Name: "points"}}, defs)
}

func TestUpsertDocument_InvalidLeavesScope(t *testing.T) {
	defs := Definitions{NumberDefinition{Name: "points"}}

	out, def, err := defs.UpsertDocument([]byte(`{"type":"number","name":"x","extra":true}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidDefinition))
	assert.Nil(t, def)
	assert.Equal(t, defs, out)
}

func TestRemove(t *testing.T) {
	defs := Definitions{NumberDefinition{Name: "points"}, NumberDefinition{Name: "hours"}}

	out, removed := defs.Remove("points")
	assert.True(t, removed)
	assert.Equal(t, []string{"hours"}, out.Names())

	same, removed := out.Remove("missing")
	assert.False(t, removed)
	assert.Equal(t, out, same)
}

func TestDefinitions_JSONRoundTrip(t *testing.T) {
	defs := Definitions{
		statusLabel(LabelOption{ID: 1, Name: "Todo", Color: ColorGray}),
		NumberDefinition{Name: "points"},
	}

	data, err := json.Marshal(defs)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"type":"label","name":"status","options":[{"id":1,"name":"Todo","color":"gray"}]},
		{"type":"number","name":"points"}
	]`, string(data))

	var decoded Definitions
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, defs, decoded)
}

func TestDefinitions_UnmarshalSkipsUnknownKinds(t *testing.T) {
	var decoded Definitions
	require.NoError(t, json.Unmarshal([]byte(`[{"type":"date","name":"due"},{"type":"number","name":"points"}]`), &decoded))
	assert.Equal(t, Definitions{NumberDefinition{Name: "points"}}, decoded)
}

func genDefinition() gopter.Gen {
	names := []string{"points", "status", "estimate", "priority"}
	name := gen.IntRange(0, len(names)-1).Map(func(i int) string { return names[i] })
	number := name.Map(func(n string) Definition { return NumberDefinition{Name: n} })
	label := gopter.CombineGens(name, gen.IntRange(0, 3), gen.IntRange(0, len(Colors)-1)).Map(func(vs []interface{}) Definition {
		options := make([]LabelOption, vs[1].(int))
		for i := range options {
			options[i] = LabelOption{ID: i + 1, Name: "opt", Color: Colors[vs[2].(int)]}
		}
		return LabelDefinition{Name: vs[0].(string), Options: options}
	})
	return gen.OneGenOf(number, label)
}

func genDefinitions() gopter.Gen {
	return gen.SliceOf(genDefinition()).Map(func(items []Definition) Definitions {
		var defs Definitions
		for _, d := range items {
			if next, err := defs.Upsert(d); err == nil {
				defs = next
			}
		}
		return defs
	})
}

func TestProperty_UpsertIdempotent(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("upserting the same definition twice equals upserting once", prop.ForAll(
		func(defs Definitions, def Definition) bool {
			once, err := defs.Upsert(def)
			if err != nil {
				return errors.Is(err, ErrTypeConflict)
			}
			twice, err := once.Upsert(def)
			if err != nil {
				return false
			}
			a, _ := json.Marshal(once)
			b, _ := json.Marshal(twice)
			return string(a) == string(b)
		},
		genDefinitions(),
		genDefinition(),
	))

	properties.TestingRun(t)
}

func TestProperty_TypeConflictLeavesScopeUnchanged(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("a retyped name is rejected and the scope is unchanged", prop.ForAll(
		func(defs Definitions, def Definition) bool {
			before, _ := json.Marshal(defs)
			out, err := defs.Upsert(def)
			existing, _, found := defs.Find(def.PropertyName())
			after, _ := json.Marshal(out)
			original, _ := json.Marshal(defs)

			if found && existing.Kind() != def.Kind() {
				return errors.Is(err, ErrTypeConflict) && string(before) == string(after) && string(before) == string(original)
			}
			return err == nil
		},
		genDefinitions(),
		genDefinition(),
	))

	properties.TestingRun(t)
}

func TestProperty_RemoveUnknownIsNoop(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("removing an absent name leaves the list unchanged", prop.ForAll(
		func(defs Definitions) bool {
			out, removed := defs.Remove("not-a-property")
			a, _ := json.Marshal(defs)
			b, _ := json.Marshal(out)
			return !removed && string(a) == string(b)
		},
		genDefinitions(),
	))

	properties.TestingRun(t)
}
