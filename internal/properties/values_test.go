package properties

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDefinitions = Definitions{
	NumberDefinition{Name: "points"},
	LabelDefinition{Name: "status", Options: []LabelOption{
		{ID: 1, Name: "Todo", Color: ColorGray},
		{ID: 2, Name: "Doing", Color: ColorBlue},
		{ID: 3, Name: "Done", Color: ColorGreen},
	}},
}

func TestCoerce_Number(t *testing.T) {
	def := NumberDefinition{Name: "points"}

	tests := []struct {
		raw  string
		want NumberValue
	}{
		{`3`, 3},
		{`-1.5`, -1.5},
		{`"42"`, 42},
		{`" 2.5 "`, 2.5},
	}
	for _, tt := range tests {
		v, err := Coerce(def, json.RawMessage(tt.raw))
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, v)
	}

	for _, raw := range []string{`"abc"`, `true`, `[1]`, `{}`, `"NaN"`} {
		_, err := Coerce(def, json.RawMessage(raw))
		assert.True(t, errors.Is(err, ErrInvalidValue), raw)
	}
}

func TestCoerce_Label(t *testing.T) {
	def := testDefinitions[1]

	v, err := Coerce(def, json.RawMessage(`2`))
	require.NoError(t, err)
	assert.Equal(t, LabelValue{2}, v)

	v, err = Coerce(def, json.RawMessage(`[3,1,3]`))
	require.NoError(t, err)
	assert.Equal(t, LabelValue{3, 1}, v)

	for _, raw := range []string{`[]`, `9`, `[1,9]`, `"1"`, `1.5`} {
		_, err := Coerce(def, json.RawMessage(raw))
		assert.True(t, errors.Is(err, ErrInvalidValue), raw)
	}
}

func TestValues_UnmarshalByShape(t *testing.T) {
	var vs Values
	require.NoError(t, json.Unmarshal([]byte(`{"points":5,"status":[1,2],"legacy":"text"}`), &vs))

	assert.Equal(t, NumberValue(5), vs["points"])
	assert.Equal(t, LabelValue{1, 2}, vs["status"])
	assert.Equal(t, Kind(""), vs["legacy"].Kind())

	data, err := json.Marshal(vs)
	require.NoError(t, err)
	assert.JSONEq(t, `{"points":5,"status":[1,2],"legacy":"text"}`, string(data))
}

func TestValues_EffectiveIgnoresOrphans(t *testing.T) {
	vs := Values{
		"points":  NumberValue(3),
		"status":  LabelValue{1},
		"removed": NumberValue(1),
		"retyped": LabelValue{1},
	}
	defs := append(Definitions{}, testDefinitions...)
	defs = append(defs, NumberDefinition{Name: "retyped"})

	effective := vs.Effective(defs)
	assert.Equal(t, Values{"points": NumberValue(3), "status": LabelValue{1}}, effective)
	assert.Equal(t, []string{"removed", "retyped"}, vs.Orphans(defs))
	assert.Len(t, vs, 4, "stored values are never purged by readers")
}

func TestValues_EffectiveDropsRemovedOption(t *testing.T) {
	vs := Values{"status": LabelValue{1, 4}}
	assert.Empty(t, vs.Effective(testDefinitions))
}

func TestValues_Apply(t *testing.T) {
	vs := Values{"points": NumberValue(1), "status": LabelValue{1}}

	out, err := vs.Apply(testDefinitions, map[string]json.RawMessage{
		"points": json.RawMessage(`"8"`),
		"status": json.RawMessage(`null`),
	})
	require.NoError(t, err)
	assert.Equal(t, Values{"points": NumberValue(8)}, out)
	assert.Equal(t, NumberValue(1), vs["points"])

	_, err = vs.Apply(testDefinitions, map[string]json.RawMessage{"unknown": json.RawMessage(`1`)})
	assert.True(t, errors.Is(err, ErrInvalidValue))

	_, err = vs.Apply(testDefinitions, map[string]json.RawMessage{"status": json.RawMessage(`[7]`)})
	assert.True(t, errors.Is(err, ErrInvalidValue))
}

func TestParseLocalProperty(t *testing.T) {
	p, err := ParseLocalProperty("effort", []byte(`{"definition":{"type":"number","name":"effort"},"value":"3"}`))
	require.NoError(t, err)
	assert.Equal(t, NumberDefinition{Name: "effort"}, p.Definition)
	assert.Equal(t, NumberValue(3), p.Value)

	_, err = ParseLocalProperty("effort", []byte(`{"definition":{"type":"number","name":"other"}}`))
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "effort.definition.name", schemaErr.Path)

	_, err = ParseLocalProperty("effort", []byte(`{"definition":{"type":"number","name":"effort"},"extra":1}`))
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "effort.extra", schemaErr.Path)
}

func TestLocalProperties_JSONRoundTrip(t *testing.T) {
	ps := LocalProperties{
		"tag": {
			Definition: LabelDefinition{Name: "tag", Options: []LabelOption{{ID: 1, Name: "x", Color: ColorPink}}},
			Value:      LabelValue{1},
		},
	}

	data, err := json.Marshal(ps)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tag":{"definition":{"type":"label","name":"tag","options":[{"id":1,"name":"x","color":"pink"}]},"value":[1]}}`, string(data))

	var decoded LocalProperties
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ps, decoded)

	out, err := decoded.Apply(map[string]json.RawMessage{"tag": json.RawMessage(`null`)})
	require.NoError(t, err)
	assert.Empty(t, out)
}
