package properties

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidValue is returned when a value does not fit its definition.
var ErrInvalidValue = errors.New("invalid property value")

// Value is a stored property value, tagged like the definition it belongs to.
type Value interface {
	Kind() Kind
	isValue()
}

// NumberValue is the value of a number property.
type NumberValue float64

func (NumberValue) Kind() Kind { return KindNumber }
func (NumberValue) isValue()   {}

// LabelValue holds the selected option ids of a label property.
type LabelValue []int

func (LabelValue) Kind() Kind { return KindLabel }
func (LabelValue) isValue()   {}

func (v LabelValue) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]int(v))
}

// rawValue keeps stored JSON whose shape matches no known kind, so that it
// survives a read-modify-write cycle untouched.
type rawValue json.RawMessage

func (rawValue) Kind() Kind { return "" }
func (rawValue) isValue()   {}

func (v rawValue) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return []byte("null"), nil
	}
	return []byte(v), nil
}

// Values maps property names to values; persisted as a JSON object.
type Values map[string]Value

func (vs *Values) UnmarshalJSON(data []byte) error {
	var raws map[string]json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("decode property values: %w", err)
	}
	out := make(Values, len(raws))
	for name, raw := range raws {
		out[name] = decodeStoredValue(raw)
	}
	*vs = out
	return nil
}

func decodeStoredValue(raw json.RawMessage) Value {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return rawValue(nil)
	}
	switch c := trimmed[0]; {
	case c == '[':
		var ids []int
		if err := json.Unmarshal(trimmed, &ids); err == nil {
			return LabelValue(ids)
		}
	case c == '-' || (c >= '0' && c <= '9'):
		var f float64
		if err := json.Unmarshal(trimmed, &f); err == nil {
			return NumberValue(f)
		}
	}
	return rawValue(append(json.RawMessage(nil), trimmed...))
}

// Conforms reports whether v is structurally compatible with def.
func Conforms(def Definition, v Value) bool {
	if def == nil || v == nil || def.Kind() != v.Kind() {
		return false
	}
	label, ok := def.(LabelDefinition)
	if !ok {
		return true
	}
	ids := v.(LabelValue)
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if !label.HasOption(id) {
			return false
		}
	}
	return true
}

// Coerce validates a request payload for def and normalizes it. Numbers
// accept a JSON number or a numeric string; labels accept one option id or a
// list of option ids.
func Coerce(def Definition, raw json.RawMessage) (Value, error) {
	name := def.PropertyName()
	switch d := def.(type) {
	case NumberDefinition:
		f, err := parseNumber(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidValue, name, err)
		}
		return NumberValue(f), nil
	case LabelDefinition:
		ids, err := parseLabelIDs(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidValue, name, err)
		}
		for _, id := range ids {
			if !d.HasOption(id) {
				return nil, fmt.Errorf("%w: %q: option %d does not exist", ErrInvalidValue, name, id)
			}
		}
		return LabelValue(ids), nil
	default:
		return nil, fmt.Errorf("%w: %q: unsupported property type", ErrInvalidValue, name)
	}
}

func parseNumber(raw json.RawMessage) (float64, error) {
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, errors.New("must be a number")
	}
	switch t := v.(type) {
	case json.Number:
		n = t
	case string:
		n = json.Number(strings.TrimSpace(t))
	default:
		return 0, errors.New("must be a number")
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("must be a number")
	}
	return f, nil
}

func parseLabelIDs(raw json.RawMessage) ([]int, error) {
	var single int
	if err := json.Unmarshal(raw, &single); err == nil {
		return []int{single}, nil
	}
	var many []int
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, errors.New("must be an option id or a list of option ids")
	}
	if len(many) == 0 {
		return nil, errors.New("must select at least one option")
	}
	seen := make(map[int]struct{}, len(many))
	ids := make([]int, 0, len(many))
	for _, id := range many {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// Effective returns the values that conform to a current definition. Values
// left behind by a removed or retyped definition are ignored.
func (vs Values) Effective(defs Definitions) Values {
	out := make(Values, len(vs))
	for name, v := range vs {
		if def, _, ok := defs.Find(name); ok && Conforms(def, v) {
			out[name] = v
		}
	}
	return out
}

// Orphans lists, sorted, the names whose values no current definition accepts.
func (vs Values) Orphans(defs Definitions) []string {
	var names []string
	for name, v := range vs {
		if def, _, ok := defs.Find(name); !ok || !Conforms(def, v) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Apply validates patch against defs and returns the merged values. A JSON
// null clears the value.
func (vs Values) Apply(defs Definitions, patch map[string]json.RawMessage) (Values, error) {
	out := make(Values, len(vs)+len(patch))
	for name, v := range vs {
		out[name] = v
	}
	for name, raw := range patch {
		def, _, ok := defs.Find(name)
		if !ok {
			return vs, fmt.Errorf("%w: %q is not a defined property", ErrInvalidValue, name)
		}
		if isNull(raw) {
			delete(out, name)
			continue
		}
		v, err := Coerce(def, raw)
		if err != nil {
			return vs, err
		}
		out[name] = v
	}
	return out, nil
}

// LocalProperty is an item-scoped definition together with its value.
type LocalProperty struct {
	Definition Definition
	Value      Value
}

func (p LocalProperty) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Definition Definition `json:"definition"`
		Value      Value      `json:"value"`
	}{p.Definition, p.Value})
}

func (p *LocalProperty) UnmarshalJSON(data []byte) error {
	var raw struct {
		Definition json.RawMessage `json:"definition"`
		Value      json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode local property: %w", err)
	}
	def, err := decodeDefinition(raw.Definition)
	if err != nil {
		return err
	}
	p.Definition = def
	p.Value = decodeStoredValue(raw.Value)
	return nil
}

// LocalProperties maps names to item-scoped properties.
type LocalProperties map[string]LocalProperty

// ParseLocalProperty validates a {"definition": ..., "value": ...} document.
func ParseLocalProperty(name string, doc []byte) (LocalProperty, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(doc, &raw); err != nil || raw == nil {
		return LocalProperty{}, NewSchemaError(ErrInvalidDefinition, name, "must be a JSON object")
	}
	for key := range raw {
		if key != "definition" && key != "value" {
			return LocalProperty{}, NewSchemaError(ErrInvalidDefinition, name+"."+key, "additional property not allowed")
		}
	}
	defDoc, ok := raw["definition"]
	if !ok {
		return LocalProperty{}, NewSchemaError(ErrInvalidDefinition, name+".definition", "is required")
	}
	def, err := Validate(defDoc)
	if err != nil {
		return LocalProperty{}, err
	}
	if def.PropertyName() != name {
		return LocalProperty{}, NewSchemaError(ErrInvalidDefinition, name+".definition.name", fmt.Sprintf("must equal %q", name))
	}
	valueDoc, ok := raw["value"]
	if !ok || isNull(valueDoc) {
		return LocalProperty{Definition: def}, nil
	}
	v, err := Coerce(def, valueDoc)
	if err != nil {
		return LocalProperty{}, err
	}
	return LocalProperty{Definition: def, Value: v}, nil
}

// Apply validates patch entries as local properties; a JSON null removes one.
func (ps LocalProperties) Apply(patch map[string]json.RawMessage) (LocalProperties, error) {
	out := make(LocalProperties, len(ps)+len(patch))
	for name, p := range ps {
		out[name] = p
	}
	for name, raw := range patch {
		if isNull(raw) {
			delete(out, name)
			continue
		}
		p, err := ParseLocalProperty(name, raw)
		if err != nil {
			return ps, err
		}
		out[name] = p
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
