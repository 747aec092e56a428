package properties

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind tags a property definition and the values stored for it.
type Kind string

const (
	KindLabel  Kind = "label"
	KindNumber Kind = "number"
)

// Definition is a named, typed schema entry. The set of implementations is
// closed: LabelDefinition and NumberDefinition.
type Definition interface {
	Kind() Kind
	PropertyName() string
	isDefinition()
}

// LabelOption is one selectable choice of a label property.
type LabelOption struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color Color  `json:"color"`
}

// LabelDefinition describes a property whose values are option ids.
type LabelDefinition struct {
	Name    string        `json:"name"`
	Options []LabelOption `json:"options"`
}

func (LabelDefinition) Kind() Kind             { return KindLabel }
func (d LabelDefinition) PropertyName() string { return d.Name }
func (LabelDefinition) isDefinition()          {}

// HasOption reports whether id names one of the definition's options.
func (d LabelDefinition) HasOption(id int) bool {
	for _, opt := range d.Options {
		if opt.ID == id {
			return true
		}
	}
	return false
}

func (d LabelDefinition) MarshalJSON() ([]byte, error) {
	options := d.Options
	if options == nil {
		options = []LabelOption{}
	}
	return json.Marshal(struct {
		Type    Kind          `json:"type"`
		Name    string        `json:"name"`
		Options []LabelOption `json:"options"`
	}{KindLabel, d.Name, options})
}

// NumberDefinition describes a property holding a numeric scalar.
type NumberDefinition struct {
	Name string `json:"name"`
}

func (NumberDefinition) Kind() Kind             { return KindNumber }
func (d NumberDefinition) PropertyName() string { return d.Name }
func (NumberDefinition) isDefinition()          {}

func (d NumberDefinition) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type Kind   `json:"type"`
		Name string `json:"name"`
	}{KindNumber, d.Name})
}

// Definitions is the ordered definition list persisted on a property scope as
// a JSON array.
type Definitions []Definition

// Find returns the definition named name and its position.
func (ds Definitions) Find(name string) (Definition, int, bool) {
	for i, d := range ds {
		if d.PropertyName() == name {
			return d, i, true
		}
	}
	return nil, -1, false
}

// Names returns the definition names in order.
func (ds Definitions) Names() []string {
	names := make([]string, len(ds))
	for i, d := range ds {
		names[i] = d.PropertyName()
	}
	return names
}

// UnmarshalJSON decodes stored definitions without schema validation. Entries
// with an unknown tag are skipped so that a newer writer never breaks readers.
func (ds *Definitions) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*ds = nil
		return nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("decode property definitions: %w", err)
	}

	out := make(Definitions, 0, len(raws))
	for _, raw := range raws {
		def, err := decodeDefinition(raw)
		if err != nil {
			return err
		}
		if def != nil {
			out = append(out, def)
		}
	}
	*ds = out
	return nil
}

func decodeDefinition(raw json.RawMessage) (Definition, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode property definition: %w", err)
	}

	switch head.Type {
	case KindLabel:
		var d LabelDefinition
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode label definition: %w", err)
		}
		return d, nil
	case KindNumber:
		var d NumberDefinition
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode number definition: %w", err)
		}
		return d, nil
	default:
		return nil, nil
	}
}
