// Package categories validates the category list of a discussion and the
// fields of individual category rows.
package categories

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yukikurage/unica-api/internal/properties"
)

var (
	// ErrInvalidCategoryList is wrapped by every SchemaError this package returns.
	ErrInvalidCategoryList = errors.New("invalid category list")
	ErrDuplicateID         = errors.New("duplicate category id")
	ErrDuplicateName       = errors.New("duplicate category name")
)

// SchemaError reports the item and field a category document violated.
type SchemaError = properties.SchemaError

// DuplicateError names the first repeated id or name in a category list.
type DuplicateError struct {
	Field string
	Value any
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate category %s: %v", e.Field, e.Value)
}

func (e *DuplicateError) Unwrap() error {
	if e.Field == "id" {
		return ErrDuplicateID
	}
	return ErrDuplicateName
}

// Category is one entry of a discussion's category list.
type Category struct {
	ID    int              `json:"id"`
	Name  string           `json:"name"`
	Color properties.Color `json:"color"`
	Emoji string           `json:"emoji,omitempty"`
}

// List is an ordered category list.
type List []Category

type itemDocument struct {
	ID    *int    `json:"id" validate:"required,min=1"`
	Name  *string `json:"name" validate:"required"`
	Color *string `json:"color" validate:"required,oneof=gray red orange yellow green teal blue cyan purple pink"`
	Emoji *string `json:"emoji"`
}

var validate = properties.NewValidator()

// Validate checks a raw category list document: an array of closed
// {id, name, color, emoji?} objects with unique ids and unique names.
func Validate(doc []byte) (List, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(doc, &items); err != nil || items == nil {
		return nil, properties.NewSchemaError(ErrInvalidCategoryList, "", "must be a JSON array")
	}

	list := make(List, 0, len(items))
	for i, raw := range items {
		item, err := decodeItem(raw)
		if err != nil {
			return nil, atIndex(i, err)
		}
		list = append(list, item)
	}

	if err := list.checkUnique(); err != nil {
		return nil, err
	}
	return list, nil
}

func decodeItem(raw json.RawMessage) (Category, error) {
	if t := bytes.TrimSpace(raw); len(t) == 0 || t[0] != '{' {
		return Category{}, properties.NewSchemaError(ErrInvalidCategoryList, "", "must be a JSON object")
	}

	var d itemDocument
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return Category{}, properties.DecodeError(ErrInvalidCategoryList, err)
	}
	if err := validate.Struct(d); err != nil {
		return Category{}, properties.SchemaErrorFrom(ErrInvalidCategoryList, err)
	}

	c := Category{ID: *d.ID, Name: *d.Name, Color: properties.Color(*d.Color)}
	if d.Emoji != nil {
		c.Emoji = *d.Emoji
	}
	return c, nil
}

func atIndex(i int, err error) error {
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		return err
	}
	path := fmt.Sprintf("[%d]", i)
	if schemaErr.Path != "" {
		path += "." + schemaErr.Path
	}
	schemaErr.Path = path
	return schemaErr
}

func (l List) checkUnique() error {
	ids := make(map[int]struct{}, len(l))
	for _, c := range l {
		if _, dup := ids[c.ID]; dup {
			return &DuplicateError{Field: "id", Value: c.ID}
		}
		ids[c.ID] = struct{}{}
	}
	names := make(map[string]struct{}, len(l))
	for _, c := range l {
		if _, dup := names[c.Name]; dup {
			return &DuplicateError{Field: "name", Value: c.Name}
		}
		names[c.Name] = struct{}{}
	}
	return nil
}

// Find returns the category with the given id.
func (l List) Find(id int) (Category, bool) {
	for _, c := range l {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}
