package properties

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidDefinition is wrapped by every SchemaError.
	ErrInvalidDefinition = errors.New("invalid property definition")
	// ErrTypeConflict is returned when a definition name is reused with another type.
	ErrTypeConflict = errors.New("property already exists with different type")
)

// SchemaError reports the sub-schema a document violated. Path is a dotted
// JSON path relative to the document root, empty for the root itself.
type SchemaError struct {
	Path    string
	Message string
	base    error
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v: %s", e.base, e.Message)
	}
	return fmt.Sprintf("%v: %s: %s", e.base, e.Path, e.Message)
}

func (e *SchemaError) Unwrap() error { return e.base }

// NewSchemaError builds a SchemaError wrapping base.
func NewSchemaError(base error, path, message string) *SchemaError {
	return &SchemaError{Path: path, Message: message, base: base}
}

type labelDocument struct {
	Type    *string           `json:"type" validate:"required"`
	Name    *string           `json:"name" validate:"required,min=1"`
	Options *[]optionDocument `json:"options" validate:"required,dive"`
}

type optionDocument struct {
	ID    *int    `json:"id" validate:"required"`
	Name  *string `json:"name" validate:"required"`
	Color *string `json:"color" validate:"required,oneof=gray red orange yellow green teal blue cyan purple pink"`
}

type numberDocument struct {
	Type *string `json:"type" validate:"required"`
	Name *string `json:"name" validate:"required,min=1"`
}

var allowedKeys = map[Kind][]string{
	KindLabel:  {"type", "name", "options"},
	KindNumber: {"type", "name"},
}

var validate = NewValidator()

// NewValidator returns a validator reporting field paths by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks a raw property definition document against the closed
// label/number schema and returns the decoded definition.
func Validate(doc []byte) (Definition, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil || fields == nil {
		return nil, NewSchemaError(ErrInvalidDefinition, "", "must be a JSON object")
	}

	rawType, ok := fields["type"]
	if !ok {
		return nil, NewSchemaError(ErrInvalidDefinition, "type", "is required")
	}
	var kind Kind
	if err := json.Unmarshal(rawType, &kind); err != nil {
		return nil, NewSchemaError(ErrInvalidDefinition, "type", "must be a string")
	}
	keys, known := allowedKeys[kind]
	if !known {
		return nil, NewSchemaError(ErrInvalidDefinition, "type", "must be one of label, number")
	}
	for key := range fields {
		if !contains(keys, key) {
			return nil, NewSchemaError(ErrInvalidDefinition, key, fmt.Sprintf("additional property not allowed for %s definition", kind))
		}
	}

	switch kind {
	case KindLabel:
		var d labelDocument
		if err := decodeStrict(doc, &d); err != nil {
			return nil, err
		}
		if err := validate.Struct(d); err != nil {
			return nil, schemaErrorFrom(ErrInvalidDefinition, err)
		}
		options := make([]LabelOption, len(*d.Options))
		for i, o := range *d.Options {
			options[i] = LabelOption{ID: *o.ID, Name: *o.Name, Color: Color(*o.Color)}
		}
		return LabelDefinition{Name: *d.Name, Options: options}, nil
	default:
		var d numberDocument
		if err := decodeStrict(doc, &d); err != nil {
			return nil, err
		}
		if err := validate.Struct(d); err != nil {
			return nil, schemaErrorFrom(ErrInvalidDefinition, err)
		}
		return NumberDefinition{Name: *d.Name}, nil
	}
}

func decodeStrict(doc []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return decodeError(ErrInvalidDefinition, err)
	}
	return nil
}

// decodeError turns encoding/json failures into a SchemaError with a path.
func decodeError(base error, err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return NewSchemaError(base, typeErr.Field, fmt.Sprintf("must be of type %s", jsonTypeName(typeErr.Type)))
	}
	msg := err.Error()
	if field, ok := strings.CutPrefix(msg, "json: unknown field "); ok {
		return NewSchemaError(base, strings.Trim(field, `"`), "additional property not allowed")
	}
	return NewSchemaError(base, "", msg)
}

// DecodeError is decodeError for sibling validators sharing the palette.
func DecodeError(base error, err error) error { return decodeError(base, err) }

// SchemaErrorFrom converts the first validator failure into a SchemaError.
func SchemaErrorFrom(base error, err error) error { return schemaErrorFrom(base, err) }

func schemaErrorFrom(base error, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return NewSchemaError(base, "", err.Error())
	}
	fe := verrs[0]
	path := fe.Namespace()
	if i := strings.IndexByte(path, '.'); i >= 0 {
		path = path[i+1:]
	}

	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "min":
		if jsonTypeName(fe.Type()) == "integer" {
			msg = fmt.Sprintf("must be at least %s", fe.Param())
		} else {
			msg = "must not be empty"
		}
	case "max":
		msg = fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		msg = fmt.Sprintf("must be one of %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		msg = fmt.Sprintf("failed %q constraint", fe.Tag())
	}
	return NewSchemaError(base, path, msg)
}

func jsonTypeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.String:
		return "string"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Bool:
		return "boolean"
	default:
		return "object"
	}
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
