package categories

import (
	"errors"

	"github.com/yukikurage/unica-api/internal/properties"
)

// ErrInvalidCategory is wrapped when a single category row is malformed.
var ErrInvalidCategory = errors.New("invalid category")

// Fields are the user-editable columns of a category row.
type Fields struct {
	Name        string `json:"name" validate:"required,max=20"`
	Color       string `json:"color" validate:"required,oneof=gray red orange yellow green teal blue cyan purple pink"`
	Emoji       string `json:"emoji" validate:"max=2"`
	Description string `json:"description" validate:"max=200"`
}

// ValidateFields checks one category row. Lengths are counted in runes.
func ValidateFields(f Fields) error {
	if err := validate.Struct(f); err != nil {
		return properties.SchemaErrorFrom(ErrInvalidCategory, err)
	}
	return nil
}
