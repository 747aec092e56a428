package properties

import "fmt"

// Upsert returns a copy of ds with def merged in. An existing entry with the
// same name keeps its position and is replaced; a new name is appended. A name
// reused with a different kind fails with ErrTypeConflict and ds is untouched.
func (ds Definitions) Upsert(def Definition) (Definitions, error) {
	out := make(Definitions, len(ds), len(ds)+1)
	copy(out, ds)

	existing, i, ok := ds.Find(def.PropertyName())
	if !ok {
		return append(out, def), nil
	}
	if existing.Kind() != def.Kind() {
		return ds, fmt.Errorf("%w: %q is %s, not %s", ErrTypeConflict, def.PropertyName(), existing.Kind(), def.Kind())
	}
	out[i] = def
	return out, nil
}

// UpsertDocument validates a raw definition document and upserts it.
func (ds Definitions) UpsertDocument(doc []byte) (Definitions, Definition, error) {
	def, err := Validate(doc)
	if err != nil {
		return ds, nil, err
	}
	out, err := ds.Upsert(def)
	if err != nil {
		return ds, nil, err
	}
	return out, def, nil
}

// Remove returns a copy of ds without the entry named name. Removing an
// unknown name is a no-op and reports false.
func (ds Definitions) Remove(name string) (Definitions, bool) {
	out := make(Definitions, 0, len(ds))
	removed := false
	for _, d := range ds {
		if d.PropertyName() == name {
			removed = true
			continue
		}
		out = append(out, d)
	}
	if !removed {
		return ds, false
	}
	return out, true
}
