package schema

import "fmt"

// Field is the immutable field record spec.md §3 specifies: an id,
// its own name, an optional parent (for nested/FK-joined fields),
// and a base/special type pair.
type Field struct {
	ID          int
	Name        string
	ParentID    *int
	BaseType    Type
	SpecialType Type
}

// FieldResolver looks up a Field by id. Supplied by the caller; the
// compiler never constructs one itself (spec.md §4.1's "Field
// Resolver interface").
type FieldResolver interface {
	Resolve(id int) (Field, error)
}

// FieldResolutionError is returned by a FieldResolver when an id has
// no backing record. lib/lvalue wraps this into a CompileError of
// kind KindFieldResolutionFailure at the point a clause is resolved.
type FieldResolutionError struct {
	ID int
}

func (e *FieldResolutionError) Error() string {
	return fmt.Sprintf("schema: no field with id %d", e.ID)
}

// Path returns the dotted ancestor-name chain for id: the field's own
// name, preceded by its parent's name, and so on to the root. This is
// the source path the Name Encoder escapes into a flat identifier.
func Path(resolver FieldResolver, id int) ([]string, error) {
	var parts []string
	seen := map[int]bool{}
	for {
		if seen[id] {
			return nil, fmt.Errorf("schema: cycle detected in field parent chain at id %d", id)
		}
		seen[id] = true
		f, err := resolver.Resolve(id)
		if err != nil {
			return nil, err
		}
		parts = append([]string{f.Name}, parts...)
		if f.ParentID == nil {
			return parts, nil
		}
		id = *f.ParentID
	}
}

// StaticFieldResolver is a map-backed FieldResolver for tests and for
// the cmd/ front end's static-config mode, mirroring the teacher's
// map-backed tablestore.TableStore.
type StaticFieldResolver map[int]Field

func (r StaticFieldResolver) Resolve(id int) (Field, error) {
	f, ok := r[id]
	if !ok {
		return Field{}, &FieldResolutionError{ID: id}
	}
	return f, nil
}
