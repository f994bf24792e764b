package schema

import (
	"fmt"
	"sort"
)

// TableResolver resolves a source-table id to the document store's
// collection name, the same role the teacher's tablestore.TableStore
// plays for SQL table names.
type TableResolver interface {
	Collection(tableID int) (string, error)
}

// StaticTableResolver is a map-backed TableResolver, grounded on
// tablestore.TableStore's lookup shape. Collection names are returned
// exactly as configured; no case normalization is applied.
type StaticTableResolver map[int]string

// NewStaticTableResolver validates the table map the way
// tablestore.NewTableStore validates its name map.
func NewStaticTableResolver(tables map[int]string) (StaticTableResolver, error) {
	out := make(StaticTableResolver, len(tables))
	for id, name := range tables {
		if name == "" {
			return nil, fmt.Errorf("schema: table %d has an empty collection name", id)
		}
		out[id] = name
	}
	return out, nil
}

func (r StaticTableResolver) Collection(tableID int) (string, error) {
	name, ok := r[tableID]
	if !ok {
		return "", fmt.Errorf("schema: no collection configured for table id %d (known: %s)", tableID, joinKnown(r))
	}
	return name, nil
}

func joinKnown(r StaticTableResolver) string {
	ids := make([]int, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%d", id)
	}
	return out
}
