// Package postprocess is the Result Post-processor (spec.md §4.7): it
// inverts the Name Encoder's escaping on every result row's keys,
// rehydrates {___date: ...} envelopes into timestamps, and — for
// MBQL-originated compiles only — asserts that no row carries a
// column the compiler did not ask for.
package postprocess

import (
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/queryforge/mbql-mongo/lib/compileerr"
	"github.com/queryforge/mbql-mongo/lib/escape"
	"github.com/queryforge/mbql-mongo/lib/temporal"
)

// Process renames every row's escaped keys back to their dotted
// source form, rehydrates date envelopes, and — when mbql is true —
// verifies the resulting column set is a subset of projections, each
// projection compared in its unescaped form.
func Process(rows []bson.D, projections []string, mbql bool) ([]bson.D, error) {
	out := make([]bson.D, len(rows))
	for i, row := range rows {
		renamed, err := renameRow(row)
		if err != nil {
			return nil, err
		}
		out[i] = renamed
	}
	if mbql {
		if err := checkColumns(out, projections); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func renameRow(row bson.D) (bson.D, error) {
	out := make(bson.D, len(row))
	for i, e := range row {
		key := e.Key
		if escape.IsEscaped(key) {
			key = escape.UnescapeKey(key)
		}
		val, err := rehydrate(e.Value)
		if err != nil {
			return nil, err
		}
		out[i] = bson.E{Key: key, Value: val}
	}
	return out, nil
}

// rehydrate walks v looking for {___date: <string>} envelopes and
// replaces each with the timestamp it encodes, recursing through
// nested documents and arrays so a bucketed date buried inside an
// aggregation result still round-trips.
func rehydrate(v any) (any, error) {
	if encoded, ok := escape.AsDateEnvelope(v); ok {
		s, ok := encoded.(string)
		if !ok {
			return nil, fmt.Errorf("postprocess: %s envelope value must be a string, got %T", escape.DateEnvelopeKey, encoded)
		}
		t, err := temporal.ParseTimestamp(s)
		if err != nil {
			return nil, fmt.Errorf("postprocess: rehydrating %s: %w", escape.DateEnvelopeKey, err)
		}
		return t, nil
	}
	switch x := v.(type) {
	case bson.D:
		out := make(bson.D, len(x))
		for i, e := range x {
			rv, err := rehydrate(e.Value)
			if err != nil {
				return nil, err
			}
			out[i] = bson.E{Key: e.Key, Value: rv}
		}
		return out, nil
	case bson.A:
		out := make(bson.A, len(x))
		for i, e := range x {
			rv, err := rehydrate(e)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

// checkColumns raises unexpected-columns when a row carries a key
// outside the expected projections set — a compiler bug, not a user
// error (spec.md §7).
func checkColumns(rows []bson.D, projections []string) error {
	allowed := make(map[string]bool, len(projections))
	for _, p := range projections {
		allowed[escape.UnescapeKey(p)] = true
	}
	unexpected := map[string]bool{}
	for _, row := range rows {
		for _, e := range row {
			if !allowed[e.Key] {
				unexpected[e.Key] = true
			}
		}
	}
	if len(unexpected) == 0 {
		return nil
	}
	names := make([]string, 0, len(unexpected))
	for k := range unexpected {
		names = append(names, k)
	}
	sort.Strings(names)
	return compileerr.New(compileerr.KindUnexpectedColumns, names, "postprocess: unexpected columns %v", names)
}
