package ast

import (
	"errors"
	"testing"

	"github.com/queryforge/mbql-mongo/lib/compileerr"
)

func mustDecode(t *testing.T, raw string) Clause {
	t.Helper()
	c, err := DecodeClause([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeClause(%s): %v", raw, err)
	}
	return c
}

func TestDecodeFieldID(t *testing.T) {
	c := mustDecode(t, `["field-id", 7]`)
	f, ok := c.(*FieldID)
	if !ok {
		t.Fatalf("expected *FieldID, got %T", c)
	}
	if f.ID != 7 {
		t.Fatalf("ID = %d, want 7", f.ID)
	}
}

func TestDecodeDatetimeField(t *testing.T) {
	c := mustDecode(t, `["datetime-field", ["field-id", 3], "day"]`)
	dt, ok := c.(*DatetimeField)
	if !ok {
		t.Fatalf("expected *DatetimeField, got %T", c)
	}
	if dt.Unit != UnitDay {
		t.Fatalf("Unit = %q, want %q", dt.Unit, UnitDay)
	}
	if _, ok := dt.Inner.(*FieldID); !ok {
		t.Fatalf("Inner = %T, want *FieldID", dt.Inner)
	}
}

func TestDecodeComparison(t *testing.T) {
	c := mustDecode(t, `["=", ["field-id", 1], 5]`)
	cmp, ok := c.(*Comparison)
	if !ok {
		t.Fatalf("expected *Comparison, got %T", c)
	}
	if cmp.Op != CompareEQ {
		t.Fatalf("Op = %q, want %q", cmp.Op, CompareEQ)
	}
	val, ok := cmp.Right.(*Value)
	if !ok {
		t.Fatalf("Right = %T, want *Value", cmp.Right)
	}
	if n, ok := val.Val.(float64); !ok || n != 5 {
		t.Fatalf("Right.Val = %v, want 5", val.Val)
	}
}

func TestDecodeBetween(t *testing.T) {
	c := mustDecode(t, `["between", ["field-id", 1], 10, 20]`)
	cmp, ok := c.(*Comparison)
	if !ok || cmp.Op != CompareBetween {
		t.Fatalf("expected between comparison, got %#v", c)
	}
	if cmp.Lower == nil || cmp.Upper == nil {
		t.Fatalf("between clause missing bounds: %#v", cmp)
	}
}

func TestDecodeStringMatchDefaultCaseSensitive(t *testing.T) {
	c := mustDecode(t, `["contains", ["field-id", 1], "abc"]`)
	m, ok := c.(*StringMatch)
	if !ok {
		t.Fatalf("expected *StringMatch, got %T", c)
	}
	if !m.CaseSensitive {
		t.Fatalf("CaseSensitive = false, want true by default")
	}
}

func TestDecodeStringMatchCaseInsensitive(t *testing.T) {
	c := mustDecode(t, `["starts-with", ["field-id", 1], "abc", {"case-sensitive": false}]`)
	m, ok := c.(*StringMatch)
	if !ok {
		t.Fatalf("expected *StringMatch, got %T", c)
	}
	if m.CaseSensitive {
		t.Fatalf("CaseSensitive = true, want false")
	}
}

func TestDecodeBooleanAndOr(t *testing.T) {
	c := mustDecode(t, `["and", ["=", ["field-id", 1], 1], ["=", ["field-id", 2], 2]]`)
	b, ok := c.(*Boolean)
	if !ok || b.Op != BoolAnd {
		t.Fatalf("expected and-boolean, got %#v", c)
	}
	if len(b.Args) != 2 {
		t.Fatalf("Args = %d, want 2", len(b.Args))
	}
}

func TestDecodeNot(t *testing.T) {
	c := mustDecode(t, `["not", ["=", ["field-id", 1], 1]]`)
	b, ok := c.(*Boolean)
	if !ok || b.Op != BoolNot || len(b.Args) != 1 {
		t.Fatalf("expected not-boolean with one arg, got %#v", c)
	}
}

func TestDecodeAggregationShapes(t *testing.T) {
	tests := []struct {
		raw string
		op  AggOp
	}{
		{`["count"]`, AggCount},
		{`["avg", ["field-id", 1]]`, AggAvg},
		{`["distinct", ["field-id", 1]]`, AggDistinct},
		{`["sum-where", ["field-id", 1], ["=", ["field-id", 2], 1]]`, AggSumWhere},
		{`["count-where", ["=", ["field-id", 2], 1]]`, AggCountWhere},
		{`["share", ["=", ["field-id", 2], 1]]`, AggShare},
	}
	for _, tc := range tests {
		c := mustDecode(t, tc.raw)
		agg, ok := c.(*Aggregation)
		if !ok {
			t.Fatalf("%s: expected *Aggregation, got %T", tc.raw, c)
		}
		if agg.Op != tc.op {
			t.Fatalf("%s: Op = %q, want %q", tc.raw, agg.Op, tc.op)
		}
	}
}

func TestDecodeAggregationOptions(t *testing.T) {
	c := mustDecode(t, `["aggregation-options", ["count"], {"name": "total_count"}]`)
	opts, ok := c.(*AggregationOptions)
	if !ok {
		t.Fatalf("expected *AggregationOptions, got %T", c)
	}
	if opts.Name != "total_count" {
		t.Fatalf("Name = %q, want %q", opts.Name, "total_count")
	}
}

func TestDecodeUnknownClauseFails(t *testing.T) {
	_, err := DecodeClause([]byte(`["bogus-tag", 1]`))
	if err == nil {
		t.Fatalf("expected error decoding unknown clause tag")
	}
	var ce *compileerr.CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected a *compileerr.CompileError, got %T", err)
	}
	if ce.Kind != compileerr.KindUnknownClause {
		t.Fatalf("Kind = %q, want %q", ce.Kind, compileerr.KindUnknownClause)
	}
}

func TestDecodeUnsupportedUnitFails(t *testing.T) {
	_, err := DecodeClause([]byte(`["datetime-field", ["field-id", 1], "fortnight"]`))
	if err == nil {
		t.Fatalf("expected error decoding unsupported temporal unit")
	}
	var ce *compileerr.CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected a *compileerr.CompileError, got %T", err)
	}
	if ce.Kind != compileerr.KindUnsupportedUnit {
		t.Fatalf("Kind = %q, want %q", ce.Kind, compileerr.KindUnsupportedUnit)
	}
}

func TestDecodeQueryFull(t *testing.T) {
	q, err := DecodeQuery([]byte(`{
		"source-table": 7,
		"filter": ["=", ["field-id", 1], 5],
		"breakout": [["field-id", 2]],
		"aggregation": [["count"]],
		"order-by": [{"clause": ["aggregation", 0], "direction": "desc"}],
		"limit": 10
	}`))
	if err != nil {
		t.Fatalf("DecodeQuery: %v", err)
	}
	if q.SourceTable != 7 {
		t.Fatalf("SourceTable = %d, want 7", q.SourceTable)
	}
	if len(q.Aggregations) != 1 || q.Aggregations[0].Name != "count" {
		t.Fatalf("aggregation not normalized correctly: %#v", q.Aggregations)
	}
	ref, ok := q.OrderBy[0].Clause.(*AggregationRef)
	if !ok {
		t.Fatalf("expected order-by clause to be *AggregationRef, got %T", q.OrderBy[0].Clause)
	}
	if ref.Name != "count" {
		t.Fatalf("AggregationRef.Name = %q, want %q", ref.Name, "count")
	}
}
