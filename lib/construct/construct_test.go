package construct

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseObjectIDRoundTrip(t *testing.T) {
	got, err := Parse(`{"_id": ObjectId("5f43a1b2c3d4e5f601020304")}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("expected map[string]any, got %T", got)
	}
	id, ok := m["_id"].(primitive.ObjectID)
	if !ok {
		t.Fatalf("expected primitive.ObjectID, got %T", m["_id"])
	}
	if id.Hex() != "5f43a1b2c3d4e5f601020304" {
		t.Fatalf("Hex() = %q, want %q", id.Hex(), "5f43a1b2c3d4e5f601020304")
	}
}

func TestParseISODate(t *testing.T) {
	got, err := Parse(`{"created": ISODate("2026-08-06T00:00:00Z")}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m := got.(map[string]any)
	if _, ok := m["created"].(primitive.DateTime); !ok {
		t.Fatalf("expected primitive.DateTime, got %T", m["created"])
	}
}

func TestParseDateZeroArgUsesClock(t *testing.T) {
	fixed := time.Date(2026, 8, 6, 12, 0, 0, 0, time.UTC)
	old := Now
	Now = func() time.Time { return fixed }
	defer func() { Now = old }()

	got, err := Parse(`{"now": Date()}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m := got.(map[string]any)
	s, ok := m["now"].(string)
	if !ok {
		t.Fatalf("expected Date() with no args to decode to a string, got %T", m["now"])
	}
	want := fixed.Format(dateConstructorLayout)
	if s != want {
		t.Fatalf("Date() = %q, want %q", s, want)
	}
}

func TestParseNestedConstructors(t *testing.T) {
	got, err := Parse(`{"filter": {"id": ObjectId("5f43a1b2c3d4e5f601020304"), "created": ISODate("2026-08-06")}}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m := got.(map[string]any)
	filter := m["filter"].(map[string]any)
	if _, ok := filter["id"].(primitive.ObjectID); !ok {
		t.Fatalf("expected nested ObjectId to decode, got %T", filter["id"])
	}
	if _, ok := filter["created"].(primitive.DateTime); !ok {
		t.Fatalf("expected nested ISODate to decode, got %T", filter["created"])
	}
}

func TestParseConstructorNameInsideStringLiteralIsNotRewritten(t *testing.T) {
	got, err := Parse(`{"note": "call ObjectId(\"x\") later"}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m := got.(map[string]any)
	if m["note"] != `call ObjectId("x") later` {
		t.Fatalf("note = %v, want the literal string unchanged", m["note"])
	}
}

func TestParseNumberLongAndNumberInt(t *testing.T) {
	got, err := Parse(`{"big": NumberLong("9007199254740993"), "small": NumberInt(42)}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m := got.(map[string]any)
	big, ok := m["big"].(int64)
	if !ok || big != 9007199254740993 {
		t.Fatalf("big = %v (%T), want int64(9007199254740993)", m["big"], m["big"])
	}
	small, ok := m["small"].(int32)
	if !ok || small != 42 {
		t.Fatalf("small = %v (%T), want int32(42)", m["small"], m["small"])
	}
}

func TestParseInvalidObjectIDFails(t *testing.T) {
	if _, err := Parse(`{"_id": ObjectId("not-hex")}`); err == nil {
		t.Fatalf("expected an error decoding an invalid ObjectId hex string")
	}
}

func TestParsePlainJSONUnaffected(t *testing.T) {
	got, err := Parse(`{"a": 1, "b": [1, 2, 3], "c": "plain"}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m := got.(map[string]any)
	if m["c"] != "plain" {
		t.Fatalf("c = %v, want %q", m["c"], "plain")
	}
}
