package postprocess

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/queryforge/mbql-mongo/lib/escape"
)

func TestProcessUnescapesKeys(t *testing.T) {
	rows := []bson.D{{{Key: "source___username", Value: "alice"}}}
	out, err := Process(rows, []string{"source.username"}, true)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out[0][0].Key != "source.username" {
		t.Fatalf("key = %q, want %q", out[0][0].Key, "source.username")
	}
}

func TestProcessRehydratesDateEnvelope(t *testing.T) {
	rows := []bson.D{{{Key: "created_at~~~day", Value: escape.DateEnvelope("2026-08-06")}}}
	out, err := Process(rows, []string{"created_at~~~day"}, true)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	got, ok := out[0][0].Value.(time.Time)
	if !ok {
		t.Fatalf("expected a rehydrated time.Time, got %T", out[0][0].Value)
	}
	want := time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestProcessRehydratesNestedEnvelope(t *testing.T) {
	rows := []bson.D{{
		{Key: "nested", Value: bson.D{{Key: "created_at~~~day", Value: escape.DateEnvelope("2026-08-06")}}},
	}}
	out, err := Process(rows, []string{"nested"}, true)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	nested := out[0][0].Value.(bson.D)
	if _, ok := nested[0].Value.(time.Time); !ok {
		t.Fatalf("expected a rehydrated time.Time nested in the document, got %T", nested[0].Value)
	}
}

func TestProcessRehydratesArrayElements(t *testing.T) {
	rows := []bson.D{{
		{Key: "dates", Value: bson.A{escape.DateEnvelope("2026-08-06"), escape.DateEnvelope("2026-08-07")}},
	}}
	out, err := Process(rows, []string{"dates"}, true)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	arr := out[0][0].Value.(bson.A)
	if len(arr) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(arr))
	}
	for _, v := range arr {
		if _, ok := v.(time.Time); !ok {
			t.Fatalf("expected each array element rehydrated to time.Time, got %T", v)
		}
	}
}

func TestProcessRejectsUnexpectedColumnsWhenMBQL(t *testing.T) {
	rows := []bson.D{{{Key: "unexpected", Value: 1}}}
	if _, err := Process(rows, []string{"expected"}, true); err == nil {
		t.Fatalf("expected an error for an unexpected column")
	}
}

func TestProcessSkipsColumnCheckWhenNotMBQL(t *testing.T) {
	rows := []bson.D{{{Key: "whatever", Value: 1}}}
	out, err := Process(rows, []string{"expected"}, false)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}
}
