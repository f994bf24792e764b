package temporal

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/queryforge/mbql-mongo/lib/ast"
	"github.com/queryforge/mbql-mongo/lib/escape"
	"github.com/queryforge/mbql-mongo/lib/schema"
)

func TestParseTimestampAcceptsMultipleLayouts(t *testing.T) {
	inputs := []string{
		"2026-08-06T12:30:00Z",
		"2026-08-06T12:30:00",
		"2026-08-06",
	}
	for _, in := range inputs {
		if _, err := ParseTimestamp(in); err != nil {
			t.Errorf("ParseTimestamp(%q): %v", in, err)
		}
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	if _, err := ParseTimestamp("not-a-date"); err == nil {
		t.Fatalf("expected error parsing garbage timestamp")
	}
}

func TestSynthesizeFieldRejectsUnbucketableBaseType(t *testing.T) {
	if _, err := SynthesizeField("$x", schema.TypeText, ast.UnitDay); err == nil {
		t.Fatalf("expected error bucketing a non-bucketable base type")
	}
}

func TestSynthesizeFieldDefaultUnitPassesThrough(t *testing.T) {
	got, err := SynthesizeField("$x", schema.TypeDateTime, ast.UnitDefault)
	if err != nil {
		t.Fatalf("SynthesizeField: %v", err)
	}
	if _, ok := escape.AsDateEnvelope(got); ok {
		t.Fatalf("default unit should not be enveloped: %#v", got)
	}
}

func TestSynthesizeFieldDayUnitIsEnveloped(t *testing.T) {
	got, err := SynthesizeField("$x", schema.TypeDateTime, ast.UnitDay)
	if err != nil {
		t.Fatalf("SynthesizeField: %v", err)
	}
	if _, ok := escape.AsDateEnvelope(got); !ok {
		t.Fatalf("day-bucketed field should be enveloped, got %#v", got)
	}
}

func TestSynthesizeFieldCoercesUnixSeconds(t *testing.T) {
	got, err := SynthesizeField("$x", schema.TypeUNIXTimestampSeconds, ast.UnitDefault)
	if err != nil {
		t.Fatalf("SynthesizeField: %v", err)
	}
	d, ok := got.(bson.D)
	if !ok {
		t.Fatalf("expected bson.D, got %T", got)
	}
	if len(d) == 0 || d[0].Key != "$let" {
		t.Fatalf("expected a $let expression, got %#v", d)
	}
}

func TestSynthesizeFieldRejectsUnknownUnit(t *testing.T) {
	if _, err := SynthesizeField("$x", schema.TypeDateTime, ast.Unit("fortnight")); err == nil {
		t.Fatalf("expected error for an unsupported unit")
	}
}

func TestSynthesizeAbsoluteAllUnitsSucceed(t *testing.T) {
	fixed := time.Date(2026, 8, 6, 15, 4, 5, 0, time.UTC)
	for _, u := range ast.AllUnits {
		if _, err := SynthesizeAbsolute(fixed, u); err != nil {
			t.Errorf("SynthesizeAbsolute(%q): %v", u, err)
		}
	}
}

func TestSynthesizeAbsoluteDayMatchesFormat(t *testing.T) {
	fixed := time.Date(2026, 8, 6, 15, 4, 5, 0, time.UTC)
	got, err := SynthesizeAbsolute(fixed, ast.UnitDay)
	if err != nil {
		t.Fatalf("SynthesizeAbsolute: %v", err)
	}
	env, ok := escape.AsDateEnvelope(got)
	if !ok {
		t.Fatalf("expected a date envelope, got %#v", got)
	}
	if env != "2026-08-06" {
		t.Fatalf("envelope value = %v, want %q", env, "2026-08-06")
	}
}

func TestSynthesizeAbsoluteQuarterOfYear(t *testing.T) {
	cases := map[time.Month]int{
		time.January:  1,
		time.April:    2,
		time.July:     3,
		time.October:  4,
		time.December: 4,
	}
	for month, want := range cases {
		fixed := time.Date(2026, month, 15, 0, 0, 0, 0, time.UTC)
		got, err := SynthesizeAbsolute(fixed, ast.UnitQuarterYear)
		if err != nil {
			t.Fatalf("SynthesizeAbsolute: %v", err)
		}
		if got != want {
			t.Errorf("quarter-of-year for month %v = %v, want %d", month, got, want)
		}
	}
}

func TestRelativeToAbsoluteDayMath(t *testing.T) {
	now := time.Date(2026, 8, 6, 12, 0, 0, 0, time.UTC)
	abs, err := RelativeToAbsolute(-1, ast.UnitDay, now)
	if err != nil {
		t.Fatalf("RelativeToAbsolute: %v", err)
	}
	got, err := ParseTimestamp(abs.Timestamp)
	if err != nil {
		t.Fatalf("ParseTimestamp: %v", err)
	}
	want := now.AddDate(0, 0, -1)
	if !got.Equal(want) {
		t.Fatalf("relative day offset = %v, want %v", got, want)
	}
	if abs.Unit != ast.UnitDay {
		t.Fatalf("Unit = %q, want %q", abs.Unit, ast.UnitDay)
	}
}

func TestRelativeToAbsoluteRejectsUnknownUnit(t *testing.T) {
	if _, err := RelativeToAbsolute(1, ast.Unit("fortnight"), time.Now()); err == nil {
		t.Fatalf("expected error for an unsupported unit")
	}
}
