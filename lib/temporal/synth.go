// Package temporal is the hand-rolled calendrical library: it
// compiles (datetime-field f unit) and (absolute-datetime t unit) /
// (relative-datetime n unit) into stage-operator expression trees for
// the 16 supported units, expressed entirely as nested document-store
// arithmetic operators (spec.md §1, §4.2).
package temporal

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/queryforge/mbql-mongo/lib/ast"
	"github.com/queryforge/mbql-mongo/lib/escape"
	"github.com/queryforge/mbql-mongo/lib/schema"
)

// epoch is the $toDate expression for the UNIX epoch, used as the
// base for coercing UNIX-seconds/UNIX-milliseconds fields to dates.
var epoch = bson.D{{Key: "$toDate", Value: int64(0)}}

const dayMillis = 86400000

// SynthesizeField compiles the initial-rvalue expression for a
// datetime-field: source is the (possibly-coerced-later) expression
// that resolves to the field's raw value — e.g. "$a.b.c" — and
// baseType is the field's resolved base type, used to pick the
// UNIX-timestamp coercion spec.md §4.2 describes. The returned value
// is the full $let expression; bucketed string results are already
// wrapped in the {___date: ...} envelope.
func SynthesizeField(source any, baseType schema.Type, unit ast.Unit) (any, error) {
	if !unit.IsValid() {
		return nil, fmt.Errorf("temporal: unsupported unit %q", unit)
	}
	if unit != ast.UnitDefault && !baseType.Bucketable() {
		return nil, fmt.Errorf("temporal: base type %q is not bucketable", baseType)
	}

	coerced := coerce("$$v", baseType)

	expr, enveloped, err := unitExpr(coerced, unit)
	if err != nil {
		return nil, err
	}

	let := bson.D{{Key: "$let", Value: bson.D{
		{Key: "vars", Value: bson.D{{Key: "v", Value: source}}},
		{Key: "in", Value: expr},
	}}}
	if enveloped {
		return escape.DateEnvelope(let), nil
	}
	return let, nil
}

// coerce converts ref (a UNIX-seconds or UNIX-milliseconds numeric
// value) to a date expression when baseType demands it, otherwise
// returns ref unchanged (it is already a native date).
func coerce(ref any, baseType schema.Type) any {
	switch {
	case baseType.IsA(schema.TypeUNIXTimestampSeconds):
		return bson.D{{Key: "$add", Value: bson.A{epoch, bson.D{{Key: "$multiply", Value: bson.A{ref, 1000}}}}}}
	case baseType.IsA(schema.TypeUNIXTimestampMilliseconds):
		return bson.D{{Key: "$add", Value: bson.A{epoch, ref}}}
	default:
		return ref
	}
}

// unitExpr returns the stage-operator expression for unit applied to
// a coerced date expression, plus whether the result must travel in a
// {___date: ...} envelope (true for every $dateToString-based bucket,
// false for raw dates and numeric extractions).
func unitExpr(date any, unit ast.Unit) (any, bool, error) {
	switch unit {
	case ast.UnitDefault:
		return date, false, nil
	case ast.UnitMinute:
		return dateToString(date, "%Y-%m-%dT%H:%M:00"), true, nil
	case ast.UnitHour:
		return dateToString(date, "%Y-%m-%dT%H:00:00"), true, nil
	case ast.UnitDay:
		return dateToString(date, "%Y-%m-%d"), true, nil
	case ast.UnitWeek:
		return dateToString(weekTruncated(date), "%Y-%m-%d"), true, nil
	case ast.UnitMonth:
		return dateToString(date, "%Y-%m"), true, nil
	case ast.UnitQuarter:
		return dateToString(quarterTruncated(date), "%Y-%m"), true, nil
	case ast.UnitMinuteOfHour:
		return bson.D{{Key: "$minute", Value: date}}, false, nil
	case ast.UnitHourOfDay:
		return bson.D{{Key: "$hour", Value: date}}, false, nil
	case ast.UnitDayOfWeek:
		return bson.D{{Key: "$dayOfWeek", Value: date}}, false, nil
	case ast.UnitDayOfMonth:
		return bson.D{{Key: "$dayOfMonth", Value: date}}, false, nil
	case ast.UnitDayOfYear:
		return bson.D{{Key: "$dayOfYear", Value: date}}, false, nil
	case ast.UnitWeekOfYear:
		return bson.D{{Key: "$add", Value: bson.A{bson.D{{Key: "$week", Value: date}}, 1}}}, false, nil
	case ast.UnitMonthOfYear:
		return bson.D{{Key: "$month", Value: date}}, false, nil
	case ast.UnitQuarterYear:
		return quarterOfYear(monthExpr(date)), false, nil
	case ast.UnitYear:
		return bson.D{{Key: "$year", Value: date}}, false, nil
	default:
		return nil, false, fmt.Errorf("temporal: unsupported unit %q", unit)
	}
}

func dateToString(date any, format string) any {
	return bson.D{{Key: "$dateToString", Value: bson.D{
		{Key: "format", Value: format},
		{Key: "date", Value: date},
	}}}
}

func monthExpr(date any) any {
	return bson.D{{Key: "$month", Value: date}}
}

// weekTruncated subtracts (dayOfWeek(date)-1) days, in milliseconds,
// from date, landing on the week's first day (spec.md §4.2's week row).
func weekTruncated(date any) any {
	dow := bson.D{{Key: "$dayOfWeek", Value: date}}
	offsetDays := bson.D{{Key: "$subtract", Value: bson.A{dow, 1}}}
	offsetMillis := bson.D{{Key: "$multiply", Value: bson.A{offsetDays, dayMillis}}}
	return bson.D{{Key: "$subtract", Value: bson.A{date, offsetMillis}}}
}

// quarterTruncated subtracts ((dayOfYear(date) mod 91) - 3) days, in
// milliseconds, landing near the quarter's first month (spec.md
// §4.2's quarter row — the calendar math the source hand-rolls rather
// than relying on a first-class date-bucketing primitive).
func quarterTruncated(date any) any {
	doy := bson.D{{Key: "$dayOfYear", Value: date}}
	mod := bson.D{{Key: "$mod", Value: bson.A{doy, 91}}}
	offsetDays := bson.D{{Key: "$subtract", Value: bson.A{mod, 3}}}
	offsetMillis := bson.D{{Key: "$multiply", Value: bson.A{offsetDays, dayMillis}}}
	return bson.D{{Key: "$subtract", Value: bson.A{date, offsetMillis}}}
}

// quarterOfYear computes ((month+2) - ((month+2) mod 3)) / 3, the
// nested-arithmetic form spec.md §4.2 specifies for quarter-of-year.
func quarterOfYear(month any) any {
	monthPlus2 := bson.D{{Key: "$add", Value: bson.A{month, 2}}}
	mod3 := bson.D{{Key: "$mod", Value: bson.A{monthPlus2, 3}}}
	numerator := bson.D{{Key: "$subtract", Value: bson.A{monthPlus2, mod3}}}
	return bson.D{{Key: "$divide", Value: bson.A{numerator, 3}}}
}

// Now is overridable by tests; production code leaves it at time.Now.
var Now = time.Now
