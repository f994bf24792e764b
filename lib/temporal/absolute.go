package temporal

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/queryforge/mbql-mongo/lib/ast"
	"github.com/queryforge/mbql-mongo/lib/escape"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses the flexible timestamp strings absolute-datetime
// literals carry on the wire.
func ParseTimestamp(ts string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("temporal: unparseable timestamp %q", ts)
}

// SynthesizeAbsolute pre-applies unit's bucketing semantics to t at
// compile time, producing a literal matching what SynthesizeField
// computes for a datetime-field bucketed to the same unit: a raw BSON
// date for "default", an integer for the extraction units, or a
// {___date: "<formatted string>"} envelope for the $dateToString
// units. This symmetry is what lets a bucketed field compare equal to
// an absolute-datetime literal (spec.md §4.2, scenario 2).
func SynthesizeAbsolute(t time.Time, unit ast.Unit) (any, error) {
	if !unit.IsValid() {
		return nil, fmt.Errorf("temporal: unsupported unit %q", unit)
	}
	switch unit {
	case ast.UnitDefault:
		return primitive.NewDateTimeFromTime(t), nil
	case ast.UnitMinute:
		return escape.DateEnvelope(t.Format("2006-01-02T15:04:00")), nil
	case ast.UnitHour:
		return escape.DateEnvelope(t.Format("2006-01-02T15:00:00")), nil
	case ast.UnitDay:
		return escape.DateEnvelope(t.Format("2006-01-02")), nil
	case ast.UnitWeek:
		return escape.DateEnvelope(weekTruncatedTime(t).Format("2006-01-02")), nil
	case ast.UnitMonth:
		return escape.DateEnvelope(t.Format("2006-01")), nil
	case ast.UnitQuarter:
		return escape.DateEnvelope(quarterTruncatedTime(t).Format("2006-01")), nil
	case ast.UnitMinuteOfHour:
		return t.Minute(), nil
	case ast.UnitHourOfDay:
		return t.Hour(), nil
	case ast.UnitDayOfWeek:
		return mongoDayOfWeek(t), nil
	case ast.UnitDayOfMonth:
		return t.Day(), nil
	case ast.UnitDayOfYear:
		return t.YearDay(), nil
	case ast.UnitWeekOfYear:
		return mongoWeek(t) + 1, nil
	case ast.UnitMonthOfYear:
		return int(t.Month()), nil
	case ast.UnitQuarterYear:
		month := int(t.Month())
		return ((month + 2) - ((month + 2) % 3)) / 3, nil
	case ast.UnitYear:
		return t.Year(), nil
	default:
		return nil, fmt.Errorf("temporal: unsupported unit %q", unit)
	}
}

// mongoDayOfWeek matches the $dayOfWeek operator: 1 (Sunday) .. 7 (Saturday).
func mongoDayOfWeek(t time.Time) int {
	return int(t.Weekday()) + 1
}

// mongoWeek approximates the $week operator: weeks begin on Sunday,
// week 0 holds any days before the year's first Sunday.
func mongoWeek(t time.Time) int {
	jan1 := time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
	daysToFirstSunday := (7 - int(jan1.Weekday())) % 7
	firstSunday := jan1.AddDate(0, 0, daysToFirstSunday)
	if t.Before(firstSunday) {
		return 0
	}
	return int(t.Sub(firstSunday).Hours()/24)/7 + 1
}

func weekTruncatedTime(t time.Time) time.Time {
	offsetDays := mongoDayOfWeek(t) - 1
	return t.AddDate(0, 0, -offsetDays)
}

func quarterTruncatedTime(t time.Time) time.Time {
	offsetDays := (t.YearDay() % 91) - 3
	return t.AddDate(0, 0, -offsetDays)
}

// RelativeToAbsolute normalizes a relative-datetime clause to its
// absolute-datetime equivalent: "now + amount*unit" (spec.md §4.2).
func RelativeToAbsolute(amount int, unit ast.Unit, now time.Time) (*ast.AbsoluteDatetime, error) {
	t, err := addUnit(now, amount, unit)
	if err != nil {
		return nil, err
	}
	return &ast.AbsoluteDatetime{Timestamp: t.Format(time.RFC3339), Unit: unit}, nil
}

func addUnit(t time.Time, amount int, unit ast.Unit) (time.Time, error) {
	switch unit {
	case ast.UnitDefault, ast.UnitDay, ast.UnitDayOfWeek, ast.UnitDayOfMonth, ast.UnitDayOfYear:
		return t.AddDate(0, 0, amount), nil
	case ast.UnitMinute, ast.UnitMinuteOfHour:
		return t.Add(time.Duration(amount) * time.Minute), nil
	case ast.UnitHour, ast.UnitHourOfDay:
		return t.Add(time.Duration(amount) * time.Hour), nil
	case ast.UnitWeek, ast.UnitWeekOfYear:
		return t.AddDate(0, 0, 7*amount), nil
	case ast.UnitMonth, ast.UnitMonthOfYear:
		return t.AddDate(0, amount, 0), nil
	case ast.UnitQuarter, ast.UnitQuarterYear:
		return t.AddDate(0, 3*amount, 0), nil
	case ast.UnitYear:
		return t.AddDate(amount, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("temporal: unsupported unit %q", unit)
	}
}
