// Package ast models the logical query AST this repository compiles:
// filters, aggregations, breakouts, ordering, projections, pagination
// and temporal bucketing over a single source table.
package ast

// Clause is any tagged node of the query AST. The tag is the first
// element of the clause's wire form and is also what every dispatch
// table in lib/lvalue, lib/matchstage and lib/condexpr keys on.
type Clause interface {
	Tag() string
}

// Unit is the closed enum of temporal bucketing granularities.
type Unit string

const (
	UnitDefault      Unit = "default"
	UnitMinute       Unit = "minute"
	UnitMinuteOfHour Unit = "minute-of-hour"
	UnitHour         Unit = "hour"
	UnitHourOfDay    Unit = "hour-of-day"
	UnitDay          Unit = "day"
	UnitDayOfWeek    Unit = "day-of-week"
	UnitDayOfMonth   Unit = "day-of-month"
	UnitDayOfYear    Unit = "day-of-year"
	UnitWeek         Unit = "week"
	UnitWeekOfYear   Unit = "week-of-year"
	UnitMonth        Unit = "month"
	UnitMonthOfYear  Unit = "month-of-year"
	UnitQuarter      Unit = "quarter"
	UnitQuarterYear  Unit = "quarter-of-year"
	UnitYear         Unit = "year"
)

// AllUnits enumerates the closed set of §3 Temporal Units, in the
// order spec.md lists them. Used by validation and by tests that
// assert every unit round-trips through the synthesizer.
var AllUnits = []Unit{
	UnitDefault, UnitMinute, UnitMinuteOfHour, UnitHour, UnitHourOfDay,
	UnitDay, UnitDayOfWeek, UnitDayOfMonth, UnitDayOfYear,
	UnitWeek, UnitWeekOfYear, UnitMonth, UnitMonthOfYear,
	UnitQuarter, UnitQuarterYear, UnitYear,
}

// IsValid reports whether u is one of the closed set of supported units.
func (u Unit) IsValid() bool {
	for _, v := range AllUnits {
		if v == u {
			return true
		}
	}
	return false
}

// FieldID references a field by its resolver id: ["field-id", 7].
type FieldID struct {
	ID int
}

func (*FieldID) Tag() string { return "field-id" }

// FieldLiteral names a field that does not need resolver lookup, used
// for columns synthesized earlier in the pipeline (e.g. an aggregation
// result referenced in ORDER BY): ["field-literal", "total"].
type FieldLiteral struct {
	Name string
}

func (*FieldLiteral) Tag() string { return "field-literal" }

// DatetimeField wraps a field reference with a bucketing unit:
// ["datetime-field", ["field-id", 7], "day"].
type DatetimeField struct {
	Inner Clause
	Unit  Unit
}

func (*DatetimeField) Tag() string { return "datetime-field" }

// Value is a literal scalar operand. Val holds the decoded JSON value
// as is; translators pass it through without type-specific formatting.
type Value struct {
	Val any
}

func (*Value) Tag() string { return "value" }

// AbsoluteDatetime is a literal instant, optionally bucketed to a unit
// so it can be compared against a bucketed datetime-field.
type AbsoluteDatetime struct {
	Timestamp string // RFC3339 or date-only, as supplied by the caller
	Unit      Unit
}

func (*AbsoluteDatetime) Tag() string { return "absolute-datetime" }

// RelativeDatetime normalizes to an AbsoluteDatetime at compile time:
// "now + Amount*Unit".
type RelativeDatetime struct {
	Amount int
	Unit   Unit
}

func (*RelativeDatetime) Tag() string { return "relative-datetime" }

// CompareOp enumerates the closed comparison set from spec.md §3.
type CompareOp string

const (
	CompareEQ      CompareOp = "="
	CompareNEQ     CompareOp = "!="
	CompareLT      CompareOp = "<"
	CompareGT      CompareOp = ">"
	CompareLTE     CompareOp = "<="
	CompareGTE     CompareOp = ">="
	CompareBetween CompareOp = "between"
)

// Comparison is a binary (or, for between, ternary) comparison clause.
// Between stores its bounds in Lower/Upper; all other ops use Right.
type Comparison struct {
	Op    CompareOp
	Left  Clause
	Right Clause // nil for between
	Lower Clause // between only
	Upper Clause // between only
}

func (c *Comparison) Tag() string { return string(c.Op) }

// StringMatchOp enumerates the closed string-match set.
type StringMatchOp string

const (
	MatchContains    StringMatchOp = "contains"
	MatchStartsWith  StringMatchOp = "starts-with"
	MatchEndsWith    StringMatchOp = "ends-with"
)

// StringMatch models contains/starts-with/ends-with, each with an
// optional case-sensitivity flag (default true per spec.md §3) and a
// Not flag carrying the "::not" sentinel §4.3 describes for negated
// string matches, since the target engine only allows $not against a
// regex value, never as a top-level match key.
type StringMatch struct {
	Op            StringMatchOp
	Field         Clause
	Pattern       Clause
	CaseSensitive bool
	Not           bool
}

func (m *StringMatch) Tag() string { return string(m.Op) }

// BoolOp enumerates the boolean connectives.
type BoolOp string

const (
	BoolAnd BoolOp = "and"
	BoolOr  BoolOp = "or"
	BoolNot BoolOp = "not"
)

// Boolean models and/or (variadic Args) and not (single Args[0]).
type Boolean struct {
	Op   BoolOp
	Args []Clause
}

func (b *Boolean) Tag() string { return string(b.Op) }

// AggOp enumerates the closed aggregation set from spec.md §3.
type AggOp string

const (
	AggCount      AggOp = "count"
	AggAvg        AggOp = "avg"
	AggDistinct   AggOp = "distinct"
	AggSum        AggOp = "sum"
	AggMin        AggOp = "min"
	AggMax        AggOp = "max"
	AggSumWhere   AggOp = "sum-where"
	AggCountWhere AggOp = "count-where"
	AggShare      AggOp = "share"
)

// Aggregation is one entry of Query.Aggregations. Arg is the field
// argument (nil for bare count); Pred is the predicate clause for
// sum-where/count-where/share. Name is filled in by Normalize and is
// never empty once a Query has been normalized.
type Aggregation struct {
	Op   AggOp
	Arg  Clause
	Pred Clause
	Name string
	// Index is this aggregation's position within Query.Aggregations,
	// assigned by Normalize. It is what disambiguates the generated
	// name ("sum", "sum_1", ...) and what AggregationRef.Index points to.
	Index int
}

func (a *Aggregation) Tag() string { return "aggregation" }

// AggregationOptions wraps an aggregation clause to attach a
// caller-chosen display name: ["aggregation-options", <agg>, {"name": "total"}].
// It is unwrapped into Aggregation.Name during decoding and never
// survives as its own node past that point.
type AggregationOptions struct {
	Aggregation *Aggregation
	Name        string
}

func (*AggregationOptions) Tag() string { return "aggregation-options" }

// AggregationRef refers back to the Index'th entry of the query's
// aggregation list, e.g. from an ORDER BY clause. Name is resolved by
// Normalize so that later stages never need the enclosing Query to
// translate a reference — see DESIGN.md's resolution of the "current
// query" dynamic-scope design note.
type AggregationRef struct {
	Index int
	Name  string
}

func (*AggregationRef) Tag() string { return "aggregation" }
