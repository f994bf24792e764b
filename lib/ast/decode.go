package ast

import (
	"encoding/json"
	"fmt"

	"github.com/queryforge/mbql-mongo/lib/compileerr"
)

// DecodeQuery parses the wire form of a Query: a JSON object with
// MBQL-style clause arrays for filter/breakout/aggregation/fields and
// plain objects for order-by/page, then runs Normalize over the
// result so callers never see an un-normalized query.
func DecodeQuery(data []byte) (*Query, error) {
	var wire struct {
		SourceTable  int               `json:"source-table"`
		Filter       json.RawMessage   `json:"filter,omitempty"`
		Breakout     []json.RawMessage `json:"breakout,omitempty"`
		Aggregations []json.RawMessage `json:"aggregation,omitempty"`
		Fields       []json.RawMessage `json:"fields,omitempty"`
		OrderBy      []struct {
			Clause    json.RawMessage `json:"clause"`
			Direction OrderDirection  `json:"direction"`
		} `json:"order-by,omitempty"`
		Limit *int `json:"limit,omitempty"`
		Page  *struct {
			Page  int `json:"page"`
			Items int `json:"items"`
		} `json:"page,omitempty"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("ast: decode query: %w", err)
	}

	q := &Query{SourceTable: wire.SourceTable, Limit: wire.Limit}

	if len(wire.Filter) > 0 {
		c, err := DecodeClause(wire.Filter)
		if err != nil {
			return nil, err
		}
		q.Filter = c
	}
	for _, raw := range wire.Breakout {
		c, err := DecodeClause(raw)
		if err != nil {
			return nil, err
		}
		q.Breakout = append(q.Breakout, c)
	}
	for _, raw := range wire.Aggregations {
		c, err := DecodeClause(raw)
		if err != nil {
			return nil, err
		}
		agg, err := asAggregation(c)
		if err != nil {
			return nil, err
		}
		q.Aggregations = append(q.Aggregations, agg)
	}
	for _, raw := range wire.Fields {
		c, err := DecodeClause(raw)
		if err != nil {
			return nil, err
		}
		q.Fields = append(q.Fields, c)
	}
	for _, ob := range wire.OrderBy {
		c, err := DecodeClause(ob.Clause)
		if err != nil {
			return nil, err
		}
		dir := ob.Direction
		if dir == "" {
			dir = Ascending
		}
		q.OrderBy = append(q.OrderBy, OrderItem{Clause: c, Direction: dir})
	}
	if wire.Page != nil {
		q.Page = &Page{Page: wire.Page.Page, Items: wire.Page.Items}
	}

	if err := Normalize(q); err != nil {
		return nil, err
	}
	return q, nil
}

// asAggregation unwraps an aggregation-options wrapper if present and
// requires the underlying clause to be an *Aggregation.
func asAggregation(c Clause) (*Aggregation, error) {
	switch n := c.(type) {
	case *Aggregation:
		return n, nil
	case *AggregationOptions:
		n.Aggregation.Name = n.Name
		return n.Aggregation, nil
	default:
		return nil, fmt.Errorf("ast: expected aggregation clause, got %T", c)
	}
}

// DecodeClause decodes one clause: a tagged JSON array, or a bare
// scalar/null treated as a literal Value.
func DecodeClause(raw json.RawMessage) (Clause, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return &Value{Val: nil}, nil
	}

	var probe any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("ast: decode clause: %w", err)
	}

	items, isArray := probe.([]any)
	if !isArray {
		return &Value{Val: probe}, nil
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("ast: empty clause array")
	}
	tag, ok := items[0].(string)
	if !ok {
		return nil, fmt.Errorf("ast: clause tag must be a string, got %T", items[0])
	}

	var rawItems []json.RawMessage
	if err := json.Unmarshal(raw, &rawItems); err != nil {
		return nil, fmt.Errorf("ast: decode clause: %w", err)
	}
	args := rawItems[1:]

	switch tag {
	case "field-id":
		id, err := decodeInt(args, 0)
		if err != nil {
			return nil, err
		}
		return &FieldID{ID: id}, nil
	case "field-literal":
		name, err := decodeString(args, 0)
		if err != nil {
			return nil, err
		}
		return &FieldLiteral{Name: name}, nil
	case "datetime-field":
		inner, err := decodeClauseArg(args, 0)
		if err != nil {
			return nil, err
		}
		unit, err := decodeUnit(args, 1)
		if err != nil {
			return nil, err
		}
		return &DatetimeField{Inner: inner, Unit: unit}, nil
	case "value":
		var v any
		if len(args) > 0 {
			if err := json.Unmarshal(args[0], &v); err != nil {
				return nil, fmt.Errorf("ast: decode value: %w", err)
			}
		}
		return &Value{Val: v}, nil
	case "absolute-datetime":
		ts, err := decodeString(args, 0)
		if err != nil {
			return nil, err
		}
		unit := UnitDefault
		if len(args) > 1 {
			unit, err = decodeUnit(args, 1)
			if err != nil {
				return nil, err
			}
		}
		return &AbsoluteDatetime{Timestamp: ts, Unit: unit}, nil
	case "relative-datetime":
		amount, err := decodeInt(args, 0)
		if err != nil {
			return nil, err
		}
		unit, err := decodeUnit(args, 1)
		if err != nil {
			return nil, err
		}
		return &RelativeDatetime{Amount: amount, Unit: unit}, nil
	case string(CompareEQ), string(CompareNEQ), string(CompareLT), string(CompareGT), string(CompareLTE), string(CompareGTE):
		left, err := decodeClauseArg(args, 0)
		if err != nil {
			return nil, err
		}
		right, err := decodeClauseArg(args, 1)
		if err != nil {
			return nil, err
		}
		return &Comparison{Op: CompareOp(tag), Left: left, Right: right}, nil
	case string(CompareBetween):
		field, err := decodeClauseArg(args, 0)
		if err != nil {
			return nil, err
		}
		lower, err := decodeClauseArg(args, 1)
		if err != nil {
			return nil, err
		}
		upper, err := decodeClauseArg(args, 2)
		if err != nil {
			return nil, err
		}
		return &Comparison{Op: CompareBetween, Left: field, Lower: lower, Upper: upper}, nil
	case string(MatchContains), string(MatchStartsWith), string(MatchEndsWith):
		field, err := decodeClauseArg(args, 0)
		if err != nil {
			return nil, err
		}
		pattern, err := decodeClauseArg(args, 1)
		if err != nil {
			return nil, err
		}
		caseSensitive := true
		if len(args) > 2 {
			var opts struct {
				CaseSensitive *bool `json:"case-sensitive"`
			}
			if err := json.Unmarshal(args[2], &opts); err != nil {
				return nil, fmt.Errorf("ast: decode string-match options: %w", err)
			}
			if opts.CaseSensitive != nil {
				caseSensitive = *opts.CaseSensitive
			}
		}
		return &StringMatch{Op: StringMatchOp(tag), Field: field, Pattern: pattern, CaseSensitive: caseSensitive}, nil
	case string(BoolAnd), string(BoolOr):
		var kids []Clause
		for i := range args {
			c, err := decodeClauseArg(args, i)
			if err != nil {
				return nil, err
			}
			kids = append(kids, c)
		}
		return &Boolean{Op: BoolOp(tag), Args: kids}, nil
	case string(BoolNot):
		inner, err := decodeClauseArg(args, 0)
		if err != nil {
			return nil, err
		}
		return &Boolean{Op: BoolNot, Args: []Clause{inner}}, nil
	case string(AggCount), string(AggAvg), string(AggSum), string(AggMin), string(AggMax), string(AggDistinct):
		var arg Clause
		if len(args) > 0 {
			var err error
			arg, err = decodeClauseArg(args, 0)
			if err != nil {
				return nil, err
			}
		}
		return &Aggregation{Op: AggOp(tag), Arg: arg}, nil
	case string(AggSumWhere):
		arg, err := decodeClauseArg(args, 0)
		if err != nil {
			return nil, err
		}
		pred, err := decodeClauseArg(args, 1)
		if err != nil {
			return nil, err
		}
		return &Aggregation{Op: AggSumWhere, Arg: arg, Pred: pred}, nil
	case string(AggCountWhere), string(AggShare):
		pred, err := decodeClauseArg(args, 0)
		if err != nil {
			return nil, err
		}
		return &Aggregation{Op: AggOp(tag), Pred: pred}, nil
	case "aggregation-options":
		inner, err := decodeClauseArg(args, 0)
		if err != nil {
			return nil, err
		}
		agg, ok := inner.(*Aggregation)
		if !ok {
			return nil, fmt.Errorf("ast: aggregation-options wraps a non-aggregation clause %T", inner)
		}
		var opts struct {
			Name string `json:"name"`
		}
		if len(args) > 1 {
			if err := json.Unmarshal(args[1], &opts); err != nil {
				return nil, fmt.Errorf("ast: decode aggregation-options: %w", err)
			}
		}
		return &AggregationOptions{Aggregation: agg, Name: opts.Name}, nil
	case "aggregation":
		idx, err := decodeInt(args, 0)
		if err != nil {
			return nil, err
		}
		return &AggregationRef{Index: idx}, nil
	default:
		return nil, compileerr.New(compileerr.KindUnknownClause, nil, "ast: unknown clause %q", tag)
	}
}

func decodeClauseArg(args []json.RawMessage, i int) (Clause, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("ast: clause missing argument %d", i)
	}
	return DecodeClause(args[i])
}

func decodeInt(args []json.RawMessage, i int) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("ast: clause missing integer argument %d", i)
	}
	var v int
	if err := json.Unmarshal(args[i], &v); err != nil {
		return 0, fmt.Errorf("ast: decode integer argument: %w", err)
	}
	return v, nil
}

func decodeString(args []json.RawMessage, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("ast: clause missing string argument %d", i)
	}
	var v string
	if err := json.Unmarshal(args[i], &v); err != nil {
		return "", fmt.Errorf("ast: decode string argument: %w", err)
	}
	return v, nil
}

func decodeUnit(args []json.RawMessage, i int) (Unit, error) {
	s, err := decodeString(args, i)
	if err != nil {
		return "", err
	}
	u := Unit(s)
	if !u.IsValid() {
		return "", compileerr.New(compileerr.KindUnsupportedUnit, nil, "ast: unsupported temporal unit %q", s)
	}
	return u, nil
}
