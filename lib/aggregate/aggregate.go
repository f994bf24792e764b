// Package aggregate is the Aggregation Expander (spec.md §4.5): it
// decomposes one aggregation clause into the bindings the Pipeline
// Assembler threads through three stages — a helper value computed
// once per document ahead of $group, the $group reduction itself, and
// an optional $addFields binding applied after $group.
package aggregate

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/queryforge/mbql-mongo/lib/ast"
	"github.com/queryforge/mbql-mongo/lib/compileerr"
	"github.com/queryforge/mbql-mongo/lib/condexpr"
	"github.com/queryforge/mbql-mongo/lib/lvalue"
)

// Expansion is the (reduction-bindings, post-bindings) pair spec.md
// §4.5 describes, plus the GroupFields an accumulator needs
// materialized ahead of $group when its reduction is conditional
// (sum-where, count-where, share, count(arg)) rather than a bare
// pass-through of an already-projected field.
type Expansion struct {
	// GroupFields are additional top-level bindings for the synthetic
	// grouping $project stage (spec.md §4.6: "plus the per-aggregation
	// rvalues used later"), keyed by a helper name private to this
	// aggregation.
	GroupFields bson.D
	// Reductions are the $group accumulator bindings this aggregation
	// contributes.
	Reductions bson.D
	// Post are the $addFields bindings lifted after $group. Empty for
	// aggregations with no post step.
	Post bson.D
}

// Expand compiles agg (already named and indexed by ast.Normalize)
// into its Expansion.
func Expand(agg *ast.Aggregation, d *lvalue.Dispatcher) (Expansion, error) {
	switch agg.Op {
	case ast.AggCount:
		return expandCount(agg, d)
	case ast.AggAvg:
		return expandReducer(agg, d, "$avg")
	case ast.AggSum:
		return expandReducer(agg, d, "$sum")
	case ast.AggMin:
		return expandReducer(agg, d, "$min")
	case ast.AggMax:
		return expandReducer(agg, d, "$max")
	case ast.AggDistinct:
		return expandDistinct(agg, d)
	case ast.AggSumWhere:
		return expandSumWhere(agg.Name, agg.Arg, agg.Pred, d)
	case ast.AggCountWhere:
		// count-where pred ~ sum-where 1 pred (spec.md §4.5).
		return expandSumWhere(agg.Name, &ast.Value{Val: int64(1)}, agg.Pred, d)
	case ast.AggShare:
		return expandShare(agg, d)
	default:
		return Expansion{}, compileerr.New(compileerr.KindInvalidQuery, agg, "aggregate: unsupported aggregation %q", agg.Op)
	}
}

// expandCount handles both bare count ({$sum: 1}) and count(arg),
// which sums 1 for every document where arg is present/truthy.
func expandCount(agg *ast.Aggregation, d *lvalue.Dispatcher) (Expansion, error) {
	if agg.Arg == nil {
		return Expansion{Reductions: bson.D{{Key: agg.Name, Value: bson.D{{Key: "$sum", Value: 1}}}}}, nil
	}
	rv, err := d.RValue(agg.Arg)
	if err != nil {
		return Expansion{}, err
	}
	helper := agg.Name + "_cond"
	cond := bson.D{{Key: "$cond", Value: bson.D{
		{Key: "if", Value: rv}, {Key: "then", Value: 1}, {Key: "else", Value: 0},
	}}}
	return Expansion{
		GroupFields: bson.D{{Key: helper, Value: cond}},
		Reductions:  bson.D{{Key: agg.Name, Value: bson.D{{Key: "$sum", Value: "$" + helper}}}},
	}, nil
}

// expandReducer handles avg/sum/min/max: "the obvious reducer"
// applied directly to the argument's rvalue, no helper field needed.
func expandReducer(agg *ast.Aggregation, d *lvalue.Dispatcher, op string) (Expansion, error) {
	if agg.Arg == nil {
		return Expansion{}, compileerr.New(compileerr.KindInvalidQuery, agg, "aggregate: %s requires an argument", agg.Op)
	}
	rv, err := d.RValue(agg.Arg)
	if err != nil {
		return Expansion{}, err
	}
	return Expansion{Reductions: bson.D{{Key: agg.Name, Value: bson.D{{Key: op, Value: rv}}}}}, nil
}

// expandDistinct implements distinct arg -> {$addToSet: rvalue(arg)}
// in $group, with a post step that unwraps the set's cardinality.
//
// The post step's literal "$count" reference is the documented quirk
// from spec.md §9 Open Questions, preserved rather than fixed: it
// should read "$" + agg.Name, and only happens to produce the right
// answer when the query also carries a separate "count" aggregation
// whose group field coincidentally holds the same row count.
func expandDistinct(agg *ast.Aggregation, d *lvalue.Dispatcher) (Expansion, error) {
	if agg.Arg == nil {
		return Expansion{}, compileerr.New(compileerr.KindInvalidQuery, agg, "aggregate: distinct requires an argument")
	}
	rv, err := d.RValue(agg.Arg)
	if err != nil {
		return Expansion{}, err
	}
	return Expansion{
		Reductions: bson.D{{Key: agg.Name, Value: bson.D{{Key: "$addToSet", Value: rv}}}},
		Post:       bson.D{{Key: agg.Name, Value: bson.D{{Key: "$size", Value: "$count"}}}},
	}, nil
}

// expandSumWhere handles sum-where arg pred, and is reused by
// count-where (arg fixed to the literal 1) and by share's first half.
func expandSumWhere(name string, arg, pred ast.Clause, d *lvalue.Dispatcher) (Expansion, error) {
	rv, err := d.RValue(arg)
	if err != nil {
		return Expansion{}, err
	}
	condVal, err := condexpr.Translate(pred, d)
	if err != nil {
		return Expansion{}, err
	}
	helper := name + "_cond"
	cond := bson.D{{Key: "$cond", Value: bson.D{
		{Key: "if", Value: condVal}, {Key: "then", Value: rv}, {Key: "else", Value: 0},
	}}}
	return Expansion{
		GroupFields: bson.D{{Key: helper, Value: cond}},
		Reductions:  bson.D{{Key: name, Value: bson.D{{Key: "$sum", Value: "$" + helper}}}},
	}, nil
}

// expandShare expands share pred into two fresh reductions — a
// sum-where-1 numerator and a bare count denominator — plus the one
// post binding that divides them (spec.md §4.5, scenario 4).
func expandShare(agg *ast.Aggregation, d *lvalue.Dispatcher) (Expansion, error) {
	numeratorName := agg.Name + "_cw"
	denominatorName := agg.Name + "_count"

	numerator, err := expandSumWhere(numeratorName, &ast.Value{Val: int64(1)}, agg.Pred, d)
	if err != nil {
		return Expansion{}, err
	}

	out := Expansion{
		GroupFields: numerator.GroupFields,
		Reductions: append(bson.D{},
			append(numerator.Reductions, bson.E{Key: denominatorName, Value: bson.D{{Key: "$sum", Value: 1}}})...,
		),
		Post: bson.D{{Key: agg.Name, Value: bson.D{{Key: "$divide", Value: bson.A{"$" + numeratorName, "$" + denominatorName}}}}},
	}
	return out, nil
}
