// Package condexpr is the Condition Translator (spec.md §4.4): the
// expression form of comparisons needed inside a $cond branch, as
// opposed to matchstage's document form. It shares the De Morgan
// pushdown pass in lib/predicate with lib/matchstage but every
// operator it emits is array-valued expression syntax ({$eq: [a, b]}),
// never a document-keyed predicate.
package condexpr

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/queryforge/mbql-mongo/lib/ast"
	"github.com/queryforge/mbql-mongo/lib/compileerr"
	"github.com/queryforge/mbql-mongo/lib/lvalue"
	"github.com/queryforge/mbql-mongo/lib/predicate"
)

// Translate compiles c, a predicate clause appearing inside a $cond,
// into its expression form.
func Translate(c ast.Clause, d *lvalue.Dispatcher) (any, error) {
	return translate(predicate.PushNegation(c), d)
}

func translate(c ast.Clause, d *lvalue.Dispatcher) (any, error) {
	switch n := c.(type) {
	case *ast.Boolean:
		switch n.Op {
		case ast.BoolAnd, ast.BoolOr:
			parts := make(bson.A, 0, len(n.Args))
			for _, a := range n.Args {
				part, err := translate(a, d)
				if err != nil {
					return nil, err
				}
				parts = append(parts, part)
			}
			key := "$and"
			if n.Op == ast.BoolOr {
				key = "$or"
			}
			return bson.D{{Key: key, Value: parts}}, nil
		default:
			return nil, compileerr.New(compileerr.KindInvalidQuery, c, "condexpr: top-level $not cannot appear in an expression predicate")
		}
	case *ast.Comparison:
		return translateComparison(n, d)
	case *ast.StringMatch:
		return translateStringMatch(n, d)
	default:
		return nil, compileerr.New(compileerr.KindInvalidQuery, c, "condexpr: clause %T cannot appear in an expression predicate", c)
	}
}

func translateComparison(n *ast.Comparison, d *lvalue.Dispatcher) (any, error) {
	left, err := d.RValue(n.Left)
	if err != nil {
		return nil, err
	}
	if n.Op == ast.CompareBetween {
		lo, err := d.RValue(n.Lower)
		if err != nil {
			return nil, err
		}
		hi, err := d.RValue(n.Upper)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "$gte", Value: bson.A{left, lo}}},
			bson.D{{Key: "$lte", Value: bson.A{left, hi}}},
		}}}, nil
	}
	op, err := exprOp(n.Op)
	if err != nil {
		return nil, err
	}
	right, err := d.RValue(n.Right)
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: op, Value: bson.A{left, right}}}, nil
}

func exprOp(op ast.CompareOp) (string, error) {
	switch op {
	case ast.CompareEQ:
		return "$eq", nil
	case ast.CompareNEQ:
		return "$ne", nil
	case ast.CompareLT:
		return "$lt", nil
	case ast.CompareGT:
		return "$gt", nil
	case ast.CompareLTE:
		return "$lte", nil
	case ast.CompareGTE:
		return "$gte", nil
	default:
		return "", compileerr.New(compileerr.KindInvalidQuery, op, "condexpr: unsupported comparison operator %q", op)
	}
}

// translateStringMatch emits $indexOfCP-based predicates for
// contains/starts-with, and a positioned $substrCP comparison for
// ends-with (spec.md §4.4): "$substrCP positioned at strlen(source) -
// strlen(needle)". Both sides go through $toLower first when the
// match is case-insensitive.
func translateStringMatch(n *ast.StringMatch, d *lvalue.Dispatcher) (any, error) {
	source, err := d.RValue(n.Field)
	if err != nil {
		return nil, err
	}
	needle, err := d.RValue(n.Pattern)
	if err != nil {
		return nil, err
	}
	if !n.CaseSensitive {
		source = bson.D{{Key: "$toLower", Value: source}}
		needle = bson.D{{Key: "$toLower", Value: needle}}
	}

	var expr any
	switch n.Op {
	case ast.MatchContains:
		expr = bson.D{{Key: "$gte", Value: bson.A{
			bson.D{{Key: "$indexOfCP", Value: bson.A{source, needle}}}, 0,
		}}}
	case ast.MatchStartsWith:
		expr = bson.D{{Key: "$eq", Value: bson.A{
			bson.D{{Key: "$indexOfCP", Value: bson.A{source, needle}}}, 0,
		}}}
	case ast.MatchEndsWith:
		sourceLen := bson.D{{Key: "$strLenCP", Value: source}}
		needleLen := bson.D{{Key: "$strLenCP", Value: needle}}
		start := bson.D{{Key: "$subtract", Value: bson.A{sourceLen, needleLen}}}
		tail := bson.D{{Key: "$substrCP", Value: bson.A{source, start, needleLen}}}
		expr = bson.D{{Key: "$eq", Value: bson.A{tail, needle}}}
	default:
		return nil, compileerr.New(compileerr.KindInvalidQuery, n, "condexpr: unknown string-match operator %q", n.Op)
	}

	if n.Not {
		return bson.D{{Key: "$not", Value: bson.A{expr}}}, nil
	}
	return expr, nil
}
