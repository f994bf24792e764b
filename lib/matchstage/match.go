// Package matchstage is the Filter Translator (spec.md §4.3): it
// turns a filter clause into the document-form match predicate that
// fills a $match stage's value. It shares the De Morgan pushdown pass
// in lib/predicate with lib/condexpr but emits the document-form
// operators ($eq, $and, a bare regex value) rather than condexpr's
// expression-form ($eq as an array-valued operator).
package matchstage

import (
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/queryforge/mbql-mongo/lib/ast"
	"github.com/queryforge/mbql-mongo/lib/compileerr"
	"github.com/queryforge/mbql-mongo/lib/lvalue"
	"github.com/queryforge/mbql-mongo/lib/predicate"
)

// Translate compiles c into the match document addressed by a $match
// stage's value. c is run through predicate.PushNegation first so the
// emitter below never has to special-case a bare "not": by the time
// translate sees a node, not wraps only a leaf comparison or
// string-match, encoded as a flipped operator or a Not flag, never as
// a literal $not key at this level (spec.md §4.3).
func Translate(c ast.Clause, d *lvalue.Dispatcher) (bson.D, error) {
	return translate(predicate.PushNegation(c), d)
}

func translate(c ast.Clause, d *lvalue.Dispatcher) (bson.D, error) {
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
			// PushNegation never leaves a bare "not" at any reachable
			// position; a single "not" clause by itself reduces to
			// its leaf with the negation folded in, not a Boolean at all.
			return nil, compileerr.New(compileerr.KindInvalidQuery, c, "matchstage: top-level $not is not a legal match operator")
		}
	case *ast.Comparison:
		return translateComparison(n, d)
	case *ast.StringMatch:
		return translateStringMatch(n, d)
	default:
		return nil, compileerr.New(compileerr.KindInvalidQuery, c, "matchstage: clause %T cannot appear in a filter", c)
	}
}

func translateComparison(n *ast.Comparison, d *lvalue.Dispatcher) (bson.D, error) {
	lv, err := d.LValue(n.Left)
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
		return bson.D{{Key: lv, Value: bson.D{{Key: "$gte", Value: lo}, {Key: "$lte", Value: hi}}}}, nil
	}
	op, err := matchOp(n.Op)
	if err != nil {
		return nil, err
	}
	rv, err := d.RValue(n.Right)
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: lv, Value: bson.D{{Key: op, Value: rv}}}}, nil
}

func matchOp(op ast.CompareOp) (string, error) {
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
		return "", compileerr.New(compileerr.KindInvalidQuery, op, "matchstage: unsupported comparison operator %q", op)
	}
}

// translateStringMatch emits the regex value spec.md §4.3 describes:
// "(?i)" leading the pattern iff case-insensitive, "^"/"$" anchoring
// starts-with/ends-with, and the regex wrapped under $not — the one
// place $not is legal, since it sits in a value position rather than
// as a top-level match key — when the match was negated.
func translateStringMatch(n *ast.StringMatch, d *lvalue.Dispatcher) (bson.D, error) {
	lv, err := d.LValue(n.Field)
	if err != nil {
		return nil, err
	}
	needle, err := d.RValue(n.Pattern)
	if err != nil {
		return nil, err
	}
	s, ok := needle.(string)
	if !ok {
		return nil, compileerr.New(compileerr.KindInvalidQuery, n, "matchstage: %s pattern must be a string, got %T", n.Op, needle)
	}
	pattern := regexp.QuoteMeta(s)
	switch n.Op {
	case ast.MatchStartsWith:
		pattern = "^" + pattern
	case ast.MatchEndsWith:
		pattern = pattern + "$"
	case ast.MatchContains:
		// no anchors
	default:
		return nil, fmt.Errorf("matchstage: unknown string-match operator %q", n.Op)
	}
	if !n.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	regex := primitive.Regex{Pattern: pattern}

	var value any = regex
	if n.Not {
		value = bson.D{{Key: "$not", Value: regex}}
	}
	return bson.D{{Key: lv, Value: value}}, nil
}
