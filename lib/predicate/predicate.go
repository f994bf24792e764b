// Package predicate implements the De Morgan pushdown pass shared by
// lib/matchstage and lib/condexpr: both translators need every filter
// tree normalized so that "not" never wraps a boolean connective, only
// a leaf comparison or string-match, because the target aggregation
// engine's $not operator is only legal in a value position, never as a
// top-level match key (spec.md §4.3, §9).
package predicate

import "github.com/queryforge/mbql-mongo/lib/ast"

// PushNegation rewrites c into an equivalent clause with every "not"
// pushed down to a leaf. Non-boolean clauses pass through unchanged.
func PushNegation(c ast.Clause) ast.Clause {
	return push(c, false)
}

// push rewrites c under negate: when negate is true, c's logical
// negation is returned instead of c itself.
func push(c ast.Clause, negate bool) ast.Clause {
	switch n := c.(type) {
	case *ast.Boolean:
		switch n.Op {
		case ast.BoolNot:
			// not(x) rewrites to x under the opposite negation, so a
			// double negative cancels instead of nesting.
			return push(n.Args[0], !negate)
		case ast.BoolAnd, ast.BoolOr:
			op := n.Op
			if negate {
				op = flip(op)
			}
			args := make([]ast.Clause, len(n.Args))
			for i, a := range n.Args {
				args[i] = push(a, negate)
			}
			return &ast.Boolean{Op: op, Args: args}
		}
	case *ast.Comparison:
		if !negate {
			return n
		}
		if n.Op == ast.CompareBetween {
			// not(between(x, lo, hi)) == (x < lo) or (x > hi).
			return &ast.Boolean{Op: ast.BoolOr, Args: []ast.Clause{
				&ast.Comparison{Op: ast.CompareLT, Left: n.Left, Right: n.Lower},
				&ast.Comparison{Op: ast.CompareGT, Left: n.Left, Right: n.Upper},
			}}
		}
		return &ast.Comparison{Op: flipCompare(n.Op), Left: n.Left, Right: n.Right}
	case *ast.StringMatch:
		m := *n
		if negate {
			m.Not = !m.Not
		}
		return &m
	}
	// Any other clause kind (field reference, literal, aggregation,
	// ...) never appears directly under a boolean connective and has
	// no negation of its own.
	return c
}

func flip(op ast.BoolOp) ast.BoolOp {
	switch op {
	case ast.BoolAnd:
		return ast.BoolOr
	case ast.BoolOr:
		return ast.BoolAnd
	default:
		return op
	}
}

func flipCompare(op ast.CompareOp) ast.CompareOp {
	switch op {
	case ast.CompareEQ:
		return ast.CompareNEQ
	case ast.CompareNEQ:
		return ast.CompareEQ
	case ast.CompareLT:
		return ast.CompareGTE
	case ast.CompareGTE:
		return ast.CompareLT
	case ast.CompareGT:
		return ast.CompareLTE
	case ast.CompareLTE:
		return ast.CompareGT
	default:
		return op
	}
}
