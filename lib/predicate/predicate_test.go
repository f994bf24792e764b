package predicate

import (
	"testing"

	"github.com/queryforge/mbql-mongo/lib/ast"
)

func field(id int) ast.Clause { return &ast.FieldID{ID: id} }
func lit(v any) ast.Clause    { return &ast.Value{Val: v} }

func TestPushNegationPassesThroughPositive(t *testing.T) {
	c := &ast.Comparison{Op: ast.CompareEQ, Left: field(1), Right: lit(5)}
	got := PushNegation(c)
	cmp, ok := got.(*ast.Comparison)
	if !ok || cmp.Op != ast.CompareEQ {
		t.Fatalf("expected unchanged eq comparison, got %#v", got)
	}
}

func TestPushNegationFlipsLeafComparison(t *testing.T) {
	not := &ast.Boolean{Op: ast.BoolNot, Args: []ast.Clause{
		&ast.Comparison{Op: ast.CompareLT, Left: field(1), Right: lit(5)},
	}}
	got := PushNegation(not)
	cmp, ok := got.(*ast.Comparison)
	if !ok {
		t.Fatalf("expected *Comparison, got %T", got)
	}
	if cmp.Op != ast.CompareGTE {
		t.Fatalf("not(<) = %q, want %q", cmp.Op, ast.CompareGTE)
	}
}

func TestPushNegationBetweenBecomesOr(t *testing.T) {
	not := &ast.Boolean{Op: ast.BoolNot, Args: []ast.Clause{
		&ast.Comparison{Op: ast.CompareBetween, Left: field(1), Lower: lit(10), Upper: lit(20)},
	}}
	got := PushNegation(not)
	or, ok := got.(*ast.Boolean)
	if !ok || or.Op != ast.BoolOr || len(or.Args) != 2 {
		t.Fatalf("expected a 2-arg or, got %#v", got)
	}
	lt, ok := or.Args[0].(*ast.Comparison)
	if !ok || lt.Op != ast.CompareLT {
		t.Fatalf("first branch = %#v, want <", or.Args[0])
	}
	gt, ok := or.Args[1].(*ast.Comparison)
	if !ok || gt.Op != ast.CompareGT {
		t.Fatalf("second branch = %#v, want >", or.Args[1])
	}
}

func TestPushNegationDeMorganAndOr(t *testing.T) {
	not := &ast.Boolean{Op: ast.BoolNot, Args: []ast.Clause{
		&ast.Boolean{Op: ast.BoolAnd, Args: []ast.Clause{
			&ast.Comparison{Op: ast.CompareEQ, Left: field(1), Right: lit(1)},
			&ast.Comparison{Op: ast.CompareEQ, Left: field(2), Right: lit(2)},
		}},
	}}
	got := PushNegation(not)
	or, ok := got.(*ast.Boolean)
	if !ok || or.Op != ast.BoolOr {
		t.Fatalf("not(and(...)) should become or(...), got %#v", got)
	}
	for _, arg := range or.Args {
		cmp, ok := arg.(*ast.Comparison)
		if !ok || cmp.Op != ast.CompareNEQ {
			t.Fatalf("expected each branch negated to !=, got %#v", arg)
		}
	}
}

func TestPushNegationDoubleNegationCancels(t *testing.T) {
	inner := &ast.Comparison{Op: ast.CompareEQ, Left: field(1), Right: lit(1)}
	doubleNot := &ast.Boolean{Op: ast.BoolNot, Args: []ast.Clause{
		&ast.Boolean{Op: ast.BoolNot, Args: []ast.Clause{inner}},
	}}
	got := PushNegation(doubleNot)
	cmp, ok := got.(*ast.Comparison)
	if !ok || cmp.Op != ast.CompareEQ {
		t.Fatalf("double negation should cancel back to eq, got %#v", got)
	}
}

func TestPushNegationStringMatchTogglesNot(t *testing.T) {
	not := &ast.Boolean{Op: ast.BoolNot, Args: []ast.Clause{
		&ast.StringMatch{Op: ast.MatchContains, Field: field(1), Pattern: lit("x"), CaseSensitive: true},
	}}
	got := PushNegation(not)
	m, ok := got.(*ast.StringMatch)
	if !ok || !m.Not {
		t.Fatalf("expected negated string match with Not=true, got %#v", got)
	}
}
