// Package lvalue implements the polymorphic-over-clause-tag formatter
// spec.md §4.1/§4.9 describes: given a clause, it produces the
// escaped target name (LValue), the expression used to define that
// name in the first projection stage (InitialRValue), and the
// expression used to reference it in every later stage (RValue).
package lvalue

import (
	"fmt"
	"time"

	"github.com/queryforge/mbql-mongo/lib/ast"
	"github.com/queryforge/mbql-mongo/lib/compileerr"
	"github.com/queryforge/mbql-mongo/lib/escape"
	"github.com/queryforge/mbql-mongo/lib/schema"
	"github.com/queryforge/mbql-mongo/lib/temporal"
)

// Dispatcher binds a FieldResolver (and, for relative-datetime
// normalization, a clock) to the lvalue/rvalue family of functions.
type Dispatcher struct {
	Resolver schema.FieldResolver
	// Now supplies the instant relative-datetime clauses normalize
	// against. Defaults to time.Now when unset.
	Now func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// LValue returns the escaped, non-blank identifier this clause is
// known as from the first projection stage onward.
func (d *Dispatcher) LValue(c ast.Clause) (string, error) {
	switch n := c.(type) {
	case *ast.FieldID:
		parts, err := schema.Path(d.Resolver, n.ID)
		if err != nil {
			return "", compileerr.Wrap(compileerr.KindFieldResolutionFailure, n, err)
		}
		return escape.EscapePath(parts), nil
	case *ast.FieldLiteral:
		if n.Name == "" {
			return "", fmt.Errorf("lvalue: field-literal has a blank name")
		}
		return n.Name, nil
	case *ast.DatetimeField:
		inner, err := d.LValue(n.Inner)
		if err != nil {
			return "", err
		}
		return escape.WithUnit(inner, string(n.Unit)), nil
	case *ast.Aggregation:
		if n.Name == "" {
			return "", fmt.Errorf("lvalue: aggregation has no assigned name (query was not normalized)")
		}
		return n.Name, nil
	case *ast.AggregationRef:
		if n.Name == "" {
			return "", fmt.Errorf("lvalue: aggregation reference has no resolved name (query was not normalized)")
		}
		return n.Name, nil
	default:
		return "", fmt.Errorf("lvalue: clause %T has no lvalue", c)
	}
}

// InitialRValue returns the expression used to define this clause's
// column in the very first $project stage, which always addresses raw
// source documents.
func (d *Dispatcher) InitialRValue(c ast.Clause) (any, error) {
	switch n := c.(type) {
	case *ast.FieldID:
		parts, err := schema.Path(d.Resolver, n.ID)
		if err != nil {
			return nil, compileerr.Wrap(compileerr.KindFieldResolutionFailure, n, err)
		}
		return "$" + escape.DottedPath(parts), nil
	case *ast.FieldLiteral:
		return "$" + n.Name, nil
	case *ast.DatetimeField:
		source, err := d.InitialRValue(n.Inner)
		if err != nil {
			return nil, err
		}
		baseType, err := d.baseTypeOf(n.Inner)
		if err != nil {
			return nil, err
		}
		return temporal.SynthesizeField(source, baseType, n.Unit)
	default:
		return nil, fmt.Errorf("lvalue: clause %T cannot appear in the initial projection", c)
	}
}

// baseTypeOf resolves the base type of a field-bearing clause so the
// temporal synthesizer knows whether to coerce a UNIX timestamp. A
// field-literal (already a projected, presumably native date column)
// is treated as a plain DateTime.
func (d *Dispatcher) baseTypeOf(c ast.Clause) (schema.Type, error) {
	switch n := c.(type) {
	case *ast.FieldID:
		f, err := d.Resolver.Resolve(n.ID)
		if err != nil {
			return "", compileerr.Wrap(compileerr.KindFieldResolutionFailure, n, err)
		}
		return f.BaseType, nil
	case *ast.FieldLiteral:
		return schema.TypeDateTime, nil
	default:
		return "", fmt.Errorf("lvalue: clause %T is not a datetime source", c)
	}
}

// RValue returns the expression used to reference this clause from
// any stage after the first projection: a literal for value/absolute
// datetime/relative-datetime clauses, "$"+LValue for anything else
// that names a projected column.
func (d *Dispatcher) RValue(c ast.Clause) (any, error) {
	switch n := c.(type) {
	case *ast.Value:
		return n.Val, nil
	case *ast.AbsoluteDatetime:
		t, err := temporal.ParseTimestamp(n.Timestamp)
		if err != nil {
			return nil, err
		}
		return temporal.SynthesizeAbsolute(t, n.Unit)
	case *ast.RelativeDatetime:
		abs, err := temporal.RelativeToAbsolute(n.Amount, n.Unit, d.now())
		if err != nil {
			return nil, err
		}
		t, err := temporal.ParseTimestamp(abs.Timestamp)
		if err != nil {
			return nil, err
		}
		return temporal.SynthesizeAbsolute(t, abs.Unit)
	default:
		lv, err := d.LValue(c)
		if err != nil {
			return nil, err
		}
		return "$" + lv, nil
	}
}
