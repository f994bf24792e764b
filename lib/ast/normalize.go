package ast

import "fmt"

// Normalize assigns a stable Index and, for unnamed aggregations, a
// generated Name to every entry of q.Aggregations, then resolves every
// AggregationRef reachable from the query to the Name it points at.
//
// This is the explicit alternative to the source system's dynamic
// "current query" context (spec.md §9 design note (a)): once Normalize
// has run, every AggregationRef carries its own answer and no later
// stage needs the enclosing Query to translate one.
func Normalize(q *Query) error {
	if q == nil || q.normalized {
		return nil
	}

	seen := make(map[AggOp]int, len(q.Aggregations))
	for i, agg := range q.Aggregations {
		agg.Index = i
		if agg.Name != "" {
			seen[agg.Op]++
			continue
		}
		if seen[agg.Op] == 0 {
			agg.Name = string(agg.Op)
		} else {
			agg.Name = fmt.Sprintf("%s_%d", agg.Op, i)
		}
		seen[agg.Op]++
	}

	var resolveErr error
	resolve := func(c Clause) {
		if resolveErr != nil {
			return
		}
		ref, ok := c.(*AggregationRef)
		if !ok {
			return
		}
		if ref.Index < 0 || ref.Index >= len(q.Aggregations) {
			resolveErr = fmt.Errorf("ast: aggregation reference index %d out of range (query has %d aggregations)", ref.Index, len(q.Aggregations))
			return
		}
		ref.Name = q.Aggregations[ref.Index].Name
	}

	walkClause(q.Filter, resolve)
	for _, c := range q.Breakout {
		walkClause(c, resolve)
	}
	for _, c := range q.Fields {
		walkClause(c, resolve)
	}
	for _, item := range q.OrderBy {
		walkClause(item.Clause, resolve)
	}
	for _, agg := range q.Aggregations {
		walkClause(agg.Arg, resolve)
		walkClause(agg.Pred, resolve)
	}
	if resolveErr != nil {
		return resolveErr
	}

	q.normalized = true
	return nil
}

// walkClause visits c and every clause reachable from it.
func walkClause(c Clause, visit func(Clause)) {
	if c == nil {
		return
	}
	visit(c)
	switch n := c.(type) {
	case *DatetimeField:
		walkClause(n.Inner, visit)
	case *Comparison:
		walkClause(n.Left, visit)
		walkClause(n.Right, visit)
		walkClause(n.Lower, visit)
		walkClause(n.Upper, visit)
	case *StringMatch:
		walkClause(n.Field, visit)
		walkClause(n.Pattern, visit)
	case *Boolean:
		for _, a := range n.Args {
			walkClause(a, visit)
		}
	case *Aggregation:
		walkClause(n.Arg, visit)
		walkClause(n.Pred, visit)
	}
}
