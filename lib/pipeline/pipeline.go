// Package pipeline is the Pipeline Assembler (spec.md §4.6): it
// composes the stages every other compiler package produces into a
// single ordered pipeline, in the fixed order initial projection ->
// filter -> breakout+aggregation -> order -> fields -> limit -> page,
// and tracks the projections list describing the terminal column
// order alongside it.
package pipeline

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/queryforge/mbql-mongo/lib/aggregate"
	"github.com/queryforge/mbql-mongo/lib/ast"
	"github.com/queryforge/mbql-mongo/lib/compileerr"
	"github.com/queryforge/mbql-mongo/lib/lvalue"
	"github.com/queryforge/mbql-mongo/lib/matchstage"
	"github.com/queryforge/mbql-mongo/lib/schema"
)

// Result is the compiler's external output (spec.md §6).
type Result struct {
	Projections []string
	Query       []bson.D
	Collection  string
	MBQL        bool
}

// Compile translates q into Result. resolver answers field-id lookups;
// tables resolves q.SourceTable to a collection name.
func Compile(q *ast.Query, resolver schema.FieldResolver, tables schema.TableResolver) (Result, error) {
	if err := ast.Normalize(q); err != nil {
		return Result{}, compileerr.Wrap(compileerr.KindInvalidQuery, q, err)
	}
	collection, err := tables.Collection(q.SourceTable)
	if err != nil {
		return Result{}, compileerr.Wrap(compileerr.KindInvalidQuery, q, err)
	}

	d := &lvalue.Dispatcher{Resolver: resolver}
	var query []bson.D
	var projections []string

	if stage, fields, err := initialProjectionStage(q, d); err != nil {
		return Result{}, err
	} else if stage != nil {
		query = append(query, stage)
		projections = fields
	}

	if q.Filter != nil {
		matchDoc, err := matchstage.Translate(q.Filter, d)
		if err != nil {
			return Result{}, err
		}
		query = append(query, bson.D{{Key: "$match", Value: matchDoc}})
	}

	if len(q.Breakout) > 0 || len(q.Aggregations) > 0 {
		stages, fields, err := groupStages(q, d)
		if err != nil {
			return Result{}, err
		}
		query = append(query, stages...)
		projections = fields
	}

	if len(q.OrderBy) > 0 {
		stage, err := orderStage(q, d)
		if err != nil {
			return Result{}, err
		}
		query = append(query, stage)
	}

	if len(q.Fields) > 0 {
		stage, fields, err := fieldsStage(q, d)
		if err != nil {
			return Result{}, err
		}
		query = append(query, stage)
		projections = fields
	}

	stages, err := limitAndPageStages(q)
	if err != nil {
		return Result{}, err
	}
	query = append(query, stages...)

	if err := validate(query); err != nil {
		return Result{}, err
	}

	return Result{Projections: projections, Query: query, Collection: collection, MBQL: true}, nil
}

// initialProjectionStage collects every distinct field-id and
// datetime-field reachable anywhere in q and emits the one $project
// stage that binds each to its initial rvalue, so every later stage
// can address flat, already-projected names only (spec.md §4.1's
// rationale). Returns a nil stage when q references no fields at all.
func initialProjectionStage(q *ast.Query, d *lvalue.Dispatcher) (bson.D, []string, error) {
	clauses := collectFields(q)
	if len(clauses) == 0 {
		return nil, nil, nil
	}
	doc := make(bson.D, 0, len(clauses))
	fields := make([]string, 0, len(clauses))
	for _, c := range clauses {
		lv, err := d.LValue(c)
		if err != nil {
			return nil, nil, err
		}
		rv, err := d.InitialRValue(c)
		if err != nil {
			return nil, nil, err
		}
		doc = append(doc, bson.E{Key: lv, Value: rv})
		fields = append(fields, lv)
	}
	return bson.D{{Key: "$project", Value: doc}}, fields, nil
}

// collectFields walks every clause reachable from q and returns, in
// discovery order and deduplicated, every *ast.FieldID, *ast.FieldLiteral
// and *ast.DatetimeField it finds. A DatetimeField is collected whole
// without descending into its Inner: the bucketed column is the thing
// that needs projecting, not the raw field underneath it.
func collectFields(q *ast.Query) []ast.Clause {
	var collected []ast.Clause
	seen := map[string]bool{}

	visit := func(c ast.Clause) {
		var key string
		switch n := c.(type) {
		case *ast.FieldID:
			key = fmt.Sprintf("field-id:%d", n.ID)
		case *ast.FieldLiteral:
			key = "field-literal:" + n.Name
		case *ast.DatetimeField:
			key = fmt.Sprintf("datetime-field:%s:%s", innerKey(n.Inner), n.Unit)
		default:
			return
		}
		if seen[key] {
			return
		}
		seen[key] = true
		collected = append(collected, c)
	}

	walkFields(q.Filter, visit)
	for _, c := range q.Breakout {
		walkFields(c, visit)
	}
	for _, c := range q.Fields {
		walkFields(c, visit)
	}
	for _, item := range q.OrderBy {
		walkFields(item.Clause, visit)
	}
	for _, agg := range q.Aggregations {
		walkFields(agg.Arg, visit)
		walkFields(agg.Pred, visit)
	}
	return collected
}

func innerKey(c ast.Clause) string {
	switch n := c.(type) {
	case *ast.FieldID:
		return fmt.Sprintf("field-id:%d", n.ID)
	case *ast.FieldLiteral:
		return "field-literal:" + n.Name
	default:
		return fmt.Sprintf("%T", c)
	}
}

// walkFields visits c and every clause reachable from it, except that
// it never descends below a *ast.DatetimeField.
func walkFields(c ast.Clause, visit func(ast.Clause)) {
	if c == nil {
		return
	}
	visit(c)
	switch n := c.(type) {
	case *ast.DatetimeField:
		// handled wholesale by visit; Inner is not a separate column.
	case *ast.Comparison:
		walkFields(n.Left, visit)
		walkFields(n.Right, visit)
		walkFields(n.Lower, visit)
		walkFields(n.Upper, visit)
	case *ast.StringMatch:
		walkFields(n.Field, visit)
		walkFields(n.Pattern, visit)
	case *ast.Boolean:
		for _, a := range n.Args {
			walkFields(a, visit)
		}
	case *ast.Aggregation:
		walkFields(n.Arg, visit)
		walkFields(n.Pred, visit)
	}
}

// groupStages emits the breakout+aggregation block (spec.md §4.6
// steps a-e): a synthetic grouping $project, the $group itself, an
// optional $addFields for lifted post-bindings, a stabilizing $sort,
// and the terminal $project that un-nests "$_id.<lvalue>" breakouts
// alongside the aggregation results.
func groupStages(q *ast.Query, d *lvalue.Dispatcher) ([]bson.D, []string, error) {
	groupSub := bson.D{}
	breakoutLValues := make([]string, 0, len(q.Breakout))
	for _, c := range q.Breakout {
		lv, err := d.LValue(c)
		if err != nil {
			return nil, nil, err
		}
		rv, err := d.RValue(c)
		if err != nil {
			return nil, nil, err
		}
		groupSub = append(groupSub, bson.E{Key: lv, Value: rv})
		breakoutLValues = append(breakoutLValues, lv)
	}

	groupProj := bson.D{{Key: "___group", Value: groupSub}}
	passed := map[string]bool{}
	var reductions bson.D
	var post bson.D
	for _, agg := range q.Aggregations {
		exp, err := aggregate.Expand(agg, d)
		if err != nil {
			return nil, nil, err
		}
		groupProj = append(groupProj, exp.GroupFields...)
		// A reduction without a helper field reads its argument column
		// directly in $group, so that column is passed through here.
		if len(exp.GroupFields) == 0 && agg.Arg != nil {
			if lv, err := d.LValue(agg.Arg); err == nil && !passed[lv] {
				passed[lv] = true
				groupProj = append(groupProj, bson.E{Key: lv, Value: true})
			}
		}
		reductions = append(reductions, exp.Reductions...)
		post = append(post, exp.Post...)
	}

	var idExpr any
	if len(q.Breakout) > 0 {
		idExpr = "$___group"
	}
	groupDoc := bson.D{{Key: "_id", Value: idExpr}}
	groupDoc = append(groupDoc, reductions...)

	stages := []bson.D{
		{{Key: "$project", Value: groupProj}},
		{{Key: "$group", Value: groupDoc}},
	}
	if len(post) > 0 {
		stages = append(stages, bson.D{{Key: "$addFields", Value: post}})
	}
	stages = append(stages, bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}})

	finalProj := bson.D{{Key: "_id", Value: false}}
	projections := make([]string, 0, len(breakoutLValues)+len(q.Aggregations))
	for _, lv := range breakoutLValues {
		finalProj = append(finalProj, bson.E{Key: lv, Value: "$_id." + lv})
		projections = append(projections, lv)
	}
	for _, agg := range q.Aggregations {
		finalProj = append(finalProj, bson.E{Key: agg.Name, Value: true})
		projections = append(projections, agg.Name)
	}
	stages = append(stages, bson.D{{Key: "$project", Value: finalProj}})

	return stages, projections, nil
}

// orderStage appends {$sort: {lvalue: 1|-1, ...}} preserving input order.
func orderStage(q *ast.Query, d *lvalue.Dispatcher) (bson.D, error) {
	sortDoc := bson.D{}
	for _, item := range q.OrderBy {
		lv, err := d.LValue(item.Clause)
		if err != nil {
			return nil, err
		}
		dir := 1
		if item.Direction == ast.Descending {
			dir = -1
		}
		sortDoc = append(sortDoc, bson.E{Key: lv, Value: dir})
	}
	return bson.D{{Key: "$sort", Value: sortDoc}}, nil
}

// fieldsStage appends a $project suppressing _id and naming each
// requested field, overriding any prior implicit projection order.
func fieldsStage(q *ast.Query, d *lvalue.Dispatcher) (bson.D, []string, error) {
	doc := bson.D{{Key: "_id", Value: false}}
	fields := make([]string, 0, len(q.Fields))
	for _, c := range q.Fields {
		lv, err := d.LValue(c)
		if err != nil {
			return nil, nil, err
		}
		doc = append(doc, bson.E{Key: lv, Value: true})
		fields = append(fields, lv)
	}
	return bson.D{{Key: "$project", Value: doc}}, fields, nil
}

// limitAndPageStages appends $limit, or $skip+$limit for page-based
// pagination (spec.md §4.6, scenario 5).
func limitAndPageStages(q *ast.Query) ([]bson.D, error) {
	var stages []bson.D
	if q.Page != nil {
		if q.Page.Items <= 0 {
			return nil, compileerr.New(compileerr.KindInvalidQuery, q.Page, "pipeline: page.items must be positive, got %d", q.Page.Items)
		}
		if q.Page.Page <= 0 {
			return nil, compileerr.New(compileerr.KindInvalidQuery, q.Page, "pipeline: page.page must be positive, got %d", q.Page.Page)
		}
		skip := q.Page.Items * (q.Page.Page - 1)
		if skip > 0 {
			stages = append(stages, bson.D{{Key: "$skip", Value: skip}})
		}
		stages = append(stages, bson.D{{Key: "$limit", Value: q.Page.Items}})
		return stages, nil
	}
	if q.Limit != nil {
		if *q.Limit <= 0 {
			return nil, compileerr.New(compileerr.KindInvalidQuery, q.Limit, "pipeline: limit must be positive, got %d", *q.Limit)
		}
		stages = append(stages, bson.D{{Key: "$limit", Value: *q.Limit}})
	}
	return stages, nil
}

// validate enforces the Pipeline Stage invariant from spec.md §3:
// every stage map has exactly one key. A violation here means the
// compiler itself is buggy, not that the input query was invalid.
func validate(query []bson.D) error {
	for i, stage := range query {
		if len(stage) != 1 {
			return compileerr.New(compileerr.KindPipelineSchemaViolation, stage, "pipeline: stage %d has %d keys, want exactly 1", i, len(stage))
		}
	}
	return nil
}
