package api

import (
	"context"
	"errors"

	"github.com/kasuganosora/joinorder/pkg/parser"
	"github.com/kasuganosora/joinorder/pkg/statistics"
)

// DefaultCardinality is assumed for tables without row count statistics
const DefaultCardinality = 1000

// QueryFromSQL extracts the join graph of a SELECT statement and annotates it
// with cardinalities and selectivities from the statistics provider
func (o *Optimizer) QueryFromSQL(ctx context.Context, sql string) (*Query, error) {
	jq, err := parser.ExtractJoinGraph(sql)
	if err != nil {
		if errors.Is(err, parser.ErrUnsupported) {
			return nil, NewError(ErrCodeNotSupported, "query cannot be reordered", err)
		}
		return nil, NewError(ErrCodeParse, "failed to parse query", err)
	}

	logger := o.GetLogger()
	q := &Query{Relations: make([]RelationSpec, 0, len(jq.Tables))}
	for _, t := range jq.Tables {
		rows, err := o.rowCount(ctx, t.QualifiedName())
		if err != nil {
			return nil, err
		}
		q.Relations = append(q.Relations, RelationSpec{Label: t.Label(), Cardinality: rows})
	}

	for _, pair := range jq.Pairs() {
		left, _ := jq.Table(pair.Left)
		right, _ := jq.Table(pair.Right)
		sel := 1.0
		for _, p := range pair.Predicates {
			s, err := statistics.EstimateSelectivity(ctx, o.stats,
				left.QualifiedName(), p.LeftColumn, right.QualifiedName(), p.RightColumn,
				o.config.DefaultSelectivity)
			if err != nil {
				return nil, NewError(ErrCodeStats, "failed to estimate selectivity of "+p.String(), err)
			}
			sel *= s
		}
		logger.Debug("join %s-%s selectivity %g from %d predicates", pair.Left, pair.Right, sel, len(pair.Predicates))
		q.Joins = append(q.Joins, JoinSpec{Left: pair.Left, Right: pair.Right, Selectivity: sel})
	}
	return q, nil
}

// OptimizeSQL optimizes the join order of a SELECT statement
func (o *Optimizer) OptimizeSQL(ctx context.Context, sql string) (*Result, error) {
	q, err := o.QueryFromSQL(ctx, sql)
	if err != nil {
		return nil, err
	}
	return o.Optimize(ctx, q)
}

func (o *Optimizer) rowCount(ctx context.Context, table string) (uint64, error) {
	if o.stats == nil {
		return DefaultCardinality, nil
	}
	rows, err := o.stats.RowCount(ctx, table)
	if errors.Is(err, statistics.ErrNotFound) {
		o.GetLogger().Warn("no row count for table %s, assuming %d", table, DefaultCardinality)
		return DefaultCardinality, nil
	}
	if err != nil {
		return 0, NewError(ErrCodeStats, "failed to read row count of "+table, err)
	}
	return rows, nil
}
