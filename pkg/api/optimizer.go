package api

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/kasuganosora/joinorder/pkg/config"
	"github.com/kasuganosora/joinorder/pkg/optimizer/join"
	"github.com/kasuganosora/joinorder/pkg/plancache"
	"github.com/kasuganosora/joinorder/pkg/statistics"
	"github.com/kasuganosora/joinorder/pkg/workerpool"
)

// Optimizer plans left-deep join orders for queries
type Optimizer struct {
	mu     sync.RWMutex
	config *OptimizerConfig
	cache  plancache.Cache
	stats  statistics.Provider
	logger Logger
}

// OptimizerConfig contains configuration options for the Optimizer
type OptimizerConfig struct {
	MaxRelations          int
	MaxIterations         int
	TryAllRoots           bool    // run IKKBZ for every root when the query has none
	FallbackToClauseOrder bool    // return the clause order instead of failing
	DefaultSelectivity    float64 // used by OptimizeSQL when no statistics are available
	Parallelism           int     // roots evaluated concurrently; 0 or 1 is sequential
	Cache                 plancache.Cache
	Stats                 statistics.Provider
	Logger                Logger
}

// Result is the outcome of one optimization
type Result struct {
	RunID        string               `json:"run_id"`
	Root         string               `json:"root"`
	Order        []string             `json:"order"`
	JoinSequence []string             `json:"join_sequence"`
	Cost         float64              `json:"cost"`
	OutputCost   float64              `json:"output_cost"`
	Expr         string               `json:"expr"`
	Fallback     bool                 `json:"fallback,omitempty"`
	Cached       bool                 `json:"cached,omitempty"`
	Candidates   []plancache.RootCost `json:"candidates,omitempty"`

	tree *join.JoinTree
}

// Tree returns the left-deep join tree of the result
func (r *Result) Tree() *join.JoinTree {
	return r.tree
}

// NewOptimizer creates an Optimizer; a nil config uses the defaults
func NewOptimizer(cfg *OptimizerConfig) *Optimizer {
	if cfg == nil {
		defaults := config.DefaultConfig().Optimizer
		cfg = &OptimizerConfig{
			MaxRelations:          defaults.MaxRelations,
			MaxIterations:         defaults.MaxIterations,
			TryAllRoots:           defaults.TryAllRoots,
			FallbackToClauseOrder: defaults.FallbackToClauseOrder,
			DefaultSelectivity:    defaults.DefaultSelectivity,
			Parallelism:           defaults.Parallelism,
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = NewDefaultLogger(LogInfo)
	}
	if cfg.DefaultSelectivity <= 0 || cfg.DefaultSelectivity > 1 {
		cfg.DefaultSelectivity = config.DefaultConfig().Optimizer.DefaultSelectivity
	}

	return &Optimizer{
		config: cfg,
		cache:  cfg.Cache,
		stats:  cfg.Stats,
		logger: cfg.Logger,
	}
}

// NewOptimizerFromConfig builds the logger, plan cache and statistics provider from cfg
func NewOptimizerFromConfig(cfg *config.Config) (*Optimizer, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	logger, err := NewLogger(cfg.Log.Backend, cfg.Log.Level, nil)
	if err != nil {
		return nil, err
	}

	cache, err := plancache.New(cfg.Cache, logger)
	if err != nil {
		return nil, NewError(ErrCodeCache, "failed to open plan cache", err)
	}

	stats, err := statistics.New(cfg.Stats)
	if err != nil {
		if cache != nil {
			cache.Close()
		}
		return nil, NewError(ErrCodeStats, "failed to open statistics provider", err)
	}

	return NewOptimizer(&OptimizerConfig{
		MaxRelations:          cfg.Optimizer.MaxRelations,
		MaxIterations:         cfg.Optimizer.MaxIterations,
		TryAllRoots:           cfg.Optimizer.TryAllRoots,
		FallbackToClauseOrder: cfg.Optimizer.FallbackToClauseOrder,
		DefaultSelectivity:    cfg.Optimizer.DefaultSelectivity,
		Parallelism:           cfg.Optimizer.Parallelism,
		Cache:                 cache,
		Stats:                 stats,
		Logger:                logger,
	}), nil
}

// SetLogger sets the logger
func (o *Optimizer) SetLogger(logger Logger) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logger = logger
}

// GetLogger returns the logger
func (o *Optimizer) GetLogger() Logger {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.logger
}

// Close releases the plan cache and the statistics connection
func (o *Optimizer) Close() error {
	var firstErr error
	if o.cache != nil {
		if err := o.cache.Close(); err != nil {
			firstErr = NewError(ErrCodeCache, "failed to close plan cache", err)
		}
	}
	if c, ok := o.stats.(io.Closer); ok {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = NewError(ErrCodeStats, "failed to close statistics provider", err)
		}
	}
	return firstErr
}

// Optimize computes a left-deep join order for q
func (o *Optimizer) Optimize(ctx context.Context, q *Query) (*Result, error) {
	logger := o.GetLogger()

	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, NewError(ErrCodeCanceled, "optimization canceled", err)
	}

	g, err := q.Graph(
		join.WithMaxRelations(o.config.MaxRelations),
		join.WithMaxIterations(o.config.MaxIterations),
		join.WithTracer(logger),
	)
	if err != nil {
		return nil, err
	}

	key := o.cacheKey(q)
	if plan := o.lookup(key); plan != nil {
		logger.Debug("plan cache hit for %s", key)
		return o.newResult(g, plan, true), nil
	}

	roots, err := o.roots(g, q)
	if err != nil {
		return nil, err
	}

	plans, errs, err := o.evaluate(ctx, g, roots)
	if err != nil {
		return nil, err
	}

	var best *plancache.Plan
	var lastErr error
	candidates := make([]plancache.RootCost, 0, len(roots))
	for i, plan := range plans {
		if errs[i] != nil {
			logger.Warn("IKKBZ failed for root %s: %v", g.Label(roots[i]), errs[i])
			lastErr = errs[i]
			continue
		}
		candidates = append(candidates, plancache.RootCost{Root: plan.Root, Cost: plan.Cost})
		if best == nil || plan.Cost < best.Cost {
			best = plan
		}
	}

	if best == nil {
		if !o.config.FallbackToClauseOrder {
			return nil, WrapError(lastErr, ErrCodePlanningFailed, "no join order found")
		}
		logger.Warn("falling back to clause order: %v", lastErr)
		res := o.newResult(g, clauseOrderPlan(g, q), false)
		res.Fallback = true
		return res, nil
	}

	if len(roots) > 1 {
		best.Candidates = candidates
	}
	res := o.newResult(g, best, false)
	best.OutputCost = res.OutputCost

	if o.cache != nil {
		if err := o.cache.Set(key, best); err != nil {
			logger.Warn("failed to cache plan: %v", err)
		}
	}
	logger.Info("join order %v cost %g (run %s)", res.Order, res.Cost, res.RunID)
	return res, nil
}

// evaluate runs IKKBZ for every root, concurrently when Parallelism > 1
// plans and errs are indexed like roots
func (o *Optimizer) evaluate(ctx context.Context, g *join.JoinGraph, roots []join.RelationID) ([]*plancache.Plan, []error, error) {
	plans := make([]*plancache.Plan, len(roots))
	errs := make([]error, len(roots))

	workers := o.config.Parallelism
	if workers > len(roots) {
		workers = len(roots)
	}
	if workers <= 1 {
		for i, root := range roots {
			if err := ctx.Err(); err != nil {
				return nil, nil, NewError(ErrCodeCanceled, "optimization canceled", err)
			}
			plans[i], errs[i] = runIKKBZ(g, root)
		}
		return plans, errs, nil
	}

	pool, err := workerpool.New(workers)
	if err != nil {
		return nil, nil, NewError(ErrCodeInternal, "failed to start worker pool", err)
	}
	defer pool.Close()

	tasks := make([]workerpool.Task, len(roots))
	for i, root := range roots {
		i, root := i, root
		tasks[i] = func(ctx context.Context) error {
			var err error
			plans[i], err = runIKKBZ(g, root)
			return err
		}
	}
	errs = pool.RunAll(ctx, tasks)
	if err := ctx.Err(); err != nil {
		return nil, nil, NewError(ErrCodeCanceled, "optimization canceled", err)
	}
	return plans, errs, nil
}

// roots returns the relations IKKBZ is run for
func (o *Optimizer) roots(g *join.JoinGraph, q *Query) ([]join.RelationID, error) {
	if q.Root != "" {
		id, ok := g.Lookup(q.Root)
		if !ok {
			return nil, NewError(ErrCodeRootNotFound, "root "+q.Root+" not found", nil)
		}
		return []join.RelationID{id}, nil
	}

	base := g.BaseRelations()
	if o.config.TryAllRoots {
		return base, nil
	}
	return base[:1], nil
}

func (o *Optimizer) cacheKey(q *Query) string {
	parts := append(q.canonical(),
		fmt.Sprintf("all=%t", o.config.TryAllRoots),
		fmt.Sprintf("iter=%d", o.config.MaxIterations),
	)
	return plancache.Fingerprint(parts...)
}

func (o *Optimizer) lookup(key string) *plancache.Plan {
	if o.cache == nil {
		return nil
	}
	plan, ok, err := o.cache.Get(key)
	if err != nil {
		o.GetLogger().Warn("plan cache lookup failed: %v", err)
		return nil
	}
	if !ok {
		return nil
	}
	return plan
}

// runIKKBZ runs the optimizer for one root on a copy of g
func runIKKBZ(g *join.JoinGraph, root join.RelationID) (*plancache.Plan, error) {
	result, err := join.IKKBZ(g.Clone(), root)
	if err != nil {
		return nil, err
	}
	order, err := result.Chain()
	if err != nil {
		return nil, err
	}
	return &plancache.Plan{
		Root:  result.Label(root),
		Order: result.Labels(order),
		Cost:  result.Cost(order[1:]),
	}, nil
}

func clauseOrderPlan(g *join.JoinGraph, q *Query) *plancache.Plan {
	order := q.ClauseOrder()
	ids := make([]join.RelationID, 0, len(order)-1)
	for _, label := range order[1:] {
		id, _ := g.Lookup(label)
		ids = append(ids, id)
	}
	return &plancache.Plan{
		Root:  order[0],
		Order: order,
		Cost:  g.Cost(ids),
	}
}

func (o *Optimizer) newResult(g *join.JoinGraph, plan *plancache.Plan, cached bool) *Result {
	tree := leftDeepTree(g, plan.Order)
	cards, sels := g.TreeStatistics()

	res := &Result{
		RunID:        uuid.NewString(),
		Root:         plan.Root,
		Order:        plan.Order,
		JoinSequence: plan.Order[1:],
		Cost:         plan.Cost,
		OutputCost:   join.Cout(tree, cards, sels),
		Cached:       cached,
		Candidates:   plan.Candidates,
		tree:         tree,
	}
	if tree != nil {
		res.Expr = tree.Expr()
	}
	return res
}

// leftDeepTree joins the relations in order; a relation without a predicate
// to any earlier relation is joined with a cross product
func leftDeepTree(g *join.JoinGraph, order []string) *join.JoinTree {
	ids := make([]join.RelationID, len(order))
	for i, label := range order {
		ids[i], _ = g.Lookup(label)
	}

	joinType := func(i int) join.JoinType {
		for _, prev := range ids[:i] {
			if g.HasJoin(prev, ids[i]) {
				return join.Bowtie
			}
		}
		return join.Cross
	}

	switch len(ids) {
	case 0:
		return nil
	case 1:
		return join.NewTree(g.Relation(ids[0]))
	}

	tree := join.JoinRelations(g.Relation(ids[0]), g.Relation(ids[1]), joinType(1))
	for i := 2; i < len(ids); i++ {
		tree = join.JoinTrees(tree, join.NewTree(g.Relation(ids[i])), joinType(i))
	}
	return tree
}
