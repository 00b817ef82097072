package api

import (
	"context"
	"math"
	"strings"

	"github.com/kasuganosora/joinorder/pkg/optimizer/join"
	"github.com/xlab/treeprint"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Explain optimizes q and returns a human readable plan
func (o *Optimizer) Explain(ctx context.Context, q *Query) (string, error) {
	res, err := o.Optimize(ctx, q)
	if err != nil {
		return "", err
	}
	return FormatResult(res), nil
}

// ExplainSQL optimizes a SELECT statement and returns a human readable plan
func (o *Optimizer) ExplainSQL(ctx context.Context, sql string) (string, error) {
	res, err := o.OptimizeSQL(ctx, sql)
	if err != nil {
		return "", err
	}
	return FormatResult(res), nil
}

// FormatResult renders a result with the join tree drawn below the summary
func FormatResult(res *Result) string {
	p := message.NewPrinter(language.English)

	var sb strings.Builder
	sb.WriteString("=== Join Order ===\n")
	p.Fprintf(&sb, "Run: %s\n", res.RunID)
	p.Fprintf(&sb, "Root: %s\n", res.Root)
	p.Fprintf(&sb, "Order: %s\n", strings.Join(res.Order, " -> "))
	p.Fprintf(&sb, "Cost: %s\n", formatNumber(p, res.Cost))
	p.Fprintf(&sb, "C_out: %s\n", formatNumber(p, res.OutputCost))
	if res.Fallback {
		sb.WriteString("Fallback: clause order\n")
	}
	if res.Cached {
		sb.WriteString("Cached: true\n")
	}

	if len(res.Candidates) > 0 {
		candidates := treeprint.NewWithRoot("Candidates")
		for _, c := range res.Candidates {
			candidates.AddNode(p.Sprintf("%s: %s", c.Root, formatNumber(p, c.Cost)))
		}
		sb.WriteString(candidates.String())
	}

	if tree := res.Tree(); tree != nil {
		plan := treeprint.NewWithRoot("Plan " + tree.Expr())
		addJoinNode(plan, tree.Root())
		sb.WriteString(plan.String())
	}
	return sb.String()
}

func addJoinNode(t treeprint.Tree, n *join.JoinNode) {
	if n == nil {
		return
	}
	if n.IsLeaf() {
		t.AddNode(n.Relation.String())
		return
	}
	branch := t.AddBranch(n.Type.String())
	addJoinNode(branch, n.Left)
	addJoinNode(branch, n.Right)
}

// formatNumber prints values that are integral up to rounding error with digit grouping
func formatNumber(p *message.Printer, v float64) string {
	r := math.Round(v)
	if math.Abs(r) < 1e15 && math.Abs(v-r) <= 1e-9*math.Max(1, math.Abs(v)) {
		return p.Sprintf("%d", int64(r))
	}
	return p.Sprintf("%.4g", v)
}
