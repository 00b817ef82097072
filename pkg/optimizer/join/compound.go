package join

import "sort"

// Combine 将相邻的 a、b 合并为一个复合关系
// 调用方保证 a、b 在链上相邻（a 是 b 的父节点），这里不做校验
func (g *JoinGraph) Combine(a, b RelationID) (RelationID, error) {
	if !g.valid(a) {
		return InvalidRelation, g.unknown(a)
	}
	if !g.valid(b) {
		return InvalidRelation, g.unknown(b)
	}

	ra, rb := g.relations[a], g.relations[b]
	compound := Relation{
		Label:       ra.Label + rb.Label,
		Cardinality: mulCardinality(ra.Cardinality, rb.Cardinality),
	}

	history := make([]RelationID, 0, len(g.history[a])+len(g.history[b])+2)
	history = append(history, g.constituents(a)...)
	history = append(history, g.constituents(b)...)

	n := g.newRelation(compound, g.cardinality[a]*g.cardinality[b], history)
	// 先设置复合关系的选择率，后续加边不会覆盖
	g.seedSelectivity(n, g.Selectivity(a)*g.Selectivity(b))

	for _, x := range [2]RelationID{a, b} {
		for _, p := range g.Parents(x) {
			if p == n || p == a || p == b {
				continue
			}
			if err := g.AddJoin(p, n, g.Selectivity(n), Parent); err != nil {
				return InvalidRelation, err
			}
		}
		for _, c := range g.Children(x) {
			if c == a || c == b {
				continue
			}
			if err := g.AddJoin(n, c, g.Selectivity(c), Parent); err != nil {
				return InvalidRelation, err
			}
		}
	}

	g.RemoveRelation(a)
	g.RemoveRelation(b)

	g.trace("[IKKBZ] combine %s + %s -> %s (rank %.6g)", ra.Label, rb.Label, compound.Label, g.Rank(n))
	return n, nil
}

// constituents 返回关系展开后的基表列表
func (g *JoinGraph) constituents(id RelationID) []RelationID {
	if len(g.history[id]) > 0 {
		return g.history[id]
	}
	return []RelationID{id}
}

// Uncombine 把复合关系还原为原始的链
// 父节点 -> history[0] -> ... -> history[last] -> 子节点，边的选择率取后一个关系的选择率
func (g *JoinGraph) Uncombine(n RelationID) error {
	if !g.valid(n) {
		return g.unknown(n)
	}
	if len(g.history[n]) == 0 {
		return nil
	}

	parents := g.Parents(n)
	children := g.Children(n)
	history := g.history[n]
	g.RemoveRelation(n)

	first, last := history[0], history[len(history)-1]
	for _, p := range parents {
		if err := g.AddJoin(p, first, g.Selectivity(first), Parent); err != nil {
			return err
		}
	}
	for i := 1; i < len(history); i++ {
		if err := g.AddJoin(history[i-1], history[i], g.Selectivity(history[i]), Parent); err != nil {
			return err
		}
	}
	for _, c := range children {
		if err := g.AddJoin(last, c, g.Selectivity(c), Parent); err != nil {
			return err
		}
	}

	g.trace("[IKKBZ] uncombine %s -> %v", g.Label(n), g.Labels(history))
	return nil
}

// Unlink 隐藏 n 与其父节点、子节点之间的边
func (g *JoinGraph) Unlink(n RelationID) {
	for _, p := range g.Parents(n) {
		g.RemoveJoin(p, n)
	}
	for _, c := range g.Children(n) {
		g.RemoveJoin(n, c)
	}
}

// Merge 将 n 的所有后代按秩升序重新连接成挂在 n 下的一条链
// 秩相同时保持广度优先的顺序
func (g *JoinGraph) Merge(n RelationID) error {
	dxs, err := g.Descendants(n)
	if err != nil {
		return err
	}
	dxs = dxs[1:]

	ranks := make(map[RelationID]float64, len(dxs))
	for _, x := range dxs {
		ranks[x] = g.Rank(x)
	}
	sort.SliceStable(dxs, func(i, j int) bool {
		return ranks[dxs[i]] < ranks[dxs[j]]
	})

	for _, x := range dxs {
		g.Unlink(x)
	}

	prev := n
	for _, x := range dxs {
		if err := g.AddJoin(prev, x, g.Selectivity(x), Parent); err != nil {
			return err
		}
		prev = x
	}

	g.trace("[IKKBZ] merge below %s -> %v", g.Label(n), g.Labels(dxs))
	return nil
}
