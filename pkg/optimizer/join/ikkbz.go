package join

// IKKBZ 以 root 为根求解左深连接顺序
// 图被原地修改：结束后从根沿子节点遍历得到的链即为连接顺序，
// 需要保留原图时先调用 Clone
func IKKBZ(g *JoinGraph, root RelationID) (*JoinGraph, error) {
	if err := g.ToPrecedenceGraph(root); err != nil {
		return nil, err
	}

	iterations := 0
	for {
		chain, err := g.IsChain(root)
		if err != nil {
			return nil, err
		}
		if chain {
			break
		}

		subtree, err := g.ChainedSubtree(root)
		if err != nil {
			return nil, err
		}

		for {
			if iterations++; iterations > g.maxIterations {
				return nil, newError(ErrCodeIterationLimit, g.Label(subtree),
					"normalization did not converge after %d iterations", g.maxIterations)
			}
			done, err := g.normalized(root, subtree)
			if err != nil {
				return nil, err
			}
			if done {
				break
			}
		}

		if err := g.Merge(subtree); err != nil {
			return nil, err
		}
	}

	if err := g.denormalize(root); err != nil {
		return nil, err
	}
	return g, nil
}

// normalized 在 subtree 的后代中寻找第一对秩逆序的父子关系并合并
// 没有逆序时返回 true
func (g *JoinGraph) normalized(root, subtree RelationID) (bool, error) {
	dxs, err := g.Descendants(subtree)
	if err != nil {
		return false, err
	}

	for _, p := range dxs {
		if p == root || p == subtree {
			continue
		}
		for _, c := range g.Children(p) {
			if c == subtree {
				continue
			}
			if g.Rank(p) > g.Rank(c) {
				if _, err := g.Combine(p, c); err != nil {
					return false, err
				}
				return false, nil
			}
		}
	}
	return true, nil
}

// denormalize 展开链上所有复合关系，直到只剩基表
func (g *JoinGraph) denormalize(root RelationID) error {
	for iterations := 0; ; iterations++ {
		if iterations > g.maxIterations {
			return newError(ErrCodeIterationLimit, g.Label(root),
				"denormalization did not converge after %d iterations", g.maxIterations)
		}

		dxs, err := g.Descendants(root)
		if err != nil {
			return err
		}

		compound := InvalidRelation
		for _, x := range dxs {
			if g.IsCompound(x) {
				compound = x
				break
			}
		}
		if compound == InvalidRelation {
			return nil
		}
		if err := g.Uncombine(compound); err != nil {
			return err
		}
	}
}
