package join

import "math"

// Factor 序列的基数放大/缩小因子 T：每个关系 selectivity*cardinality 的乘积
// 空序列返回 1
func (g *JoinGraph) Factor(seq []RelationID) float64 {
	t := 1.0
	for _, r := range seq {
		t *= g.Selectivity(r) * g.Cardinality(r)
	}
	return t
}

// Cost 左深管道按序执行的代价 C
// 复合关系先按 history 展开为基表，代价总是在基表上计算：
// C([]) = 0, C(x ++ rest) = T(x) + T(x) * C(rest)
func (g *JoinGraph) Cost(seq []RelationID) float64 {
	bases := g.expand(seq)

	// 从右往左累积，等价于 T(x1) + T(x1)T(x2) + ... 的前缀积之和
	c := 0.0
	for i := len(bases) - 1; i >= 0; i-- {
		t := g.Selectivity(bases[i]) * g.Cardinality(bases[i])
		c = t + t*c
	}
	return c
}

// Rank 单个关系的秩 (T(n) - 1) / C(n)
// T 接近 1 的关系秩接近 0，应该更早连接
// T 与 C 同时溢出为 +Inf 时结果记为 +Inf，保证排序比较一致
func (g *JoinGraph) Rank(n RelationID) float64 {
	seq := []RelationID{n}
	r := (g.Factor(seq) - 1) / g.Cost(seq)
	if math.IsNaN(r) {
		return math.Inf(1)
	}
	return r
}

// expand 将复合关系展开为组成它的基表
func (g *JoinGraph) expand(seq []RelationID) []RelationID {
	out := make([]RelationID, 0, len(seq))
	for _, r := range seq {
		if g.IsCompound(r) {
			out = append(out, g.history[r]...)
			continue
		}
		out = append(out, r)
	}
	return out
}
