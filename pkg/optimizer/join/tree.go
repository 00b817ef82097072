package join

import "strings"

// JoinType 连接类型
type JoinType int

const (
	Bowtie JoinType = iota // 带谓词的连接
	Cross                  // 笛卡尔积
)

// String 返回连接符号
func (t JoinType) String() string {
	if t == Cross {
		return "x"
	}
	return "⋈"
}

// JoinNode 连接树节点
// 叶子节点只有 Relation；unit 标记单关系子树，渲染时带括号
type JoinNode struct {
	Relation Relation
	Type     JoinType
	Left     *JoinNode
	Right    *JoinNode
	unit     bool
}

// IsLeaf 是否为叶子节点
func (n *JoinNode) IsLeaf() bool {
	return n.Left == nil && n.Right == nil
}

// JoinTree 连接树，用于展示连接顺序和计算 C_out
type JoinTree struct {
	root *JoinNode
}

// NewTree 创建只包含一个关系的树
func NewTree(r Relation) *JoinTree {
	return &JoinTree{root: &JoinNode{Relation: r, unit: true}}
}

// JoinRelations 连接两个关系
func JoinRelations(a, b Relation, t JoinType) *JoinTree {
	return &JoinTree{root: &JoinNode{
		Type:  t,
		Left:  &JoinNode{Relation: a},
		Right: &JoinNode{Relation: b},
	}}
}

// JoinTrees 连接两棵树
func JoinTrees(l, r *JoinTree, t JoinType) *JoinTree {
	return &JoinTree{root: &JoinNode{Type: t, Left: l.root, Right: r.root}}
}

// LeftDeep 按顺序构造左深树，空输入返回 nil
func LeftDeep(order []Relation, t JoinType) *JoinTree {
	switch len(order) {
	case 0:
		return nil
	case 1:
		return NewTree(order[0])
	}
	tree := JoinRelations(order[0], order[1], t)
	for _, r := range order[2:] {
		tree = JoinTrees(tree, NewTree(r), t)
	}
	return tree
}

// Root 返回根节点
func (t *JoinTree) Root() *JoinNode {
	return t.root
}

// Expr 返回树的表达式，如 ((R1⋈R2)⋈(R5))
func (t *JoinTree) Expr() string {
	var sb strings.Builder
	writeExpr(&sb, t.root)
	return sb.String()
}

func writeExpr(sb *strings.Builder, n *JoinNode) {
	if n.IsLeaf() {
		if n.unit {
			sb.WriteString("(" + n.Relation.Label + ")")
		} else {
			sb.WriteString(n.Relation.Label)
		}
		return
	}
	sb.WriteString("(")
	writeExpr(sb, n.Left)
	sb.WriteString(n.Type.String())
	writeExpr(sb, n.Right)
	sb.WriteString(")")
}

// Labels 从左到右返回叶子标签
func (t *JoinTree) Labels() []string {
	var labels []string
	for _, r := range t.Relations() {
		labels = append(labels, r.Label)
	}
	return labels
}

// Relations 从左到右返回叶子关系
func (t *JoinTree) Relations() []Relation {
	var out []Relation
	var walk func(n *JoinNode)
	walk = func(n *JoinNode) {
		if n.IsLeaf() {
			out = append(out, n.Relation)
			return
		}
		walk(n.Left)
		walk(n.Right)
	}
	walk(t.root)
	return out
}

// Cout 计算 C_out：所有连接节点输出基数之和
// 节点基数 = 叶子基数之积 * 叶子两两之间的选择率之积，缺失的选择率视为 1；
// 笛卡尔积同样应用选择率
func Cout(t *JoinTree, cards map[string]uint64, sels map[string]map[string]float64) float64 {
	if t == nil {
		return 0
	}
	cost, _ := cout(t.root, cards, sels)
	return cost
}

// cout 返回子树代价和子树包含的标签
func cout(n *JoinNode, cards map[string]uint64, sels map[string]map[string]float64) (float64, []string) {
	if n.IsLeaf() {
		return 0, []string{n.Relation.Label}
	}
	lc, ll := cout(n.Left, cards, sels)
	rc, rl := cout(n.Right, cards, sels)
	labels := append(append([]string(nil), ll...), rl...)
	return outputSize(labels, cards, sels) + lc + rc, labels
}

func outputSize(labels []string, cards map[string]uint64, sels map[string]map[string]float64) float64 {
	size := 1.0
	for _, l := range labels {
		size *= float64(cards[l])
	}
	for i := 0; i < len(labels); i++ {
		for j := i + 1; j < len(labels); j++ {
			size *= pairSelectivity(sels, labels[i], labels[j])
		}
	}
	return size
}

func pairSelectivity(sels map[string]map[string]float64, a, b string) float64 {
	if s, ok := sels[a][b]; ok {
		return s
	}
	if s, ok := sels[b][a]; ok {
		return s
	}
	return 1
}

// TreeStatistics 导出基表基数和连接选择率，作为 Cout 的输入
// 应在 IKKBZ 修改图之前调用，之后边上的选择率会被改写
func (g *JoinGraph) TreeStatistics() (map[string]uint64, map[string]map[string]float64) {
	cards := make(map[string]uint64, g.baseCount)
	sels := make(map[string]map[string]float64)
	for _, a := range g.BaseRelations() {
		la := g.Label(a)
		cards[la] = g.relations[a].Cardinality
		for _, b := range g.adj[a].order {
			e := g.adj[a].edges[b]
			if e.Hidden || g.IsCompound(b) {
				continue
			}
			if sels[la] == nil {
				sels[la] = make(map[string]float64)
			}
			sels[la][g.Label(b)] = e.Selectivity
		}
	}
	return cards, sels
}
