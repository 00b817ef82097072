package join

import (
	"fmt"
	"math"
)

// DefaultMaxRelations 默认允许注册的基表数量上限
const DefaultMaxRelations = 1024

// DefaultMaxIterations 默认的规范化循环上限
const DefaultMaxIterations = 100000

// Tracer 调试输出接口，api.Logger 满足该接口
type Tracer interface {
	Debug(format string, args ...interface{})
}

// Option JoinGraph 选项
type Option func(*JoinGraph)

// WithMaxRelations 设置基表数量上限
func WithMaxRelations(n int) Option {
	return func(g *JoinGraph) {
		if n > 0 {
			g.maxRelations = n
		}
	}
}

// WithMaxIterations 设置 IKKBZ 驱动循环的迭代上限
func WithMaxIterations(n int) Option {
	return func(g *JoinGraph) {
		if n > 0 {
			g.maxIterations = n
		}
	}
}

// WithTracer 设置调试输出
func WithTracer(t Tracer) Option {
	return func(g *JoinGraph) {
		g.tracer = t
	}
}

// adjacency 单个关系的邻接表
// order 记录邻居首次插入的顺序，保证遍历结果确定
type adjacency struct {
	order []RelationID
	edges map[RelationID]*JoinEdge
}

// JoinGraph 连接图
// 关系存放在以 RelationID 为下标的数组中，边按 (a,b) 和 (b,a) 对称存储
type JoinGraph struct {
	relations   []Relation
	labels      map[string]RelationID // 仅基表
	adj         []adjacency
	cardinality []float64
	selectivity []float64
	selSet      []bool
	history     [][]RelationID
	baseCount   int
	root        RelationID

	maxRelations  int
	maxIterations int
	tracer        Tracer
}

// NewJoinGraph 创建连接图
func NewJoinGraph(opts ...Option) *JoinGraph {
	g := &JoinGraph{
		labels:        make(map[string]RelationID),
		root:          InvalidRelation,
		maxRelations:  DefaultMaxRelations,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddRelation 注册基表
// 相同标签相同基数时返回已有关系；基数不同时返回 DUPLICATE_RELATION
func (g *JoinGraph) AddRelation(label string, cardinality uint64) (RelationID, error) {
	if id, ok := g.labels[label]; ok {
		if g.relations[id].Cardinality != cardinality {
			return InvalidRelation, newError(ErrCodeDuplicateRelation, label,
				"relation already registered with cardinality %d, got %d",
				g.relations[id].Cardinality, cardinality)
		}
		return id, nil
	}
	if g.baseCount >= g.maxRelations {
		return InvalidRelation, newError(ErrCodeGraphTooLarge, label,
			"graph already holds %d relations", g.baseCount)
	}

	id := g.newRelation(Relation{Label: label, Cardinality: cardinality}, float64(cardinality), nil)
	g.labels[label] = id
	g.baseCount++
	return id, nil
}

// newRelation 在数组末尾追加关系（基表或复合关系）
func (g *JoinGraph) newRelation(r Relation, cardinality float64, history []RelationID) RelationID {
	id := RelationID(len(g.relations))
	g.relations = append(g.relations, r)
	g.adj = append(g.adj, adjacency{edges: make(map[RelationID]*JoinEdge)})
	g.cardinality = append(g.cardinality, cardinality)
	g.selectivity = append(g.selectivity, 0)
	g.selSet = append(g.selSet, false)
	g.history = append(g.history, history)
	return id
}

// valid 检查下标是否有效
func (g *JoinGraph) valid(id RelationID) bool {
	return id >= 0 && int(id) < len(g.relations)
}

func (g *JoinGraph) unknown(id RelationID) *Error {
	return newError(ErrCodeUnknownRelation, "", "relation id %d is not registered", id)
}

// Lookup 按标签查找基表
func (g *JoinGraph) Lookup(label string) (RelationID, bool) {
	id, ok := g.labels[label]
	return id, ok
}

// Relation 返回关系
func (g *JoinGraph) Relation(id RelationID) Relation {
	if !g.valid(id) {
		return Relation{}
	}
	return g.relations[id]
}

// Label 返回关系标签
func (g *JoinGraph) Label(id RelationID) string {
	return g.Relation(id).Label
}

// Labels 批量转换标签
func (g *JoinGraph) Labels(ids []RelationID) []string {
	labels := make([]string, len(ids))
	for i, id := range ids {
		labels[i] = g.Label(id)
	}
	return labels
}

// Len 返回关系总数（含复合关系）
func (g *JoinGraph) Len() int {
	return len(g.relations)
}

// Relations 返回所有关系（含复合关系），按创建顺序
func (g *JoinGraph) Relations() []RelationID {
	ids := make([]RelationID, len(g.relations))
	for i := range ids {
		ids[i] = RelationID(i)
	}
	return ids
}

// BaseRelations 返回所有基表，按注册顺序
func (g *JoinGraph) BaseRelations() []RelationID {
	ids := make([]RelationID, 0, g.baseCount)
	for i := range g.relations {
		if len(g.history[i]) == 0 {
			ids = append(ids, RelationID(i))
		}
	}
	return ids
}

// Root 返回优先图的根
func (g *JoinGraph) Root() RelationID {
	return g.root
}

// Cardinality 返回关系基数
func (g *JoinGraph) Cardinality(id RelationID) float64 {
	if !g.valid(id) {
		return 0
	}
	return g.cardinality[id]
}

// Selectivity 返回关系选择率，未设置时为 1
func (g *JoinGraph) Selectivity(id RelationID) float64 {
	if !g.valid(id) || !g.selSet[id] {
		return 1
	}
	return g.selectivity[id]
}

// HasSelectivity 选择率是否已经设置
func (g *JoinGraph) HasSelectivity(id RelationID) bool {
	return g.valid(id) && g.selSet[id]
}

func (g *JoinGraph) seedSelectivity(id RelationID, sel float64) {
	if !g.selSet[id] {
		g.selectivity[id] = sel
		g.selSet[id] = true
	}
}

// IsCompound 是否为复合关系
func (g *JoinGraph) IsCompound(id RelationID) bool {
	return g.valid(id) && len(g.history[id]) > 0
}

// History 返回复合关系的组成基表（从左到右）
func (g *JoinGraph) History(id RelationID) []RelationID {
	if !g.valid(id) {
		return nil
	}
	return append([]RelationID(nil), g.history[id]...)
}

// setEdge 写入单向边，已存在时覆盖并保持原有遍历位置
func (g *JoinGraph) setEdge(a, b RelationID, e JoinEdge) {
	if cur, ok := g.adj[a].edges[b]; ok {
		*cur = e
		return
	}
	edge := e
	g.adj[a].edges[b] = &edge
	g.adj[a].order = append(g.adj[a].order, b)
}

// AddJoin 添加（或覆盖）a 与 b 之间的对称边
// 选择率只在关系尚未设置时写入：Undirected 写入两端，Parent 写入 b，Child 写入 a
func (g *JoinGraph) AddJoin(a, b RelationID, selectivity float64, dir Direction) error {
	if !g.valid(a) {
		return g.unknown(a)
	}
	if !g.valid(b) {
		return g.unknown(b)
	}
	if a == b {
		return newError(ErrCodeCyclicGraph, g.Label(a), "self join is not allowed")
	}

	g.setEdge(a, b, JoinEdge{Selectivity: selectivity, Direction: dir})
	g.setEdge(b, a, JoinEdge{Selectivity: selectivity, Direction: dir.Inverse()})

	switch dir {
	case Undirected:
		g.seedSelectivity(a, selectivity)
		g.seedSelectivity(b, selectivity)
	case Parent:
		g.seedSelectivity(b, selectivity)
	case Child:
		g.seedSelectivity(a, selectivity)
	}
	return nil
}

// Edge 返回 a 到 b 的边
func (g *JoinGraph) Edge(a, b RelationID) (JoinEdge, bool) {
	if !g.valid(a) || !g.valid(b) {
		return JoinEdge{}, false
	}
	e, ok := g.adj[a].edges[b]
	if !ok {
		return JoinEdge{}, false
	}
	return *e, true
}

// HasJoin a 与 b 之间是否存在未隐藏的边
func (g *JoinGraph) HasJoin(a, b RelationID) bool {
	e, ok := g.Edge(a, b)
	return ok && !e.Hidden
}

// RemoveJoin 隐藏 a 与 b 之间两个方向的边
func (g *JoinGraph) RemoveJoin(a, b RelationID) {
	if !g.valid(a) || !g.valid(b) {
		return
	}
	if e, ok := g.adj[a].edges[b]; ok {
		e.Hidden = true
	}
	if e, ok := g.adj[b].edges[a]; ok {
		e.Hidden = true
	}
}

// RemoveRelation 隐藏与 n 相连的所有边，n 本身仍可访问
func (g *JoinGraph) RemoveRelation(n RelationID) {
	if !g.valid(n) {
		return
	}
	for _, x := range g.adj[n].order {
		g.RemoveJoin(n, x)
	}
}

// neighbours 按方向过滤未隐藏的邻居
func (g *JoinGraph) neighbours(n RelationID, dir Direction) []RelationID {
	if !g.valid(n) {
		return nil
	}
	var out []RelationID
	for _, x := range g.adj[n].order {
		e := g.adj[n].edges[x]
		if !e.Hidden && e.Direction == dir {
			out = append(out, x)
		}
	}
	return out
}

// Children 返回 n 的子节点
func (g *JoinGraph) Children(n RelationID) []RelationID {
	return g.neighbours(n, Parent)
}

// Parents 返回 n 的父节点，优先图中至多一个
func (g *JoinGraph) Parents(n RelationID) []RelationID {
	return g.neighbours(n, Child)
}

// Parent 返回 n 的父节点
func (g *JoinGraph) Parent(n RelationID) (RelationID, bool) {
	ps := g.Parents(n)
	if len(ps) == 0 {
		return InvalidRelation, false
	}
	return ps[0], true
}

// visible n 是否还有未隐藏的边
func (g *JoinGraph) visible(n RelationID) bool {
	for _, x := range g.adj[n].order {
		if !g.adj[n].edges[x].Hidden {
			return true
		}
	}
	return false
}

// Descendants 广度优先返回 n 及其所有后代
func (g *JoinGraph) Descendants(n RelationID) ([]RelationID, error) {
	if !g.valid(n) {
		return nil, g.unknown(n)
	}

	result := []RelationID{n}
	visited := map[RelationID]bool{n: true}
	for i := 0; i < len(result); i++ {
		for _, x := range g.Children(result[i]) {
			if visited[x] {
				continue
			}
			visited[x] = true
			result = append(result, x)
		}
		if len(result) > len(g.relations) {
			return nil, newError(ErrCodeGraphTooLarge, g.Label(n), "descendant walk exceeded %d relations", len(g.relations))
		}
	}
	return result, nil
}

// IsChain n 没有子节点，或只有一个子节点且该子节点也是链
func (g *JoinGraph) IsChain(n RelationID) (bool, error) {
	if !g.valid(n) {
		return false, g.unknown(n)
	}

	cur := n
	for steps := 0; ; steps++ {
		if steps > len(g.relations) {
			return false, newError(ErrCodeGraphTooLarge, g.Label(n), "chain walk exceeded %d relations", len(g.relations))
		}
		children := g.Children(cur)
		switch len(children) {
		case 0:
			return true, nil
		case 1:
			cur = children[0]
		default:
			return false, nil
		}
	}
}

// IsSubtree n 不是链，但它的每个直接子节点都是链
func (g *JoinGraph) IsSubtree(n RelationID) (bool, error) {
	chain, err := g.IsChain(n)
	if err != nil || chain {
		return false, err
	}
	for _, c := range g.Children(n) {
		ok, err := g.IsChain(c)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// ChainedSubtree 返回 n 的后代中（含 n）第一个满足 IsSubtree 的关系
func (g *JoinGraph) ChainedSubtree(n RelationID) (RelationID, error) {
	dxs, err := g.Descendants(n)
	if err != nil {
		return InvalidRelation, err
	}

	// 自底向上计算每个后代是否为链，避免对每个节点重复遍历
	chain := make(map[RelationID]bool, len(dxs))
	for i := len(dxs) - 1; i >= 0; i-- {
		children := g.Children(dxs[i])
		chain[dxs[i]] = len(children) == 0 || (len(children) == 1 && chain[children[0]])
	}

	for _, x := range dxs {
		if chain[x] {
			continue
		}
		subtree := true
		for _, c := range g.Children(x) {
			if !chain[c] {
				subtree = false
				break
			}
		}
		if subtree {
			return x, nil
		}
	}
	return InvalidRelation, newError(ErrCodeNoSubtreeFound, g.Label(n), "no chained subtree below relation")
}

// Chain 从根开始沿唯一子节点遍历，返回完整的连接顺序（含根）
func (g *JoinGraph) Chain() ([]RelationID, error) {
	if !g.valid(g.root) {
		return nil, newError(ErrCodeUnknownRelation, "", "graph has no root")
	}

	order := []RelationID{g.root}
	cur := g.root
	for {
		children := g.Children(cur)
		if len(children) == 0 {
			return order, nil
		}
		if len(children) > 1 {
			return nil, newError(ErrCodeNoSubtreeFound, g.Label(cur), "graph is not a chain")
		}
		cur = children[0]
		order = append(order, cur)
		if len(order) > len(g.relations) {
			return nil, newError(ErrCodeGraphTooLarge, g.Label(g.root), "chain walk exceeded %d relations", len(g.relations))
		}
	}
}

// JoinSequence 返回根之后依次连接的关系
func (g *JoinGraph) JoinSequence() ([]RelationID, error) {
	order, err := g.Chain()
	if err != nil {
		return nil, err
	}
	return order[1:], nil
}

// Clone 深拷贝连接图，用于从同一输入尝试不同的根
func (g *JoinGraph) Clone() *JoinGraph {
	c := &JoinGraph{
		relations:     append([]Relation(nil), g.relations...),
		labels:        make(map[string]RelationID, len(g.labels)),
		adj:           make([]adjacency, len(g.adj)),
		cardinality:   append([]float64(nil), g.cardinality...),
		selectivity:   append([]float64(nil), g.selectivity...),
		selSet:        append([]bool(nil), g.selSet...),
		history:       make([][]RelationID, len(g.history)),
		baseCount:     g.baseCount,
		root:          g.root,
		maxRelations:  g.maxRelations,
		maxIterations: g.maxIterations,
		tracer:        g.tracer,
	}
	for k, v := range g.labels {
		c.labels[k] = v
	}
	for i, a := range g.adj {
		c.adj[i] = adjacency{
			order: append([]RelationID(nil), a.order...),
			edges: make(map[RelationID]*JoinEdge, len(a.edges)),
		}
		for x, e := range a.edges {
			edge := *e
			c.adj[i].edges[x] = &edge
		}
	}
	for i, h := range g.history {
		if len(h) > 0 {
			c.history[i] = append([]RelationID(nil), h...)
		}
	}
	return c
}

func (g *JoinGraph) trace(format string, args ...interface{}) {
	if g.tracer != nil {
		g.tracer.Debug(format, args...)
	}
}

// mulCardinality 基数相乘，溢出时饱和
func mulCardinality(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxUint64/b {
		return math.MaxUint64
	}
	return a * b
}

// GraphStats 图统计信息
type GraphStats struct {
	Relations         int
	BaseRelations     int
	CompoundRelations int
	Joins             int
	HiddenJoins       int
	MaxDegree         int
}

// GetStats 获取图的统计信息，每对边只计一次
func (g *JoinGraph) GetStats() GraphStats {
	stats := GraphStats{
		Relations:     len(g.relations),
		BaseRelations: g.baseCount,
	}
	stats.CompoundRelations = stats.Relations - stats.BaseRelations

	for a := range g.adj {
		degree := 0
		for _, b := range g.adj[a].order {
			e := g.adj[a].edges[b]
			if !e.Hidden {
				degree++
			}
			if RelationID(a) > b {
				continue
			}
			if e.Hidden {
				stats.HiddenJoins++
			} else {
				stats.Joins++
			}
		}
		if degree > stats.MaxDegree {
			stats.MaxDegree = degree
		}
	}
	return stats
}

// Explain 返回图的说明
func (g *JoinGraph) Explain() string {
	stats := g.GetStats()
	root := "<none>"
	if g.valid(g.root) {
		root = g.Label(g.root)
	}

	return fmt.Sprintf(
		"=== Join Graph ===\n"+
			"Relations: %d (base %d, compound %d)\n"+
			"Joins: %d (hidden %d)\n"+
			"Max Degree: %d\n"+
			"Root: %s\n",
		stats.Relations, stats.BaseRelations, stats.CompoundRelations,
		stats.Joins, stats.HiddenJoins,
		stats.MaxDegree,
		root,
	)
}
