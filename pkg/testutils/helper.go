package testutils

import (
	"testing"

	"github.com/kasuganosora/joinorder/pkg/api"
	"github.com/kasuganosora/joinorder/pkg/optimizer/join"
	"github.com/stretchr/testify/require"
)

// GraphTestHelper 连接图测试辅助器
// 按标签注册关系和连接，失败时直接终止测试
// 同时记录等价的 api.Query，便于对同一个图测试优化器接口
type GraphTestHelper struct {
	t     *testing.T
	graph *join.JoinGraph
	query api.Query
}

// NewGraphTestHelper 创建连接图测试辅助器
func NewGraphTestHelper(t *testing.T, opts ...join.Option) *GraphTestHelper {
	t.Helper()
	return &GraphTestHelper{t: t, graph: join.NewJoinGraph(opts...)}
}

// Graph 获取连接图
func (h *GraphTestHelper) Graph() *join.JoinGraph {
	return h.graph
}

// Relation 注册基表
func (h *GraphTestHelper) Relation(label string, cardinality uint64) join.RelationID {
	h.t.Helper()
	id, err := h.graph.AddRelation(label, cardinality)
	require.NoError(h.t, err, "Failed to add relation %s", label)
	h.query.Relations = append(h.query.Relations, api.RelationSpec{Label: label, Cardinality: cardinality})
	return id
}

// Join 添加无向连接
func (h *GraphTestHelper) Join(a, b string, selectivity float64) {
	h.t.Helper()
	err := h.graph.AddJoin(h.ID(a), h.ID(b), selectivity, join.Undirected)
	require.NoError(h.t, err, "Failed to join %s and %s", a, b)
	h.query.Joins = append(h.query.Joins, api.JoinSpec{Left: a, Right: b, Selectivity: selectivity})
}

// Query 返回与连接图等价的查询，每次调用返回新的副本
func (h *GraphTestHelper) Query() *api.Query {
	q := &api.Query{
		Relations: append([]api.RelationSpec(nil), h.query.Relations...),
		Joins:     append([]api.JoinSpec(nil), h.query.Joins...),
	}
	return q
}

// ID 按标签查找关系
func (h *GraphTestHelper) ID(label string) join.RelationID {
	h.t.Helper()
	id, ok := h.graph.Lookup(label)
	require.True(h.t, ok, "relation %s not registered", label)
	return id
}

// Order 运行 IKKBZ 并返回从根开始的标签序列，原图不变
func (h *GraphTestHelper) Order(root string) []string {
	h.t.Helper()
	g, err := join.IKKBZ(h.graph.Clone(), h.ID(root))
	require.NoError(h.t, err, "IKKBZ failed for root %s", root)
	order, err := g.Chain()
	require.NoError(h.t, err)
	return g.Labels(order)
}

// ExampleOne 七个关系的树形查询图
//
//	R1 - R2, R1 - R3, R1 - R4, R4 - R5, R4 - R6, R6 - R7
func ExampleOne(t *testing.T) *GraphTestHelper {
	h := NewGraphTestHelper(t)
	h.Relation("R1", 10)
	h.Relation("R2", 100)
	h.Relation("R3", 100)
	h.Relation("R4", 100)
	h.Relation("R5", 18)
	h.Relation("R6", 10)
	h.Relation("R7", 20)

	h.Join("R1", "R2", 1.0/2)
	h.Join("R1", "R3", 1.0/4)
	h.Join("R1", "R4", 1.0/5)
	h.Join("R4", "R5", 1.0/3)
	h.Join("R4", "R6", 1.0/2)
	h.Join("R6", "R7", 1.0/10)
	return h
}

// ExampleTwo 九个关系的树形查询图
func ExampleTwo(t *testing.T) *GraphTestHelper {
	h := NewGraphTestHelper(t)
	h.Relation("R1", 30)
	h.Relation("R2", 100)
	h.Relation("R3", 30)
	h.Relation("R4", 20)
	h.Relation("R5", 10)
	h.Relation("R6", 20)
	h.Relation("R7", 70)
	h.Relation("R8", 100)
	h.Relation("R9", 100)

	h.Join("R1", "R3", 1.0/6)
	h.Join("R2", "R3", 1.0/10)
	h.Join("R3", "R4", 1.0/20)
	h.Join("R4", "R5", 3.0/4)
	h.Join("R5", "R6", 1.0/2)
	h.Join("R6", "R7", 1.0/14)
	h.Join("R5", "R8", 1.0/5)
	h.Join("R8", "R9", 1.0/25)
	return h
}

// Krishnamurthy Krishnamurthy 等人 1986 年论文中的例子
func Krishnamurthy(t *testing.T) *GraphTestHelper {
	h := NewGraphTestHelper(t)
	h.Relation("R1", 100)
	h.Relation("R2", 1000000)
	h.Relation("R3", 1000)
	h.Relation("R4", 150000)
	h.Relation("R5", 50)

	h.Join("R1", "R2", 1.0/100)
	h.Join("R1", "R3", 1)
	h.Join("R3", "R4", 1.0/30)
	h.Join("R3", "R5", 1)
	return h
}
