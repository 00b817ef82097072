package join_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/kasuganosora/joinorder/pkg/optimizer/join"
	"github.com/kasuganosora/joinorder/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIKKBZExampleOne(t *testing.T) {
	h := testutils.ExampleOne(t)

	tests := []struct {
		root string
		want []string
	}{
		{"R1", []string{"R1", "R4", "R6", "R7", "R5", "R3", "R2"}},
		{"R2", []string{"R2", "R1", "R4", "R6", "R7", "R5", "R3"}},
		{"R3", []string{"R3", "R1", "R4", "R6", "R7", "R5", "R2"}},
		{"R4", []string{"R4", "R6", "R7", "R1", "R5", "R3", "R2"}},
		{"R5", []string{"R5", "R4", "R6", "R7", "R1", "R3", "R2"}},
		{"R6", []string{"R6", "R7", "R4", "R1", "R5", "R3", "R2"}},
		{"R7", []string{"R7", "R6", "R4", "R1", "R5", "R3", "R2"}},
	}

	for _, tt := range tests {
		t.Run(tt.root, func(t *testing.T) {
			assert.Equal(t, tt.want, h.Order(tt.root))
		})
	}
}

func TestIKKBZExampleTwo(t *testing.T) {
	h := testutils.ExampleTwo(t)

	assert.Equal(t, []string{"R1", "R3", "R4", "R5", "R8", "R9", "R6", "R7", "R2"}, h.Order("R1"))
}

func TestIKKBZKrishnamurthy(t *testing.T) {
	h := testutils.Krishnamurthy(t)

	assert.Equal(t, []string{"R1", "R3", "R5", "R4", "R2"}, h.Order("R1"))
}

// bestRoot 对每个关系尝试一次，返回代价最小的连接顺序
func bestRoot(t *testing.T, h *testutils.GraphTestHelper) ([]string, float64) {
	t.Helper()
	var best []string
	bestCost := 0.0
	for _, id := range h.Graph().BaseRelations() {
		g, err := join.IKKBZ(h.Graph().Clone(), id)
		require.NoError(t, err)
		seq, err := g.JoinSequence()
		require.NoError(t, err)
		cost := g.Cost(seq)
		if best == nil || cost < bestCost {
			order, err := g.Chain()
			require.NoError(t, err)
			best, bestCost = g.Labels(order), cost
		}
	}
	return best, bestCost
}

func TestIKKBZArgMinExampleOne(t *testing.T) {
	order, cost := bestRoot(t, testutils.ExampleOne(t))

	assert.Equal(t, []string{"R2", "R1", "R4", "R6", "R7", "R5", "R3"}, order)
	assert.InDelta(t, 157605.0, cost, 1e-6)
}

func TestIKKBZArgMinExampleTwo(t *testing.T) {
	order, _ := bestRoot(t, testutils.ExampleTwo(t))

	assert.Equal(t, []string{"R8", "R5", "R4", "R9", "R3", "R1", "R6", "R7", "R2"}, order)
}

func TestIKKBZDoesNotTouchClone(t *testing.T) {
	h := testutils.ExampleOne(t)
	before := h.Graph().GetStats()

	h.Order("R1")

	assert.Equal(t, before, h.Graph().GetStats())
	assert.Equal(t, join.InvalidRelation, h.Graph().Root())
}

func TestIKKBZResultIsBaseChain(t *testing.T) {
	h := testutils.ExampleTwo(t)

	g, err := join.IKKBZ(h.Graph().Clone(), h.ID("R1"))
	require.NoError(t, err)

	order, err := g.Chain()
	require.NoError(t, err)
	assert.Len(t, order, 9)
	for _, id := range order {
		assert.False(t, g.IsCompound(id), g.Label(id))
	}

	chain, err := g.IsChain(h.ID("R1"))
	require.NoError(t, err)
	assert.True(t, chain)
}

func TestIKKBZStar(t *testing.T) {
	h := testutils.NewGraphTestHelper(t)
	h.Relation("R0", 1)
	h.Relation("R1", 10)
	h.Relation("R2", 100)
	h.Relation("R3", 20)
	h.Join("R0", "R1", 0.5)
	h.Join("R0", "R2", 0.01)
	h.Join("R0", "R3", 0.2)

	g, err := join.IKKBZ(h.Graph().Clone(), h.ID("R0"))
	require.NoError(t, err)
	order, err := g.Chain()
	require.NoError(t, err)
	assert.Equal(t, []string{"R0", "R2", "R3", "R1"}, g.Labels(order))

	// 根以外的相邻关系秩不递减
	for i := 2; i < len(order); i++ {
		assert.LessOrEqual(t, g.Rank(order[i-1]), g.Rank(order[i]))
	}
}

func TestIKKBZSingleRelation(t *testing.T) {
	h := testutils.NewGraphTestHelper(t)
	h.Relation("R1", 42)

	g, err := join.IKKBZ(h.Graph(), h.ID("R1"))
	require.NoError(t, err)

	order, err := g.Chain()
	require.NoError(t, err)
	assert.Equal(t, []string{"R1"}, g.Labels(order))

	seq, err := g.JoinSequence()
	require.NoError(t, err)
	assert.Empty(t, seq)
	assert.Equal(t, 0.0, g.Cost(seq))
}

func TestIKKBZChainIsReturnedAsIs(t *testing.T) {
	// 已经是链的优先图不做秩检查
	h := testutils.NewGraphTestHelper(t)
	h.Relation("A", 10)
	h.Relation("B", 1000)
	h.Relation("C", 10)
	h.Join("A", "B", 1)
	h.Join("B", "C", 0.1)

	assert.Equal(t, []string{"A", "B", "C"}, h.Order("A"))
}

func TestIKKBZCyclicInput(t *testing.T) {
	h := testutils.NewGraphTestHelper(t)
	h.Relation("A", 10)
	h.Relation("B", 10)
	h.Relation("C", 10)
	h.Join("A", "B", 0.5)
	h.Join("B", "C", 0.5)
	h.Join("C", "A", 0.5)

	_, err := join.IKKBZ(h.Graph(), h.ID("A"))
	require.Error(t, err)
	assert.True(t, join.IsErrorCode(err, join.ErrCodeCyclicGraph))
}

func TestIKKBZDisconnectedInput(t *testing.T) {
	h := testutils.NewGraphTestHelper(t)
	h.Relation("A", 10)
	h.Relation("B", 10)
	h.Relation("C", 10)
	h.Join("A", "B", 0.5)

	_, err := join.IKKBZ(h.Graph(), h.ID("A"))
	require.Error(t, err)
	assert.Equal(t, join.ErrCodeDisconnected, join.GetErrorCode(err))
}

func TestIKKBZIterationLimit(t *testing.T) {
	h := testutils.NewGraphTestHelper(t, join.WithMaxIterations(1))
	h.Relation("R1", 10)
	h.Relation("R4", 100)
	h.Relation("R5", 18)
	h.Relation("R6", 10)
	h.Relation("R7", 20)
	h.Join("R1", "R4", 1.0/5)
	h.Join("R4", "R5", 1.0/3)
	h.Join("R4", "R6", 1.0/2)
	h.Join("R6", "R7", 1.0/10)

	// R6 -> R7 的秩逆序需要一次合并，循环上限为 1 时无法收敛
	_, err := join.IKKBZ(h.Graph(), h.ID("R1"))
	require.Error(t, err)
	assert.True(t, join.IsErrorCode(err, join.ErrCodeIterationLimit))
}

func TestIKKBZUnknownRoot(t *testing.T) {
	h := testutils.NewGraphTestHelper(t)
	h.Relation("R1", 1)

	_, err := join.IKKBZ(h.Graph(), join.RelationID(9))
	assert.True(t, join.IsErrorCode(err, join.ErrCodeUnknownRelation))
}

type recordingTracer struct {
	lines []string
}

func (r *recordingTracer) Debug(format string, args ...interface{}) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func TestIKKBZTracer(t *testing.T) {
	tracer := &recordingTracer{}
	h := testutils.NewGraphTestHelper(t, join.WithTracer(tracer))
	h.Relation("R1", 100)
	h.Relation("R2", 1000000)
	h.Relation("R3", 1000)
	h.Relation("R4", 150000)
	h.Relation("R5", 50)
	h.Join("R1", "R2", 1.0/100)
	h.Join("R1", "R3", 1)
	h.Join("R3", "R4", 1.0/30)
	h.Join("R3", "R5", 1)

	_, err := join.IKKBZ(h.Graph(), h.ID("R1"))
	require.NoError(t, err)

	all := strings.Join(tracer.lines, "\n")
	assert.Contains(t, all, "precedence graph rooted at R1")
	assert.Contains(t, all, "combine R3 + R5 -> R3R5")
	assert.Contains(t, all, "uncombine R3R5")
}
