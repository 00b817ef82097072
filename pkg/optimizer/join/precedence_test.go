package join

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToPrecedenceGraph(t *testing.T) {
	g := NewJoinGraph()
	r := make(map[string]RelationID)
	for _, l := range []string{"R1", "R2", "R3", "R4", "R5", "R6"} {
		r[l] = mustRelation(t, g, l, 1)
	}
	mustJoin(t, g, r["R1"], r["R3"], 1, Undirected)
	mustJoin(t, g, r["R2"], r["R3"], 1, Undirected)
	mustJoin(t, g, r["R3"], r["R4"], 1, Undirected)
	mustJoin(t, g, r["R4"], r["R5"], 1, Undirected)
	mustJoin(t, g, r["R4"], r["R6"], 1, Undirected)

	require.NoError(t, g.ToPrecedenceGraph(r["R1"]))
	assert.Equal(t, r["R1"], g.Root())

	parentEdges := [][2]string{
		{"R1", "R3"},
		{"R3", "R2"},
		{"R3", "R4"},
		{"R4", "R5"},
		{"R4", "R6"},
	}
	for _, pe := range parentEdges {
		e, ok := g.Edge(r[pe[0]], r[pe[1]])
		require.True(t, ok, "%s -> %s", pe[0], pe[1])
		assert.Equal(t, Parent, e.Direction, "%s -> %s", pe[0], pe[1])
		assert.False(t, e.Hidden)

		e, ok = g.Edge(r[pe[1]], r[pe[0]])
		require.True(t, ok)
		assert.Equal(t, Child, e.Direction, "%s -> %s", pe[1], pe[0])
	}

	p, ok := g.Parent(r["R2"])
	require.True(t, ok)
	assert.Equal(t, r["R3"], p)
	assert.Equal(t, []RelationID{r["R2"], r["R4"]}, g.Children(r["R3"]))
}

func TestToPrecedenceGraphKeepsSelectivity(t *testing.T) {
	g := NewJoinGraph()
	a := mustRelation(t, g, "A", 10)
	b := mustRelation(t, g, "B", 10)
	mustJoin(t, g, a, b, 0.3, Undirected)

	require.NoError(t, g.ToPrecedenceGraph(b))

	e, ok := g.Edge(b, a)
	require.True(t, ok)
	assert.Equal(t, Parent, e.Direction)
	assert.Equal(t, 0.3, e.Selectivity)
}

func TestToPrecedenceGraphFollowsDirectedEdges(t *testing.T) {
	g := NewJoinGraph()
	a := mustRelation(t, g, "A", 1)
	b := mustRelation(t, g, "B", 1)
	c := mustRelation(t, g, "C", 1)
	mustJoin(t, g, a, b, 1, Parent)
	mustJoin(t, g, b, c, 1, Undirected)

	require.NoError(t, g.ToPrecedenceGraph(a))

	e, ok := g.Edge(b, c)
	require.True(t, ok)
	assert.Equal(t, Parent, e.Direction)
}

func TestToPrecedenceGraphCycle(t *testing.T) {
	g := NewJoinGraph()
	a := mustRelation(t, g, "A", 1)
	b := mustRelation(t, g, "B", 1)
	c := mustRelation(t, g, "C", 1)
	mustJoin(t, g, a, b, 1, Undirected)
	mustJoin(t, g, b, c, 1, Undirected)
	mustJoin(t, g, c, a, 1, Undirected)

	err := g.ToPrecedenceGraph(a)
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, ErrCodeCyclicGraph))
}

func TestToPrecedenceGraphDisconnected(t *testing.T) {
	tests := []struct {
		name  string
		build func(g *JoinGraph, a, b, c, d RelationID)
	}{
		{"two components", func(g *JoinGraph, a, b, c, d RelationID) {
			_ = g.AddJoin(a, b, 1, Undirected)
			_ = g.AddJoin(c, d, 1, Undirected)
		}},
		{"isolated relation", func(g *JoinGraph, a, b, c, d RelationID) {
			_ = g.AddJoin(a, b, 1, Undirected)
			_ = g.AddJoin(b, c, 1, Undirected)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewJoinGraph()
			a := mustRelation(t, g, "A", 1)
			b := mustRelation(t, g, "B", 1)
			c := mustRelation(t, g, "C", 1)
			d := mustRelation(t, g, "D", 1)
			tt.build(g, a, b, c, d)

			err := g.ToPrecedenceGraph(a)
			require.Error(t, err)
			assert.True(t, IsErrorCode(err, ErrCodeDisconnected))
		})
	}
}

func TestToPrecedenceGraphIgnoresRemovedRelation(t *testing.T) {
	g := NewJoinGraph()
	a := mustRelation(t, g, "A", 1)
	b := mustRelation(t, g, "B", 1)
	c := mustRelation(t, g, "C", 1)
	mustJoin(t, g, a, b, 1, Undirected)
	mustJoin(t, g, b, c, 1, Undirected)
	g.RemoveRelation(c)

	require.NoError(t, g.ToPrecedenceGraph(a))
	assert.Equal(t, []RelationID{b}, g.Children(a))
	assert.Empty(t, g.Children(b))
}

func TestToPrecedenceGraphUnknownRoot(t *testing.T) {
	g := NewJoinGraph()

	err := g.ToPrecedenceGraph(RelationID(3))
	assert.True(t, IsErrorCode(err, ErrCodeUnknownRelation))
}
