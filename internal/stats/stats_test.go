package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nearp/internal/network"
	"nearp/internal/paths"
)

// pathNet is 1 - 2 - 3 as edges, an arc 3 -> 4, and an isolated vertex 5.
func pathNet() *network.Network {
	return &network.Network{
		Name:        "path",
		VertexCount: 5, Depot: 1, Capacity: 10,
		Vertices: []network.Vertex{{ID: 2, Required: true, Demand: 1}},
		Edges: []network.Edge{
			{ID: 1, From: 1, To: 2, TransitCost: 1, Required: true, Demand: 1},
			{ID: 2, From: 2, To: 3, TransitCost: 2},
		},
		Arcs: []network.Arc{{ID: 1, From: 3, To: 4, TransitCost: 3}},
	}
}

func TestCompute(t *testing.T) {
	net := pathNet()
	s := Compute(net, paths.Build(net))

	assert.Equal(t, "path", s.Name)
	assert.Equal(t, 5, s.Vertices)
	assert.Equal(t, 2, s.Edges)
	assert.Equal(t, 1, s.Arcs)
	assert.Equal(t, 1, s.RequiredVertices)
	assert.Equal(t, 1, s.RequiredEdges)
	assert.Equal(t, 0, s.RequiredArcs)
	assert.InDelta(t, 5.0/20.0, s.Density, 1e-12)
	assert.Equal(t, 2, s.Components)
	assert.Equal(t, 0, s.MinDegree)
	assert.Equal(t, 2, s.MaxDegree)

	// Reachable ordered pairs: 1<->2 (1), 2<->3 (2), 1<->3 (3), and
	// 1->4 (6), 2->4 (5), 3->4 (3).
	assert.InDelta(t, (2*1.0+2*2+2*3+6+5+3)/9, s.MeanPathLength, 1e-12)
	assert.Equal(t, 6.0, s.Diameter)

	require.Len(t, s.Betweenness, 5)
	// Vertex 2 sits inside 1->3, 3->1 and 1->4; vertex 3 inside 1->4 and 2->4.
	assert.Equal(t, []int{0, 3, 2, 0, 0}, s.Betweenness)
}

func TestDensityDegenerate(t *testing.T) {
	assert.Zero(t, Density(1, 3, 3))
	assert.Zero(t, Density(0, 0, 0))
	assert.InDelta(t, 1.0, Density(3, 3, 0), 1e-12)
}

func TestPathLengthsEmpty(t *testing.T) {
	net := &network.Network{VertexCount: 3, Depot: 1, Capacity: 1}
	mean, diameter := PathLengths(paths.Build(net), 3)
	assert.Zero(t, mean)
	assert.Zero(t, diameter)
	assert.Equal(t, 3, Components(net))
}
