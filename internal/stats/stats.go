// Package stats describes an instance network: size, density, degrees,
// connectivity and shortest-path figures.
package stats

import (
	"math"

	"nearp/internal/network"
	"nearp/internal/paths"
)

type Stats struct {
	Name             string  `json:"name"`
	Vertices         int     `json:"vertices"`
	Edges            int     `json:"edges"`
	Arcs             int     `json:"arcs"`
	RequiredVertices int     `json:"requiredVertices"`
	RequiredEdges    int     `json:"requiredEdges"`
	RequiredArcs     int     `json:"requiredArcs"`
	Density          float64 `json:"density"`
	Components       int     `json:"components"`
	MinDegree        int     `json:"minDegree"`
	MaxDegree        int     `json:"maxDegree"`
	MeanPathLength   float64 `json:"meanPathLength"`
	Diameter         float64 `json:"diameter"`
	// Betweenness[v-1] counts the shortest paths vertex v lies inside of.
	Betweenness []int `json:"betweenness"`
}

// Compute derives every figure from net and its shortest-path index.
func Compute(net *network.Network, idx *paths.Index) Stats {
	v := net.VertexCount
	rv, re, ra := net.RequiredCounts()
	s := Stats{
		Name:             net.Name,
		Vertices:         v,
		Edges:            len(net.Edges),
		Arcs:             len(net.Arcs),
		RequiredVertices: rv,
		RequiredEdges:    re,
		RequiredArcs:     ra,
		Density:          Density(v, len(net.Edges), len(net.Arcs)),
		Components:       Components(net),
	}
	s.MinDegree, s.MaxDegree = Degrees(net)
	s.MeanPathLength, s.Diameter = PathLengths(idx, v)
	s.Betweenness = Betweenness(idx, v)[1:]
	return s
}

// Density is the order strength (2E + A) / (V(V-1)); 0 for V <= 1.
func Density(v, e, a int) float64 {
	if v <= 1 {
		return 0
	}
	return float64(2*e+a) / float64(v*(v-1))
}

// Degrees counts each edge and arc once at both endpoints.
func Degrees(net *network.Network) (lo, hi int) {
	if net.VertexCount < 1 {
		return 0, 0
	}
	deg := make([]int, net.VertexCount+1)
	for _, e := range net.Edges {
		deg[e.From]++
		deg[e.To]++
	}
	for _, a := range net.Arcs {
		deg[a.From]++
		deg[a.To]++
	}
	lo, hi = deg[1], deg[1]
	for _, d := range deg[2:] {
		if d < lo {
			lo = d
		}
		if d > hi {
			hi = d
		}
	}
	return lo, hi
}

// Components counts weakly connected components; arcs count as undirected.
func Components(net *network.Network) int {
	n := net.VertexCount
	adj := make([][]int, n+1)
	for _, e := range net.Edges {
		adj[e.From] = append(adj[e.From], e.To)
		adj[e.To] = append(adj[e.To], e.From)
	}
	for _, a := range net.Arcs {
		adj[a.From] = append(adj[a.From], a.To)
		adj[a.To] = append(adj[a.To], a.From)
	}
	seen := make([]bool, n+1)
	count := 0
	var stack []int
	for start := 1; start <= n; start++ {
		if seen[start] {
			continue
		}
		count++
		seen[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, nb := range adj[cur] {
				if !seen[nb] {
					seen[nb] = true
					stack = append(stack, nb)
				}
			}
		}
	}
	return count
}

// PathLengths returns the mean distance over reachable ordered pairs i != j
// and the largest such distance.
func PathLengths(idx *paths.Index, v int) (mean, diameter float64) {
	total, pairs := 0.0, 0
	for i := 1; i <= v; i++ {
		for j := 1; j <= v; j++ {
			if i == j {
				continue
			}
			d := idx.Dist(i, j)
			if math.IsInf(d, 1) {
				continue
			}
			total += d
			pairs++
			if d > diameter {
				diameter = d
			}
		}
	}
	if pairs == 0 {
		return 0, diameter
	}
	return total / float64(pairs), diameter
}

// Betweenness walks the predecessor chain of every reachable ordered pair
// (s,t) and credits each vertex strictly between s and t. The result is
// indexed by vertex id; entry 0 is unused.
func Betweenness(idx *paths.Index, v int) []int {
	out := make([]int, v+1)
	for s := 1; s <= v; s++ {
		for t := 1; t <= v; t++ {
			if s == t || !idx.Reachable(s, t) {
				continue
			}
			for cur := idx.Pred(s, t); cur != paths.NoPredecessor && cur != s; cur = idx.Pred(s, cur) {
				out[cur]++
			}
		}
	}
	return out
}
