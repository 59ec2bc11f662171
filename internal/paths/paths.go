// Package paths computes all-pairs shortest paths over a network.
//
// Matrices are dense and 1-indexed: row and column 0 exist but are never
// reachable. Unreachable pairs hold Unreachable in the distance matrix and
// NoPredecessor in the predecessor matrix.
package paths

import (
	"math"

	"nearp/internal/network"
)

// Unreachable marks a pair with no path.
var Unreachable = math.Inf(1)

// NoPredecessor marks a pair with no path in the predecessor matrix.
const NoPredecessor = -1

// Index is immutable once built.
type Index struct {
	n    int // matrix order, VertexCount+1
	dist []float64
	pred []int
}

// Build runs Floyd-Warshall over the network. O(V^3) time, O(V^2) space.
func Build(net *network.Network) *Index {
	n := net.VertexCount + 1
	idx := &Index{n: n, dist: make([]float64, n*n), pred: make([]int, n*n)}
	for i := range idx.dist {
		idx.dist[i] = Unreachable
		idx.pred[i] = NoPredecessor
	}
	for i := 1; i < n; i++ {
		idx.dist[i*n+i] = 0
		idx.pred[i*n+i] = i
	}
	// Parallel links keep the cheapest transit cost.
	for _, e := range net.Edges {
		idx.link(e.From, e.To, e.TransitCost)
		idx.link(e.To, e.From, e.TransitCost)
	}
	for _, a := range net.Arcs {
		idx.link(a.From, a.To, a.TransitCost)
	}
	idx.close()
	return idx
}

func (x *Index) link(from, to int, cost float64) {
	if from == to {
		return
	}
	if cost < x.dist[from*x.n+to] {
		x.dist[from*x.n+to] = cost
		x.pred[from*x.n+to] = from
	}
}

// close relaxes every pair through every intermediate vertex, k -> i -> j.
func (x *Index) close() {
	n := x.n
	d, p := x.dist, x.pred
	for k := 1; k < n; k++ {
		baseK := k * n
		for i := 1; i < n; i++ {
			ik := d[i*n+k]
			if math.IsInf(ik, 1) {
				continue
			}
			baseI := i * n
			for j := 1; j < n; j++ {
				kj := d[baseK+j]
				if math.IsInf(kj, 1) {
					continue
				}
				if cand := ik + kj; cand < d[baseI+j] {
					d[baseI+j] = cand
					p[baseI+j] = p[baseK+j]
				}
			}
		}
	}
}

// Order is the matrix dimension (VertexCount+1).
func (x *Index) Order() int { return x.n }

// Dist returns the shortest distance from i to j, or Unreachable.
func (x *Index) Dist(i, j int) float64 { return x.dist[i*x.n+j] }

// Pred returns the vertex preceding j on a shortest path from i.
func (x *Index) Pred(i, j int) int { return x.pred[i*x.n+j] }

// Reachable reports whether a path from i to j exists.
func (x *Index) Reachable(i, j int) bool { return !math.IsInf(x.dist[i*x.n+j], 1) }

// Path reconstructs the vertex sequence from i to j, both included.
// It returns nil when j is unreachable from i.
func (x *Index) Path(i, j int) []int {
	if !x.Reachable(i, j) {
		return nil
	}
	var rev []int
	for cur := j; cur != i; {
		rev = append(rev, cur)
		cur = x.Pred(i, cur)
		if cur == NoPredecessor || len(rev) > x.n {
			return nil
		}
	}
	rev = append(rev, i)
	for a, b := 0, len(rev)-1; a < b; a, b = a+1, b-1 {
		rev[a], rev[b] = rev[b], rev[a]
	}
	return rev
}

// DistanceMatrix returns a copy of the distance matrix as rows.
func (x *Index) DistanceMatrix() [][]float64 {
	out := make([][]float64, x.n)
	for i := range out {
		out[i] = append([]float64(nil), x.dist[i*x.n:(i+1)*x.n]...)
	}
	return out
}

// PredecessorMatrix returns a copy of the predecessor matrix as rows.
func (x *Index) PredecessorMatrix() [][]int {
	out := make([][]int, x.n)
	for i := range out {
		out[i] = append([]int(nil), x.pred[i*x.n:(i+1)*x.n]...)
	}
	return out
}
