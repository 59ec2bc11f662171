// Package report renders solver output: the solution .dat layout, the
// statistics JSON document and the HTTP solution record.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"nearp/internal/model"
	"nearp/internal/network"
	"nearp/internal/opt"
	"nearp/internal/paths"
	"nearp/internal/stats"
)

// SolutionDTO converts sol into the record served over HTTP: every route
// lists its services bracketed by depot markers.
func SolutionDTO(sol opt.Solution, depot int) model.Solution {
	out := model.Solution{Cost: sol.Cost, Routes: make([]model.Route, 0, len(sol.Routes))}
	marker := model.Visit{Type: "D", Head: depot, Tail: depot}
	for i, r := range sol.Routes {
		visits := make([]model.Visit, 0, len(r.Services)+2)
		visits = append(visits, marker)
		for _, s := range r.Services {
			visits = append(visits, model.Visit{
				Type:      "S",
				ServiceID: s.ID,
				Kind:      s.Kind.String(),
				ElementID: s.ElementID,
				Head:      s.Head,
				Tail:      s.Tail,
			})
		}
		visits = append(visits, marker)
		out.Routes = append(out.Routes, model.Route{Index: i + 1, Demand: r.Demand, Cost: r.Cost, Visits: visits})
	}
	return out
}

// ExpandPaths fills every route's Path with the vertex walk it implies:
// shortest paths between consecutive visits plus each serviced link.
func ExpandPaths(sol *model.Solution, idx *paths.Index) {
	for i := range sol.Routes {
		r := &sol.Routes[i]
		var walk []int
		cur := 0
		for _, v := range r.Visits {
			if cur == 0 {
				walk = append(walk, v.Head)
			} else if seg := idx.Path(cur, v.Head); len(seg) > 1 {
				walk = append(walk, seg[1:]...)
			}
			if v.Tail != v.Head {
				walk = append(walk, v.Tail)
			}
			cur = v.Tail
		}
		r.Path = walk
	}
}

// WriteSolution writes sol in the .dat layout: total cost, route count, the
// reference clock count and the clocks to the best solution, then one line
// per route.
func WriteSolution(w io.Writer, sol opt.Solution, depot, day int, refClocks, bestClocks int64) error {
	return WriteSolutionDTO(w, SolutionDTO(sol, depot), depot, day, refClocks, bestClocks)
}

func WriteSolutionDTO(w io.Writer, sol model.Solution, depot, day int, refClocks, bestClocks int64) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n%d\n%d\n%d\n", formatCost(sol.Cost), len(sol.Routes), refClocks, bestClocks)
	for _, r := range sol.Routes {
		fmt.Fprintf(bw, " %d %d %d %d %s  %d", depot, day, r.Index, r.Demand, formatCost(r.Cost), len(r.Visits))
		for _, v := range r.Visits {
			if v.Type == "D" {
				fmt.Fprintf(bw, " (D %d,%d,%d)", depot, day, day)
				continue
			}
			fmt.Fprintf(bw, " (S %d,%d,%d)", v.ServiceID, v.Head, v.Tail)
		}
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write solution: %w", err)
	}
	return nil
}

// formatCost prints integral costs without a fractional part.
func formatCost(c float64) string {
	if c == math.Trunc(c) && math.Abs(c) < 1e15 {
		return strconv.FormatInt(int64(c), 10)
	}
	return strconv.FormatFloat(c, 'f', -1, 64)
}

// Graph is the plain description of the network embedded in statistics.
type Graph struct {
	Vertices []int  `json:"vertices"`
	Edges    []Link `json:"edges"`
	Arcs     []Link `json:"arcs"`
}

type Link struct {
	From        int     `json:"from"`
	To          int     `json:"to"`
	TransitCost float64 `json:"transitCost"`
}

type StatisticsDocument struct {
	Statistics stats.Stats `json:"statistics"`
	Graph      Graph       `json:"graph"`
}

func NewStatisticsDocument(net *network.Network, s stats.Stats) StatisticsDocument {
	g := Graph{Vertices: make([]int, 0, net.VertexCount), Edges: []Link{}, Arcs: []Link{}}
	for id := 1; id <= net.VertexCount; id++ {
		g.Vertices = append(g.Vertices, id)
	}
	for _, e := range net.Edges {
		g.Edges = append(g.Edges, Link{From: e.From, To: e.To, TransitCost: e.TransitCost})
	}
	for _, a := range net.Arcs {
		g.Arcs = append(g.Arcs, Link{From: a.From, To: a.To, TransitCost: a.TransitCost})
	}
	return StatisticsDocument{Statistics: s, Graph: g}
}

// WriteStatistics writes the indented statistics document for net.
func WriteStatistics(w io.Writer, net *network.Network, s stats.Stats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewStatisticsDocument(net, s)); err != nil {
		return fmt.Errorf("write statistics: %w", err)
	}
	return nil
}
