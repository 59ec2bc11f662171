// Package network holds the static road network a fleet has to service:
// vertices, undirected edges and directed arcs, each optionally carrying demand.
package network

import (
	"errors"
	"fmt"
)

var ErrInvalidNetwork = errors.New("invalid network")

// Vertex is a node of the network. Only required vertices are serviced.
type Vertex struct {
	ID          int     `json:"id"`
	Required    bool    `json:"required"`
	Demand      int     `json:"demand"`
	ServiceCost float64 `json:"serviceCost"`
}

// Edge is an undirected link; traversal costs the same in both directions.
type Edge struct {
	ID          int     `json:"id"`
	From        int     `json:"from"`
	To          int     `json:"to"`
	TransitCost float64 `json:"transitCost"`
	Required    bool    `json:"required"`
	Demand      int     `json:"demand"`
	ServiceCost float64 `json:"serviceCost"`
}

// Arc is a directed link from From to To.
type Arc struct {
	ID          int     `json:"id"`
	From        int     `json:"from"`
	To          int     `json:"to"`
	TransitCost float64 `json:"transitCost"`
	Required    bool    `json:"required"`
	Demand      int     `json:"demand"`
	ServiceCost float64 `json:"serviceCost"`
}

// Network is read-only to the solver. Vertex ids run from 1 to VertexCount.
type Network struct {
	Name         string `json:"name,omitempty"`
	OptimalValue int    `json:"optimalValue,omitempty"`
	Vehicles     int    `json:"vehicles,omitempty"`

	VertexCount int `json:"vertexCount"`
	Depot       int `json:"depot"`
	Capacity    int `json:"capacity"`

	// Vertices lists vertices carrying service data, in declaration order.
	// Vertices absent here are plain junctions.
	Vertices []Vertex `json:"vertices,omitempty"`
	Edges    []Edge   `json:"edges,omitempty"`
	Arcs     []Arc    `json:"arcs,omitempty"`
}

// RequiredCounts returns how many vertices, edges and arcs need service.
func (n *Network) RequiredCounts() (vertices, edges, arcs int) {
	for _, v := range n.Vertices {
		if v.Required {
			vertices++
		}
	}
	for _, e := range n.Edges {
		if e.Required {
			edges++
		}
	}
	for _, a := range n.Arcs {
		if a.Required {
			arcs++
		}
	}
	return vertices, edges, arcs
}

// Directed reports whether the network carries any arc.
func (n *Network) Directed() bool { return len(n.Arcs) > 0 }

func (n *Network) hasVertex(id int) bool { return id >= 1 && id <= n.VertexCount }

// Validate checks the structural constraints the solver relies on.
func (n *Network) Validate() error {
	if n == nil {
		return fmt.Errorf("validate network: nil network: %w", ErrInvalidNetwork)
	}
	if n.VertexCount < 1 {
		return fmt.Errorf("validate network: vertex count %d: %w", n.VertexCount, ErrInvalidNetwork)
	}
	if !n.hasVertex(n.Depot) {
		return fmt.Errorf("validate network: depot %d outside 1..%d: %w", n.Depot, n.VertexCount, ErrInvalidNetwork)
	}
	if n.Capacity <= 0 {
		return fmt.Errorf("validate network: capacity %d must be positive: %w", n.Capacity, ErrInvalidNetwork)
	}
	for _, v := range n.Vertices {
		if !n.hasVertex(v.ID) {
			return fmt.Errorf("validate network: vertex %d outside 1..%d: %w", v.ID, n.VertexCount, ErrInvalidNetwork)
		}
		if err := n.checkService("vertex", v.ID, v.Required, v.Demand, v.ServiceCost); err != nil {
			return err
		}
	}
	for _, e := range n.Edges {
		if err := n.checkLink("edge", e.ID, e.From, e.To, e.TransitCost); err != nil {
			return err
		}
		if err := n.checkService("edge", e.ID, e.Required, e.Demand, e.ServiceCost); err != nil {
			return err
		}
	}
	for _, a := range n.Arcs {
		if err := n.checkLink("arc", a.ID, a.From, a.To, a.TransitCost); err != nil {
			return err
		}
		if err := n.checkService("arc", a.ID, a.Required, a.Demand, a.ServiceCost); err != nil {
			return err
		}
	}
	return nil
}

func (n *Network) checkLink(kind string, id, from, to int, cost float64) error {
	if !n.hasVertex(from) || !n.hasVertex(to) {
		return fmt.Errorf("validate network: %s %d endpoints (%d,%d) outside 1..%d: %w", kind, id, from, to, n.VertexCount, ErrInvalidNetwork)
	}
	if cost < 0 {
		return fmt.Errorf("validate network: %s %d negative transit cost %v: %w", kind, id, cost, ErrInvalidNetwork)
	}
	return nil
}

func (n *Network) checkService(kind string, id int, required bool, demand int, cost float64) error {
	if demand < 0 || cost < 0 {
		return fmt.Errorf("validate network: %s %d negative demand or service cost: %w", kind, id, ErrInvalidNetwork)
	}
	// A required element heavier than a whole vehicle can never be placed.
	if required && demand > n.Capacity {
		return fmt.Errorf("validate network: %s %d demand %d exceeds capacity %d: %w", kind, id, demand, n.Capacity, ErrInvalidNetwork)
	}
	return nil
}
