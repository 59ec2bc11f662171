package opt

import (
	"fmt"

	"nearp/internal/network"
	"nearp/internal/paths"
)

// Problem bundles the read-only inputs every phase of a solve shares.
type Problem struct {
	Network *network.Network
	Paths   *paths.Index
	Catalog *Catalog
}

// NewProblem validates net, builds its shortest-path index and service
// catalog, and fails with ErrInfeasibleNetwork when a service cannot be
// reached from the depot or cannot get back to it.
func NewProblem(net *network.Network) (*Problem, error) {
	if err := net.Validate(); err != nil {
		return nil, fmt.Errorf("new problem: %w", err)
	}
	p := &Problem{Network: net, Paths: paths.Build(net), Catalog: NewCatalog(net)}
	if err := p.checkReachable(); err != nil {
		return nil, fmt.Errorf("new problem: %w", err)
	}
	return p, nil
}

func (p *Problem) checkReachable() error {
	depot := p.Network.Depot
	for _, s := range p.Catalog.services {
		if !p.Paths.Reachable(depot, s.Head) {
			return fmt.Errorf("service %d (%s %d) unreachable from depot %d: %w", s.ID, s.Kind, s.ElementID, depot, ErrInfeasibleNetwork)
		}
		if !p.Paths.Reachable(s.Tail, depot) {
			return fmt.Errorf("service %d (%s %d) cannot return to depot %d: %w", s.ID, s.Kind, s.ElementID, depot, ErrInfeasibleNetwork)
		}
	}
	return nil
}

// routeCost prices a service sequence: depot to the first head, every
// service cost, the legs between services, and the way back to the depot.
func (p *Problem) routeCost(seq []Service) float64 {
	if len(seq) == 0 {
		return 0
	}
	depot := p.Network.Depot
	cur := depot
	total := 0.0
	for _, s := range seq {
		total += p.Paths.Dist(cur, s.Head) + s.Cost
		cur = s.Tail
	}
	return total + p.Paths.Dist(cur, depot)
}
