package opt

import (
	"fmt"
	"math"
	"math/rand"
)

// Construct builds one complete solution the way a single ant does. rng is
// used for every draw of the run; the same rng state, field and problem
// always produce the same solution. field is only read.
func Construct(p *Problem, field *Field, cfg Config, rng *rand.Rand) (Solution, error) {
	depot, capacity := p.Network.Depot, p.Network.Capacity
	cat := p.Catalog.Fresh()

	sol := Solution{}
	cands := make([]Service, 0, cat.Len())
	scores := make([]float64, 0, cat.Len())
	for !cat.AllServed() {
		route := Route{}
		cur := depot
		for {
			cands = cands[:0]
			for _, s := range cat.services {
				if !cat.IsServed(s.ID) && route.Demand+s.Demand <= capacity {
					cands = append(cands, s)
				}
			}
			if len(cands) == 0 {
				break
			}

			scores = scores[:0]
			sum := 0.0
			for _, c := range cands {
				// Lookahead: reaching c, servicing it and getting home from its tail.
				ahead := p.Paths.Dist(cur, c.Head) + c.Cost + p.Paths.Dist(c.Tail, depot) + 1
				score := math.Pow(field.At(cur, c.Head), cfg.Alpha) * math.Pow(1/ahead, cfg.Beta)
				scores = append(scores, score)
				sum += score
			}
			chosen := cands[rouletteSelect(scores, sum, rng)]

			leg := p.Paths.Dist(cur, chosen.Head)
			if math.IsInf(leg, 1) {
				return Solution{}, fmt.Errorf("construct: service %d unreachable from vertex %d: %w", chosen.ID, cur, ErrInfeasibleNetwork)
			}
			if err := cat.MarkServed(chosen.ID); err != nil {
				return Solution{}, fmt.Errorf("construct: %w", err)
			}
			route.Services = append(route.Services, chosen)
			route.Cost += leg + chosen.Cost
			route.Demand += chosen.Demand
			if route.Demand > capacity {
				return Solution{}, fmt.Errorf("construct: route demand %d above capacity %d: %w", route.Demand, capacity, ErrCapacityViolation)
			}
			cur = chosen.Tail
		}

		if len(route.Services) == 0 {
			return Solution{}, fmt.Errorf("construct: pending services fit no empty vehicle: %w", ErrInfeasibleNetwork)
		}
		back := p.Paths.Dist(cur, depot)
		if math.IsInf(back, 1) {
			return Solution{}, fmt.Errorf("construct: depot %d unreachable from vertex %d: %w", depot, cur, ErrInfeasibleNetwork)
		}
		route.Cost += back

		if cfg.RouteTwoOpt {
			im := newImprover(p)
			for im.twoOpt(&route) {
			}
		}

		sol.Routes = append(sol.Routes, route)
		sol.Cost += route.Cost
	}
	return sol, nil
}

// rouletteSelect draws r in [0,sum) and returns the first index at which
// subtracting the scores in order brings r to zero or below.
func rouletteSelect(scores []float64, sum float64, rng *rand.Rand) int {
	r := rng.Float64() * sum
	for i, s := range scores {
		r -= s
		if r <= 0 {
			return i
		}
	}
	return len(scores) - 1
}
