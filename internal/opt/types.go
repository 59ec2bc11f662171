package opt

import (
	"fmt"
	"runtime"
	"time"
)

type ServiceKind int

const (
	VertexService ServiceKind = iota
	EdgeService
	ArcService
)

func (k ServiceKind) String() string {
	switch k {
	case VertexService:
		return "vertex"
	case EdgeService:
		return "edge"
	case ArcService:
		return "arc"
	}
	return fmt.Sprintf("ServiceKind(%d)", int(k))
}

// Service is one required vertex, edge or arc. Head is where servicing
// starts and Tail where the vehicle is afterwards; both are equal for
// vertices.
type Service struct {
	ID        int
	Kind      ServiceKind
	ElementID int // id of the vertex, edge or arc in the network
	Head      int
	Tail      int
	Demand    int
	Cost      float64
}

// Route is one vehicle's depot-to-depot tour. Cost includes both depot legs.
type Route struct {
	Services []Service
	Demand   int
	Cost     float64
}

type Solution struct {
	Routes []Route
	Cost   float64
}

// Clone returns a deep copy that shares nothing with s.
func (s Solution) Clone() Solution {
	out := Solution{Cost: s.Cost}
	if s.Routes != nil {
		out.Routes = make([]Route, len(s.Routes))
	}
	for i, r := range s.Routes {
		out.Routes[i] = Route{
			Services: append([]Service(nil), r.Services...),
			Demand:   r.Demand,
			Cost:     r.Cost,
		}
	}
	return out
}

// Check verifies that every catalog service is served exactly once and that
// no route exceeds capacity.
func (s Solution) Check(p *Problem) error {
	seen := make([]int, p.Catalog.Len()+1)
	for ri, r := range s.Routes {
		demand := 0
		for _, svc := range r.Services {
			if svc.ID < 1 || svc.ID > p.Catalog.Len() {
				return fmt.Errorf("check solution: route %d: unknown service %d: %w", ri+1, svc.ID, ErrInvalidSolution)
			}
			seen[svc.ID]++
			demand += svc.Demand
		}
		if demand > p.Network.Capacity {
			return fmt.Errorf("check solution: route %d demand %d above capacity %d: %w", ri+1, demand, p.Network.Capacity, ErrCapacityViolation)
		}
	}
	for id := 1; id < len(seen); id++ {
		if seen[id] != 1 {
			return fmt.Errorf("check solution: service %d served %d times: %w", id, seen[id], ErrInvalidSolution)
		}
	}
	return nil
}

// Config carries every tunable of one solve.
//
// Seed 0 is not a seed of its own: it asks for one drawn from the clock,
// which Metrics.Seed then reports. Any other value makes the solve
// repeatable, so an explicit seed of 0 cannot be requested.
type Config struct {
	Alpha           float64       `yaml:"alpha" json:"alpha"`
	Beta            float64       `yaml:"beta" json:"beta"`
	Ants            int           `yaml:"ants" json:"ants"`
	Iterations      int           `yaml:"iterations" json:"iterations"`
	Evaporation     float64       `yaml:"evaporation" json:"evaporation"`
	StagnationLimit int           `yaml:"stagnation" json:"stagnation"` // 0 disables
	Seed            int64         `yaml:"seed" json:"seed"`             // 0 draws one from the clock
	Workers         int           `yaml:"workers" json:"workers"`       // 0 uses GOMAXPROCS
	RouteTwoOpt     bool          `yaml:"routeTwoOpt" json:"routeTwoOpt"`
	TimeBudget      time.Duration `yaml:"timeBudget" json:"timeBudget"` // 0 disables
}

func DefaultConfig() Config {
	return Config{
		Alpha:           1.0,
		Beta:            3.0,
		Ants:            10,
		Iterations:      300,
		Evaporation:     0.2,
		StagnationLimit: 50,
		Workers:         1,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Alpha < 0 || c.Beta < 0:
		return fmt.Errorf("alpha and beta must be >= 0: %w", ErrInvalidConfig)
	case c.Ants < 1:
		return fmt.Errorf("ants must be >= 1, got %d: %w", c.Ants, ErrInvalidConfig)
	case c.Iterations < 1:
		return fmt.Errorf("iterations must be >= 1, got %d: %w", c.Iterations, ErrInvalidConfig)
	case c.Evaporation < 0 || c.Evaporation >= 1:
		return fmt.Errorf("evaporation must be in [0,1), got %v: %w", c.Evaporation, ErrInvalidConfig)
	case c.StagnationLimit < 0:
		return fmt.Errorf("stagnation must be >= 0: %w", ErrInvalidConfig)
	case c.Workers < 0:
		return fmt.Errorf("workers must be >= 0: %w", ErrInvalidConfig)
	case c.TimeBudget < 0:
		return fmt.Errorf("timeBudget must be >= 0: %w", ErrInvalidConfig)
	}
	return nil
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

type StopReason string

const (
	StopIterations StopReason = "iterations"
	StopStagnation StopReason = "stagnation"
	StopTimeBudget StopReason = "time_budget"
	StopCanceled   StopReason = "canceled"
)

// MoveCounts tallies accepted local-search moves.
type MoveCounts struct {
	TwoOpt   int `json:"twoOpt"`
	Swap     int `json:"swap"`
	Relocate int `json:"relocate"`
	Exchange int `json:"exchange"`
}

func (m MoveCounts) Total() int { return m.TwoOpt + m.Swap + m.Relocate + m.Exchange }

type Metrics struct {
	Seed          int64      `json:"seed"`
	Iterations    int        `json:"iterations"`
	Improvements  int        `json:"improvements"`
	BestIteration int        `json:"bestIteration"`
	BestCost      float64    `json:"bestCost"`  // colony best, before local search
	FinalCost     float64    `json:"finalCost"` // after local search
	StopReason    StopReason `json:"stopReason"`
	Moves         MoveCounts `json:"moves"`
	// BestFoundAfter is the time from the start of the solve until the
	// colony best was last improved.
	BestFoundAfter time.Duration       `json:"bestFoundAfter"`
	Elapsed        time.Duration       `json:"elapsed"`
	Snapshots      []IterationSnapshot `json:"snapshots,omitempty"`
}

// IterationSnapshot is reported to observers after every iteration and kept
// in Metrics every snapshotEvery iterations.
type IterationSnapshot struct {
	Iteration     int     `json:"iteration"`
	BestCost      float64 `json:"bestCost"`
	IterationBest float64 `json:"iterationBest"`
	IterationMean float64 `json:"iterationMean"`
	Stagnation    int     `json:"stagnation"`
}
