package opt

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nearp/internal/network"
)

// gridNetwork builds a connected, mixed network with required vertices, edges
// and arcs. Demands are small enough that several routes are needed.
func gridNetwork(seed int64, n int) *network.Network {
	rng := rand.New(rand.NewSource(seed))
	net := &network.Network{Name: "grid", VertexCount: n, Depot: 1, Capacity: 12}
	id := 0
	for v := 1; v < n; v++ {
		id++
		net.Edges = append(net.Edges, network.Edge{
			ID: id, From: v, To: v + 1, TransitCost: float64(1 + rng.Intn(9)),
			Required: v%2 == 0, Demand: 1 + rng.Intn(4), ServiceCost: float64(1 + rng.Intn(5)),
		})
	}
	for k := 0; k < n; k++ {
		from, to := 1+rng.Intn(n), 1+rng.Intn(n)
		if from == to {
			continue
		}
		net.Arcs = append(net.Arcs, network.Arc{
			ID: len(net.Arcs) + 1, From: from, To: to, TransitCost: float64(1 + rng.Intn(9)),
			Required: k%3 == 0, Demand: 1 + rng.Intn(4), ServiceCost: float64(1 + rng.Intn(5)),
		})
	}
	for v := 2; v <= n; v += 3 {
		net.Vertices = append(net.Vertices, network.Vertex{ID: v, Required: true, Demand: 1 + rng.Intn(3), ServiceCost: 1})
	}
	return net
}

func mustProblem(t *testing.T, net *network.Network) *Problem {
	t.Helper()
	p, err := NewProblem(net)
	require.NoError(t, err)
	return p
}

func serviceIDs(sol Solution) map[int]int {
	seen := map[int]int{}
	for _, r := range sol.Routes {
		for _, s := range r.Services {
			seen[s.ID]++
		}
	}
	return seen
}

func TestCatalogOrder(t *testing.T) {
	net := &network.Network{
		VertexCount: 4, Depot: 1, Capacity: 10,
		Vertices: []network.Vertex{{ID: 3, Required: true, Demand: 1}, {ID: 4}},
		Edges:    []network.Edge{{ID: 1, From: 1, To: 2, Required: true, Demand: 2}, {ID: 2, From: 2, To: 3}},
		Arcs:     []network.Arc{{ID: 1, From: 3, To: 4, Required: true, Demand: 3}},
	}
	cat := NewCatalog(net)
	require.Equal(t, 3, cat.Len())

	svcs := cat.Services()
	assert.Equal(t, VertexService, svcs[0].Kind)
	assert.Equal(t, 3, svcs[0].Head)
	assert.Equal(t, 3, svcs[0].Tail)
	assert.Equal(t, EdgeService, svcs[1].Kind)
	assert.Equal(t, ArcService, svcs[2].Kind)
	for i, s := range svcs {
		assert.Equal(t, i+1, s.ID)
	}

	require.NoError(t, cat.MarkServed(2))
	assert.Error(t, cat.MarkServed(2))
	assert.Error(t, cat.MarkServed(9))
	assert.Len(t, cat.Pending(), 2)
	assert.True(t, cat.IsServed(2))

	fresh := cat.Fresh()
	assert.False(t, fresh.IsServed(2))
	assert.Len(t, fresh.Pending(), 3)

	_, ok := cat.Get(0)
	assert.False(t, ok)
}

func TestFieldStaysPositive(t *testing.T) {
	f := NewField(3)
	assert.Equal(t, 1.0, f.At(0, 3))
	for i := 0; i < 100000; i++ {
		f.Evaporate(0.9)
	}
	assert.Greater(t, f.Min(), 0.0)

	f.Reinforce(1, 2, 0.5)
	assert.Greater(t, f.At(1, 2), f.At(2, 1))
}

func TestReinforcementAmountFloorsDegenerateCost(t *testing.T) {
	assert.Equal(t, 1.0, reinforcementAmount(0))
	assert.Equal(t, 1.0, reinforcementAmount(-3))
	assert.Equal(t, 0.25, reinforcementAmount(4))
}

func TestConstructRespectsCapacityAndCoverage(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		p := mustProblem(t, gridNetwork(seed, 15))
		sol, err := Construct(p, NewField(p.Network.VertexCount), DefaultConfig(), rand.New(rand.NewSource(seed)))
		require.NoError(t, err)
		require.NoError(t, sol.Check(p))

		total := 0.0
		for _, r := range sol.Routes {
			assert.LessOrEqual(t, r.Demand, p.Network.Capacity)
			assert.InDelta(t, p.routeCost(r.Services), r.Cost, 1e-9)
			total += r.Cost
		}
		assert.InDelta(t, total, sol.Cost, 1e-9)

		seen := serviceIDs(sol)
		assert.Len(t, seen, p.Catalog.Len())
		for id, n := range seen {
			assert.Equalf(t, 1, n, "service %d", id)
		}
	}
}

func TestConstructDeterministicForSeed(t *testing.T) {
	p := mustProblem(t, gridNetwork(7, 20))
	field := NewField(p.Network.VertexCount)
	a, err := Construct(p, field, DefaultConfig(), rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	b, err := Construct(p, field, DefaultConfig(), rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestConstructRouteTwoOpt(t *testing.T) {
	p := mustProblem(t, gridNetwork(3, 20))
	cfg := DefaultConfig()
	cfg.RouteTwoOpt = true
	sol, err := Construct(p, NewField(p.Network.VertexCount), cfg, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	require.NoError(t, sol.Check(p))
	im := newImprover(p)
	for i := range sol.Routes {
		assert.False(t, im.twoOpt(&sol.Routes[i]), "route %d not 2-opt optimal", i)
	}
}

func TestRouletteSelect(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	counts := make([]int, 3)
	for i := 0; i < 3000; i++ {
		counts[rouletteSelect([]float64{0, 1, 3}, 4, rng)]++
	}
	assert.Zero(t, counts[0])
	assert.Greater(t, counts[2], counts[1])
}

func TestImproveNeverWorsensAndIsFixedPoint(t *testing.T) {
	for seed := int64(1); seed <= 15; seed++ {
		p := mustProblem(t, gridNetwork(seed, 18))
		sol, err := Construct(p, NewField(p.Network.VertexCount), DefaultConfig(), rand.New(rand.NewSource(seed)))
		require.NoError(t, err)
		before := sol.Cost

		Improve(p, &sol)
		assert.LessOrEqual(t, sol.Cost, before+1e-9)
		require.NoError(t, sol.Check(p))
		for _, r := range sol.Routes {
			assert.NotEmpty(t, r.Services)
		}

		first := sol.Cost
		moves := Improve(p, &sol)
		assert.Zero(t, moves.Total())
		assert.InDelta(t, first, sol.Cost, 1e-9)
	}
}

func TestRelocateMergesRoutes(t *testing.T) {
	// Two vertex services next to each other, split over two routes.
	net := &network.Network{
		VertexCount: 3, Depot: 1, Capacity: 10,
		Vertices: []network.Vertex{{ID: 2, Required: true, Demand: 1}, {ID: 3, Required: true, Demand: 1}},
		Edges: []network.Edge{
			{ID: 1, From: 1, To: 2, TransitCost: 5},
			{ID: 2, From: 2, To: 3, TransitCost: 1},
		},
	}
	p := mustProblem(t, net)
	svcs := p.Catalog.Services()
	sol := Solution{Routes: []Route{
		{Services: []Service{svcs[0]}, Demand: 1},
		{Services: []Service{svcs[1]}, Demand: 1},
	}}
	for i := range sol.Routes {
		sol.Routes[i].Cost = p.routeCost(sol.Routes[i].Services)
		sol.Cost += sol.Routes[i].Cost
	}
	require.InDelta(t, 22.0, sol.Cost, 1e-9)

	moves := Improve(p, &sol)
	assert.Equal(t, 1, moves.Relocate)
	require.Len(t, sol.Routes, 1)
	assert.InDelta(t, 12.0, sol.Cost, 1e-9)
}

func TestUpdateFieldDepositsWalkedPairs(t *testing.T) {
	f := NewField(4)
	ant := Solution{Cost: 10, Routes: []Route{
		{Services: []Service{{ID: 1, Head: 2, Tail: 3}, {ID: 2, Head: 4, Tail: 4}}},
	}}
	best := Solution{Cost: 4, Routes: []Route{
		{Services: []Service{{ID: 2, Head: 4, Tail: 4}}},
	}}

	updateField(f, []Solution{ant}, best, 0.5, 1)

	// ant walk 1->2, 3->4, 4->1 gets 1/10; elitist walk 1->4, 4->1 gets 1/4
	assert.InDelta(t, 0.6, f.At(1, 2), 1e-12)
	assert.InDelta(t, 0.6, f.At(3, 4), 1e-12)
	assert.InDelta(t, 0.75, f.At(1, 4), 1e-12)
	assert.InDelta(t, 0.85, f.At(4, 1), 1e-12)
	// serviced links and reverse directions only evaporate
	assert.InDelta(t, 0.5, f.At(2, 3), 1e-12)
	assert.InDelta(t, 0.5, f.At(2, 1), 1e-12)
	assert.InDelta(t, 0.5, f.At(1, 3), 1e-12)
}

// lineNetwork places vertices on a line: depot 1 at 0, then ids 2..6 at
// 1, 2, 3, 9, 10, each a required vertex of demand 1 and no service cost.
func lineNetwork() *network.Network {
	net := &network.Network{VertexCount: 6, Depot: 1, Capacity: 10}
	for id := 2; id <= 6; id++ {
		net.Vertices = append(net.Vertices, network.Vertex{ID: id, Required: true, Demand: 1})
	}
	for i, c := range []float64{1, 1, 1, 6, 1} {
		net.Edges = append(net.Edges, network.Edge{ID: i + 1, From: i + 1, To: i + 2, TransitCost: c})
	}
	return net
}

func heads(r Route) []int {
	out := make([]int, len(r.Services))
	for i, s := range r.Services {
		out[i] = s.Head
	}
	return out
}

// zigzagRoute orders the line services as visiting coordinates 2, 1, 10, 3, 9.
func zigzagRoute(p *Problem) Route {
	svcs := p.Catalog.Services()
	r := Route{Services: []Service{svcs[1], svcs[0], svcs[4], svcs[2], svcs[3]}, Demand: 5}
	r.Cost = p.routeCost(r.Services)
	return r
}

func TestTwoOptAppliesBestReversal(t *testing.T) {
	p := mustProblem(t, lineNetwork())
	r := zigzagRoute(p)
	require.InDelta(t, 34.0, r.Cost, 1e-9)

	// Reversing positions 0..1 is the first improving segment (34 -> 32);
	// reversing 2..3 is the best one (34 -> 22).
	require.True(t, newImprover(p).twoOpt(&r))
	assert.Equal(t, []int{3, 2, 4, 6, 5}, heads(r))
	assert.InDelta(t, 22.0, r.Cost, 1e-9)
}

func TestSwapAppliesBestExchange(t *testing.T) {
	p := mustProblem(t, lineNetwork())
	r := zigzagRoute(p)

	// Swapping positions 0 and 1 is the first improving pair (34 -> 32);
	// swapping 1 and 4 is the best one (34 -> 20).
	require.True(t, newImprover(p).swap(&r))
	assert.Equal(t, []int{3, 5, 6, 4, 2}, heads(r))
	assert.InDelta(t, 20.0, r.Cost, 1e-9)
}

func TestExchangeSeparatesSides(t *testing.T) {
	// Depot 1 between a left pair (2, 3) and a right pair (4, 5). Each route
	// visits one vertex of each side; capacity forbids relocating.
	net := &network.Network{
		VertexCount: 5, Depot: 1, Capacity: 4,
		Vertices: []network.Vertex{
			{ID: 2, Required: true, Demand: 2}, {ID: 3, Required: true, Demand: 2},
			{ID: 4, Required: true, Demand: 2}, {ID: 5, Required: true, Demand: 2},
		},
		Edges: []network.Edge{
			{ID: 1, From: 1, To: 2, TransitCost: 10},
			{ID: 2, From: 2, To: 3, TransitCost: 1},
			{ID: 3, From: 1, To: 4, TransitCost: 10},
			{ID: 4, From: 4, To: 5, TransitCost: 1},
		},
	}
	p := mustProblem(t, net)
	svcs := p.Catalog.Services()
	sol := Solution{Routes: []Route{
		{Services: []Service{svcs[0], svcs[2]}, Demand: 4},
		{Services: []Service{svcs[1], svcs[3]}, Demand: 4},
	}}
	for i := range sol.Routes {
		sol.Routes[i].Cost = p.routeCost(sol.Routes[i].Services)
		sol.Cost += sol.Routes[i].Cost
	}
	require.InDelta(t, 84.0, sol.Cost, 1e-9)

	moves := Improve(p, &sol)
	assert.Equal(t, MoveCounts{Exchange: 1}, moves)
	assert.InDelta(t, 44.0, sol.Cost, 1e-9)
	require.Len(t, sol.Routes, 2)
	assert.ElementsMatch(t, []int{5, 4}, heads(sol.Routes[0]))
	assert.ElementsMatch(t, []int{3, 2}, heads(sol.Routes[1]))
	require.NoError(t, sol.Check(p))
}

func TestSolveSplitsOverCapacity(t *testing.T) {
	net := &network.Network{
		VertexCount: 3, Depot: 1, Capacity: 5,
		Vertices: []network.Vertex{{ID: 2, Required: true, Demand: 3}, {ID: 3, Required: true, Demand: 4}},
		Edges: []network.Edge{
			{ID: 1, From: 1, To: 2, TransitCost: 2},
			{ID: 2, From: 2, To: 3, TransitCost: 2},
			{ID: 3, From: 1, To: 3, TransitCost: 3},
		},
	}
	p := mustProblem(t, net)
	cfg := DefaultConfig()
	cfg.Seed = 1
	cfg.Iterations = 20
	sol, _, err := Solve(context.Background(), p, cfg)
	require.NoError(t, err)
	require.Len(t, sol.Routes, 2)
	for _, r := range sol.Routes {
		assert.Len(t, r.Services, 1)
	}
	assert.InDelta(t, 10.0, sol.Cost, 1e-9)
}

func TestSolveEmptyCatalog(t *testing.T) {
	net := &network.Network{
		VertexCount: 2, Depot: 1, Capacity: 5,
		Edges: []network.Edge{{ID: 1, From: 1, To: 2, TransitCost: 4}},
	}
	sol, met, err := Solve(context.Background(), mustProblem(t, net), DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, sol.Routes)
	assert.Zero(t, sol.Cost)
	assert.Zero(t, met.FinalCost)
}

func TestSolveSingleRequiredEdge(t *testing.T) {
	net := &network.Network{
		VertexCount: 3, Depot: 1, Capacity: 5,
		Edges: []network.Edge{
			{ID: 1, From: 1, To: 2, TransitCost: 10, Required: true, Demand: 2, ServiceCost: 10},
			{ID: 2, From: 2, To: 3, TransitCost: 1},
			{ID: 3, From: 1, To: 3, TransitCost: 1},
		},
	}
	p := mustProblem(t, net)
	cfg := DefaultConfig()
	cfg.Seed = 9
	cfg.Iterations = 5
	sol, _, err := Solve(context.Background(), p, cfg)
	require.NoError(t, err)
	require.Len(t, sol.Routes, 1)
	want := p.Paths.Dist(1, 1) + 10 + p.Paths.Dist(2, 1)
	assert.InDelta(t, want, sol.Cost, 1e-9)
	assert.InDelta(t, 12.0, sol.Cost, 1e-9)
}

func TestNewProblemInfeasible(t *testing.T) {
	// Vertex 3 hangs off an arc with no way back to the depot.
	net := &network.Network{
		VertexCount: 3, Depot: 1, Capacity: 5,
		Vertices: []network.Vertex{{ID: 3, Required: true, Demand: 1}},
		Edges:    []network.Edge{{ID: 1, From: 1, To: 2, TransitCost: 1}},
		Arcs:     []network.Arc{{ID: 1, From: 2, To: 3, TransitCost: 1}},
	}
	_, err := NewProblem(net)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInfeasibleNetwork))
}

func TestSolveDeterministicAcrossWorkers(t *testing.T) {
	p := mustProblem(t, gridNetwork(11, 25))
	cfg := DefaultConfig()
	cfg.Seed = 1234
	cfg.Iterations = 15

	seq, m1, err := Solve(context.Background(), p, cfg)
	require.NoError(t, err)
	cfg.Workers = 4
	par, m2, err := Solve(context.Background(), p, cfg)
	require.NoError(t, err)

	assert.Equal(t, seq, par)
	assert.Equal(t, m1.BestCost, m2.BestCost)
	assert.LessOrEqual(t, m1.FinalCost, m1.BestCost+1e-9)
}

func TestSolveClockSeedReplays(t *testing.T) {
	p := mustProblem(t, gridNetwork(5, 15))
	cfg := DefaultConfig()
	cfg.Iterations = 8

	first, m1, err := Solve(context.Background(), p, cfg)
	require.NoError(t, err)
	require.Positive(t, m1.Seed)

	cfg.Seed = m1.Seed
	again, m2, err := Solve(context.Background(), p, cfg)
	require.NoError(t, err)
	assert.Equal(t, m1.Seed, m2.Seed)
	assert.Equal(t, first, again)
}

func TestSolveStagnationStops(t *testing.T) {
	p := mustProblem(t, gridNetwork(2, 10))
	cfg := DefaultConfig()
	cfg.Seed = 3
	cfg.Iterations = 1000
	cfg.StagnationLimit = 5
	var iters int
	_, met, err := Solve(context.Background(), p, cfg, WithObserver(func(IterationSnapshot) { iters++ }))
	require.NoError(t, err)
	assert.Equal(t, StopStagnation, met.StopReason)
	assert.Equal(t, met.Iterations, iters)
	assert.Equal(t, met.BestIteration+cfg.StagnationLimit-1, met.Iterations)
}

func TestSolveCanceled(t *testing.T) {
	p := mustProblem(t, gridNetwork(4, 10))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Solve(ctx, p, DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	cfg := DefaultConfig()
	cfg.Seed = 8
	cfg.StagnationLimit = 0
	sol, met, err := Solve(ctx, p, cfg, WithObserver(func(s IterationSnapshot) {
		if s.Iteration == 3 {
			cancel()
		}
	}))
	require.NoError(t, err)
	assert.Equal(t, StopCanceled, met.StopReason)
	assert.Equal(t, 3, met.Iterations)
	require.NoError(t, sol.Check(p))
}

func TestSolveRejectsBadConfig(t *testing.T) {
	p := mustProblem(t, gridNetwork(1, 5))
	cfg := DefaultConfig()
	cfg.Evaporation = 1
	_, _, err := Solve(context.Background(), p, cfg)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestCheckDetectsDuplicates(t *testing.T) {
	net := &network.Network{
		VertexCount: 3, Depot: 1, Capacity: 10,
		Vertices: []network.Vertex{{ID: 2, Required: true, Demand: 1}, {ID: 3, Required: true, Demand: 1}},
		Edges:    []network.Edge{{ID: 1, From: 1, To: 2, TransitCost: 1}, {ID: 2, From: 2, To: 3, TransitCost: 1}},
	}
	p := mustProblem(t, net)
	svcs := p.Catalog.Services()

	dup := Solution{Routes: []Route{{Services: []Service{svcs[0], svcs[0]}}}}
	assert.True(t, errors.Is(dup.Check(p), ErrInvalidSolution))

	p.Network.Capacity = 1
	full := Solution{Routes: []Route{{Services: svcs}}}
	assert.True(t, errors.Is(full.Check(p), ErrCapacityViolation))
}
