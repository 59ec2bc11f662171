package opt

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// snapshotEvery controls how often an IterationSnapshot is kept in Metrics.
const snapshotEvery = 10

// clockSeed draws a positive seed from the clock. Metrics.Seed reports it,
// and passing it back as Config.Seed replays the run.
func clockSeed() int64 {
	if s := time.Now().UnixNano() & math.MaxInt64; s != 0 {
		return s
	}
	return 1
}

type Option func(*solver)

func WithLogger(l *zap.Logger) Option {
	return func(s *solver) {
		if l != nil {
			s.log = l
		}
	}
}

// WithObserver registers fn to be called on the solving goroutine after
// every iteration. fn must not block for long.
func WithObserver(fn func(IterationSnapshot)) Option {
	return func(s *solver) { s.observe = fn }
}

type solver struct {
	log     *zap.Logger
	observe func(IterationSnapshot)
}

// Solve runs the ant colony on p and returns the best solution found after a
// final local search. ctx and cfg.TimeBudget are only checked between
// iterations; when either stops the run early the best solution so far is
// returned with the matching StopReason. If nothing was built yet the
// context error is returned instead.
func Solve(ctx context.Context, p *Problem, cfg Config, opts ...Option) (Solution, Metrics, error) {
	s := solver{log: zap.NewNop()}
	for _, o := range opts {
		o(&s)
	}
	if err := cfg.Validate(); err != nil {
		return Solution{}, Metrics{}, fmt.Errorf("solve: %w", err)
	}
	if cfg.Seed == 0 {
		cfg.Seed = clockSeed()
	}
	start := time.Now()
	met := Metrics{Seed: cfg.Seed, BestCost: math.Inf(1)}

	if p.Catalog.Len() == 0 {
		met.BestCost, met.StopReason, met.Elapsed = 0, StopIterations, time.Since(start)
		return Solution{}, met, nil
	}

	master := rand.New(rand.NewSource(cfg.Seed))
	field := NewField(p.Network.VertexCount)
	depot := p.Network.Depot
	ants := make([]Solution, cfg.Ants)
	seeds := make([]int64, cfg.Ants)

	var best Solution
	haveBest := false
	stagnation := 0

	for it := 1; ; it++ {
		if err := ctx.Err(); err != nil {
			if !haveBest {
				return Solution{}, met, fmt.Errorf("solve: %w", err)
			}
			met.StopReason = StopCanceled
			break
		}
		if cfg.TimeBudget > 0 && time.Since(start) >= cfg.TimeBudget && haveBest {
			met.StopReason = StopTimeBudget
			break
		}

		for i := range seeds {
			seeds[i] = master.Int63()
		}
		g := new(errgroup.Group)
		g.SetLimit(cfg.workers())
		for i := range ants {
			g.Go(func() error {
				sol, err := Construct(p, field, cfg, rand.New(rand.NewSource(seeds[i])))
				if err != nil {
					return err
				}
				ants[i] = sol
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Solution{}, met, fmt.Errorf("solve: iteration %d: %w", it, err)
		}

		iterBest, sum := math.Inf(1), 0.0
		improved := false
		for _, a := range ants {
			sum += a.Cost
			if a.Cost < iterBest {
				iterBest = a.Cost
			}
			if !haveBest || a.Cost < best.Cost {
				best, haveBest, improved = a.Clone(), true, true
			}
		}
		if improved {
			stagnation = 0
			met.Improvements++
			met.BestIteration = it
			met.BestFoundAfter = time.Since(start)
		}

		updateField(field, ants, best, cfg.Evaporation, depot)

		stagnation++
		met.Iterations = it
		snap := IterationSnapshot{
			Iteration:     it,
			BestCost:      best.Cost,
			IterationBest: iterBest,
			IterationMean: sum / float64(len(ants)),
			Stagnation:    stagnation,
		}
		if it%snapshotEvery == 0 {
			met.Snapshots = append(met.Snapshots, snap)
		}
		if s.observe != nil {
			s.observe(snap)
		}
		s.log.Debug("colony iteration",
			zap.Int("iteration", it),
			zap.Float64("best", best.Cost),
			zap.Float64("iteration_best", iterBest),
			zap.Int("stagnation", stagnation))

		if cfg.StagnationLimit > 0 && stagnation >= cfg.StagnationLimit {
			met.StopReason = StopStagnation
			break
		}
		if it >= cfg.Iterations {
			met.StopReason = StopIterations
			break
		}
	}

	met.BestCost = best.Cost
	met.Moves = Improve(p, &best)
	met.FinalCost = best.Cost
	met.Elapsed = time.Since(start)
	if err := best.Check(p); err != nil {
		return Solution{}, met, fmt.Errorf("solve: %w", err)
	}
	s.log.Info("colony finished",
		zap.Int64("seed", met.Seed),
		zap.Int("iterations", met.Iterations),
		zap.String("stop", string(met.StopReason)),
		zap.Float64("colony_best", met.BestCost),
		zap.Float64("final", met.FinalCost),
		zap.Int("moves", met.Moves.Total()),
		zap.Duration("elapsed", met.Elapsed))
	return best, met, nil
}
