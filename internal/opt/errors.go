package opt

import "errors"

var (
	// ErrInfeasibleNetwork: some required service cannot be reached from the
	// depot, or cannot return to it. The whole solve fails.
	ErrInfeasibleNetwork = errors.New("infeasible network")
	// ErrCapacityViolation means a route exceeded vehicle capacity. Candidate
	// filtering rules this out, so seeing it is a bug.
	ErrCapacityViolation = errors.New("capacity violation")
	// ErrDegenerateCost classifies a non-positive solution cost met during
	// reinforcement. Reinforcement floors it, so it is never returned.
	ErrDegenerateCost = errors.New("degenerate solution cost")
	// ErrInvalidSolution reports a solution that does not serve every
	// service exactly once.
	ErrInvalidSolution = errors.New("invalid solution")
	ErrInvalidConfig   = errors.New("invalid solver config")
)
