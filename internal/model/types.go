package model

import (
	"time"

	"nearp/internal/network"
	"nearp/internal/opt"
)

// Run lifecycle states.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// SolveRequest is the body of POST /v1/solve. Exactly one of Instance (text
// in the instance file format) or Network must be set. CallbackURL, when
// set, receives a run.finished webhook.
//
// A positive Seed overrides the solver seed; 0 keeps the configured one, and
// a configured 0 draws from the clock. The seed actually used is returned in
// the run's config and metrics, so any run can be replayed.
type SolveRequest struct {
	Name        string           `json:"name,omitempty"`
	Instance    string           `json:"instance,omitempty"`
	Network     *network.Network `json:"network,omitempty"`
	Config      *ConfigOverrides `json:"config,omitempty"`
	Seed        int64            `json:"seed,omitempty"`
	Wait        bool             `json:"wait,omitempty"`
	CallbackURL string           `json:"callbackUrl,omitempty"`
}

// ConfigOverrides replaces individual solver defaults; nil fields keep them.
type ConfigOverrides struct {
	Alpha        *float64 `json:"alpha,omitempty"`
	Beta         *float64 `json:"beta,omitempty"`
	Ants         *int     `json:"ants,omitempty"`
	Iterations   *int     `json:"iterations,omitempty"`
	Evaporation  *float64 `json:"evaporation,omitempty"`
	Stagnation   *int     `json:"stagnation,omitempty"`
	Workers      *int     `json:"workers,omitempty"`
	RouteTwoOpt  *bool    `json:"routeTwoOpt,omitempty"`
	TimeBudgetMs *int64   `json:"timeBudgetMs,omitempty"`
}

// Apply returns base with every non-nil override set.
func (o *ConfigOverrides) Apply(base opt.Config) opt.Config {
	if o == nil {
		return base
	}
	if o.Alpha != nil {
		base.Alpha = *o.Alpha
	}
	if o.Beta != nil {
		base.Beta = *o.Beta
	}
	if o.Ants != nil {
		base.Ants = *o.Ants
	}
	if o.Iterations != nil {
		base.Iterations = *o.Iterations
	}
	if o.Evaporation != nil {
		base.Evaporation = *o.Evaporation
	}
	if o.Stagnation != nil {
		base.StagnationLimit = *o.Stagnation
	}
	if o.Workers != nil {
		base.Workers = *o.Workers
	}
	if o.RouteTwoOpt != nil {
		base.RouteTwoOpt = *o.RouteTwoOpt
	}
	if o.TimeBudgetMs != nil {
		base.TimeBudget = time.Duration(*o.TimeBudgetMs) * time.Millisecond
	}
	return base
}

// Visit is one stop of a route: a depot marker ("D") at both ends, or a
// service ("S") whose Kind is vertex, edge or arc.
type Visit struct {
	Type      string `json:"type"`
	ServiceID int    `json:"serviceId,omitempty"`
	Kind      string `json:"kind,omitempty"`
	ElementID int    `json:"elementId,omitempty"`
	Head      int    `json:"head"`
	Tail      int    `json:"tail"`
}

type Route struct {
	Index  int     `json:"index"`
	Demand int     `json:"demand"`
	Cost   float64 `json:"cost"`
	Visits []Visit `json:"visits"`
	// Path is the full vertex walk, filled only when paths are expanded.
	Path []int `json:"path,omitempty"`
}

type Solution struct {
	Cost   float64 `json:"cost"`
	Routes []Route `json:"routes"`
}

// Run is one solve request and, once finished, its outcome.
type Run struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Status     string       `json:"status"`
	Depot      int          `json:"depot"`
	Config     opt.Config   `json:"config"`
	Solution   *Solution    `json:"solution,omitempty"`
	Metrics    *opt.Metrics `json:"metrics,omitempty"`
	Error      string       `json:"error,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
	FinishedAt *time.Time   `json:"finishedAt,omitempty"`
}

// Finished reports whether the run reached a terminal state.
func (r Run) Finished() bool {
	return r.Status == StatusSucceeded || r.Status == StatusFailed || r.Status == StatusCanceled
}

// Progress is published after every colony iteration of a run.
type Progress struct {
	RunID         string  `json:"runId"`
	Iteration     int     `json:"iteration"`
	BestCost      float64 `json:"bestCost"`
	IterationBest float64 `json:"iterationBest"`
	IterationMean float64 `json:"iterationMean"`
	Stagnation    int     `json:"stagnation"`
}
