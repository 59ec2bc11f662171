package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nearp/internal/instance"
	"nearp/internal/metrics"
	"nearp/internal/model"
	"nearp/internal/network"
	"nearp/internal/opt"
	"nearp/internal/paths"
	"nearp/internal/report"
	"nearp/internal/stats"
	"nearp/internal/store"
)

// maxBodyBytes caps request bodies; instance files are small text.
const maxBodyBytes = 8 << 20

// SolveHandler handles POST /v1/solve. The run is queued and solved in the
// background; with "wait": true the response is held until it finishes.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
	var req model.SolveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeProblem(w, r, probBadJSON, err.Error())
		return
	}
	if err := validateSolveRequest(&req); err != nil {
		writeProblem(w, r, probBadRequest, err.Error())
		return
	}
	net, ok := s.requestNetwork(w, r, &req)
	if !ok {
		return
	}
	cfg := req.Config.Apply(s.Cfg.Solver)
	if req.Seed != 0 {
		cfg.Seed = req.Seed
	}
	if err := cfg.Validate(); err != nil {
		writeProblem(w, r, probBadConfig, err.Error())
		return
	}

	// the shortest-path build is solver work and needs a slot too
	if !s.acquire(w, r) {
		return
	}
	p, err := opt.NewProblem(net)
	if err != nil {
		<-s.slots
		writeProblem(w, r, probInfeasible, err.Error())
		return
	}
	name := req.Name
	if name == "" {
		name = net.Name
	}
	run := model.Run{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    model.StatusQueued,
		Depot:     net.Depot,
		Config:    cfg,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Store.CreateRun(r.Context(), run); err != nil {
		<-s.slots
		writeProblem(w, r, probStore, err.Error())
		return
	}
	done := make(chan struct{})
	s.wg.Add(1)
	go s.execute(run, p, req.CallbackURL, done)

	if !req.Wait {
		w.Header().Set("Location", "/v1/runs/"+run.ID)
		writeJSON(w, http.StatusAccepted, run)
		return
	}
	select {
	case <-done:
	case <-r.Context().Done():
		return
	}
	got, err := s.Store.GetRun(r.Context(), run.ID)
	if err != nil {
		writeProblem(w, r, probStore, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, withPaths(got, r))
}

// errNetworkTooLarge rejects networks above Solve.MaxVertices before any
// matrix is allocated for them.
var errNetworkTooLarge = errors.New("network too large")

// requestNetwork returns the validated network of req, which holds exactly
// one of an instance text or a network. It writes the problem response and
// reports false when there is none.
func (s *Server) requestNetwork(w http.ResponseWriter, r *http.Request, req *model.SolveRequest) (*network.Network, bool) {
	net, err := loadNetwork(req.Instance, req.Network, s.Cfg.Solve.MaxVertices)
	switch {
	case errors.Is(err, errNetworkTooLarge):
		writeProblem(w, r, probTooLarge, err.Error())
		return nil, false
	case err != nil:
		writeProblem(w, r, probBadInstance, err.Error())
		return nil, false
	}
	return net, true
}

func loadNetwork(text string, net *network.Network, maxVertices int) (*network.Network, error) {
	if text != "" {
		parsed, err := instance.ParseString(text)
		if err != nil {
			return nil, err
		}
		net = parsed
	}
	if net != nil && maxVertices > 0 && net.VertexCount > maxVertices {
		return nil, fmt.Errorf("%d vertices, at most %d accepted: %w", net.VertexCount, maxVertices, errNetworkTooLarge)
	}
	if err := net.Validate(); err != nil {
		return nil, err
	}
	return net, nil
}

// acquire takes a solver slot without blocking. When none is free it writes
// 503 and reports false.
func (s *Server) acquire(w http.ResponseWriter, r *http.Request) bool {
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		w.Header().Set("Retry-After", "5")
		writeProblem(w, r, probBusy, "too many pending runs")
		return false
	}
}

// execute solves one run and records its outcome. It owns a slot token and
// releases it, and closes done, once the outcome is stored; the completion
// callback is sent after that.
func (s *Server) execute(run model.Run, p *opt.Problem, callback string, done chan<- struct{}) {
	defer s.wg.Done()
	log := s.Log.With(zap.String("run_id", run.ID), zap.String("name", run.Name))

	ctx := s.baseCtx
	if s.Cfg.Solve.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Cfg.Solve.Timeout)
		defer cancel()
	}

	run.Status = model.StatusRunning
	if err := s.Store.UpdateRun(ctx, run); err != nil {
		log.Warn("mark run running", zap.Error(err))
	}

	sol, met, err := opt.Solve(ctx, p, run.Config,
		opt.WithLogger(log),
		opt.WithObserver(func(snap opt.IterationSnapshot) {
			s.Broker.Publish(run.ID, Event{Type: EventProgress, Data: model.Progress{
				RunID:         run.ID,
				Iteration:     snap.Iteration,
				BestCost:      snap.BestCost,
				IterationBest: snap.IterationBest,
				IterationMean: snap.IterationMean,
				Stagnation:    snap.Stagnation,
			}})
		}))

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	switch {
	case err == nil:
		dto := report.SolutionDTO(sol, p.Network.Depot)
		report.ExpandPaths(&dto, p.Paths)
		run.Status = model.StatusSucceeded
		run.Solution = &dto
		run.Metrics = &met
		run.Config.Seed = met.Seed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		run.Status = model.StatusCanceled
		run.Error = err.Error()
	default:
		run.Status = model.StatusFailed
		run.Error = err.Error()
	}
	metrics.ObserveSolve(run.Status, run.Metrics)

	// ctx may already be done; the outcome must still be stored
	uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Store.UpdateRun(uctx, run); err != nil {
		log.Error("store run outcome", zap.Error(err))
	}
	evt := finishedEvent(run)
	s.Broker.Publish(run.ID, evt)
	log.Info("run finished", zap.String("status", run.Status), zap.String("error", run.Error))
	<-s.slots
	close(done)

	if callback == "" {
		return
	}
	if err := s.Notify.Notify(s.baseCtx, callback, evt.Type, evt.Data); err != nil {
		log.Warn("completion callback", zap.Error(err))
	}
}

func finishedEvent(run model.Run) Event {
	data := map[string]any{"runId": run.ID, "status": run.Status}
	if run.Solution != nil {
		data["cost"] = run.Solution.Cost
		data["routes"] = len(run.Solution.Routes)
	}
	if run.Error != "" {
		data["error"] = run.Error
	}
	return Event{Type: EventFinished, Data: data}
}

// withPaths strips route walks unless the request asked for expand=paths.
func withPaths(run model.Run, r *http.Request) model.Run {
	if r.URL.Query().Get("expand") == "paths" || run.Solution == nil {
		return run
	}
	sol := *run.Solution
	sol.Routes = make([]model.Route, len(run.Solution.Routes))
	for i, rt := range run.Solution.Routes {
		rt.Path = nil
		sol.Routes[i] = rt
	}
	run.Solution = &sol
	return run
}

// RunsIndexHandler handles GET /v1/runs.
func (s *Server) RunsIndexHandler(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeProblem(w, r, probBadLimit, v)
			return
		}
		limit = n
	}
	items, next, err := s.Store.ListRuns(r.Context(), cursor, limit)
	if err != nil {
		writeProblem(w, r, probStore, err.Error())
		return
	}
	for i := range items {
		items[i] = withPaths(items[i], r)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) (model.Run, bool) {
	run, err := s.Store.GetRun(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeProblem(w, r, probRunNotFound, r.PathValue("id"))
		return model.Run{}, false
	case err != nil:
		writeProblem(w, r, probStore, err.Error())
		return model.Run{}, false
	}
	return run, true
}

// RunHandler handles GET /v1/runs/{id}[?expand=paths].
func (s *Server) RunHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := s.getRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, withPaths(run, r))
}

// SolutionFileHandler handles GET /v1/runs/{id}/solution.dat and renders a
// finished run in the solution file format.
func (s *Server) SolutionFileHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := s.getRun(w, r)
	if !ok {
		return
	}
	if run.Solution == nil || run.Metrics == nil {
		writeProblem(w, r, probNoSolution, "run is "+run.Status)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="sol-`+run.Name+`.dat"`)
	err := report.WriteSolutionDTO(w, *run.Solution, run.Depot, 1,
		run.Metrics.Elapsed.Microseconds(), run.Metrics.BestFoundAfter.Microseconds())
	if err != nil {
		s.Log.Warn("write solution file", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// StatsHandler handles POST /v1/stats: structural statistics of a network
// given in the same body shape as a solve request.
func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	var req model.SolveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeProblem(w, r, probBadJSON, err.Error())
		return
	}
	if err := validateNetworkSource(&req); err != nil {
		writeProblem(w, r, probBadRequest, err.Error())
		return
	}
	net, ok := s.requestNetwork(w, r, &req)
	if !ok {
		return
	}
	if !s.acquire(w, r) {
		return
	}
	st := stats.Compute(net, paths.Build(net))
	<-s.slots
	writeJSON(w, http.StatusOK, report.NewStatisticsDocument(net, st))
}

// SolverConfigHandler handles GET /v1/solver/config: the defaults a solve
// request starts from.
func (s *Server) SolverConfigHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Cfg.Solver)
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler checks the database and Redis when they are in use.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	type pinger interface{ Ping(ctx context.Context) error }
	for _, dep := range []any{s.Store, s.Broker} {
		pg, ok := dep.(pinger)
		if !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		err := pg.Ping(ctx)
		cancel()
		if err != nil {
			writeProblem(w, r, probNotReady, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
