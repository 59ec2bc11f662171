package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"nearp/internal/opt"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// SolveRuns counts finished solves by terminal status
	SolveRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "nearp_solve_runs_total", Help: "Solver runs by terminal status."},
		[]string{"status"},
	)
	SolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "nearp_solve_duration_seconds", Help: "Wall-clock time of a solve.", Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300}},
	)
	SolveIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "nearp_solve_iterations", Help: "Colony iterations run per solve.", Buckets: []float64{1, 10, 50, 100, 200, 300, 500, 1000}},
	)
	// SolveBestCost is the final cost of the most recent successful solve
	SolveBestCost = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "nearp_solve_best_cost", Help: "Final cost of the last successful solve."},
	)
	LocalSearchMoves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "nearp_local_search_moves_total", Help: "Accepted local-search moves by move type."},
		[]string{"move"},
	)
	// WebhookDeliveries counts completion callbacks by outcome
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "nearp_webhook_deliveries_total", Help: "Completion callbacks by outcome (delivered, failed, abandoned)."},
		[]string{"outcome"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(SolveRuns)
		Registry.MustRegister(SolveDuration)
		Registry.MustRegister(SolveIterations)
		Registry.MustRegister(SolveBestCost)
		Registry.MustRegister(LocalSearchMoves)
		Registry.MustRegister(WebhookDeliveries)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// ObserveRequest records one served HTTP request.
func ObserveRequest(method, path string, status int, d time.Duration) {
	code := strconv.Itoa(status)
	HTTPRequests.WithLabelValues(method, path, code).Inc()
	HTTPDuration.WithLabelValues(method, path, code).Observe(d.Seconds())
}

// ObserveSolve records the outcome of one solve. m may be nil for runs that
// failed before the colony started.
func ObserveSolve(status string, m *opt.Metrics) {
	SolveRuns.WithLabelValues(status).Inc()
	if m == nil {
		return
	}
	SolveDuration.Observe(m.Elapsed.Seconds())
	SolveIterations.Observe(float64(m.Iterations))
	if m.Iterations > 0 {
		SolveBestCost.Set(m.FinalCost)
	}
	LocalSearchMoves.WithLabelValues("two_opt").Add(float64(m.Moves.TwoOpt))
	LocalSearchMoves.WithLabelValues("swap").Add(float64(m.Moves.Swap))
	LocalSearchMoves.WithLabelValues("relocate").Add(float64(m.Moves.Relocate))
	LocalSearchMoves.WithLabelValues("exchange").Add(float64(m.Moves.Exchange))
}

func ObserveWebhook(outcome string) {
	WebhookDeliveries.WithLabelValues(outcome).Inc()
}
