package api

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"nearp/internal/config"
	"nearp/internal/metrics"
	"nearp/internal/store"
	"nearp/internal/webhooks"
)

type Server struct {
	Store  store.Store
	Broker EventBroker
	Log    *zap.Logger
	Cfg    config.Config
	Notify *webhooks.Notifier

	limiter *rate.Limiter
	slots   chan struct{} // one token per queued or running solve
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a Server from cfg. Without a database URL runs are kept
// in memory; without a Redis URL events are fanned out in process.
func NewServer(ctx context.Context, cfg config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var st store.Store
	if strings.TrimSpace(cfg.Database.URL) == "" {
		st = store.NewMemory()
	} else {
		pg, err := store.NewPostgres(cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		if cfg.Database.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				_ = pg.Close()
				return nil, err
			}
		}
		st = pg
	}
	var broker EventBroker = NewBroker()
	if cfg.Redis.URL != "" {
		rb, err := NewRedisBroker(cfg.Redis.URL, log)
		if err != nil {
			log.Warn("redis broker unavailable, using in-process broker", zap.Error(err))
		} else {
			broker = rb
		}
	}
	return New(cfg, st, broker, log), nil
}

// New wires a Server around an existing store and broker.
func New(cfg config.Config, st store.Store, broker EventBroker, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	metrics.RegisterDefault()
	pending := cfg.Solve.MaxPending
	if pending <= 0 {
		pending = 1
	}
	s := &Server{
		Store:  st,
		Broker: broker,
		Log:    log,
		Cfg:    cfg,
		Notify: webhooks.NewNotifier(cfg.Webhooks.Secret, cfg.Webhooks.MaxAttempts, cfg.Webhooks.Timeout, log),
		slots:  make(chan struct{}, pending),
	}
	if cfg.RateLimit.RPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), max(cfg.RateLimit.Burst, 1))
	}
	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Handler returns the full HTTP surface wrapped in logging and metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/solve", s.limit(s.SolveHandler))
	mux.HandleFunc("GET /v1/runs", s.RunsIndexHandler)
	mux.HandleFunc("GET /v1/runs/{id}", s.RunHandler)
	mux.HandleFunc("GET /v1/runs/{id}/solution.dat", s.SolutionFileHandler)
	mux.HandleFunc("GET /v1/runs/{id}/events", s.RunEventsHandler)
	mux.HandleFunc("POST /v1/stats", s.StatsHandler)
	mux.HandleFunc("GET /v1/solver/config", s.SolverConfigHandler)

	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.HandleFunc("GET /readyz", s.ReadyHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /debug/build", s.DebugJSON)

	return s.logMiddleware(mux)
}

// Shutdown cancels every solve still in flight, waits for them to record
// their outcome, then releases the store and broker.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if c, ok := s.Broker.(io.Closer); ok {
		_ = c.Close()
	}
	if c, ok := s.Store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
