package api

import (
	"net/http"
	"time"

	"nearp/internal/buildinfo"
)

// DebugJSON reports the build and a secret-free view of the configuration.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"environment":      s.Cfg.Environment,
			"port":             s.Cfg.Server.Port,
			"rateRps":          s.Cfg.RateLimit.RPS,
			"rateBurst":        s.Cfg.RateLimit.Burst,
			"solveTimeout":     s.Cfg.Solve.Timeout.String(),
			"solveMaxPending":  s.Cfg.Solve.MaxPending,
			"solveMaxVertices": s.Cfg.Solve.MaxVertices,
			"hasDatabaseUrl":   s.Cfg.Database.URL != "",
			"hasRedisUrl":      s.Cfg.Redis.URL != "",
		},
	})
}
