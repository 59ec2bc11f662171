package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nearp/internal/opt"
)

func TestObserveSolve(t *testing.T) {
	RegisterDefault()
	RegisterDefault()

	before := testutil.ToFloat64(SolveRuns.WithLabelValues("succeeded"))
	moves := testutil.ToFloat64(LocalSearchMoves.WithLabelValues("relocate"))
	ObserveSolve("succeeded", &opt.Metrics{Iterations: 12, FinalCost: 321, Elapsed: time.Second, Moves: opt.MoveCounts{Relocate: 3}})
	ObserveSolve("failed", nil)

	assert.Equal(t, before+1, testutil.ToFloat64(SolveRuns.WithLabelValues("succeeded")))
	assert.Equal(t, moves+3, testutil.ToFloat64(LocalSearchMoves.WithLabelValues("relocate")))
	assert.Equal(t, 321.0, testutil.ToFloat64(SolveBestCost))

	ObserveRequest("GET", "/healthz", 200, 5*time.Millisecond)
	n, err := testutil.GatherAndCount(Registry, "http_requests_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
}
