package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder-optimizer/internal/core/model"
	"ladder-optimizer/internal/core/optimizer"
)

func TestRegistry_ObserveCycle(t *testing.T) {
	r := NewRegistry()
	res := &optimizer.Result{
		Put:          &model.ScoredLadder{Kind: model.KindPut, Score: 7.25},
		Recommended:  []string{"P-90000-27MAR26", "P-95000-27MAR26"},
		BenchmarkVol: 48,
		Candidates:   map[model.OptionKind]int{model.KindPut: 12, model.KindCall: 3},
		Scored:       map[model.OptionKind]int{model.KindPut: 120, model.KindCall: 6},
	}

	r.ObserveCycle(res, 20*time.Millisecond)
	r.ObserveCycle(res, 30*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Cycles.WithLabelValues("ok")))
	assert.Equal(t, 12.0, testutil.ToFloat64(r.CandidateLegs.WithLabelValues("put")))
	assert.Equal(t, 240.0, testutil.ToFloat64(r.LaddersScored.WithLabelValues("put")))
	assert.Equal(t, 7.25, testutil.ToFloat64(r.BestScore.WithLabelValues("put")))
	assert.Equal(t, -1.0, testutil.ToFloat64(r.BestScore.WithLabelValues("call")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Recommended))
	assert.Equal(t, 48.0, testutil.ToFloat64(r.BenchmarkVol))

	r.CycleFailed()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Cycles.WithLabelValues("error")))
}

func TestRegistry_FeedAndBreaker(t *testing.T) {
	r := NewRegistry()
	r.FeedError("book_summary")
	r.FeedError("book_summary")
	r.FeedError("volatility_index")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.FeedErrors.WithLabelValues("book_summary")))
	assert.Equal(t, map[string]int64{"book_summary": 2, "volatility_index": 1}, r.FeedErrorCounts())

	assert.Equal(t, "closed", r.BreakerStateName())
	r.SetBreakerState(gobreaker.StateOpen)
	assert.Equal(t, 2.0, testutil.ToFloat64(r.BreakerState))
	assert.Equal(t, "open", r.BreakerStateName())
	r.SetBreakerState(gobreaker.StateHalfOpen)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.BreakerState))
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.PushClients.Set(3)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, "ladder_push_clients 3"), text)
	assert.Contains(t, text, "ladder_cycle_duration_seconds")
}
