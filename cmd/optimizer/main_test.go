package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ladder-optimizer/internal/config"
	"ladder-optimizer/internal/core/store"
	"ladder-optimizer/internal/marketdata"
	"ladder-optimizer/internal/metrics"
	"ladder-optimizer/internal/output/jsonl"
	"ladder-optimizer/internal/output/push"
	"ladder-optimizer/internal/stats/cycle"
)

const (
	fixturePath = "testdata/book_summary.json"
	fixtureAsOf = "2026-02-25T08:00:00Z"
)

func TestOnceCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{
		"once",
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--snapshot", fixturePath,
		"--as-of", fixtureAsOf,
		"--benchmark-vol", "50",
		"--risk-free", "4.5",
		"--leg-count", "1",
	})
	require.NoError(t, root.Execute())

	var rec jsonl.LadderRecord
	require.NoError(t, json.Unmarshal(out.Bytes(), &rec))
	assert.Equal(t, "BTC", rec.Currency)
	assert.Equal(t, 100000.0, rec.Spot)
	assert.Equal(t, 50.0, rec.BenchmarkVol)
	assert.False(t, rec.BenchmarkEstimated)
	require.NotNil(t, rec.RiskFreeRatePct)
	assert.Equal(t, 4.5, *rec.RiskFreeRatePct)
	assert.Equal(t, 1, rec.Engine.LegCount)
	assert.NotEmpty(t, rec.CycleID)
	if rec.Put != nil {
		assert.Len(t, rec.Put.Legs, 1)
	}
}

func TestOnceCommand_InvalidEngine(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{
		"once",
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--snapshot", fixturePath,
		"--leg-count", "9",
	})
	assert.Error(t, root.Execute())
}

func TestOnceCommand_RequiresSnapshot(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"once", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, root.Execute())
}

func newTestService(t *testing.T) *service {
	t.Helper()
	cfg := config.Default()
	reg := metrics.NewRegistry()
	collector := marketdata.NewCollector(&marketdata.FileFetcher{Path: fixturePath, BenchmarkVol: 50}, cfg.Feed, zap.NewNop())
	asOf, err := time.Parse(time.RFC3339, fixtureAsOf)
	require.NoError(t, err)
	collector.SetClock(func() time.Time { return asOf })
	s := &service{
		cfg:       cfg,
		logger:    zap.NewNop(),
		collector: collector,
		store:     store.New(),
		metrics:   reg,
		tracker:   cycle.NewTracker(100),
		hub:       push.NewHub(zap.NewNop()),
	}
	engine := cfg.Engine
	s.engine.Store(&engine)
	return s
}

func TestService_RefreshAndUpdate(t *testing.T) {
	s := newTestService(t)

	require.NoError(t, s.refresh(context.Background()))
	assert.False(t, s.store.Get("BTC").IsEmpty())
	assert.Equal(t, int64(1), s.tracker.Stats().Cycles)

	legs := 2
	s.applyUpdate(push.Update{Patch: config.EngineUpdate{LegCount: &legs}})
	assert.Equal(t, 2, s.Engine().LegCount)
	// 参数修改后在缓存快照上重算
	assert.Equal(t, int64(2), s.tracker.Stats().Cycles)

	bad := 9
	s.applyUpdate(push.Update{Patch: config.EngineUpdate{LegCount: &bad}})
	assert.Equal(t, 2, s.Engine().LegCount)
	assert.Equal(t, int64(2), s.tracker.Stats().Cycles)
}

func TestService_RejectedUpdateRepliesToSender(t *testing.T) {
	s := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.hub.Run(ctx)
	ts := httptest.NewServer(http.HandlerFunc(s.hub.ServeWS))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	sender, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sender.Close() })
	other, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Close() })
	require.Eventually(t, func() bool { return s.hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(`{"type":"config","data":{"leg_count":9}}`)))
	select {
	case u := <-s.hub.Updates():
		s.applyUpdate(u)
	case <-time.After(2 * time.Second):
		t.Fatal("未收到参数修改")
	}
	assert.Equal(t, config.DefaultEngineConfig().LegCount, s.Engine().LegCount)

	require.NoError(t, sender.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := sender.ReadMessage()
	require.NoError(t, err)
	var msg push.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, push.MsgError, msg.Type)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = other.ReadMessage()
	assert.Error(t, err, "拒绝信息不应发给其他连接")
}

func TestService_RefreshFailure(t *testing.T) {
	s := newTestService(t)
	s.collector = marketdata.NewCollector(&marketdata.FileFetcher{Path: filepath.Join(t.TempDir(), "missing.json")}, s.cfg.Feed, zap.NewNop())
	s.collector.OnError(s.metrics.FeedError)

	assert.Error(t, s.refresh(context.Background()))
	assert.Equal(t, int64(1), s.tracker.Stats().Failures)
	assert.Equal(t, int64(1), s.metrics.FeedErrorCounts()[marketdata.EndpointBookSummary])
	assert.Nil(t, s.store.Get("BTC"))
}

func TestService_WriteMetrics(t *testing.T) {
	s := newTestService(t)
	w, err := jsonl.NewWriter(filepath.Join(t.TempDir(), jsonl.MetricsFile), jsonl.Options{QueueSize: 10})
	require.NoError(t, err)
	s.metricsW = w

	require.NoError(t, s.refresh(context.Background()))
	s.writeMetrics()
	require.NoError(t, w.Flush())

	written, failed := w.Stats()
	assert.Equal(t, int64(1), written)
	assert.Equal(t, int64(0), failed)
	require.NoError(t, w.Close())
}
