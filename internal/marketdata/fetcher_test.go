package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder-optimizer/internal/config"
)

func testFeedConfig(baseURL string) config.FeedConfig {
	return config.FeedConfig{
		Currency:             "BTC",
		BaseURL:              baseURL,
		SOFRURL:              baseURL + "/sofr/last/30.json",
		TimeoutMs:            2000,
		RateLimitRPS:         1000,
		RateLimitBurst:       10,
		BreakerMaxFailures:   2,
		BreakerOpenTimeoutMs: 60000,
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	golden, err := os.ReadFile("testdata/book_summary.json")
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/public/get_book_summary_by_currency", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTC", r.URL.Query().Get("currency"))
		assert.Equal(t, "option", r.URL.Query().Get("kind"))
		w.Header().Set("Content-Type", "application/json")
		w.Write(golden)
	})
	mux.HandleFunc("/public/get_volatility_index_data", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3600", r.URL.Query().Get("resolution"))
		assert.NotEmpty(t, r.URL.Query().Get("start_timestamp"))
		w.Write([]byte(`{"result":{"data":[[1700000000000,50.1,51,49,50.5],[1700003600000,50.5,53,50,52.25]],"continuation":null}}`))
	})
	mux.HandleFunc("/sofr/last/30.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"refRates":[{"effectiveDate":"2026-02-24","percentRate":4.30},{"effectiveDate":"2026-02-23","percentRate":4.34}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPFetcher_BookSummary(t *testing.T) {
	srv := newTestServer(t)
	f := NewHTTPFetcher(testFeedConfig(srv.URL), nil)

	summaries, err := f.FetchBookSummary(context.Background(), "BTC")
	require.NoError(t, err)
	require.Len(t, summaries, 7)
	assert.Equal(t, "BTC-27MAR26-90000-P", summaries[0].InstrumentName)
	assert.Equal(t, 48.5, summaries[0].MarkIV)
	assert.Nil(t, summaries[1].BidPrice)
}

func TestHTTPFetcher_VolatilityIndex(t *testing.T) {
	srv := newTestServer(t)
	f := NewHTTPFetcher(testFeedConfig(srv.URL), nil)
	f.now = func() time.Time { return time.UnixMilli(1700007200000) }

	v, err := f.FetchVolatilityIndex(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, 52.25, v)
}

func TestHTTPFetcher_VolatilityIndexFallbackToOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"data":[[1700000000000,61.5]]}}`))
	}))
	defer srv.Close()

	v, err := NewHTTPFetcher(testFeedConfig(srv.URL), nil).FetchVolatilityIndex(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, 61.5, v)
}

func TestHTTPFetcher_RiskFreeRate(t *testing.T) {
	srv := newTestServer(t)
	f := NewHTTPFetcher(testFeedConfig(srv.URL), nil)

	r, err := f.FetchRiskFreeRate(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 4.32, r, 1e-9)

	cfg := testFeedConfig(srv.URL)
	cfg.SOFRURL = ""
	_, err = NewHTTPFetcher(cfg, nil).FetchRiskFreeRate(context.Background())
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestHTTPFetcher_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":10001,"message":"bad currency"}}`))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(testFeedConfig(srv.URL), nil).FetchBookSummary(context.Background(), "XYZ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad currency")
}

func TestHTTPFetcher_BreakerOpens(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var transitions []gobreaker.State
	f := NewHTTPFetcher(testFeedConfig(srv.URL), func(from, to gobreaker.State) {
		transitions = append(transitions, to)
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := f.FetchBookSummary(ctx, "BTC")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, f.BreakerState())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)

	// 熔断打开后不再发出请求
	_, err := f.FetchBookSummary(ctx, "BTC")
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestHTTPFetcher_ContextCanceled(t *testing.T) {
	srv := newTestServer(t)
	f := NewHTTPFetcher(testFeedConfig(srv.URL), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.FetchBookSummary(ctx, "BTC")
	assert.Error(t, err)
}
