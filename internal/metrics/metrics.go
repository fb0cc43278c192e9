// Package metrics 定义服务的 Prometheus 指标。
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"

	"ladder-optimizer/internal/core/model"
	"ladder-optimizer/internal/core/optimizer"
)

// Registry 服务指标集合
// 使用独立的 prometheus.Registry，多个实例互不影响。
type Registry struct {
	reg *prometheus.Registry

	// CycleDuration 周期计算耗时（秒）
	CycleDuration prometheus.Histogram
	// Cycles 周期计数，按结果区分（ok/error）
	Cycles *prometheus.CounterVec
	// CandidateLegs 候选腿数量，按类型区分
	CandidateLegs *prometheus.GaugeVec
	// LaddersScored 参与评分的组合累计数量，按类型区分
	LaddersScored *prometheus.CounterVec
	// BestScore 最优阶梯评分，按类型区分；不可用时为 -1
	BestScore *prometheus.GaugeVec
	// Recommended 推荐集合大小
	Recommended prometheus.Gauge
	// BenchmarkVol 实际使用的基准波动率
	BenchmarkVol prometheus.Gauge
	// FeedErrors 数据源失败次数，按数据源区分
	FeedErrors *prometheus.CounterVec
	// BreakerState 熔断器状态（0=closed, 1=half-open, 2=open）
	BreakerState prometheus.Gauge
	// PushClients 推送连接数
	PushClients prometheus.Gauge

	mu         sync.Mutex
	feedCounts map[string]int64
	breaker    gobreaker.State
}

// NewRegistry 创建并注册全部指标
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ladder_cycle_duration_seconds",
			Help:    "Time spent computing one optimization cycle",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ladder_cycles_total",
			Help: "Optimization cycles by outcome",
		}, []string{"outcome"}),
		CandidateLegs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ladder_candidate_legs",
			Help: "Candidate legs that passed filtering in the last cycle",
		}, []string{"kind"}),
		LaddersScored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ladder_combinations_scored_total",
			Help: "Ladder combinations scored",
		}, []string{"kind"}),
		BestScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ladder_best_score",
			Help: "Composite score of the best ladder in the last cycle (-1 if unavailable)",
		}, []string{"kind"}),
		Recommended: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ladder_recommended_keys",
			Help: "Size of the recommendation key set",
		}),
		BenchmarkVol: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ladder_benchmark_vol",
			Help: "Benchmark implied volatility used for scoring (percent)",
		}),
		FeedErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ladder_feed_errors_total",
			Help: "Market data fetch failures by endpoint",
		}, []string{"endpoint"}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ladder_feed_breaker_state",
			Help: "Market data circuit breaker state (0=closed, 1=half-open, 2=open)",
		}),
		PushClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ladder_push_clients",
			Help: "Connected websocket clients",
		}),
		feedCounts: make(map[string]int64),
	}

	r.reg.MustRegister(
		r.CycleDuration,
		r.Cycles,
		r.CandidateLegs,
		r.LaddersScored,
		r.BestScore,
		r.Recommended,
		r.BenchmarkVol,
		r.FeedErrors,
		r.BreakerState,
		r.PushClients,
		collectors.NewGoCollector(),
	)
	return r
}

// Handler 返回 /metrics 的 HTTP 处理器
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// ObserveCycle 记录一次成功周期
// 参数 res: 优化结果
// 参数 d: 计算耗时
func (r *Registry) ObserveCycle(res *optimizer.Result, d time.Duration) {
	r.CycleDuration.Observe(d.Seconds())
	r.Cycles.WithLabelValues("ok").Inc()
	r.Recommended.Set(float64(len(res.Recommended)))
	r.BenchmarkVol.Set(res.BenchmarkVol)

	for _, kind := range []model.OptionKind{model.KindCall, model.KindPut} {
		label := string(kind)
		r.CandidateLegs.WithLabelValues(label).Set(float64(res.Candidates[kind]))
		r.LaddersScored.WithLabelValues(label).Add(float64(res.Scored[kind]))
		score := -1.0
		if l := res.Ladder(kind); l != nil {
			score = l.Score
		}
		r.BestScore.WithLabelValues(label).Set(score)
	}
}

// CycleFailed 记录一次失败周期
func (r *Registry) CycleFailed() {
	r.Cycles.WithLabelValues("error").Inc()
}

// FeedError 记录一次数据源失败
func (r *Registry) FeedError(endpoint string) {
	r.FeedErrors.WithLabelValues(endpoint).Inc()
	r.mu.Lock()
	r.feedCounts[endpoint]++
	r.mu.Unlock()
}

// FeedErrorCounts 返回各数据源累计失败次数的拷贝
func (r *Registry) FeedErrorCounts() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64, len(r.feedCounts))
	for k, v := range r.feedCounts {
		out[k] = v
	}
	return out
}

// SetBreakerState 记录熔断器状态
func (r *Registry) SetBreakerState(st gobreaker.State) {
	r.BreakerState.Set(float64(breakerLevel(st)))
	r.mu.Lock()
	r.breaker = st
	r.mu.Unlock()
}

// BreakerStateName 返回最近记录的熔断器状态名称
func (r *Registry) BreakerStateName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.breaker.String()
}

// breakerLevel 将熔断器状态映射为指标值
func breakerLevel(st gobreaker.State) int {
	switch st {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
