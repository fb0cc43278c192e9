package jsonl

import (
	"time"

	"github.com/google/uuid"

	"ladder-optimizer/internal/config"
	"ladder-optimizer/internal/core/model"
	"ladder-optimizer/internal/core/optimizer"
	"ladder-optimizer/internal/stats/cycle"
)

// 输出文件名
const (
	LaddersFile = "ladders.jsonl"
	MetricsFile = "metrics.jsonl"
)

// LadderRecord 一个优化周期的输出记录
// 某类型不可用时对应字段为 null。
type LadderRecord struct {
	// CycleID 周期唯一标识
	CycleID string `json:"cycle_id"`
	// TsMs 记录时间（毫秒）
	TsMs int64 `json:"ts_ms"`
	// Currency 币种
	Currency string `json:"currency"`
	// Spot 参考现货价格
	Spot float64 `json:"spot"`
	// SnapshotAgeMs 计算时快照的时长（毫秒）
	SnapshotAgeMs int64 `json:"snapshot_age_ms"`
	// BenchmarkVol 实际使用的基准波动率
	BenchmarkVol float64 `json:"benchmark_vol"`
	// BenchmarkEstimated 基准波动率是否为估算值
	BenchmarkEstimated bool `json:"benchmark_estimated"`
	// RiskFreeRatePct 无风险利率（百分比）
	RiskFreeRatePct *float64 `json:"risk_free_rate_pct"`
	// Engine 本周期使用的引擎参数
	Engine config.EngineConfig `json:"engine"`
	// Call 最优 Covered Call 阶梯
	Call *model.ScoredLadder `json:"call"`
	// Put 最优 Cash-Secured Put 阶梯
	Put *model.ScoredLadder `json:"put"`
	// Recommended 推荐键集合
	Recommended []string `json:"recommended"`
	// Candidates 各类型候选腿数量
	Candidates map[model.OptionKind]int `json:"candidates"`
	// Scored 各类型参与评分的组合数量
	Scored map[model.OptionKind]int `json:"scored"`
	// ComputeMs 本周期计算耗时（毫秒）
	ComputeMs float64 `json:"compute_ms"`
}

// NewLadderRecord 由快照与优化结果构建输出记录
// 参数 snap: 本周期使用的快照
// 参数 cfg: 引擎参数
// 参数 res: 优化结果
// 参数 compute: 计算耗时
// 参数 now: 记录时间
func NewLadderRecord(snap *model.Snapshot, cfg config.EngineConfig, res *optimizer.Result, compute time.Duration, now time.Time) *LadderRecord {
	rec := &LadderRecord{
		CycleID:      uuid.NewString(),
		TsMs:         now.UnixMilli(),
		Engine:       cfg,
		Call:         res.Call,
		Put:          res.Put,
		Recommended:  res.Recommended,
		Candidates:   res.Candidates,
		Scored:       res.Scored,
		BenchmarkVol: res.BenchmarkVol,
		ComputeMs:    float64(compute.Microseconds()) / 1000,
	}
	if snap != nil {
		rec.Currency = snap.Currency
		rec.Spot = snap.Spot
		rec.SnapshotAgeMs = snap.Age(now).Milliseconds()
		rec.BenchmarkEstimated = snap.BenchmarkEstimated
		rec.RiskFreeRatePct = snap.RiskFreeRatePct
	}
	return rec
}

// MetricsRecord 周期性运行指标记录
type MetricsRecord struct {
	// TsMs 记录时间（毫秒）
	TsMs int64 `json:"ts_ms"`
	// Currency 币种
	Currency string `json:"currency"`
	// Cycle 周期耗时统计
	Cycle cycle.Stats `json:"cycle"`
	// FeedErrors 各数据源累计失败次数
	FeedErrors map[string]int64 `json:"feed_errors"`
	// BreakerState 熔断器状态
	BreakerState string `json:"breaker_state"`
	// Clients 推送连接数
	Clients int `json:"clients"`
	// LastCallScore 最近一次 Call 阶梯评分，不可用时为 null
	LastCallScore *float64 `json:"last_call_score"`
	// LastPutScore 最近一次 Put 阶梯评分，不可用时为 null
	LastPutScore *float64 `json:"last_put_score"`
}
