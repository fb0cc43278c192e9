package model

import "time"

// Snapshot 一次刷新获取的完整市场数据
type Snapshot struct {
	// Currency 标的币种，如 BTC
	Currency string `json:"currency"`
	// Quotes 期权报价
	Quotes []OptionQuote `json:"quotes"`
	// Spot 现货/交割参考价格
	Spot float64 `json:"spot"`
	// BenchmarkVol 波动率指数（百分比），缺失时为 nil
	BenchmarkVol *float64 `json:"benchmark_vol,omitempty"`
	// BenchmarkEstimated BenchmarkVol 是否由期限结构估算得到
	BenchmarkEstimated bool `json:"benchmark_estimated"`
	// RiskFreeRatePct 无风险利率（百分比），缺失时为 nil
	RiskFreeRatePct *float64 `json:"risk_free_rate_pct,omitempty"`
	// FetchedAt 获取时间
	FetchedAt time.Time `json:"fetched_at"`
}

// IsEmpty 快照是否没有可用报价
func (s *Snapshot) IsEmpty() bool {
	return s == nil || len(s.Quotes) == 0
}

// Age 返回快照距 now 的时长
func (s *Snapshot) Age(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	return now.Sub(s.FetchedAt)
}
