// Package cycle 统计优化周期的计算耗时与失败次数。
package cycle

import (
	"sync/atomic"
	"time"
)

// Stats 周期统计快照（滚动窗口）
// 耗时单位：毫秒。
type Stats struct {
	// Cycles 成功完成的周期数（累计）
	Cycles int64 `json:"cycles"`
	// Failures 失败的周期数（累计）
	Failures int64 `json:"failures"`
	// LastMs 最近一次周期耗时
	LastMs float64 `json:"last_ms"`
	// P50Ms 耗时 P50
	P50Ms float64 `json:"p50_ms"`
	// P90Ms 耗时 P90
	P90Ms float64 `json:"p90_ms"`
	// P99Ms 耗时 P99
	P99Ms float64 `json:"p99_ms"`
}

// Tracker 周期耗时追踪器（并发安全）
type Tracker struct {
	durations *rollingWindow
	failures  atomic.Int64
	lastNs    atomic.Int64
}

// NewTracker 创建周期追踪器
// 参数 windowSize: 滚动窗口大小，用于 P50/P90/P99
func NewTracker(windowSize int) *Tracker {
	return &Tracker{durations: newRollingWindow(windowSize)}
}

// Observe 记录一次成功周期的耗时
func (t *Tracker) Observe(d time.Duration) {
	ns := d.Nanoseconds()
	if ns < 0 {
		ns = 0
	}
	t.lastNs.Store(ns)
	t.durations.add(ns)
}

// Fail 记录一次失败周期
func (t *Tracker) Fail() {
	t.failures.Add(1)
}

// Stats 获取统计快照
func (t *Tracker) Stats() Stats {
	count, qs := t.durations.quantiles(0.50, 0.90, 0.99)
	return Stats{
		Cycles:   count,
		Failures: t.failures.Load(),
		LastMs:   nsToMs(t.lastNs.Load()),
		P50Ms:    nsToMs(qs[0]),
		P90Ms:    nsToMs(qs[1]),
		P99Ms:    nsToMs(qs[2]),
	}
}

func nsToMs(ns int64) float64 {
	return float64(ns) / 1_000_000.0
}
