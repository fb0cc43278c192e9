// Package backoff 实现行情拉取失败时的指数退避。
// 连续失败时逐步拉长重试间隔，避免在交易所限流或故障期间持续请求。
// 默认基础间隔 2s，最大间隔 60s，抖动 ±20%
package backoff

import (
	"math/rand"
	"time"
)

// maxShift 指数位移上限，防止 base<<attempt 溢出
const maxShift = 30

// Backoff 指数退避计算器（非并发安全，由拉取循环独占）
type Backoff struct {
	// base 基础等待时间
	base time.Duration
	// max 最大等待时间
	max time.Duration
	// jitter 抖动比例（0-1），例如 0.2 表示 ±20%
	jitter float64
	// attempt 连续失败次数
	attempt int
}

// New 创建新的退避计算器
// 参数 base: 基础等待时间
// 参数 max: 最大等待时间
// 参数 jitter: 抖动比例
func New(base, max time.Duration, jitter float64) *Backoff {
	return &Backoff{
		base:   base,
		max:    max,
		jitter: jitter,
	}
}

// NewDefault 创建默认配置的退避计算器
func NewDefault() *Backoff {
	return New(2*time.Second, 60*time.Second, 0.2)
}

// Next 获取下次重试的等待时间
// 计算公式: min(base × 2^attempt, max)，再应用抖动
func (b *Backoff) Next() time.Duration {
	shift := b.attempt
	if shift > maxShift {
		shift = maxShift
	}
	delay := b.base << shift
	if delay > b.max || delay <= 0 {
		delay = b.max
	}

	if b.jitter > 0 {
		jitterFactor := 1.0 + (rand.Float64()*2-1)*b.jitter
		delay = time.Duration(float64(delay) * jitterFactor)
	}

	b.attempt++
	return delay
}

// Reset 重置退避计算器
// 在一次成功拉取后调用
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt 获取当前连续失败次数
func (b *Backoff) Attempt() int {
	return b.attempt
}
