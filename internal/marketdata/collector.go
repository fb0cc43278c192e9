package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ladder-optimizer/internal/config"
	"ladder-optimizer/internal/core/model"
	"ladder-optimizer/internal/pricing"
)

// Collector 组合期权行情、波动率指数与无风险利率生成一份快照
// 期权行情失败视为本周期失败；波动率指数与利率失败只降级，不中断周期。
type Collector struct {
	// fetcher 行情获取器
	fetcher Fetcher
	// currency 币种（大写）
	currency string
	// strikeStep 行权价步长过滤
	strikeStep float64
	// logger 日志记录器
	logger *zap.Logger
	// onError 数据源失败回调（参数为数据源标识）
	onError func(endpoint string)
	// now 时钟（测试可替换）
	now func() time.Time
}

// NewCollector 创建快照收集器
// 参数 fetcher: 行情获取器
// 参数 cfg: 行情源配置
// 参数 logger: 日志记录器
func NewCollector(fetcher Fetcher, cfg config.FeedConfig, logger *zap.Logger) *Collector {
	return &Collector{
		fetcher:    fetcher,
		currency:   strings.ToUpper(cfg.Currency),
		strikeStep: cfg.StrikeStep,
		logger:     logger.Named("collector"),
		onError:    func(string) {},
		now:        time.Now,
	}
}

// OnError 设置数据源失败回调
func (c *Collector) OnError(fn func(endpoint string)) {
	if fn != nil {
		c.onError = fn
	}
}

// SetClock 替换计算剩余天数所用的时钟（离线复盘时固定为行情时刻）
func (c *Collector) SetClock(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// Currency 返回收集的币种
func (c *Collector) Currency() string {
	return c.currency
}

// Collect 拉取一份完整快照
// 波动率指数不可用时，由期限结构按 30 天线性方差插值估算。
// 参数 ctx: 上下文
// 返回: 快照；期权行情不可用时返回错误
func (c *Collector) Collect(ctx context.Context) (*model.Snapshot, error) {
	summaries, err := c.fetcher.FetchBookSummary(ctx, c.currency)
	if err != nil {
		c.onError(EndpointBookSummary)
		return nil, fmt.Errorf("获取 %s 期权行情失败: %w", c.currency, err)
	}

	now := c.now()
	snap := &model.Snapshot{
		Currency:  c.currency,
		Quotes:    BuildQuotes(summaries, now, c.strikeStep),
		Spot:      SpotPrice(summaries),
		FetchedAt: now,
	}

	if v, err := c.fetcher.FetchVolatilityIndex(ctx, c.currency); err == nil {
		snap.BenchmarkVol = &v
	} else {
		c.onError(EndpointVolatilityIndex)
		if est := pricing.EstimateBenchmarkVol(snap.Quotes, snap.Spot); est > 0 {
			snap.BenchmarkVol = &est
			snap.BenchmarkEstimated = true
		}
		c.logger.Warn("波动率指数不可用，使用期限结构估算",
			zap.Error(err),
			zap.Bool("estimated", snap.BenchmarkEstimated))
	}

	if r, err := c.fetcher.FetchRiskFreeRate(ctx); err == nil {
		snap.RiskFreeRatePct = &r
	} else if !errors.Is(err, ErrNotConfigured) {
		c.onError(EndpointRiskFreeRate)
		c.logger.Warn("无风险利率不可用", zap.Error(err))
	}

	c.logger.Debug("快照已更新",
		zap.String("currency", c.currency),
		zap.Int("summaries", len(summaries)),
		zap.Int("quotes", len(snap.Quotes)),
		zap.Float64("spot", snap.Spot))

	return snap, nil
}
