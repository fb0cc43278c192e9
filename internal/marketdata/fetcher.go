package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"ladder-optimizer/internal/config"
)

// 数据源标识（用于错误统计）
const (
	EndpointBookSummary     = "book_summary"
	EndpointVolatilityIndex = "volatility_index"
	EndpointRiskFreeRate    = "risk_free_rate"
)

// volIndexLookback 波动率指数回看窗口（约 24 小时，按小时 K 线）
const volIndexLookback = 86520 * time.Second

// ErrNotConfigured 数据源地址未配置
var ErrNotConfigured = errors.New("数据源未配置")

// Fetcher 行情获取器接口
type Fetcher interface {
	// FetchBookSummary 获取某币种全部期权的行情摘要
	FetchBookSummary(ctx context.Context, currency string) ([]BookSummary, error)
	// FetchVolatilityIndex 获取波动率指数最新值（百分比）
	FetchVolatilityIndex(ctx context.Context, currency string) (float64, error)
	// FetchRiskFreeRate 获取无风险利率（百分比）
	FetchRiskFreeRate(ctx context.Context) (float64, error)
}

// HTTPFetcher HTTP 行情获取器
// 所有请求共享一个限流器与一个熔断器。
type HTTPFetcher struct {
	// client HTTP 客户端
	client *http.Client
	// baseURL 交易所 REST API 根地址
	baseURL string
	// sofrURL 利率 API 地址
	sofrURL string
	// limiter 请求限流
	limiter *rate.Limiter
	// breaker 连续失败熔断
	breaker *gobreaker.CircuitBreaker
	// now 时钟（测试可替换）
	now func() time.Time
}

// NewHTTPFetcher 创建 HTTP 行情获取器
// 参数 cfg: 行情源配置
// 参数 onStateChange: 熔断器状态变化回调，可为 nil
func NewHTTPFetcher(cfg config.FeedConfig, onStateChange func(from, to gobreaker.State)) *HTTPFetcher {
	st := gobreaker.Settings{Name: "marketdata"}
	st.Interval = 60 * time.Second
	st.Timeout = time.Duration(cfg.BreakerOpenTimeoutMs) * time.Millisecond
	maxFailures := uint32(cfg.BreakerMaxFailures)
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= maxFailures
	}
	if onStateChange != nil {
		st.OnStateChange = func(_ string, from, to gobreaker.State) {
			onStateChange(from, to)
		}
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		sofrURL: cfg.SOFRURL,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		breaker: gobreaker.NewCircuitBreaker(st),
		now:     time.Now,
	}
}

// BreakerState 返回熔断器当前状态
func (f *HTTPFetcher) BreakerState() gobreaker.State {
	return f.breaker.State()
}

// FetchBookSummary 获取某币种全部期权的行情摘要
// 参数 ctx: 上下文，用于取消请求
// 参数 currency: 币种，如 BTC
func (f *HTTPFetcher) FetchBookSummary(ctx context.Context, currency string) ([]BookSummary, error) {
	q := url.Values{}
	q.Set("currency", currency)
	q.Set("kind", "option")

	body, err := f.doRequest(ctx, f.baseURL+"/public/get_book_summary_by_currency?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("请求期权行情失败: %w", err)
	}

	var resp bookSummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("解析期权行情失败: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("期权行情 API 返回错误: code=%d, msg=%s", resp.Error.Code, resp.Error.Message)
	}
	if len(resp.Result) == 0 {
		return nil, fmt.Errorf("期权行情为空: %s", currency)
	}

	return resp.Result, nil
}

// FetchVolatilityIndex 获取波动率指数最新值
// 取最近约 24 小时小时 K 线中最后一根的收盘价（缺失时取开盘价）。
// 参数 ctx: 上下文，用于取消请求
// 参数 currency: 币种，如 BTC
func (f *HTTPFetcher) FetchVolatilityIndex(ctx context.Context, currency string) (float64, error) {
	end := f.now()
	q := url.Values{}
	q.Set("currency", currency)
	q.Set("resolution", "3600")
	q.Set("start_timestamp", strconv.FormatInt(end.Add(-volIndexLookback).UnixMilli(), 10))
	q.Set("end_timestamp", strconv.FormatInt(end.UnixMilli(), 10))

	body, err := f.doRequest(ctx, f.baseURL+"/public/get_volatility_index_data?"+q.Encode())
	if err != nil {
		return 0, fmt.Errorf("请求波动率指数失败: %w", err)
	}

	var resp volatilityIndexResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("解析波动率指数失败: %w", err)
	}
	if resp.Error != nil {
		return 0, fmt.Errorf("波动率指数 API 返回错误: code=%d, msg=%s", resp.Error.Code, resp.Error.Message)
	}

	data := resp.Result.Data
	if len(data) == 0 {
		return 0, fmt.Errorf("波动率指数为空: %s", currency)
	}
	last := data[len(data)-1]
	var v float64
	switch {
	case len(last) > 4 && last[4] > 0:
		v = last[4]
	case len(last) > 1:
		v = last[1]
	}
	if v <= 0 {
		return 0, fmt.Errorf("波动率指数无效: %v", last)
	}
	return v, nil
}

// FetchRiskFreeRate 获取无风险利率
// 取最近 30 个交易日 SOFR 的平均值。
// 参数 ctx: 上下文，用于取消请求
func (f *HTTPFetcher) FetchRiskFreeRate(ctx context.Context) (float64, error) {
	if f.sofrURL == "" {
		return 0, ErrNotConfigured
	}

	body, err := f.doRequest(ctx, f.sofrURL)
	if err != nil {
		return 0, fmt.Errorf("请求无风险利率失败: %w", err)
	}

	var resp sofrResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("解析无风险利率失败: %w", err)
	}
	if len(resp.RefRates) == 0 {
		return 0, fmt.Errorf("无风险利率为空")
	}

	sum := 0.0
	for _, r := range resp.RefRates {
		sum += r.PercentRate
	}
	return sum / float64(len(resp.RefRates)), nil
}

// doRequest 执行 HTTP GET 请求
// 先经过限流器，再由熔断器包裹实际请求；熔断打开时直接返回 gobreaker.ErrOpenState。
// 参数 ctx: 上下文
// 参数 rawURL: 请求地址
// 返回: 响应体字节数组
func (f *HTTPFetcher) doRequest(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("等待限流失败: %w", err)
	}

	out, err := f.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("创建请求失败: %w", err)
		}

		req.Header.Set("User-Agent", "ladder-optimizer/1.0")
		req.Header.Set("Accept", "application/json")

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("发送请求失败: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("HTTP 状态码错误: %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("读取响应体失败: %w", err)
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}
