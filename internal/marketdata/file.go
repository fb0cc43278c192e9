package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileFetcher 从本地文件读取行情摘要，用于离线计算与复盘
// 文件内容与行情摘要 API 响应格式一致。
type FileFetcher struct {
	// Path 行情摘要文件路径
	Path string
	// BenchmarkVol 波动率指数（百分比），0 表示不可用
	BenchmarkVol float64
	// RiskFreeRatePct 无风险利率（百分比），nil 表示未配置
	RiskFreeRatePct *float64
}

// FetchBookSummary 读取文件中的行情摘要
func (f *FileFetcher) FetchBookSummary(_ context.Context, currency string) ([]BookSummary, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("读取行情文件失败: %w", err)
	}

	var resp bookSummaryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("解析行情文件失败: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("行情文件包含错误: code=%d, msg=%s", resp.Error.Code, resp.Error.Message)
	}
	if len(resp.Result) == 0 {
		return nil, fmt.Errorf("行情文件为空: %s", currency)
	}
	return resp.Result, nil
}

// FetchVolatilityIndex 返回固定的波动率指数
func (f *FileFetcher) FetchVolatilityIndex(_ context.Context, currency string) (float64, error) {
	if f.BenchmarkVol <= 0 {
		return 0, fmt.Errorf("离线模式未提供 %s 波动率指数", currency)
	}
	return f.BenchmarkVol, nil
}

// FetchRiskFreeRate 返回固定的无风险利率
func (f *FileFetcher) FetchRiskFreeRate(_ context.Context) (float64, error) {
	if f.RiskFreeRatePct == nil {
		return 0, ErrNotConfigured
	}
	return *f.RiskFreeRatePct, nil
}
