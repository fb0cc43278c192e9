// Package filter 将期权报价转换为带风险指标的候选腿。
// 过滤条件：剩余天数、排除到期日、年化收益区间、虚值区间、行权价绝对范围、行权概率上限。
package filter

import (
	"math"
	"sort"

	"ladder-optimizer/internal/config"
	"ladder-optimizer/internal/core/model"
	"ladder-optimizer/internal/pricing"
)

// marketFallbackFactor 使用 market 价格来源且无买价时，对标记价格的折价系数
const marketFallbackFactor = 0.95

// minOutput 输出候选腿数量下限
const minOutput = 15

// Premium 计算报价币计价的权利金
// 参数 q: 期权报价
// 参数 priceSource: mark 或 market
// 返回: 权利金（报价币），价格缺失时为 0
func Premium(q *model.OptionQuote, priceSource string) float64 {
	price := q.MarkPrice
	if priceSource == config.PriceSourceMarket {
		if q.BidPrice != nil && *q.BidPrice > 0 {
			price = *q.BidPrice
		} else {
			price = q.MarkPrice * marketFallbackFactor
		}
	}
	if q.Inverse {
		return price * q.UnderlyingPrice
	}
	return price
}

// PutAPY 计算现金担保 Put 的年化收益率（百分比）
// 参数 premium: 权利金（报价币）
// 参数 strike: 行权价（占用保证金）
// 参数 dte: 剩余天数
// 参数 r: 无风险利率（小数），作为保证金的资金收益叠加
func PutAPY(premium, strike float64, dte int, r float64) float64 {
	if dte <= 0 || strike <= 0 {
		return 0
	}
	return (premium/strike)*(365/float64(dte))*100 + r*100
}

// CallAPY 计算备兑 Call 的年化收益率（百分比）
// 参数 premium: 权利金（报价币）
// 参数 futures: 期货/标的参考价格（持仓价值）
// 参数 dte: 剩余天数
func CallAPY(premium, futures float64, dte int) float64 {
	if dte <= 0 || futures <= 0 {
		return 0
	}
	return (premium / futures) * (365 / float64(dte)) * 100
}

// Moneyness 计算虚值比率（Call: K/F，Put: F/K），值越大越虚值
func Moneyness(kind model.OptionKind, strike, futures float64) float64 {
	if strike <= 0 || futures <= 0 {
		return 0
	}
	if kind == model.KindPut {
		return futures / strike
	}
	return strike / futures
}

// OutputCap 返回候选腿的数量上限 max(15, legCount×4)
func OutputCap(legCount int) int {
	if n := legCount * 4; n > minOutput {
		return n
	}
	return minOutput
}

// BuildCandidates 过滤报价并计算每条候选腿的风险指标
// 参数 quotes: 期权报价快照
// 参数 riskFreePct: 无风险利率（百分比，可为 nil），仅作用于 Put
// 参数 cfg: 引擎参数
// 返回: 按年化收益降序排列并截断的候选腿（Call 与 Put 混合）
func BuildCandidates(quotes []model.OptionQuote, riskFreePct *float64, cfg config.EngineConfig) []model.CandidateLeg {
	var rate float64
	if riskFreePct != nil && *riskFreePct > 0 {
		rate = *riskFreePct / 100
	}

	out := make([]model.CandidateLeg, 0, len(quotes))
	for i := range quotes {
		q := &quotes[i]
		if !q.Kind.Valid() || q.Strike <= 0 || q.UnderlyingPrice <= 0 {
			continue
		}
		if q.DTE < cfg.MinDTE || q.DTE <= 0 {
			continue
		}
		if cfg.IsExcluded(q.Expiry) {
			continue
		}
		if cfg.StrikeRange > 0 && math.Abs(q.Strike-q.UnderlyingPrice) > cfg.StrikeRange {
			continue
		}

		r := 0.0
		if q.Kind == model.KindPut {
			r = rate
		}

		premium := Premium(q, cfg.PriceSource)
		var apy float64
		if q.Kind == model.KindPut {
			funding := 0.0
			if cfg.PutFundingTerm {
				funding = r
			}
			apy = PutAPY(premium, q.Strike, q.DTE, funding)
		} else {
			apy = CallAPY(premium, q.UnderlyingPrice, q.DTE)
		}
		if apy <= cfg.APYMin || apy > cfg.APYMax {
			continue
		}

		m := Moneyness(q.Kind, q.Strike, q.UnderlyingPrice)
		if m < cfg.MoneynessMin || m > cfg.MoneynessMax {
			continue
		}

		t := float64(q.DTE) / 365
		sigma := q.MarkIV / 100
		pe := pricing.ProbExercise(q.UnderlyingPrice, q.Strike, t, sigma, q.Kind, r)
		if pe > cfg.MaxProbExerciseCapPct/100 {
			continue
		}

		out = append(out, model.CandidateLeg{
			OptionQuote:  *q,
			APY:          apy,
			ProbExercise: pe,
			Premium:      premium,
			Moneyness:    m,
			TailLoss:     pricing.ConditionalTailLoss(q.UnderlyingPrice, q.Strike, t, sigma, q.Kind, r),
			Greeks:       pricing.ComputeGreeks(q.UnderlyingPrice, q.Strike, t, sigma, q.Kind, r),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].APY > out[j].APY })

	if limit := OutputCap(cfg.LegCount); len(out) > limit {
		out = out[:limit]
	}
	return out
}
