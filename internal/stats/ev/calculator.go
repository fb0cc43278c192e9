// Package ev 实现阶梯组合的期望值（EV）与风险因子计算。
// 单腿 EV = premium × (1 - p) - tailLoss × p
// 组合因子 = [年化 EV, 波动率溢价, 风险收益比, Theta 效率, Kelly, 分散度]
package ev

import (
	"math"

	"ladder-optimizer/internal/core/model"
)

// fallbackBenchmarkVol 调用方未给出回退值时使用的基准波动率（百分比）
const fallbackBenchmarkVol = 100

// minMaxPex 计算平均损失时行权概率的下限
const minMaxPex = 0.01

// Scorer 阶梯评分器
// 持有基准波动率，一个刷新周期内对所有组合复用。
type Scorer struct {
	// benchmarkVol 基准波动率（百分比）
	benchmarkVol float64
}

// NewScorer 创建评分器
// 参数 benchmarkVol: 波动率指数（百分比，可为 nil 或 0 表示缺失）
// 参数 fallback: 缺失时的回退值（<=0 时使用 100）
func NewScorer(benchmarkVol *float64, fallback float64) *Scorer {
	dv := fallback
	if dv <= 0 {
		dv = fallbackBenchmarkVol
	}
	if benchmarkVol != nil && *benchmarkVol > 0 {
		dv = *benchmarkVol
	}
	return &Scorer{benchmarkVol: dv}
}

// BenchmarkVol 返回实际使用的基准波动率
func (s *Scorer) BenchmarkVol() float64 {
	return s.benchmarkVol
}

// Score 计算一个阶梯组合的聚合指标与原始因子向量
// 返回的 Score/TopFactor 为零值，需经同批次排名后填充。
// 参数 kind: 期权类型
// 参数 legs: 组合腿（至少 1 条）
func (s *Scorer) Score(kind model.OptionKind, legs []model.CandidateLeg) model.ScoredLadder {
	out := model.ScoredLadder{Kind: kind, Legs: legs}
	n := len(legs)
	if n == 0 {
		return out
	}

	dv := s.benchmarkVol
	var totalEV, totalRisk, totalPrem, totalAPY, volEdgeSum, thetaSum, dteSum float64
	maxPex := 0.0
	minK, maxK := math.Inf(1), math.Inf(-1)

	for i := range legs {
		l := &legs[i]
		sigma := l.MarkIV / 100
		t := float64(l.DTE) / 365
		p := l.ProbExercise

		// Put 的最大损失取条件尾部损失；Call 取波动率缩放的名义代理 F×σ×2×√T
		var maxLoss float64
		if l.Kind == model.KindPut {
			maxLoss = math.Max(0, l.TailLoss)
		} else {
			maxLoss = l.UnderlyingPrice * sigma * 2 * math.Sqrt(t)
		}

		totalEV += l.Premium*(1-p) - l.TailLoss*p
		totalRisk += p * maxLoss
		totalPrem += l.Premium
		totalAPY += l.APY
		volEdgeSum += (l.MarkIV - dv) / math.Max(dv, 1)
		if l.DTE > 0 {
			thetaSum += l.Premium / float64(l.DTE)
		}
		dteSum += float64(l.DTE)

		maxPex = math.Max(maxPex, p)
		minK = math.Min(minK, l.Strike)
		maxK = math.Max(maxK, l.Strike)
	}

	m := &out.Metrics
	m.TotalPremium = totalPrem
	m.AvgAPY = totalAPY / float64(n)
	m.AvgDTE = dteSum / float64(n)
	m.ExpectedValue = totalEV
	if m.AvgDTE > 0 {
		m.EVAnnual = totalEV * (365 / m.AvgDTE)
	}
	m.VolEdge = volEdgeSum / float64(n)
	m.ThetaEfficiency = thetaSum
	m.TotalRisk = totalRisk
	if totalRisk > 0 {
		m.RiskReturn = totalEV / totalRisk
	}
	m.MaxProbExercise = maxPex
	m.ProbAllOTM = 1 - maxPex

	// Kelly 代理: max(0, P(全部虚值) - maxPex × avgLoss / totalPrem)
	avgLoss := totalRisk / math.Max(maxPex, minMaxPex)
	if totalPrem > 0 {
		m.Kelly = math.Max(0, m.ProbAllOTM-maxPex*avgLoss/totalPrem)
	}

	// 分散度以第一条腿的期货价格为参考
	if ref := legs[0].UnderlyingPrice; ref > 0 {
		m.Diversification = (maxK - minK) / ref
	}

	out.Factors = model.FactorVector{
		m.EVAnnual,
		math.Max(0, m.VolEdge),
		m.RiskReturn,
		m.ThetaEfficiency,
		m.Kelly,
		m.Diversification,
	}
	return out
}
