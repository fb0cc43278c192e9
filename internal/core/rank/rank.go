// Package rank 对同一批次的阶梯组合做 min-max 归一化与加权排名。
package rank

import (
	"math"
	"sort"

	"ladder-optimizer/internal/core/model"
)

// Weights 因子权重: EV, VolEdge, RiskReturn, Theta, Kelly, Diversification
var Weights = [model.NumFactors]float64{0.30, 0.20, 0.20, 0.15, 0.10, 0.05}

// degenerateRange 因子区间小于此值时归一化结果取 0.5
const degenerateRange = 1e-10

// MaxScore 综合评分上限
const MaxScore = 10.0

// Rank 对候选组合评分并按综合评分降序排列（稳定排序）
// 评分仅在本批次内可比：每个因子先在批次内做 min-max 归一化，再加权求和并放大到 [0,10]。
// 参数 candidates: 已计算因子向量的组合，会被原地写入 Score/TopFactor
// 返回: 排序后的切片（与入参共享底层数组）
func Rank(candidates []model.ScoredLadder) []model.ScoredLadder {
	if len(candidates) == 0 {
		return candidates
	}

	var mins, maxs [model.NumFactors]float64
	for i := range mins {
		mins[i] = math.Inf(1)
		maxs[i] = math.Inf(-1)
	}
	for c := range candidates {
		for i, f := range candidates[c].Factors {
			mins[i] = math.Min(mins[i], f)
			maxs[i] = math.Max(maxs[i], f)
		}
	}

	for c := range candidates {
		cand := &candidates[c]
		score := 0.0
		topContrib := 0.0
		topIdx := model.FactorExpectedValue
		for i, f := range cand.Factors {
			norm := 0.5
			if r := maxs[i] - mins[i]; r > degenerateRange {
				norm = (f - mins[i]) / r
			}
			contrib := Weights[i] * norm
			score += contrib
			if contrib > topContrib {
				topContrib = contrib
				topIdx = model.Factor(i)
			}
		}
		cand.Score = math.Min(MaxScore, math.Max(0, score*10))
		cand.TopFactor = topIdx.String()
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}
