// Package optimizer 单个刷新周期内的阶梯搜索驱动。
// 流程: 候选腿过滤 → 同到期池 / 跨到期池组合 → 评分 → 同批次排名 → 取最优。
// 每次调用都是纯函数，不保留跨周期状态。
package optimizer

import (
	"sort"

	"ladder-optimizer/internal/config"
	"ladder-optimizer/internal/core/combo"
	"ladder-optimizer/internal/core/filter"
	"ladder-optimizer/internal/core/model"
	"ladder-optimizer/internal/core/rank"
	"ladder-optimizer/internal/stats/ev"
)

// 跨到期池容量
const (
	crossPoolCapRep   = 8
	crossPoolCapNoRep = 15
)

// Result 一个周期的优化结果
type Result struct {
	// Call 最优 Covered Call 阶梯，nil 表示不可用
	Call *model.ScoredLadder `json:"call"`
	// Put 最优 Cash-Secured Put 阶梯，nil 表示不可用
	Put *model.ScoredLadder `json:"put"`
	// Recommended 推荐键集合（已排序），如 P-60000-27MAR26
	Recommended []string `json:"recommended"`
	// BenchmarkVol 实际使用的基准波动率
	BenchmarkVol float64 `json:"benchmark_vol"`
	// Candidates 各类型候选腿数量
	Candidates map[model.OptionKind]int `json:"candidates"`
	// Scored 各类型参与评分的组合数量
	Scored map[model.OptionKind]int `json:"scored"`
}

// Ladder 按类型返回结果
func (r *Result) Ladder(kind model.OptionKind) *model.ScoredLadder {
	if kind == model.KindCall {
		return r.Call
	}
	return r.Put
}

// IsRecommended 判断键是否在推荐集合中
func (r *Result) IsRecommended(key string) bool {
	i := sort.SearchStrings(r.Recommended, key)
	return i < len(r.Recommended) && r.Recommended[i] == key
}

// Optimize 对一份报价快照运行完整的优化周期
// 参数 quotes: 报价快照
// 参数 benchmarkVol: 波动率指数（百分比，可为 nil）
// 参数 riskFreePct: 无风险利率（百分比，可为 nil），仅作用于 Put
// 参数 cfg: 引擎参数
// 返回: Call/Put 最优阶梯与推荐集合
func Optimize(quotes []model.OptionQuote, benchmarkVol, riskFreePct *float64, cfg config.EngineConfig) Result {
	scorer := ev.NewScorer(benchmarkVol, cfg.DefaultBenchmarkVol)
	legs := filter.BuildCandidates(quotes, riskFreePct, cfg)

	res := Result{
		BenchmarkVol: scorer.BenchmarkVol(),
		Candidates:   make(map[model.OptionKind]int, 2),
		Scored:       make(map[model.OptionKind]int, 2),
	}
	for i := range legs {
		res.Candidates[legs[i].Kind]++
	}

	for _, kind := range []model.OptionKind{model.KindCall, model.KindPut} {
		var best *model.ScoredLadder
		if cfg.LegCount == 0 {
			for n := 1; n <= config.MaxLegCount; n++ {
				l, scored := search(legs, kind, scorer, n, cfg.AllowRepetition)
				res.Scored[kind] += scored
				if l != nil && (best == nil || l.Score > best.Score) {
					best = l
				}
			}
		} else {
			var scored int
			best, scored = search(legs, kind, scorer, cfg.LegCount, cfg.AllowRepetition)
			res.Scored[kind] += scored
		}

		if kind == model.KindCall {
			res.Call = best
		} else {
			res.Put = best
		}
	}

	res.Recommended = recommend(cfg.RecommendMinScore, res.Call, res.Put)
	return res
}

// BuildOptimalLadder 在固定腿数下搜索一种期权类型的最优阶梯
// 参数 legs: 候选腿（可混合类型）
// 参数 kind: 目标类型
// 参数 benchmarkVol: 波动率指数（可为 nil）
// 参数 legCount: 腿数 1-5
// 参数 allowRep: 是否允许重复
// 参数 defaultVol: 基准波动率回退值
// 返回: 最优阶梯，无可行组合时为 nil
func BuildOptimalLadder(legs []model.CandidateLeg, kind model.OptionKind, benchmarkVol *float64, legCount int, allowRep bool, defaultVol float64) *model.ScoredLadder {
	best, _ := search(legs, kind, ev.NewScorer(benchmarkVol, defaultVol), legCount, allowRep)
	return best
}

// search 返回最优阶梯与参与评分的组合数量
func search(legs []model.CandidateLeg, kind model.OptionKind, scorer *ev.Scorer, k int, allowRep bool) (*model.ScoredLadder, int) {
	if k < 1 {
		return nil, 0
	}

	ofKind := make([]model.CandidateLeg, 0, len(legs))
	for i := range legs {
		if legs[i].Kind == kind {
			ofKind = append(ofKind, legs[i])
		}
	}
	if len(ofKind) == 0 || (!allowRep && len(ofKind) < k) {
		return nil, 0
	}

	// 按 strike-expiry 去重，保留首次出现
	seenKey := make(map[string]struct{}, len(ofKind))
	all := ofKind[:0]
	for _, l := range ofKind {
		key := l.Key()
		if _, ok := seenKey[key]; ok {
			continue
		}
		seenKey[key] = struct{}{}
		all = append(all, l)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].APY > all[j].APY })

	enumerate := combo.Combinations[model.CandidateLeg]
	if allowRep {
		enumerate = combo.CombinationsWithRepetition[model.CandidateLeg]
	}

	var candidates []model.ScoredLadder

	// 同到期池
	perExpiryCap := max(8, k+5)
	if allowRep {
		perExpiryCap = min(5, k+2)
	}
	var order []string
	byExpiry := make(map[string][]model.CandidateLeg)
	for _, l := range all {
		if _, ok := byExpiry[l.Expiry]; !ok {
			order = append(order, l.Expiry)
		}
		byExpiry[l.Expiry] = append(byExpiry[l.Expiry], l)
	}
	for _, exp := range order {
		group := byExpiry[exp]
		sort.SliceStable(group, func(i, j int) bool {
			if kind == model.KindCall {
				return group[i].Strike < group[j].Strike
			}
			return group[i].Strike > group[j].Strike
		})
		if len(group) > perExpiryCap {
			group = group[:perExpiryCap]
		}
		if !allowRep && len(group) < k {
			continue
		}
		for _, c := range enumerate(group, k) {
			candidates = append(candidates, scorer.Score(kind, c))
		}
	}

	// 跨到期池，按签名去重
	topCap := crossPoolCapNoRep
	if allowRep {
		topCap = crossPoolCapRep
	}
	top := all
	if len(top) > topCap {
		top = top[:topCap]
	}
	if allowRep || len(top) >= k {
		seen := make(map[string]struct{})
		for _, c := range enumerate(top, k) {
			sig := model.Signature(c)
			if _, ok := seen[sig]; ok {
				continue
			}
			seen[sig] = struct{}{}
			candidates = append(candidates, scorer.Score(kind, c))
		}
	}

	if len(candidates) == 0 {
		return nil, 0
	}
	ranked := rank.Rank(candidates)
	best := ranked[0]
	return &best, len(candidates)
}

// recommend 汇总评分达标阶梯的腿键
func recommend(minScore float64, ladders ...*model.ScoredLadder) []string {
	set := make(map[string]struct{})
	for _, l := range ladders {
		if l == nil || l.Score < minScore {
			continue
		}
		for i := range l.Legs {
			set[l.Legs[i].RecommendationKey()] = struct{}{}
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
