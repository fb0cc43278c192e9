package config

import (
	"fmt"
	"strings"
)

// 价格来源
const (
	// PriceSourceMark 使用标记价格
	PriceSourceMark = "mark"
	// PriceSourceMarket 使用买一价（缺失时回退为标记价格折价）
	PriceSourceMarket = "market"
)

// MaxLegCount 单个阶梯最多腿数
const MaxLegCount = 5

// EngineConfig 阶梯优化引擎参数
// 每个刷新周期由调用方传入，可在运行时通过推送通道修改。
type EngineConfig struct {
	// LegCount 腿数 0-5，0 表示自动（在 1..5 中择优）
	LegCount int `yaml:"leg_count" json:"leg_count"`
	// AllowRepetition 是否允许同一合约重复出现
	AllowRepetition bool `yaml:"allow_repetition" json:"allow_repetition"`
	// MaxProbExerciseCapPct 行权概率上限（百分比 0-100）
	MaxProbExerciseCapPct float64 `yaml:"max_prob_exercise_cap_pct" json:"max_prob_exercise_cap_pct"`
	// PriceSource 权利金价格来源: mark 或 market
	PriceSource string `yaml:"price_source" json:"price_source"`
	// MinDTE 最小剩余天数
	MinDTE int `yaml:"min_dte" json:"min_dte"`
	// APYMin 年化收益下限（不含，百分比）
	APYMin float64 `yaml:"apy_min" json:"apy_min"`
	// APYMax 年化收益上限（含，百分比）
	APYMax float64 `yaml:"apy_max" json:"apy_max"`
	// MoneynessMin 虚值比率下限（Call: K/F，Put: F/K）
	MoneynessMin float64 `yaml:"moneyness_min" json:"moneyness_min"`
	// MoneynessMax 虚值比率上限
	MoneynessMax float64 `yaml:"moneyness_max" json:"moneyness_max"`
	// StrikeRange 行权价与参考价的最大绝对距离，0 表示不限制
	StrikeRange float64 `yaml:"strike_range" json:"strike_range"`
	// PutFundingTerm Put 年化收益是否叠加无风险利率
	PutFundingTerm bool `yaml:"put_funding_term" json:"put_funding_term"`
	// DefaultBenchmarkVol 基准波动率缺失时的回退值（百分比）
	DefaultBenchmarkVol float64 `yaml:"default_benchmark_vol" json:"default_benchmark_vol"`
	// RecommendMinScore 进入推荐集合的最低评分
	RecommendMinScore float64 `yaml:"recommend_min_score" json:"recommend_min_score"`
	// ExcludedExpiries 排除的到期日标签，如 27MAR26
	ExcludedExpiries []string `yaml:"excluded_expiries" json:"excluded_expiries"`
}

// DefaultEngineConfig 返回默认引擎参数
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		LegCount:              0,
		AllowRepetition:       false,
		MaxProbExerciseCapPct: 40,
		PriceSource:           PriceSourceMark,
		MinDTE:                15,
		APYMin:                5,
		APYMax:                200,
		MoneynessMin:          1.0,
		MoneynessMax:          1.15,
		StrikeRange:           0,
		PutFundingTerm:        true,
		DefaultBenchmarkVol:   100,
		RecommendMinScore:     5.0,
	}
}

// Validate 验证引擎参数
// 返回: 若参数无效则返回描述性错误
func (e *EngineConfig) Validate() error {
	if errs := e.validate(""); len(errs) > 0 {
		return fmt.Errorf("引擎参数错误:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (e *EngineConfig) validate(prefix string) []string {
	var errs []string
	if e.LegCount < 0 || e.LegCount > MaxLegCount {
		errs = append(errs, fmt.Sprintf("%sleg_count: 腿数必须在 0-%d 之间，当前值: %d", prefix, MaxLegCount, e.LegCount))
	}
	if e.MaxProbExerciseCapPct < 0 || e.MaxProbExerciseCapPct > 100 {
		errs = append(errs, fmt.Sprintf("%smax_prob_exercise_cap_pct: 必须在 0-100 之间，当前值: %f", prefix, e.MaxProbExerciseCapPct))
	}
	if e.PriceSource != PriceSourceMark && e.PriceSource != PriceSourceMarket {
		errs = append(errs, fmt.Sprintf("%sprice_source: 无效的价格来源 '%s'，有效值: mark, market", prefix, e.PriceSource))
	}
	if e.MinDTE < 0 {
		errs = append(errs, prefix+"min_dte: 最小剩余天数不能为负数")
	}
	if e.APYMax <= e.APYMin {
		errs = append(errs, prefix+"apy_max: 年化收益上限必须大于下限")
	}
	if e.MoneynessMin <= 0 {
		errs = append(errs, prefix+"moneyness_min: 虚值比率下限必须为正数")
	}
	if e.MoneynessMax < e.MoneynessMin {
		errs = append(errs, prefix+"moneyness_max: 虚值比率上限不能小于下限")
	}
	if e.StrikeRange < 0 {
		errs = append(errs, prefix+"strike_range: 行权价范围不能为负数")
	}
	if e.DefaultBenchmarkVol <= 0 {
		errs = append(errs, prefix+"default_benchmark_vol: 回退波动率必须为正数")
	}
	if e.RecommendMinScore < 0 || e.RecommendMinScore > 10 {
		errs = append(errs, prefix+"recommend_min_score: 推荐阈值必须在 0-10 之间")
	}
	return errs
}

// IsExcluded 判断到期日是否被排除
func (e *EngineConfig) IsExcluded(expiry string) bool {
	for _, x := range e.ExcludedExpiries {
		if strings.EqualFold(x, expiry) {
			return true
		}
	}
	return false
}

// EngineUpdate 运行时参数修改（仅非空字段生效）
type EngineUpdate struct {
	// LegCount 腿数
	LegCount *int `json:"leg_count,omitempty"`
	// AllowRepetition 是否允许重复
	AllowRepetition *bool `json:"allow_repetition,omitempty"`
	// MaxProbExerciseCapPct 行权概率上限
	MaxProbExerciseCapPct *float64 `json:"max_prob_exercise_cap_pct,omitempty"`
	// PriceSource 价格来源
	PriceSource *string `json:"price_source,omitempty"`
	// StrikeRange 行权价范围
	StrikeRange *float64 `json:"strike_range,omitempty"`
	// ExcludedExpiries 排除的到期日（非 nil 时整体替换）
	ExcludedExpiries []string `json:"excluded_expiries,omitempty"`
}

// Apply 在当前参数上应用修改并验证
// 参数 u: 修改内容
// 返回: 修改后的新参数；验证失败时返回错误且不修改原参数
func (e EngineConfig) Apply(u EngineUpdate) (EngineConfig, error) {
	next := e
	if u.LegCount != nil {
		next.LegCount = *u.LegCount
	}
	if u.AllowRepetition != nil {
		next.AllowRepetition = *u.AllowRepetition
	}
	if u.MaxProbExerciseCapPct != nil {
		next.MaxProbExerciseCapPct = *u.MaxProbExerciseCapPct
	}
	if u.PriceSource != nil {
		next.PriceSource = strings.ToLower(*u.PriceSource)
	}
	if u.StrikeRange != nil {
		next.StrikeRange = *u.StrikeRange
	}
	if u.ExcludedExpiries != nil {
		next.ExcludedExpiries = append([]string(nil), u.ExcludedExpiries...)
	}
	if err := next.Validate(); err != nil {
		return e, err
	}
	return next, nil
}
