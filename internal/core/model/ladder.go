package model

// Factor 评分因子下标
type Factor int

const (
	// FactorExpectedValue 年化期望值
	FactorExpectedValue Factor = iota
	// FactorVolEdge 波动率溢价
	FactorVolEdge
	// FactorRiskReturn 风险收益比
	FactorRiskReturn
	// FactorTheta 时间价值效率
	FactorTheta
	// FactorKelly Kelly 仓位代理
	FactorKelly
	// FactorDiversification 行权价分散度
	FactorDiversification

	// NumFactors 因子数量
	NumFactors = 6
)

// factorNames 因子展示名称（顺序与 Factor 常量一致）
var factorNames = [NumFactors]string{
	"Expected Value",
	"Vol Edge",
	"Risk/Return",
	"Theta",
	"Kelly",
	"Diversification",
}

// String 返回因子展示名称
func (f Factor) String() string {
	if f < 0 || int(f) >= NumFactors {
		return "Unknown"
	}
	return factorNames[f]
}

// FactorVector 六维原始因子向量
type FactorVector [NumFactors]float64

// LadderMetrics 阶梯组合的聚合指标
type LadderMetrics struct {
	// TotalPremium 权利金合计（报价币）
	TotalPremium float64 `json:"total_premium"`
	// AvgAPY 平均年化收益率（百分比）
	AvgAPY float64 `json:"avg_apy"`
	// AvgDTE 平均剩余天数
	AvgDTE float64 `json:"avg_dte"`
	// ExpectedValue 组合期望值
	ExpectedValue float64 `json:"expected_value"`
	// EVAnnual 年化期望值
	EVAnnual float64 `json:"ev_annual"`
	// VolEdge 平均波动率溢价（相对基准波动率）
	VolEdge float64 `json:"vol_edge"`
	// ThetaEfficiency 每日权利金衰减之和
	ThetaEfficiency float64 `json:"theta_efficiency"`
	// TotalRisk 概率加权最大损失之和
	TotalRisk float64 `json:"total_risk"`
	// RiskReturn 期望值 / 风险
	RiskReturn float64 `json:"risk_return"`
	// MaxProbExercise 各腿最大行权概率
	MaxProbExercise float64 `json:"max_prob_exercise"`
	// ProbAllOTM 全部到期虚值的概率代理
	ProbAllOTM float64 `json:"prob_all_otm"`
	// Kelly Kelly 仓位代理（>=0）
	Kelly float64 `json:"kelly"`
	// Diversification 行权价分散度（>=0）
	Diversification float64 `json:"diversification"`
}

// ScoredLadder 已评分的阶梯组合
// Score 与 TopFactor 仅在同批次排名后有效。
type ScoredLadder struct {
	// Kind 期权类型（所有腿一致）
	Kind OptionKind `json:"kind"`
	// Legs 组合腿（按枚举顺序）
	Legs []CandidateLeg `json:"legs"`
	// Metrics 聚合指标
	Metrics LadderMetrics `json:"metrics"`
	// Factors 原始因子向量
	Factors FactorVector `json:"factors"`
	// Score 综合评分 [0,10]
	Score float64 `json:"score"`
	// TopFactor 加权贡献最大的因子名称
	TopFactor string `json:"top_factor"`
}

// Signature 返回组合的规范签名
func (s *ScoredLadder) Signature() string {
	return Signature(s.Legs)
}
