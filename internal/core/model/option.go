// Package model 定义期权报价、候选腿与阶梯组合的核心数据结构。
// 所有结构体都是纯数据，由引擎在每个刷新周期重新构建。
package model

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// OptionKind 期权类型
type OptionKind string

const (
	// KindCall 看涨期权（备兑卖出）
	KindCall OptionKind = "call"
	// KindPut 看跌期权（现金担保卖出）
	KindPut OptionKind = "put"
)

// Valid 判断期权类型是否合法
func (k OptionKind) Valid() bool {
	return k == KindCall || k == KindPut
}

// Letter 返回单字母缩写: C 或 P
func (k OptionKind) Letter() string {
	if k == KindPut {
		return "P"
	}
	return "C"
}

// OptionQuote 单个期权合约的市场报价
type OptionQuote struct {
	// Instrument 合约名称，如 BTC-27MAR26-70000-C
	Instrument string `json:"instrument"`
	// Strike 行权价（>0）
	Strike float64 `json:"strike"`
	// Expiry 到期日标签，如 27MAR26
	Expiry string `json:"expiry"`
	// ExpiryUnixMs 到期时间（毫秒）
	ExpiryUnixMs int64 `json:"expiry_unix_ms"`
	// Kind 期权类型
	Kind OptionKind `json:"kind"`
	// MarkPrice 标记价格（Inverse=true 时以标的币计价）
	MarkPrice float64 `json:"mark_price"`
	// BidPrice 最优买价，可能缺失
	BidPrice *float64 `json:"bid_price,omitempty"`
	// AskPrice 最优卖价，可能缺失
	AskPrice *float64 `json:"ask_price,omitempty"`
	// MarkIV 隐含波动率（百分比，如 55 表示 55%）
	MarkIV float64 `json:"mark_iv"`
	// UnderlyingPrice 标的/期货参考价格
	UnderlyingPrice float64 `json:"underlying_price"`
	// DTE 剩余天数（向上取整）
	DTE int `json:"dte"`
	// Inverse 价格是否以标的币计价（需乘以期货价格换算为报价币）
	Inverse bool `json:"inverse"`
}

// Greeks 期权希腊值
type Greeks struct {
	// Delta 价格对标的的一阶敏感度
	Delta float64 `json:"delta"`
	// Gamma Delta 对标的的敏感度（>=0）
	Gamma float64 `json:"gamma"`
	// Theta 每日时间价值衰减
	Theta float64 `json:"theta"`
	// Vega 波动率每变动 1 个百分点的价格变化（>=0）
	Vega float64 `json:"vega"`
}

// CandidateLeg 通过过滤并附带风险指标的候选腿
type CandidateLeg struct {
	OptionQuote

	// APY 年化收益率（百分比）
	APY float64 `json:"apy"`
	// ProbExercise 到期被行权概率 [0,1]
	ProbExercise float64 `json:"prob_exercise"`
	// Premium 报价币计价的权利金
	Premium float64 `json:"premium"`
	// Moneyness 虚值比率（Call: K/F，Put: F/K）
	Moneyness float64 `json:"moneyness"`
	// TailLoss 条件尾部损失（>=0）
	TailLoss float64 `json:"tail_loss"`
	// Greeks 希腊值
	Greeks Greeks `json:"greeks"`
}

// LegKey 生成 strike-expiry 规范键
// 行权价使用十进制规范化输出，避免 70000 与 70000.0 产生不同的键。
func LegKey(strike float64, expiry string) string {
	return decimal.NewFromFloat(strike).String() + "-" + expiry
}

// Key 返回该腿的 strike-expiry 键
func (l *CandidateLeg) Key() string {
	return LegKey(l.Strike, l.Expiry)
}

// RecommendationKey 返回推荐集合使用的键，如 P-60000-27MAR26
func (l *CandidateLeg) RecommendationKey() string {
	return l.Kind.Letter() + "-" + l.Key()
}

// Signature 返回一组腿的规范签名（各腿键排序后拼接）
// 用于识别内容相同但顺序不同的组合。
func Signature(legs []CandidateLeg) string {
	keys := make([]string, len(legs))
	for i := range legs {
		keys[i] = legs[i].Key()
	}
	sort.Strings(keys)
	return strings.Join(keys, "|")
}
