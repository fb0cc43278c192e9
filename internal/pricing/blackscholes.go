package pricing

import (
	"math"

	"ladder-optimizer/internal/core/model"
)

// tailEpsilon 行权概率低于此值时尾部损失视为 0
const tailEpsilon = 1e-10

// d1d2 计算 Black-Scholes 的 d1 与 d2
// 返回 ok=false 表示输入退化（T<=0、σ<=0、S<=0 或 K<=0）
func d1d2(spot, strike, t, sigma, r float64) (d1, d2 float64, ok bool) {
	if t <= 0 || sigma <= 0 || spot <= 0 || strike <= 0 {
		return 0, 0, false
	}
	volT := sigma * math.Sqrt(t)
	if volT <= 0 {
		return 0, 0, false
	}
	d1 = (math.Log(spot/strike) + (r+0.5*sigma*sigma)*t) / volT
	if math.IsNaN(d1) {
		return 0, 0, false
	}
	d2 = d1 - volT
	return d1, d2, true
}

// ProbExercise 风险中性下到期实值（被行权）的概率
// 参数 spot: 标的/期货价格
// 参数 strike: 行权价
// 参数 t: 剩余时间（年）
// 参数 sigma: 波动率（小数，如 0.55）
// 参数 kind: 期权类型
// 参数 r: 无风险利率（小数）
// 返回: Call 为 N(d2)，Put 为 N(-d2)
func ProbExercise(spot, strike, t, sigma float64, kind model.OptionKind, r float64) float64 {
	_, d2, ok := d1d2(spot, strike, t, sigma, r)
	if !ok {
		return 0
	}
	if kind == model.KindPut {
		return NormCDF(-d2)
	}
	return NormCDF(d2)
}

// ComputeGreeks 计算 Black-Scholes 希腊值
// Vega 按隐含波动率变动 1 个百分点缩放，Theta 按日计。
func ComputeGreeks(spot, strike, t, sigma float64, kind model.OptionKind, r float64) model.Greeks {
	d1, d2, ok := d1d2(spot, strike, t, sigma, r)
	if !ok {
		return model.Greeks{}
	}
	sqrtT := math.Sqrt(t)
	pdf := NormPDF(d1)
	discount := r * strike * math.Exp(-r*t)

	g := model.Greeks{
		Gamma: pdf / (spot * sigma * sqrtT),
		Vega:  spot * pdf * sqrtT / 100,
	}
	decay := -(spot * sigma * pdf) / (2 * sqrtT)
	if kind == model.KindPut {
		g.Delta = NormCDF(d1) - 1
		g.Theta = (decay + discount*NormCDF(-d2)) / 365
	} else {
		g.Delta = NormCDF(d1)
		g.Theta = (decay - discount*NormCDF(d2)) / 365
	}
	return g
}

// ConditionalTailLoss 行权情形下的期望损失幅度（报价币）
// Put: max(0, K·e^{-rT}·N(-d2) − S·N(-d1))
// Call: max(0, S·N(d1) − K·e^{-rT}·N(d2))
func ConditionalTailLoss(spot, strike, t, sigma float64, kind model.OptionKind, r float64) float64 {
	d1, d2, ok := d1d2(spot, strike, t, sigma, r)
	if !ok {
		return 0
	}
	disc := strike * math.Exp(-r*t)
	if kind == model.KindPut {
		nd2 := NormCDF(-d2)
		if nd2 < tailEpsilon {
			return 0
		}
		return math.Max(0, disc*nd2-spot*NormCDF(-d1))
	}
	nd2 := NormCDF(d2)
	if nd2 < tailEpsilon {
		return 0
	}
	return math.Max(0, spot*NormCDF(d1)-disc*nd2)
}
