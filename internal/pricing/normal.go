// Package pricing 实现 Black-Scholes 风险分析：行权概率、希腊值、条件尾部损失，
// 以及基准波动率（30 天 ATM）估计。
// 所有函数均为纯函数，退化输入返回 0，不会输出 NaN。
package pricing

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Abramowitz-Stegun 7.1.26 多项式系数
const (
	asA1 = 0.254829592
	asA2 = -0.284496736
	asA3 = 1.421413741
	asA4 = -1.453152027
	asA5 = 1.061405429
	asP  = 0.3275911
)

// NormCDF 标准正态累积分布函数
// 通过 erf(x/√2) 的 Abramowitz-Stegun 近似计算，绝对误差约 7.5e-8。
func NormCDF(x float64) float64 {
	if x == 0 {
		return 0.5
	}
	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	ax := math.Abs(x) / math.Sqrt2
	t := 1.0 / (1.0 + asP*ax)
	y := 1.0 - ((((asA5*t+asA4)*t+asA3)*t+asA2)*t+asA1)*t*math.Exp(-ax*ax)
	return 0.5 * (1.0 + sign*y)
}

// NormPDF 标准正态概率密度
func NormPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}
