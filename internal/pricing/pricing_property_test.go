// Package pricing 定价模块属性测试
package pricing

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"ladder-optimizer/internal/core/model"
)

// **Feature: ladder-optimizer, Property 1: Normal CDF Symmetry**

func TestNormCDF_Symmetry_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("N(-x) ≈ 1 - N(x)", prop.ForAll(
		func(x float64) bool {
			return math.Abs(NormCDF(-x)-(1-NormCDF(x))) <= 1e-6
		},
		gen.Float64Range(-40, 40),
	))

	properties.Property("N(x) 落在 [0,1]", prop.ForAll(
		func(x float64) bool {
			v := NormCDF(x)
			return v >= 0 && v <= 1
		},
		gen.Float64Range(-1e6, 1e6),
	))

	properties.TestingRun(t)
}

// **Feature: ladder-optimizer, Property 2: Risk Metrics Bounds**

func TestRiskMetrics_Bounds_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 150
	properties := gopter.NewProperties(parameters)

	properties.Property("行权概率在 [0,1]，尾部损失/Gamma/Vega 非负", prop.ForAll(
		func(spot, moneyness, days, sigma, r float64, isPut bool) bool {
			kind := model.KindCall
			if isPut {
				kind = model.KindPut
			}
			strike := spot * moneyness
			tt := days / 365

			pe := ProbExercise(spot, strike, tt, sigma, kind, r)
			if math.IsNaN(pe) || pe < 0 || pe > 1 {
				return false
			}
			tail := ConditionalTailLoss(spot, strike, tt, sigma, kind, r)
			if math.IsNaN(tail) || tail < 0 {
				return false
			}
			g := ComputeGreeks(spot, strike, tt, sigma, kind, r)
			if g.Gamma < 0 || g.Vega < 0 {
				return false
			}
			if kind == model.KindCall {
				return g.Delta >= 0 && g.Delta <= 1
			}
			return g.Delta >= -1 && g.Delta <= 0
		},
		gen.Float64Range(1, 200000),
		gen.Float64Range(0.5, 1.5),
		gen.Float64Range(0, 400),
		gen.Float64Range(0, 3),
		gen.Float64Range(0, 0.1),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
