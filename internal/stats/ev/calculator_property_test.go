// Package ev 阶梯评分属性测试
package ev

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"ladder-optimizer/internal/core/model"
)

// **Feature: ladder-optimizer, Property 5: Diversification Non-Negative**

func TestScorer_Diversification_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("分散度非负", prop.ForAll(
		func(strikes []float64, pexs []float64) bool {
			n := len(strikes)
			if len(pexs) < n {
				n = len(pexs)
			}
			if n == 0 {
				return true
			}
			if n > 5 {
				n = 5
			}
			legs := make([]model.CandidateLeg, n)
			for i := 0; i < n; i++ {
				legs[i] = putLeg(strikes[i], 1, pexs[i], 2, 55, 20+i*7, 12)
			}
			sl := NewScorer(nil, 100).Score(model.KindPut, legs)
			return sl.Metrics.Diversification >= 0 && sl.Factors[model.FactorDiversification] >= 0
		},
		gen.SliceOfN(5, gen.Float64Range(50, 150)),
		gen.SliceOfN(5, gen.Float64Range(0, 0.5)),
	))

	properties.Property("单腿组合分散度为 0", prop.ForAll(
		func(strike float64, pex float64) bool {
			sl := NewScorer(nil, 100).Score(model.KindPut, []model.CandidateLeg{putLeg(strike, 1, pex, 2, 55, 30, 12)})
			return sl.Metrics.Diversification == 0
		},
		gen.Float64Range(1, 200000),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

// **Feature: ladder-optimizer, Property 6: Factor Vector Consistency**

func TestScorer_FactorVector_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("因子向量与聚合指标一致，Kelly 与 VolEdge 因子非负", prop.ForAll(
		func(premiums []float64, pexs []float64, tails []float64, ivs []float64) bool {
			legs := make([]model.CandidateLeg, 0, 4)
			for i := 0; i < 4; i++ {
				legs = append(legs, putLeg(80+float64(i)*5, premiums[i], pexs[i], tails[i], ivs[i], 15+i*10, 10))
			}
			sl := NewScorer(nil, 60).Score(model.KindPut, legs)
			m := sl.Metrics
			f := sl.Factors
			if f[model.FactorExpectedValue] != m.EVAnnual || f[model.FactorRiskReturn] != m.RiskReturn {
				return false
			}
			if f[model.FactorTheta] != m.ThetaEfficiency || f[model.FactorKelly] != m.Kelly {
				return false
			}
			if f[model.FactorVolEdge] != math.Max(0, m.VolEdge) {
				return false
			}
			if m.Kelly < 0 || m.ProbAllOTM < 0 || m.ProbAllOTM > 1 {
				return false
			}
			for _, v := range f {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(4, gen.Float64Range(0, 5000)),
		gen.SliceOfN(4, gen.Float64Range(0, 1)),
		gen.SliceOfN(4, gen.Float64Range(0, 20000)),
		gen.SliceOfN(4, gen.Float64Range(1, 200)),
	))

	properties.TestingRun(t)
}
