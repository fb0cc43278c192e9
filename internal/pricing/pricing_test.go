// Package pricing 定价模块测试
package pricing

import (
	"math"
	"testing"

	"ladder-optimizer/internal/core/model"
)

func TestNormCDF_Center(t *testing.T) {
	if got := NormCDF(0); got != 0.5 {
		t.Fatalf("NormCDF(0)=%v, want 0.5", got)
	}
}

func TestNormCDF_MatchesErf(t *testing.T) {
	for x := -6.0; x <= 6.0; x += 0.05 {
		want := 0.5 * (1 + math.Erf(x/math.Sqrt2))
		if got := NormCDF(x); math.Abs(got-want) > 1e-7 {
			t.Fatalf("NormCDF(%v)=%v, want %v", x, got, want)
		}
	}
}

func TestNormCDF_StrictlyIncreasing(t *testing.T) {
	prev := NormCDF(-5)
	for i := -499; i <= 500; i++ {
		x := float64(i) / 100
		cur := NormCDF(x)
		if cur <= prev {
			t.Fatalf("NormCDF(%v)=%v 不大于前值 %v", x, cur, prev)
		}
		prev = cur
	}
}

func TestNormPDF(t *testing.T) {
	want := 1 / math.Sqrt(2*math.Pi)
	if got := NormPDF(0); math.Abs(got-want) > 1e-12 {
		t.Fatalf("NormPDF(0)=%v, want %v", got, want)
	}
	if math.Abs(NormPDF(1.3)-NormPDF(-1.3)) > 1e-15 {
		t.Fatalf("NormPDF 应对称")
	}
}

func TestProbExercise_Degenerate(t *testing.T) {
	cases := []struct {
		name          string
		s, k, tt, sig float64
	}{
		{"T=0", 100, 100, 0, 0.5},
		{"T<0", 100, 100, -1, 0.5},
		{"sigma=0", 100, 100, 0.25, 0},
		{"spot=0", 0, 100, 0.25, 0.5},
		{"strike=0", 100, 0, 0.25, 0.5},
	}
	for _, c := range cases {
		for _, kind := range []model.OptionKind{model.KindCall, model.KindPut} {
			if got := ProbExercise(c.s, c.k, c.tt, c.sig, kind, 0); got != 0 {
				t.Fatalf("%s %s: ProbExercise=%v, want 0", c.name, kind, got)
			}
		}
	}
}

func TestProbExercise_UsesD2(t *testing.T) {
	s, k, tt, sig, r := 65000.0, 70000.0, 30.0/365, 0.55, 0.043
	d2 := (math.Log(s/k) + (r-0.5*sig*sig)*tt) / (sig * math.Sqrt(tt))

	call := ProbExercise(s, k, tt, sig, model.KindCall, r)
	if math.Abs(call-NormCDF(d2)) > 1e-12 {
		t.Fatalf("call=%v, want N(d2)=%v", call, NormCDF(d2))
	}
	put := ProbExercise(s, k, tt, sig, model.KindPut, r)
	if math.Abs(put-(1-NormCDF(d2))) > 1e-12 {
		t.Fatalf("put=%v, want 1-N(d2)=%v", put, 1-NormCDF(d2))
	}
}

func TestComputeGreeks_ATMCall(t *testing.T) {
	g := ComputeGreeks(100, 100, 0.25, 0.5, model.KindCall, 0)
	if g.Delta <= 0.5 || g.Delta >= 0.6 {
		t.Fatalf("Delta=%v, want (0.5, 0.6)", g.Delta)
	}
	if g.Gamma <= 0 {
		t.Fatalf("Gamma=%v, want >0", g.Gamma)
	}
	if g.Vega <= 0 {
		t.Fatalf("Vega=%v, want >0", g.Vega)
	}
	if g.Theta >= 0 {
		t.Fatalf("Theta=%v, want <0", g.Theta)
	}
	// 已知值：vega≈0.1979，theta≈-0.0542/天
	if math.Abs(g.Vega-0.19792) > 1e-4 {
		t.Fatalf("Vega=%v, want ≈0.19792", g.Vega)
	}
	if math.Abs(g.Theta+0.054224) > 1e-5 {
		t.Fatalf("Theta=%v, want ≈-0.054224", g.Theta)
	}
}

func TestComputeGreeks_PutDelta(t *testing.T) {
	c := ComputeGreeks(100, 95, 0.1, 0.6, model.KindCall, 0.05)
	p := ComputeGreeks(100, 95, 0.1, 0.6, model.KindPut, 0.05)
	if math.Abs((c.Delta-p.Delta)-1) > 1e-12 {
		t.Fatalf("callDelta-putDelta=%v, want 1", c.Delta-p.Delta)
	}
	if c.Gamma != p.Gamma || c.Vega != p.Vega {
		t.Fatalf("Gamma/Vega 应与期权类型无关")
	}
}

func TestComputeGreeks_Degenerate(t *testing.T) {
	if g := ComputeGreeks(100, 100, 0, 0.5, model.KindPut, 0); g != (model.Greeks{}) {
		t.Fatalf("T=0 时应返回零值, got %+v", g)
	}
	if g := ComputeGreeks(100, 100, 0.5, 0, model.KindCall, 0); g != (model.Greeks{}) {
		t.Fatalf("sigma=0 时应返回零值, got %+v", g)
	}
}

func TestConditionalTailLoss_ATM(t *testing.T) {
	put := ConditionalTailLoss(100, 100, 0.25, 0.5, model.KindPut, 0)
	call := ConditionalTailLoss(100, 100, 0.25, 0.5, model.KindCall, 0)
	if math.Abs(put-9.9477) > 1e-3 {
		t.Fatalf("put tail=%v, want ≈9.9477", put)
	}
	if math.Abs(call-put) > 1e-9 {
		t.Fatalf("ATM 且 r=0 时 call tail=%v 应等于 put tail=%v", call, put)
	}
}

func TestConditionalTailLoss_FarOTMIsZero(t *testing.T) {
	// 极深虚值：N(-d2) < 1e-10
	if got := ConditionalTailLoss(100, 10, 0.01, 0.2, model.KindPut, 0); got != 0 {
		t.Fatalf("tail=%v, want 0", got)
	}
	if got := ConditionalTailLoss(100, 1000, 0.01, 0.2, model.KindCall, 0); got != 0 {
		t.Fatalf("tail=%v, want 0", got)
	}
}

func TestEstimateBenchmarkVol(t *testing.T) {
	q := func(exp string, dte int, strike float64, kind model.OptionKind, iv float64) model.OptionQuote {
		return model.OptionQuote{Expiry: exp, DTE: dte, Strike: strike, Kind: kind, MarkIV: iv}
	}

	if got := EstimateBenchmarkVol(nil, 100); got != 0 {
		t.Fatalf("empty=%v, want 0", got)
	}

	single := []model.OptionQuote{
		q("A", 10, 100, model.KindCall, 40),
		q("A", 10, 100, model.KindPut, 44),
		q("A", 10, 120, model.KindCall, 70),
	}
	if got := EstimateBenchmarkVol(single, 101); got != 42 {
		t.Fatalf("single=%v, want 42", got)
	}

	two := []model.OptionQuote{
		q("FAR", 60, 100, model.KindCall, 60),
		q("NEAR", 20, 100, model.KindPut, 50),
	}
	got := EstimateBenchmarkVol(two, 100)
	if math.Abs(got-55.2268) > 1e-3 {
		t.Fatalf("interp=%v, want ≈55.2268", got)
	}

	// 只有 ≤30 天的到期日：取最靠近 30 天的那个
	nearOnly := []model.OptionQuote{
		q("A", 5, 100, model.KindCall, 30),
		q("B", 25, 100, model.KindCall, 45),
	}
	if got := EstimateBenchmarkVol(nearOnly, 100); got != 45 {
		t.Fatalf("nearOnly=%v, want 45", got)
	}

	if got := EstimateBenchmarkVol(two, 0); got != 0 {
		t.Fatalf("spot=0 时=%v, want 0", got)
	}
}
