package pricing

import (
	"math"
	"sort"

	"ladder-optimizer/internal/core/model"
)

// benchmarkDays 基准波动率的目标期限（天）
const benchmarkDays = 30

type atmPoint struct {
	dte int
	iv  float64
}

// EstimateBenchmarkVol 由期权链估计 30 天 ATM 隐含波动率（百分比）
// 用于波动率指数不可用时的替代。
// 每个到期日取最接近现货的行权价，Call/Put 同时存在时取 IV 均值；
// 然后在 ≤30 天与 >30 天最近的两个到期日之间按总方差线性插值。
// 参数 quotes: 期权报价
// 参数 spot: 现货参考价格（<=0 时返回 0）
// 返回: 估计的波动率（百分比），无可用数据时为 0
func EstimateBenchmarkVol(quotes []model.OptionQuote, spot float64) float64 {
	if spot <= 0 || len(quotes) == 0 {
		return 0
	}

	// 按到期日分组（保持首次出现顺序）
	var order []string
	groups := make(map[string][]model.OptionQuote)
	for _, q := range quotes {
		if q.DTE <= 0 {
			continue
		}
		if _, ok := groups[q.Expiry]; !ok {
			order = append(order, q.Expiry)
		}
		groups[q.Expiry] = append(groups[q.Expiry], q)
	}

	points := make([]atmPoint, 0, len(order))
	for _, exp := range order {
		opts := groups[exp]
		best := math.Inf(1)
		for _, o := range opts {
			best = math.Min(best, math.Abs(o.Strike-spot))
		}
		var callIV, putIV float64
		var hasCall, hasPut bool
		for _, o := range opts {
			if math.Abs(o.Strike-spot) != best {
				continue
			}
			if o.Kind == model.KindCall && !hasCall {
				callIV, hasCall = o.MarkIV, true
			}
			if o.Kind == model.KindPut && !hasPut {
				putIV, hasPut = o.MarkIV, true
			}
		}
		var iv float64
		switch {
		case hasCall && hasPut:
			iv = (callIV + putIV) / 2
		case hasCall:
			iv = callIV
		case hasPut:
			iv = putIV
		}
		if iv > 0 {
			points = append(points, atmPoint{dte: opts[0].DTE, iv: iv})
		}
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].dte < points[j].dte })

	switch len(points) {
	case 0:
		return 0
	case 1:
		return points[0].iv
	}

	var near, far *atmPoint
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].dte <= benchmarkDays {
			near = &points[i]
			break
		}
	}
	for i := range points {
		if points[i].dte > benchmarkDays {
			far = &points[i]
			break
		}
	}

	switch {
	case near != nil && far != nil:
		t1 := float64(near.dte) / 365
		t2 := float64(far.dte) / 365
		t30 := float64(benchmarkDays) / 365
		var1 := near.iv * near.iv * t1
		var2 := far.iv * far.iv * t2
		var30 := var1 + (var2-var1)*((t30-t1)/(t2-t1))
		return math.Sqrt(math.Max(0, var30) / t30)
	case near != nil:
		return near.iv
	case far != nil:
		return far.iv
	}
	return 0
}
