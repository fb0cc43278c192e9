package marketdata

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ladder-optimizer/internal/core/model"
	"ladder-optimizer/internal/util/timeutil"
)

// BuildQuotes 将行情摘要转换为期权报价
// 丢弃: 名称无法解析、标记价格或期货价格 <=0、已到期、行权价不是 strikeStep 整数倍的合约。
// 参数 summaries: 行情摘要
// 参数 now: 当前时刻（用于计算剩余天数）
// 参数 strikeStep: 行权价步长，<=0 表示不过滤
// 返回: 报价列表，顺序与输入一致
func BuildQuotes(summaries []BookSummary, now time.Time, strikeStep float64) []model.OptionQuote {
	var step decimal.Decimal
	if strikeStep > 0 {
		step = decimal.NewFromFloat(strikeStep)
	}

	out := make([]model.OptionQuote, 0, len(summaries))
	for i := range summaries {
		s := &summaries[i]
		if s.MarkPrice <= 0 || s.UnderlyingPrice <= 0 {
			continue
		}
		inst, err := ParseInstrument(s.InstrumentName)
		if err != nil {
			continue
		}
		if strikeStep > 0 && !decimal.NewFromFloat(inst.Strike).Mod(step).IsZero() {
			continue
		}
		dte := timeutil.DaysToExpiry(inst.ExpiryTime, now)
		if dte <= 0 {
			continue
		}

		out = append(out, model.OptionQuote{
			Instrument:      s.InstrumentName,
			Strike:          inst.Strike,
			Expiry:          inst.Expiry,
			ExpiryUnixMs:    inst.ExpiryTime.UnixMilli(),
			Kind:            inst.Kind,
			MarkPrice:       s.MarkPrice,
			BidPrice:        positive(s.BidPrice),
			AskPrice:        positive(s.AskPrice),
			MarkIV:          s.MarkIV,
			UnderlyingPrice: s.UnderlyingPrice,
			DTE:             dte,
			Inverse:         s.QuoteCurrency != "" && strings.EqualFold(s.QuoteCurrency, s.BaseCurrency),
		})
	}
	return out
}

// SpotPrice 从行情摘要中取参考现货价格
// 优先使用交割参考指数，缺失时回退为第一个有效期货价格。
func SpotPrice(summaries []BookSummary) float64 {
	for i := range summaries {
		if summaries[i].EstimatedDeliveryPrice > 0 {
			return summaries[i].EstimatedDeliveryPrice
		}
	}
	for i := range summaries {
		if summaries[i].UnderlyingPrice > 0 {
			return summaries[i].UnderlyingPrice
		}
	}
	return 0
}

// positive 过滤缺失或非正的价格
func positive(p *float64) *float64 {
	if p == nil || *p <= 0 {
		return nil
	}
	v := *p
	return &v
}
