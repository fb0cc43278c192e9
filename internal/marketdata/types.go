// Package marketdata 负责从期权交易所与利率源拉取行情并构建报价快照。
package marketdata

// rpcError 交易所 JSON-RPC 错误
type rpcError struct {
	// Code 错误码
	Code int `json:"code"`
	// Message 错误描述
	Message string `json:"message"`
}

// BookSummary 单个期权合约的行情摘要
// API: GET /public/get_book_summary_by_currency?currency=BTC&kind=option
type BookSummary struct {
	// InstrumentName 合约名称，如 BTC-27MAR26-70000-C
	InstrumentName string `json:"instrument_name"`
	// BaseCurrency 标的币种，如 BTC
	BaseCurrency string `json:"base_currency"`
	// QuoteCurrency 计价币种；与 BaseCurrency 相同时为币本位（反向）合约
	QuoteCurrency string `json:"quote_currency"`
	// MarkPrice 标记价格
	MarkPrice float64 `json:"mark_price"`
	// MarkIV 标记隐含波动率（百分比）
	MarkIV float64 `json:"mark_iv"`
	// BidPrice 最优买价，无挂单时为 null
	BidPrice *float64 `json:"bid_price"`
	// AskPrice 最优卖价，无挂单时为 null
	AskPrice *float64 `json:"ask_price"`
	// UnderlyingPrice 对应期货价格
	UnderlyingPrice float64 `json:"underlying_price"`
	// EstimatedDeliveryPrice 交割参考指数价格
	EstimatedDeliveryPrice float64 `json:"estimated_delivery_price"`
	// OpenInterest 未平仓量
	OpenInterest float64 `json:"open_interest"`
	// Volume 24 小时成交量
	Volume float64 `json:"volume"`
}

// bookSummaryResponse 行情摘要 API 响应
type bookSummaryResponse struct {
	Result []BookSummary `json:"result"`
	Error  *rpcError     `json:"error"`
}

// volatilityIndexResponse 波动率指数 API 响应
// API: GET /public/get_volatility_index_data
// data 每行为 [timestamp, open, high, low, close]
type volatilityIndexResponse struct {
	Result struct {
		Data [][]float64 `json:"data"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// sofrResponse SOFR 利率 API 响应
// API: GET /api/rates/secured/sofr/last/30.json
type sofrResponse struct {
	RefRates []struct {
		// EffectiveDate 生效日期
		EffectiveDate string `json:"effectiveDate"`
		// PercentRate 年化利率（百分比）
		PercentRate float64 `json:"percentRate"`
	} `json:"refRates"`
}
