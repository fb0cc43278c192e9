package marketdata

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"ladder-optimizer/internal/core/model"
	"ladder-optimizer/internal/util/timeutil"
)

// Instrument 解析后的期权合约名称
type Instrument struct {
	// Underlying 标的部分，如 BTC、SOL_USDC
	Underlying string
	// Expiry 到期日标签，如 27MAR26
	Expiry string
	// ExpiryTime 到期时刻（08:00 UTC）
	ExpiryTime time.Time
	// Strike 行权价
	Strike float64
	// Kind 期权类型
	Kind model.OptionKind
}

// ParseInstrument 解析合约名称
// 格式: UNDERLYING-EXPIRY-STRIKE-C|P，行权价中的小数点写作 "_" 或 "d"（如 2_5、122d5）
// 参数 name: 合约名称
// 返回: 解析结果，格式不符时返回错误
func ParseInstrument(name string) (Instrument, error) {
	parts := strings.Split(name, "-")
	if len(parts) != 4 {
		return Instrument{}, fmt.Errorf("合约名称格式错误: %q", name)
	}

	var kind model.OptionKind
	switch parts[3] {
	case "C":
		kind = model.KindCall
	case "P":
		kind = model.KindPut
	default:
		return Instrument{}, fmt.Errorf("期权类型错误: %q", name)
	}

	expiry, err := timeutil.ParseExpiry(parts[1])
	if err != nil {
		return Instrument{}, fmt.Errorf("解析合约 %q 失败: %w", name, err)
	}

	strikeText := strings.NewReplacer("_", ".", "d", ".").Replace(parts[2])
	strike, err := strconv.ParseFloat(strikeText, 64)
	if err != nil || strike <= 0 {
		return Instrument{}, fmt.Errorf("行权价错误: %q", name)
	}

	return Instrument{
		Underlying: parts[0],
		Expiry:     parts[1],
		ExpiryTime: expiry,
		Strike:     strike,
		Kind:       kind,
	}, nil
}
