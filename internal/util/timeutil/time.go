// Package timeutil 提供时间相关的工具函数。
// 包括单调纳秒时钟（用于周期耗时统计）与期权到期日解析。
package timeutil

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

var (
	// baseTime 基准时间点（包含单调时钟读数）
	baseTime = time.Now()
	// baseUnixNs 基准时间点对应的 Unix 纳秒时间戳
	baseUnixNs = baseTime.UnixNano()
)

// ExpiryHourUTC 期权到期结算时刻（UTC 08:00）
const ExpiryHourUTC = 8

// DayMs 一天的毫秒数
const DayMs = 24 * 60 * 60 * 1000

var months = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// NowNano 获取当前时间的纳秒时间戳
// 使用“单调时钟 + 启动时 Unix 时间”组合实现，系统时间跳变时耗时统计仍保持单调。
// 返回: 当前时间的 Unix 纳秒时间戳
func NowNano() int64 {
	return baseUnixNs + time.Since(baseTime).Nanoseconds()
}

// NowMs 获取当前时间的毫秒时间戳
func NowMs() int64 {
	return NowNano() / 1_000_000
}

// SinceNano 计算从指定纳秒时间戳到现在的时间差
func SinceNano(startNs int64) time.Duration {
	return time.Duration(NowNano() - startNs)
}

// ParseExpiry 解析到期日标签
// 标签格式为 DMMMYY 或 DDMMMYY，如 7MAR26、27MAR26；到期时刻为当日 08:00 UTC。
// 参数 label: 到期日标签
// 返回: 到期时刻
func ParseExpiry(label string) (time.Time, error) {
	n := len(label)
	if n < 6 || n > 7 {
		return time.Time{}, fmt.Errorf("到期日格式错误: %q", label)
	}

	day, err := strconv.Atoi(label[:n-5])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("到期日日期错误: %q", label)
	}
	month, ok := months[label[n-5:n-2]]
	if !ok {
		return time.Time{}, fmt.Errorf("到期日月份错误: %q", label)
	}
	year, err := strconv.Atoi(label[n-2:])
	if err != nil || year < 0 {
		return time.Time{}, fmt.Errorf("到期日年份错误: %q", label)
	}

	t := time.Date(2000+year, month, day, ExpiryHourUTC, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}, fmt.Errorf("到期日不存在: %q", label)
	}
	return t, nil
}

// DaysToExpiry 计算剩余天数（向上取整，不小于 0）
// 参数 expiry: 到期时刻
// 参数 now: 当前时刻
func DaysToExpiry(expiry, now time.Time) int {
	ms := expiry.Sub(now).Milliseconds()
	if ms <= 0 {
		return 0
	}
	return int(math.Ceil(float64(ms) / DayMs))
}
