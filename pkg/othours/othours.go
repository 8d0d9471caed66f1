// Package othours 提供加班时长与考勤工时的统一计算
// 所有涉及加班小时数的代码都必须经过本包，避免各处散落的日期减法
package othours

import (
	"fmt"
	"math"
	"time"
)

// Config 加班计算配置
type Config struct {
	MinClaimMinutes int     // 低于该时长的申报记为0（默认30分钟）
	MaxPerDayHours  float64 // 单日加班上限（默认6小时）
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MinClaimMinutes: 30,
		MaxPerDayHours:  6,
	}
}

// Calculate 计算加班时长（小时，保留两位小数）
// 结束时间早于开始时间视为跨午夜，自动加一天
func Calculate(start, end time.Time) float64 {
	if start.IsZero() || end.IsZero() {
		return 0
	}
	if !end.After(start) {
		end = end.Add(24 * time.Hour)
	}
	return Round2(end.Sub(start).Hours())
}

// CalculateCapped 按配置计算生效加班时长
// 低于起报门槛记0，超过单日上限按上限截断
func CalculateCapped(start, end time.Time, cfg Config) float64 {
	hours := Calculate(start, end)
	if hours*60 < float64(cfg.MinClaimMinutes) {
		return 0
	}
	if cfg.MaxPerDayHours > 0 && hours > cfg.MaxPerDayHours {
		return cfg.MaxPerDayHours
	}
	return hours
}

// Round2 四舍五入保留两位小数
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatHours 将小时数格式化为 "3h 30m" 形式
func FormatHours(hours float64) string {
	return FormatMinutes(int(math.Round(hours * 60)))
}

// FormatMinutes 将分钟数格式化为 "120h 54m" 形式
func FormatMinutes(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
