// Package builtin 提供内置考勤规则实现
package builtin

import (
	"github.com/kaoqin/kaoqin/pkg/policy"
)

// RegisterDefaultRules 注册默认规则到管理器
func RegisterDefaultRules(manager *policy.Manager, config map[string]interface{}) {
	// 从配置中获取参数，使用默认值
	graceMinutes := getConfigInt(config, "grace_minutes", 10)
	maxOTPerDay := getConfigFloat(config, "max_ot_per_day", 6)
	maxOTPerMonth := getConfigFloat(config, "max_ot_per_month", 36)
	maxWeeklyHours := getConfigInt(config, "max_weekly_hours", 44)
	maxConsecutiveOT := getConfigInt(config, "max_consecutive_ot_days", 3)
	weeklyHoursWeight := getConfigInt(config, "weekly_hours_weight", 70)
	consecutiveOTWeight := getConfigInt(config, "consecutive_ot_weight", 60)

	// 注册硬规则
	manager.Register(NewLateArrivalRule(graceMinutes))
	manager.Register(NewEarlyLeaveRule(graceMinutes))
	manager.Register(NewMissingCheckoutRule())
	manager.Register(NewMaxOTPerDayRule(maxOTPerDay))
	manager.Register(NewMaxOTPerMonthRule(maxOTPerMonth))

	// 注册软规则
	manager.Register(NewMaxWeeklyHoursRule(weeklyHoursWeight, maxWeeklyHours))
	manager.Register(NewConsecutiveOTDaysRule(consecutiveOTWeight, maxConsecutiveOT))
}

// RegisterFieldRules 注册外勤场景规则
func RegisterFieldRules(manager *policy.Manager, config map[string]interface{}) {
	// 首先注册默认规则
	RegisterDefaultRules(manager, config)

	// 外访佐证（软规则）
	evidenceWeight := getConfigInt(config, "visit_evidence_weight", 50)
	manager.Register(NewVisitEvidenceRule(evidenceWeight))

	// 单日外访次数（硬规则）
	maxDailyVisits := getConfigInt(config, "max_daily_visits", 10)
	manager.Register(NewMaxDailyVisitsRule(maxDailyVisits))
}

// getConfigInt 从配置中获取整数
func getConfigInt(config map[string]interface{}, key string, defaultVal int) int {
	if config == nil {
		return defaultVal
	}
	if val, ok := config[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case float64:
			return int(v)
		case int64:
			return int(v)
		}
	}
	return defaultVal
}

// getConfigFloat 从配置中获取浮点数
func getConfigFloat(config map[string]interface{}, key string, defaultVal float64) float64 {
	if config == nil {
		return defaultVal
	}
	if val, ok := config[key]; ok {
		switch v := val.(type) {
		case float64:
			return v
		case int:
			return float64(v)
		}
	}
	return defaultVal
}
