// Package builtin 提供内置考勤规则实现
package builtin

import (
	"fmt"
	"sort"
	"time"

	"github.com/kaoqin/kaoqin/pkg/model"
	"github.com/kaoqin/kaoqin/pkg/policy"
)

// MaxOTPerDayRule 单日加班上限规则
type MaxOTPerDayRule struct {
	*BaseRule
	maxHours float64
}

// NewMaxOTPerDayRule 创建单日加班上限规则
func NewMaxOTPerDayRule(maxHours float64) *MaxOTPerDayRule {
	return &MaxOTPerDayRule{
		BaseRule: NewBaseRule(
			"单日加班上限",
			policy.TypeMaxOTPerDay,
			policy.CategoryHard,
			100, // 硬规则权重
		),
		maxHours: maxHours,
	}
}

// Evaluate 评估整个考勤周期
func (r *MaxOTPerDayRule) Evaluate(ctx *policy.Context) (bool, int, []policy.FindingDetail) {
	var findings []policy.FindingDetail
	totalPenalty := 0
	isValid := true

	for _, emp := range ctx.Employees {
		for date := range ctx.GetOTDates(emp.ID) {
			hours := ctx.GetOTHoursOnDate(emp.ID, date)
			if hours <= r.maxHours {
				continue
			}

			isValid = false
			penalty := r.Weight() * int(hours-r.maxHours+1)
			totalPenalty += penalty

			findings = append(findings, policy.FindingDetail{
				RuleType:   r.Type(),
				RuleName:   r.Name(),
				EmployeeID: emp.ID,
				Date:       date,
				Message:    fmt.Sprintf("员工 %s 在 %s 加班 %.1f 小时，超过上限 %.1f 小时", emp.Name, date, hours, r.maxHours),
				Severity:   "error",
				Penalty:    penalty,
			})
		}
	}

	return isValid, totalPenalty, findings
}

// MaxOTPerMonthRule 月度加班上限规则
type MaxOTPerMonthRule struct {
	*BaseRule
	maxHours float64
}

// NewMaxOTPerMonthRule 创建月度加班上限规则
func NewMaxOTPerMonthRule(maxHours float64) *MaxOTPerMonthRule {
	return &MaxOTPerMonthRule{
		BaseRule: NewBaseRule(
			"月度加班上限",
			policy.TypeMaxOTPerMonth,
			policy.CategoryHard,
			100,
		),
		maxHours: maxHours,
	}
}

// Evaluate 评估整个考勤周期
func (r *MaxOTPerMonthRule) Evaluate(ctx *policy.Context) (bool, int, []policy.FindingDetail) {
	var findings []policy.FindingDetail
	totalPenalty := 0
	isValid := true

	for _, emp := range ctx.Employees {
		// 按月份累计生效加班时长
		hoursByMonth := make(map[string]float64)
		for _, s := range ctx.GetEmployeeOTSessions(emp.ID) {
			if s.Status == model.OTRejected || len(s.Date) < 7 {
				continue
			}
			hoursByMonth[s.Date[:7]] += s.EffectiveHours()
		}

		for month, hours := range hoursByMonth {
			if hours <= r.maxHours {
				continue
			}

			isValid = false
			penalty := r.Weight() * int(hours-r.maxHours+1)
			totalPenalty += penalty

			findings = append(findings, policy.FindingDetail{
				RuleType:   r.Type(),
				RuleName:   r.Name(),
				EmployeeID: emp.ID,
				Date:       month,
				Message:    fmt.Sprintf("员工 %s 在 %s 累计加班 %.1f 小时，超过上限 %.1f 小时", emp.Name, month, hours, r.maxHours),
				Severity:   "error",
				Penalty:    penalty,
			})
		}
	}

	return isValid, totalPenalty, findings
}

// MaxWeeklyHoursRule 周总工时规则（出勤加生效加班）
type MaxWeeklyHoursRule struct {
	*BaseRule
	maxHours int
}

// NewMaxWeeklyHoursRule 创建周总工时规则
func NewMaxWeeklyHoursRule(weight, maxHours int) *MaxWeeklyHoursRule {
	return &MaxWeeklyHoursRule{
		BaseRule: NewBaseRule(
			"周总工时",
			policy.TypeMaxWeeklyHours,
			policy.CategorySoft,
			weight,
		),
		maxHours: maxHours,
	}
}

// Evaluate 评估整个考勤周期
func (r *MaxWeeklyHoursRule) Evaluate(ctx *policy.Context) (bool, int, []policy.FindingDetail) {
	var findings []policy.FindingDetail
	totalPenalty := 0
	isValid := true

	for _, emp := range ctx.Employees {
		// 按周累计出勤与生效加班
		hoursByWeek := make(map[string]float64)
		for _, rec := range ctx.GetEmployeeRecords(emp.ID) {
			hoursByWeek[weekStart(rec.Date)] += float64(rec.WorkMinutes) / 60
		}
		for _, s := range ctx.GetEmployeeOTSessions(emp.ID) {
			if s.Status != model.OTRejected {
				hoursByWeek[weekStart(s.Date)] += s.EffectiveHours()
			}
		}

		for week, hours := range hoursByWeek {
			if hours <= float64(r.maxHours) {
				continue
			}

			isValid = false
			penalty := r.Weight() * int(hours-float64(r.maxHours)+1)
			totalPenalty += penalty

			findings = append(findings, policy.FindingDetail{
				RuleType:   r.Type(),
				RuleName:   r.Name(),
				EmployeeID: emp.ID,
				Date:       week,
				Message:    fmt.Sprintf("员工 %s 在周 %s 总工时 %.1f 小时，超过 %d 小时", emp.Name, week, hours, r.maxHours),
				Severity:   "warning",
				Penalty:    penalty,
			})
		}
	}

	return isValid, totalPenalty, findings
}

// ConsecutiveOTDaysRule 连续加班天数规则
type ConsecutiveOTDaysRule struct {
	*BaseRule
	maxDays int
}

// NewConsecutiveOTDaysRule 创建连续加班天数规则
func NewConsecutiveOTDaysRule(weight, maxDays int) *ConsecutiveOTDaysRule {
	return &ConsecutiveOTDaysRule{
		BaseRule: NewBaseRule(
			"连续加班天数",
			policy.TypeConsecutiveOTDays,
			policy.CategorySoft,
			weight,
		),
		maxDays: maxDays,
	}
}

// Evaluate 评估整个考勤周期
func (r *ConsecutiveOTDaysRule) Evaluate(ctx *policy.Context) (bool, int, []policy.FindingDetail) {
	var findings []policy.FindingDetail
	totalPenalty := 0
	isValid := true

	for _, emp := range ctx.Employees {
		otDates := ctx.GetOTDates(emp.ID)
		if len(otDates) == 0 {
			continue
		}

		dates := make([]string, 0, len(otDates))
		for d := range otDates {
			dates = append(dates, d)
		}
		sort.Strings(dates)

		// 检测最长连续加班天数
		consecutive := 1
		maxConsecutive := 1
		runStart := dates[0]
		maxStart := dates[0]

		for i := 1; i < len(dates); i++ {
			if isConsecutiveDate(dates[i-1], dates[i]) {
				consecutive++
				if consecutive > maxConsecutive {
					maxConsecutive = consecutive
					maxStart = runStart
				}
			} else {
				consecutive = 1
				runStart = dates[i]
			}
		}

		if maxConsecutive > r.maxDays {
			isValid = false
			penalty := r.Weight() * (maxConsecutive - r.maxDays)
			totalPenalty += penalty

			findings = append(findings, policy.FindingDetail{
				RuleType:   r.Type(),
				RuleName:   r.Name(),
				EmployeeID: emp.ID,
				Date:       maxStart,
				Message:    fmt.Sprintf("员工 %s 连续加班 %d 天，超过 %d 天", emp.Name, maxConsecutive, r.maxDays),
				Severity:   "warning",
				Penalty:    penalty,
			})
		}
	}

	return isValid, totalPenalty, findings
}

// weekStart 获取日期所在周的开始日期（周日）
func weekStart(dateStr string) string {
	t, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return dateStr
	}
	weekday := int(t.Weekday())
	return t.AddDate(0, 0, -weekday).Format("2006-01-02")
}

// isConsecutiveDate 检查两个日期是否连续
func isConsecutiveDate(date1, date2 string) bool {
	t1, err1 := time.Parse("2006-01-02", date1)
	t2, err2 := time.Parse("2006-01-02", date2)
	if err1 != nil || err2 != nil {
		return false
	}
	return t2.Sub(t1).Hours()/24 == 1
}
