// Package builtin 提供内置考勤规则实现
package builtin

import (
	"fmt"
	"time"

	"github.com/kaoqin/kaoqin/pkg/model"
	"github.com/kaoqin/kaoqin/pkg/policy"
)

// VisitEvidenceRule 外访佐证规则
// 外勤当日的加班申报应与外访时间段有交集
type VisitEvidenceRule struct {
	*BaseRule
}

// NewVisitEvidenceRule 创建外访佐证规则
func NewVisitEvidenceRule(weight int) *VisitEvidenceRule {
	return &VisitEvidenceRule{
		BaseRule: NewBaseRule(
			"外访佐证",
			policy.TypeVisitEvidence,
			policy.CategorySoft,
			weight,
		),
	}
}

// Evaluate 评估整个考勤周期
func (r *VisitEvidenceRule) Evaluate(ctx *policy.Context) (bool, int, []policy.FindingDetail) {
	var findings []policy.FindingDetail
	totalPenalty := 0
	isValid := true

	for _, emp := range ctx.Employees {
		for _, s := range ctx.GetEmployeeOTSessions(emp.ID) {
			if s.Status == model.OTRejected {
				continue
			}

			visits := ctx.GetVisitsOnDate(emp.ID, s.Date)
			if len(visits) == 0 {
				continue
			}

			if overlapsAnyVisit(s, visits) {
				continue
			}

			isValid = false
			penalty := r.Weight()
			totalPenalty += penalty

			findings = append(findings, policy.FindingDetail{
				RuleType:   r.Type(),
				RuleName:   r.Name(),
				EmployeeID: emp.ID,
				Date:       s.Date,
				Message:    fmt.Sprintf("员工 %s 在 %s 的加班申报与当日外访时段无交集", emp.Name, s.Date),
				Severity:   "warning",
				Penalty:    penalty,
			})
		}
	}

	return isValid, totalPenalty, findings
}

// overlapsAnyVisit 检查加班时段是否与任一外访时段有交集
func overlapsAnyVisit(s *model.OTSession, visits []*model.SiteVisit) bool {
	for _, v := range visits {
		end := v.CheckOutTime
		if end == nil {
			// 未签退的外访按一小时估算
			t := v.CheckInTime.Add(time.Hour)
			end = &t
		}
		if s.StartTime.Before(*end) && v.CheckInTime.Before(s.EndTime) {
			return true
		}
	}
	return false
}

// MaxDailyVisitsRule 单日外访次数规则
type MaxDailyVisitsRule struct {
	*BaseRule
	maxVisits int
}

// NewMaxDailyVisitsRule 创建单日外访次数规则
func NewMaxDailyVisitsRule(maxVisits int) *MaxDailyVisitsRule {
	return &MaxDailyVisitsRule{
		BaseRule: NewBaseRule(
			"单日外访次数",
			policy.TypeMaxDailyVisits,
			policy.CategoryHard,
			100,
		),
		maxVisits: maxVisits,
	}
}

// Evaluate 评估整个考勤周期
func (r *MaxDailyVisitsRule) Evaluate(ctx *policy.Context) (bool, int, []policy.FindingDetail) {
	var findings []policy.FindingDetail
	totalPenalty := 0
	isValid := true

	for _, emp := range ctx.Employees {
		daily := make(map[string]int)
		for _, v := range ctx.GetEmployeeVisits(emp.ID) {
			daily[v.CheckInTime.Format("2006-01-02")]++
		}

		for date, count := range daily {
			if count <= r.maxVisits {
				continue
			}

			isValid = false
			penalty := r.Weight() * (count - r.maxVisits)
			totalPenalty += penalty

			findings = append(findings, policy.FindingDetail{
				RuleType:   r.Type(),
				RuleName:   r.Name(),
				EmployeeID: emp.ID,
				Date:       date,
				Message:    fmt.Sprintf("员工 %s 在 %s 外访 %d 次，超过上限 %d 次", emp.Name, date, count, r.maxVisits),
				Severity:   "error",
				Penalty:    penalty,
			})
		}
	}

	return isValid, totalPenalty, findings
}
