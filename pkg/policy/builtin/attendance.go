// Package builtin 提供内置考勤规则实现
package builtin

import (
	"fmt"
	"time"

	"github.com/kaoqin/kaoqin/pkg/model"
	"github.com/kaoqin/kaoqin/pkg/policy"
)

// LateArrivalRule 迟到规则
type LateArrivalRule struct {
	*BaseRule
	graceMinutes int
}

// NewLateArrivalRule 创建迟到规则
func NewLateArrivalRule(graceMinutes int) *LateArrivalRule {
	return &LateArrivalRule{
		BaseRule: NewBaseRule(
			"迟到",
			policy.TypeLateArrival,
			policy.CategoryHard,
			100, // 硬规则权重
		),
		graceMinutes: graceMinutes,
	}
}

// Evaluate 评估整个考勤周期
func (r *LateArrivalRule) Evaluate(ctx *policy.Context) (bool, int, []policy.FindingDetail) {
	var findings []policy.FindingDetail
	totalPenalty := 0
	isValid := true

	for _, emp := range ctx.Employees {
		for _, rec := range ctx.GetEmployeeRecords(emp.ID) {
			lateMin := r.lateMinutes(emp, rec)
			if lateMin <= 0 {
				continue
			}

			isValid = false
			penalty := r.Weight() * lateMin / 10
			totalPenalty += penalty

			findings = append(findings, policy.FindingDetail{
				RuleType:   r.Type(),
				RuleName:   r.Name(),
				EmployeeID: emp.ID,
				Date:       rec.Date,
				Message:    fmt.Sprintf("员工 %s 在 %s 迟到 %d 分钟", emp.Name, rec.Date, lateMin),
				Severity:   "error",
				Penalty:    penalty,
			})
		}
	}

	return isValid, totalPenalty, findings
}

// EvaluateRecord 评估单条考勤记录
func (r *LateArrivalRule) EvaluateRecord(ctx *policy.Context, rec *model.AttendanceRecord) (bool, int) {
	emp := ctx.GetEmployee(rec.EmployeeID)
	if emp == nil {
		return true, 0
	}

	lateMin := r.lateMinutes(emp, rec)
	if lateMin <= 0 {
		return true, 0
	}
	return false, r.Weight() * lateMin / 10
}

// lateMinutes 计算迟到分钟数，未迟到返回0
func (r *LateArrivalRule) lateMinutes(emp *model.Employee, rec *model.AttendanceRecord) int {
	if rec.CheckInTime == nil {
		return 0
	}
	date, err := time.ParseInLocation("2006-01-02", rec.Date, rec.CheckInTime.Location())
	if err != nil {
		return 0
	}

	deadline := emp.WorkStartOn(date).Add(time.Duration(r.graceMinutes) * time.Minute)
	if !rec.CheckInTime.After(deadline) {
		return 0
	}
	return int(rec.CheckInTime.Sub(emp.WorkStartOn(date)).Minutes())
}

// EarlyLeaveRule 早退规则
type EarlyLeaveRule struct {
	*BaseRule
	graceMinutes int
}

// NewEarlyLeaveRule 创建早退规则
func NewEarlyLeaveRule(graceMinutes int) *EarlyLeaveRule {
	return &EarlyLeaveRule{
		BaseRule: NewBaseRule(
			"早退",
			policy.TypeEarlyLeave,
			policy.CategoryHard,
			100,
		),
		graceMinutes: graceMinutes,
	}
}

// Evaluate 评估整个考勤周期
func (r *EarlyLeaveRule) Evaluate(ctx *policy.Context) (bool, int, []policy.FindingDetail) {
	var findings []policy.FindingDetail
	totalPenalty := 0
	isValid := true

	for _, emp := range ctx.Employees {
		for _, rec := range ctx.GetEmployeeRecords(emp.ID) {
			earlyMin := r.earlyMinutes(emp, rec)
			if earlyMin <= 0 {
				continue
			}

			isValid = false
			penalty := r.Weight() * earlyMin / 10
			totalPenalty += penalty

			findings = append(findings, policy.FindingDetail{
				RuleType:   r.Type(),
				RuleName:   r.Name(),
				EmployeeID: emp.ID,
				Date:       rec.Date,
				Message:    fmt.Sprintf("员工 %s 在 %s 早退 %d 分钟", emp.Name, rec.Date, earlyMin),
				Severity:   "error",
				Penalty:    penalty,
			})
		}
	}

	return isValid, totalPenalty, findings
}

// EvaluateRecord 评估单条考勤记录
func (r *EarlyLeaveRule) EvaluateRecord(ctx *policy.Context, rec *model.AttendanceRecord) (bool, int) {
	emp := ctx.GetEmployee(rec.EmployeeID)
	if emp == nil {
		return true, 0
	}

	earlyMin := r.earlyMinutes(emp, rec)
	if earlyMin <= 0 {
		return true, 0
	}
	return false, r.Weight() * earlyMin / 10
}

// earlyMinutes 计算早退分钟数，未早退返回0
func (r *EarlyLeaveRule) earlyMinutes(emp *model.Employee, rec *model.AttendanceRecord) int {
	if rec.CheckOutTime == nil {
		return 0
	}
	date, err := time.ParseInLocation("2006-01-02", rec.Date, rec.CheckOutTime.Location())
	if err != nil {
		return 0
	}

	threshold := emp.WorkEndOn(date).Add(-time.Duration(r.graceMinutes) * time.Minute)
	if !rec.CheckOutTime.Before(threshold) {
		return 0
	}
	return int(emp.WorkEndOn(date).Sub(*rec.CheckOutTime).Minutes())
}

// MissingCheckoutRule 签退缺失规则
type MissingCheckoutRule struct {
	*BaseRule
}

// NewMissingCheckoutRule 创建签退缺失规则
func NewMissingCheckoutRule() *MissingCheckoutRule {
	return &MissingCheckoutRule{
		BaseRule: NewBaseRule(
			"签退缺失",
			policy.TypeMissingCheckout,
			policy.CategoryHard,
			100,
		),
	}
}

// Evaluate 评估整个考勤周期
func (r *MissingCheckoutRule) Evaluate(ctx *policy.Context) (bool, int, []policy.FindingDetail) {
	var findings []policy.FindingDetail
	totalPenalty := 0
	isValid := true

	for _, emp := range ctx.Employees {
		for _, rec := range ctx.GetEmployeeRecords(emp.ID) {
			if !rec.IsOpen() {
				continue
			}

			isValid = false
			penalty := r.Weight()
			totalPenalty += penalty

			findings = append(findings, policy.FindingDetail{
				RuleType:   r.Type(),
				RuleName:   r.Name(),
				EmployeeID: emp.ID,
				Date:       rec.Date,
				Message:    fmt.Sprintf("员工 %s 在 %s 未签退", emp.Name, rec.Date),
				Severity:   "error",
				Penalty:    penalty,
			})
		}
	}

	return isValid, totalPenalty, findings
}

// EvaluateRecord 评估单条考勤记录
func (r *MissingCheckoutRule) EvaluateRecord(ctx *policy.Context, rec *model.AttendanceRecord) (bool, int) {
	if rec.IsOpen() {
		return false, r.Weight()
	}
	return true, 0
}
