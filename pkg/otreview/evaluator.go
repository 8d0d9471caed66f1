// Package otreview 提供加班申报的审核辅助评估
package otreview

import (
	"fmt"
	"time"

	"github.com/kaoqin/kaoqin/pkg/model"
	"github.com/kaoqin/kaoqin/pkg/othours"
	"github.com/kaoqin/kaoqin/pkg/policy"
)

// Evaluator 加班审核评估器
// 将申报时长与当日考勤、外访佐证对比，供审核界面参考，不落库
type Evaluator struct {
	policyManager *policy.Manager
}

// NewEvaluator 创建审核评估器
func NewEvaluator(pm *policy.Manager) *Evaluator {
	return &Evaluator{
		policyManager: pm,
	}
}

// ReviewRequest 审核评估请求
type ReviewRequest struct {
	Session *model.OTSession        `json:"session"`
	Record  *model.AttendanceRecord `json:"record,omitempty"` // 当日考勤记录
	Visits  []*model.SiteVisit      `json:"visits,omitempty"` // 当日外访记录
}

// Evaluation 审核评估结果
type Evaluation struct {
	Feasible       bool    `json:"feasible"`
	Score          float64 `json:"score"` // 0-100
	Issues         []Issue `json:"issues"`
	SuggestedHours float64 `json:"suggested_hours"`
	Recommendation string  `json:"recommendation"`
}

// Issue 审核问题
type Issue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"` // error/warning/info
	Message  string `json:"message"`
}

// Evaluate 评估加班申报
func (e *Evaluator) Evaluate(ctx *policy.Context, request *ReviewRequest) *Evaluation {
	result := &Evaluation{
		Feasible: true,
		Score:    100,
		Issues:   make([]Issue, 0),
	}

	// 1. 基础检查
	if request == nil || request.Session == nil {
		result.Feasible = false
		result.Issues = append(result.Issues, Issue{
			Type:     "invalid_request",
			Severity: "error",
			Message:  "无效的评估请求",
		})
		return result
	}

	session := request.Session
	result.SuggestedHours = session.ClaimedHours

	emp := ctx.GetEmployee(session.EmployeeID)
	if emp == nil {
		result.Feasible = false
		result.Issues = append(result.Issues, Issue{
			Type:     "employee_not_found",
			Severity: "error",
			Message:  "申报员工不在评估范围内",
		})
		return result
	}

	// 2. 检查员工是否在职
	if !emp.IsActive() {
		result.Feasible = false
		result.Issues = append(result.Issues, Issue{
			Type:     "employee_inactive",
			Severity: "error",
			Message:  "申报员工不在职",
		})
		return result
	}

	// 3. 已审核的申报仅提示
	if session.IsReviewed() {
		result.Issues = append(result.Issues, Issue{
			Type:     "already_reviewed",
			Severity: "info",
			Message:  "该申报已审核，评估结果仅供参考",
		})
	}

	// 4. 佐证核对
	evidence, hasEvidence := e.evidenceHours(emp, request)
	if !hasEvidence {
		result.Feasible = false
		result.SuggestedHours = 0
		result.Issues = append(result.Issues, Issue{
			Type:     "no_evidence",
			Severity: "error",
			Message:  fmt.Sprintf("员工 %s 在 %s 既无考勤签退也无外访记录", emp.Name, session.Date),
		})
	} else if session.ClaimedHours > evidence+0.5 {
		// 申报与佐证相差半小时以上需调整
		result.SuggestedHours = othours.Round2(evidence)
		result.Issues = append(result.Issues, Issue{
			Type:     "claim_exceeds_evidence",
			Severity: "warning",
			Message: fmt.Sprintf("申报 %s 超出佐证时长 %s",
				othours.FormatHours(session.ClaimedHours), othours.FormatHours(evidence)),
		})
	}

	// 5. 使用规则管理器评估
	if e.policyManager != nil {
		simCtx := ctx.SubContext(session.EmployeeID)
		policyResult := e.policyManager.Evaluate(simCtx)

		for _, f := range policyResult.HardFindings {
			if f.Date != session.Date && f.Date != monthOf(session.Date) {
				continue
			}
			result.Feasible = false
			result.Issues = append(result.Issues, Issue{
				Type:     string(f.RuleType),
				Severity: "error",
				Message:  f.Message,
			})
		}
		for _, f := range policyResult.SoftFindings {
			if f.Date != session.Date && !isWeekOf(f.Date, session.Date) {
				continue
			}
			result.Issues = append(result.Issues, Issue{
				Type:     string(f.RuleType),
				Severity: "warning",
				Message:  f.Message,
			})
		}

		result.Score = policyResult.Score
	}

	// 无佐证时得分归零
	if !hasEvidence {
		result.Score = 0
	}

	// 6. 生成建议
	result.Recommendation = e.generateRecommendation(result, session)

	return result
}

// evidenceHours 从考勤与外访推算当日可佐证的加班时长
// 返回佐证时长与是否存在任何佐证
func (e *Evaluator) evidenceHours(emp *model.Employee, request *ReviewRequest) (float64, bool) {
	session := request.Session

	loc := session.StartTime.Location()
	date, err := time.ParseInLocation("2006-01-02", session.Date, loc)
	if err != nil {
		return 0, false
	}
	workEnd := emp.WorkEndOn(date)

	hasEvidence := false

	// 考勤佐证：签退时刻晚于定班下班时刻的部分
	var attendanceHours float64
	if request.Record != nil && request.Record.CheckOutTime != nil {
		hasEvidence = true
		if request.Record.CheckOutTime.After(workEnd) {
			attendanceHours = request.Record.CheckOutTime.Sub(workEnd).Hours()
		}
	}

	// 外访佐证：外访时段落在下班时刻之后的部分，未签退的不计
	var visitHours float64
	for _, v := range request.Visits {
		if v.CheckOutTime == nil {
			continue
		}
		hasEvidence = true
		start := v.CheckInTime
		if start.Before(workEnd) {
			start = workEnd
		}
		if v.CheckOutTime.After(start) {
			visitHours += v.CheckOutTime.Sub(start).Hours()
		}
	}

	// 考勤与外访可能覆盖同一时段，取较大者避免重复计算
	evidence := attendanceHours
	if visitHours > evidence {
		evidence = visitHours
	}

	return othours.Round2(evidence), hasEvidence
}

// generateRecommendation 生成审核建议
func (e *Evaluator) generateRecommendation(result *Evaluation, session *model.OTSession) string {
	if !result.Feasible {
		return "不建议批准此申报，存在硬性问题"
	}

	if result.SuggestedHours < session.ClaimedHours {
		return fmt.Sprintf("建议调整为 %s 后批准", othours.FormatHours(result.SuggestedHours))
	}

	if result.Score >= 90 {
		return "建议按申报时长批准"
	} else if result.Score >= 70 {
		return "可以批准，建议复核佐证材料"
	} else if result.Score >= 50 {
		return "谨慎批准，该员工近期存在规则提醒"
	}
	return "不推荐批准，该员工近期规则问题较多"
}

// CanApprove 快速检查申报是否可直接批准
func (e *Evaluator) CanApprove(ctx *policy.Context, request *ReviewRequest) (bool, string) {
	result := e.Evaluate(ctx, request)
	if !result.Feasible {
		if len(result.Issues) > 0 {
			return false, result.Issues[0].Message
		}
		return false, "无法批准此申报"
	}
	return true, ""
}

// monthOf 取日期的年月部分
func monthOf(date string) string {
	if len(date) >= 7 {
		return date[:7]
	}
	return date
}

// isWeekOf 检查两个日期是否处于同一周（周日起算）
func isWeekOf(date1, date2 string) bool {
	t1, err1 := time.Parse("2006-01-02", date1)
	t2, err2 := time.Parse("2006-01-02", date2)
	if err1 != nil || err2 != nil {
		return false
	}
	ws1 := t1.AddDate(0, 0, -int(t1.Weekday()))
	ws2 := t2.AddDate(0, 0, -int(t2.Weekday()))
	return ws1.Format("2006-01-02") == ws2.Format("2006-01-02")
}
