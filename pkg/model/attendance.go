// Package model 定义考勤外勤服务的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// 考勤状态
const (
	AttendancePresent        = "present"          // 正常出勤
	AttendanceLate           = "late"             // 迟到
	AttendanceEarlyLeave     = "early_leave"      // 早退
	AttendanceLateEarlyLeave = "late_early_leave" // 迟到且早退
	AttendanceHalfDay        = "half_day"         // 半天
	AttendanceAbsent         = "absent"           // 缺勤
	AttendanceIncomplete     = "incomplete"       // 签退缺失
)

// 考勤来源
const (
	SourceMobile  = "mobile"
	SourceWeb     = "web"
	SourceMachine = "machine" // 考勤机导入
	SourceImport  = "import"  // 表格导入
)

// AttendanceRecord 考勤记录（每员工每日一条）
type AttendanceRecord struct {
	BaseModel
	OrgID      uuid.UUID `json:"org_id" db:"org_id"`
	EmployeeID uuid.UUID `json:"employee_id" db:"employee_id"`
	Date       string    `json:"date" db:"date"` // YYYY-MM-DD

	CheckInTime      *time.Time `json:"check_in_time,omitempty" db:"check_in_time"`
	CheckOutTime     *time.Time `json:"check_out_time,omitempty" db:"check_out_time"`
	CheckInLocation  *Location  `json:"check_in_location,omitempty" db:"check_in_location"`
	CheckOutLocation *Location  `json:"check_out_location,omitempty" db:"check_out_location"`

	Status      string `json:"status" db:"status"`
	WorkMinutes int    `json:"work_minutes" db:"work_minutes"`
	Source      string `json:"source" db:"source"`

	// 自动补卡标记（服务端补全签退时间，待管理员复核）
	AutoCorrected  bool   `json:"auto_corrected" db:"auto_corrected"`
	CorrectionNote string `json:"correction_note,omitempty" db:"correction_note"`

	Note string `json:"note,omitempty" db:"note"`
}

// IsOpen 检查记录是否未签退
func (r *AttendanceRecord) IsOpen() bool {
	return r.CheckInTime != nil && r.CheckOutTime == nil
}

// WorkedHours 返回实际工作时长（小时）
func (r *AttendanceRecord) WorkedHours() float64 {
	if r.CheckInTime == nil || r.CheckOutTime == nil {
		return 0
	}
	return r.CheckOutTime.Sub(*r.CheckInTime).Hours()
}

// IsOnDate 检查记录是否在指定日期
func (r *AttendanceRecord) IsOnDate(date string) bool {
	return r.Date == date
}

// 加班审核状态
const (
	OTPending  = "pending"  // 待审核
	OTApproved = "approved" // 已批准（按申报时长）
	OTAdjusted = "adjusted" // 已调整（按审核时长）
	OTRejected = "rejected" // 已驳回
)

// OTSession 加班时段
type OTSession struct {
	BaseModel
	OrgID      uuid.UUID `json:"org_id" db:"org_id"`
	EmployeeID uuid.UUID `json:"employee_id" db:"employee_id"`
	Date       string    `json:"date" db:"date"` // YYYY-MM-DD
	StartTime  time.Time `json:"start_time" db:"start_time"`
	EndTime    time.Time `json:"end_time" db:"end_time"`
	Reason     string    `json:"reason,omitempty" db:"reason"`

	ClaimedHours  float64  `json:"claimed_hours" db:"claimed_hours"`
	ApprovedHours *float64 `json:"approved_hours,omitempty" db:"approved_hours"`

	Status     string     `json:"status" db:"status"` // pending/approved/adjusted/rejected
	ReviewedBy *uuid.UUID `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewNote string     `json:"review_note,omitempty" db:"review_note"`
}

// IsReviewed 检查加班时段是否已审核
func (s *OTSession) IsReviewed() bool {
	return s.Status != OTPending
}

// EffectiveHours 返回生效的加班时长
// 未审核时返回申报时长，已审核时以审核结果为准
func (s *OTSession) EffectiveHours() float64 {
	if s.ApprovedHours != nil {
		return *s.ApprovedHours
	}
	return s.ClaimedHours
}

// Range 返回加班时段的时间范围
func (s *OTSession) Range() TimeRange {
	return TimeRange{Start: s.StartTime, End: s.EndTime}
}

// 补卡候选来源
const (
	CandidateVisitCheckout = "visit_checkout" // 当日最后一次外访签退
	CandidateScheduleEnd   = "schedule_end"   // 员工定班下班时刻
	CandidateStandardHours = "standard_hours" // 签到时间加标准工时
	CandidateCutoff        = "cutoff"         // 截止时刻兜底
)

// 补卡复核状态
const (
	CorrectionPending   = "pending"
	CorrectionConfirmed = "confirmed"
	CorrectionReverted  = "reverted"
)

// CorrectionItem 自动补卡记录（待管理员复核）
type CorrectionItem struct {
	BaseModel
	OrgID        uuid.UUID `json:"org_id" db:"org_id"`
	EmployeeID   uuid.UUID `json:"employee_id" db:"employee_id"`
	AttendanceID uuid.UUID `json:"attendance_id" db:"attendance_id"`
	Date         string    `json:"date" db:"date"`

	FilledCheckOut  time.Time `json:"filled_check_out" db:"filled_check_out"`
	CandidateSource string    `json:"candidate_source" db:"candidate_source"`
	Confidence      float64   `json:"confidence" db:"confidence"` // 0-1

	Status     string     `json:"status" db:"status"` // pending/confirmed/reverted
	ReviewedBy *uuid.UUID `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewNote string     `json:"review_note,omitempty" db:"review_note"`
}

// IsReviewed 检查补卡记录是否已复核
func (c *CorrectionItem) IsReviewed() bool {
	return c.Status != CorrectionPending
}
