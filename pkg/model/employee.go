// Package model 定义考勤外勤服务的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// Employee 员工
type Employee struct {
	BaseModel
	OrgID     uuid.UUID `json:"org_id" db:"org_id"`
	Name      string    `json:"name" db:"name"`
	Code      string    `json:"code" db:"code"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	Email     string    `json:"email,omitempty" db:"email"`
	Status    string    `json:"status" db:"status"` // active/inactive/on_leave
	HireDate  string    `json:"hire_date" db:"hire_date"`
	LeaveDate string    `json:"leave_date,omitempty" db:"leave_date"`

	// 组织归属
	Department Department `json:"department" db:"department"`
	Position   string     `json:"position" db:"position"`
	Role       string     `json:"role" db:"role"` // admin/hr/manager/staff
	Skills     []string   `json:"skills,omitempty" db:"skills"`

	// 登录凭证（不出现在JSON响应中）
	PasswordHash string `json:"-" db:"password_hash"`

	// 作息安排
	WorkStart string         `json:"work_start" db:"work_start"` // HH:MM，默认 09:00
	WorkEnd   string         `json:"work_end" db:"work_end"`     // HH:MM，默认 18:00
	WorkDays  []time.Weekday `json:"work_days,omitempty" db:"work_days"`
}

// IsActive 检查员工是否在职
func (e *Employee) IsActive() bool {
	return e.Status == "active"
}

// HasSkill 检查员工是否具备某技能
func (e *Employee) HasSkill(skill string) bool {
	for _, s := range e.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

// IsFieldWorker 检查员工是否为外勤岗（可发起外访）
func (e *Employee) IsFieldWorker() bool {
	return e.Department == DeptTechnical || e.Department == DeptMarketing || e.Department == DeptAdmin
}

// IsReviewer 检查员工是否具备审核权限
func (e *Employee) IsReviewer() bool {
	return e.Role == "admin" || e.Role == "hr"
}

// WorksOn 检查某个星期几是否为工作日
// 未配置 WorkDays 时默认周一至周五
func (e *Employee) WorksOn(day time.Weekday) bool {
	if len(e.WorkDays) == 0 {
		return day >= time.Monday && day <= time.Friday
	}
	for _, d := range e.WorkDays {
		if d == day {
			return true
		}
	}
	return false
}

// ScheduledMinutes 返回每日应出勤分钟数
func (e *Employee) ScheduledMinutes() int {
	start, err1 := time.Parse("15:04", e.WorkStart)
	end, err2 := time.Parse("15:04", e.WorkEnd)
	if err1 != nil || err2 != nil {
		return 8 * 60
	}
	minutes := int(end.Sub(start).Minutes())
	if minutes <= 0 {
		minutes += 24 * 60
	}
	return minutes
}

// WorkStartOn 返回某日期的上班时刻
func (e *Employee) WorkStartOn(date time.Time) time.Time {
	return timeOnDate(date, e.WorkStart, 9, 0)
}

// WorkEndOn 返回某日期的下班时刻
func (e *Employee) WorkEndOn(date time.Time) time.Time {
	return timeOnDate(date, e.WorkEnd, 18, 0)
}

// timeOnDate 在指定日期上套用 HH:MM 时刻
func timeOnDate(date time.Time, hhmm string, defHour, defMin int) time.Time {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Date(date.Year(), date.Month(), date.Day(), defHour, defMin, 0, 0, date.Location())
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location())
}
