// Package policy 定义考勤规则接口和管理器
package policy

import (
	"time"

	"github.com/google/uuid"
	"github.com/kaoqin/kaoqin/pkg/model"
)

// Type 规则类型标识
type Type string

const (
	// 硬规则类型
	TypeLateArrival     Type = "late_arrival"
	TypeEarlyLeave      Type = "early_leave"
	TypeMissingCheckout Type = "missing_checkout"
	TypeMaxOTPerDay     Type = "max_ot_per_day"
	TypeMaxOTPerMonth   Type = "max_ot_per_month"
	TypeMaxDailyVisits  Type = "max_daily_visits"

	// 软规则类型
	TypeMaxWeeklyHours    Type = "max_weekly_hours"
	TypeConsecutiveOTDays Type = "consecutive_ot_days"
	TypeVisitEvidence     Type = "visit_evidence"
)

// Category 规则类别
type Category string

const (
	CategoryHard Category = "hard" // 硬规则（违反即不合规）
	CategorySoft Category = "soft" // 软规则（提示性）
)

// Rule 考勤规则接口
type Rule interface {
	// Name 返回规则名称
	Name() string

	// Type 返回规则类型
	Type() Type

	// Category 返回规则类别
	Category() Category

	// Weight 返回规则权重 (1-100)
	Weight() int

	// Evaluate 评估整个考勤周期
	// 返回：是否合规、惩罚值、发现详情
	Evaluate(ctx *Context) (valid bool, penalty int, details []FindingDetail)

	// EvaluateRecord 评估单条考勤记录
	// 返回：是否合规、惩罚值
	EvaluateRecord(ctx *Context, record *model.AttendanceRecord) (valid bool, penalty int)
}

// FindingDetail 规则发现详情
type FindingDetail struct {
	RuleType   Type      `json:"rule_type"`
	RuleName   string    `json:"rule_name"`
	EmployeeID uuid.UUID `json:"employee_id,omitempty"`
	Date       string    `json:"date,omitempty"`
	Message    string    `json:"message"`
	Severity   string    `json:"severity"` // error/warning
	Penalty    int       `json:"penalty"`
}

// Context 考勤评估上下文
type Context struct {
	// 输入数据
	OrgID      uuid.UUID                 `json:"org_id"`
	StartDate  string                    `json:"start_date"`
	EndDate    string                    `json:"end_date"`
	Employees  []*model.Employee         `json:"employees"`
	Records    []*model.AttendanceRecord `json:"records"`
	OTSessions []*model.OTSession        `json:"ot_sessions"`
	Visits     []*model.SiteVisit        `json:"visits"`

	// 索引缓存
	employeeMap   map[uuid.UUID]*model.Employee
	recordsByEmp  map[uuid.UUID][]*model.AttendanceRecord
	recordsByDate map[string][]*model.AttendanceRecord
	otByEmp       map[uuid.UUID][]*model.OTSession
	visitsByEmp   map[uuid.UUID][]*model.SiteVisit

	// 额外配置
	Config map[string]interface{} `json:"config,omitempty"`
}

// NewContext 创建新的评估上下文
func NewContext(orgID uuid.UUID, startDate, endDate string) *Context {
	return &Context{
		OrgID:         orgID,
		StartDate:     startDate,
		EndDate:       endDate,
		Employees:     make([]*model.Employee, 0),
		Records:       make([]*model.AttendanceRecord, 0),
		OTSessions:    make([]*model.OTSession, 0),
		Visits:        make([]*model.SiteVisit, 0),
		employeeMap:   make(map[uuid.UUID]*model.Employee),
		recordsByEmp:  make(map[uuid.UUID][]*model.AttendanceRecord),
		recordsByDate: make(map[string][]*model.AttendanceRecord),
		otByEmp:       make(map[uuid.UUID][]*model.OTSession),
		visitsByEmp:   make(map[uuid.UUID][]*model.SiteVisit),
		Config:        make(map[string]interface{}),
	}
}

// SetEmployees 设置员工列表
func (c *Context) SetEmployees(employees []*model.Employee) {
	c.Employees = employees
	c.employeeMap = make(map[uuid.UUID]*model.Employee)
	for _, e := range employees {
		c.employeeMap[e.ID] = e
	}
}

// SetRecords 设置考勤记录
func (c *Context) SetRecords(records []*model.AttendanceRecord) {
	c.Records = records
	c.recordsByEmp = make(map[uuid.UUID][]*model.AttendanceRecord)
	c.recordsByDate = make(map[string][]*model.AttendanceRecord)
	for _, r := range records {
		c.recordsByEmp[r.EmployeeID] = append(c.recordsByEmp[r.EmployeeID], r)
		c.recordsByDate[r.Date] = append(c.recordsByDate[r.Date], r)
	}
}

// SetOTSessions 设置加班时段
func (c *Context) SetOTSessions(sessions []*model.OTSession) {
	c.OTSessions = sessions
	c.otByEmp = make(map[uuid.UUID][]*model.OTSession)
	for _, s := range sessions {
		c.otByEmp[s.EmployeeID] = append(c.otByEmp[s.EmployeeID], s)
	}
}

// SetVisits 设置外访记录
func (c *Context) SetVisits(visits []*model.SiteVisit) {
	c.Visits = visits
	c.visitsByEmp = make(map[uuid.UUID][]*model.SiteVisit)
	for _, v := range visits {
		c.visitsByEmp[v.EmployeeID] = append(c.visitsByEmp[v.EmployeeID], v)
	}
}

// SubContext 构造仅包含单个员工数据的子上下文
func (c *Context) SubContext(empID uuid.UUID) *Context {
	sub := NewContext(c.OrgID, c.StartDate, c.EndDate)
	if emp := c.employeeMap[empID]; emp != nil {
		sub.SetEmployees([]*model.Employee{emp})
	}
	sub.SetRecords(c.recordsByEmp[empID])
	sub.SetOTSessions(c.otByEmp[empID])
	sub.SetVisits(c.visitsByEmp[empID])
	sub.Config = c.Config
	return sub
}

// GetEmployee 获取员工
func (c *Context) GetEmployee(id uuid.UUID) *model.Employee {
	return c.employeeMap[id]
}

// GetEmployeeRecords 获取员工的所有考勤记录
func (c *Context) GetEmployeeRecords(empID uuid.UUID) []*model.AttendanceRecord {
	return c.recordsByEmp[empID]
}

// GetDateRecords 获取某日期的所有考勤记录
func (c *Context) GetDateRecords(date string) []*model.AttendanceRecord {
	return c.recordsByDate[date]
}

// GetEmployeeOTSessions 获取员工的所有加班时段
func (c *Context) GetEmployeeOTSessions(empID uuid.UUID) []*model.OTSession {
	return c.otByEmp[empID]
}

// GetEmployeeVisits 获取员工的所有外访
func (c *Context) GetEmployeeVisits(empID uuid.UUID) []*model.SiteVisit {
	return c.visitsByEmp[empID]
}

// GetVisitsOnDate 获取员工某天的外访
func (c *Context) GetVisitsOnDate(empID uuid.UUID, date string) []*model.SiteVisit {
	var result []*model.SiteVisit
	for _, v := range c.visitsByEmp[empID] {
		if v.CheckInTime.Format("2006-01-02") == date {
			result = append(result, v)
		}
	}
	return result
}

// GetOTHoursOnDate 获取员工某天的生效加班时长
// 已驳回的时段不计入
func (c *Context) GetOTHoursOnDate(empID uuid.UUID, date string) float64 {
	var hours float64
	for _, s := range c.otByEmp[empID] {
		if s.Date == date && s.Status != model.OTRejected {
			hours += s.EffectiveHours()
		}
	}
	return hours
}

// GetOTHoursInRange 获取员工在日期范围内的生效加班时长
func (c *Context) GetOTHoursInRange(empID uuid.UUID, startDate, endDate string) float64 {
	var hours float64
	for _, s := range c.otByEmp[empID] {
		if s.Date >= startDate && s.Date <= endDate && s.Status != model.OTRejected {
			hours += s.EffectiveHours()
		}
	}
	return hours
}

// GetWorkedHoursInRange 获取员工在日期范围内的实际工作时长
func (c *Context) GetWorkedHoursInRange(empID uuid.UUID, startDate, endDate string) float64 {
	var minutes int
	for _, r := range c.recordsByEmp[empID] {
		if r.Date >= startDate && r.Date <= endDate {
			minutes += r.WorkMinutes
		}
	}
	return float64(minutes) / 60
}

// GetOTDates 获取员工有生效加班的日期集合
func (c *Context) GetOTDates(empID uuid.UUID) map[string]bool {
	dates := make(map[string]bool)
	for _, s := range c.otByEmp[empID] {
		if s.Status != model.OTRejected {
			dates[s.Date] = true
		}
	}
	return dates
}

// PreviousDate 获取前一天日期
func PreviousDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format("2006-01-02")
}

// NextDate 获取后一天日期
func NextDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, 1).Format("2006-01-02")
}

// Result 规则评估结果
type Result struct {
	IsValid      bool            `json:"is_valid"`
	TotalPenalty int             `json:"total_penalty"`
	HardFindings []FindingDetail `json:"hard_findings"`
	SoftFindings []FindingDetail `json:"soft_findings"`
	Score        float64         `json:"score"` // 0-100
}

// CalculateScore 计算合规度得分
func (r *Result) CalculateScore(maxPenalty int) {
	if maxPenalty == 0 {
		r.Score = 100.0
		return
	}
	r.Score = 100.0 * float64(maxPenalty-r.TotalPenalty) / float64(maxPenalty)
	if r.Score < 0 {
		r.Score = 0
	}
}
