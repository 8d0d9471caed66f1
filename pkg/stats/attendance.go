// Package stats 提供考勤与加班负荷统计分析
package stats

import (
	"fmt"
	"sort"

	"github.com/kaoqin/kaoqin/pkg/model"
	"github.com/kaoqin/kaoqin/pkg/othours"
)

// 问题类型
const (
	ProblemFrequentLate = "frequent_late" // 频繁迟到
	ProblemAbsence      = "absence"       // 缺勤
	ProblemIncomplete   = "incomplete"    // 签退缺失
)

// AttendanceMetrics 考勤统计指标
type AttendanceMetrics struct {
	TotalRecords    int `json:"total_records"`     // 总记录数
	OnTimeCount     int `json:"on_time_count"`     // 正常出勤数
	LateCount       int `json:"late_count"`        // 迟到数
	EarlyLeaveCount int `json:"early_leave_count"` // 早退数
	HalfDayCount    int `json:"half_day_count"`    // 半天数
	AbsentCount     int `json:"absent_count"`      // 缺勤数
	IncompleteCount int `json:"incomplete_count"`  // 未签退数
	CorrectedCount  int `json:"corrected_count"`   // 自动补卡数

	AttendanceRate float64 `json:"attendance_rate"` // 出勤率 (%)
	OnTimeRate     float64 `json:"on_time_rate"`    // 准点率 (%)

	// 按日期统计
	DailyStats map[string]DayStat `json:"daily_stats"`

	// 员工级别统计
	EmployeeStats []EmployeeAttendance `json:"employee_stats"`

	// 问题识别
	Problems []Problem `json:"problems"`
}

// DayStat 单日考勤情况
type DayStat struct {
	Date           string  `json:"date"`
	Total          int     `json:"total"`
	OnTime         int     `json:"on_time"`
	Late           int     `json:"late"`
	Absent         int     `json:"absent"`
	AttendanceRate float64 `json:"attendance_rate"`
}

// EmployeeAttendance 员工考勤汇总
type EmployeeAttendance struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`

	Attended   int `json:"attended"`
	OnTime     int `json:"on_time"`
	Late       int `json:"late"`
	EarlyLeave int `json:"early_leave"`
	HalfDay    int `json:"half_day"`
	Absent     int `json:"absent"`
	Incomplete int `json:"incomplete"`
	Corrected  int `json:"corrected"`

	WorkMinutes int    `json:"work_minutes"`
	WorkHours   string `json:"work_hours"` // "120h 54m"

	AttendanceRate float64 `json:"attendance_rate"`
	OnTimeRate     float64 `json:"on_time_rate"`
}

// Problem 考勤问题
type Problem struct {
	Type         string `json:"type"`
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	Count        int    `json:"count"`
	Detail       string `json:"detail"`
}

// AttendanceAnalyzer 考勤统计分析器
type AttendanceAnalyzer struct {
	lateThreshold       int // 当月迟到达到该次数列入问题清单
	absenceThreshold    int
	incompleteThreshold int
}

// NewAttendanceAnalyzer 创建考勤统计分析器
func NewAttendanceAnalyzer() *AttendanceAnalyzer {
	return &AttendanceAnalyzer{
		lateThreshold:       3,
		absenceThreshold:    1,
		incompleteThreshold: 2,
	}
}

// Analyze 汇总考勤记录
func (a *AttendanceAnalyzer) Analyze(records []*model.AttendanceRecord, employees []*model.Employee) *AttendanceMetrics {
	if len(records) == 0 {
		return &AttendanceMetrics{
			DailyStats:     make(map[string]DayStat),
			AttendanceRate: 100,
			OnTimeRate:     100,
		}
	}

	// 构建员工ID映射
	employeeMap := make(map[string]*model.Employee)
	for _, e := range employees {
		if e != nil {
			employeeMap[e.ID.String()] = e
		}
	}

	metrics := &AttendanceMetrics{}
	daily := make(map[string]*DayStat)
	perEmployee := make(map[string]*EmployeeAttendance)

	for _, r := range records {
		if r == nil {
			continue
		}
		metrics.TotalRecords++

		empID := r.EmployeeID.String()
		stat, exists := perEmployee[empID]
		if !exists {
			name := empID
			if e, ok := employeeMap[empID]; ok {
				name = e.Name
			}
			stat = &EmployeeAttendance{
				EmployeeID:   empID,
				EmployeeName: name,
			}
			perEmployee[empID] = stat
		}

		day, exists := daily[r.Date]
		if !exists {
			day = &DayStat{Date: r.Date}
			daily[r.Date] = day
		}
		day.Total++

		stat.WorkMinutes += r.WorkMinutes
		if r.AutoCorrected {
			metrics.CorrectedCount++
			stat.Corrected++
		}

		// 迟到且早退的记录同时计入两侧
		switch r.Status {
		case model.AttendancePresent:
			metrics.OnTimeCount++
			stat.OnTime++
			day.OnTime++
		case model.AttendanceLate:
			metrics.LateCount++
			stat.Late++
			day.Late++
		case model.AttendanceEarlyLeave:
			metrics.EarlyLeaveCount++
			stat.EarlyLeave++
		case model.AttendanceLateEarlyLeave:
			metrics.LateCount++
			metrics.EarlyLeaveCount++
			stat.Late++
			stat.EarlyLeave++
			day.Late++
		case model.AttendanceHalfDay:
			metrics.HalfDayCount++
			stat.HalfDay++
		case model.AttendanceAbsent:
			metrics.AbsentCount++
			stat.Absent++
			day.Absent++
		case model.AttendanceIncomplete:
			metrics.IncompleteCount++
			stat.Incomplete++
		}

		if r.Status != model.AttendanceAbsent {
			stat.Attended++
		}
	}

	metrics.AttendanceRate = percent(metrics.TotalRecords-metrics.AbsentCount, metrics.TotalRecords)
	metrics.OnTimeRate = percent(metrics.OnTimeCount, metrics.TotalRecords)

	// 转换日期统计
	metrics.DailyStats = make(map[string]DayStat, len(daily))
	for date, day := range daily {
		day.AttendanceRate = percent(day.Total-day.Absent, day.Total)
		metrics.DailyStats[date] = *day
	}

	// 员工统计按工时排序
	metrics.EmployeeStats = make([]EmployeeAttendance, 0, len(perEmployee))
	for _, stat := range perEmployee {
		total := stat.Attended + stat.Absent
		stat.WorkHours = othours.FormatMinutes(stat.WorkMinutes)
		stat.AttendanceRate = percent(stat.Attended, total)
		stat.OnTimeRate = percent(stat.OnTime, total)
		metrics.EmployeeStats = append(metrics.EmployeeStats, *stat)
	}
	sort.Slice(metrics.EmployeeStats, func(i, j int) bool {
		return metrics.EmployeeStats[i].WorkMinutes > metrics.EmployeeStats[j].WorkMinutes
	})

	metrics.Problems = a.identifyProblems(metrics.EmployeeStats)
	return metrics
}

// identifyProblems 从员工汇总中挑出问题清单
func (a *AttendanceAnalyzer) identifyProblems(stats []EmployeeAttendance) []Problem {
	var problems []Problem
	for _, stat := range stats {
		if stat.Late >= a.lateThreshold {
			problems = append(problems, Problem{
				Type:         ProblemFrequentLate,
				EmployeeID:   stat.EmployeeID,
				EmployeeName: stat.EmployeeName,
				Count:        stat.Late,
				Detail:       fmt.Sprintf("迟到%d次", stat.Late),
			})
		}
		if stat.Absent >= a.absenceThreshold {
			problems = append(problems, Problem{
				Type:         ProblemAbsence,
				EmployeeID:   stat.EmployeeID,
				EmployeeName: stat.EmployeeName,
				Count:        stat.Absent,
				Detail:       fmt.Sprintf("缺勤%d天", stat.Absent),
			})
		}
		if stat.Incomplete >= a.incompleteThreshold {
			problems = append(problems, Problem{
				Type:         ProblemIncomplete,
				EmployeeID:   stat.EmployeeID,
				EmployeeName: stat.EmployeeName,
				Count:        stat.Incomplete,
				Detail:       fmt.Sprintf("%d天未签退", stat.Incomplete),
			})
		}
	}

	sort.Slice(problems, func(i, j int) bool {
		return problems[i].Count > problems[j].Count
	})
	return problems
}

// percent 比例换算为百分数
func percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
