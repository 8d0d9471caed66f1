package stats

import (
	"testing"

	"github.com/google/uuid"
	"github.com/kaoqin/kaoqin/pkg/model"
)

func statEmployee(name string) *model.Employee {
	return &model.Employee{
		BaseModel: model.BaseModel{ID: uuid.New()},
		Name:      name,
		Status:    "active",
	}
}

func statRecord(empID uuid.UUID, date, status string, minutes int) *model.AttendanceRecord {
	return &model.AttendanceRecord{
		BaseModel:   model.BaseModel{ID: uuid.New()},
		EmployeeID:  empID,
		Date:        date,
		Status:      status,
		WorkMinutes: minutes,
	}
}

func TestAttendanceAnalyzer_Analyze(t *testing.T) {
	analyzer := NewAttendanceAnalyzer()

	zhang := statEmployee("张三")
	li := statEmployee("李四")
	employees := []*model.Employee{zhang, li}

	corrected := statRecord(zhang.ID, "2026-03-03", model.AttendanceLate, 510)
	corrected.AutoCorrected = true

	records := []*model.AttendanceRecord{
		statRecord(zhang.ID, "2026-03-02", model.AttendancePresent, 540),
		corrected,
		statRecord(zhang.ID, "2026-03-04", model.AttendanceLate, 500),
		statRecord(zhang.ID, "2026-03-05", model.AttendanceLate, 520),
		statRecord(li.ID, "2026-03-02", model.AttendancePresent, 540),
		statRecord(li.ID, "2026-03-03", model.AttendanceAbsent, 0),
		statRecord(li.ID, "2026-03-04", model.AttendanceIncomplete, 0),
		statRecord(li.ID, "2026-03-05", model.AttendanceLateEarlyLeave, 480),
	}

	metrics := analyzer.Analyze(records, employees)

	if metrics.TotalRecords != 8 {
		t.Fatalf("Expected 8 records, got %d", metrics.TotalRecords)
	}
	if metrics.OnTimeCount != 2 {
		t.Errorf("Expected 2 on-time, got %d", metrics.OnTimeCount)
	}
	// 迟到且早退同时计入两侧
	if metrics.LateCount != 4 {
		t.Errorf("Expected 4 late, got %d", metrics.LateCount)
	}
	if metrics.EarlyLeaveCount != 1 {
		t.Errorf("Expected 1 early leave, got %d", metrics.EarlyLeaveCount)
	}
	if metrics.AbsentCount != 1 {
		t.Errorf("Expected 1 absent, got %d", metrics.AbsentCount)
	}
	if metrics.IncompleteCount != 1 {
		t.Errorf("Expected 1 incomplete, got %d", metrics.IncompleteCount)
	}
	if metrics.CorrectedCount != 1 {
		t.Errorf("Expected 1 corrected, got %d", metrics.CorrectedCount)
	}

	if metrics.AttendanceRate != 87.5 {
		t.Errorf("Expected attendance rate 87.5, got %f", metrics.AttendanceRate)
	}
	if metrics.OnTimeRate != 25 {
		t.Errorf("Expected on-time rate 25, got %f", metrics.OnTimeRate)
	}

	// 员工统计按工时排序：张三2070分钟在前
	if len(metrics.EmployeeStats) != 2 {
		t.Fatalf("Expected 2 employee stats, got %d", len(metrics.EmployeeStats))
	}
	top := metrics.EmployeeStats[0]
	if top.EmployeeName != "张三" {
		t.Errorf("Expected 张三 first, got %s", top.EmployeeName)
	}
	if top.WorkMinutes != 2070 {
		t.Errorf("Expected 2070 minutes, got %d", top.WorkMinutes)
	}
	if top.WorkHours != "34h 30m" {
		t.Errorf("Expected 34h 30m, got %s", top.WorkHours)
	}
	if top.AttendanceRate != 100 {
		t.Errorf("Expected 张三 attendance 100, got %f", top.AttendanceRate)
	}
	if top.Corrected != 1 {
		t.Errorf("Expected 张三 corrected 1, got %d", top.Corrected)
	}

	second := metrics.EmployeeStats[1]
	if second.AttendanceRate != 75 {
		t.Errorf("Expected 李四 attendance 75, got %f", second.AttendanceRate)
	}

	// 日统计
	day, ok := metrics.DailyStats["2026-03-02"]
	if !ok {
		t.Fatal("Expected daily stat for 2026-03-02")
	}
	if day.Total != 2 || day.OnTime != 2 || day.AttendanceRate != 100 {
		t.Errorf("Unexpected day stat: %+v", day)
	}
	day = metrics.DailyStats["2026-03-03"]
	if day.AttendanceRate != 50 {
		t.Errorf("Expected 2026-03-03 rate 50, got %f", day.AttendanceRate)
	}
}

func TestAttendanceAnalyzer_Problems(t *testing.T) {
	analyzer := NewAttendanceAnalyzer()

	zhang := statEmployee("张三")
	li := statEmployee("李四")

	records := []*model.AttendanceRecord{
		statRecord(zhang.ID, "2026-03-02", model.AttendanceLate, 510),
		statRecord(zhang.ID, "2026-03-03", model.AttendanceLate, 500),
		statRecord(zhang.ID, "2026-03-04", model.AttendanceLate, 520),
		statRecord(li.ID, "2026-03-02", model.AttendanceAbsent, 0),
		statRecord(li.ID, "2026-03-03", model.AttendancePresent, 540),
	}

	metrics := analyzer.Analyze(records, []*model.Employee{zhang, li})

	if len(metrics.Problems) != 2 {
		t.Fatalf("Expected 2 problems, got %d", len(metrics.Problems))
	}

	// 按次数排序：迟到3次在前
	first := metrics.Problems[0]
	if first.Type != ProblemFrequentLate {
		t.Errorf("Expected frequent_late first, got %s", first.Type)
	}
	if first.EmployeeName != "张三" || first.Count != 3 {
		t.Errorf("Unexpected problem: %+v", first)
	}
	if first.Detail != "迟到3次" {
		t.Errorf("Unexpected detail: %s", first.Detail)
	}

	second := metrics.Problems[1]
	if second.Type != ProblemAbsence || second.Count != 1 {
		t.Errorf("Unexpected problem: %+v", second)
	}

	// 迟到两次不触发问题
	metrics = analyzer.Analyze(records[:2], []*model.Employee{zhang})
	if len(metrics.Problems) != 0 {
		t.Errorf("Expected no problems for 2 lates, got %d", len(metrics.Problems))
	}
}

func TestAttendanceAnalyzer_UnknownEmployee(t *testing.T) {
	analyzer := NewAttendanceAnalyzer()

	ghost := uuid.New()
	records := []*model.AttendanceRecord{
		statRecord(ghost, "2026-03-02", model.AttendancePresent, 540),
	}

	metrics := analyzer.Analyze(records, nil)

	if len(metrics.EmployeeStats) != 1 {
		t.Fatalf("Expected 1 employee stat, got %d", len(metrics.EmployeeStats))
	}
	// 目录缺失时回落到ID
	if metrics.EmployeeStats[0].EmployeeName != ghost.String() {
		t.Errorf("Expected ID fallback, got %s", metrics.EmployeeStats[0].EmployeeName)
	}
}

func TestAttendanceAnalyzer_EmptyInput(t *testing.T) {
	analyzer := NewAttendanceAnalyzer()

	metrics := analyzer.Analyze(nil, nil)

	if metrics == nil {
		t.Fatal("Should return empty metrics for nil input")
	}
	if metrics.AttendanceRate != 100 || metrics.OnTimeRate != 100 {
		t.Errorf("Empty input should report full rates, got %f/%f", metrics.AttendanceRate, metrics.OnTimeRate)
	}
	if metrics.DailyStats == nil {
		t.Error("DailyStats should be initialized")
	}
}
