package handler

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kaoqin/kaoqin/pkg/model"
)

func TestSummarizeAttendance(t *testing.T) {
	zhangsan := &model.Employee{
		BaseModel:  model.BaseModel{ID: uuid.New()},
		Name:       "张三",
		Department: model.DeptTechnical,
	}
	lisi := &model.Employee{
		BaseModel:  model.BaseModel{ID: uuid.New()},
		Name:       "李四",
		Department: model.DeptMarketing,
	}
	employees := []*model.Employee{lisi, zhangsan}

	rec := func(emp *model.Employee, date, status string, minutes int) *model.AttendanceRecord {
		checkIn := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
		return &model.AttendanceRecord{
			EmployeeID:  emp.ID,
			Date:        date,
			CheckInTime: &checkIn,
			Status:      status,
			WorkMinutes: minutes,
		}
	}

	// 2025-03-10 周一 至 2025-03-16 周日，默认排班周一到周五
	records := []*model.AttendanceRecord{
		rec(zhangsan, "2025-03-10", model.AttendancePresent, 540),
		rec(zhangsan, "2025-03-11", model.AttendanceLate, 500),
		rec(zhangsan, "2025-03-12", model.AttendanceEarlyLeave, 480),
		rec(zhangsan, "2025-03-13", model.AttendanceLateEarlyLeave, 450),
		// 03-14 无记录，计缺勤
	}

	now := time.Date(2025, 3, 17, 10, 0, 0, 0, time.UTC)
	summaries := summarizeAttendance(employees, records, "2025-03-10", "2025-03-16", now)

	if len(summaries) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(summaries))
	}

	// 按姓名排序，张三在前
	s := summaries[0]
	if s.EmployeeName != "张三" {
		t.Fatalf("Expected 张三 first, got %s", s.EmployeeName)
	}
	if s.ScheduledDays != 5 {
		t.Errorf("Expected 5 scheduled days, got %d", s.ScheduledDays)
	}
	if s.OnTimeDays != 1 {
		t.Errorf("Expected 1 on-time day, got %d", s.OnTimeDays)
	}
	if s.LateDays != 2 {
		t.Errorf("Expected 2 late days, got %d", s.LateDays)
	}
	if s.EarlyLeaveDays != 2 {
		t.Errorf("Expected 2 early-leave days, got %d", s.EarlyLeaveDays)
	}
	if s.AbsentDays != 1 {
		t.Errorf("Expected 1 absent day, got %d", s.AbsentDays)
	}
	if s.WorkMinutes != 1970 {
		t.Errorf("Expected 1970 work minutes, got %d", s.WorkMinutes)
	}
	if s.OnTimeRate != 0.2 {
		t.Errorf("Expected on-time rate 0.2, got %v", s.OnTimeRate)
	}
	if s.AttendanceRate != 0.8 {
		t.Errorf("Expected attendance rate 0.8, got %v", s.AttendanceRate)
	}

	// 李四整周无记录
	s = summaries[1]
	if s.EmployeeName != "李四" {
		t.Fatalf("Expected 李四 second, got %s", s.EmployeeName)
	}
	if s.AbsentDays != 5 {
		t.Errorf("Expected 5 absent days, got %d", s.AbsentDays)
	}
	if s.AttendanceRate != 0 {
		t.Errorf("Expected attendance rate 0, got %v", s.AttendanceRate)
	}
}

func TestSummarizeAttendanceStopsAtToday(t *testing.T) {
	emp := &model.Employee{
		BaseModel:  model.BaseModel{ID: uuid.New()},
		Name:       "王五",
		Department: model.DeptAdmin,
	}
	checkIn := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	records := []*model.AttendanceRecord{
		{EmployeeID: emp.ID, Date: "2025-03-10", CheckInTime: &checkIn, Status: model.AttendancePresent, WorkMinutes: 540},
	}

	// 今天是周三，周四周五尚未发生，不计缺勤
	now := time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)
	summaries := summarizeAttendance([]*model.Employee{emp}, records, "2025-03-10", "2025-03-16", now)

	if len(summaries) != 1 {
		t.Fatalf("Expected 1 summary, got %d", len(summaries))
	}
	s := summaries[0]
	if s.ScheduledDays != 3 {
		t.Errorf("Expected 3 scheduled days up to today, got %d", s.ScheduledDays)
	}
	if s.AbsentDays != 2 {
		t.Errorf("Expected 2 absent days, got %d", s.AbsentDays)
	}
}

func TestSummarizeAttendanceCustomWorkDays(t *testing.T) {
	// 周末班员工，只排周六周日
	emp := &model.Employee{
		BaseModel:  model.BaseModel{ID: uuid.New()},
		Name:       "赵六",
		Department: model.DeptOffice,
		WorkDays:   []time.Weekday{time.Saturday, time.Sunday},
	}

	now := time.Date(2025, 3, 17, 10, 0, 0, 0, time.UTC)
	summaries := summarizeAttendance([]*model.Employee{emp}, nil, "2025-03-10", "2025-03-16", now)

	if len(summaries) != 1 {
		t.Fatalf("Expected 1 summary, got %d", len(summaries))
	}
	if summaries[0].ScheduledDays != 2 {
		t.Errorf("Expected 2 scheduled weekend days, got %d", summaries[0].ScheduledDays)
	}
	if summaries[0].AbsentDays != 2 {
		t.Errorf("Expected 2 absent days, got %d", summaries[0].AbsentDays)
	}
}

func TestSummarizeAttendanceMissingCheckIn(t *testing.T) {
	emp := &model.Employee{
		BaseModel:  model.BaseModel{ID: uuid.New()},
		Name:       "孙七",
		Department: model.DeptHR,
	}
	// 有记录但无签到时间，视同缺勤
	records := []*model.AttendanceRecord{
		{EmployeeID: emp.ID, Date: "2025-03-10", Status: model.AttendanceAbsent},
	}

	now := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	summaries := summarizeAttendance([]*model.Employee{emp}, records, "2025-03-10", "2025-03-10", now)

	if summaries[0].AbsentDays != 1 {
		t.Errorf("Expected 1 absent day, got %d", summaries[0].AbsentDays)
	}
	if summaries[0].OnTimeDays != 0 {
		t.Errorf("Expected 0 on-time days, got %d", summaries[0].OnTimeDays)
	}
}
