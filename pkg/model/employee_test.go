package model

import (
	"testing"
	"time"
)

func TestEmployee_IsActive(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		expected bool
	}{
		{"active员工", "active", true},
		{"inactive员工", "inactive", false},
		{"on_leave员工", "on_leave", false},
		{"空状态", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Employee{Status: tt.status}
			if result := e.IsActive(); result != tt.expected {
				t.Errorf("IsActive() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestEmployee_HasSkill(t *testing.T) {
	e := &Employee{
		Skills: []string{"network", "cabling", "presales"},
	}

	tests := []struct {
		skill    string
		expected bool
	}{
		{"network", true},
		{"cabling", true},
		{"presales", true},
		{"management", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.skill, func(t *testing.T) {
			if result := e.HasSkill(tt.skill); result != tt.expected {
				t.Errorf("HasSkill(%s) = %v, expected %v", tt.skill, result, tt.expected)
			}
		})
	}
}

func TestEmployee_IsFieldWorker(t *testing.T) {
	tests := []struct {
		name     string
		dept     Department
		expected bool
	}{
		{"技术部", DeptTechnical, true},
		{"市场部", DeptMarketing, true},
		{"行政部", DeptAdmin, true},
		{"人事部", DeptHR, false},
		{"内勤", DeptOffice, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Employee{Department: tt.dept}
			if result := e.IsFieldWorker(); result != tt.expected {
				t.Errorf("IsFieldWorker() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestEmployee_WorksOn(t *testing.T) {
	// 未配置时默认周一至周五
	e1 := &Employee{}
	if !e1.WorksOn(time.Monday) {
		t.Error("默认配置周一应为工作日")
	}
	if !e1.WorksOn(time.Friday) {
		t.Error("默认配置周五应为工作日")
	}
	if e1.WorksOn(time.Saturday) {
		t.Error("默认配置周六不应为工作日")
	}
	if e1.WorksOn(time.Sunday) {
		t.Error("默认配置周日不应为工作日")
	}

	// 自定义工作日（含周六）
	e2 := &Employee{WorkDays: []time.Weekday{time.Monday, time.Wednesday, time.Saturday}}
	if !e2.WorksOn(time.Saturday) {
		t.Error("自定义配置周六应为工作日")
	}
	if e2.WorksOn(time.Tuesday) {
		t.Error("自定义配置周二不应为工作日")
	}
}

func TestEmployee_ScheduledMinutes(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		end      string
		expected int
	}{
		{"标准9到18", "09:00", "18:00", 540},
		{"弹性10到19", "10:00", "19:00", 540},
		{"跨夜班22到06", "22:00", "06:00", 480},
		{"非法配置回退8小时", "", "", 480},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Employee{WorkStart: tt.start, WorkEnd: tt.end}
			if result := e.ScheduledMinutes(); result != tt.expected {
				t.Errorf("ScheduledMinutes() = %d, expected %d", result, tt.expected)
			}
		})
	}
}

func TestEmployee_WorkStartOn(t *testing.T) {
	e := &Employee{WorkStart: "09:30", WorkEnd: "18:30"}
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.Local)

	start := e.WorkStartOn(date)
	if start.Hour() != 9 || start.Minute() != 30 {
		t.Errorf("WorkStartOn() = %v, expected 09:30", start.Format("15:04"))
	}
	if start.Day() != 10 {
		t.Errorf("WorkStartOn() 日期错误: %v", start)
	}

	end := e.WorkEndOn(date)
	if end.Hour() != 18 || end.Minute() != 30 {
		t.Errorf("WorkEndOn() = %v, expected 18:30", end.Format("15:04"))
	}
}
