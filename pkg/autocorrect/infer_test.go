package autocorrect

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kaoqin/kaoqin/pkg/model"
)

func TestCollectCandidates(t *testing.T) {
	emp := testEmployee()
	rec := openRecord(emp.ID, "2026-03-02", "09:00")
	cutoff := mustTime("2026-03-02 22:00")

	visits := []*model.SiteVisit{
		closedVisit(emp.ID, "2026-03-02", "14:00", "15:30"),
		closedVisit(emp.ID, "2026-03-02", "16:00", "17:30"),
	}

	candidates := CollectCandidates(emp, rec, visits, cutoff)
	if len(candidates) != 4 {
		t.Fatalf("Expected 4 candidates, got %d", len(candidates))
	}

	// 外访候选取最后一次签退
	if candidates[0].Source != model.CandidateVisitCheckout {
		t.Errorf("Expected visit_checkout first, got %s", candidates[0].Source)
	}
	if !candidates[0].Time.Equal(mustTime("2026-03-02 17:30")) {
		t.Errorf("Expected last visit checkout 17:30, got %v", candidates[0].Time)
	}

	// 无外访时只有三个候选
	candidates = CollectCandidates(emp, rec, nil, cutoff)
	if len(candidates) != 3 {
		t.Errorf("Expected 3 candidates without visits, got %d", len(candidates))
	}
}

func TestInferCheckout(t *testing.T) {
	tests := []struct {
		name       string
		checkIn    string
		visitOut   string
		wantSource string
		wantTime   string
	}{
		{
			name:       "外访签退最早胜出",
			checkIn:    "10:00",
			visitOut:   "17:30",
			wantSource: model.CandidateVisitCheckout,
			wantTime:   "17:30",
		},
		{
			name:       "同刻取更高置信来源",
			checkIn:    "09:00", // 标准工时候选与定班下班同为18:00
			wantSource: model.CandidateScheduleEnd,
			wantTime:   "18:00",
		},
		{
			name:       "早到按标准工时",
			checkIn:    "07:00", // 07:00 加9小时早于定班下班
			wantSource: model.CandidateStandardHours,
			wantTime:   "16:00",
		},
		{
			name:       "晚签到仅剩截止兜底",
			checkIn:    "19:00", // 定班与标准工时候选均无效
			wantSource: model.CandidateCutoff,
			wantTime:   "22:00",
		},
		{
			name:       "早于签到的外访被排除",
			checkIn:    "09:00",
			visitOut:   "08:30",
			wantSource: model.CandidateScheduleEnd,
			wantTime:   "18:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emp := testEmployee()
			rec := openRecord(emp.ID, "2026-03-02", tt.checkIn)
			cutoff := mustTime("2026-03-02 22:00")

			var visits []*model.SiteVisit
			if tt.visitOut != "" {
				visits = append(visits, closedVisit(emp.ID, "2026-03-02", "08:00", tt.visitOut))
			}

			cand := InferCheckout(emp, rec, visits, cutoff)
			if cand == nil {
				t.Fatal("Expected a candidate")
			}
			if cand.Source != tt.wantSource {
				t.Errorf("Expected source %s, got %s", tt.wantSource, cand.Source)
			}
			if !cand.Time.Equal(mustTime("2026-03-02 " + tt.wantTime)) {
				t.Errorf("Expected time %s, got %v", tt.wantTime, cand.Time)
			}
		})
	}
}

func TestInferCheckout_NoValidCandidate(t *testing.T) {
	emp := testEmployee()

	// 签到晚于截止时刻，所有候选无效
	rec := openRecord(emp.ID, "2026-03-02", "23:00")
	cutoff := mustTime("2026-03-02 22:00")

	if cand := InferCheckout(emp, rec, nil, cutoff); cand != nil {
		t.Errorf("Expected nil candidate, got %+v", cand)
	}
}

func TestInferCheckout_MissingCheckIn(t *testing.T) {
	emp := testEmployee()
	rec := &model.AttendanceRecord{
		BaseModel:  model.BaseModel{ID: uuid.New()},
		EmployeeID: emp.ID,
		Date:       "2026-03-02",
	}

	if cand := InferCheckout(emp, rec, nil, mustTime("2026-03-02 22:00")); cand != nil {
		t.Error("Expected nil candidate without check-in")
	}
}

func testEmployee() *model.Employee {
	return &model.Employee{
		BaseModel: model.BaseModel{ID: uuid.New()},
		Name:      "测试员工",
		Status:    "active",
		WorkStart: "09:00",
		WorkEnd:   "18:00",
	}
}

func openRecord(empID uuid.UUID, date, checkIn string) *model.AttendanceRecord {
	in := mustTime(date + " " + checkIn)
	return &model.AttendanceRecord{
		BaseModel:   model.BaseModel{ID: uuid.New()},
		EmployeeID:  empID,
		Date:        date,
		CheckInTime: &in,
		Status:      model.AttendanceIncomplete,
	}
}

func closedVisit(empID uuid.UUID, date, checkIn, checkOut string) *model.SiteVisit {
	out := mustTime(date + " " + checkOut)
	return &model.SiteVisit{
		BaseModel:    model.BaseModel{ID: uuid.New()},
		EmployeeID:   empID,
		CustomerID:   uuid.New(),
		Department:   model.DeptTechnical,
		CheckInTime:  mustTime(date + " " + checkIn),
		CheckOutTime: &out,
		Status:       model.VisitCheckedOut,
	}
}

func mustTime(value string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		panic(err)
	}
	return t
}
