package followup

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kaoqin/kaoqin/pkg/model"
	"github.com/kaoqin/kaoqin/pkg/visitflow"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestRecommender_Recommend_DueSelection(t *testing.T) {
	emp := fieldEmployee("李娜", model.DeptMarketing)

	overdue := uuid.New()   // 逾期5天
	converted := uuid.New() // 已成交，不再跟进
	notDue := uuid.New()    // 窗口未到
	visiting := uuid.New()  // 在访中

	visits := []*model.SiteVisit{
		closedVisit(overdue, emp.ID, "2026-03-01", model.DeptMarketing, model.OutcomeOnProcess, "2026-03-05"),
		closedVisit(converted, emp.ID, "2026-03-02", model.DeptMarketing, model.OutcomeConverted, ""),
		closedVisit(notDue, emp.ID, "2026-03-08", model.DeptMarketing, model.OutcomeOnProcess, ""),
		openVisit(visiting, emp.ID, "2026-03-10", model.DeptMarketing),
	}

	recs := NewRecommender().Recommend(&Request{
		Groups:    visitflow.GroupByCustomer(visits),
		Employees: []*model.Employee{emp},
		Now:       testNow,
	})

	if len(recs) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d", len(recs))
	}

	rec := recs[0]
	if rec.CustomerID != overdue {
		t.Errorf("Expected overdue customer, got %s", rec.CustomerID)
	}
	if rec.DueDate != "2026-03-05" {
		t.Errorf("Expected due date 2026-03-05, got %s", rec.DueDate)
	}
	if rec.DaysOverdue != 5 {
		t.Errorf("Expected 5 days overdue, got %d", rec.DaysOverdue)
	}
	if rec.Employee == nil || rec.Employee.ID != emp.ID {
		t.Error("Expected the previous visitor to be suggested")
	}
	// 逾期 90*0.35 + 续访60*0.25 + 距离100*0.15 + 负载100*0.10 + 部门100*0.15
	if rec.Score != 86.5 {
		t.Errorf("Expected score 86.5, got %.2f", rec.Score)
	}
	if !containsReason(rec.Reasons, "已逾期5天") {
		t.Errorf("Expected overdue reason, got %v", rec.Reasons)
	}
}

func TestRecommender_Recommend_ContinuityPreferred(t *testing.T) {
	visitor := fieldEmployee("王强", model.DeptMarketing)
	stranger := fieldEmployee("赵敏", model.DeptMarketing)

	custID := uuid.New()
	visits := []*model.SiteVisit{
		closedVisit(custID, visitor.ID, "2026-03-01", model.DeptMarketing, model.OutcomeOnProcess, "2026-03-09"),
	}

	recs := NewRecommender().Recommend(&Request{
		Groups:    visitflow.GroupByCustomer(visits),
		Employees: []*model.Employee{stranger, visitor},
		Now:       testNow,
	})

	if len(recs) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d", len(recs))
	}
	if recs[0].Employee.ID != visitor.ID {
		t.Errorf("Expected previous visitor suggested, got %s", recs[0].Employee.Name)
	}
	if !containsReason(recs[0].Reasons, "上次外访由其完成") {
		t.Errorf("Expected continuity reason, got %v", recs[0].Reasons)
	}
}

func TestRecommender_Recommend_HistoryBands(t *testing.T) {
	emp := fieldEmployee("李娜", model.DeptMarketing)
	custID := uuid.New()

	visits := []*model.SiteVisit{
		closedVisit(custID, emp.ID, "2026-03-01", model.DeptMarketing, model.OutcomeOnProcess, "2026-03-10"),
	}

	recs := NewRecommender().Recommend(&Request{
		Groups:    visitflow.GroupByCustomer(visits),
		Employees: []*model.Employee{emp},
		History: []model.CustomerVisitHistory{
			{
				CustomerID:  custID,
				EmployeeID:  emp.ID,
				VisitCount:  5,
				LastVisitAt: testNow.AddDate(0, 0, -10),
				IsPrimary:   true,
			},
		},
		Now: testNow,
	})

	if len(recs) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d", len(recs))
	}

	rec := recs[0]
	// 到期 40*0.35 + 续访100*0.25 + 距离100*0.15 + 负载100*0.10 + 部门100*0.15
	if rec.Score != 79.0 {
		t.Errorf("Expected score 79.0, got %.2f", rec.Score)
	}
	if !containsReason(rec.Reasons, "为该客户主对接人") {
		t.Errorf("Expected primary reason, got %v", rec.Reasons)
	}
	if !containsReason(rec.Reasons, "曾外访该客户5次") {
		t.Errorf("Expected visit count reason, got %v", rec.Reasons)
	}
}

func TestRecommender_Recommend_NearerEmployeeWins(t *testing.T) {
	near := fieldEmployee("王强", model.DeptTechnical)
	far := fieldEmployee("赵敏", model.DeptTechnical)

	custID := uuid.New()
	other := uuid.New() // 两人都没访过该客户
	visits := []*model.SiteVisit{
		closedVisit(custID, other, "2026-03-01", model.DeptTechnical, model.OutcomeOnProcess, "2026-03-09"),
	}

	recs := NewRecommender().Recommend(&Request{
		Groups: visitflow.GroupByCustomer(visits),
		Customers: []*model.Customer{
			{
				BaseModel: model.BaseModel{ID: custID},
				Name:      "上海机床厂",
				Location:  &model.Location{Latitude: 31.23, Longitude: 121.47},
			},
		},
		Employees: []*model.Employee{far, near},
		Locations: map[uuid.UUID]*model.Location{
			near.ID: {Latitude: 31.24, Longitude: 121.47}, // 约1.1公里
			far.ID:  {Latitude: 31.50, Longitude: 121.47}, // 约30公里
		},
		Now: testNow,
	})

	if len(recs) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d", len(recs))
	}
	if recs[0].Employee.ID != near.ID {
		t.Errorf("Expected nearer employee, got %s", recs[0].Employee.Name)
	}
	if recs[0].Distance <= 0 || recs[0].Distance > 2 {
		t.Errorf("Expected distance around 1.1km, got %.1f", recs[0].Distance)
	}
}

func TestRecommender_Recommend_LoadPenalty(t *testing.T) {
	busy := fieldEmployee("王强", model.DeptTechnical)
	idle := fieldEmployee("赵敏", model.DeptTechnical)

	custID := uuid.New()
	other := uuid.New()
	visits := []*model.SiteVisit{
		closedVisit(custID, other, "2026-03-01", model.DeptTechnical, model.OutcomeOnProcess, "2026-03-09"),
	}

	recs := NewRecommender().Recommend(&Request{
		Groups:    visitflow.GroupByCustomer(visits),
		Employees: []*model.Employee{busy, idle},
		OpenVisits: []*model.SiteVisit{
			openVisit(uuid.New(), busy.ID, "2026-03-10", model.DeptTechnical),
		},
		Now: testNow,
	})

	if len(recs) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d", len(recs))
	}
	if recs[0].Employee.ID != idle.ID {
		t.Errorf("Expected idle employee, got %s", recs[0].Employee.Name)
	}
	if !containsReason(recs[0].Reasons, "当前无在访任务") {
		t.Errorf("Expected load reason, got %v", recs[0].Reasons)
	}
}

func TestRecommender_Recommend_SortAndLimit(t *testing.T) {
	emp := fieldEmployee("李娜", model.DeptMarketing)

	dueToday := uuid.New()
	twoDays := uuid.New()
	eightDays := uuid.New()
	visits := []*model.SiteVisit{
		closedVisit(dueToday, emp.ID, "2026-03-01", model.DeptMarketing, model.OutcomeOnProcess, "2026-03-10"),
		closedVisit(twoDays, emp.ID, "2026-03-01", model.DeptMarketing, model.OutcomeOnProcess, "2026-03-08"),
		closedVisit(eightDays, emp.ID, "2026-03-01", model.DeptMarketing, model.OutcomeOnProcess, "2026-03-02"),
	}

	recs := NewRecommender().Recommend(&Request{
		Groups:     visitflow.GroupByCustomer(visits),
		Employees:  []*model.Employee{emp},
		Now:        testNow,
		MaxResults: 2,
	})

	if len(recs) != 2 {
		t.Fatalf("Expected 2 recommendations, got %d", len(recs))
	}
	if recs[0].CustomerID != eightDays {
		t.Errorf("Expected most overdue first, got %s", recs[0].CustomerID)
	}
	if recs[1].CustomerID != twoDays {
		t.Errorf("Expected 2-day overdue second, got %s", recs[1].CustomerID)
	}
}

func TestRecommender_Recommend_IneligibleEmployeesSkipped(t *testing.T) {
	inactive := fieldEmployee("张伟", model.DeptMarketing)
	inactive.Status = "inactive"
	backOffice := fieldEmployee("周静", model.DeptHR)
	field := fieldEmployee("王强", model.DeptTechnical)

	custID := uuid.New()
	visits := []*model.SiteVisit{
		closedVisit(custID, uuid.New(), "2026-03-01", model.DeptTechnical, model.OutcomeOnProcess, "2026-03-09"),
	}

	recs := NewRecommender().Recommend(&Request{
		Groups:    visitflow.GroupByCustomer(visits),
		Employees: []*model.Employee{inactive, backOffice, field},
		Now:       testNow,
	})

	if len(recs) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d", len(recs))
	}
	if recs[0].Employee == nil || recs[0].Employee.ID != field.ID {
		t.Error("Expected only the active field employee to be suggested")
	}
}

func TestRecommender_Recommend_NoEligibleEmployee(t *testing.T) {
	custID := uuid.New()
	visits := []*model.SiteVisit{
		closedVisit(custID, uuid.New(), "2026-03-01", model.DeptTechnical, model.OutcomeOnProcess, "2026-03-09"),
	}

	recs := NewRecommender().Recommend(&Request{
		Groups: visitflow.GroupByCustomer(visits),
		Now:    testNow,
	})

	if len(recs) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d", len(recs))
	}
	if recs[0].Employee != nil {
		t.Error("Expected no suggested employee")
	}
	if recs[0].Score <= 0 {
		t.Error("Expected overdue score even without candidates")
	}
}

func TestRecommender_Recommend_Empty(t *testing.T) {
	if recs := NewRecommender().Recommend(nil); recs != nil {
		t.Errorf("Expected nil for nil request, got %v", recs)
	}
	if recs := NewRecommender().Recommend(&Request{}); recs != nil {
		t.Errorf("Expected nil for empty request, got %v", recs)
	}
}

func TestRecommender_ScoreDistance(t *testing.T) {
	r := NewRecommender()

	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 100},
		{15, 50},
		{30, 0},
		{45, 0},
	}
	for _, tt := range tests {
		if got := r.scoreDistance(tt.distance); got != tt.want {
			t.Errorf("scoreDistance(%.0f): expected %.0f, got %.0f", tt.distance, tt.want, got)
		}
	}
}

func TestNewRecommenderWithConfig_Defaults(t *testing.T) {
	r := NewRecommenderWithConfig(Config{})

	if r.cfg.FollowUpWindowDays != 7 {
		t.Errorf("Expected window 7, got %d", r.cfg.FollowUpWindowDays)
	}
	if r.cfg.MaxResults != 10 {
		t.Errorf("Expected max results 10, got %d", r.cfg.MaxResults)
	}
	if r.cfg.OverdueWeight != 0.35 {
		t.Errorf("Expected overdue weight 0.35, got %.2f", r.cfg.OverdueWeight)
	}
}

func fieldEmployee(name string, dept model.Department) *model.Employee {
	return &model.Employee{
		BaseModel:  model.BaseModel{ID: uuid.New()},
		Name:       name,
		Status:     "active",
		Department: dept,
		WorkStart:  "09:00",
		WorkEnd:    "18:00",
	}
}

func closedVisit(custID, empID uuid.UUID, day string, dept model.Department, outcome, nextDate string) *model.SiteVisit {
	in := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if t, err := time.Parse("2006-01-02", day); err == nil {
		in = time.Date(t.Year(), t.Month(), t.Day(), 10, 0, 0, 0, time.UTC)
	}
	out := in.Add(time.Hour)
	return &model.SiteVisit{
		BaseModel:     model.BaseModel{ID: uuid.New()},
		EmployeeID:    empID,
		CustomerID:    custID,
		Department:    dept,
		CheckInTime:   in,
		CheckOutTime:  &out,
		Status:        model.VisitCheckedOut,
		Outcome:       outcome,
		NextVisitDate: nextDate,
	}
}

func openVisit(custID, empID uuid.UUID, day string, dept model.Department) *model.SiteVisit {
	in := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	if t, err := time.Parse("2006-01-02", day); err == nil {
		in = time.Date(t.Year(), t.Month(), t.Day(), 9, 30, 0, 0, time.UTC)
	}
	return &model.SiteVisit{
		BaseModel:   model.BaseModel{ID: uuid.New()},
		EmployeeID:  empID,
		CustomerID:  custID,
		Department:  dept,
		CheckInTime: in,
		Status:      model.VisitCheckedIn,
	}
}

func containsReason(reasons []string, want string) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}
