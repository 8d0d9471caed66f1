package stats

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kaoqin/kaoqin/pkg/model"
)

func otAt(value string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		panic(err)
	}
	return t
}

func loadSession(empID uuid.UUID, date, start, end string, claimed float64, status string, approved *float64) *model.OTSession {
	return &model.OTSession{
		BaseModel:     model.BaseModel{ID: uuid.New()},
		EmployeeID:    empID,
		Date:          date,
		StartTime:     otAt(date + " " + start),
		EndTime:       otAt(date + " " + end),
		ClaimedHours:  claimed,
		ApprovedHours: approved,
		Status:        status,
	}
}

func TestOTLoadAnalyzer_Analyze(t *testing.T) {
	analyzer := NewOTLoadAnalyzer()

	zhang := statEmployee("张三")
	li := statEmployee("李四")
	employees := []*model.Employee{zhang, li}

	adjusted := 3.5
	sessions := []*model.OTSession{
		// 张三：生效 3 + 3.5 + 3.5 = 10
		loadSession(zhang.ID, "2026-03-02", "18:00", "21:00", 3, model.OTApproved, nil),
		loadSession(zhang.ID, "2026-03-07", "14:00", "18:00", 4, model.OTAdjusted, &adjusted), // 周六
		loadSession(zhang.ID, "2026-03-06", "19:00", "22:30", 3.5, model.OTApproved, nil),     // 夜间
		// 李四：待审核与已驳回都不进入分布
		loadSession(li.ID, "2026-03-03", "18:00", "20:00", 2, model.OTPending, nil),
		loadSession(li.ID, "2026-03-04", "18:00", "23:00", 5, model.OTRejected, nil), // 夜间
	}

	metrics := analyzer.Analyze(sessions, employees)

	if metrics.TotalSessions != 5 {
		t.Fatalf("Expected 5 sessions, got %d", metrics.TotalSessions)
	}
	if metrics.StatusCounts[model.OTApproved] != 2 || metrics.StatusCounts[model.OTAdjusted] != 1 {
		t.Errorf("Unexpected status counts: %v", metrics.StatusCounts)
	}
	if metrics.StatusCounts[model.OTPending] != 1 || metrics.StatusCounts[model.OTRejected] != 1 {
		t.Errorf("Unexpected status counts: %v", metrics.StatusCounts)
	}

	if metrics.TotalHours != 10 {
		t.Errorf("Expected total 10h, got %f", metrics.TotalHours)
	}
	if metrics.AvgHoursPerEmployee != 5 {
		t.Errorf("Expected avg 5, got %f", metrics.AvgHoursPerEmployee)
	}
	if metrics.StdDev != 5 {
		t.Errorf("Expected stddev 5, got %f", metrics.StdDev)
	}
	if metrics.CV != 1 {
		t.Errorf("Expected CV 1, got %f", metrics.CV)
	}
	if metrics.MaxHours != 10 || metrics.MinHours != 0 || metrics.HoursRange != 10 {
		t.Errorf("Unexpected range: max %f min %f", metrics.MaxHours, metrics.MinHours)
	}

	// 两人一人包揽全部生效时长
	if metrics.HoursGini != 0.5 {
		t.Errorf("Expected hours gini 0.5, got %f", metrics.HoursGini)
	}
	// 夜间加班各一次，完全均衡
	if metrics.NightGini != 0 {
		t.Errorf("Expected night gini 0, got %f", metrics.NightGini)
	}
	if metrics.WeekendGini != 0.5 {
		t.Errorf("Expected weekend gini 0.5, got %f", metrics.WeekendGini)
	}

	if len(metrics.EmployeeLoads) != 2 {
		t.Fatalf("Expected 2 employee loads, got %d", len(metrics.EmployeeLoads))
	}
	top := metrics.EmployeeLoads[0]
	if top.EmployeeName != "张三" {
		t.Errorf("Expected 张三 first, got %s", top.EmployeeName)
	}
	if top.EffectiveHours != 10 || top.EffectiveLabel != "10h 0m" {
		t.Errorf("Unexpected top load: %f %s", top.EffectiveHours, top.EffectiveLabel)
	}
	if top.ClaimedHours != 10.5 {
		t.Errorf("Expected claimed 10.5, got %f", top.ClaimedHours)
	}
	if top.NightSessions != 1 || top.WeekendSessions != 1 {
		t.Errorf("Unexpected night/weekend: %d/%d", top.NightSessions, top.WeekendSessions)
	}
	if top.Deviation != 100 {
		t.Errorf("Expected deviation 100, got %f", top.Deviation)
	}
	if metrics.EmployeeLoads[1].Deviation != -100 {
		t.Errorf("Expected deviation -100, got %f", metrics.EmployeeLoads[1].Deviation)
	}

	if len(metrics.Overloaded) != 0 {
		t.Errorf("Expected no overloaded, got %d", len(metrics.Overloaded))
	}
	if metrics.BalanceScore < 0 || metrics.BalanceScore > 100 {
		t.Errorf("Score should be 0-100, got %f", metrics.BalanceScore)
	}
}

func TestOTLoadAnalyzer_PerfectBalance(t *testing.T) {
	analyzer := NewOTLoadAnalyzer()

	zhang := statEmployee("张三")
	li := statEmployee("李四")

	sessions := []*model.OTSession{
		loadSession(zhang.ID, "2026-03-02", "18:00", "21:00", 3, model.OTApproved, nil),
		loadSession(li.ID, "2026-03-02", "18:00", "21:00", 3, model.OTApproved, nil),
	}

	metrics := analyzer.Analyze(sessions, []*model.Employee{zhang, li})

	if metrics.HoursGini != 0 {
		t.Errorf("Expected gini 0, got %f", metrics.HoursGini)
	}
	if metrics.BalanceScore != 100 {
		t.Errorf("Expected score 100, got %f", metrics.BalanceScore)
	}
}

func TestOTLoadAnalyzer_OutlierOverload(t *testing.T) {
	analyzer := NewOTLoadAnalyzer()

	heavy := statEmployee("重载员工")
	employees := []*model.Employee{heavy}
	// 生效 [10, 4, 4, 4, 4]：均值5.2，标准差2.4，阈值8.8
	sessions := []*model.OTSession{
		loadSession(heavy.ID, "2026-03-02", "18:00", "20:00", 10, model.OTApproved, nil),
	}
	for i := 0; i < 4; i++ {
		emp := statEmployee("员工")
		employees = append(employees, emp)
		sessions = append(sessions, loadSession(emp.ID, "2026-03-02", "18:00", "20:00", 4, model.OTApproved, nil))
	}

	metrics := analyzer.Analyze(sessions, employees)

	if len(metrics.Overloaded) != 1 {
		t.Fatalf("Expected 1 overloaded, got %d", len(metrics.Overloaded))
	}
	if metrics.Overloaded[0].EmployeeName != "重载员工" {
		t.Errorf("Expected 重载员工, got %s", metrics.Overloaded[0].EmployeeName)
	}
}

func TestOTLoadAnalyzer_MonthlyLimitOverload(t *testing.T) {
	analyzer := NewOTLoadAnalyzer()

	emp := statEmployee("张三")
	// 单人无标准差，仅靠预警线触发
	sessions := []*model.OTSession{
		loadSession(emp.ID, "2026-03-02", "18:00", "22:00", 18, model.OTApproved, nil),
		loadSession(emp.ID, "2026-03-09", "18:00", "22:00", 18, model.OTApproved, nil),
	}

	metrics := analyzer.Analyze(sessions, []*model.Employee{emp})

	if len(metrics.Overloaded) != 1 {
		t.Fatalf("Expected 1 overloaded at monthly limit, got %d", len(metrics.Overloaded))
	}
}

func TestOTLoadAnalyzer_ComparePeriods(t *testing.T) {
	analyzer := NewOTLoadAnalyzer()

	zhang := statEmployee("张三")
	li := statEmployee("李四")
	employees := []*model.Employee{zhang, li}

	balanced := []*model.OTSession{
		loadSession(zhang.ID, "2026-02-02", "18:00", "21:00", 3, model.OTApproved, nil),
		loadSession(li.ID, "2026-02-02", "18:00", "21:00", 3, model.OTApproved, nil),
	}
	// 李四只有待审核时段，生效时长为零但进入分布
	skewed := []*model.OTSession{
		loadSession(zhang.ID, "2026-03-02", "18:00", "21:00", 3, model.OTApproved, nil),
		loadSession(zhang.ID, "2026-03-03", "18:00", "21:00", 3, model.OTApproved, nil),
		loadSession(li.ID, "2026-03-04", "18:00", "20:00", 2, model.OTPending, nil),
	}

	diff := analyzer.ComparePeriods(skewed, balanced, employees)

	if diff["hours_gini_diff"] <= 0 {
		t.Errorf("Expected gini to worsen, got %f", diff["hours_gini_diff"])
	}
	if diff["balance_score_diff"] >= 0 {
		t.Errorf("Expected balance to drop, got %f", diff["balance_score_diff"])
	}
	if diff["previous_balance_score"] != 100 {
		t.Errorf("Expected previous score 100, got %f", diff["previous_balance_score"])
	}
}

func TestOTLoadAnalyzer_EmptyInput(t *testing.T) {
	analyzer := NewOTLoadAnalyzer()

	metrics := analyzer.Analyze(nil, nil)

	if metrics == nil {
		t.Fatal("Should return empty metrics for nil input")
	}
	if metrics.BalanceScore != 100 {
		t.Errorf("Empty input should score 100, got %f", metrics.BalanceScore)
	}
	if metrics.StatusCounts == nil {
		t.Error("StatusCounts should be initialized")
	}
}

func TestCalculateGini(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{name: "空输入", values: nil, want: 0},
		{name: "完全均衡", values: []float64{5, 5, 5}, want: 0},
		{name: "一人包揽", values: []float64{0, 10}, want: 0.5},
		{name: "全零", values: []float64{0, 0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calculateGini(tt.values); got != tt.want {
				t.Errorf("calculateGini(%v) = %f, want %f", tt.values, got, tt.want)
			}
		})
	}
}

func TestIsWeekend(t *testing.T) {
	if !isWeekend("2026-03-07") {
		t.Error("2026-03-07 is Saturday")
	}
	if !isWeekend("2026-03-08") {
		t.Error("2026-03-08 is Sunday")
	}
	if isWeekend("2026-03-04") {
		t.Error("2026-03-04 is Wednesday")
	}
	if isWeekend("无效日期") {
		t.Error("Invalid date should not be weekend")
	}
}
