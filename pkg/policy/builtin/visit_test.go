package builtin

import (
	"testing"

	"github.com/kaoqin/kaoqin/pkg/model"
)

func TestVisitEvidenceRule_Evaluate(t *testing.T) {
	tests := []struct {
		name        string
		visitIn     string
		visitOut    string
		wantValid   bool
		wantPenalty int
	}{
		{
			name:        "时段有交集通过",
			visitIn:     "18:30",
			visitOut:    "20:00",
			wantValid:   true,
			wantPenalty: 0,
		},
		{
			name:        "时段无交集应告警",
			visitIn:     "14:00",
			visitOut:    "15:00",
			wantValid:   false,
			wantPenalty: 50,
		},
		{
			name:        "未签退外访按一小时估算",
			visitIn:     "19:30",
			visitOut:    "",
			wantValid:   true,
			wantPenalty: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, emp := createTestContext()

			// 加班时段 19:00 至 21:00
			ctx.SetOTSessions([]*model.OTSession{
				createOTSession(emp.ID, "2026-03-02", "19:00", 2),
			})
			ctx.SetVisits([]*model.SiteVisit{
				createVisit(emp.ID, "2026-03-02", tt.visitIn, tt.visitOut),
			})

			rule := NewVisitEvidenceRule(50)
			valid, penalty, _ := rule.Evaluate(ctx)

			if valid != tt.wantValid {
				t.Errorf("Expected valid=%v, got %v", tt.wantValid, valid)
			}
			if penalty != tt.wantPenalty {
				t.Errorf("Expected penalty=%d, got %d", tt.wantPenalty, penalty)
			}
		})
	}
}

func TestVisitEvidenceRule_NoVisitsSkipped(t *testing.T) {
	ctx, emp := createTestContext()

	// 当日无外访时不要求佐证
	ctx.SetOTSessions([]*model.OTSession{
		createOTSession(emp.ID, "2026-03-02", "19:00", 2),
	})

	rule := NewVisitEvidenceRule(50)
	valid, _, _ := rule.Evaluate(ctx)
	if !valid {
		t.Error("OT without same-day visits should pass")
	}
}

func TestVisitEvidenceRule_RejectedSkipped(t *testing.T) {
	ctx, emp := createTestContext()

	s := createOTSession(emp.ID, "2026-03-02", "19:00", 2)
	s.Status = model.OTRejected
	ctx.SetOTSessions([]*model.OTSession{s})
	ctx.SetVisits([]*model.SiteVisit{
		createVisit(emp.ID, "2026-03-02", "14:00", "15:00"),
	})

	rule := NewVisitEvidenceRule(50)
	valid, _, _ := rule.Evaluate(ctx)
	if !valid {
		t.Error("Rejected OT session should not require evidence")
	}
}

func TestMaxDailyVisitsRule_Evaluate(t *testing.T) {
	tests := []struct {
		name        string
		visitCount  int
		wantValid   bool
		wantPenalty int
	}{
		{
			name:        "次数未超限通过",
			visitCount:  2,
			wantValid:   true,
			wantPenalty: 0,
		},
		{
			name:        "次数超限应失败",
			visitCount:  3,
			wantValid:   false,
			wantPenalty: 100, // 100 * (3-2)
		},
		{
			name:        "严重超限",
			visitCount:  5,
			wantValid:   false,
			wantPenalty: 300, // 100 * (5-2)
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, emp := createTestContext()

			visits := make([]*model.SiteVisit, 0, tt.visitCount)
			for i := 0; i < tt.visitCount; i++ {
				visits = append(visits, createVisit(emp.ID, "2026-03-02", "10:00", "11:00"))
			}
			ctx.SetVisits(visits)

			rule := NewMaxDailyVisitsRule(2)
			valid, penalty, _ := rule.Evaluate(ctx)

			if valid != tt.wantValid {
				t.Errorf("Expected valid=%v, got %v", tt.wantValid, valid)
			}
			if penalty != tt.wantPenalty {
				t.Errorf("Expected penalty=%d, got %d", tt.wantPenalty, penalty)
			}
		})
	}
}
