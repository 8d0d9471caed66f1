// Package scenario 提供场景测试
package scenario

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kaoqin/kaoqin/pkg/model"
	"github.com/kaoqin/kaoqin/pkg/policy"
	"github.com/kaoqin/kaoqin/pkg/policy/builtin"
)

// TestOfficeBasicCompliance 办公室考勤合规基线测试
func TestOfficeBasicCompliance(t *testing.T) {
	// 创建规则管理器
	pm := policy.NewManager()
	builtin.RegisterDefaultRules(pm, map[string]interface{}{
		"grace_minutes":  10,
		"max_ot_per_day": 6,
	})

	// 创建评估上下文
	orgID := uuid.New()
	ctx := policy.NewContext(orgID, "2025-03-10", "2025-03-14")

	// 创建员工
	employees := []*model.Employee{
		createEmployee("张三", "工程师", model.DeptTechnical),
		createEmployee("李四", "销售", model.DeptMarketing),
	}
	ctx.SetEmployees(employees)

	// 一周内全员准点
	var records []*model.AttendanceRecord
	for day := 10; day <= 14; day++ {
		for _, emp := range employees {
			records = append(records, createRecord(emp.ID, day, 8, 58, 18, 5))
		}
	}
	ctx.SetRecords(records)

	// 评估
	result := pm.Evaluate(ctx)

	t.Logf("评估得分: %.1f", result.Score)
	t.Logf("硬违规: %d, 软违规: %d", len(result.HardFindings), len(result.SoftFindings))

	if !result.IsValid {
		t.Error("全员准点不应有违规")
	}
	if result.Score != 100 {
		t.Errorf("合规基线得分应为100，实际: %.1f", result.Score)
	}
}

// TestOfficeLateArrivalDetection 迟到检测测试
func TestOfficeLateArrivalDetection(t *testing.T) {
	pm := policy.NewManager()
	builtin.RegisterDefaultRules(pm, map[string]interface{}{
		"grace_minutes": 10,
	})

	orgID := uuid.New()
	ctx := policy.NewContext(orgID, "2025-03-10", "2025-03-10")

	emp := createEmployee("王五", "工程师", model.DeptTechnical)
	ctx.SetEmployees([]*model.Employee{emp})

	// 09:40签到，迟到40分钟
	ctx.SetRecords([]*model.AttendanceRecord{
		createRecord(emp.ID, 10, 9, 40, 18, 0),
	})

	result := pm.Evaluate(ctx)

	if result.IsValid {
		t.Error("应该检测到迟到违规（超过10分钟宽限）")
	}
	if len(result.HardFindings) == 0 {
		t.Fatal("应该有硬违规记录")
	}

	t.Logf("检测到 %d 个硬违规", len(result.HardFindings))
	for _, f := range result.HardFindings {
		t.Logf("  - %s: %s", f.RuleName, f.Message)
	}
}

// TestOfficeGraceWindow 宽限期内不算迟到测试
func TestOfficeGraceWindow(t *testing.T) {
	pm := policy.NewManager()
	builtin.RegisterDefaultRules(pm, map[string]interface{}{
		"grace_minutes": 10,
	})

	orgID := uuid.New()
	ctx := policy.NewContext(orgID, "2025-03-10", "2025-03-10")

	emp := createEmployee("赵六", "行政", model.DeptAdmin)
	ctx.SetEmployees([]*model.Employee{emp})

	// 09:09签到，在10分钟宽限内
	ctx.SetRecords([]*model.AttendanceRecord{
		createRecord(emp.ID, 10, 9, 9, 18, 0),
	})

	result := pm.Evaluate(ctx)

	if !result.IsValid {
		t.Errorf("宽限期内签到不应违规: %+v", result.HardFindings)
	}
}

// TestOfficeOTOverLimit 单日加班超限测试
func TestOfficeOTOverLimit(t *testing.T) {
	pm := policy.NewManager()
	builtin.RegisterDefaultRules(pm, map[string]interface{}{
		"max_ot_per_day": 6,
	})

	orgID := uuid.New()
	ctx := policy.NewContext(orgID, "2025-03-10", "2025-03-14")

	emp := createEmployee("孙七", "工程师", model.DeptTechnical)
	ctx.SetEmployees([]*model.Employee{emp})

	// 单日申报8小时，超过6小时上限
	start := time.Date(2025, 3, 12, 18, 0, 0, 0, time.Local)
	ctx.SetOTSessions([]*model.OTSession{
		{
			BaseModel:    model.NewBaseModel(),
			OrgID:        orgID,
			EmployeeID:   emp.ID,
			Date:         "2025-03-12",
			StartTime:    start,
			EndTime:      start.Add(8 * time.Hour),
			ClaimedHours: 8,
			Status:       model.OTApproved,
		},
	})

	result := pm.Evaluate(ctx)

	if result.IsValid {
		t.Error("应该检测到单日加班超限")
	}

	found := false
	for _, f := range result.HardFindings {
		if f.Date == "2025-03-12" {
			found = true
			t.Logf("违规详情: %s", f.Message)
		}
	}
	if !found {
		t.Error("违规日期应为2025-03-12")
	}
}

// 辅助函数

func createEmployee(name, position string, dept model.Department) *model.Employee {
	return &model.Employee{
		BaseModel:  model.NewBaseModel(),
		Name:       name,
		Position:   position,
		Department: dept,
		Role:       "staff",
		Status:     "active",
		WorkStart:  "09:00",
		WorkEnd:    "18:00",
	}
}

func createRecord(empID uuid.UUID, day, inHour, inMin, outHour, outMin int) *model.AttendanceRecord {
	checkIn := time.Date(2025, 3, day, inHour, inMin, 0, 0, time.Local)
	checkOut := time.Date(2025, 3, day, outHour, outMin, 0, 0, time.Local)

	return &model.AttendanceRecord{
		BaseModel:    model.NewBaseModel(),
		EmployeeID:   empID,
		Date:         checkIn.Format("2006-01-02"),
		CheckInTime:  &checkIn,
		CheckOutTime: &checkOut,
		Status:       model.AttendancePresent,
	}
}
