package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/kaoqin/kaoqin/internal/database"
	"github.com/kaoqin/kaoqin/pkg/model"
)

// CorrectionStore 补卡引擎的数据访问适配，聚合考勤、员工与外访仓储
type CorrectionStore struct {
	db         *database.DB
	attendance *AttendanceRepository
	employees  *EmployeeRepository
	visits     *SiteVisitRepository
}

// NewCorrectionStore 创建补卡引擎数据访问
func NewCorrectionStore(db *database.DB) *CorrectionStore {
	return &CorrectionStore{
		db:         db,
		attendance: NewAttendanceRepository(db),
		employees:  NewEmployeeRepository(db),
		visits:     NewSiteVisitRepository(db),
	}
}

// ListOpenRecords 列出未签退的考勤记录，date为空时不限日期
func (s *CorrectionStore) ListOpenRecords(ctx context.Context, date string) ([]*model.AttendanceRecord, error) {
	if date != "" {
		return s.attendance.ListIncomplete(ctx, date)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM attendance_records
		WHERE check_in_time IS NOT NULL AND check_out_time IS NULL AND deleted_at IS NULL
		ORDER BY date, check_in_time
	`, attendanceColumns)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("查询未签退记录失败: %w", err)
	}
	defer rows.Close()

	var records []*model.AttendanceRecord
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描行失败: %w", err)
		}
		records = append(records, rec)
	}

	return records, nil
}

// GetEmployee 获取员工，不存在时返回错误
func (s *CorrectionStore) GetEmployee(ctx context.Context, id uuid.UUID) (*model.Employee, error) {
	emp, err := s.employees.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, fmt.Errorf("员工不存在: %s", id)
	}
	return emp, nil
}

// ListVisitsOnDate 获取员工某日的外访记录
func (s *CorrectionStore) ListVisitsOnDate(ctx context.Context, empID uuid.UUID, date string) ([]*model.SiteVisit, error) {
	return s.visits.ListByEmployeeAndDate(ctx, empID, date)
}

// SaveCorrection 在同一事务中更新考勤记录并写入补卡记录
func (s *CorrectionStore) SaveCorrection(ctx context.Context, rec *model.AttendanceRecord, item *model.CorrectionItem) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := NewAttendanceRepository(tx).Update(ctx, rec); err != nil {
			return err
		}
		return NewCorrectionRepository(tx).Create(ctx, item)
	})
}

// RosterStore 花名册导入的数据访问适配
type RosterStore struct {
	employees *EmployeeRepository
}

// NewRosterStore 创建花名册数据访问
func NewRosterStore(db *database.DB) *RosterStore {
	return &RosterStore{employees: NewEmployeeRepository(db)}
}

// ListEmployees 返回组织下全部员工，含离职（复职识别需要）
func (s *RosterStore) ListEmployees(ctx context.Context, orgID uuid.UUID) ([]*model.Employee, error) {
	return s.employees.ListByOrg(ctx, orgID)
}

// CreateEmployee 创建员工
func (s *RosterStore) CreateEmployee(ctx context.Context, emp *model.Employee) error {
	return s.employees.Create(ctx, emp)
}

// UpdateEmployee 更新员工
func (s *RosterStore) UpdateEmployee(ctx context.Context, emp *model.Employee) error {
	return s.employees.Update(ctx, emp)
}
