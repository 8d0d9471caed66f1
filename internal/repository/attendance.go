// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kaoqin/kaoqin/pkg/model"
)

// AttendanceRepository 考勤记录仓储
type AttendanceRepository struct {
	db DB
}

// NewAttendanceRepository 创建考勤记录仓储
func NewAttendanceRepository(db DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = `id, org_id, employee_id, date, check_in_time, check_out_time,
		check_in_location, check_out_location, status, work_minutes, source,
		auto_corrected, correction_note, note, created_at, updated_at`

// Create 创建考勤记录
func (r *AttendanceRepository) Create(ctx context.Context, rec *model.AttendanceRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	inLocJSON, _ := json.Marshal(rec.CheckInLocation)
	outLocJSON, _ := json.Marshal(rec.CheckOutLocation)

	query := `
		INSERT INTO attendance_records (
			id, org_id, employee_id, date, check_in_time, check_out_time,
			check_in_location, check_out_location, status, work_minutes, source,
			auto_corrected, correction_note, note, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.OrgID, rec.EmployeeID, rec.Date, rec.CheckInTime, rec.CheckOutTime,
		inLocJSON, outLocJSON, rec.Status, rec.WorkMinutes, rec.Source,
		rec.AutoCorrected, rec.CorrectionNote, rec.Note, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建考勤记录失败: %w", err)
	}

	return nil
}

// CreateBatch 批量创建考勤记录（考勤机/表格导入）
func (r *AttendanceRepository) CreateBatch(ctx context.Context, records []*model.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}

	var values []string
	var args []interface{}
	argIndex := 1

	now := time.Now()
	for _, rec := range records {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		rec.CreatedAt = now
		rec.UpdatedAt = now

		inLocJSON, _ := json.Marshal(rec.CheckInLocation)
		outLocJSON, _ := json.Marshal(rec.CheckOutLocation)

		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			argIndex, argIndex+1, argIndex+2, argIndex+3, argIndex+4, argIndex+5,
			argIndex+6, argIndex+7, argIndex+8, argIndex+9, argIndex+10, argIndex+11,
			argIndex+12, argIndex+13, argIndex+14, argIndex+15,
		))
		args = append(args,
			rec.ID, rec.OrgID, rec.EmployeeID, rec.Date, rec.CheckInTime, rec.CheckOutTime,
			inLocJSON, outLocJSON, rec.Status, rec.WorkMinutes, rec.Source,
			rec.AutoCorrected, rec.CorrectionNote, rec.Note, rec.CreatedAt, rec.UpdatedAt,
		)
		argIndex += 16
	}

	query := fmt.Sprintf(`
		INSERT INTO attendance_records (
			id, org_id, employee_id, date, check_in_time, check_out_time,
			check_in_location, check_out_location, status, work_minutes, source,
			auto_corrected, correction_note, note, created_at, updated_at
		) VALUES %s
	`, strings.Join(values, ", "))

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("批量创建考勤记录失败: %w", err)
	}

	return nil
}

// scanAttendance 扫描单行考勤记录
func scanAttendance(row Scanner) (*model.AttendanceRecord, error) {
	rec := &model.AttendanceRecord{}
	var inLocJSON, outLocJSON []byte

	err := row.Scan(
		&rec.ID, &rec.OrgID, &rec.EmployeeID, &rec.Date, &rec.CheckInTime, &rec.CheckOutTime,
		&inLocJSON, &outLocJSON, &rec.Status, &rec.WorkMinutes, &rec.Source,
		&rec.AutoCorrected, &rec.CorrectionNote, &rec.Note, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(inLocJSON) > 0 {
		json.Unmarshal(inLocJSON, &rec.CheckInLocation)
	}
	if len(outLocJSON) > 0 {
		json.Unmarshal(outLocJSON, &rec.CheckOutLocation)
	}

	return rec, nil
}

// GetByID 根据ID获取考勤记录
func (r *AttendanceRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.AttendanceRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM attendance_records
		WHERE id = $1 AND deleted_at IS NULL
	`, attendanceColumns)

	rec, err := scanAttendance(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询考勤记录失败: %w", err)
	}

	return rec, nil
}

// GetByEmployeeAndDate 获取员工某日的考勤记录（每日至多一条）
func (r *AttendanceRepository) GetByEmployeeAndDate(ctx context.Context, employeeID uuid.UUID, date string) (*model.AttendanceRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM attendance_records
		WHERE employee_id = $1 AND date = $2 AND deleted_at IS NULL
	`, attendanceColumns)

	rec, err := scanAttendance(r.db.QueryRowContext(ctx, query, employeeID, date))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询考勤记录失败: %w", err)
	}

	return rec, nil
}

// Update 更新考勤记录
func (r *AttendanceRepository) Update(ctx context.Context, rec *model.AttendanceRecord) error {
	rec.UpdatedAt = time.Now()

	inLocJSON, _ := json.Marshal(rec.CheckInLocation)
	outLocJSON, _ := json.Marshal(rec.CheckOutLocation)

	query := `
		UPDATE attendance_records SET
			check_in_time = $2, check_out_time = $3, check_in_location = $4, check_out_location = $5,
			status = $6, work_minutes = $7, auto_corrected = $8, correction_note = $9,
			note = $10, updated_at = $11
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.CheckInTime, rec.CheckOutTime, inLocJSON, outLocJSON,
		rec.Status, rec.WorkMinutes, rec.AutoCorrected, rec.CorrectionNote,
		rec.Note, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("更新考勤记录失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("考勤记录不存在")
	}

	return nil
}

// List 查询考勤记录列表
func (r *AttendanceRepository) List(ctx context.Context, filter ListFilter) ([]*model.AttendanceRecord, int, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	conditions = append(conditions, "deleted_at IS NULL")

	if filter.OrgID != nil {
		conditions = append(conditions, fmt.Sprintf("org_id = $%d", argIndex))
		args = append(args, *filter.OrgID)
		argIndex++
	}

	if filter.EmployeeID != nil {
		conditions = append(conditions, fmt.Sprintf("employee_id = $%d", argIndex))
		args = append(args, *filter.EmployeeID)
		argIndex++
	}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}

	if filter.StartDate != "" {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", argIndex))
		args = append(args, filter.StartDate)
		argIndex++
	}

	if filter.EndDate != "" {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", argIndex))
		args = append(args, filter.EndDate)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	// 查询总数
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM attendance_records WHERE %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("查询总数失败: %w", err)
	}

	// 查询列表
	query := fmt.Sprintf(`
		SELECT %s
		FROM attendance_records
		WHERE %s
		ORDER BY date DESC, check_in_time DESC
		LIMIT $%d OFFSET $%d
	`, attendanceColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询列表失败: %w", err)
	}
	defer rows.Close()

	var records []*model.AttendanceRecord
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("扫描行失败: %w", err)
		}
		records = append(records, rec)
	}

	return records, total, nil
}

// ListByEmployeeRange 获取员工在日期范围内的考勤记录
func (r *AttendanceRepository) ListByEmployeeRange(ctx context.Context, employeeID uuid.UUID, startDate, endDate string) ([]*model.AttendanceRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM attendance_records
		WHERE employee_id = $1 AND date >= $2 AND date <= $3 AND deleted_at IS NULL
		ORDER BY date
	`, attendanceColumns)

	rows, err := r.db.QueryContext(ctx, query, employeeID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("查询考勤记录失败: %w", err)
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

// ListIncomplete 获取某日所有未签退的考勤记录（补卡扫描用）
func (r *AttendanceRepository) ListIncomplete(ctx context.Context, date string) ([]*model.AttendanceRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM attendance_records
		WHERE date = $1 AND check_in_time IS NOT NULL AND check_out_time IS NULL AND deleted_at IS NULL
		ORDER BY check_in_time
	`, attendanceColumns)

	rows, err := r.db.QueryContext(ctx, query, date)
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

// OTSessionRepository 加班时段仓储
type OTSessionRepository struct {
	db DB
}

// NewOTSessionRepository 创建加班时段仓储
func NewOTSessionRepository(db DB) *OTSessionRepository {
	return &OTSessionRepository{db: db}
}

const otSessionColumns = `id, org_id, employee_id, date, start_time, end_time, reason,
		claimed_hours, approved_hours, status, reviewed_by, reviewed_at, review_note,
		created_at, updated_at`

// Create 创建加班时段
func (r *OTSessionRepository) Create(ctx context.Context, s *model.OTSession) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now

	query := `
		INSERT INTO ot_sessions (
			id, org_id, employee_id, date, start_time, end_time, reason,
			claimed_hours, approved_hours, status, reviewed_by, reviewed_at, review_note,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.OrgID, s.EmployeeID, s.Date, s.StartTime, s.EndTime, s.Reason,
		s.ClaimedHours, s.ApprovedHours, s.Status, s.ReviewedBy, s.ReviewedAt, s.ReviewNote,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建加班时段失败: %w", err)
	}

	return nil
}

// scanOTSession 扫描单行加班时段
func scanOTSession(row Scanner) (*model.OTSession, error) {
	s := &model.OTSession{}
	err := row.Scan(
		&s.ID, &s.OrgID, &s.EmployeeID, &s.Date, &s.StartTime, &s.EndTime, &s.Reason,
		&s.ClaimedHours, &s.ApprovedHours, &s.Status, &s.ReviewedBy, &s.ReviewedAt, &s.ReviewNote,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID 根据ID获取加班时段
func (r *OTSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.OTSession, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM ot_sessions
		WHERE id = $1 AND deleted_at IS NULL
	`, otSessionColumns)

	s, err := scanOTSession(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询加班时段失败: %w", err)
	}

	return s, nil
}

// ListByEmployeeAndDate 获取员工某日的所有加班时段（重叠检查用）
func (r *OTSessionRepository) ListByEmployeeAndDate(ctx context.Context, employeeID uuid.UUID, date string) ([]*model.OTSession, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM ot_sessions
		WHERE employee_id = $1 AND date = $2 AND status != 'rejected' AND deleted_at IS NULL
		ORDER BY start_time
	`, otSessionColumns)

	rows, err := r.db.QueryContext(ctx, query, employeeID, date)
	if err != nil {
		return nil, fmt.Errorf("查询加班时段失败: %w", err)
	}
	defer rows.Close()

	var sessions []*model.OTSession
	for rows.Next() {
		s, err := scanOTSession(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描行失败: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, nil
}

// ListByEmployeeRange 获取员工在日期范围内的加班时段
func (r *OTSessionRepository) ListByEmployeeRange(ctx context.Context, employeeID uuid.UUID, startDate, endDate string) ([]*model.OTSession, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM ot_sessions
		WHERE employee_id = $1 AND date >= $2 AND date <= $3 AND deleted_at IS NULL
		ORDER BY date, start_time
	`, otSessionColumns)

	rows, err := r.db.QueryContext(ctx, query, employeeID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("查询加班时段失败: %w", err)
	}
	defer rows.Close()

	var sessions []*model.OTSession
	for rows.Next() {
		s, err := scanOTSession(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描行失败: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, nil
}

// List 查询加班时段列表
func (r *OTSessionRepository) List(ctx context.Context, filter ListFilter) ([]*model.OTSession, int, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	conditions = append(conditions, "deleted_at IS NULL")

	if filter.OrgID != nil {
		conditions = append(conditions, fmt.Sprintf("org_id = $%d", argIndex))
		args = append(args, *filter.OrgID)
		argIndex++
	}

	if filter.EmployeeID != nil {
		conditions = append(conditions, fmt.Sprintf("employee_id = $%d", argIndex))
		args = append(args, *filter.EmployeeID)
		argIndex++
	}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}

	if filter.StartDate != "" {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", argIndex))
		args = append(args, filter.StartDate)
		argIndex++
	}

	if filter.EndDate != "" {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", argIndex))
		args = append(args, filter.EndDate)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	// 查询总数
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM ot_sessions WHERE %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("查询总数失败: %w", err)
	}

	// 查询列表
	query := fmt.Sprintf(`
		SELECT %s
		FROM ot_sessions
		WHERE %s
		ORDER BY date DESC, start_time DESC
		LIMIT $%d OFFSET $%d
	`, otSessionColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询列表失败: %w", err)
	}
	defer rows.Close()

	var sessions []*model.OTSession
	for rows.Next() {
		s, err := scanOTSession(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("扫描行失败: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, total, nil
}

// Review 审核加班时段
// 仅更新待审核状态的记录，已审核返回零行表示不可重复操作
func (r *OTSessionRepository) Review(ctx context.Context, id uuid.UUID, status string, approvedHours *float64, reviewedBy uuid.UUID, note string) (bool, error) {
	query := `
		UPDATE ot_sessions SET
			status = $2, approved_hours = $3, reviewed_by = $4, reviewed_at = $5,
			review_note = $6, updated_at = $5
		WHERE id = $1 AND status = 'pending' AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, status, approvedHours, reviewedBy, time.Now(), note)
	if err != nil {
		return false, fmt.Errorf("审核加班时段失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// SumEffectiveByEmployeeMonth 汇总员工当月生效加班时长
// 未审核按申报口径，已调整按审核口径，驳回不计
func (r *OTSessionRepository) SumEffectiveByEmployeeMonth(ctx context.Context, employeeID uuid.UUID, month string) (float64, error) {
	query := `
		SELECT COALESCE(SUM(COALESCE(approved_hours, claimed_hours)), 0)
		FROM ot_sessions
		WHERE employee_id = $1 AND date LIKE $2 AND status != 'rejected' AND deleted_at IS NULL
	`

	var total float64
	if err := r.db.QueryRowContext(ctx, query, employeeID, month+"%").Scan(&total); err != nil {
		return 0, fmt.Errorf("汇总加班时长失败: %w", err)
	}

	return total, nil
}

// CorrectionRepository 补卡记录仓储
type CorrectionRepository struct {
	db DB
}

// NewCorrectionRepository 创建补卡记录仓储
func NewCorrectionRepository(db DB) *CorrectionRepository {
	return &CorrectionRepository{db: db}
}

const correctionColumns = `id, org_id, employee_id, attendance_id, date,
		filled_check_out, candidate_source, confidence, status,
		reviewed_by, reviewed_at, review_note, created_at, updated_at`

// Create 创建补卡记录
func (r *CorrectionRepository) Create(ctx context.Context, c *model.CorrectionItem) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `
		INSERT INTO correction_items (
			id, org_id, employee_id, attendance_id, date,
			filled_check_out, candidate_source, confidence, status,
			reviewed_by, reviewed_at, review_note, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.OrgID, c.EmployeeID, c.AttendanceID, c.Date,
		c.FilledCheckOut, c.CandidateSource, c.Confidence, c.Status,
		c.ReviewedBy, c.ReviewedAt, c.ReviewNote, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建补卡记录失败: %w", err)
	}

	return nil
}

// scanCorrection 扫描单行补卡记录
func scanCorrection(row Scanner) (*model.CorrectionItem, error) {
	c := &model.CorrectionItem{}
	err := row.Scan(
		&c.ID, &c.OrgID, &c.EmployeeID, &c.AttendanceID, &c.Date,
		&c.FilledCheckOut, &c.CandidateSource, &c.Confidence, &c.Status,
		&c.ReviewedBy, &c.ReviewedAt, &c.ReviewNote, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetByID 根据ID获取补卡记录
func (r *CorrectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.CorrectionItem, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM correction_items
		WHERE id = $1 AND deleted_at IS NULL
	`, correctionColumns)

	c, err := scanCorrection(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询补卡记录失败: %w", err)
	}

	return c, nil
}

// GetPendingByAttendance 获取考勤记录的待复核补卡
func (r *CorrectionRepository) GetPendingByAttendance(ctx context.Context, attendanceID uuid.UUID) (*model.CorrectionItem, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM correction_items
		WHERE attendance_id = $1 AND status = 'pending' AND deleted_at IS NULL
		LIMIT 1
	`, correctionColumns)

	c, err := scanCorrection(r.db.QueryRowContext(ctx, query, attendanceID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询补卡记录失败: %w", err)
	}

	return c, nil
}

// List 查询补卡记录列表
func (r *CorrectionRepository) List(ctx context.Context, filter ListFilter) ([]*model.CorrectionItem, int, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	conditions = append(conditions, "deleted_at IS NULL")

	if filter.OrgID != nil {
		conditions = append(conditions, fmt.Sprintf("org_id = $%d", argIndex))
		args = append(args, *filter.OrgID)
		argIndex++
	}

	if filter.EmployeeID != nil {
		conditions = append(conditions, fmt.Sprintf("employee_id = $%d", argIndex))
		args = append(args, *filter.EmployeeID)
		argIndex++
	}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}

	if filter.StartDate != "" {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", argIndex))
		args = append(args, filter.StartDate)
		argIndex++
	}

	if filter.EndDate != "" {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", argIndex))
		args = append(args, filter.EndDate)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	// 查询总数
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM correction_items WHERE %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("查询总数失败: %w", err)
	}

	// 查询列表
	query := fmt.Sprintf(`
		SELECT %s
		FROM correction_items
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, correctionColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询列表失败: %w", err)
	}
	defer rows.Close()

	var items []*model.CorrectionItem
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("扫描行失败: %w", err)
		}
		items = append(items, c)
	}

	return items, total, nil
}

// Review 复核补卡记录
// 仅更新待复核状态的记录，已复核返回零行表示不可重复操作
func (r *CorrectionRepository) Review(ctx context.Context, id uuid.UUID, status string, reviewedBy uuid.UUID, note string) (bool, error) {
	query := `
		UPDATE correction_items SET
			status = $2, reviewed_by = $3, reviewed_at = $4, review_note = $5, updated_at = $4
		WHERE id = $1 AND status = 'pending' AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, status, reviewedBy, time.Now(), note)
	if err != nil {
		return false, fmt.Errorf("复核补卡记录失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}
