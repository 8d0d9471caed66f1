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

// CustomerRepository 客户仓储
type CustomerRepository struct {
	db DB
}

// NewCustomerRepository 创建客户仓储
func NewCustomerRepository(db DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

const customerColumns = `id, org_id, name, code, phone, address, location,
		industry, type, status, source, notes, created_at, updated_at`

// Create 创建客户
func (r *CustomerRepository) Create(ctx context.Context, c *model.Customer) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	locJSON, _ := json.Marshal(c.Location)

	query := `
		INSERT INTO customers (
			id, org_id, name, code, phone, address, location,
			industry, type, status, source, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.OrgID, c.Name, c.Code, c.Phone, c.Address, locJSON,
		c.Industry, c.Type, c.Status, c.Source, c.Notes, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建客户失败: %w", err)
	}

	return nil
}

// scanCustomer 扫描单行客户
func scanCustomer(row Scanner) (*model.Customer, error) {
	c := &model.Customer{}
	var locJSON []byte

	err := row.Scan(
		&c.ID, &c.OrgID, &c.Name, &c.Code, &c.Phone, &c.Address, &locJSON,
		&c.Industry, &c.Type, &c.Status, &c.Source, &c.Notes, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(locJSON) > 0 {
		json.Unmarshal(locJSON, &c.Location)
	}

	return c, nil
}

// GetByID 根据ID获取客户
func (r *CustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM customers
		WHERE id = $1 AND deleted_at IS NULL
	`, customerColumns)

	c, err := scanCustomer(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询客户失败: %w", err)
	}

	return c, nil
}

// GetByPhone 根据组织和电话获取客户（外访现场建档去重用）
func (r *CustomerRepository) GetByPhone(ctx context.Context, orgID uuid.UUID, phone string) (*model.Customer, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM customers
		WHERE org_id = $1 AND phone = $2 AND deleted_at IS NULL
		LIMIT 1
	`, customerColumns)

	c, err := scanCustomer(r.db.QueryRowContext(ctx, query, orgID, phone))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询客户失败: %w", err)
	}

	return c, nil
}

// Update 更新客户
func (r *CustomerRepository) Update(ctx context.Context, c *model.Customer) error {
	c.UpdatedAt = time.Now()

	locJSON, _ := json.Marshal(c.Location)

	query := `
		UPDATE customers SET
			name = $2, code = $3, phone = $4, address = $5, location = $6,
			industry = $7, type = $8, status = $9, notes = $10, updated_at = $11
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		c.ID, c.Name, c.Code, c.Phone, c.Address, locJSON,
		c.Industry, c.Type, c.Status, c.Notes, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("更新客户失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("客户不存在")
	}

	return nil
}

// Delete 软删除客户
func (r *CustomerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE customers SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("删除客户失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("客户不存在")
	}

	return nil
}

// List 查询客户列表
func (r *CustomerRepository) List(ctx context.Context, filter ListFilter) ([]*model.Customer, int, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	conditions = append(conditions, "deleted_at IS NULL")

	if filter.OrgID != nil {
		conditions = append(conditions, fmt.Sprintf("org_id = $%d", argIndex))
		args = append(args, *filter.OrgID)
		argIndex++
	}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR phone ILIKE $%d OR address ILIKE $%d)", argIndex, argIndex, argIndex))
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}

	// 来源过滤
	if source, ok := filter.Extra["source"].(string); ok && source != "" {
		conditions = append(conditions, fmt.Sprintf("source = $%d", argIndex))
		args = append(args, source)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	// 查询总数
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM customers WHERE %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("查询总数失败: %w", err)
	}

	// 查询列表
	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	orderDir := filter.OrderDir
	if orderDir == "" {
		orderDir = "desc"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM customers
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, customerColumns, whereClause, orderBy, orderDir, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询列表失败: %w", err)
	}
	defer rows.Close()

	var customers []*model.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("扫描行失败: %w", err)
		}
		customers = append(customers, c)
	}

	return customers, total, nil
}

// SiteVisitRepositoryInterface 外访仓储接口
type SiteVisitRepositoryInterface interface {
	// 外访记录操作
	Create(ctx context.Context, v *model.SiteVisit) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.SiteVisit, error)
	GetByVisitNo(ctx context.Context, orgID uuid.UUID, visitNo string) (*model.SiteVisit, error)
	Update(ctx context.Context, v *model.SiteVisit) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]*model.SiteVisit, int, error)

	// 链路查询
	GetOpenByEmployee(ctx context.Context, employeeID uuid.UUID) (*model.SiteVisit, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*model.SiteVisit, error)
	ListByEmployeeAndDate(ctx context.Context, employeeID uuid.UUID, date string) ([]*model.SiteVisit, error)
	ListFollowUps(ctx context.Context, primaryID uuid.UUID) ([]*model.SiteVisit, error)

	// 统计
	CountByEmployeeAndDate(ctx context.Context, employeeID uuid.UUID, date string) (int, error)
	VisitHistory(ctx context.Context, orgID uuid.UUID) ([]*model.CustomerVisitHistory, error)
}

// SiteVisitRepository 外访仓储实现
type SiteVisitRepository struct {
	db DB
}

// NewSiteVisitRepository 创建外访仓储
func NewSiteVisitRepository(db DB) *SiteVisitRepository {
	return &SiteVisitRepository{db: db}
}

const visitColumns = `id, org_id, employee_id, customer_id, visit_no, department, purpose,
		check_in_time, check_out_time, check_in_location, check_out_location, photos,
		outcome, next_visit_date, cancel_reason, status, follow_up_of, notes,
		created_at, updated_at`

// Create 创建外访记录
func (r *SiteVisitRepository) Create(ctx context.Context, v *model.SiteVisit) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.VisitNo == "" {
		v.VisitNo = generateVisitNo(time.Now())
	}
	now := time.Now()
	v.CreatedAt = now
	v.UpdatedAt = now

	inLocJSON, _ := json.Marshal(v.CheckInLocation)
	outLocJSON, _ := json.Marshal(v.CheckOutLocation)
	photosJSON, _ := json.Marshal(v.Photos)

	query := `
		INSERT INTO site_visits (
			id, org_id, employee_id, customer_id, visit_no, department, purpose,
			check_in_time, check_out_time, check_in_location, check_out_location, photos,
			outcome, next_visit_date, cancel_reason, status, follow_up_of, notes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.db.ExecContext(ctx, query,
		v.ID, v.OrgID, v.EmployeeID, v.CustomerID, v.VisitNo, v.Department, v.Purpose,
		v.CheckInTime, v.CheckOutTime, inLocJSON, outLocJSON, photosJSON,
		v.Outcome, v.NextVisitDate, v.CancelReason, v.Status, v.FollowUpOf, v.Notes,
		v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建外访记录失败: %w", err)
	}

	return nil
}

// generateVisitNo 生成外访单号，形如 SV-20250310-A3F9
func generateVisitNo(now time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:4])
	return fmt.Sprintf("SV-%s-%s", now.Format("20060102"), suffix)
}

// scanVisit 扫描单行外访记录
func scanVisit(row Scanner) (*model.SiteVisit, error) {
	v := &model.SiteVisit{}
	var inLocJSON, outLocJSON, photosJSON []byte

	err := row.Scan(
		&v.ID, &v.OrgID, &v.EmployeeID, &v.CustomerID, &v.VisitNo, &v.Department, &v.Purpose,
		&v.CheckInTime, &v.CheckOutTime, &inLocJSON, &outLocJSON, &photosJSON,
		&v.Outcome, &v.NextVisitDate, &v.CancelReason, &v.Status, &v.FollowUpOf, &v.Notes,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(inLocJSON) > 0 {
		json.Unmarshal(inLocJSON, &v.CheckInLocation)
	}
	if len(outLocJSON) > 0 {
		json.Unmarshal(outLocJSON, &v.CheckOutLocation)
	}
	if len(photosJSON) > 0 {
		json.Unmarshal(photosJSON, &v.Photos)
	}

	return v, nil
}

// GetByID 根据ID获取外访记录
func (r *SiteVisitRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.SiteVisit, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM site_visits
		WHERE id = $1 AND deleted_at IS NULL
	`, visitColumns)

	v, err := scanVisit(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询外访记录失败: %w", err)
	}

	return v, nil
}

// GetByVisitNo 根据单号获取外访记录
func (r *SiteVisitRepository) GetByVisitNo(ctx context.Context, orgID uuid.UUID, visitNo string) (*model.SiteVisit, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM site_visits
		WHERE org_id = $1 AND visit_no = $2 AND deleted_at IS NULL
	`, visitColumns)

	v, err := scanVisit(r.db.QueryRowContext(ctx, query, orgID, visitNo))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询外访记录失败: %w", err)
	}

	return v, nil
}

// GetOpenByEmployee 获取员工当前未签退的外访
func (r *SiteVisitRepository) GetOpenByEmployee(ctx context.Context, employeeID uuid.UUID) (*model.SiteVisit, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM site_visits
		WHERE employee_id = $1 AND status = 'checked_in' AND deleted_at IS NULL
		ORDER BY check_in_time DESC
		LIMIT 1
	`, visitColumns)

	v, err := scanVisit(r.db.QueryRowContext(ctx, query, employeeID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询外访记录失败: %w", err)
	}

	return v, nil
}

// Update 更新外访记录
func (r *SiteVisitRepository) Update(ctx context.Context, v *model.SiteVisit) error {
	v.UpdatedAt = time.Now()

	outLocJSON, _ := json.Marshal(v.CheckOutLocation)
	photosJSON, _ := json.Marshal(v.Photos)

	query := `
		UPDATE site_visits SET
			check_out_time = $2, check_out_location = $3, photos = $4,
			outcome = $5, next_visit_date = $6, cancel_reason = $7, status = $8,
			notes = $9, updated_at = $10
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		v.ID, v.CheckOutTime, outLocJSON, photosJSON,
		v.Outcome, v.NextVisitDate, v.CancelReason, v.Status,
		v.Notes, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("更新外访记录失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("外访记录不存在")
	}

	return nil
}

// Delete 软删除外访记录
func (r *SiteVisitRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE site_visits SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("删除外访记录失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("外访记录不存在")
	}

	return nil
}

// List 查询外访列表
func (r *SiteVisitRepository) List(ctx context.Context, filter ListFilter) ([]*model.SiteVisit, int, error) {
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

	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("department = $%d", argIndex))
		args = append(args, filter.Department)
		argIndex++
	}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}

	if filter.StartDate != "" {
		conditions = append(conditions, fmt.Sprintf("check_in_time >= $%d", argIndex))
		args = append(args, filter.StartDate)
		argIndex++
	}

	if filter.EndDate != "" {
		conditions = append(conditions, fmt.Sprintf("check_in_time < ($%d::date + 1)", argIndex))
		args = append(args, filter.EndDate)
		argIndex++
	}

	// 结果过滤
	if outcome, ok := filter.Extra["outcome"].(string); ok && outcome != "" {
		conditions = append(conditions, fmt.Sprintf("outcome = $%d", argIndex))
		args = append(args, outcome)
		argIndex++
	}

	// 客户过滤
	if customerID, ok := filter.Extra["customer_id"].(uuid.UUID); ok {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argIndex))
		args = append(args, customerID)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	// 查询总数
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM site_visits WHERE %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("查询总数失败: %w", err)
	}

	// 查询列表
	query := fmt.Sprintf(`
		SELECT %s
		FROM site_visits
		WHERE %s
		ORDER BY check_in_time DESC
		LIMIT $%d OFFSET $%d
	`, visitColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询列表失败: %w", err)
	}
	defer rows.Close()

	var visits []*model.SiteVisit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("扫描行失败: %w", err)
		}
		visits = append(visits, v)
	}

	return visits, total, nil
}

// ListByCustomer 获取客户的全部外访（链路归并用）
func (r *SiteVisitRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*model.SiteVisit, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM site_visits
		WHERE customer_id = $1 AND deleted_at IS NULL
		ORDER BY check_in_time
	`, visitColumns)

	rows, err := r.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("查询外访记录失败: %w", err)
	}
	defer rows.Close()

	var visits []*model.SiteVisit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描行失败: %w", err)
		}
		visits = append(visits, v)
	}

	return visits, nil
}

// ListByEmployeeAndDate 获取员工某日的外访记录
func (r *SiteVisitRepository) ListByEmployeeAndDate(ctx context.Context, employeeID uuid.UUID, date string) ([]*model.SiteVisit, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM site_visits
		WHERE employee_id = $1 AND check_in_time >= $2::date AND check_in_time < ($2::date + 1) AND deleted_at IS NULL
		ORDER BY check_in_time
	`, visitColumns)

	rows, err := r.db.QueryContext(ctx, query, employeeID, date)
	if err != nil {
		return nil, fmt.Errorf("查询外访记录失败: %w", err)
	}
	defer rows.Close()

	var visits []*model.SiteVisit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描行失败: %w", err)
		}
		visits = append(visits, v)
	}

	return visits, nil
}

// ListFollowUps 获取首访的全部回访
func (r *SiteVisitRepository) ListFollowUps(ctx context.Context, primaryID uuid.UUID) ([]*model.SiteVisit, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM site_visits
		WHERE follow_up_of = $1 AND deleted_at IS NULL
		ORDER BY check_in_time
	`, visitColumns)

	rows, err := r.db.QueryContext(ctx, query, primaryID)
	if err != nil {
		return nil, fmt.Errorf("查询回访记录失败: %w", err)
	}
	defer rows.Close()

	var visits []*model.SiteVisit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描行失败: %w", err)
		}
		visits = append(visits, v)
	}

	return visits, nil
}

// CountByEmployeeAndDate 统计员工某日的外访次数
func (r *SiteVisitRepository) CountByEmployeeAndDate(ctx context.Context, employeeID uuid.UUID, date string) (int, error) {
	query := `
		SELECT COUNT(*) FROM site_visits
		WHERE employee_id = $1 AND check_in_time >= $2::date AND check_in_time < ($2::date + 1) AND deleted_at IS NULL
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, employeeID, date).Scan(&count); err != nil {
		return 0, fmt.Errorf("统计外访次数失败: %w", err)
	}

	return count, nil
}

// VisitHistory 汇总组织内客户-员工外访历史（回访推荐用）
func (r *SiteVisitRepository) VisitHistory(ctx context.Context, orgID uuid.UUID) ([]*model.CustomerVisitHistory, error) {
	query := `
		SELECT customer_id, employee_id, COUNT(*),
			COALESCE(SUM(EXTRACT(EPOCH FROM (check_out_time - check_in_time)) / 60), 0)::int,
			MAX(check_in_time)
		FROM site_visits
		WHERE org_id = $1 AND deleted_at IS NULL
		GROUP BY customer_id, employee_id
	`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("汇总外访历史失败: %w", err)
	}
	defer rows.Close()

	var history []*model.CustomerVisitHistory
	for rows.Next() {
		h := &model.CustomerVisitHistory{}
		if err := rows.Scan(&h.CustomerID, &h.EmployeeID, &h.VisitCount, &h.TotalMinutes, &h.LastVisitAt); err != nil {
			return nil, fmt.Errorf("扫描行失败: %w", err)
		}
		history = append(history, h)
	}

	return history, nil
}
