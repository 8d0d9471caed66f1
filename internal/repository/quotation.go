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

// QuotationRepository 报价单仓储
type QuotationRepository struct {
	db DB
}

// NewQuotationRepository 创建报价单仓储
func NewQuotationRepository(db DB) *QuotationRepository {
	return &QuotationRepository{db: db}
}

const quotationColumns = `id, org_id, customer_id, visit_id, quote_no, title, items,
		subtotal, tax_rate, tax_amount, total, currency, valid_until, status,
		created_by, notes, created_at, updated_at`

// Create 创建报价单
func (r *QuotationRepository) Create(ctx context.Context, q *model.Quotation) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	now := time.Now()
	q.CreatedAt = now
	q.UpdatedAt = now

	itemsJSON, err := json.Marshal(q.Items)
	if err != nil {
		return fmt.Errorf("序列化报价条目失败: %w", err)
	}

	query := `
		INSERT INTO quotations (
			id, org_id, customer_id, visit_id, quote_no, title, items,
			subtotal, tax_rate, tax_amount, total, currency, valid_until, status,
			created_by, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err = r.db.ExecContext(ctx, query,
		q.ID, q.OrgID, q.CustomerID, q.VisitID, q.QuoteNo, q.Title, itemsJSON,
		q.Subtotal, q.TaxRate, q.TaxAmount, q.Total, q.Currency, q.ValidUntil, q.Status,
		q.CreatedBy, q.Notes, q.CreatedAt, q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建报价单失败: %w", err)
	}

	return nil
}

// scanQuotation 扫描单行报价单
func scanQuotation(row Scanner) (*model.Quotation, error) {
	q := &model.Quotation{}
	var itemsJSON []byte

	err := row.Scan(
		&q.ID, &q.OrgID, &q.CustomerID, &q.VisitID, &q.QuoteNo, &q.Title, &itemsJSON,
		&q.Subtotal, &q.TaxRate, &q.TaxAmount, &q.Total, &q.Currency, &q.ValidUntil, &q.Status,
		&q.CreatedBy, &q.Notes, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &q.Items); err != nil {
			return nil, fmt.Errorf("解析报价条目失败: %w", err)
		}
	}

	return q, nil
}

// GetByID 根据ID获取报价单
func (r *QuotationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Quotation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM quotations
		WHERE id = $1 AND deleted_at IS NULL
	`, quotationColumns)

	q, err := scanQuotation(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询报价单失败: %w", err)
	}

	return q, nil
}

// GetByQuoteNo 根据单号获取报价单
func (r *QuotationRepository) GetByQuoteNo(ctx context.Context, orgID uuid.UUID, quoteNo string) (*model.Quotation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM quotations
		WHERE org_id = $1 AND quote_no = $2 AND deleted_at IS NULL
	`, quotationColumns)

	q, err := scanQuotation(r.db.QueryRowContext(ctx, query, orgID, quoteNo))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询报价单失败: %w", err)
	}

	return q, nil
}

// Update 更新报价单
func (r *QuotationRepository) Update(ctx context.Context, q *model.Quotation) error {
	q.UpdatedAt = time.Now()

	itemsJSON, err := json.Marshal(q.Items)
	if err != nil {
		return fmt.Errorf("序列化报价条目失败: %w", err)
	}

	query := `
		UPDATE quotations SET
			title = $2, items = $3, subtotal = $4, tax_rate = $5, tax_amount = $6,
			total = $7, currency = $8, valid_until = $9, status = $10, notes = $11, updated_at = $12
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		q.ID, q.Title, itemsJSON, q.Subtotal, q.TaxRate, q.TaxAmount,
		q.Total, q.Currency, q.ValidUntil, q.Status, q.Notes, q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("更新报价单失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("报价单不存在")
	}

	return nil
}

// UpdateStatus 更新报价单状态
func (r *QuotationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE quotations SET status = $2, updated_at = $3 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("更新报价单状态失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("报价单不存在")
	}

	return nil
}

// Delete 软删除报价单
func (r *QuotationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE quotations SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("删除报价单失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("报价单不存在")
	}

	return nil
}

// List 查询报价单列表
func (r *QuotationRepository) List(ctx context.Context, filter ListFilter) ([]*model.Quotation, int, error) {
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
		conditions = append(conditions, fmt.Sprintf("(quote_no ILIKE $%d OR title ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+filter.Search+"%")
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
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM quotations WHERE %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("查询总数失败: %w", err)
	}

	// 查询列表
	query := fmt.Sprintf(`
		SELECT %s
		FROM quotations
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, quotationColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询列表失败: %w", err)
	}
	defer rows.Close()

	var quotations []*model.Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("扫描行失败: %w", err)
		}
		quotations = append(quotations, q)
	}

	return quotations, total, nil
}

// ListByCustomer 获取客户的全部报价单
func (r *QuotationRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*model.Quotation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM quotations
		WHERE customer_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`, quotationColumns)

	rows, err := r.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("查询报价单失败: %w", err)
	}
	defer rows.Close()

	var quotations []*model.Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描行失败: %w", err)
		}
		quotations = append(quotations, q)
	}

	return quotations, nil
}
