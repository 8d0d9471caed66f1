// Package model 定义考勤外勤服务的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// Customer 客户（外访沉淀）
type Customer struct {
	BaseModel
	OrgID    uuid.UUID `json:"org_id" db:"org_id"`
	Name     string    `json:"name" db:"name"`
	Code     string    `json:"code" db:"code"`
	Phone    string    `json:"phone" db:"phone"`
	Address  string    `json:"address" db:"address"`
	Location *Location `json:"location,omitempty" db:"location"`
	Industry string    `json:"industry,omitempty" db:"industry"`
	Type     string    `json:"type" db:"type"`     // company/individual
	Status   string    `json:"status" db:"status"` // active/inactive
	Source   string    `json:"source" db:"source"` // visit/manual/import
	Notes    string    `json:"notes,omitempty" db:"notes"`
}

// 外访结果
const (
	OutcomeConverted = "converted"  // 已成交
	OutcomeOnProcess = "on_process" // 跟进中
	OutcomeCancelled = "cancelled"  // 已取消
)

// 外访状态
const (
	VisitCheckedIn  = "checked_in"
	VisitCheckedOut = "checked_out"
)

// SiteVisit 外访记录
type SiteVisit struct {
	BaseModel
	OrgID      uuid.UUID  `json:"org_id" db:"org_id"`
	EmployeeID uuid.UUID  `json:"employee_id" db:"employee_id"`
	CustomerID uuid.UUID  `json:"customer_id" db:"customer_id"`
	VisitNo    string     `json:"visit_no" db:"visit_no"`
	Department Department `json:"department" db:"department"` // technical/marketing/admin
	Purpose    string     `json:"purpose" db:"purpose"`

	CheckInTime      time.Time  `json:"check_in_time" db:"check_in_time"`
	CheckOutTime     *time.Time `json:"check_out_time,omitempty" db:"check_out_time"`
	CheckInLocation  Location   `json:"check_in_location" db:"check_in_location"`
	CheckOutLocation *Location  `json:"check_out_location,omitempty" db:"check_out_location"`

	Photos []string `json:"photos,omitempty" db:"photos"`

	// 签退时填写的访问结果
	Outcome       string `json:"outcome,omitempty" db:"outcome"` // converted/on_process/cancelled
	NextVisitDate string `json:"next_visit_date,omitempty" db:"next_visit_date"`
	CancelReason  string `json:"cancel_reason,omitempty" db:"cancel_reason"`

	Status     string     `json:"status" db:"status"` // checked_in/checked_out
	FollowUpOf *uuid.UUID `json:"follow_up_of,omitempty" db:"follow_up_of"`
	Notes      string     `json:"notes,omitempty" db:"notes"`
}

// IsFollowUp 检查是否为回访
func (v *SiteVisit) IsFollowUp() bool {
	return v.FollowUpOf != nil
}

// IsOpen 检查外访是否未签退
func (v *SiteVisit) IsOpen() bool {
	return v.Status == VisitCheckedIn
}

// DurationMinutes 返回外访时长（分钟）
func (v *SiteVisit) DurationMinutes() int {
	if v.CheckOutTime == nil {
		return 0
	}
	return int(v.CheckOutTime.Sub(v.CheckInTime).Minutes())
}

// Range 返回外访的时间范围（未签退时 End 为零值）
func (v *SiteVisit) Range() TimeRange {
	tr := TimeRange{Start: v.CheckInTime}
	if v.CheckOutTime != nil {
		tr.End = *v.CheckOutTime
	}
	return tr
}

// 报价单状态
const (
	QuoteDraft    = "draft"
	QuoteSent     = "sent"
	QuoteAccepted = "accepted"
	QuoteDeclined = "declined"
	QuoteExpired  = "expired"
)

// Quotation 报价单
type Quotation struct {
	BaseModel
	OrgID      uuid.UUID  `json:"org_id" db:"org_id"`
	CustomerID uuid.UUID  `json:"customer_id" db:"customer_id"`
	VisitID    *uuid.UUID `json:"visit_id,omitempty" db:"visit_id"`
	QuoteNo    string     `json:"quote_no" db:"quote_no"`
	Title      string     `json:"title" db:"title"`

	Items     []QuotationItem `json:"items" db:"items"`
	Subtotal  float64         `json:"subtotal" db:"subtotal"`
	TaxRate   float64         `json:"tax_rate" db:"tax_rate"`
	TaxAmount float64         `json:"tax_amount" db:"tax_amount"`
	Total     float64         `json:"total" db:"total"`
	Currency  string          `json:"currency" db:"currency"`

	ValidUntil string    `json:"valid_until" db:"valid_until"` // YYYY-MM-DD
	Status     string    `json:"status" db:"status"`
	CreatedBy  uuid.UUID `json:"created_by" db:"created_by"`
	Notes      string    `json:"notes,omitempty" db:"notes"`
}

// QuotationItem 报价单条目
type QuotationItem struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
}

// IsExpired 检查报价单是否已过有效期
func (q *Quotation) IsExpired(now time.Time) bool {
	if q.ValidUntil == "" {
		return false
	}
	due, err := time.Parse("2006-01-02", q.ValidUntil)
	if err != nil {
		return false
	}
	return now.After(due.AddDate(0, 0, 1))
}

// CustomerVisitHistory 客户-员工外访历史
type CustomerVisitHistory struct {
	CustomerID   uuid.UUID `json:"customer_id" db:"customer_id"`
	EmployeeID   uuid.UUID `json:"employee_id" db:"employee_id"`
	VisitCount   int       `json:"visit_count" db:"visit_count"`
	TotalMinutes int       `json:"total_minutes" db:"total_minutes"`
	LastVisitAt  time.Time `json:"last_visit_at" db:"last_visit_at"`
	IsPrimary    bool      `json:"is_primary" db:"is_primary"`
}
